// Package types defines the domain model shared by all paygate packages:
// principals, priced catalog items, payment claims, verified payments,
// entitlement records and subscription state.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role of an authenticated principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// WhitelistStatus is the admin-controlled approval flag gating premium
// features independent of payment.
type WhitelistStatus string

const (
	WhitelistPending  WhitelistStatus = "pending"
	WhitelistApproved WhitelistStatus = "approved"
	WhitelistRejected WhitelistStatus = "rejected"
)

// Principal is the authenticated actor making a request. It is produced
// by an external credential verifier and is immutable for the duration
// of a request.
type Principal struct {
	ID              string          `json:"id"`
	WalletAddress   string          `json:"walletAddress"`
	Role            Role            `json:"role"`
	WhitelistStatus WhitelistStatus `json:"whitelistStatus"`
}

// Approved reports whether the principal passed whitelist review.
func (p Principal) Approved() bool {
	return p.WhitelistStatus == WhitelistApproved
}

// TokenKind selects which asset a payment claim was made in.
type TokenKind string

const (
	// TokenNative is the network's native coin (18 decimals on EVM chains).
	TokenNative TokenKind = "native"
	// TokenERC20 is the configured stable-value token contract.
	TokenERC20 TokenKind = "erc20"
)

// Video is a purchasable catalog item.
type Video struct {
	ID                   string          `json:"id"`
	Title                string          `json:"title,omitempty"`
	PriceUSD             decimal.Decimal `json:"priceUsd"`
	IsActive             bool            `json:"isActive"`
	FreeWithSubscription bool            `json:"freeWithSubscription"`
}

// SubscriptionTier is a subscription product definition.
type SubscriptionTier struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	PriceUSD     decimal.Decimal `json:"priceUsd"`
	DurationDays int             `json:"durationDays"`
	IsActive     bool            `json:"isActive"`
}

// PaymentClaim is a caller-asserted, untrusted request to verify a
// payment. ExpectedAmount is only a floor; the authoritative amount
// always comes from chain data.
type PaymentClaim struct {
	TxHash         string          `json:"txHash" validate:"required"`
	TokenKind      TokenKind       `json:"tokenKind" validate:"required,oneof=native erc20"`
	ExpectedAmount decimal.Decimal `json:"expectedAmount"`
	Recipient      string          `json:"recipient" validate:"required"`
}

// VerifiedPayment is the chain-derived, authoritative result of
// verifying a claim.
type VerifiedPayment struct {
	TxHash        string          `json:"txHash"`
	Amount        decimal.Decimal `json:"amount"`
	Payer         string          `json:"payer"`
	BlockNumber   uint64          `json:"blockNumber"`
	Confirmations uint64          `json:"confirmations"`
}

// EntitlementKind distinguishes one-off purchases from grants written
// as part of a subscription purchase.
type EntitlementKind string

const (
	EntitlementPurchase          EntitlementKind = "purchase"
	EntitlementSubscriptionGrant EntitlementKind = "subscription_grant"
)

// EntitlementRecord is a persisted fact that a principal may access an
// item. Records are created once on successful verification and are
// never mutated or deleted. At most one record exists per TxHash.
type EntitlementRecord struct {
	ID          string          `json:"id"`
	PrincipalID string          `json:"principalId"`
	ItemID      string          `json:"itemId"`
	Kind        EntitlementKind `json:"kind"`
	TxHash      string          `json:"txHash"`
	GrantedAt   time.Time       `json:"grantedAt"`
}

// SubscriptionState is the subscription sub-record of a principal's
// profile. IsActive is a stored flag, not derived from dates: it is set
// false on cancellation even while EndDate is still in the future.
type SubscriptionState struct {
	TierID    string    `json:"tierId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IsActive  bool      `json:"isActive"`
}

// EffectiveAt reports whether the subscription grants access at the
// given instant.
func (s SubscriptionState) EffectiveAt(now time.Time) bool {
	return s.IsActive && now.Before(s.EndDate)
}

// PurchaseStatus is the terminal state of a purchase request.
type PurchaseStatus string

const (
	StatusGranted PurchaseStatus = "granted"
	// StatusAlreadyGranted is an idempotent success signal, not an
	// error: the transaction hash (or the item itself) already produced
	// a grant.
	StatusAlreadyGranted PurchaseStatus = "already_granted"
)

// PurchaseResult is the grant-or-already-granted outcome of a purchase.
// Record, Amount and Payer are set only when Status is StatusGranted.
type PurchaseResult struct {
	Status PurchaseStatus     `json:"status"`
	Record *EntitlementRecord `json:"record,omitempty"`
	Amount decimal.Decimal    `json:"amount"`
	Payer  string             `json:"payer,omitempty"`
}

// SubscriptionStatus is the read-side view of a principal's
// subscription.
type SubscriptionStatus struct {
	Subscription *SubscriptionState `json:"subscription,omitempty"`
	Effective    bool               `json:"effective"`
}

// Config carries the environment-supplied wiring for a paygate
// instance. Core packages never resolve these values themselves; they
// receive them as constructor parameters.
type Config struct {
	// Network the payments settle on. Used for metric labels and
	// transaction-hash validation.
	Network Network `json:"network"`

	// RPCUrl of the EVM JSON-RPC endpoint.
	RPCUrl string `json:"rpcUrl"`

	// TokenAddress of the accepted stable-value ERC-20 contract.
	TokenAddress string `json:"tokenAddress"`

	// PayTo is the store wallet every payment must reach.
	PayTo string `json:"payTo"`

	// DefaultTimeout bounds each verification's chain access.
	DefaultTimeout time.Duration `json:"defaultTimeout,omitempty"`

	LogLevel      string `json:"logLevel,omitempty"`
	EnableMetrics bool   `json:"enableMetrics,omitempty"`
}
