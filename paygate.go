// Package paygate grants access to paid digital content against
// on-chain payments on one EVM network. Given a claimed transaction
// hash it authoritatively determines whether a sufficient payment
// reached the store wallet, then grants the entitlement exactly once,
// even under retries and concurrent duplicate submissions.
package paygate

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vitwit/paygate/clients"
	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/metrics"
	"github.com/vitwit/paygate/purchase"
	"github.com/vitwit/paygate/store"
	"github.com/vitwit/paygate/types"
	"github.com/vitwit/paygate/utils"
	"github.com/vitwit/paygate/verification"
)

const Version = "1.0.0"

// PayGate is the composition root: it owns the shared chain client and
// wires the verifier and the purchase orchestrator. One instance serves
// concurrent requests.
type PayGate struct {
	config    *types.Config
	chain     *clients.EVMClient
	verifier  *verification.Service
	purchases *purchase.Service

	logger  logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
	now     func() time.Time
}

// New validates the configuration, dials the RPC endpoint and wires the
// services. The entitlement store and catalog are injected: the caller
// decides between store.NewPostgres and store.NewMemory.
func New(cfg *types.Config, st store.EntitlementStore, catalog store.Catalog, opts ...Option) (*PayGate, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("config.RPCUrl is required")
	}
	if err := utils.ValidateAddress(cfg.PayTo); err != nil {
		return nil, fmt.Errorf("config.PayTo: %w", err)
	}
	if err := utils.ValidateAddress(cfg.TokenAddress); err != nil {
		return nil, fmt.Errorf("config.TokenAddress: %w", err)
	}

	p := &PayGate{
		config:  cfg,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: 30 * time.Second,
		now:     time.Now,
	}
	if cfg.LogLevel != "" {
		p.logger = logger.NewZapLogger(cfg.LogLevel)
	}
	if cfg.EnableMetrics {
		p.metrics = metrics.NewPrometheusRecorder()
	}
	if cfg.DefaultTimeout > 0 {
		p.timeout = cfg.DefaultTimeout
	}
	for _, opt := range opts {
		opt(p)
	}

	chain, err := clients.NewEVMClient(cfg.Network, cfg.RPCUrl)
	if err != nil {
		return nil, err
	}
	p.chain = chain
	p.wire(st, catalog)
	return p, nil
}

// NewWithChain wires the services around an already-constructed chain
// client. Used by tests and by callers that share one RPC connection
// across components.
func NewWithChain(cfg *types.Config, chain *clients.EVMClient, st store.EntitlementStore, catalog store.Catalog, opts ...Option) (*PayGate, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := utils.ValidateAddress(cfg.PayTo); err != nil {
		return nil, fmt.Errorf("config.PayTo: %w", err)
	}
	if err := utils.ValidateAddress(cfg.TokenAddress); err != nil {
		return nil, fmt.Errorf("config.TokenAddress: %w", err)
	}

	p := &PayGate{
		config:  cfg,
		chain:   chain,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: 30 * time.Second,
		now:     time.Now,
	}
	if cfg.DefaultTimeout > 0 {
		p.timeout = cfg.DefaultTimeout
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wire(st, catalog)
	return p, nil
}

func (p *PayGate) wire(st store.EntitlementStore, catalog store.Catalog) {
	p.verifier = verification.NewService(
		p.chain,
		common.HexToAddress(p.config.TokenAddress),
		p.config.Network,
		p.timeout,
		p.logger,
		p.metrics,
	)
	p.purchases = purchase.NewService(
		p.verifier,
		st,
		catalog,
		p.config.PayTo,
		p.config.Network,
		p.logger,
		p.metrics,
		p.now,
	)
}

// PurchaseVideoRequest is the inbound payload from the routing layer.
type PurchaseVideoRequest struct {
	TxHash    string          `json:"txHash"`
	VideoID   string          `json:"videoId"`
	TokenKind types.TokenKind `json:"tokenKind"`
}

// PurchaseSubscriptionRequest is the inbound payload from the routing
// layer.
type PurchaseSubscriptionRequest struct {
	TxHash    string          `json:"txHash"`
	TierID    string          `json:"tierId"`
	TokenKind types.TokenKind `json:"tokenKind"`
}

// PurchaseVideo verifies the claimed payment and grants video access
// exactly once.
func (p *PayGate) PurchaseVideo(ctx context.Context, principal types.Principal, req PurchaseVideoRequest) (*types.PurchaseResult, error) {
	claim := &types.PaymentClaim{TxHash: req.TxHash, TokenKind: req.TokenKind}
	return p.purchases.PurchaseVideo(ctx, principal, req.VideoID, claim)
}

// PurchaseSubscription verifies the claimed payment and activates a
// fresh subscription period for the tier.
func (p *PayGate) PurchaseSubscription(ctx context.Context, principal types.Principal, req PurchaseSubscriptionRequest) (*types.PurchaseResult, error) {
	claim := &types.PaymentClaim{TxHash: req.TxHash, TokenKind: req.TokenKind}
	return p.purchases.PurchaseSubscription(ctx, principal, req.TierID, claim)
}

// CancelSubscription deactivates the principal's subscription,
// preserving its dates for history.
func (p *PayGate) CancelSubscription(ctx context.Context, principal types.Principal) (*types.SubscriptionState, error) {
	return p.purchases.CancelSubscription(ctx, principal)
}

// SubscriptionStatus reports the stored subscription state and whether
// it is currently effective.
func (p *PayGate) SubscriptionStatus(ctx context.Context, principal types.Principal) (*types.SubscriptionStatus, error) {
	return p.purchases.SubscriptionStatus(ctx, principal)
}

// HasAccess reports whether the principal may access an item, through
// whitelist approval, a persisted entitlement or an effective
// subscription.
func (p *PayGate) HasAccess(ctx context.Context, principal types.Principal, itemID string) (bool, error) {
	return p.purchases.HasAccess(ctx, principal, itemID)
}

// Verify exposes raw payment verification without granting anything.
func (p *PayGate) Verify(ctx context.Context, claim *types.PaymentClaim) (*types.VerifiedPayment, error) {
	return p.verifier.Verify(ctx, claim)
}

// Close releases the chain connection.
func (p *PayGate) Close() {
	p.chain.Close()
}
