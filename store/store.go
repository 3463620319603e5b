// Package store abstracts the persisted state behind purchases:
// entitlement records keyed by transaction hash, per-principal
// subscription state and the priced catalog.
package store

import (
	"context"
	"errors"

	"github.com/vitwit/paygate/types"
)

var (
	// ErrNotFound: the catalog has no item with that id.
	ErrNotFound = errors.New("not found")

	// ErrNoSubscription: the principal has no subscription sub-record.
	ErrNoSubscription = errors.New("no subscription")
)

// EntitlementStore persists access grants and subscription state. All
// implementations are safe for concurrent use.
type EntitlementStore interface {
	// HasGrant reports whether a transaction hash already produced a
	// grant.
	HasGrant(ctx context.Context, txHash string) (bool, error)

	// TryGrant records an entitlement if and only if no record exists
	// for its transaction hash. It is atomic on the hash: of two racing
	// calls exactly one returns true, the other false, and no duplicate
	// record is ever persisted.
	TryGrant(ctx context.Context, record types.EntitlementRecord) (bool, error)

	// HasEntitlement reports whether a principal already holds a grant
	// for an item.
	HasEntitlement(ctx context.Context, principalID, itemID string) (bool, error)

	// GetSubscription returns the principal's subscription sub-record,
	// or ErrNoSubscription.
	GetSubscription(ctx context.Context, principalID string) (*types.SubscriptionState, error)

	// SetSubscription replaces the principal's subscription sub-record.
	// Single writer per principal; last write wins.
	SetSubscription(ctx context.Context, principalID string, state types.SubscriptionState) error
}

// Catalog resolves priced items. Read-only from this module's point of
// view; admin tooling maintains it elsewhere.
type Catalog interface {
	GetVideo(ctx context.Context, id string) (*types.Video, error)
	GetTier(ctx context.Context, id string) (*types.SubscriptionTier, error)
}
