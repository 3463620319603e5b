// Package purchase ties authorization, catalog lookup, payment
// verification and idempotent grant recording into the final
// grant-or-reject decision for each purchase request.
package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/metrics"
	"github.com/vitwit/paygate/store"
	"github.com/vitwit/paygate/types"
	"github.com/vitwit/paygate/verification"
)

// Service orchestrates purchases. Each request is an independent unit
// of work; the only shared state is the store and the chain client,
// both safe for concurrent use, so no locking happens here.
type Service struct {
	verifier verification.Verifier
	store    store.EntitlementStore
	catalog  store.Catalog
	payTo    string
	network  types.Network
	log      logger.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewService creates the orchestrator. payTo is the store wallet every
// payment must reach. A nil now defaults to time.Now.
func NewService(
	verifier verification.Verifier,
	st store.EntitlementStore,
	catalog store.Catalog,
	payTo string,
	network types.Network,
	log logger.Logger,
	rec metrics.Recorder,
	now func() time.Time,
) *Service {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		verifier: verifier,
		store:    st,
		catalog:  catalog,
		payTo:    payTo,
		network:  network,
		log:      log,
		metrics:  rec,
		now:      now,
	}
}

// PurchaseVideo runs the purchase state machine for a video:
// authorize, resolve the item, short-circuit on existing access,
// verify the payment, grant exactly once.
func (s *Service) PurchaseVideo(ctx context.Context, principal types.Principal, videoID string, claim *types.PaymentClaim) (*types.PurchaseResult, error) {
	result, err := s.purchaseVideo(ctx, principal, videoID, claim)
	s.observe("purchase_video", result, err)
	return result, err
}

func (s *Service) purchaseVideo(ctx context.Context, principal types.Principal, videoID string, claim *types.PaymentClaim) (*types.PurchaseResult, error) {
	if !principal.Approved() {
		return nil, types.NewPaymentError(types.ErrUnauthorized, "principal %s is not whitelisted", principal.ID)
	}

	video, err := s.catalog.GetVideo(ctx, videoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, types.NewPaymentError(types.ErrItemUnavailable, "video %s does not exist", videoID)
		}
		return nil, err
	}
	if !video.IsActive {
		return nil, types.NewPaymentError(types.ErrItemUnavailable, "video %s is not for sale", videoID)
	}

	// Existing access is checked before spending a chain call; a repeat
	// submission for content already owned never re-verifies a payment.
	owned, err := s.ownsVideo(ctx, principal, video)
	if err != nil {
		return nil, err
	}
	if owned {
		return &types.PurchaseResult{Status: types.StatusAlreadyGranted}, nil
	}

	payment, err := s.verifyFloor(ctx, claim, video.PriceUSD)
	if err != nil {
		return nil, err
	}

	return s.grant(ctx, types.EntitlementRecord{
		ID:          uuid.NewString(),
		PrincipalID: principal.ID,
		ItemID:      video.ID,
		Kind:        types.EntitlementPurchase,
		TxHash:      payment.TxHash,
		GrantedAt:   s.now(),
	}, payment)
}

// PurchaseSubscription verifies payment for a tier and replaces the
// principal's subscription state with a fresh period. There is no
// proration: any remaining days of a prior subscription are discarded.
func (s *Service) PurchaseSubscription(ctx context.Context, principal types.Principal, tierID string, claim *types.PaymentClaim) (*types.PurchaseResult, error) {
	result, err := s.purchaseSubscription(ctx, principal, tierID, claim)
	s.observe("purchase_subscription", result, err)
	return result, err
}

func (s *Service) purchaseSubscription(ctx context.Context, principal types.Principal, tierID string, claim *types.PaymentClaim) (*types.PurchaseResult, error) {
	if !principal.Approved() {
		return nil, types.NewPaymentError(types.ErrUnauthorized, "principal %s is not whitelisted", principal.ID)
	}

	tier, err := s.catalog.GetTier(ctx, tierID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, types.NewPaymentError(types.ErrItemUnavailable, "tier %s does not exist", tierID)
		}
		return nil, err
	}
	if !tier.IsActive {
		return nil, types.NewPaymentError(types.ErrItemUnavailable, "tier %s is not for sale", tierID)
	}

	// A hash that already produced a grant is settled before any chain
	// call; resubmission of the same payment is a no-op.
	granted, err := s.store.HasGrant(ctx, claim.TxHash)
	if err != nil {
		return nil, err
	}
	if granted {
		return &types.PurchaseResult{Status: types.StatusAlreadyGranted}, nil
	}

	payment, err := s.verifyFloor(ctx, claim, tier.PriceUSD)
	if err != nil {
		return nil, err
	}

	result, err := s.grant(ctx, types.EntitlementRecord{
		ID:          uuid.NewString(),
		PrincipalID: principal.ID,
		ItemID:      tier.ID,
		Kind:        types.EntitlementSubscriptionGrant,
		TxHash:      payment.TxHash,
		GrantedAt:   s.now(),
	}, payment)
	if err != nil || result.Status != types.StatusGranted {
		return result, err
	}

	// Calendar-day arithmetic, not fixed 24h multiples: a 30-day tier
	// bought on day D ends on D+30 regardless of DST or month length.
	start := s.now()
	state := types.SubscriptionState{
		TierID:    tier.ID,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, tier.DurationDays),
		IsActive:  true,
	}
	if err := s.store.SetSubscription(ctx, principal.ID, state); err != nil {
		// The grant is already persisted and is never rolled back;
		// surface the write failure so the caller can retry the state
		// update path.
		return nil, err
	}

	s.log.Info("subscription activated", map[string]any{
		"principal": principal.ID,
		"tier":      tier.ID,
		"endDate":   state.EndDate,
	})
	return result, nil
}

// CancelSubscription deactivates the principal's subscription while
// preserving its dates for history. The period is not refunded.
func (s *Service) CancelSubscription(ctx context.Context, principal types.Principal) (*types.SubscriptionState, error) {
	state, err := s.store.GetSubscription(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNoSubscription) {
			return nil, types.NewPaymentError(types.ErrNoActiveSubscription, "principal %s has no subscription", principal.ID)
		}
		return nil, err
	}
	if !state.IsActive {
		return nil, types.NewPaymentError(types.ErrNoActiveSubscription, "subscription is already cancelled")
	}

	state.IsActive = false
	if err := s.store.SetSubscription(ctx, principal.ID, *state); err != nil {
		return nil, err
	}

	s.log.Info("subscription cancelled", map[string]any{
		"principal": principal.ID,
		"tier":      state.TierID,
	})
	return state, nil
}

// SubscriptionStatus reports the stored subscription state and whether
// it is currently effective.
func (s *Service) SubscriptionStatus(ctx context.Context, principal types.Principal) (*types.SubscriptionStatus, error) {
	state, err := s.store.GetSubscription(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNoSubscription) {
			return &types.SubscriptionStatus{}, nil
		}
		return nil, err
	}
	return &types.SubscriptionStatus{
		Subscription: state,
		Effective:    state.EffectiveAt(s.now()),
	}, nil
}

// HasAccess is the combinator used by content-serving paths: whitelist
// approval, a persisted entitlement, or an effective subscription on a
// subscription-covered item each grant access.
func (s *Service) HasAccess(ctx context.Context, principal types.Principal, itemID string) (bool, error) {
	if principal.Approved() {
		return true, nil
	}

	has, err := s.store.HasEntitlement(ctx, principal.ID, itemID)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}

	sub, err := s.store.GetSubscription(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNoSubscription) {
			return false, nil
		}
		return false, err
	}
	if !sub.EffectiveAt(s.now()) {
		return false, nil
	}

	video, err := s.catalog.GetVideo(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return video.FreeWithSubscription, nil
}

// ownsVideo reports whether the principal already has access through a
// purchase or through an effective subscription covering the item.
func (s *Service) ownsVideo(ctx context.Context, principal types.Principal, video *types.Video) (bool, error) {
	has, err := s.store.HasEntitlement(ctx, principal.ID, video.ID)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}
	if !video.FreeWithSubscription {
		return false, nil
	}
	sub, err := s.store.GetSubscription(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNoSubscription) {
			return false, nil
		}
		return false, err
	}
	return sub.EffectiveAt(s.now()), nil
}

// verifyFloor delegates to the verifier with the catalog price as the
// floor and the store wallet as the required recipient, ignoring
// whatever the caller put in those claim fields.
func (s *Service) verifyFloor(ctx context.Context, claim *types.PaymentClaim, price decimal.Decimal) (*types.VerifiedPayment, error) {
	verifyClaim := *claim
	verifyClaim.ExpectedAmount = price
	verifyClaim.Recipient = s.payTo
	return s.verifier.Verify(ctx, &verifyClaim)
}

// grant records the entitlement exactly once. Losing the race to a
// concurrent duplicate submission of the same hash is reported as
// already granted, not as an error.
func (s *Service) grant(ctx context.Context, record types.EntitlementRecord, payment *types.VerifiedPayment) (*types.PurchaseResult, error) {
	created, err := s.store.TryGrant(ctx, record)
	if err != nil {
		return nil, err
	}
	if !created {
		return &types.PurchaseResult{Status: types.StatusAlreadyGranted}, nil
	}

	s.log.Info("entitlement granted", map[string]any{
		"principal": record.PrincipalID,
		"item":      record.ItemID,
		"txHash":    record.TxHash,
		"amount":    payment.Amount.String(),
	})
	return &types.PurchaseResult{
		Status: types.StatusGranted,
		Record: &record,
		Amount: payment.Amount,
		Payer:  payment.Payer,
	}, nil
}

func (s *Service) observe(op string, result *types.PurchaseResult, err error) {
	labels := map[string]string{"network": s.network.String()}
	switch {
	case err != nil:
		code := types.ErrorCode(err)
		if code == "" {
			code = "INTERNAL"
		}
		s.metrics.IncCounter(op+"_"+code, labels)
	case result != nil:
		s.metrics.IncCounter(op+"_"+string(result.Status), labels)
	}
}
