package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/paygate/types"
)

const txHash = "0x2e8818a233e2e802c953aed477858957ff85a4b91e047181e17ef4b096108e66"

func record(principalID string) types.EntitlementRecord {
	return types.EntitlementRecord{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		ItemID:      "video-1",
		Kind:        types.EntitlementPurchase,
		TxHash:      txHash,
		GrantedAt:   time.Now(),
	}
}

func TestTryGrantIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.TryGrant(ctx, record("alice"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.TryGrant(ctx, record("alice"))
	require.NoError(t, err)
	assert.False(t, created)

	has, err := m.HasGrant(ctx, txHash)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTryGrantConcurrentExactlyOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	const racers = 64
	var wg sync.WaitGroup
	results := make(chan bool, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := m.TryGrant(ctx, record("alice"))
			assert.NoError(t, err)
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for created := range results {
		if created {
			granted++
		}
	}
	assert.Equal(t, 1, granted, "exactly one racer must observe the grant")
}

func TestHasEntitlement(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	has, err := m.HasEntitlement(ctx, "alice", "video-1")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = m.TryGrant(ctx, record("alice"))
	require.NoError(t, err)

	has, err = m.HasEntitlement(ctx, "alice", "video-1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = m.HasEntitlement(ctx, "bob", "video-1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSubscriptionRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.GetSubscription(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoSubscription)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	state := types.SubscriptionState{
		TierID:    "tier-monthly",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 30),
		IsActive:  true,
	}
	require.NoError(t, m.SetSubscription(ctx, "alice", state))

	got, err := m.GetSubscription(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, state, *got)

	// Last write wins.
	state.IsActive = false
	require.NoError(t, m.SetSubscription(ctx, "alice", state))
	got, err = m.GetSubscription(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestCatalogLookups(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.GetVideo(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetTier(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	m.AddVideo(types.Video{ID: "video-1", PriceUSD: decimal.RequireFromString("5.00"), IsActive: true})
	m.AddTier(types.SubscriptionTier{ID: "tier-monthly", PriceUSD: decimal.RequireFromString("20.00"), DurationDays: 30, IsActive: true})

	v, err := m.GetVideo(ctx, "video-1")
	require.NoError(t, err)
	assert.True(t, v.PriceUSD.Equal(decimal.RequireFromString("5.00")))

	tier, err := m.GetTier(ctx, "tier-monthly")
	require.NoError(t, err)
	assert.Equal(t, 30, tier.DurationDays)
}
