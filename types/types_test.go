package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionEffectiveAt(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	base := SubscriptionState{
		TierID:    "tier-monthly",
		StartDate: now.AddDate(0, 0, -10),
		EndDate:   now.AddDate(0, 0, 20),
		IsActive:  true,
	}

	assert.True(t, base.EffectiveAt(now))

	cancelled := base
	cancelled.IsActive = false
	assert.False(t, cancelled.EffectiveAt(now))

	expired := base
	expired.EndDate = now.AddDate(0, 0, -1)
	assert.False(t, expired.EffectiveAt(now))

	// The end instant itself is exclusive.
	assert.False(t, base.EffectiveAt(base.EndDate))
}

func TestCalendarDayDuration(t *testing.T) {
	// Subscription periods are calendar days, not 24h multiples.
	start := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), start.AddDate(0, 0, 30))

	// Across a DST transition the wall-clock time is preserved.
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	springStart := time.Date(2026, 3, 1, 12, 0, 0, 0, ny)
	springEnd := springStart.AddDate(0, 0, 30)
	assert.Equal(t, 12, springEnd.Hour())
}

func TestPrincipalApproved(t *testing.T) {
	assert.True(t, Principal{WhitelistStatus: WhitelistApproved}.Approved())
	assert.False(t, Principal{WhitelistStatus: WhitelistPending}.Approved())
	assert.False(t, Principal{WhitelistStatus: WhitelistRejected}.Approved())
	assert.False(t, Principal{}.Approved())
}

func TestErrorCode(t *testing.T) {
	err := NewPaymentError(ErrUnauthorized, "principal %s is not whitelisted", "alice")
	assert.Equal(t, ErrUnauthorized, ErrorCode(err))
	assert.Equal(t, "UNAUTHORIZED: principal alice is not whitelisted", err.Error())

	// Codes survive wrapping.
	wrapped := fmt.Errorf("purchase: %w", err)
	assert.Equal(t, ErrUnauthorized, ErrorCode(wrapped))

	assert.Empty(t, ErrorCode(errors.New("plain")))
	assert.Empty(t, ErrorCode(nil))
}

func TestNewInsufficientAmount(t *testing.T) {
	err := NewInsufficientAmount(decimal.RequireFromString("5.00"), decimal.RequireFromString("4.99"))
	assert.Equal(t, ErrInsufficientAmount, ErrorCode(err))

	data, ok := err.Data.(InsufficientAmountData)
	require.True(t, ok)
	assert.True(t, data.Expected.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, data.Actual.Equal(decimal.RequireFromString("4.99")))
}

func TestNetworkChainIDs(t *testing.T) {
	cases := []struct {
		network Network
		chainID uint64
		testnet bool
	}{
		{NetworkPolygon, 137, false},
		{NetworkPolygonAmoy, 80002, true},
		{NetworkBase, 8453, false},
		{NetworkBaseSepolia, 84532, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.network), func(t *testing.T) {
			assert.Equal(t, tc.chainID, tc.network.ChainID())
			assert.Equal(t, tc.testnet, tc.network.IsTestnet())
		})
	}
}
