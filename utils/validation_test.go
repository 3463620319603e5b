package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/paygate/types"
)

const (
	goodHash = "0x2e8818a233e2e802c953aed477858957ff85a4b91e047181e17ef4b096108e66"
	goodAddr = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
)

func TestValidateTransactionHash(t *testing.T) {
	cases := []struct {
		name    string
		hash    string
		wantErr bool
	}{
		{"valid", goodHash, false},
		{"empty", "", true},
		{"missing prefix", goodHash[2:], true},
		{"too short", "0x2e8818", true},
		{"too long", goodHash + "ff", true},
		{"non-hex", "0xzz8818a233e2e802c953aed477858957ff85a4b91e047181e17ef4b096108e66", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransactionHash(tc.hash)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAddress(t *testing.T) {
	cases := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid checksummed", goodAddr, false},
		{"valid lowercase", "0x384aa214be0b279cbf211e9b2c992d8633f77848", false},
		{"empty", "", true},
		{"missing prefix", goodAddr[2:], true},
		{"wrong length", "0x384Aa214", true},
		{"non-hex", "0x384Aa214be0B279cbf211e9b2C992d8633F7784g", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAddress(tc.addr)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress(goodAddr, "0x384aa214be0b279cbf211e9b2c992d8633f77848"))
	assert.True(t, SameAddress(goodAddr, "0x384AA214BE0B279CBF211E9B2C992D8633F77848"))
	assert.False(t, SameAddress(goodAddr, "0x1111111111111111111111111111111111111111"))
}

func TestValidateClaim(t *testing.T) {
	valid := func() *types.PaymentClaim {
		return &types.PaymentClaim{
			TxHash:         goodHash,
			TokenKind:      types.TokenERC20,
			ExpectedAmount: decimal.RequireFromString("5.00"),
			Recipient:      goodAddr,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateClaim(valid()))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Error(t, ValidateClaim(nil))
	})

	t.Run("unknown token kind", func(t *testing.T) {
		claim := valid()
		claim.TokenKind = "spl"
		assert.Error(t, ValidateClaim(claim))
	})

	t.Run("bad hash", func(t *testing.T) {
		claim := valid()
		claim.TxHash = "0xdeadbeef"
		assert.Error(t, ValidateClaim(claim))
	})

	t.Run("bad recipient", func(t *testing.T) {
		claim := valid()
		claim.Recipient = "not-an-address"
		assert.Error(t, ValidateClaim(claim))
	})

	t.Run("negative amount", func(t *testing.T) {
		claim := valid()
		claim.ExpectedAmount = decimal.RequireFromString("-1")
		assert.Error(t, ValidateClaim(claim))
	})

	t.Run("zero amount is allowed", func(t *testing.T) {
		claim := valid()
		claim.ExpectedAmount = decimal.Zero
		assert.NoError(t, ValidateClaim(claim))
	})
}

func TestRawAmountConversion(t *testing.T) {
	t.Run("usdc six decimals", func(t *testing.T) {
		amount := FromRawAmount(big.NewInt(5_000_000), 6)
		assert.True(t, amount.Equal(decimal.RequireFromString("5")))

		raw := ToRawAmount(decimal.RequireFromString("5.00"), 6)
		assert.Equal(t, big.NewInt(5_000_000), raw)
	})

	t.Run("native eighteen decimals", func(t *testing.T) {
		oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		amount := FromRawAmount(oneEther, 18)
		assert.True(t, amount.Equal(decimal.RequireFromString("1")))

		raw := ToRawAmount(decimal.RequireFromString("1"), 18)
		assert.Equal(t, oneEther, raw)
	})

	t.Run("sub-unit precision truncates", func(t *testing.T) {
		// 0.0000001 USDC is below the token's resolution.
		raw := ToRawAmount(decimal.RequireFromString("0.0000001"), 6)
		assert.Equal(t, big.NewInt(0), raw)
	})

	t.Run("round trip", func(t *testing.T) {
		start := decimal.RequireFromString("123.456789")
		require.True(t, FromRawAmount(ToRawAmount(start, 6), 6).Equal(start))
	})
}
