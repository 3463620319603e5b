// Package utils holds claim validation and raw-amount conversion
// helpers shared by verification and the facade.
package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vitwit/paygate/types"
)

var validate = validator.New()

var hexRe = regexp.MustCompile("^[0-9a-fA-F]+$")

// ValidateTransactionHash checks the 0x-prefixed 32-byte hex shape of
// an EVM transaction hash.
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	if !strings.HasPrefix(hash, "0x") {
		return fmt.Errorf("transaction hash must start with 0x")
	}
	if len(hash) != 66 {
		return fmt.Errorf("transaction hash must be 66 characters long")
	}
	if !hexRe.MatchString(hash[2:]) {
		return fmt.Errorf("transaction hash must be valid hex")
	}
	return nil
}

// ValidateAddress checks the 0x-prefixed 20-byte hex shape of an EVM
// address.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("address must start with 0x")
	}
	if len(address) != 42 {
		return fmt.Errorf("address must be 42 characters long")
	}
	if !hexRe.MatchString(address[2:]) {
		return fmt.Errorf("address must be valid hex")
	}
	return nil
}

// SameAddress compares two hex addresses case-insensitively. Network
// addresses are not case-sensitive identifiers; every comparison in the
// module goes through here.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ValidateClaim checks a payment claim's structure before any chain
// access: struct tags, hash shape, recipient shape, non-negative
// expected amount.
func ValidateClaim(claim *types.PaymentClaim) error {
	if claim == nil {
		return fmt.Errorf("claim is required")
	}
	if err := validate.Struct(claim); err != nil {
		return err
	}
	if err := ValidateTransactionHash(claim.TxHash); err != nil {
		return err
	}
	if err := ValidateAddress(claim.Recipient); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	if claim.ExpectedAmount.IsNegative() {
		return fmt.Errorf("expected amount cannot be negative")
	}
	return nil
}

// FromRawAmount converts a raw integer token amount into decimal human
// units.
func FromRawAmount(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToRawAmount converts a decimal human amount into the token's smallest
// unit, truncating any precision beyond the token's decimals.
func ToRawAmount(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}
