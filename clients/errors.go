package clients

import (
	"errors"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
)

var (
	// ErrTransactionNotFound: the chain has no transaction or receipt
	// for the hash. Permanent for that input, though a transaction
	// submitted moments ago may appear after a delay.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrChainUnavailable: the RPC endpoint failed or timed out.
	// Retryable by the caller.
	ErrChainUnavailable = errors.New("chain unavailable")
)

// classify maps raw RPC errors onto the two failure modes callers care
// about: a permanently-missing hash versus a transient endpoint fault.
func classify(err error) error {
	if errors.Is(err, ethereum.NotFound) {
		return ErrTransactionNotFound
	}
	return fmt.Errorf("%w: %v", ErrChainUnavailable, err)
}
