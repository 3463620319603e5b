package types

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Failure codes surfaced by verification and purchase operations. The
// orchestrator always returns the most specific code; none of these is
// fatal to the process.
const (
	// ErrUnauthorized: principal lacks whitelist approval. Fixable by
	// admin action, not by retrying.
	ErrUnauthorized = "UNAUTHORIZED"

	// ErrItemUnavailable: item missing or inactive. Permanent for that id.
	ErrItemUnavailable = "ITEM_UNAVAILABLE"

	// ErrChainUnavailable: transient RPC fault or timeout. Retryable by
	// resubmitting the same transaction hash.
	ErrChainUnavailable = "CHAIN_UNAVAILABLE"

	// ErrTxNotFound: the chain has no transaction or receipt for the
	// hash. May become valid shortly after broadcast; callers should
	// retry after a delay, capped.
	ErrTxNotFound = "TX_NOT_FOUND"

	// Payment-fact failures. Permanent for that transaction hash; the
	// caller must submit a new payment.
	ErrTxReverted         = "TX_REVERTED"
	ErrRecipientMismatch  = "RECIPIENT_MISMATCH"
	ErrInsufficientAmount = "INSUFFICIENT_AMOUNT"

	// ErrNoActiveSubscription: cancellation requested without an active
	// subscription.
	ErrNoActiveSubscription = "NO_ACTIVE_SUBSCRIPTION"

	// ErrInvalidClaim: the claim failed structural validation before
	// any chain access.
	ErrInvalidClaim = "INVALID_CLAIM"
)

// PaymentError is the typed failure returned by verification and
// purchase operations.
type PaymentError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError builds a PaymentError with a formatted message.
func NewPaymentError(code, format string, args ...interface{}) *PaymentError {
	return &PaymentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InsufficientAmountData carries both sides of a failed amount
// comparison for diagnostics.
type InsufficientAmountData struct {
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// NewInsufficientAmount builds the INSUFFICIENT_AMOUNT failure carrying
// expected and actual amounts.
func NewInsufficientAmount(expected, actual decimal.Decimal) *PaymentError {
	return &PaymentError{
		Code:    ErrInsufficientAmount,
		Message: fmt.Sprintf("paid %s, expected at least %s", actual, expected),
		Data:    InsufficientAmountData{Expected: expected, Actual: actual},
	}
}

// ErrorCode extracts the failure code from err, or "" if err is not a
// *PaymentError.
func ErrorCode(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
