// Package verification decides whether a claimed transaction hash
// represents a sufficient payment to the store wallet. It never trusts
// client-supplied amounts: the claim's expected amount is only a floor,
// and the recorded amount always comes from chain data.
package verification

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/vitwit/paygate/clients"
	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/metrics"
	"github.com/vitwit/paygate/types"
	"github.com/vitwit/paygate/utils"
)

// Verifier is the contract for payment verification.
type Verifier interface {
	Verify(ctx context.Context, claim *types.PaymentClaim) (*types.VerifiedPayment, error)
}

// ChainReader is the slice of the chain client the verifier uses.
type ChainReader interface {
	Transaction(ctx context.Context, hash string) (*ethtypes.Transaction, error)
	Receipt(ctx context.Context, hash string) (*ethtypes.Receipt, error)
	Sender(ctx context.Context, tx *ethtypes.Transaction) (common.Address, error)
	Confirmations(ctx context.Context, blockNumber uint64) (uint64, error)
	DecodeTransferLogs(logs []*ethtypes.Log, token common.Address) []clients.TokenTransfer
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

var _ Verifier = (*Service)(nil)

// Service verifies payment claims against one EVM network and one
// accepted token contract. Safe for concurrent use.
type Service struct {
	chain   ChainReader
	token   common.Address
	network types.Network
	timeout time.Duration
	log     logger.Logger
	metrics metrics.Recorder
}

// NewService creates a verification service. timeout bounds each
// verification's chain access.
func NewService(chain ChainReader, token common.Address, network types.Network, timeout time.Duration, log logger.Logger, rec metrics.Recorder) *Service {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Service{
		chain:   chain,
		token:   token,
		network: network,
		timeout: timeout,
		log:     log,
		metrics: rec,
	}
}

// Verify resolves a claim into a verified payment or a typed failure.
func (s *Service) Verify(ctx context.Context, claim *types.PaymentClaim) (*types.VerifiedPayment, error) {
	start := time.Now()
	payment, err := s.verify(ctx, claim)
	s.metrics.ObserveLatency("verify", time.Since(start), map[string]string{"network": s.network.String()})

	outcome := "ok"
	if err != nil {
		outcome = types.ErrorCode(err)
	}
	s.metrics.IncCounter("verify_"+outcome, map[string]string{"network": s.network.String()})
	return payment, err
}

func (s *Service) verify(ctx context.Context, claim *types.PaymentClaim) (*types.VerifiedPayment, error) {
	if err := utils.ValidateClaim(claim); err != nil {
		return nil, types.NewPaymentError(types.ErrInvalidClaim, "invalid claim: %v", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	receipt, err := s.chain.Receipt(verifyCtx, claim.TxHash)
	if err != nil {
		return nil, s.chainFailure(claim.TxHash, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, types.NewPaymentError(types.ErrTxReverted, "transaction %s reverted", claim.TxHash)
	}

	var payment *types.VerifiedPayment
	switch claim.TokenKind {
	case types.TokenNative:
		payment, err = s.verifyNative(verifyCtx, claim)
	default:
		payment, err = s.verifyERC20(verifyCtx, claim, receipt)
	}
	if err != nil {
		return nil, err
	}

	if payment.Amount.LessThan(claim.ExpectedAmount) {
		return nil, types.NewInsufficientAmount(claim.ExpectedAmount, payment.Amount)
	}

	blockNumber := receipt.BlockNumber.Uint64()
	confirmations, err := s.chain.Confirmations(verifyCtx, blockNumber)
	if err != nil {
		return nil, s.chainFailure(claim.TxHash, err)
	}
	payment.BlockNumber = blockNumber
	payment.Confirmations = confirmations

	s.log.Info("payment verified", map[string]any{
		"txHash": payment.TxHash,
		"amount": payment.Amount.String(),
		"payer":  payment.Payer,
	})
	return payment, nil
}

// verifyNative checks a native-coin transfer: the transaction itself
// must target the recipient, and the paid amount is its value field at
// the network's fixed 18-decimal exponent.
func (s *Service) verifyNative(ctx context.Context, claim *types.PaymentClaim) (*types.VerifiedPayment, error) {
	tx, err := s.chain.Transaction(ctx, claim.TxHash)
	if err != nil {
		return nil, s.chainFailure(claim.TxHash, err)
	}
	if tx.To() == nil || !utils.SameAddress(tx.To().Hex(), claim.Recipient) {
		return nil, types.NewPaymentError(types.ErrRecipientMismatch,
			"transaction %s does not pay the store wallet", claim.TxHash)
	}
	payer, err := s.chain.Sender(ctx, tx)
	if err != nil {
		return nil, s.chainFailure(claim.TxHash, err)
	}
	return &types.VerifiedPayment{
		TxHash: claim.TxHash,
		Amount: utils.FromRawAmount(tx.Value(), types.NativeDecimals),
		Payer:  payer.Hex(),
	}, nil
}

// verifyERC20 checks a token transfer: among the receipt's Transfer
// events emitted by the accepted token contract, the first one whose
// destination is the recipient carries the paid amount.
func (s *Service) verifyERC20(ctx context.Context, claim *types.PaymentClaim, receipt *ethtypes.Receipt) (*types.VerifiedPayment, error) {
	transfers := s.chain.DecodeTransferLogs(receipt.Logs, s.token)

	var match *clients.TokenTransfer
	for i := range transfers {
		if utils.SameAddress(transfers[i].To.Hex(), claim.Recipient) {
			match = &transfers[i]
			break
		}
	}
	if match == nil {
		return nil, types.NewPaymentError(types.ErrRecipientMismatch,
			"transaction %s has no token transfer to the store wallet", claim.TxHash)
	}

	decimals, err := s.chain.Decimals(ctx, s.token)
	if err != nil {
		return nil, s.chainFailure(claim.TxHash, err)
	}
	return &types.VerifiedPayment{
		TxHash: claim.TxHash,
		Amount: utils.FromRawAmount(match.Amount, int32(decimals)),
		Payer:  match.From.Hex(),
	}, nil
}

func (s *Service) chainFailure(txHash string, err error) *types.PaymentError {
	switch {
	case errors.Is(err, clients.ErrTransactionNotFound):
		return types.NewPaymentError(types.ErrTxNotFound, "transaction %s not found on chain", txHash)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.log.Warn("chain access timed out", map[string]any{"txHash": txHash})
		return types.NewPaymentError(types.ErrChainUnavailable, "chain access timed out")
	default:
		s.log.Error("chain access failed", map[string]any{"txHash": txHash, "error": err.Error()})
		return types.NewPaymentError(types.ErrChainUnavailable, "chain access failed: %v", err)
	}
}
