// Package clients wraps JSON-RPC access to the payment network. It
// fetches transactions and receipts, decodes ERC-20 Transfer events
// against the configured token contract and resolves token decimals.
package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vitwit/paygate/types"
)

// Backend is the slice of the Ethereum RPC surface the client needs.
// *ethclient.Client satisfies it; tests substitute a fake.
type Backend interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// transferTopic is keccak256("Transfer(address,address,uint256)"), the
// first topic of every ERC-20 Transfer log.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// TokenTransfer is one decoded Transfer event.
type TokenTransfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// EVMClient provides read access to one EVM network. It is safe for
// concurrent use and is meant to be constructed once by the composition
// root and shared by reference.
type EVMClient struct {
	network  types.Network
	rpcURL   string
	backend  Backend
	tokenABI abi.ABI
	closer   func()

	mu       sync.Mutex
	chainID  *big.Int
	decimals map[common.Address]uint8
}

// NewEVMClient dials the RPC endpoint and returns a ready client.
func NewEVMClient(network types.Network, rpcURL string) (*EVMClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	c := newWithBackend(network, client)
	c.rpcURL = rpcURL
	c.closer = client.Close
	return c, nil
}

// NewEVMClientWithBackend wraps an existing backend. Used by tests and
// by callers that manage the RPC connection themselves.
func NewEVMClientWithBackend(network types.Network, backend Backend) *EVMClient {
	return newWithBackend(network, backend)
}

func newWithBackend(network types.Network, backend Backend) *EVMClient {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		// The ABI is a compile-time constant; a parse failure is a bug.
		panic(fmt.Sprintf("clients: bad ERC20 ABI: %v", err))
	}
	return &EVMClient{
		network:  network,
		backend:  backend,
		tokenABI: parsed,
		decimals: make(map[common.Address]uint8),
	}
}

// Network returns the network this client is connected to.
func (e *EVMClient) Network() types.Network {
	return e.network
}

// Close releases the underlying RPC connection, if this client owns one.
func (e *EVMClient) Close() {
	if e.closer != nil {
		e.closer()
	}
}

// Transaction fetches a transaction by hash. A pending transaction is
// reported as not found: it has no receipt yet and cannot be verified.
func (e *EVMClient) Transaction(ctx context.Context, hash string) (*ethtypes.Transaction, error) {
	tx, pending, err := e.backend.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, classify(err)
	}
	if pending {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

// Receipt fetches the execution receipt for a mined transaction.
func (e *EVMClient) Receipt(ctx context.Context, hash string) (*ethtypes.Receipt, error) {
	receipt, err := e.backend.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, classify(err)
	}
	return receipt, nil
}

// Sender recovers the from-address of a signed transaction using the
// network's chain id.
func (e *EVMClient) Sender(ctx context.Context, tx *ethtypes.Transaction) (common.Address, error) {
	chainID, err := e.cachedChainID(ctx)
	if err != nil {
		return common.Address{}, err
	}
	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover sender: %w", err)
	}
	return from, nil
}

// Confirmations returns the depth of a mined block below the current
// head, counting the block itself.
func (e *EVMClient) Confirmations(ctx context.Context, blockNumber uint64) (uint64, error) {
	head, err := e.backend.BlockNumber(ctx)
	if err != nil {
		return 0, classify(err)
	}
	if head < blockNumber {
		return 0, nil
	}
	return head - blockNumber + 1, nil
}

// DecodeTransferLogs filters logs down to Transfer events emitted by
// the given token contract. Entries that do not parse as a standard
// Transfer(address,address,uint256) are silently dropped; a malformed
// log from an unrelated contract must never fail verification of a
// well-formed transfer in the same receipt.
func (e *EVMClient) DecodeTransferLogs(logs []*ethtypes.Log, token common.Address) []TokenTransfer {
	var transfers []TokenTransfer
	for _, lg := range logs {
		if lg == nil || lg.Address != token {
			continue
		}
		if len(lg.Topics) != 3 || lg.Topics[0] != transferTopic {
			continue
		}
		if len(lg.Data) != 32 {
			continue
		}
		transfers = append(transfers, TokenTransfer{
			From:   common.BytesToAddress(lg.Topics[1].Bytes()),
			To:     common.BytesToAddress(lg.Topics[2].Bytes()),
			Amount: new(big.Int).SetBytes(lg.Data),
		})
	}
	return transfers
}

// Decimals resolves the decimals() of a token contract, cached per
// address for the lifetime of the client.
func (e *EVMClient) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	e.mu.Lock()
	if d, ok := e.decimals[token]; ok {
		e.mu.Unlock()
		return d, nil
	}
	e.mu.Unlock()

	data, err := e.tokenABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals call: %w", err)
	}
	out, err := e.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, classify(err)
	}
	values, err := e.tokenABI.Unpack("decimals", out)
	if err != nil || len(values) != 1 {
		return 0, fmt.Errorf("%w: bad decimals() response", ErrChainUnavailable)
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: bad decimals() type", ErrChainUnavailable)
	}

	e.mu.Lock()
	e.decimals[token] = d
	e.mu.Unlock()
	return d, nil
}

func (e *EVMClient) cachedChainID(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	if e.chainID != nil {
		id := e.chainID
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	id, err := e.backend.ChainID(ctx)
	if err != nil {
		return nil, classify(err)
	}
	e.mu.Lock()
	e.chainID = id
	e.mu.Unlock()
	return id, nil
}
