// Package playground drives EIP-7702 delegation flows against a live node:
// it fetches nonces and fees, builds intents for the eip7702 encoder, submits
// the raw bytes and inspects what the chain did with them.
package playground

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/stable-net/eip7702-playground/eip7702"
)

// DefaultPriorityFee is used when the node does not implement
// eth_maxPriorityFeePerGas.
var DefaultPriorityFee = big.NewInt(1_000_000_000)

// Client is the provider the flows talk to. Errors from the node are
// returned wrapped and never retried.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// FeeData mirrors what a wallet library reports for EIP-1559 pricing.
type FeeData struct {
	BaseFee              *big.Int
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
}

// RPCTransaction is the subset of eth_getTransactionByHash this tool reads.
type RPCTransaction struct {
	Hash              common.Hash                   `json:"hash"`
	Type              hexutil.Uint64                `json:"type"`
	From              common.Address                `json:"from"`
	To                *common.Address               `json:"to"`
	Nonce             hexutil.Uint64                `json:"nonce"`
	Gas               hexutil.Uint64                `json:"gas"`
	Value             *hexutil.Big                  `json:"value"`
	Input             hexutil.Bytes                 `json:"input"`
	ChainID           *hexutil.Big                  `json:"chainId,omitempty"`
	BlockNumber       *hexutil.Big                  `json:"blockNumber"`
	AuthorizationList []eip7702.SignedAuthorization `json:"authorizationList,omitempty"`
}

// Dial connects to an HTTP or WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(c), nil
}

// NewClient wraps an existing RPC connection.
func NewClient(c *rpc.Client) *Client {
	return &Client{rpc: c, eth: ethclient.NewClient(c)}
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	return id, nil
}

// PendingNonce returns the account nonce including queued transactions.
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount %s: %w", addr.Hex(), err)
	}
	return nonce, nil
}

// Balance returns the latest balance of addr.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

// Code returns the code at addr. For a delegated EOA this is the 23-byte
// designator.
func (c *Client) Code(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_getCode %s: %w", addr.Hex(), err)
	}
	return code, nil
}

// StorageAt returns one storage slot of addr.
func (c *Client) StorageAt(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	val, err := c.eth.StorageAt(ctx, addr, slot, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_getStorageAt %s: %w", addr.Hex(), err)
	}
	return common.BytesToHash(val), nil
}

// FeeData derives EIP-1559 fee caps from the latest block: the tip is the
// node's suggestion and the fee cap is twice the base fee plus the tip.
func (c *Client) FeeData(ctx context.Context) (FeeData, error) {
	var head struct {
		BaseFee *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := c.rpc.CallContext(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		return FeeData{}, fmt.Errorf("eth_getBlockByNumber: %w", err)
	}
	if head.BaseFee == nil {
		return FeeData{}, errors.New("latest block has no base fee")
	}
	base := head.BaseFee.ToInt()

	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		var rpcErr rpc.Error
		if !errors.As(err, &rpcErr) {
			return FeeData{}, fmt.Errorf("eth_maxPriorityFeePerGas: %w", err)
		}
		tip = new(big.Int).Set(DefaultPriorityFee)
	}

	maxFee := new(big.Int).Mul(base, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return FeeData{BaseFee: base, MaxPriorityFeePerGas: tip, MaxFeePerGas: maxFee}, nil
}

// SendRawTransaction broadcasts serialized bytes and returns the hash the
// node assigned.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendRawTransaction: %w", err)
	}
	return hash, nil
}

// TransactionReceipt returns ethereum.NotFound while the transaction is pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("eth_getTransactionReceipt %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}

// RawTransaction returns the node's JSON view of a transaction, including the
// authorization list as the node decoded it.
func (c *Client) RawTransaction(ctx context.Context, hash common.Hash) (*RPCTransaction, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash %s: %w", hash.Hex(), err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ethereum.NotFound
	}
	var tx RPCTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", hash.Hex(), err)
	}
	return &tx, nil
}

// RawTransactionBytes returns the signed envelope exactly as it was broadcast.
func (c *Client) RawTransactionBytes(ctx context.Context, hash common.Hash) ([]byte, error) {
	var raw *hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "eth_getRawTransactionByHash", hash); err != nil {
		return nil, fmt.Errorf("eth_getRawTransactionByHash %s: %w", hash.Hex(), err)
	}
	if raw == nil || len(*raw) == 0 {
		return nil, ethereum.NotFound
	}
	return *raw, nil
}

// CallContract executes a read-only call against the latest state.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// EstimateGas asks the node how much gas a call from from would use. A nil to
// estimates a contract creation.
func (c *Client) EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error) {
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: to, Value: value, Data: data})
	if err != nil {
		return 0, fmt.Errorf("eth_estimateGas: %w", err)
	}
	return gas, nil
}
