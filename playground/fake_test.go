package playground

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/stable-net/eip7702-playground/eip7702"
)

const (
	delegatorKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	relayerKeyHex   = "8a1f9a8f95be41cd7ccb6168179afb4504aefe388d1e14474d32c45c72ce7b7a"
)

var (
	testChainID  = big.NewInt(7078815900)
	testTarget   = common.HexToAddress("0x7156526fbd7a3c72969b54f64e42c10fbb768c8a")
	testReceiver = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func mustKey(t *testing.T, s string) *ecdsa.PrivateKey {
	t.Helper()
	key, err := eip7702.HexToPrivateKey(s)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	return key
}

// fakeEth is an in-memory node behind the eth_ namespace. It checks sender
// nonces and applies authorization lists the way a Prague node does, so a
// wrongly chosen authorization nonce shows up as a skipped entry.
type fakeEth struct {
	mu       sync.Mutex
	chainID  *big.Int
	baseFee  *big.Int
	tip      *big.Int // nil makes eth_maxPriorityFeePerGas fail
	nonces   map[common.Address]uint64
	balances map[common.Address]*big.Int
	code     map[common.Address][]byte
	txs      map[common.Hash]*RPCTransaction
	raw      map[common.Hash][]byte
	receipts map[common.Hash]*types.Receipt
	results  map[[4]byte][]byte
	// storage holds getter results written by setter calls, per contract.
	storage map[common.Address]map[[4]byte][]byte
	// pendingPolls is how many receipt lookups report pending first.
	pendingPolls int
	skipped      int
	block        int64
}

func newFakeEth() *fakeEth {
	return &fakeEth{
		chainID:  new(big.Int).Set(testChainID),
		baseFee:  big.NewInt(7),
		tip:      big.NewInt(1_500_000_000),
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*big.Int),
		code:     make(map[common.Address][]byte),
		txs:      make(map[common.Hash]*RPCTransaction),
		raw:      make(map[common.Hash][]byte),
		receipts: make(map[common.Hash]*types.Receipt),
		results:  make(map[[4]byte][]byte),
		storage:  make(map[common.Address]map[[4]byte][]byte),
	}
}

func (f *fakeEth) ChainId() *hexutil.Big {
	return (*hexutil.Big)(f.chainID)
}

func (f *fakeEth) GetTransactionCount(addr common.Address, block string) hexutil.Uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return hexutil.Uint64(f.nonces[addr])
}

func (f *fakeEth) GetBalance(addr common.Address, block string) *hexutil.Big {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[addr]; ok {
		return (*hexutil.Big)(b)
	}
	return (*hexutil.Big)(new(big.Int))
}

func (f *fakeEth) GetCode(addr common.Address, block string) hexutil.Bytes {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[addr]
}

func (f *fakeEth) GetBlockByNumber(number string, full bool) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]any{
		"number":        hexutil.Uint64(f.block),
		"baseFeePerGas": (*hexutil.Big)(f.baseFee),
	}
}

func (f *fakeEth) MaxPriorityFeePerGas() (*hexutil.Big, error) {
	if f.tip == nil {
		return nil, errors.New("the method eth_maxPriorityFeePerGas does not exist")
	}
	return (*hexutil.Big)(f.tip), nil
}

type fakeCallArgs struct {
	To    *common.Address `json:"to"`
	Input *hexutil.Bytes  `json:"input"`
	Data  *hexutil.Bytes  `json:"data"`
}

func (f *fakeEth) Call(args fakeCallArgs, block string) (hexutil.Bytes, error) {
	input := args.Input
	if input == nil {
		input = args.Data
	}
	if input == nil || len(*input) < 4 {
		return nil, errors.New("execution reverted")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	selector := [4]byte((*input)[:4])
	if args.To != nil {
		if out, ok := f.storage[*args.To][selector]; ok {
			return out, nil
		}
	}
	out, ok := f.results[selector]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeEth) EstimateGas(args fakeCallArgs) hexutil.Uint64 {
	return 90_000
}

// fakeGetters maps the target's setters to the getter that reads the value
// back.
var fakeGetters = map[string]string{
	"setUintToKey1": "getUintFromKey1",
	"setX":          "x",
}

// execute applies a setter call on a contract or delegated account.
func (f *fakeEth) execute(to *common.Address, data []byte) {
	if to == nil || len(f.code[*to]) == 0 || len(data) != 36 {
		return
	}
	method, err := batchABI.MethodById(data[:4])
	if err != nil {
		return
	}
	getter, ok := fakeGetters[method.Name]
	if !ok {
		return
	}
	if f.storage[*to] == nil {
		f.storage[*to] = make(map[[4]byte][]byte)
	}
	f.storage[*to][[4]byte(batchABI.Methods[getter].ID)] = append([]byte(nil), data[4:]...)
}

func (f *fakeEth) SendRawTransaction(raw hexutil.Bytes) (common.Hash, error) {
	if len(raw) == 0 {
		return common.Hash{}, errors.New("empty transaction")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var rec *RPCTransaction
	var err error
	switch raw[0] {
	case eip7702.SetCodeTxType:
		rec, err = f.applySetCode(raw)
	case types.DynamicFeeTxType:
		rec, err = f.applyDynamicFee(raw)
	default:
		err = fmt.Errorf("unsupported transaction type %d", raw[0])
	}
	if err != nil {
		return common.Hash{}, err
	}

	hash := crypto.Keccak256Hash(raw)
	f.block++
	rec.Hash = hash
	rec.BlockNumber = (*hexutil.Big)(big.NewInt(f.block))
	f.txs[hash] = rec
	f.raw[hash] = append([]byte(nil), raw...)
	f.receipts[hash] = &types.Receipt{
		Type:              raw[0],
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 50_000,
		GasUsed:           50_000,
		TxHash:            hash,
		BlockNumber:       big.NewInt(f.block),
		Logs:              []*types.Log{},
	}
	if rec.To == nil {
		addr := crypto.CreateAddress(rec.From, uint64(rec.Nonce))
		f.code[addr] = rec.Input
		f.receipts[hash].ContractAddress = addr
	}
	return hash, nil
}

func (f *fakeEth) useNonce(from common.Address, nonce uint64) error {
	if have := f.nonces[from]; have != nonce {
		return fmt.Errorf("nonce mismatch for %s: have %d, tx %d", from.Hex(), have, nonce)
	}
	f.nonces[from]++
	return nil
}

func (f *fakeEth) applySetCode(raw []byte) (*RPCTransaction, error) {
	tx, err := eip7702.DecodeSignedTx(raw)
	if err != nil {
		return nil, err
	}
	if tx.ChainID.Cmp(f.chainID) != 0 {
		return nil, fmt.Errorf("invalid chain id %v", tx.ChainID)
	}
	if len(tx.AuthList) == 0 {
		return nil, errors.New("set code transaction with empty auth list")
	}
	from, err := tx.Sender()
	if err != nil {
		return nil, err
	}
	if err := f.useNonce(from, tx.Nonce); err != nil {
		return nil, err
	}

	for _, auth := range tx.AuthList {
		authority, err := auth.Authority()
		if err != nil {
			f.skipped++
			continue
		}
		if auth.ChainID.Sign() != 0 && auth.ChainID.Cmp(f.chainID) != 0 {
			f.skipped++
			continue
		}
		if auth.Nonce != f.nonces[authority] {
			f.skipped++
			continue
		}
		if code := f.code[authority]; len(code) > 0 {
			if _, ok := eip7702.ParseDelegation(code); !ok {
				f.skipped++
				continue
			}
		}
		if auth.IsRevocation() {
			delete(f.code, authority)
		} else {
			f.code[authority] = eip7702.AddressToDelegation(auth.Address)
		}
		f.nonces[authority]++
	}
	f.execute(tx.To, tx.Data)

	return &RPCTransaction{
		Type:              hexutil.Uint64(eip7702.SetCodeTxType),
		From:              from,
		To:                tx.To,
		Nonce:             hexutil.Uint64(tx.Nonce),
		Gas:               hexutil.Uint64(tx.Gas),
		Value:             (*hexutil.Big)(new(big.Int)),
		Input:             tx.Data,
		ChainID:           (*hexutil.Big)(tx.ChainID),
		AuthorizationList: tx.AuthList,
	}, nil
}

func (f *fakeEth) applyDynamicFee(raw []byte) (*RPCTransaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return nil, err
	}
	if err := f.useNonce(from, tx.Nonce()); err != nil {
		return nil, err
	}
	if to := tx.To(); to != nil && tx.Value().Sign() > 0 {
		bal := f.balances[*to]
		if bal == nil {
			bal = new(big.Int)
		}
		f.balances[*to] = new(big.Int).Add(bal, tx.Value())
	}
	f.execute(tx.To(), tx.Data())
	return &RPCTransaction{
		Type:    hexutil.Uint64(tx.Type()),
		From:    from,
		To:      tx.To(),
		Nonce:   hexutil.Uint64(tx.Nonce()),
		Gas:     hexutil.Uint64(tx.Gas()),
		Value:   (*hexutil.Big)(tx.Value()),
		Input:   tx.Data(),
		ChainID: (*hexutil.Big)(tx.ChainId()),
	}, nil
}

func (f *fakeEth) GetTransactionReceipt(hash common.Hash) *types.Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return nil
	}
	return f.receipts[hash]
}

func (f *fakeEth) GetTransactionByHash(hash common.Hash) *RPCTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txs[hash]
}

func (f *fakeEth) GetRawTransactionByHash(hash common.Hash) *hexutil.Bytes {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.raw[hash]
	if !ok {
		return nil
	}
	b := hexutil.Bytes(raw)
	return &b
}

func (f *fakeEth) nonce(addr common.Address) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[addr]
}

func (f *fakeEth) codeAt(addr common.Address) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[addr]
}

func (f *fakeEth) skippedAuths() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped
}

// newTestClient serves fake over an in-process RPC connection.
func newTestClient(t *testing.T, fake *fakeEth) *Client {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("eth", fake); err != nil {
		t.Fatalf("register fake eth service: %v", err)
	}
	client := NewClient(rpc.DialInProc(server))
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

func newTestRelayer(t *testing.T, fake *fakeEth, cfg RelayerConfig) *Relayer {
	t.Helper()
	if cfg.Delegator == nil {
		cfg.Delegator = mustKey(t, delegatorKeyHex)
	}
	if cfg.Relayer == nil {
		cfg.Relayer = mustKey(t, relayerKeyHex)
	}
	r, err := NewRelayer(context.Background(), newTestClient(t, fake), cfg)
	if err != nil {
		t.Fatalf("NewRelayer: %v", err)
	}
	return r
}
