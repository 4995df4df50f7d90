package playground

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"golang.org/x/sync/errgroup"

	"github.com/stable-net/eip7702-playground/eip7702"
)

// Mode selects who sends a flow's transactions.
type Mode int

const (
	// ByRelayer has the relayer pay for and broadcast the transaction.
	ByRelayer Mode = iota
	// ByDelegator has the delegating account send its own transaction.
	ByDelegator
)

func (m Mode) String() string {
	if m == ByDelegator {
		return "delegator"
	}
	return "relayer"
}

// RelayerConfig configures a Relayer.
type RelayerConfig struct {
	Delegator *ecdsa.PrivateKey
	Relayer   *ecdsa.PrivateKey
	// ChainID, when set, must match the node.
	ChainID *big.Int
	// ExplorerURL is prefixed to tx/<hash> in results.
	ExplorerURL string
	// GasLimit overrides DefaultGasLimit when non-zero.
	GasLimit uint64
	// WaitInterval, when non-zero, makes every flow wait for its receipts.
	WaitInterval time.Duration
}

// Relayer runs the delegation flows for one delegator/relayer pair.
type Relayer struct {
	client    *Client
	chainID   *big.Int
	delegator *ecdsa.PrivateKey
	relayer   *ecdsa.PrivateKey
	explorer  string
	gasLimit  uint64
	wait      time.Duration
	log       log.Logger
	locks     signerLocks
}

// FlowResult describes what a flow submitted.
type FlowResult struct {
	Name           string
	TxHashes       []common.Hash
	Links          []string
	RawTxs         [][]byte
	Authorizations []eip7702.SignedAuthorization
	Receipts       []*types.Receipt
	Details        map[string]any
}

// NewRelayer checks the node's chain id and returns a Relayer bound to it.
func NewRelayer(ctx context.Context, client *Client, cfg RelayerConfig) (*Relayer, error) {
	if cfg.Delegator == nil || cfg.Relayer == nil {
		return nil, errors.New("delegator and relayer keys are required")
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.ChainID != nil && cfg.ChainID.Cmp(chainID) != 0 {
		return nil, fmt.Errorf("configured chain id %v does not match node chain id %v", cfg.ChainID, chainID)
	}
	r := &Relayer{
		client:    client,
		chainID:   chainID,
		delegator: cfg.Delegator,
		relayer:   cfg.Relayer,
		explorer:  cfg.ExplorerURL,
		gasLimit:  cfg.GasLimit,
		wait:      cfg.WaitInterval,
	}
	r.log = log.New("chain", chainID, "delegator", r.DelegatorAddress(), "relayer", r.RelayerAddress())
	return r, nil
}

// ChainID returns the chain the relayer signs for.
func (r *Relayer) ChainID() *big.Int { return new(big.Int).Set(r.chainID) }

// DelegatorAddress returns the account whose code the flows change.
func (r *Relayer) DelegatorAddress() common.Address { return eip7702.AddressOf(r.delegator) }

// RelayerAddress returns the account that pays for relayed flows.
func (r *Relayer) RelayerAddress() common.Address { return eip7702.AddressOf(r.relayer) }

func (r *Relayer) sender(mode Mode) *ecdsa.PrivateKey {
	if mode == ByDelegator {
		return r.delegator
	}
	return r.relayer
}

func (r *Relayer) newResult(name string) *FlowResult {
	return &FlowResult{Name: name, Details: make(map[string]any)}
}

// txPlan is one transaction of a flow before fees and gas are filled in.
type txPlan struct {
	to    common.Address
	value *big.Int
	data  []byte
	auths []eip7702.SignedAuthorization
}

// nonces reads the pending nonces a flow needs: the sender's and the
// delegator's, which are the same account in delegator mode.
func (r *Relayer) nonces(ctx context.Context, mode Mode) (senderNonce, delegatorNonce uint64, err error) {
	delegatorNonce, err = r.client.PendingNonce(ctx, r.DelegatorAddress())
	if err != nil {
		return 0, 0, err
	}
	sender := eip7702.AddressOf(r.sender(mode))
	if sender == r.DelegatorAddress() {
		return delegatorNonce, delegatorNonce, nil
	}
	senderNonce, err = r.client.PendingNonce(ctx, sender)
	if err != nil {
		return 0, 0, err
	}
	return senderNonce, delegatorNonce, nil
}

// selfSubmitted reports whether the delegator sends the transaction that
// carries its own authorization.
func (r *Relayer) selfSubmitted(mode Mode) bool {
	return eip7702.AddressOf(r.sender(mode)) == r.DelegatorAddress()
}

func (r *Relayer) authorize(target common.Address, nonce uint64) (eip7702.SignedAuthorization, error) {
	auth, err := eip7702.SignAuthorization(r.chainID, nonce, r.delegator, target)
	if err != nil {
		return eip7702.SignedAuthorization{}, err
	}
	authority, err := auth.Authority()
	if err != nil {
		return eip7702.SignedAuthorization{}, err
	}
	if authority != r.DelegatorAddress() {
		return eip7702.SignedAuthorization{}, fmt.Errorf("authority mismatch: got %s, want %s", authority.Hex(), r.DelegatorAddress().Hex())
	}
	r.log.Debug("Signed authorization", "target", target, "nonce", nonce)
	return auth, nil
}

// send signs the planned transactions starting at nonce and broadcasts them
// in order.
func (r *Relayer) send(ctx context.Context, res *FlowResult, key *ecdsa.PrivateKey, nonce uint64, plans ...txPlan) error {
	fees, err := r.client.FeeData(ctx)
	if err != nil {
		return err
	}
	res.Details["maxFeePerGas"] = fees.MaxFeePerGas
	res.Details["maxPriorityFeePerGas"] = fees.MaxPriorityFeePerGas

	from := eip7702.AddressOf(key)
	for _, p := range plans {
		to := p.to
		intent := eip7702.TxIntent{
			ChainID:   r.chainID,
			Nonce:     nonce,
			GasTipCap: fees.MaxPriorityFeePerGas,
			GasFeeCap: fees.MaxFeePerGas,
			To:        &to,
			Value:     p.value,
			Data:      p.data,
			AuthList:  p.auths,
		}
		intent.Gas = r.gasLimit
		if intent.Gas == 0 {
			intent.Gas = DefaultGasLimit(intent)
		}

		signed, err := eip7702.SignTx(intent, key)
		if err != nil {
			return err
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return err
		}
		hash, err := r.client.SendRawTransaction(ctx, raw)
		if err != nil {
			return err
		}
		if local, err := signed.Hash(); err == nil && local != hash {
			r.log.Warn("Node returned unexpected transaction hash", "local", local, "node", hash)
		}
		r.log.Info("Submitted transaction", "flow", res.Name, "hash", hash, "nonce", intent.Nonce, "auths", len(p.auths), "gas", intent.Gas)
		r.record(res, hash, raw)
		res.Authorizations = append(res.Authorizations, p.auths...)

		// the sender's own authorizations bump its nonce too
		nonce++
		for _, a := range p.auths {
			if authority, err := a.Authority(); err == nil && authority == from {
				nonce++
			}
		}
	}
	return r.await(ctx, res)
}

func (r *Relayer) record(res *FlowResult, hash common.Hash, raw []byte) {
	res.TxHashes = append(res.TxHashes, hash)
	res.RawTxs = append(res.RawTxs, raw)
	if r.explorer != "" {
		res.Links = append(res.Links, TxURL(r.explorer, hash))
	}
}

func (r *Relayer) await(ctx context.Context, res *FlowResult) error {
	if r.wait == 0 {
		return nil
	}
	return r.awaitEvery(ctx, res, r.wait)
}

// awaitEvery waits for the receipts res does not have yet.
func (r *Relayer) awaitEvery(ctx context.Context, res *FlowResult, interval time.Duration) error {
	for _, hash := range res.TxHashes[len(res.Receipts):] {
		receipt, err := WaitForReceipt(ctx, r.client, hash, interval)
		if err != nil {
			return err
		}
		res.Receipts = append(res.Receipts, receipt)
		if receipt.Status != types.ReceiptStatusSuccessful {
			r.log.Warn("Transaction failed", "flow", res.Name, "hash", hash, "block", receipt.BlockNumber)
		}
	}
	return nil
}

// pollInterval is how often flows that need a receipt poll for it.
func (r *Relayer) pollInterval() time.Duration {
	if r.wait != 0 {
		return r.wait
	}
	return defaultPollInterval
}

const defaultPollInterval = time.Second

// plainCall is a transaction without authorizations. A nil to creates a
// contract.
type plainCall struct {
	to    *common.Address
	value *big.Int
	data  []byte
	// gas is used when the relayer has no gas limit; zero asks the node.
	gas uint64
}

// sendCalls signs calls as dynamic-fee transactions from key starting at
// nonce and broadcasts them in order.
func (r *Relayer) sendCalls(ctx context.Context, res *FlowResult, key *ecdsa.PrivateKey, nonce uint64, calls ...plainCall) error {
	fees, err := r.client.FeeData(ctx)
	if err != nil {
		return err
	}
	from := eip7702.AddressOf(key)
	signer := types.LatestSignerForChainID(r.chainID)
	for _, c := range calls {
		gas := r.gasLimit
		if gas == 0 {
			gas = c.gas
		}
		if gas == 0 {
			if gas, err = r.client.EstimateGas(ctx, from, c.to, c.value, c.data); err != nil {
				return err
			}
		}
		value := c.value
		if value == nil {
			value = new(big.Int)
		}
		tx, err := types.SignNewTx(key, signer, &types.DynamicFeeTx{
			ChainID:   r.chainID,
			Nonce:     nonce,
			GasTipCap: fees.MaxPriorityFeePerGas,
			GasFeeCap: fees.MaxFeePerGas,
			Gas:       gas,
			To:        c.to,
			Value:     value,
			Data:      c.data,
		})
		if err != nil {
			return fmt.Errorf("sign transaction: %w", err)
		}
		raw, err := tx.MarshalBinary()
		if err != nil {
			return err
		}
		hash, err := r.client.SendRawTransaction(ctx, raw)
		if err != nil {
			return err
		}
		r.log.Info("Submitted transaction", "flow", res.Name, "hash", hash, "nonce", nonce, "to", c.to, "value", value, "gas", gas)
		r.record(res, hash, raw)
		nonce++
	}
	return nil
}

// Delegate installs target's code on the delegator.
func (r *Relayer) Delegate(ctx context.Context, target common.Address, mode Mode) (*FlowResult, error) {
	return r.setCode(ctx, "delegate", target, mode)
}

// Revert clears the delegator's code by delegating to the zero address.
func (r *Relayer) Revert(ctx context.Context, mode Mode) (*FlowResult, error) {
	return r.setCode(ctx, "revert", eip7702.ZeroAddress, mode)
}

func (r *Relayer) setCode(ctx context.Context, name string, target common.Address, mode Mode) (*FlowResult, error) {
	key := r.sender(mode)
	defer r.locks.lock(r.DelegatorAddress(), eip7702.AddressOf(key))()

	res := r.newResult(name)
	senderNonce, delegatorNonce, err := r.nonces(ctx, mode)
	if err != nil {
		return nil, err
	}
	authNonce := AuthNonce(delegatorNonce, r.selfSubmitted(mode), 0)
	auth, err := r.authorize(target, authNonce)
	if err != nil {
		return nil, err
	}
	res.Details["mode"] = mode.String()
	res.Details["target"] = target
	res.Details["txNonce"] = senderNonce
	res.Details["authNonce"] = authNonce

	err = r.send(ctx, res, key, senderNonce, txPlan{to: eip7702.ZeroAddress, auths: []eip7702.SignedAuthorization{auth}})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DelegateAndExecute delegates to target and, in the same transaction, calls
// execute(calls) on the delegator so the new code runs immediately.
func (r *Relayer) DelegateAndExecute(ctx context.Context, target common.Address, calls []Call, mode Mode) (*FlowResult, error) {
	data, err := EncodeExecute(calls)
	if err != nil {
		return nil, err
	}
	key := r.sender(mode)
	defer r.locks.lock(r.DelegatorAddress(), eip7702.AddressOf(key))()

	res := r.newResult("delegate-and-execute")
	senderNonce, delegatorNonce, err := r.nonces(ctx, mode)
	if err != nil {
		return nil, err
	}
	authNonce := AuthNonce(delegatorNonce, r.selfSubmitted(mode), 0)
	auth, err := r.authorize(target, authNonce)
	if err != nil {
		return nil, err
	}
	res.Details["mode"] = mode.String()
	res.Details["target"] = target
	res.Details["calls"] = len(calls)
	res.Details["authNonce"] = authNonce

	err = r.send(ctx, res, key, senderNonce, txPlan{to: r.DelegatorAddress(), data: data, auths: []eip7702.SignedAuthorization{auth}})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DelegateExecuteRevert sends two transactions back to back: the first
// delegates and runs the batch, the second reverts the delegator. Both
// authorizations are signed up front, so the second one's nonce accounts for
// everything the first transaction consumes.
func (r *Relayer) DelegateExecuteRevert(ctx context.Context, target common.Address, calls []Call, mode Mode) (*FlowResult, error) {
	data, err := EncodeExecute(calls)
	if err != nil {
		return nil, err
	}
	key := r.sender(mode)
	defer r.locks.lock(r.DelegatorAddress(), eip7702.AddressOf(key))()

	res := r.newResult("delegate-execute-revert")
	senderNonce, delegatorNonce, err := r.nonces(ctx, mode)
	if err != nil {
		return nil, err
	}
	self := r.selfSubmitted(mode)
	delegateNonce := AuthNonce(delegatorNonce, self, 0)
	// the delegate authorization, and the first transaction when self
	// submitted, both come before the revert
	preceding := uint64(1)
	if self {
		preceding = 2
	}
	revertNonce := AuthNonce(delegatorNonce, self, preceding)

	delegate, err := r.authorize(target, delegateNonce)
	if err != nil {
		return nil, err
	}
	revert, err := r.authorize(eip7702.ZeroAddress, revertNonce)
	if err != nil {
		return nil, err
	}
	res.Details["mode"] = mode.String()
	res.Details["target"] = target
	res.Details["authNonces"] = []uint64{delegateNonce, revertNonce}

	err = r.send(ctx, res, key, senderNonce,
		txPlan{to: r.DelegatorAddress(), data: data, auths: []eip7702.SignedAuthorization{delegate}},
		txPlan{to: eip7702.ZeroAddress, auths: []eip7702.SignedAuthorization{revert}},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DelegateAndRevert puts two entries in one authorization list: delegate to
// target, then revert. The entries apply in order, so the account ends the
// transaction without code and the execute call in data sees an EOA.
func (r *Relayer) DelegateAndRevert(ctx context.Context, target common.Address, calls []Call, mode Mode) (*FlowResult, error) {
	data, err := EncodeExecute(calls)
	if err != nil {
		return nil, err
	}
	key := r.sender(mode)
	defer r.locks.lock(r.DelegatorAddress(), eip7702.AddressOf(key))()

	res := r.newResult("delegate-and-revert")
	senderNonce, delegatorNonce, err := r.nonces(ctx, mode)
	if err != nil {
		return nil, err
	}
	self := r.selfSubmitted(mode)
	delegate, err := r.authorize(target, AuthNonce(delegatorNonce, self, 0))
	if err != nil {
		return nil, err
	}
	revert, err := r.authorize(eip7702.ZeroAddress, AuthNonce(delegatorNonce, self, 1))
	if err != nil {
		return nil, err
	}
	res.Details["mode"] = mode.String()
	res.Details["target"] = target
	res.Details["authNonces"] = []uint64{delegate.Nonce, revert.Nonce}

	err = r.send(ctx, res, key, senderNonce, txPlan{
		to:    r.DelegatorAddress(),
		data:  data,
		auths: []eip7702.SignedAuthorization{delegate, revert},
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DelegateEphemeral delegates a freshly generated account that has never
// held funds. Its authorization uses chain id 0 and nonce 0, so it is valid on
// any chain.
func (r *Relayer) DelegateEphemeral(ctx context.Context, target common.Address) (*FlowResult, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	auth, err := eip7702.SignAuthorization(big.NewInt(0), 0, key, target)
	if err != nil {
		return nil, err
	}
	defer r.locks.lock(r.RelayerAddress())()

	res := r.newResult("delegate-ephemeral")
	nonce, err := r.client.PendingNonce(ctx, r.RelayerAddress())
	if err != nil {
		return nil, err
	}
	res.Details["authority"] = eip7702.AddressOf(key)
	res.Details["target"] = target

	err = r.send(ctx, res, r.relayer, nonce, txPlan{to: eip7702.ZeroAddress, auths: []eip7702.SignedAuthorization{auth}})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DelegateAndCallTarget delegates to target and, in the same transaction,
// calls setUintToKey1(value) on the target contract itself. The delegation
// and the call are independent: the write lands in the target's storage.
func (r *Relayer) DelegateAndCallTarget(ctx context.Context, target common.Address, value *big.Int, mode Mode) (*FlowResult, error) {
	data, err := EncodeSetUintToKey1(value)
	if err != nil {
		return nil, err
	}
	key := r.sender(mode)
	defer r.locks.lock(r.DelegatorAddress(), eip7702.AddressOf(key))()

	res := r.newResult("delegate-and-call-target")
	senderNonce, delegatorNonce, err := r.nonces(ctx, mode)
	if err != nil {
		return nil, err
	}
	auth, err := r.authorize(target, AuthNonce(delegatorNonce, r.selfSubmitted(mode), 0))
	if err != nil {
		return nil, err
	}
	res.Details["mode"] = mode.String()
	res.Details["target"] = target
	res.Details["authNonce"] = auth.Nonce
	res.Details["setUintToKey1"] = value

	err = r.send(ctx, res, key, senderNonce, txPlan{to: target, data: data, auths: []eip7702.SignedAuthorization{auth}})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// nickGasLimit is the gas of a keyless delegation; its sender is funded for
// exactly this much at the max fee.
const nickGasLimit = 50_000

// DelegateViaNick delegates the delegator from a sender nobody holds the key
// for. The type-4 transaction gets a made-up signature, the address it
// recovers to is funded by the relayer, and the raw transaction is then
// broadcast as is.
func (r *Relayer) DelegateViaNick(ctx context.Context, target common.Address) (*FlowResult, error) {
	defer r.locks.lock(r.DelegatorAddress(), r.RelayerAddress())()

	res := r.newResult("delegate-via-nick")
	delegatorNonce, err := r.client.PendingNonce(ctx, r.DelegatorAddress())
	if err != nil {
		return nil, err
	}
	auth, err := r.authorize(target, AuthNonce(delegatorNonce, false, 0))
	if err != nil {
		return nil, err
	}
	fees, err := r.client.FeeData(ctx)
	if err != nil {
		return nil, err
	}
	gas := r.gasLimit
	if gas == 0 {
		gas = nickGasLimit
	}
	to := eip7702.ZeroAddress
	raw, sender, err := keylessEnvelope(eip7702.TxIntent{
		ChainID:   r.chainID,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       gas,
		To:        &to,
		AuthList:  []eip7702.SignedAuthorization{auth},
	})
	if err != nil {
		return nil, err
	}
	funding := new(big.Int).Mul(fees.MaxFeePerGas, new(big.Int).SetUint64(gas))
	res.Details["target"] = target
	res.Details["authNonce"] = auth.Nonce
	res.Details["sender"] = sender
	res.Details["funding"] = funding
	r.log.Debug("Built keyless transaction", "sender", sender, "funding", funding)

	relayerNonce, err := r.client.PendingNonce(ctx, r.RelayerAddress())
	if err != nil {
		return nil, err
	}
	if err := r.sendCalls(ctx, res, r.relayer, relayerNonce, plainCall{to: &sender, value: funding, gas: params.TxGas}); err != nil {
		return nil, err
	}
	// the sender can only pay once the funding is mined
	if err := r.awaitEvery(ctx, res, r.pollInterval()); err != nil {
		return nil, err
	}

	hash, err := r.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, err
	}
	r.log.Info("Submitted transaction", "flow", res.Name, "hash", hash, "from", sender, "auths", 1)
	r.record(res, hash, raw)
	res.Authorizations = append(res.Authorizations, auth)

	if err := r.awaitEvery(ctx, res, r.pollInterval()); err != nil {
		return nil, err
	}
	return res, nil
}

// maxKeylessAttempts bounds the search for a recoverable made-up signature;
// each attempt succeeds about half the time.
const maxKeylessAttempts = 64

// keylessEnvelope signs intent with random signature values and returns the
// serialized transaction with the sender they recover to.
func keylessEnvelope(intent eip7702.TxIntent) ([]byte, common.Address, error) {
	n := crypto.S256().Params().N
	halfN := new(big.Int).Rsh(n, 1)
	for range maxKeylessAttempts {
		rKey, err := crypto.GenerateKey()
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("generate signature: %w", err)
		}
		sKey, err := crypto.GenerateKey()
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("generate signature: %w", err)
		}
		s := new(big.Int).Set(sKey.D)
		if s.Cmp(halfN) > 0 {
			s.Sub(n, s)
		}
		raw, err := eip7702.EncodeEnvelope(intent, &eip7702.Signature{R: new(big.Int).Set(rKey.D), S: s})
		if err != nil {
			return nil, common.Address{}, err
		}
		if sender, err := eip7702.Sender(raw); err == nil {
			return raw, sender, nil
		}
	}
	return nil, common.Address{}, errors.New("no recoverable signature found")
}

// ExecuteBatch calls execute(calls) on the already delegated delegator. The
// call carries no authorization, and nodes reject type-4 transactions with an
// empty list, so it goes out as a dynamic-fee transaction.
func (r *Relayer) ExecuteBatch(ctx context.Context, calls []Call, mode Mode) (*FlowResult, error) {
	data, err := EncodeExecute(calls)
	if err != nil {
		return nil, err
	}
	key := r.sender(mode)
	from := eip7702.AddressOf(key)
	defer r.locks.lock(from)()

	res := r.newResult("execute-batch")
	status, err := DelegationStatus(ctx, r.client, r.DelegatorAddress())
	if err != nil {
		return nil, err
	}
	if !status.Delegated {
		return nil, fmt.Errorf("%s has no delegation, run a delegate flow first", r.DelegatorAddress().Hex())
	}
	res.Details["delegatedTo"] = status.Target

	nonce, err := r.client.PendingNonce(ctx, from)
	if err != nil {
		return nil, err
	}
	to := r.DelegatorAddress()
	batch := plainCall{to: &to, data: data, gas: DefaultGasLimit(eip7702.TxIntent{To: &to, Data: data})}
	if err := r.sendCalls(ctx, res, key, nonce, batch); err != nil {
		return nil, err
	}
	res.Details["calls"] = len(calls)
	res.Details["totalValue"] = TotalValue(calls)

	if err := r.await(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// NamedAccount labels an address in nonce and balance listings.
type NamedAccount struct {
	Name    string
	Address common.Address
}

// AccountState is the pending nonce and balance of one account.
type AccountState struct {
	NamedAccount
	Nonce   uint64
	Balance *big.Int
}

// Accounts returns the delegator and relayer, plus receiver when it is set.
func (r *Relayer) Accounts(receiver common.Address) []NamedAccount {
	accounts := []NamedAccount{
		{Name: "delegator", Address: r.DelegatorAddress()},
		{Name: "relayer", Address: r.RelayerAddress()},
	}
	if receiver != (common.Address{}) {
		accounts = append(accounts, NamedAccount{Name: "receiver", Address: receiver})
	}
	return accounts
}

// Nonces fetches the pending nonce and balance of every account concurrently.
func Nonces(ctx context.Context, client *Client, accounts []NamedAccount) ([]AccountState, error) {
	states := make([]AccountState, len(accounts))
	g, ctx := errgroup.WithContext(ctx)
	for i, acc := range accounts {
		g.Go(func() error {
			nonce, err := client.PendingNonce(ctx, acc.Address)
			if err != nil {
				return fmt.Errorf("%s: %w", acc.Name, err)
			}
			bal, err := client.Balance(ctx, acc.Address)
			if err != nil {
				return fmt.Errorf("%s: %w", acc.Name, err)
			}
			states[i] = AccountState{NamedAccount: acc, Nonce: nonce, Balance: bal}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}
