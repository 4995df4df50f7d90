package playground

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/stable-net/eip7702-playground/eip7702"
)

func TestNewRelayer(t *testing.T) {
	fake := newFakeEth()
	client := newTestClient(t, fake)
	delegator := mustKey(t, delegatorKeyHex)
	relayer := mustKey(t, relayerKeyHex)

	if _, err := NewRelayer(context.Background(), client, RelayerConfig{Delegator: delegator}); err == nil {
		t.Error("expected error without relayer key")
	}
	_, err := NewRelayer(context.Background(), client, RelayerConfig{Delegator: delegator, Relayer: relayer, ChainID: big.NewInt(1)})
	if err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Errorf("expected chain id mismatch, got %v", err)
	}
	r, err := NewRelayer(context.Background(), client, RelayerConfig{Delegator: delegator, Relayer: relayer, ChainID: testChainID})
	if err != nil {
		t.Fatalf("NewRelayer: %v", err)
	}
	if r.ChainID().Cmp(testChainID) != 0 {
		t.Errorf("chain id = %v, want %v", r.ChainID(), testChainID)
	}
}

func TestDelegate(t *testing.T) {
	tests := []struct {
		mode          Mode
		authNonce     uint64
		delegatorNext uint64
		relayerNext   uint64
	}{
		{ByRelayer, 0, 1, 1},
		{ByDelegator, 1, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			fake := newFakeEth()
			r := newTestRelayer(t, fake, RelayerConfig{ExplorerURL: "https://explorer.mekong.ethpandaops.io/"})

			res, err := r.Delegate(context.Background(), testTarget, tt.mode)
			if err != nil {
				t.Fatalf("Delegate: %v", err)
			}
			if len(res.TxHashes) != 1 || len(res.Authorizations) != 1 {
				t.Fatalf("got %d txs and %d authorizations", len(res.TxHashes), len(res.Authorizations))
			}
			if got := res.Authorizations[0].Nonce; got != tt.authNonce {
				t.Errorf("auth nonce = %d, want %d", got, tt.authNonce)
			}
			if fake.skippedAuths() != 0 {
				t.Errorf("node skipped %d authorizations", fake.skippedAuths())
			}
			if got := fake.codeAt(r.DelegatorAddress()); !bytes.Equal(got, eip7702.AddressToDelegation(testTarget)) {
				t.Errorf("delegator code = %x", got)
			}
			if got := fake.nonce(r.DelegatorAddress()); got != tt.delegatorNext {
				t.Errorf("delegator nonce = %d, want %d", got, tt.delegatorNext)
			}
			if got := fake.nonce(r.RelayerAddress()); got != tt.relayerNext {
				t.Errorf("relayer nonce = %d, want %d", got, tt.relayerNext)
			}
			want := "https://explorer.mekong.ethpandaops.io/tx/" + res.TxHashes[0].Hex()
			if len(res.Links) != 1 || res.Links[0] != want {
				t.Errorf("links = %v, want %s", res.Links, want)
			}
		})
	}
}

func TestRevert(t *testing.T) {
	for _, mode := range []Mode{ByRelayer, ByDelegator} {
		t.Run(mode.String(), func(t *testing.T) {
			fake := newFakeEth()
			r := newTestRelayer(t, fake, RelayerConfig{})

			if _, err := r.Delegate(context.Background(), testTarget, mode); err != nil {
				t.Fatalf("Delegate: %v", err)
			}
			res, err := r.Revert(context.Background(), mode)
			if err != nil {
				t.Fatalf("Revert: %v", err)
			}
			if !res.Authorizations[0].IsRevocation() {
				t.Error("revert authorization does not target the zero address")
			}
			if code := fake.codeAt(r.DelegatorAddress()); len(code) != 0 {
				t.Errorf("delegator still has code %x", code)
			}
			if fake.skippedAuths() != 0 {
				t.Errorf("node skipped %d authorizations", fake.skippedAuths())
			}
		})
	}
}

func TestDelegateAndExecute(t *testing.T) {
	fake := newFakeEth()
	r := newTestRelayer(t, fake, RelayerConfig{})
	calls := DefaultCalls(r.DelegatorAddress(), r.RelayerAddress(), testReceiver)

	res, err := r.DelegateAndExecute(context.Background(), testTarget, calls, ByRelayer)
	if err != nil {
		t.Fatalf("DelegateAndExecute: %v", err)
	}
	tx := fake.GetTransactionByHash(res.TxHashes[0])
	if tx == nil {
		t.Fatal("transaction not recorded")
	}
	if tx.To == nil || *tx.To != r.DelegatorAddress() {
		t.Errorf("to = %v, want delegator", tx.To)
	}
	want, _ := EncodeExecute(calls)
	if !bytes.Equal(tx.Input, want) {
		t.Error("input is not the execute calldata")
	}
	if got := fake.codeAt(r.DelegatorAddress()); !bytes.Equal(got, eip7702.AddressToDelegation(testTarget)) {
		t.Errorf("delegator code = %x", got)
	}
}

func TestDelegateExecuteRevert(t *testing.T) {
	tests := []struct {
		mode          Mode
		authNonces    []uint64
		delegatorNext uint64
	}{
		{ByRelayer, []uint64{0, 1}, 2},
		{ByDelegator, []uint64{1, 3}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			fake := newFakeEth()
			r := newTestRelayer(t, fake, RelayerConfig{})
			calls := DefaultCalls(r.DelegatorAddress(), r.RelayerAddress(), testReceiver)

			res, err := r.DelegateExecuteRevert(context.Background(), testTarget, calls, tt.mode)
			if err != nil {
				t.Fatalf("DelegateExecuteRevert: %v", err)
			}
			if len(res.TxHashes) != 2 {
				t.Fatalf("got %d transactions, want 2", len(res.TxHashes))
			}
			for i, want := range tt.authNonces {
				if got := res.Authorizations[i].Nonce; got != want {
					t.Errorf("auth[%d] nonce = %d, want %d", i, got, want)
				}
			}
			if fake.skippedAuths() != 0 {
				t.Errorf("node skipped %d authorizations", fake.skippedAuths())
			}
			if code := fake.codeAt(r.DelegatorAddress()); len(code) != 0 {
				t.Errorf("delegator still has code %x", code)
			}
			if got := fake.nonce(r.DelegatorAddress()); got != tt.delegatorNext {
				t.Errorf("delegator nonce = %d, want %d", got, tt.delegatorNext)
			}
		})
	}
}

func TestDelegateAndRevert(t *testing.T) {
	tests := []struct {
		mode          Mode
		authNonces    []uint64
		delegatorNext uint64
	}{
		{ByRelayer, []uint64{0, 1}, 2},
		{ByDelegator, []uint64{1, 2}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			fake := newFakeEth()
			r := newTestRelayer(t, fake, RelayerConfig{})
			calls := DefaultCalls(r.DelegatorAddress(), r.RelayerAddress(), testReceiver)

			res, err := r.DelegateAndRevert(context.Background(), testTarget, calls, tt.mode)
			if err != nil {
				t.Fatalf("DelegateAndRevert: %v", err)
			}
			if len(res.TxHashes) != 1 || len(res.Authorizations) != 2 {
				t.Fatalf("got %d txs and %d authorizations", len(res.TxHashes), len(res.Authorizations))
			}
			for i, want := range tt.authNonces {
				if got := res.Authorizations[i].Nonce; got != want {
					t.Errorf("auth[%d] nonce = %d, want %d", i, got, want)
				}
			}
			if fake.skippedAuths() != 0 {
				t.Errorf("node skipped %d authorizations", fake.skippedAuths())
			}
			if code := fake.codeAt(r.DelegatorAddress()); len(code) != 0 {
				t.Errorf("delegator still has code %x", code)
			}
			if got := fake.nonce(r.DelegatorAddress()); got != tt.delegatorNext {
				t.Errorf("delegator nonce = %d, want %d", got, tt.delegatorNext)
			}
		})
	}
}

func TestDelegateEphemeral(t *testing.T) {
	fake := newFakeEth()
	r := newTestRelayer(t, fake, RelayerConfig{})

	res, err := r.DelegateEphemeral(context.Background(), testTarget)
	if err != nil {
		t.Fatalf("DelegateEphemeral: %v", err)
	}
	auth := res.Authorizations[0]
	if auth.ChainID.Sign() != 0 || auth.Nonce != 0 {
		t.Errorf("authorization chainId=%v nonce=%d, want 0/0", auth.ChainID, auth.Nonce)
	}
	authority, ok := res.Details["authority"].(common.Address)
	if !ok {
		t.Fatalf("authority detail missing: %v", res.Details)
	}
	if authority == r.DelegatorAddress() || authority == r.RelayerAddress() {
		t.Error("ephemeral authority reuses a configured account")
	}
	if got := fake.codeAt(authority); !bytes.Equal(got, eip7702.AddressToDelegation(testTarget)) {
		t.Errorf("authority code = %x", got)
	}
	if got := fake.nonce(r.RelayerAddress()); got != 1 {
		t.Errorf("relayer nonce = %d, want 1", got)
	}
}

func TestDelegateAndCallTarget(t *testing.T) {
	tests := []struct {
		mode      Mode
		authNonce uint64
	}{
		{ByRelayer, 0},
		{ByDelegator, 1},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			fake := newFakeEth()
			fake.code[testTarget] = testBytecode
			fillGetters(t, fake)
			r := newTestRelayer(t, fake, RelayerConfig{})

			res, err := r.DelegateAndCallTarget(context.Background(), testTarget, DefaultCallKey1, tt.mode)
			if err != nil {
				t.Fatalf("DelegateAndCallTarget: %v", err)
			}
			if got := res.Authorizations[0].Nonce; got != tt.authNonce {
				t.Errorf("auth nonce = %d, want %d", got, tt.authNonce)
			}
			if fake.skippedAuths() != 0 {
				t.Errorf("node skipped %d authorizations", fake.skippedAuths())
			}
			tx := fake.GetTransactionByHash(res.TxHashes[0])
			if uint64(tx.Type) != uint64(eip7702.SetCodeTxType) || tx.To == nil || *tx.To != testTarget {
				t.Errorf("tx type %d to %v", uint64(tx.Type), tx.To)
			}
			if got := fake.codeAt(r.DelegatorAddress()); !bytes.Equal(got, eip7702.AddressToDelegation(testTarget)) {
				t.Errorf("delegator code = %x", got)
			}

			target, err := ReadContractState(context.Background(), r.client, testTarget)
			if err != nil {
				t.Fatalf("ReadContractState: %v", err)
			}
			if target.UintFromKey1.Cmp(DefaultCallKey1) != 0 {
				t.Errorf("target getUintFromKey1 = %v, want %v", target.UintFromKey1, DefaultCallKey1)
			}
			delegator, err := ReadContractState(context.Background(), r.client, r.DelegatorAddress())
			if err != nil {
				t.Fatalf("ReadContractState: %v", err)
			}
			if delegator.UintFromKey1.Sign() != 0 {
				t.Errorf("write reached the delegator: %v", delegator.UintFromKey1)
			}
		})
	}
}

func TestDelegateViaNick(t *testing.T) {
	fake := newFakeEth()
	fake.baseFee = big.NewInt(1_000_000_000)
	r := newTestRelayer(t, fake, RelayerConfig{})
	fake.nonces[r.DelegatorAddress()] = 3

	res, err := r.DelegateViaNick(context.Background(), testTarget)
	if err != nil {
		t.Fatalf("DelegateViaNick: %v", err)
	}
	if len(res.TxHashes) != 2 || len(res.Receipts) != 2 {
		t.Fatalf("got %d txs and %d receipts, want 2 and 2", len(res.TxHashes), len(res.Receipts))
	}
	sender, ok := res.Details["sender"].(common.Address)
	if !ok {
		t.Fatalf("sender detail missing: %v", res.Details)
	}
	if sender == r.DelegatorAddress() || sender == r.RelayerAddress() {
		t.Error("keyless sender reuses a configured account")
	}

	funding := fake.GetTransactionByHash(res.TxHashes[0])
	if funding.From != r.RelayerAddress() || funding.To == nil || *funding.To != sender {
		t.Errorf("funding from %s to %v", funding.From.Hex(), funding.To)
	}
	// max fee is 2*base + tip
	maxFee := new(big.Int).Add(big.NewInt(2_000_000_000), fake.tip)
	want := new(big.Int).Mul(maxFee, big.NewInt(nickGasLimit))
	if funding.Value.ToInt().Cmp(want) != 0 {
		t.Errorf("funding = %v, want %v", funding.Value.ToInt(), want)
	}
	if bal := fake.GetBalance(sender, "latest"); bal.ToInt().Cmp(want) != 0 {
		t.Errorf("sender balance = %v", bal.ToInt())
	}

	got, err := eip7702.Sender(res.RawTxs[1])
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if got != sender {
		t.Errorf("raw tx recovers to %s, want %s", got.Hex(), sender.Hex())
	}
	delegation := fake.GetTransactionByHash(res.TxHashes[1])
	if delegation.From != sender || delegation.Nonce != 0 || delegation.Gas != nickGasLimit {
		t.Errorf("delegation from %s nonce %d gas %d", delegation.From.Hex(), delegation.Nonce, delegation.Gas)
	}
	if got := res.Authorizations[0].Nonce; got != 3 {
		t.Errorf("auth nonce = %d, want 3", got)
	}
	if fake.skippedAuths() != 0 {
		t.Errorf("node skipped %d authorizations", fake.skippedAuths())
	}
	if code := fake.codeAt(r.DelegatorAddress()); !bytes.Equal(code, eip7702.AddressToDelegation(testTarget)) {
		t.Errorf("delegator code = %x", code)
	}
	if got := fake.nonce(r.RelayerAddress()); got != 1 {
		t.Errorf("relayer nonce = %d, want 1", got)
	}
}

func TestKeylessEnvelope(t *testing.T) {
	to := eip7702.ZeroAddress
	intent := eip7702.TxIntent{ChainID: testChainID, Gas: nickGasLimit, To: &to}
	seen := make(map[common.Address]bool)
	for range 3 {
		raw, sender, err := keylessEnvelope(intent)
		if err != nil {
			t.Fatalf("keylessEnvelope: %v", err)
		}
		got, err := eip7702.Sender(raw)
		if err != nil || got != sender {
			t.Fatalf("Sender = %s, %v; want %s", got.Hex(), err, sender.Hex())
		}
		seen[sender] = true
	}
	if len(seen) != 3 {
		t.Errorf("senders repeat: %d distinct of 3", len(seen))
	}
}

func TestExecuteBatch(t *testing.T) {
	fake := newFakeEth()
	r := newTestRelayer(t, fake, RelayerConfig{})
	calls := DefaultCalls(r.DelegatorAddress(), r.RelayerAddress(), testReceiver)

	if _, err := r.ExecuteBatch(context.Background(), calls, ByRelayer); err == nil || !strings.Contains(err.Error(), "no delegation") {
		t.Fatalf("expected no delegation error, got %v", err)
	}

	if _, err := r.Delegate(context.Background(), testTarget, ByRelayer); err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	res, err := r.ExecuteBatch(context.Background(), calls, ByRelayer)
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if got := res.Details["delegatedTo"]; got != testTarget {
		t.Errorf("delegatedTo = %v, want %s", got, testTarget.Hex())
	}
	if got := res.Details["totalValue"].(*big.Int); got.Cmp(TotalValue(calls)) != 0 {
		t.Errorf("totalValue = %v", got)
	}
	tx := fake.GetTransactionByHash(res.TxHashes[0])
	if uint64(tx.Type) != types.DynamicFeeTxType {
		t.Errorf("batch went out as type %d", uint64(tx.Type))
	}
	if tx.From != r.RelayerAddress() {
		t.Errorf("from = %s, want relayer", tx.From.Hex())
	}
	if got := fake.nonce(r.RelayerAddress()); got != 2 {
		t.Errorf("relayer nonce = %d, want 2", got)
	}
}

func TestFlowWaitsForReceipts(t *testing.T) {
	fake := newFakeEth()
	fake.pendingPolls = 2
	r := newTestRelayer(t, fake, RelayerConfig{WaitInterval: time.Millisecond})
	calls := DefaultCalls(r.DelegatorAddress(), r.RelayerAddress(), testReceiver)

	res, err := r.DelegateExecuteRevert(context.Background(), testTarget, calls, ByRelayer)
	if err != nil {
		t.Fatalf("DelegateExecuteRevert: %v", err)
	}
	if len(res.Receipts) != 2 {
		t.Fatalf("got %d receipts, want 2", len(res.Receipts))
	}
	for i, receipt := range res.Receipts {
		if receipt.TxHash != res.TxHashes[i] {
			t.Errorf("receipt[%d] is for %s", i, receipt.TxHash.Hex())
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			t.Errorf("receipt[%d] status = %d", i, receipt.Status)
		}
	}
}

func TestConcurrentFlowsShareNonces(t *testing.T) {
	fake := newFakeEth()
	r := newTestRelayer(t, fake, RelayerConfig{})

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Delegate(context.Background(), testTarget, ByRelayer)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("flow %d: %v", i, err)
		}
	}
	if got := fake.nonce(r.RelayerAddress()); got != n {
		t.Errorf("relayer nonce = %d, want %d", got, n)
	}
	if got := fake.nonce(r.DelegatorAddress()); got != n {
		t.Errorf("delegator nonce = %d, want %d", got, n)
	}
	if fake.skippedAuths() != 0 {
		t.Errorf("node skipped %d authorizations", fake.skippedAuths())
	}
}

func TestNonces(t *testing.T) {
	fake := newFakeEth()
	r := newTestRelayer(t, fake, RelayerConfig{})
	fake.nonces[r.RelayerAddress()] = 7
	fake.balances[testReceiver] = big.NewInt(42)

	accounts := r.Accounts(testReceiver)
	if len(accounts) != 3 {
		t.Fatalf("got %d accounts, want 3", len(accounts))
	}
	if got := r.Accounts(common.Address{}); len(got) != 2 {
		t.Errorf("zero receiver should be left out, got %d accounts", len(got))
	}

	states, err := Nonces(context.Background(), r.client, accounts)
	if err != nil {
		t.Fatalf("Nonces: %v", err)
	}
	want := map[string]struct {
		nonce   uint64
		balance int64
	}{
		"delegator": {0, 0},
		"relayer":   {7, 0},
		"receiver":  {0, 42},
	}
	for _, s := range states {
		w := want[s.Name]
		if s.Nonce != w.nonce || s.Balance.Int64() != w.balance {
			t.Errorf("%s: nonce %d balance %v, want %d %d", s.Name, s.Nonce, s.Balance, w.nonce, w.balance)
		}
	}
}
