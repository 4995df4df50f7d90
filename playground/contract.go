package playground

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Values the demonstration flows write when none are given.
var (
	DefaultInitValue  = big.NewInt(333)
	DefaultKey1       = big.NewInt(666)
	DefaultUpdateKey1 = big.NewInt(999)
	DefaultCallKey1   = big.NewInt(111)
	DefaultX          = big.NewInt(333)
)

// Deploy creates a delegation target from the relayer. bytecode is creation
// code without constructor arguments; the relayer becomes the admin. The flow
// always waits for the receipt and reports the new contract's address.
func (r *Relayer) Deploy(ctx context.Context, bytecode []byte) (*FlowResult, error) {
	code, err := DeploymentCode(bytecode, r.RelayerAddress())
	if err != nil {
		return nil, err
	}
	defer r.locks.lock(r.RelayerAddress())()

	res := r.newResult("deploy")
	nonce, err := r.client.PendingNonce(ctx, r.RelayerAddress())
	if err != nil {
		return nil, err
	}
	predicted := crypto.CreateAddress(r.RelayerAddress(), nonce)
	res.Details["predictedAddress"] = predicted

	if err := r.sendCalls(ctx, res, r.relayer, nonce, plainCall{data: code}); err != nil {
		return nil, err
	}
	if err := r.awaitEvery(ctx, res, r.pollInterval()); err != nil {
		return nil, err
	}
	receipt := res.Receipts[0]
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("deployment %s reverted", receipt.TxHash.Hex())
	}
	res.Details["contractAddress"] = receipt.ContractAddress
	if receipt.ContractAddress != predicted {
		r.log.Warn("Contract deployed at unexpected address", "got", receipt.ContractAddress, "want", predicted)
	}
	return res, nil
}

// InitializeTarget calls initialize(initValue) on a freshly deployed target
// and then setUintToKey1(key1). The second call is sent after the first is
// mined.
func (r *Relayer) InitializeTarget(ctx context.Context, target common.Address, initValue, key1 *big.Int) (*FlowResult, error) {
	initData, err := EncodeInitialize(initValue)
	if err != nil {
		return nil, err
	}
	setData, err := EncodeSetUintToKey1(key1)
	if err != nil {
		return nil, err
	}
	defer r.locks.lock(r.RelayerAddress())()

	res := r.newResult("initialize-target")
	res.Details["target"] = target
	res.Details["initialize"] = initValue
	res.Details["setUintToKey1"] = key1
	if err := r.callInOrder(ctx, res, target, initData, setData); err != nil {
		return nil, err
	}
	return res, nil
}

// SetTargetKey1 calls setUintToKey1(value) on the target contract.
func (r *Relayer) SetTargetKey1(ctx context.Context, target common.Address, value *big.Int) (*FlowResult, error) {
	data, err := EncodeSetUintToKey1(value)
	if err != nil {
		return nil, err
	}
	defer r.locks.lock(r.RelayerAddress())()

	res := r.newResult("set-target")
	res.Details["target"] = target
	res.Details["setUintToKey1"] = value
	if err := r.callInOrder(ctx, res, target, data); err != nil {
		return nil, err
	}
	return res, nil
}

// SetDelegatorState writes to the delegator through its delegated code:
// setUintToKey1(key1), then setX(x). The writes land in the delegator's own
// storage, which ReadContractState on the delegator shows afterwards.
func (r *Relayer) SetDelegatorState(ctx context.Context, key1, x *big.Int) (*FlowResult, error) {
	setKey, err := EncodeSetUintToKey1(key1)
	if err != nil {
		return nil, err
	}
	setX, err := EncodeSetX(x)
	if err != nil {
		return nil, err
	}
	defer r.locks.lock(r.RelayerAddress())()

	res := r.newResult("set-delegator")
	status, err := DelegationStatus(ctx, r.client, r.DelegatorAddress())
	if err != nil {
		return nil, err
	}
	if !status.Delegated {
		return nil, fmt.Errorf("%s has no delegation, run a delegate flow first", r.DelegatorAddress().Hex())
	}
	res.Details["delegatedTo"] = status.Target
	res.Details["setUintToKey1"] = key1
	res.Details["setX"] = x
	if err := r.callInOrder(ctx, res, r.DelegatorAddress(), setKey, setX); err != nil {
		return nil, err
	}
	return res, nil
}

// callInOrder sends each calldata to `to` from the relayer, waiting for every
// transaction to be mined before estimating the next.
func (r *Relayer) callInOrder(ctx context.Context, res *FlowResult, to common.Address, calldata ...[]byte) error {
	for _, data := range calldata {
		nonce, err := r.client.PendingNonce(ctx, r.RelayerAddress())
		if err != nil {
			return err
		}
		if err := r.sendCalls(ctx, res, r.relayer, nonce, plainCall{to: &to, data: data}); err != nil {
			return err
		}
		if err := r.awaitEvery(ctx, res, r.pollInterval()); err != nil {
			return err
		}
		if last := res.Receipts[len(res.Receipts)-1]; last.Status != types.ReceiptStatusSuccessful {
			return fmt.Errorf("transaction %s reverted", last.TxHash.Hex())
		}
	}
	return nil
}
