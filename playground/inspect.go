package playground

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/stable-net/eip7702-playground/eip7702"
)

// Delegation describes the code found at an account.
type Delegation struct {
	Address   common.Address
	Code      []byte
	Delegated bool
	// Target is the delegate when Delegated is set.
	Target common.Address
	// IsContract is set for ordinary contract code, which cannot authorize.
	IsContract bool
}

// DelegationStatus reads addr's code and parses the 0xef0100 designator.
func DelegationStatus(ctx context.Context, client *Client, addr common.Address) (Delegation, error) {
	code, err := client.Code(ctx, addr)
	if err != nil {
		return Delegation{}, err
	}
	d := Delegation{Address: addr, Code: code}
	if target, ok := eip7702.ParseDelegation(code); ok {
		d.Delegated = true
		d.Target = target
	} else if len(code) > 0 {
		d.IsContract = true
	}
	return d, nil
}

// RecoveredAuthorization pairs an authorization-list entry with the account
// that signed it.
type RecoveredAuthorization struct {
	eip7702.SignedAuthorization
	Authority common.Address
	Err       error
	Findings  []Finding
}

// TxInspection is the node's view of a transaction plus the authorities
// recovered locally.
type TxInspection struct {
	Tx             *RPCTransaction
	Sender         common.Address
	SenderVerified bool
	Authorizations []RecoveredAuthorization
}

// InspectTransaction fetches a transaction and recovers the authority of every
// authorization-list entry. For type-4 transactions the raw envelope is also
// decoded and its sender recovered, which checks the node's reported From.
func InspectTransaction(ctx context.Context, client *Client, hash common.Hash) (*TxInspection, error) {
	tx, err := client.RawTransaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	res := &TxInspection{Tx: tx, Sender: tx.From}

	var chainID *big.Int
	if tx.ChainID != nil {
		chainID = tx.ChainID.ToInt()
	}
	for _, auth := range tx.AuthorizationList {
		rec := RecoveredAuthorization{SignedAuthorization: auth, Findings: CheckAuthorization(auth, chainID)}
		rec.Authority, rec.Err = auth.Authority()
		res.Authorizations = append(res.Authorizations, rec)
	}

	if uint64(tx.Type) != eip7702.SetCodeTxType {
		return res, nil
	}
	raw, err := client.RawTransactionBytes(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return res, nil
		}
		return nil, err
	}
	sender, err := eip7702.Sender(raw)
	if err != nil {
		return nil, fmt.Errorf("decode raw transaction %s: %w", hash.Hex(), err)
	}
	if sender != tx.From {
		return nil, fmt.Errorf("raw transaction %s recovers to %s, node reports %s", hash.Hex(), sender.Hex(), tx.From.Hex())
	}
	res.SenderVerified = true
	return res, nil
}

// ContractState is the readable state of the batch delegation contract, read
// either at the contract itself or through a delegated EOA.
type ContractState struct {
	Address          common.Address
	Owner            common.Address
	X                *big.Int
	UintFromKey0     *big.Int
	UintFromKey1     *big.Int
	ImmutableAddress common.Address
	PublicAddress    common.Address
}

// ReadContractState calls the view functions of the delegation contract at addr.
func ReadContractState(ctx context.Context, client *Client, addr common.Address) (*ContractState, error) {
	state := &ContractState{Address: addr}
	reads := []struct {
		method string
		dst    any
	}{
		{"owner", &state.Owner},
		{"x", &state.X},
		{"getUintFromKey0", &state.UintFromKey0},
		{"getUintFromKey1", &state.UintFromKey1},
		{"immutableAddress", &state.ImmutableAddress},
		{"publicAddress", &state.PublicAddress},
	}
	for _, rd := range reads {
		input, err := batchABI.Pack(rd.method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", rd.method, err)
		}
		out, err := client.CallContract(ctx, addr, input)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rd.method, err)
		}
		if err := batchABI.UnpackIntoInterface(rd.dst, rd.method, out); err != nil {
			return nil, fmt.Errorf("unpack %s: %w", rd.method, err)
		}
	}
	return state, nil
}

// WaitForReceipt polls for hash's receipt every interval until it is mined or
// ctx ends.
func WaitForReceipt(ctx context.Context, client *Client, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
			}
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
