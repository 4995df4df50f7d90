package playground

import (
	"github.com/ethereum/go-ethereum/params"

	"github.com/stable-net/eip7702-playground/eip7702"
)

// GasConstants holds the Prague intrinsic gas schedule for type-4 transactions.
type GasConstants struct {
	TxGas                  uint64
	TxDataZeroGas          uint64
	TxDataNonZeroGas       uint64
	TxAccessListAddressGas uint64
	TxAccessListStorageGas uint64
	PerAuthEmptyAccountGas uint64
	PerAuthBaseGas         uint64
	FloorPerToken          uint64
}

// DefaultGasConstants returns the schedule used by mainnet and the testnets.
func DefaultGasConstants() GasConstants {
	return GasConstants{
		TxGas:                  params.TxGas,
		TxDataZeroGas:          params.TxDataZeroGas,
		TxDataNonZeroGas:       params.TxDataNonZeroGasEIP2028,
		TxAccessListAddressGas: params.TxAccessListAddressGas,
		TxAccessListStorageGas: params.TxAccessListStorageKeyGas,
		PerAuthEmptyAccountGas: params.CallNewAccountGas,
		PerAuthBaseGas:         params.TxAuthTupleGas,
		FloorPerToken:          params.TxCostFloorPerToken,
	}
}

// GasComponent is one line of a gas breakdown.
type GasComponent struct {
	Name     string
	Count    uint64
	UnitCost uint64
	Gas      uint64
}

// GasEstimate is the intrinsic cost of an intent.
type GasEstimate struct {
	Intrinsic uint64
	// Floor is the EIP-7623 calldata floor; a transaction is charged at
	// least this much.
	Floor      uint64
	Components []GasComponent
	// MaxRefund is returned when every authority already exists.
	MaxRefund uint64
}

// Required is the lowest gas limit the node accepts for the intent.
func (g GasEstimate) Required() uint64 {
	return max(g.Intrinsic, g.Floor)
}

// IntrinsicGas prices an intent before execution: the base cost, calldata,
// access list and a worst-case charge per authorization.
func IntrinsicGas(intent eip7702.TxIntent) GasEstimate {
	c := DefaultGasConstants()
	var est GasEstimate

	add := func(name string, count, unit uint64) {
		if count == 0 {
			return
		}
		est.Components = append(est.Components, GasComponent{Name: name, Count: count, UnitCost: unit, Gas: count * unit})
		est.Intrinsic += count * unit
	}

	add("base", 1, c.TxGas)

	var zero, nonZero uint64
	for _, b := range intent.Data {
		if b == 0 {
			zero++
		} else {
			nonZero++
		}
	}
	add("calldata zero bytes", zero, c.TxDataZeroGas)
	add("calldata non-zero bytes", nonZero, c.TxDataNonZeroGas)

	var keys uint64
	for _, tuple := range intent.AccessList {
		keys += uint64(len(tuple.StorageKeys))
	}
	add("access list addresses", uint64(len(intent.AccessList)), c.TxAccessListAddressGas)
	add("access list storage keys", keys, c.TxAccessListStorageGas)

	auths := uint64(len(intent.AuthList))
	add("authorizations", auths, c.PerAuthEmptyAccountGas)
	est.MaxRefund = auths * (c.PerAuthEmptyAccountGas - c.PerAuthBaseGas)

	tokens := zero + nonZero*4
	est.Floor = c.TxGas + tokens*c.FloorPerToken
	return est
}

const (
	// plainCallAllowance covers touching a delegated account with no calldata.
	plainCallAllowance = 10_000
	// executionAllowance covers running delegated code, sized for the
	// demonstration batch of three transfers.
	executionAllowance = 200_000
)

// DefaultGasLimit picks a gas limit for flows that do not set one.
func DefaultGasLimit(intent eip7702.TxIntent) uint64 {
	required := IntrinsicGas(intent).Required()
	if len(intent.Data) == 0 {
		return required + plainCallAllowance
	}
	return required + executionAllowance
}
