package eip7702

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// scalarBytes returns the minimal big-endian form of v: no leading zero
// bytes, and the empty string for zero. A nil v counts as zero.
func scalarBytes(field string, v *big.Int) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	if v.Sign() < 0 {
		return nil, encodingErr(field, ErrNegativeValue)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, encodingErr(field, ErrValueOverflow)
	}
	return u.Bytes(), nil
}

// uint64Bytes is scalarBytes for values already bounded by uint64.
func uint64Bytes(v uint64) []byte {
	return new(uint256.Int).SetUint64(v).Bytes()
}

// checkScalar validates v without encoding it.
func checkScalar(field string, v *big.Int) error {
	_, err := scalarBytes(field, v)
	return err
}

// bigOrZero returns a copy of v, or zero for nil.
func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// ParseAddress parses a 0x-prefixed 20-byte hex account identifier. Unlike
// common.HexToAddress it rejects short, long and non-hex input.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Address{}, encodingErr("address", err)
	}
	if len(b) != AddressLength {
		return common.Address{}, encodingErr("address", ErrAddressLength)
	}
	return common.BytesToAddress(b), nil
}
