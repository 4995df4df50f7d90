// Package eip7702 builds and signs EIP-7702 ("set EOA code") authorizations and
// type-4 transaction envelopes from scratch.
//
// Everything in this package is a pure function of its arguments: no network
// access, no shared state. The byte layouts follow EIP-7702:
//
//	authorization payload = 0x05 || rlp([chain_id, address, nonce])
//	transaction envelope  = 0x04 || rlp([chain_id, nonce, max_priority_fee_per_gas,
//	                        max_fee_per_gas, gas_limit, destination, value, data,
//	                        access_list, authorization_list, y_parity, r, s])
package eip7702

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// SetCodeTxType is the EIP-2718 type byte of an EIP-7702 transaction (0x04).
	SetCodeTxType = 0x04

	// AuthorizationMagic is the domain separator prepended to the RLP-encoded
	// authorization tuple before hashing (0x05).
	AuthorizationMagic = 0x05

	// AddressLength is the length of an account identifier.
	AddressLength = common.AddressLength

	// DelegationCodeLength is the length of a delegation designator (prefix + address).
	DelegationCodeLength = 23
)

// DelegationPrefix is the code prefix the protocol installs on a delegated EOA.
var DelegationPrefix = []byte{0xef, 0x01, 0x00}

// ZeroAddress is the delegation target that clears an account's code.
var ZeroAddress = common.Address{}

// AddressToDelegation returns the designator code 0xef0100 || addr.
func AddressToDelegation(addr common.Address) []byte {
	code := make([]byte, DelegationCodeLength)
	copy(code, DelegationPrefix)
	copy(code[len(DelegationPrefix):], addr[:])
	return code
}

// ParseDelegation extracts the delegate from designator code.
func ParseDelegation(code []byte) (common.Address, bool) {
	if len(code) != DelegationCodeLength || !bytes.HasPrefix(code, DelegationPrefix) {
		return common.Address{}, false
	}
	return common.BytesToAddress(code[len(DelegationPrefix):]), true
}
