package eip7702

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature is a recoverable secp256k1 signature in transaction form.
type Signature struct {
	YParity uint8
	R       *big.Int
	S       *big.Int
}

// ParsePrivateKey turns a raw 32-byte scalar into a signing key.
func ParsePrivateKey(raw []byte) (*ecdsa.PrivateKey, error) {
	if len(raw) != 32 {
		return nil, signingErr("parse private key", fmt.Errorf("%w: want 32 bytes, got %d", ErrInvalidKey, len(raw)))
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, signingErr("parse private key", fmt.Errorf("%w: %v", ErrInvalidKey, err))
	}
	return key, nil
}

// HexToPrivateKey parses a hex private key with or without the 0x prefix.
func HexToPrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, signingErr("parse private key", fmt.Errorf("%w: %v", ErrInvalidKey, err))
	}
	return key, nil
}

// AddressOf returns the account controlled by key.
func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// sign produces a deterministic recoverable signature over hash.
func sign(op string, hash common.Hash, key *ecdsa.PrivateKey) (Signature, error) {
	if key == nil || key.D == nil {
		return Signature{}, signingErr(op, ErrInvalidKey)
	}
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return Signature{}, signingErr(op, err)
	}
	return Signature{
		YParity: sig[64],
		R:       new(big.Int).SetBytes(sig[:32]),
		S:       new(big.Int).SetBytes(sig[32:64]),
	}, nil
}

// recoverAddress returns the account whose key produced sig over hash.
// High-S signatures are rejected, matching the network's EIP-2 rule.
func recoverAddress(op string, hash common.Hash, sig Signature) (common.Address, error) {
	if sig.R == nil || sig.S == nil || !crypto.ValidateSignatureValues(sig.YParity, sig.R, sig.S, true) {
		return common.Address{}, signingErr(op, ErrInvalidSignature)
	}
	raw := make([]byte, crypto.SignatureLength)
	sig.R.FillBytes(raw[:32])
	sig.S.FillBytes(raw[32:64])
	raw[64] = sig.YParity

	pub, err := crypto.SigToPub(hash[:], raw)
	if err != nil {
		return common.Address{}, signingErr(op, fmt.Errorf("%w: %v", ErrInvalidSignature, err))
	}
	return crypto.PubkeyToAddress(*pub), nil
}
