package config

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const hardened = 0x80000000

// DerivationPath returns m/44'/60'/0'/0/index, the path wallets use for the
// index-th Ethereum account of a mnemonic.
func DerivationPath(index uint32) []uint32 {
	return []uint32{hardened + 44, hardened + 60, hardened + 0, 0, index}
}

// MnemonicSeed turns a BIP39 mnemonic into its 64-byte seed. Words are
// lowercased and single-spaced; the checksum word is not verified.
func MnemonicSeed(mnemonic, passphrase string) ([]byte, error) {
	words := strings.Fields(strings.ToLower(mnemonic))
	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return nil, fmt.Errorf("mnemonic has %d words, want 12, 15, 18, 21 or 24", len(words))
	}
	return pbkdf2.Key([]byte(strings.Join(words, " ")), []byte("mnemonic"+passphrase), 2048, 64, sha512.New), nil
}

// DeriveKey derives the private key of account index from a mnemonic with an
// empty passphrase.
func DeriveKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	seed, err := MnemonicSeed(mnemonic, "")
	if err != nil {
		return nil, err
	}
	return DeriveKeyFromSeed(seed, DerivationPath(index))
}

// DeriveKeyFromSeed walks a BIP32 path from the master key of seed.
func DeriveKeyFromSeed(seed []byte, path []uint32) (*ecdsa.PrivateKey, error) {
	mac := hmac.New(sha512.New, []byte("Bitcoin seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chainCode := sum[:32], sum[32:]

	for _, index := range path {
		var err error
		key, chainCode, err = deriveChild(key, chainCode, index)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", index, err)
		}
	}
	return crypto.ToECDSA(key)
}

var errInvalidChild = errors.New("derived key is outside the curve order")

func deriveChild(parent, chainCode []byte, index uint32) ([]byte, []byte, error) {
	data := make([]byte, 0, 37)
	if index >= hardened {
		data = append(data, 0x00)
		data = append(data, parent...)
	} else {
		priv, err := crypto.ToECDSA(parent)
		if err != nil {
			return nil, nil, err
		}
		data = append(data, crypto.CompressPubkey(&priv.PublicKey)...)
	}
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)

	n := crypto.S256().Params().N
	il := new(big.Int).SetBytes(sum[:32])
	if il.Cmp(n) >= 0 {
		return nil, nil, errInvalidChild
	}
	child := il.Add(il, new(big.Int).SetBytes(parent))
	child.Mod(child, n)
	if child.Sign() == 0 {
		return nil, nil, errInvalidChild
	}
	return math.PaddedBigBytes(child, 32), sum[32:], nil
}
