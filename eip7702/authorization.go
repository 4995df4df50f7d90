package eip7702

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Authorization is the unsigned tuple an account signs to delegate its code.
// A zero ChainID is valid on any chain; a zero Address clears the delegation.
type Authorization struct {
	ChainID *big.Int
	Address common.Address
	Nonce   uint64
}

// SignedAuthorization is one entry of a type-4 authorization list.
type SignedAuthorization struct {
	Authorization
	YParity uint8
	R       *big.Int
	S       *big.Int
}

// AuthorizationPayload returns 0x05 || rlp([chainId, address, nonce]), the
// bytes whose keccak256 an authority signs.
func AuthorizationPayload(chainID *big.Int, address []byte, nonce uint64) ([]byte, error) {
	if len(address) != AddressLength {
		return nil, encodingErr("authorization address", fmt.Errorf("%w: got %d", ErrAddressLength, len(address)))
	}
	chain, err := scalarBytes("authorization chainId", chainID)
	if err != nil {
		return nil, err
	}

	w := rlp.NewEncoderBuffer(nil)
	l := w.List()
	w.WriteBytes(chain)
	w.WriteBytes(address)
	w.WriteBytes(uint64Bytes(nonce))
	w.ListEnd(l)
	payload := w.AppendToBytes([]byte{AuthorizationMagic})
	w.Flush()
	return payload, nil
}

// Payload returns the unsigned authorization payload.
func (a Authorization) Payload() ([]byte, error) {
	return AuthorizationPayload(a.ChainID, a.Address[:], a.Nonce)
}

// SigHash returns keccak256 of the unsigned payload.
func (a Authorization) SigHash() (common.Hash, error) {
	payload, err := a.Payload()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(payload), nil
}

// IsRevocation reports whether the authorization clears the account's code.
func (a Authorization) IsRevocation() bool {
	return a.Address == ZeroAddress
}

// SignAuthorization signs the tuple (chainID, address, nonce) with key. The
// nonce is taken as given: when the authority also sends the transaction the
// caller must already have added the sender's own increment.
func SignAuthorization(chainID *big.Int, nonce uint64, key *ecdsa.PrivateKey, address common.Address) (SignedAuthorization, error) {
	auth := Authorization{ChainID: bigOrZero(chainID), Address: address, Nonce: nonce}
	hash, err := auth.SigHash()
	if err != nil {
		return SignedAuthorization{}, err
	}
	sig, err := sign("sign authorization", hash, key)
	if err != nil {
		return SignedAuthorization{}, err
	}
	return SignedAuthorization{
		Authorization: auth,
		YParity:       sig.YParity,
		R:             sig.R,
		S:             sig.S,
	}, nil
}

// Signature returns the signature part of the entry.
func (a SignedAuthorization) Signature() Signature {
	return Signature{YParity: a.YParity, R: a.R, S: a.S}
}

// Authority recovers the account that signed the authorization.
func (a SignedAuthorization) Authority() (common.Address, error) {
	hash, err := a.SigHash()
	if err != nil {
		return common.Address{}, err
	}
	return recoverAddress("recover authority", hash, a.Signature())
}

type authorizationRLP struct {
	ChainID *big.Int
	Address common.Address
	Nonce   uint64
}

// DecodeAuthorizationPayload parses the output of AuthorizationPayload.
func DecodeAuthorizationPayload(payload []byte) (Authorization, error) {
	if len(payload) == 0 || payload[0] != AuthorizationMagic {
		return Authorization{}, encodingErr("authorization payload", ErrAuthorizationMagic)
	}
	var dec authorizationRLP
	if err := rlp.DecodeBytes(payload[1:], &dec); err != nil {
		return Authorization{}, encodingErr("authorization payload", err)
	}
	return Authorization{ChainID: dec.ChainID, Address: dec.Address, Nonce: dec.Nonce}, nil
}

// writeAuthorization appends the 6-tuple [chainId, address, nonce, yParity, r, s].
func writeAuthorization(w rlp.EncoderBuffer, i int, a SignedAuthorization) error {
	chain, err := scalarBytes(fmt.Sprintf("authorizationList[%d].chainId", i), a.ChainID)
	if err != nil {
		return err
	}
	r, err := scalarBytes(fmt.Sprintf("authorizationList[%d].r", i), a.R)
	if err != nil {
		return err
	}
	s, err := scalarBytes(fmt.Sprintf("authorizationList[%d].s", i), a.S)
	if err != nil {
		return err
	}
	l := w.List()
	w.WriteBytes(chain)
	w.WriteBytes(a.Address[:])
	w.WriteBytes(uint64Bytes(a.Nonce))
	w.WriteBytes(uint64Bytes(uint64(a.YParity)))
	w.WriteBytes(r)
	w.WriteBytes(s)
	w.ListEnd(l)
	return nil
}

type signedAuthorizationJSON struct {
	ChainID *hexutil.Big   `json:"chainId"`
	Address common.Address `json:"address"`
	Nonce   hexutil.Uint64 `json:"nonce"`
	YParity hexutil.Uint64 `json:"yParity"`
	R       *hexutil.Big   `json:"r"`
	S       *hexutil.Big   `json:"s"`
}

// MarshalJSON uses the field names and hex quantities of eth_getTransactionByHash.
func (a SignedAuthorization) MarshalJSON() ([]byte, error) {
	return json.Marshal(signedAuthorizationJSON{
		ChainID: (*hexutil.Big)(bigOrZero(a.ChainID)),
		Address: a.Address,
		Nonce:   hexutil.Uint64(a.Nonce),
		YParity: hexutil.Uint64(a.YParity),
		R:       (*hexutil.Big)(bigOrZero(a.R)),
		S:       (*hexutil.Big)(bigOrZero(a.S)),
	})
}

// UnmarshalJSON accepts the node's authorizationList entry format.
func (a *SignedAuthorization) UnmarshalJSON(input []byte) error {
	var dec signedAuthorizationJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.ChainID == nil || dec.R == nil || dec.S == nil {
		return fmt.Errorf("authorization: missing required field")
	}
	if dec.YParity > 1 {
		return fmt.Errorf("authorization: yParity %d out of range", uint64(dec.YParity))
	}
	*a = SignedAuthorization{
		Authorization: Authorization{
			ChainID: dec.ChainID.ToInt(),
			Address: dec.Address,
			Nonce:   uint64(dec.Nonce),
		},
		YParity: uint8(dec.YParity),
		R:       dec.R.ToInt(),
		S:       dec.S.ToInt(),
	}
	return nil
}

// Equal reports whether two entries carry the same values.
func (a SignedAuthorization) Equal(b SignedAuthorization) bool {
	return bigOrZero(a.ChainID).Cmp(bigOrZero(b.ChainID)) == 0 &&
		a.Address == b.Address &&
		a.Nonce == b.Nonce &&
		a.YParity == b.YParity &&
		bigOrZero(a.R).Cmp(bigOrZero(b.R)) == 0 &&
		bigOrZero(a.S).Cmp(bigOrZero(b.S)) == 0
}
