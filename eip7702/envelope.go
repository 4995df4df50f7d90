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

// AccessTuple is an EIP-2930 access list entry.
type AccessTuple struct {
	Address     common.Address `json:"address"`
	StorageKeys []common.Hash  `json:"storageKeys"`
}

// TxIntent holds every field of a type-4 transaction except its signature.
// A nil To encodes as the empty string; nil numeric fields encode as zero.
type TxIntent struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int // maxPriorityFeePerGas
	GasFeeCap  *big.Int // maxFeePerGas
	Gas        uint64
	To         *common.Address
	Value      *big.Int
	Data       []byte
	AccessList []AccessTuple
	AuthList   []SignedAuthorization
}

// SignedTx is a TxIntent together with the sender's signature.
type SignedTx struct {
	TxIntent
	Signature Signature
}

type envelopeScalars struct {
	chainID, gasTipCap, gasFeeCap, value []byte
}

func (tx *TxIntent) scalars() (envelopeScalars, error) {
	var (
		out envelopeScalars
		err error
	)
	if out.chainID, err = scalarBytes("chainId", tx.ChainID); err != nil {
		return out, err
	}
	if out.gasTipCap, err = scalarBytes("maxPriorityFeePerGas", tx.GasTipCap); err != nil {
		return out, err
	}
	if out.gasFeeCap, err = scalarBytes("maxFeePerGas", tx.GasFeeCap); err != nil {
		return out, err
	}
	if out.value, err = scalarBytes("value", tx.Value); err != nil {
		return out, err
	}
	return out, nil
}

// EncodeEnvelope serializes intent as 0x04 || rlp(fields). With a nil sig the
// result is the unsigned form whose keccak256 is the signing hash; otherwise
// yParity, r and s are appended and the result is ready for broadcast.
func EncodeEnvelope(intent TxIntent, sig *Signature) ([]byte, error) {
	f, err := intent.scalars()
	if err != nil {
		return nil, err
	}
	var r, s []byte
	if sig != nil {
		if r, err = scalarBytes("signature r", sig.R); err != nil {
			return nil, err
		}
		if s, err = scalarBytes("signature s", sig.S); err != nil {
			return nil, err
		}
	}

	w := rlp.NewEncoderBuffer(nil)
	defer w.Flush()

	l := w.List()
	w.WriteBytes(f.chainID)
	w.WriteBytes(uint64Bytes(intent.Nonce))
	w.WriteBytes(f.gasTipCap)
	w.WriteBytes(f.gasFeeCap)
	w.WriteBytes(uint64Bytes(intent.Gas))
	if intent.To == nil {
		w.WriteBytes(nil)
	} else {
		w.WriteBytes(intent.To[:])
	}
	w.WriteBytes(f.value)
	w.WriteBytes(intent.Data)

	accessList := w.List()
	for _, tuple := range intent.AccessList {
		t := w.List()
		w.WriteBytes(tuple.Address[:])
		keys := w.List()
		for _, key := range tuple.StorageKeys {
			w.WriteBytes(key[:])
		}
		w.ListEnd(keys)
		w.ListEnd(t)
	}
	w.ListEnd(accessList)

	authList := w.List()
	for i, auth := range intent.AuthList {
		if err := writeAuthorization(w, i, auth); err != nil {
			return nil, err
		}
	}
	w.ListEnd(authList)

	if sig != nil {
		w.WriteBytes(uint64Bytes(uint64(sig.YParity)))
		w.WriteBytes(r)
		w.WriteBytes(s)
	}
	w.ListEnd(l)

	return w.AppendToBytes([]byte{SetCodeTxType}), nil
}

// SigningHash returns keccak256 of the unsigned envelope.
func SigningHash(intent TxIntent) (common.Hash, error) {
	unsigned, err := EncodeEnvelope(intent, nil)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(unsigned), nil
}

// SignTx signs intent with the relayer's key. The intent's nonce is used as is;
// fetching a fresh one is the caller's job.
func SignTx(intent TxIntent, key *ecdsa.PrivateKey) (SignedTx, error) {
	hash, err := SigningHash(intent)
	if err != nil {
		return SignedTx{}, err
	}
	sig, err := sign("sign transaction", hash, key)
	if err != nil {
		return SignedTx{}, err
	}
	return SignedTx{TxIntent: intent, Signature: sig}, nil
}

// SignAndSerialize signs intent and returns the bytes for eth_sendRawTransaction.
func SignAndSerialize(intent TxIntent, key *ecdsa.PrivateKey) ([]byte, error) {
	tx, err := SignTx(intent, key)
	if err != nil {
		return nil, err
	}
	return tx.MarshalBinary()
}

// MarshalBinary returns the signed serialized transaction.
func (tx SignedTx) MarshalBinary() ([]byte, error) {
	return EncodeEnvelope(tx.TxIntent, &tx.Signature)
}

// Hash returns the transaction hash a node reports for tx.
func (tx SignedTx) Hash() (common.Hash, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(raw), nil
}

// Sender recovers the account that signed tx.
func (tx SignedTx) Sender() (common.Address, error) {
	hash, err := SigningHash(tx.TxIntent)
	if err != nil {
		return common.Address{}, err
	}
	return recoverAddress("recover sender", hash, tx.Signature)
}

type authorizationEntryRLP struct {
	ChainID *big.Int
	Address common.Address
	Nonce   uint64
	YParity uint8
	R       *big.Int
	S       *big.Int
}

type envelopeRLP struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         []byte
	Value      *big.Int
	Data       []byte
	AccessList []AccessTuple
	AuthList   []authorizationEntryRLP
	V          *big.Int `rlp:"optional"`
	R          *big.Int `rlp:"optional"`
	S          *big.Int `rlp:"optional"`
}

// DecodeEnvelope parses the output of EncodeEnvelope. The returned signature
// is nil for an unsigned envelope.
func DecodeEnvelope(raw []byte) (TxIntent, *Signature, error) {
	if len(raw) == 0 || raw[0] != SetCodeTxType {
		return TxIntent{}, nil, encodingErr("transaction type", ErrTxType)
	}
	var dec envelopeRLP
	if err := rlp.DecodeBytes(raw[1:], &dec); err != nil {
		return TxIntent{}, nil, encodingErr("transaction", err)
	}

	intent := TxIntent{
		ChainID:    dec.ChainID,
		Nonce:      dec.Nonce,
		GasTipCap:  dec.GasTipCap,
		GasFeeCap:  dec.GasFeeCap,
		Gas:        dec.Gas,
		Value:      dec.Value,
		Data:       dec.Data,
		AccessList: dec.AccessList,
		AuthList:   make([]SignedAuthorization, len(dec.AuthList)),
	}
	switch len(dec.To) {
	case 0:
	case AddressLength:
		to := common.BytesToAddress(dec.To)
		intent.To = &to
	default:
		return TxIntent{}, nil, encodingErr("to", fmt.Errorf("%w: got %d", ErrAddressLength, len(dec.To)))
	}
	for i, a := range dec.AuthList {
		intent.AuthList[i] = SignedAuthorization{
			Authorization: Authorization{ChainID: a.ChainID, Address: a.Address, Nonce: a.Nonce},
			YParity:       a.YParity,
			R:             a.R,
			S:             a.S,
		}
	}
	if _, err := intent.scalars(); err != nil {
		return TxIntent{}, nil, err
	}

	switch {
	case dec.V == nil && dec.R == nil && dec.S == nil:
		return intent, nil, nil
	case dec.V == nil || dec.R == nil || dec.S == nil:
		return TxIntent{}, nil, encodingErr("signature", ErrPartialSignature)
	}
	if !dec.V.IsUint64() || dec.V.Uint64() > 1 {
		return TxIntent{}, nil, encodingErr("signature yParity", ErrValueOverflow)
	}
	if err := checkScalar("signature r", dec.R); err != nil {
		return TxIntent{}, nil, err
	}
	if err := checkScalar("signature s", dec.S); err != nil {
		return TxIntent{}, nil, err
	}
	return intent, &Signature{YParity: uint8(dec.V.Uint64()), R: dec.R, S: dec.S}, nil
}

// DecodeSignedTx parses a serialized transaction that must carry a signature.
func DecodeSignedTx(raw []byte) (SignedTx, error) {
	intent, sig, err := DecodeEnvelope(raw)
	if err != nil {
		return SignedTx{}, err
	}
	if sig == nil {
		return SignedTx{}, encodingErr("signature", ErrPartialSignature)
	}
	return SignedTx{TxIntent: intent, Signature: *sig}, nil
}

// Sender recovers the relayer address of a serialized signed transaction.
func Sender(raw []byte) (common.Address, error) {
	tx, err := DecodeSignedTx(raw)
	if err != nil {
		return common.Address{}, err
	}
	return tx.Sender()
}

type txIntentJSON struct {
	ChainID    *hexutil.Big          `json:"chainId"`
	Nonce      hexutil.Uint64        `json:"nonce"`
	GasTipCap  *hexutil.Big          `json:"maxPriorityFeePerGas"`
	GasFeeCap  *hexutil.Big          `json:"maxFeePerGas"`
	Gas        hexutil.Uint64        `json:"gas"`
	To         *common.Address       `json:"to"`
	Value      *hexutil.Big          `json:"value"`
	Data       hexutil.Bytes         `json:"input"`
	AccessList []AccessTuple         `json:"accessList"`
	AuthList   []SignedAuthorization `json:"authorizationList"`
}

func (tx TxIntent) toJSON() txIntentJSON {
	accessList := tx.AccessList
	if accessList == nil {
		accessList = []AccessTuple{}
	}
	authList := tx.AuthList
	if authList == nil {
		authList = []SignedAuthorization{}
	}
	return txIntentJSON{
		ChainID:    (*hexutil.Big)(bigOrZero(tx.ChainID)),
		Nonce:      hexutil.Uint64(tx.Nonce),
		GasTipCap:  (*hexutil.Big)(bigOrZero(tx.GasTipCap)),
		GasFeeCap:  (*hexutil.Big)(bigOrZero(tx.GasFeeCap)),
		Gas:        hexutil.Uint64(tx.Gas),
		To:         tx.To,
		Value:      (*hexutil.Big)(bigOrZero(tx.Value)),
		Data:       tx.Data,
		AccessList: accessList,
		AuthList:   authList,
	}
}

// MarshalJSON renders the intent with the node's transaction field names.
func (tx TxIntent) MarshalJSON() ([]byte, error) {
	return json.Marshal(tx.toJSON())
}

// MarshalJSON renders the transaction including yParity, r and s.
func (tx SignedTx) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		txIntentJSON
		YParity hexutil.Uint64 `json:"yParity"`
		R       *hexutil.Big   `json:"r"`
		S       *hexutil.Big   `json:"s"`
	}{
		txIntentJSON: tx.TxIntent.toJSON(),
		YParity:      hexutil.Uint64(tx.Signature.YParity),
		R:            (*hexutil.Big)(bigOrZero(tx.Signature.R)),
		S:            (*hexutil.Big)(bigOrZero(tx.Signature.S)),
	})
}
