package eip7702

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressLength is returned when an account identifier is not 20 bytes.
	ErrAddressLength = errors.New("address must be 20 bytes")

	// ErrNegativeValue is returned for a negative numeric field.
	ErrNegativeValue = errors.New("negative value")

	// ErrValueOverflow is returned for a numeric field wider than 256 bits.
	ErrValueOverflow = errors.New("value exceeds 256 bits")

	// ErrTxType is returned when a serialized transaction is not type 0x04.
	ErrTxType = errors.New("not an EIP-7702 transaction")

	// ErrAuthorizationMagic is returned when an authorization payload lacks the 0x05 prefix.
	ErrAuthorizationMagic = errors.New("missing authorization magic byte")

	// ErrPartialSignature is returned when an envelope carries some but not all of yParity, r, s.
	ErrPartialSignature = errors.New("incomplete signature fields")

	// ErrInvalidKey is returned for private key material that is not a valid secp256k1 scalar.
	ErrInvalidKey = errors.New("invalid private key")

	// ErrInvalidSignature is returned for signature values that cannot be recovered.
	ErrInvalidSignature = errors.New("invalid signature values")
)

// EncodingError reports a malformed field. It is always local and never retried.
type EncodingError struct {
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s: %v", e.Field, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// SigningError reports invalid key material or a failed signing primitive.
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

func encodingErr(field string, err error) error {
	return &EncodingError{Field: field, Err: err}
}

func signingErr(op string, err error) error {
	return &SigningError{Op: op, Err: err}
}
