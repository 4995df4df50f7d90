package eip7702

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDelegationPrefix(t *testing.T) {
	if len(DelegationPrefix) != 3 {
		t.Errorf("DelegationPrefix length = %d, want 3", len(DelegationPrefix))
	}
	if DelegationPrefix[0] != 0xef || DelegationPrefix[1] != 0x01 || DelegationPrefix[2] != 0x00 {
		t.Errorf("DelegationPrefix = %x, want ef0100", DelegationPrefix)
	}
}

func TestParseDelegation(t *testing.T) {
	target := common.HexToAddress("0x000000000000000000000000000000000000aaaa")
	valid := AddressToDelegation(target)

	testCases := []struct {
		name  string
		code  []byte
		valid bool
	}{
		{"designator", valid, true},
		{"empty code", nil, false},
		{"wrong prefix", append([]byte{0xef, 0x01, 0x01}, target[:]...), false},
		{"truncated", valid[:22], false},
		{"trailing byte", append(append([]byte{}, valid...), 0x00), false},
		{"contract code", []byte{0x60, 0x80, 0x60, 0x40, 0x52}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, ok := ParseDelegation(tc.code)
			if ok != tc.valid {
				t.Fatalf("ParseDelegation() valid = %v, want %v", ok, tc.valid)
			}
			if ok && addr != target {
				t.Errorf("ParseDelegation() addr = %s, want %s", addr.Hex(), target.Hex())
			}
		})
	}
}

func TestAddressToDelegation(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000042")
	code := AddressToDelegation(addr)

	if len(code) != DelegationCodeLength {
		t.Errorf("AddressToDelegation() length = %d, want %d", len(code), DelegationCodeLength)
	}
	parsed, ok := ParseDelegation(code)
	if !ok || parsed != addr {
		t.Errorf("round trip = %s/%v, want %s", parsed.Hex(), ok, addr.Hex())
	}
}

func TestParseAddress(t *testing.T) {
	testCases := []struct {
		input   string
		want    common.Address
		wantErr error
	}{
		{"0x1111111111111111111111111111111111111111", common.HexToAddress("0x1111111111111111111111111111111111111111"), nil},
		{"1111111111111111111111111111111111111111", common.HexToAddress("0x1111111111111111111111111111111111111111"), nil},
		{"  0x71562b71999873DB5b286dF957af199Ec94617F7\n", common.HexToAddress("0x71562b71999873DB5b286dF957af199Ec94617F7"), nil},
		{"0x11111111111111111111111111111111111111", common.Address{}, ErrAddressLength},
		{"0x111111111111111111111111111111111111111111", common.Address{}, ErrAddressLength},
		{"0xzz11111111111111111111111111111111111111", common.Address{}, nil},
		{"", common.Address{}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseAddress(tc.input)
			valid := tc.want != (common.Address{})
			if !valid {
				var encErr *EncodingError
				if !errors.As(err, &encErr) {
					t.Fatalf("ParseAddress() error = %v, want *EncodingError", err)
				}
				if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
					t.Errorf("ParseAddress() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseAddress() = %s, want %s", got.Hex(), tc.want.Hex())
			}
		})
	}
}

func TestParsePrivateKey(t *testing.T) {
	good := common.FromHex(delegatorKeyHex)
	key, err := ParsePrivateKey(good)
	if err != nil {
		t.Fatalf("ParsePrivateKey() error = %v", err)
	}
	if AddressOf(key) != AddressOf(mustKey(t, "0x"+delegatorKeyHex)) {
		t.Error("raw and hex parsing disagree on the account")
	}

	for name, raw := range map[string][]byte{
		"short":      good[:31],
		"long":       append(append([]byte{}, good...), 0x01),
		"zero":       make([]byte, 32),
		"over order": common.FromHex("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePrivateKey(raw)
			var signErr *SigningError
			if !errors.As(err, &signErr) {
				t.Fatalf("ParsePrivateKey() error = %v, want *SigningError", err)
			}
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ParsePrivateKey() error = %v, want ErrInvalidKey", err)
			}
		})
	}

	if _, err := HexToPrivateKey("not hex"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("HexToPrivateKey() error = %v, want ErrInvalidKey", err)
	}
}
