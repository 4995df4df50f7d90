package playground

import (
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/stable-net/eip7702-playground/eip7702"
)

func TestCheckAuthorization(t *testing.T) {
	key := mustKey(t, delegatorKeyHex)
	sign := func(chainID *big.Int, nonce uint64) eip7702.SignedAuthorization {
		t.Helper()
		auth, err := eip7702.SignAuthorization(chainID, nonce, key, testTarget)
		if err != nil {
			t.Fatalf("SignAuthorization: %v", err)
		}
		return auth
	}

	highS := sign(testChainID, 1)
	highS.S = new(big.Int).Sub(crypto.S256().Params().N, highS.S)
	highS.YParity ^= 1

	badParity := sign(testChainID, 1)
	badParity.YParity = 2

	revoke, err := eip7702.SignAuthorization(testChainID, 1, key, eip7702.ZeroAddress)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		auth   eip7702.SignedAuthorization
		checks []string
		valid  bool
	}{
		{"clean", sign(testChainID, 1), nil, true},
		{"wildcard chain", sign(big.NewInt(0), 1), []string{"chain id"}, true},
		{"other chain", sign(big.NewInt(11155111), 1), []string{"chain id"}, false},
		{"max nonce", sign(testChainID, math.MaxUint64), []string{"nonce"}, false},
		{"revocation", revoke, []string{"target"}, true},
		{"high s", highS, []string{"signature", "signature"}, false},
		{"bad parity", badParity, []string{"signature", "signature"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := CheckAuthorization(tt.auth, testChainID)
			if len(findings) != len(tt.checks) {
				t.Fatalf("got findings:\n%s", FormatFindings(findings))
			}
			for i, f := range findings {
				if f.Check != tt.checks[i] {
					t.Errorf("finding %d check = %q, want %q", i, f.Check, tt.checks[i])
				}
			}
			if got := Valid(findings); got != tt.valid {
				t.Errorf("Valid = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestFormatFindings(t *testing.T) {
	if got := FormatFindings(nil); got != "no findings\n" {
		t.Errorf("empty = %q", got)
	}
	out := FormatFindings([]Finding{{Check: "nonce", Severity: SeverityInvalid, Message: "nonce 2^64-1 can never be used"}})
	if !strings.HasPrefix(out, "[INVALID] nonce:") {
		t.Errorf("got %q", out)
	}
	if Severity(9).String() != "Severity(9)" {
		t.Errorf("unknown severity = %s", Severity(9))
	}
}
