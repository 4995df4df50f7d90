package playground

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/stable-net/eip7702-playground/eip7702"
)

// Severity ranks an authorization finding.
type Severity int

const (
	// SeverityInfo notes something worth knowing that does not affect validity.
	SeverityInfo Severity = iota
	// SeverityWarning marks an entry the node accepts but that is risky to sign.
	SeverityWarning
	// SeverityInvalid marks an entry the node skips.
	SeverityInvalid
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARN"
	case SeverityInvalid:
		return "INVALID"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Finding is one observation about a signed authorization.
type Finding struct {
	Check    string
	Severity Severity
	Message  string
}

var secp256k1HalfN = new(big.Int).Rsh(crypto.S256().Params().N, 1)

// CheckAuthorization inspects a signed authorization the way a node would
// before applying it. A SeverityInvalid finding means the network skips the
// entry; warnings flag entries that apply but are probably not intended.
func CheckAuthorization(auth eip7702.SignedAuthorization, chainID *big.Int) []Finding {
	var findings []Finding
	add := func(check string, sev Severity, format string, args ...any) {
		findings = append(findings, Finding{Check: check, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case auth.ChainID == nil || auth.ChainID.Sign() == 0:
		add("chain id", SeverityWarning, "chain id 0 is valid on every chain and can be replayed")
	case chainID != nil && auth.ChainID.Cmp(chainID) != 0:
		add("chain id", SeverityInvalid, "signed for chain %v, network is %v", auth.ChainID, chainID)
	}

	if auth.Nonce == math.MaxUint64 {
		add("nonce", SeverityInvalid, "nonce 2^64-1 can never be used")
	}

	if auth.IsRevocation() {
		add("target", SeverityInfo, "delegates to the zero address and clears the account's code")
	}

	if auth.YParity > 1 {
		add("signature", SeverityInvalid, "yParity %d is not 0 or 1", auth.YParity)
	}
	if auth.S != nil && auth.S.Cmp(secp256k1HalfN) > 0 {
		add("signature", SeverityInvalid, "s is in the upper half of the curve order")
	}
	if _, err := auth.Authority(); err != nil {
		add("signature", SeverityInvalid, "authority cannot be recovered: %v", err)
	}
	return findings
}

// Valid reports whether none of the findings would make the network skip
// the authorization.
func Valid(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityInvalid {
			return false
		}
	}
	return true
}

// FormatFindings renders findings one per line.
func FormatFindings(findings []Finding) string {
	if len(findings) == 0 {
		return "no findings\n"
	}
	var sb strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", f.Severity, f.Check, f.Message)
	}
	return sb.String()
}
