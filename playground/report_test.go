package playground

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  *big.Int
		want string
	}{
		{nil, "0"},
		{big.NewInt(0), "0.000000000000000000"},
		{big.NewInt(1_000_000_000_000_000), "0.001000000000000000"},
		{new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18)), "3.000000000000000000"},
	}
	for _, tt := range tests {
		if got := FormatEther(tt.wei); got != tt.want {
			t.Errorf("FormatEther(%v) = %s, want %s", tt.wei, got, tt.want)
		}
	}
}

func TestFormatFlowResult(t *testing.T) {
	res := &FlowResult{
		Name:     "delegate",
		TxHashes: []common.Hash{common.HexToHash("0xabcd")},
		Links:    []string{"https://sepolia.etherscan.io/tx/0xabcd"},
		RawTxs:   [][]byte{{0x04, 0xc0}},
		Details: map[string]any{
			"target":    testTarget,
			"authNonce": uint64(3),
			"mode":      "relayer",
		},
	}
	out := FormatFlowResult(res)
	for _, want := range []string{"Flow: delegate", "Explorer: https://sepolia.etherscan.io/tx/0xabcd", "Raw:      0x04c0"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
	// details are printed in key order
	a, m, tg := strings.Index(out, "authNonce:"), strings.Index(out, "mode:"), strings.Index(out, "target:")
	if a < 0 || !(a < m && m < tg) {
		t.Errorf("details out of order:\n%s", out)
	}
}

func TestFormatAccounts(t *testing.T) {
	out := FormatAccounts([]AccountState{
		{NamedAccount: NamedAccount{Name: "receiver", Address: testReceiver}, Nonce: 2, Balance: big.NewInt(1e18)},
	})
	if !strings.Contains(out, testReceiver.Hex()) || !strings.Contains(out, "1.000000000000000000 ETH") {
		t.Errorf("got\n%s", out)
	}
}
