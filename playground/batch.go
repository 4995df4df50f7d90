package playground

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"gopkg.in/yaml.v3"

	"github.com/stable-net/eip7702-playground/eip7702"
)

// batchDelegationABI covers the delegation target the flows are written for:
// a batch executor that also keeps a little state so delegation effects are
// visible from outside.
const batchDelegationABI = `[
  {"type":"function","name":"execute","stateMutability":"payable",
   "inputs":[{"name":"calls","type":"tuple[]","components":[
     {"name":"data","type":"bytes"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}]}],
   "outputs":[]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"x","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUintFromKey0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUintFromKey1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"immutableAddress","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"publicAddress","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"setUintToKey1","stateMutability":"nonpayable","inputs":[{"name":"value","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"setX","stateMutability":"nonpayable","inputs":[{"name":"value","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[{"name":"value","type":"uint256"}],"outputs":[]}
]`

var batchABI = mustParseABI(batchDelegationABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Call is one entry of an execute batch.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// abiCall matches the tuple layout of execute's argument.
type abiCall struct {
	Data  []byte
	To    common.Address
	Value *big.Int
}

// EncodeExecute returns calldata for execute(calls).
func EncodeExecute(calls []Call) ([]byte, error) {
	args := make([]abiCall, len(calls))
	for i, c := range calls {
		v := c.Value
		if v == nil {
			v = new(big.Int)
		}
		data := c.Data
		if data == nil {
			data = []byte{}
		}
		args[i] = abiCall{Data: data, To: c.To, Value: v}
	}
	data, err := batchABI.Pack("execute", args)
	if err != nil {
		return nil, fmt.Errorf("pack execute: %w", err)
	}
	return data, nil
}

// EncodeSetUintToKey1 returns calldata for setUintToKey1(value).
func EncodeSetUintToKey1(value *big.Int) ([]byte, error) {
	return packUint("setUintToKey1", value)
}

// EncodeSetX returns calldata for setX(value).
func EncodeSetX(value *big.Int) ([]byte, error) {
	return packUint("setX", value)
}

// EncodeInitialize returns calldata for initialize(value).
func EncodeInitialize(value *big.Int) ([]byte, error) {
	return packUint("initialize", value)
}

func packUint(method string, value *big.Int) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	data, err := batchABI.Pack(method, value)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// TotalValue sums the ether forwarded by calls.
func TotalValue(calls []Call) *big.Int {
	total := new(big.Int)
	for _, c := range calls {
		if c.Value != nil {
			total.Add(total, c.Value)
		}
	}
	return total
}

// DefaultCalls is the demonstration batch: small transfers to the delegator
// itself, the relayer and the receiver.
func DefaultCalls(delegator, relayer, receiver common.Address) []Call {
	return []Call{
		{To: delegator, Value: big.NewInt(1_000_000_000_000_000)},
		{To: relayer, Value: big.NewInt(1_000_000_000_000)},
		{To: receiver, Value: big.NewInt(1_000_000_000)},
	}
}

type callFile struct {
	Calls []callEntry `yaml:"calls"`
}

type callEntry struct {
	To    string `yaml:"to"`
	Value string `yaml:"value"`
	Data  string `yaml:"data"`
}

// LoadCalls reads a batch from a YAML file of the form
//
//	calls:
//	  - to: 0x...
//	    value: 0.001ether
//	    data: 0x
func LoadCalls(path string) ([]Call, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCalls(raw)
}

// ParseCalls decodes the YAML batch format accepted by LoadCalls.
func ParseCalls(raw []byte) ([]Call, error) {
	var file callFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode calls: %w", err)
	}
	if len(file.Calls) == 0 {
		return nil, fmt.Errorf("decode calls: no calls")
	}

	calls := make([]Call, len(file.Calls))
	for i, e := range file.Calls {
		to, err := eip7702.ParseAddress(e.To)
		if err != nil {
			return nil, fmt.Errorf("calls[%d].to: %w", i, err)
		}
		value, err := ParseAmount(e.Value)
		if err != nil {
			return nil, fmt.Errorf("calls[%d].value: %w", i, err)
		}
		var data []byte
		if e.Data != "" && e.Data != "0x" {
			if data, err = hexutil.Decode(e.Data); err != nil {
				return nil, fmt.Errorf("calls[%d].data: %w", i, err)
			}
		}
		calls[i] = Call{To: to, Value: value, Data: data}
	}
	return calls, nil
}

var units = []struct {
	suffix string
	wei    *big.Int
}{
	{"ether", big.NewInt(params.Ether)},
	{"gwei", big.NewInt(params.GWei)},
	{"wei", big.NewInt(params.Wei)},
}

// ParseAmount parses a wei amount. A plain integer (decimal or 0x hex) is wei;
// a decimal with an ether, gwei or wei suffix is scaled by that unit.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return new(big.Int), nil
	}
	for _, u := range units {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			return scaleDecimal(strings.TrimSpace(num), u.wei)
		}
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func scaleDecimal(s string, unit *big.Int) (*big.Int, error) {
	whole, frac, _ := strings.Cut(s, ".")
	decimals := len(unit.String()) - 1
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
