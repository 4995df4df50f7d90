package playground

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// constructorArgs is the target contract's constructor: the address allowed
// to initialize it.
var constructorArgs = abi.Arguments{{Name: "admin", Type: mustNewType("address")}}

func mustNewType(name string) abi.Type {
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// DeploymentCode appends the ABI-encoded constructor argument to bytecode.
func DeploymentCode(bytecode []byte, admin common.Address) ([]byte, error) {
	if len(bytecode) == 0 {
		return nil, errors.New("empty bytecode")
	}
	args, err := constructorArgs.Pack(admin)
	if err != nil {
		return nil, fmt.Errorf("pack constructor: %w", err)
	}
	return append(slices.Clone(bytecode), args...), nil
}

// LoadBytecode reads creation bytecode from a file. See ParseBytecode.
func LoadBytecode(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bytecode: %w", err)
	}
	code, err := ParseBytecode(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, nil
}

// ParseBytecode accepts plain hex (with or without 0x), a compiler artifact
// with a "bytecode" string, or one with "bytecode": {"object": ...}.
func ParseBytecode(content []byte) ([]byte, error) {
	content = bytes.TrimSpace(content)
	text := string(content)
	if len(content) > 0 && content[0] == '{' {
		var artifact struct {
			Bytecode json.RawMessage `json:"bytecode"`
		}
		if err := json.Unmarshal(content, &artifact); err != nil {
			return nil, fmt.Errorf("decode artifact: %w", err)
		}
		if len(artifact.Bytecode) == 0 {
			return nil, errors.New("artifact has no bytecode")
		}
		if err := json.Unmarshal(artifact.Bytecode, &text); err != nil {
			var obj struct {
				Object string `json:"object"`
			}
			if err := json.Unmarshal(artifact.Bytecode, &obj); err != nil {
				return nil, fmt.Errorf("decode artifact bytecode: %w", err)
			}
			text = obj.Object
		}
	}
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
		text = "0x" + text
	}
	code, err := hexutil.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	if len(code) == 0 {
		return nil, errors.New("empty bytecode")
	}
	return code, nil
}
