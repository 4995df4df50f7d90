// Package config provides configuration management for the EIP-7702 playground
// with support for environment variables and chain presets.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stable-net/eip7702-playground/eip7702"
)

// Config holds all configuration values
type Config struct {
	ChainID      *big.Int // nil means use whatever the node reports
	RPCURL       string
	DelegatorKey string
	RelayerKey   string
	Mnemonic     string
	Receiver     string
	Target       string
	ExplorerURL  string
	ExplorerAPI  string
	LogLevel     string
}

// ChainPreset represents a predefined chain configuration
type ChainPreset struct {
	Name        string
	ChainID     *big.Int
	RPCURL      string
	ExplorerURL string
	ExplorerAPI string
}

// ChainPresets contains predefined configurations for the networks the
// playground has been used on
var ChainPresets = map[string]ChainPreset{
	"local": {
		Name:    "local",
		ChainID: big.NewInt(31337),
		RPCURL:  "http://localhost:8545",
	},
	"mainnet": {
		Name:        "mainnet",
		ChainID:     big.NewInt(1),
		RPCURL:      "https://eth.llamarpc.com",
		ExplorerURL: "https://etherscan.io/",
	},
	"sepolia": {
		Name:        "sepolia",
		ChainID:     big.NewInt(11155111),
		RPCURL:      "https://rpc.sepolia.org",
		ExplorerURL: "https://sepolia.etherscan.io/",
	},
	"holesky": {
		Name:        "holesky",
		ChainID:     big.NewInt(17000),
		RPCURL:      "https://rpc.holesky.ethpandaops.io",
		ExplorerURL: "https://holesky.etherscan.io/",
	},
	"mekong": {
		Name:        "mekong",
		ChainID:     big.NewInt(7078815900),
		RPCURL:      "https://rpc.mekong.ethpandaops.io",
		ExplorerURL: "https://explorer.mekong.ethpandaops.io/",
		ExplorerAPI: "https://explorer-api.mekong.ethpandaops.io",
	},
}

// defaultPreset supplies the explorer for chains without a preset.
const defaultPreset = "mekong"

// LoadConfig loads configuration from .env file
// It silently ignores if the file doesn't exist
func LoadConfig(envPath string) error {
	if envPath != "" {
		return godotenv.Load(envPath)
	}
	// Try to load from current directory, ignore if not exists
	_ = godotenv.Load()
	return nil
}

// FromEnv collects every setting from the environment. Values missing from
// the environment fall back to the CHAIN_PRESET preset where it has one.
func FromEnv() *Config {
	cfg := &Config{
		ChainID:      GetChainID(),
		RPCURL:       GetRPCURL(),
		DelegatorKey: GetDelegatorKey(),
		RelayerKey:   GetRelayerKey(),
		Mnemonic:     GetMnemonic(),
		Receiver:     GetReceiverAddress(),
		Target:       GetTargetAddress(),
		ExplorerAPI:  GetExplorerAPI(),
		LogLevel:     GetLogLevel(),
	}
	if cfg.ChainID != nil {
		cfg.ExplorerURL = ExplorerURL(cfg.ChainID)
	}
	return cfg
}

// GetChainID returns chain ID from environment variable or preset, or nil
// when neither is set
func GetChainID() *big.Int {
	if val := os.Getenv("CHAIN_ID"); val != "" {
		if id, ok := new(big.Int).SetString(val, 0); ok {
			return id
		}
	}
	if p, ok := envPreset(); ok {
		return new(big.Int).Set(p.ChainID)
	}
	return nil
}

// GetRPCURL returns RPC URL from environment variable or default
func GetRPCURL() string {
	if val := os.Getenv("RPC_URL"); val != "" {
		return val
	}
	if p, ok := envPreset(); ok {
		return p.RPCURL
	}
	return "http://localhost:8545"
}

// GetDelegatorKey returns the key of the account that signs authorizations
func GetDelegatorKey() string {
	return strings.TrimPrefix(os.Getenv("DELEGATOR_KEY"), "0x")
}

// GetRelayerKey returns the key of the account that pays for relayed flows
func GetRelayerKey() string {
	return strings.TrimPrefix(os.Getenv("RELAYER_KEY"), "0x")
}

// GetMnemonic returns the BIP39 mnemonic keys are derived from when no
// explicit key is set
func GetMnemonic() string {
	return os.Getenv("MNEMONIC")
}

// GetReceiverAddress returns the third account of the demonstration batch
func GetReceiverAddress() string {
	return os.Getenv("RECEIVER_ADDRESS")
}

// GetTargetAddress returns delegation target address from environment variable
// Returns empty string if not set
func GetTargetAddress() string {
	return os.Getenv("TARGET_ADDRESS")
}

// GetExplorerAPI returns the explorer REST endpoint
func GetExplorerAPI() string {
	if val := os.Getenv("EXPLORER_API"); val != "" {
		return val
	}
	if p, ok := envPreset(); ok {
		return p.ExplorerAPI
	}
	return ""
}

// GetLogLevel returns the log level name, "info" by default
func GetLogLevel() string {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		return val
	}
	return "info"
}

func envPreset() (ChainPreset, bool) {
	name := os.Getenv("CHAIN_PRESET")
	if name == "" {
		return ChainPreset{}, false
	}
	return GetChainPreset(name)
}

// GetChainPreset returns a preset by name (case-insensitive)
func GetChainPreset(name string) (ChainPreset, bool) {
	preset, ok := ChainPresets[strings.ToLower(name)]
	return preset, ok
}

// PresetForChain returns the preset whose chain ID is chainID
func PresetForChain(chainID *big.Int) (ChainPreset, bool) {
	if chainID == nil {
		return ChainPreset{}, false
	}
	for _, p := range ChainPresets {
		if p.ChainID.Cmp(chainID) == 0 {
			return p, true
		}
	}
	return ChainPreset{}, false
}

// ExplorerURL returns the block explorer for chainID. Chains without a known
// explorer get the Mekong one; a local chain has none.
func ExplorerURL(chainID *big.Int) string {
	if p, ok := PresetForChain(chainID); ok && (p.ExplorerURL != "" || p.Name == "local") {
		return p.ExplorerURL
	}
	return ChainPresets[defaultPreset].ExplorerURL
}

// ApplyPreset returns configuration from a named preset
func ApplyPreset(name string) (*Config, error) {
	preset, ok := GetChainPreset(name)
	if !ok {
		return nil, fmt.Errorf("unknown chain preset: %s (available: %s)", name, strings.Join(ListPresets(), ", "))
	}
	return &Config{
		ChainID:     new(big.Int).Set(preset.ChainID),
		RPCURL:      preset.RPCURL,
		ExplorerURL: preset.ExplorerURL,
		ExplorerAPI: preset.ExplorerAPI,
	}, nil
}

// ListPresets returns all available preset names sorted alphabetically
func ListPresets() []string {
	names := make([]string, 0, len(ChainPresets))
	for name := range ChainPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PrintPresets prints all available presets to stdout
func PrintPresets() {
	fmt.Println("Available chain presets:")
	names := ListPresets()
	for _, name := range names {
		p := ChainPresets[name]
		fmt.Printf("  %-10s chainId: %-12s rpc: %s\n", name, p.ChainID.String(), p.RPCURL)
	}
}

// Keys resolves the delegator and relayer keys. Explicit keys win; otherwise
// both are derived from the mnemonic at indexes 0 and 1.
func (c *Config) Keys() (delegator, relayer *ecdsa.PrivateKey, err error) {
	resolve := func(name, hexKey string, index uint32) (*ecdsa.PrivateKey, error) {
		switch {
		case hexKey != "":
			key, err := eip7702.HexToPrivateKey(hexKey)
			if err != nil {
				return nil, fmt.Errorf("%s key: %w", name, err)
			}
			return key, nil
		case c.Mnemonic != "":
			key, err := DeriveKey(c.Mnemonic, index)
			if err != nil {
				return nil, fmt.Errorf("%s key from mnemonic: %w", name, err)
			}
			return key, nil
		}
		return nil, errors.New(name + " key is not configured (set " + strings.ToUpper(name) + "_KEY or MNEMONIC)")
	}
	if delegator, err = resolve("delegator", c.DelegatorKey, 0); err != nil {
		return nil, nil, err
	}
	if relayer, err = resolve("relayer", c.RelayerKey, 1); err != nil {
		return nil, nil, err
	}
	return delegator, relayer, nil
}
