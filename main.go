// EIP-7702 Playground - drive EOA code delegation flows against a live node
//
// The playground signs authorizations for a delegator account, wraps them in
// type-4 transactions and submits them either through a relayer account or
// from the delegator itself. It can then inspect what the chain did.
//
// Usage:
//
//	eip7702-playground [options] <action>
//
// Actions (one per run):
//
//	-nonces                   Show pending nonces and balances
//	-fee-data                 Show the base fee and derived EIP-1559 caps
//	-delegate                 Delegate the delegator to -target
//	-revert                   Clear the delegator's code
//	-delegate-execute         Delegate and run the call batch in one transaction
//	-delegate-execute-revert  Delegate+execute, then revert, as two transactions
//	-delegate-revert          One transaction carrying a delegate and a revert entry
//	-ephemeral                Delegate a freshly generated account (chain id 0)
//	-execute                  Run the call batch on the already delegated account
//	-deploy <file>            Deploy the target contract from a bytecode file
//	-initialize               Call initialize and setUintToKey1 on -target
//	-set-target               Call setUintToKey1 on -target
//	-set-delegator            Call setUintToKey1 and setX through the delegated account
//	-delegate-call-target     Delegate and call setUintToKey1 on -target in one transaction
//	-nick                     Delegate from a keyless sender funded by the relayer
//	-code                     Show the delegation status of -address (default: delegator)
//	-state                    Read the delegation contract state at -address
//	-inspect <hash>           Fetch a transaction and recover its authorities
//	-explorer <hash>          Look a transaction up on the explorer REST API
//	-gas                      Print the intrinsic gas of the delegate-and-execute transaction
//
// Options:
//
//	-self          Send from the delegator instead of the relayer
//	-calls         YAML file with the call batch (default: three small transfers)
//	-wait          Poll for receipts at this interval (0 disables)
//	-value         setUintToKey1 value for the state flows (default per flow)
//	-x             setX value for -set-delegator
//	-init-value    initialize value for -initialize
//	-preset        Chain preset (local, mainnet, sepolia, holesky, mekong)
//	-env           Path to .env file (default: .env in current directory)
//	-list-presets  List available chain presets
//
// Environment Variables:
//
//	CHAIN_ID          Chain ID (checked against the node when set)
//	RPC_URL           RPC endpoint URL
//	CHAIN_PRESET      Chain preset name (e.g., mekong)
//	DELEGATOR_KEY     Key of the account that signs authorizations
//	RELAYER_KEY       Key of the account that pays for relayed flows
//	MNEMONIC          BIP39 mnemonic; accounts 0 and 1 stand in for missing keys
//	RECEIVER_ADDRESS  Third recipient of the default call batch
//	TARGET_ADDRESS    Delegation target contract address
//	EXPLORER_API      Explorer REST endpoint
//	LOG_LEVEL         trace, debug, info, warn, error or crit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/stable-net/eip7702-playground/config"
	"github.com/stable-net/eip7702-playground/eip7702"
	"github.com/stable-net/eip7702-playground/playground"
)

func main() {
	// Pre-parse to get env path for early loading
	// We need to load .env before defining other flags so defaults work
	envLoaded := false
	for i, arg := range os.Args[1:] {
		if arg == "-env" && i+1 < len(os.Args)-1 {
			_ = config.LoadConfig(os.Args[i+2])
			envLoaded = true
			break
		} else if strings.HasPrefix(arg, "-env=") {
			_ = config.LoadConfig(strings.TrimPrefix(arg, "-env="))
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		_ = config.LoadConfig("")
	}
	env := config.FromEnv()

	_ = flag.String("env", "", "Path to .env file (default: .env in current directory)")
	preset := flag.String("preset", "", "Chain preset (local, mainnet, sepolia, holesky, mekong)")
	listPresets := flag.Bool("list-presets", false, "List available chain presets")

	var defaultChainID int64
	if env.ChainID != nil {
		defaultChainID = env.ChainID.Int64()
	}
	chainID := flag.Int64("chain-id", defaultChainID, "Expected chain ID (0: use the node's)")
	rpcURL := flag.String("rpc", env.RPCURL, "RPC URL")
	delegatorKey := flag.String("delegator-key", env.DelegatorKey, "Delegator private key hex")
	relayerKey := flag.String("relayer-key", env.RelayerKey, "Relayer private key hex")
	mnemonic := flag.String("mnemonic", env.Mnemonic, "BIP39 mnemonic for deriving missing keys")
	targetAddr := flag.String("target", env.Target, "Delegation target contract address")
	receiverAddr := flag.String("receiver", env.Receiver, "Receiver of the default call batch")
	address := flag.String("address", "", "Account for -code and -state (default: delegator)")
	callsFile := flag.String("calls", "", "YAML file with the call batch")
	explorerAPI := flag.String("explorer-api", env.ExplorerAPI, "Explorer REST endpoint")
	logLevel := flag.String("log-level", env.LogLevel, "Log level")
	self := flag.Bool("self", false, "Send from the delegator instead of the relayer")
	wait := flag.Duration("wait", 0, "Poll for receipts at this interval (0 disables)")
	gasLimit := flag.Uint64("gas-limit", 0, "Gas limit override (0: estimate)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")

	nonces := flag.Bool("nonces", false, "Show pending nonces and balances")
	feeData := flag.Bool("fee-data", false, "Show fee data")
	delegate := flag.Bool("delegate", false, "Delegate the delegator to -target")
	revert := flag.Bool("revert", false, "Clear the delegator's code")
	delegateExecute := flag.Bool("delegate-execute", false, "Delegate and execute the call batch")
	delegateExecuteRevert := flag.Bool("delegate-execute-revert", false, "Delegate+execute, then revert")
	delegateRevert := flag.Bool("delegate-revert", false, "Delegate and revert in one authorization list")
	ephemeral := flag.Bool("ephemeral", false, "Delegate a freshly generated account")
	execute := flag.Bool("execute", false, "Execute the call batch on the delegated account")
	code := flag.Bool("code", false, "Show delegation status")
	state := flag.Bool("state", false, "Read delegation contract state")
	inspect := flag.String("inspect", "", "Transaction hash to inspect")
	explorerTx := flag.String("explorer", "", "Transaction hash to look up on the explorer")
	gas := flag.Bool("gas", false, "Print intrinsic gas of the delegate-and-execute transaction")
	deploy := flag.String("deploy", "", "Bytecode file (hex or compiler artifact) to deploy as the target")
	initialize := flag.Bool("initialize", false, "Initialize the target contract")
	setTarget := flag.Bool("set-target", false, "Call setUintToKey1 on the target contract")
	setDelegator := flag.Bool("set-delegator", false, "Call setUintToKey1 and setX through the delegated account")
	delegateCallTarget := flag.Bool("delegate-call-target", false, "Delegate and call setUintToKey1 on the target")
	nick := flag.Bool("nick", false, "Delegate from a keyless sender funded by the relayer")
	value := flag.String("value", "", "setUintToKey1 value (default per flow)")
	xValue := flag.String("x", "", "setX value")
	initValue := flag.String("init-value", "", "initialize value")

	flag.Parse()

	setupLogging(*logLevel)

	if *listPresets {
		config.PrintPresets()
		return
	}

	// Apply preset if specified (preset values are overridden by explicit flags)
	if *preset != "" {
		presetConfig, err := config.ApplyPreset(*preset)
		if err != nil {
			fatalf("Error: %v", err)
		}
		if !isFlagSet("chain-id") {
			*chainID = presetConfig.ChainID.Int64()
		}
		if !isFlagSet("rpc") {
			*rpcURL = presetConfig.RPCURL
		}
		if !isFlagSet("explorer-api") && presetConfig.ExplorerAPI != "" {
			*explorerAPI = presetConfig.ExplorerAPI
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if *explorerTx != "" {
		runExplorerLookup(ctx, *explorerAPI, *explorerTx)
		return
	}

	fmt.Println("EIP-7702 Playground")
	fmt.Println("===================")

	client, err := playground.Dial(ctx, *rpcURL)
	if err != nil {
		fatalf("Error: %v", err)
	}
	defer client.Close()

	if *feeData {
		runFeeData(ctx, client)
		return
	}
	if *inspect != "" {
		runInspect(ctx, client, *inspect)
		return
	}
	if (*code || *state) && *address != "" {
		addr := mustAddress("address", *address)
		if *code {
			runCode(ctx, client, addr)
		} else {
			runState(ctx, client, addr)
		}
		return
	}

	cfg := &config.Config{
		DelegatorKey: *delegatorKey,
		RelayerKey:   *relayerKey,
		Mnemonic:     *mnemonic,
	}
	delegatorPriv, relayerPriv, err := cfg.Keys()
	if err != nil {
		fatalf("Error: %v", err)
	}
	var expected *big.Int
	if *chainID != 0 {
		expected = big.NewInt(*chainID)
	}
	node, err := client.ChainID(ctx)
	if err != nil {
		fatalf("Error: %v", err)
	}
	relayer, err := playground.NewRelayer(ctx, client, playground.RelayerConfig{
		Delegator:    delegatorPriv,
		Relayer:      relayerPriv,
		ChainID:      expected,
		ExplorerURL:  config.ExplorerURL(node),
		GasLimit:     *gasLimit,
		WaitInterval: *wait,
	})
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Chain ID:  %s\n", relayer.ChainID())
	fmt.Printf("Delegator: %s\n", relayer.DelegatorAddress().Hex())
	fmt.Printf("Relayer:   %s\n", relayer.RelayerAddress().Hex())

	var receiver common.Address
	if *receiverAddr != "" {
		receiver = mustAddress("receiver", *receiverAddr)
	}

	mode := playground.ByRelayer
	if *self {
		mode = playground.ByDelegator
	}

	switch {
	case *nonces:
		states, err := playground.Nonces(ctx, client, relayer.Accounts(receiver))
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Print(playground.FormatAccounts(states))
	case *code:
		runCode(ctx, client, relayer.DelegatorAddress())
	case *state:
		runState(ctx, client, relayer.DelegatorAddress())
	case *delegate:
		printFlow(relayer.Delegate(ctx, mustTarget(*targetAddr), mode))
	case *revert:
		printFlow(relayer.Revert(ctx, mode))
	case *delegateExecute:
		calls := loadCalls(*callsFile, relayer, receiver)
		printFlow(relayer.DelegateAndExecute(ctx, mustTarget(*targetAddr), calls, mode))
	case *delegateExecuteRevert:
		calls := loadCalls(*callsFile, relayer, receiver)
		printFlow(relayer.DelegateExecuteRevert(ctx, mustTarget(*targetAddr), calls, mode))
	case *delegateRevert:
		calls := loadCalls(*callsFile, relayer, receiver)
		printFlow(relayer.DelegateAndRevert(ctx, mustTarget(*targetAddr), calls, mode))
	case *ephemeral:
		printFlow(relayer.DelegateEphemeral(ctx, mustTarget(*targetAddr)))
	case *execute:
		calls := loadCalls(*callsFile, relayer, receiver)
		printFlow(relayer.ExecuteBatch(ctx, calls, mode))
	case *gas:
		runGas(relayer, loadCalls(*callsFile, relayer, receiver))
	case *deploy != "":
		bytecode, err := playground.LoadBytecode(*deploy)
		if err != nil {
			fatalf("Error: %v", err)
		}
		res, err := relayer.Deploy(ctx, bytecode)
		printFlow(res, err)
		fmt.Printf("Set TARGET_ADDRESS=%s to use the new contract\n", res.Details["contractAddress"])
	case *initialize:
		printFlow(relayer.InitializeTarget(ctx, mustTarget(*targetAddr),
			mustUint("init-value", *initValue, playground.DefaultInitValue),
			mustUint("value", *value, playground.DefaultKey1)))
	case *setTarget:
		printFlow(relayer.SetTargetKey1(ctx, mustTarget(*targetAddr), mustUint("value", *value, playground.DefaultUpdateKey1)))
	case *setDelegator:
		printFlow(relayer.SetDelegatorState(ctx,
			mustUint("value", *value, playground.DefaultKey1),
			mustUint("x", *xValue, playground.DefaultX)))
	case *delegateCallTarget:
		printFlow(relayer.DelegateAndCallTarget(ctx, mustTarget(*targetAddr), mustUint("value", *value, playground.DefaultCallKey1), mode))
	case *nick:
		printFlow(relayer.DelegateViaNick(ctx, mustTarget(*targetAddr)))
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// setupLogging installs a terminal handler on stderr at the named level.
func setupLogging(level string) {
	lvl, err := parseLogLevel(level)
	if err != nil {
		fatalf("Error: %v", err)
	}
	var output io.Writer = os.Stderr
	useColor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	if useColor {
		output = colorable.NewColorableStderr()
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(output, lvl, useColor)))
}

// parseLogLevel maps a level name to the handler level.
func parseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info", "":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	return 0, fmt.Errorf("invalid log level %q (want trace, debug, info, warn, error or crit)", name)
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func mustAddress(name, s string) common.Address {
	addr, err := eip7702.ParseAddress(s)
	if err != nil {
		fatalf("Error: %s: %v", name, err)
	}
	return addr
}

func mustTarget(s string) common.Address {
	if s == "" {
		fatalf("Error: -target address required (or set TARGET_ADDRESS)")
	}
	return mustAddress("target", s)
}

// mustUint parses a decimal or 0x-prefixed integer flag, or returns def when
// the flag is empty.
func mustUint(name, s string, def *big.Int) *big.Int {
	if s == "" {
		return def
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		fatalf("Error: -%s: invalid value %q", name, s)
	}
	return v
}

func loadCalls(path string, relayer *playground.Relayer, receiver common.Address) []playground.Call {
	if path == "" {
		return playground.DefaultCalls(relayer.DelegatorAddress(), relayer.RelayerAddress(), receiver)
	}
	calls, err := playground.LoadCalls(path)
	if err != nil {
		fatalf("Error: %v", err)
	}
	return calls
}

func printFlow(res *playground.FlowResult, err error) {
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Print(playground.FormatFlowResult(res))
	for _, r := range res.Receipts {
		if r.Status == 0 {
			os.Exit(1)
		}
	}
}

func runFeeData(ctx context.Context, client *playground.Client) {
	fees, err := client.FeeData(ctx)
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Base fee:                 %s wei\n", fees.BaseFee)
	fmt.Printf("Max priority fee per gas: %s wei\n", fees.MaxPriorityFeePerGas)
	fmt.Printf("Max fee per gas:          %s wei\n", fees.MaxFeePerGas)
}

func runCode(ctx context.Context, client *playground.Client, addr common.Address) {
	d, err := playground.DelegationStatus(ctx, client, addr)
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Print(playground.FormatDelegation(d))
}

func runState(ctx context.Context, client *playground.Client, addr common.Address) {
	s, err := playground.ReadContractState(ctx, client, addr)
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Print(playground.FormatContractState(s))
}

func runInspect(ctx context.Context, client *playground.Client, hash string) {
	in, err := playground.InspectTransaction(ctx, client, common.HexToHash(hash))
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Print(playground.FormatInspection(in))
}

func runExplorerLookup(ctx context.Context, api, hash string) {
	if api == "" {
		fatalf("Error: -explorer-api required (or set EXPLORER_API / -preset mekong)")
	}
	tx, err := playground.NewExplorerClient(api).Transaction(ctx, common.HexToHash(hash))
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Print(playground.FormatExplorerTransaction(tx))
}

func runGas(relayer *playground.Relayer, calls []playground.Call) {
	data, err := playground.EncodeExecute(calls)
	if err != nil {
		fatalf("Error: %v", err)
	}
	to := relayer.DelegatorAddress()
	intent := eip7702.TxIntent{
		ChainID:  relayer.ChainID(),
		To:       &to,
		Data:     data,
		AuthList: []eip7702.SignedAuthorization{{}},
	}
	est := playground.IntrinsicGas(intent)
	fmt.Print(playground.FormatGasEstimate(est))
	fmt.Printf("%-26s %24d\n", "default gas limit", playground.DefaultGasLimit(intent))
}
