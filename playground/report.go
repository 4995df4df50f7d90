package playground

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

const (
	rule     = "================================================================================\n"
	thinRule = "--------------------------------------------------------------------------------\n"
)

func header(sb *strings.Builder, title string) {
	sb.WriteString("\n" + rule)
	fmt.Fprintf(sb, "  %s\n", title)
	sb.WriteString(rule + "\n")
}

// FormatEther renders a wei amount in ether.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	q, r := new(big.Int).QuoRem(wei, big.NewInt(params.Ether), new(big.Int))
	return fmt.Sprintf("%v.%018d", q, r)
}

// FormatFlowResult renders what a flow submitted.
func FormatFlowResult(res *FlowResult) string {
	var sb strings.Builder
	header(&sb, "Flow: "+res.Name)

	for i, hash := range res.TxHashes {
		fmt.Fprintf(&sb, "TxHash[%d]: %s\n", i, hash.Hex())
		if i < len(res.Links) {
			fmt.Fprintf(&sb, "  Explorer: %s\n", res.Links[i])
		}
		if i < len(res.RawTxs) {
			fmt.Fprintf(&sb, "  Raw:      %s\n", hexutil.Encode(res.RawTxs[i]))
		}
		if i < len(res.Receipts) {
			r := res.Receipts[i]
			status := "success"
			if r.Status != types.ReceiptStatusSuccessful {
				status = "failed"
			}
			fmt.Fprintf(&sb, "  Receipt:  %s in block %v, gas used %d\n", status, r.BlockNumber, r.GasUsed)
		}
	}

	for i, a := range res.Authorizations {
		fmt.Fprintf(&sb, "Authorization[%d]: chainId=%v address=%s nonce=%d yParity=%d\n",
			i, a.ChainID, a.Address.Hex(), a.Nonce, a.YParity)
	}

	if len(res.Details) > 0 {
		sb.WriteString(thinRule)
		keys := make([]string, 0, len(res.Details))
		for k := range res.Details {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%-22s %v\n", k+":", res.Details[k])
		}
	}
	sb.WriteString(rule)
	return sb.String()
}

// FormatAccounts renders a nonce and balance listing.
func FormatAccounts(states []AccountState) string {
	var sb strings.Builder
	header(&sb, "Accounts")
	for _, s := range states {
		fmt.Fprintf(&sb, "%-10s %s  nonce %-6d balance %s ETH\n", s.Name, s.Address.Hex(), s.Nonce, FormatEther(s.Balance))
	}
	sb.WriteString(rule)
	return sb.String()
}

// FormatDelegation renders an account's code status.
func FormatDelegation(d Delegation) string {
	switch {
	case d.Delegated:
		return fmt.Sprintf("%s is delegated to %s (code %s)\n", d.Address.Hex(), d.Target.Hex(), hexutil.Encode(d.Code))
	case d.IsContract:
		return fmt.Sprintf("%s is a contract (%d bytes of code)\n", d.Address.Hex(), len(d.Code))
	default:
		return fmt.Sprintf("%s has no code\n", d.Address.Hex())
	}
}

// FormatInspection renders a fetched transaction and its recovered authorities.
func FormatInspection(in *TxInspection) string {
	var sb strings.Builder
	header(&sb, "Transaction "+in.Tx.Hash.Hex())

	to := "<create>"
	if in.Tx.To != nil {
		to = in.Tx.To.Hex()
	}
	fmt.Fprintf(&sb, "Type:   %d\n", uint64(in.Tx.Type))
	fmt.Fprintf(&sb, "From:   %s", in.Sender.Hex())
	if in.SenderVerified {
		sb.WriteString(" (recovered from raw envelope)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "To:     %s\n", to)
	fmt.Fprintf(&sb, "Nonce:  %d\n", uint64(in.Tx.Nonce))
	fmt.Fprintf(&sb, "Gas:    %d\n", uint64(in.Tx.Gas))
	if in.Tx.BlockNumber != nil {
		fmt.Fprintf(&sb, "Block:  %v\n", in.Tx.BlockNumber.ToInt())
	} else {
		sb.WriteString("Block:  pending\n")
	}
	fmt.Fprintf(&sb, "Input:  %s\n", hexutil.Encode(in.Tx.Input))

	for i, a := range in.Authorizations {
		sb.WriteString(thinRule)
		fmt.Fprintf(&sb, "Authorization[%d]\n", i)
		fmt.Fprintf(&sb, "  chainId:   %v\n", a.ChainID)
		fmt.Fprintf(&sb, "  address:   %s\n", a.Address.Hex())
		fmt.Fprintf(&sb, "  nonce:     %d\n", a.Nonce)
		if a.Err != nil {
			fmt.Fprintf(&sb, "  authority: <%v>\n", a.Err)
		} else {
			fmt.Fprintf(&sb, "  authority: %s\n", a.Authority.Hex())
		}
		for _, f := range a.Findings {
			fmt.Fprintf(&sb, "  [%s] %s: %s\n", f.Severity, f.Check, f.Message)
		}
	}
	sb.WriteString(rule)
	return sb.String()
}

// FormatContractState renders the delegation contract's view functions.
func FormatContractState(s *ContractState) string {
	var sb strings.Builder
	header(&sb, "Contract state at "+s.Address.Hex())
	rows := []struct {
		name  string
		value any
	}{
		{"owner", s.Owner.Hex()},
		{"x", s.X},
		{"getUintFromKey0", s.UintFromKey0},
		{"getUintFromKey1", s.UintFromKey1},
		{"immutableAddress", s.ImmutableAddress.Hex()},
		{"publicAddress", s.PublicAddress.Hex()},
	}
	for _, r := range rows {
		fmt.Fprintf(&sb, "%-18s %v\n", r.name+":", r.value)
	}
	sb.WriteString(rule)
	return sb.String()
}

// FormatExplorerTransaction renders an explorer lookup.
func FormatExplorerTransaction(tx *ExplorerTransaction) string {
	var sb strings.Builder
	header(&sb, "Explorer "+tx.Hash.Hex())
	fmt.Fprintf(&sb, "Status:  %s (%s)\n", tx.Status, tx.Result)
	fmt.Fprintf(&sb, "Block:   %d, %d confirmations\n", tx.BlockNumber, tx.Confirmations)
	if tx.From != nil {
		fmt.Fprintf(&sb, "From:    %s\n", tx.From.Hash.Hex())
	}
	if tx.To != nil {
		fmt.Fprintf(&sb, "To:      %s\n", tx.To.Hash.Hex())
	}
	fmt.Fprintf(&sb, "Method:  %s\n", tx.Method)
	fmt.Fprintf(&sb, "Gas:     %s used of %s\n", tx.GasUsed, tx.GasLimit)
	fmt.Fprintf(&sb, "Fee:     %s wei (%s)\n", tx.Fee.Value, tx.Fee.Type)
	if len(tx.RevertReason) > 0 && string(tx.RevertReason) != "null" {
		fmt.Fprintf(&sb, "Revert:  %s\n", tx.RevertReason)
	}
	sb.WriteString(rule)
	return sb.String()
}

// FormatGasEstimate renders an intrinsic gas breakdown.
func FormatGasEstimate(est GasEstimate) string {
	var sb strings.Builder
	for _, c := range est.Components {
		fmt.Fprintf(&sb, "%-26s %4d x %6d = %8d\n", c.Name, c.Count, c.UnitCost, c.Gas)
	}
	fmt.Fprintf(&sb, "%-26s %24d\n", "intrinsic", est.Intrinsic)
	fmt.Fprintf(&sb, "%-26s %24d\n", "calldata floor", est.Floor)
	fmt.Fprintf(&sb, "%-26s %24d\n", "max refund", est.MaxRefund)
	return sb.String()
}
