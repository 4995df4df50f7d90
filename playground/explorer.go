package playground

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxURL links hash on a block explorer whose base URL ends in a slash or not.
func TxURL(base string, hash common.Hash) string {
	return strings.TrimSuffix(base, "/") + "/tx/" + hash.Hex()
}

// AddressURL links addr on a block explorer.
func AddressURL(base string, addr common.Address) string {
	return strings.TrimSuffix(base, "/") + "/address/" + addr.Hex()
}

// ExplorerClient reads transactions from a Blockscout-style REST API, such as
// the one behind the Mekong explorer.
type ExplorerClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewExplorerClient returns a client for the API rooted at baseURL.
func NewExplorerClient(baseURL string) *ExplorerClient {
	return &ExplorerClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ExplorerAddress is the address object embedded in explorer responses.
type ExplorerAddress struct {
	Hash       common.Address `json:"hash"`
	Name       string         `json:"name"`
	IsContract bool           `json:"is_contract"`
	IsVerified bool           `json:"is_verified"`
}

// ExplorerFee is the paid (actual) or maximum fee of a transaction, in wei.
type ExplorerFee struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ExplorerTransaction is the subset of /api/v2/transactions/{hash} this tool
// reports.
type ExplorerTransaction struct {
	Hash             common.Hash      `json:"hash"`
	Status           string           `json:"status"`
	Result           string           `json:"result"`
	BlockNumber      uint64           `json:"block_number"`
	Confirmations    uint64           `json:"confirmations"`
	Timestamp        string           `json:"timestamp"`
	Nonce            uint64           `json:"nonce"`
	Type             int              `json:"type"`
	Method           string           `json:"method"`
	From             *ExplorerAddress `json:"from"`
	To               *ExplorerAddress `json:"to"`
	Value            string           `json:"value"`
	GasUsed          string           `json:"gas_used"`
	GasLimit         string           `json:"gas_limit"`
	Fee              ExplorerFee      `json:"fee"`
	RevertReason     json.RawMessage  `json:"revert_reason"`
	TransactionTypes []string         `json:"transaction_types"`
	RawInput         string           `json:"raw_input"`
}

// Transaction fetches one transaction from the explorer.
func (e *ExplorerClient) Transaction(ctx context.Context, hash common.Hash) (*ExplorerTransaction, error) {
	url := e.BaseURL + "/api/v2/transactions/" + hash.Hex()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := e.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("explorer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer returned %s for %s: %s", resp.Status, hash.Hex(), strings.TrimSpace(string(body)))
	}

	var tx ExplorerTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("decode explorer transaction: %w", err)
	}
	return &tx, nil
}
