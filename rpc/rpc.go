// Package rpc is a minimal JSON-RPC client used to resolve dynamic
// bytecode ("call:<addr>:<method>" stateless contracts) and, optionally,
// to backfill missing storage slots from an upstream Ethereum node.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Client is a JSON-RPC client bound to a single upstream endpoint.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

// NewClient returns a Client using http.DefaultClient.
func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTP: http.DefaultClient}
}

func normalizeBlock(blk string) string {
	blkNumber, ok := new(big.Int).SetString(strings.TrimPrefix(blk, "0x"), 16)
	if !ok || blkNumber.Cmp(big.NewInt(0)) <= 0 {
		return "latest"
	}
	return blk
}

// CodeAt fetches the deployed bytecode at address as of block ("latest"
// or a 0x-prefixed hex block number).
func (c *Client) CodeAt(ctx context.Context, address common.Address, blk string) ([]byte, error) {
	resp, err := c.call(ctx, "eth_getCode", []interface{}{address.Hex(), normalizeBlock(blk)})
	if err != nil {
		return nil, err
	}
	var result string
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, err
	}
	return hexutil.MustDecode(result), nil
}

// StorageAt fetches one storage slot at address as of block.
func (c *Client) StorageAt(ctx context.Context, address common.Address, slot common.Hash, blk string) (common.Hash, error) {
	resp, err := c.call(ctx, "eth_getStorageAt", []interface{}{address.Hex(), slot.Hex(), normalizeBlock(blk)})
	if err != nil {
		return common.Hash{}, err
	}
	var result string
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(result), nil
}

// BalanceAt fetches the native balance of address as of block.
func (c *Client) BalanceAt(ctx context.Context, address common.Address, blk string) (*big.Int, error) {
	resp, err := c.call(ctx, "eth_getBalance", []interface{}{address.Hex(), normalizeBlock(blk)})
	if err != nil {
		return nil, err
	}
	var result string
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(strings.TrimPrefix(result, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("rpc: invalid balance in response: %s", result)
	}
	return balance, nil
}

type request struct {
	ID      int           `json:"id"`
	JSONRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	ID      int             `json:"id"`
	JSONRpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Err     *errResponse    `json:"error,omitempty"`
}

type errResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *errResponse) Error() string {
	return fmt.Sprintf(`{"code": %d, "message": %q}`, e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (*response, error) {
	payload := request{ID: 1, JSONRpc: "2.0", Method: method, Params: params}
	data, err := json.Marshal(&payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result response
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return &result, nil
}
