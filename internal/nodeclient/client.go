package nodeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	httptransport "github.com/tronwatch/core/internal/pkg/transport/http"
	"github.com/tronwatch/core/internal/pkg/transport/jsonrpc"
	"github.com/tronwatch/core/internal/pkg/types"

	"github.com/shopspring/decimal"
)

// blockResponse is the wire shape of a confirmed block as returned by a
// Tron-family node, with integer fields encoded either as decimal or
// "0x"-prefixed hex strings — the client parses both defensively.
type blockResponse struct {
	Number       string               `json:"number"`
	Hash         string               `json:"hash"`
	ParentHash   string               `json:"parentHash"`
	Timestamp    string               `json:"timestamp"` // unix millis, decimal or hex
	Transactions []transactionWireDTO `json:"transactions"`
}

type transactionWireDTO struct {
	Hash  string `json:"hash"`
	Index int    `json:"index"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"` // native amount in SUN, decimal or hex
}

type receiptLogDTO struct {
	LogIndex int      `json:"logIndex"`
	Address  string   `json:"address"`
	Topics   []string `json:"topics"`
	Data     string   `json:"data"`
}

type receiptResponse struct {
	TxHash       string          `json:"txHash"`
	Status       string          `json:"status"` // "SUCCESS" | "FAILED"
	ResourceCost string          `json:"resourceCost"`
	UnitPrice    string          `json:"unitPrice"`
	Logs         []receiptLogDTO `json:"logs"`
}

// transferEventTopic is the well-known signature for an ERC20/TRC20-style
// "Transfer(address,address,uint256)" log.
const transferEventTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// Client is the Node Client: a failover-aware endpoint pool exposing the
// three upstream operations the Scanner needs (spec.md §4.1).
type Client struct {
	pool *Pool

	mu             sync.Mutex
	decimalsByAddr map[string]int32 // local decimals registry, seeded by config and filled by inference
}

// New builds a Client from the given endpoint configs. seedDecimals lets
// operators pre-populate well-known token contracts (e.g. USDT) so the
// client never has to call the inference entrypoint for them.
func New(configs []EndpointConfig, httpTimeout time.Duration, seedDecimals map[string]int32, opts ...Option) *Client {
	newConn := func(cfg EndpointConfig) rpcCaller {
		hc := httptransport.NewClient(httptransport.WithTimeout(httpTimeout))
		return jsonrpc.NewClient(hc.StandardClient(), cfg.URL)
	}

	decimals := make(map[string]int32, len(seedDecimals))
	for k, v := range seedDecimals {
		decimals[k] = v
	}

	return &Client{
		pool:           NewPool(configs, newConn, opts...),
		decimalsByAddr: decimals,
	}
}

// GetLatestBlockNumber returns the current chain head height.
func (c *Client) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	raw, err := c.pool.Fetch(ctx, "tron_blockNumber")
	if err != nil {
		return 0, err
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("parsing block number: %w", err)
	}

	n, err := types.ParseFlexibleInt(s)
	if err != nil {
		return 0, fmt.Errorf("parsing block number: %w", err)
	}

	return n.Int64(), nil
}

// GetBlockByHeight retrieves the full block at the given height.
func (c *Client) GetBlockByHeight(ctx context.Context, height int64) (Block, error) {
	raw, err := c.pool.Fetch(ctx, "tron_getBlockByNumber", strconv.FormatInt(height, 10))
	if err != nil {
		return Block{}, err
	}

	var resp blockResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Block{}, fmt.Errorf("parsing block %d: %w", height, err)
	}

	return resp.toBlock()
}

// GetTransactionReceipt retrieves the receipt (status, resource cost, and
// token-transfer logs) for a single transaction hash.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash string) (Receipt, error) {
	raw, err := c.pool.Fetch(ctx, "tron_getTransactionReceipt", hash)
	if err != nil {
		return Receipt{}, err
	}

	var resp receiptResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Receipt{}, fmt.Errorf("parsing receipt %s: %w", hash, err)
	}

	return c.toReceipt(ctx, resp)
}

func (r blockResponse) toBlock() (Block, error) {
	height, err := types.ParseFlexibleInt(r.Number)
	if err != nil {
		return Block{}, fmt.Errorf("block number: %w", err)
	}

	tsMillis, err := types.ParseFlexibleInt(r.Timestamp)
	if err != nil {
		return Block{}, fmt.Errorf("block timestamp: %w", err)
	}

	txs := make([]Transaction, 0, len(r.Transactions))
	for _, t := range r.Transactions {
		value, err := types.ParseFlexibleDecimal(t.Value, 0)
		if err != nil {
			// A single malformed transaction must not fail the whole block
			// (spec.md §4.2 "Parse/normalization error"); it is dropped here,
			// without a log entry.
			continue
		}

		txs = append(txs, Transaction{
			Hash:  t.Hash,
			Index: t.Index,
			From:  t.From,
			To:    t.To,
			Value: value,
		})
	}

	return Block{
		Height:       height.Int64(),
		Hash:         r.Hash,
		ParentHash:   r.ParentHash,
		Timestamp:    time.UnixMilli(tsMillis.Int64()).UTC(),
		Transactions: txs,
	}, nil
}

func (c *Client) toReceipt(ctx context.Context, r receiptResponse) (Receipt, error) {
	status := TxStatusFailed
	if r.Status == "SUCCESS" {
		status = TxStatusSuccess
	}

	resourceCost, err := types.ParseFlexibleDecimal(r.ResourceCost, 0)
	if err != nil {
		resourceCost = decimal.Zero
	}
	unitPrice, err := types.ParseFlexibleDecimal(r.UnitPrice, 0)
	if err != nil {
		unitPrice = decimal.Zero
	}

	logs := make([]TokenTransferLog, 0, len(r.Logs))
	for _, l := range r.Logs {
		transfer, ok, err := c.decodeTransfer(ctx, l)
		if err != nil || !ok {
			continue
		}
		logs = append(logs, transfer)
	}

	return Receipt{
		TxHash:       r.TxHash,
		Status:       status,
		ResourceCost: resourceCost,
		UnitPrice:    unitPrice,
		Logs:         logs,
	}, nil
}

// decodeTransfer recognizes a "Transfer(address,address,uint256)" log and
// resolves its token's decimals via the local registry, falling back to
// on-chain inference for unknown contracts (spec.md §4.1).
func (c *Client) decodeTransfer(ctx context.Context, l receiptLogDTO) (TokenTransferLog, bool, error) {
	if len(l.Topics) < 3 || l.Topics[0] != transferEventTopic {
		return TokenTransferLog{}, false, nil
	}

	from := topicToAddress(l.Topics[1])
	to := topicToAddress(l.Topics[2])

	amount, err := types.ParseFlexibleInt(l.Data)
	if err != nil {
		return TokenTransferLog{}, false, err
	}

	decimals, symbol := c.tokenMeta(ctx, l.Address)

	return TokenTransferLog{
		LogIndex: l.LogIndex,
		Contract: l.Address,
		From:     from,
		To:       to,
		Value:    decimal.NewFromBigInt(amount, -decimals),
		Symbol:   symbol,
		Decimals: decimals,
	}, true, nil
}

// tokenMeta resolves a contract's decimals from the local registry or, for
// unknown contracts, by calling the standard read-only "decimals()"
// entrypoint; the inferred value is cached for subsequent lookups.
func (c *Client) tokenMeta(ctx context.Context, contract string) (int32, string) {
	c.mu.Lock()
	if d, ok := c.decimalsByAddr[contract]; ok {
		c.mu.Unlock()
		return d, ""
	}
	c.mu.Unlock()

	decimals, symbol, err := c.inferTokenMeta(ctx, contract)
	if err != nil {
		// Defensive default: treat as 18 decimals (the most common case)
		// rather than failing the whole transfer's normalization.
		decimals = 18
	}

	c.mu.Lock()
	c.decimalsByAddr[contract] = decimals
	c.mu.Unlock()

	return decimals, symbol
}

// inferTokenMeta calls the contract's standard "decimals()" read-only
// entrypoint through the node pool. It does not call "symbol()"; the
// returned symbol is always empty.
func (c *Client) inferTokenMeta(ctx context.Context, contract string) (int32, string, error) {
	raw, err := c.pool.Fetch(ctx, "tron_triggerConstantContract", contract, "decimals()")
	if err != nil {
		return 0, "", err
	}

	var hexDecimals string
	if err := json.Unmarshal(raw, &hexDecimals); err != nil {
		return 0, "", err
	}

	n, err := types.ParseFlexibleInt(hexDecimals)
	if err != nil {
		return 0, "", err
	}

	return int32(n.Int64()), "", nil
}

func topicToAddress(topic string) string {
	if len(topic) > 40 {
		return "41" + topic[len(topic)-40:]
	}
	return topic
}
