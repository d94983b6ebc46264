// Package nodeclient implements the Node Client of the ingestion core: a
// priority-ordered, failover-aware pool of Tron-family JSON-RPC endpoints
// with per-endpoint health tracking and bounded in-flight concurrency.
package nodeclient

import (
	"time"

	"github.com/shopspring/decimal"
)

// Block is the normalized shape of a confirmed block as returned by the
// upstream node, with every numeric field already decoded from whatever
// hex-or-decimal encoding the node used on the wire.
type Block struct {
	Height       int64
	Hash         string
	ParentHash   string
	Timestamp    time.Time
	Transactions []Transaction
}

// Transaction is a raw transaction as it appears inside a Block, before
// receipts (and therefore token-transfer logs) have been attached.
type Transaction struct {
	Hash  string
	Index int
	From  string
	To    string
	Value decimal.Decimal // native-coin amount moved by this transaction, zero for contract calls
}

// TxStatus mirrors the two terminal states a Tron-family receipt can report.
type TxStatus string

const (
	TxStatusSuccess TxStatus = "confirmed_success"
	TxStatusFailed  TxStatus = "confirmed_failed"
)

// Receipt is the normalized shape of a transaction receipt: its terminal
// status, resource accounting, and any token-transfer log entries.
type Receipt struct {
	TxHash       string
	Status       TxStatus
	ResourceCost decimal.Decimal // energy/bandwidth consumed, in the chain's resource unit
	UnitPrice    decimal.Decimal // price paid per resource unit (SUN or equivalent)
	Logs         []TokenTransferLog
}

// TokenTransferLog is one decoded "Transfer" event surfaced by a receipt's
// logs. LogIndex, together with the owning transaction's hash, is the
// dedup key for the resulting Transaction record (spec.md §3).
type TokenTransferLog struct {
	LogIndex     int
	Contract     string
	From         string
	To           string
	Value        decimal.Decimal
	Symbol       string
	Decimals     int32
}
