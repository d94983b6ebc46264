// Package store defines the durable persistence contract of the ingestion
// core: transactions, block records, the scan cursor, callback
// subscriptions, and credentials (spec.md §3). Concrete backends live under
// internal/infra/storage.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxStatus is the terminal status of a normalized Transaction. It never
// changes after insert (spec.md §3).
type TxStatus string

const (
	TxStatusSuccess TxStatus = "confirmed_success"
	TxStatusFailed  TxStatus = "confirmed_failed"
)

// Transaction is the canonical normalized record of one value-carrying
// event: either a native-coin transfer or a single token-transfer log.
type Transaction struct {
	Hash           string // globally unique
	BlockHeight    int64
	BlockHash      string
	Index          int  // ordinal position within the block
	LogIndex       *int // nil for native transfers, set for token-transfer logs; (Hash, LogIndex) is unique
	Sender         string
	Recipient      string
	Value          decimal.Decimal // native amount, or token amount when TokenContract is set
	TokenContract  *string
	TokenSymbol    *string
	TokenDecimals  *int32
	ResourceCost   decimal.Decimal
	UnitPrice      decimal.Decimal
	Status         TxStatus
	BlockTimestamp time.Time
}

// IsToken reports whether this Transaction represents a token transfer
// rather than a native-coin transfer.
func (t Transaction) IsToken() bool {
	return t.TokenContract != nil
}

// EventKind classifies a Transaction for filter matching (spec.md §4.6/§4.8).
type EventKind string

const (
	EventKindNativeTransfer EventKind = "native_transfer"
	EventKindTokenTransfer  EventKind = "token_transfer"
)

// Kind returns the EventKind this Transaction should be matched under.
func (t Transaction) Kind() EventKind {
	if t.IsToken() {
		return EventKindTokenTransfer
	}
	return EventKindNativeTransfer
}

// BlockRecord is the persisted record of one ingested block.
type BlockRecord struct {
	Height     int64
	Hash       string
	ParentHash string
	Timestamp  time.Time
	TxCount    int
	Processed  bool
}

// AddressStats holds the additive per-address counters derived from
// Transactions involving that address (spec.md §3).
type AddressStats struct {
	Address    string
	TotalCount int64
	TotalIn    int64
	TotalOut   int64
}

// EventFilter is the predicate shape shared by callback subscriptions and
// stream session subscriptions (spec.md §4.6, glossary "Filter").
type EventFilter struct {
	Kinds     []EventKind
	Addresses []string // optional; if set, sender or recipient must match
	Tokens    []string // optional; token symbol (or "native") must match
	MinValue  *decimal.Decimal
}

// CallbackSubscription is a durable HTTP delivery destination with a filter.
// Secret is the shared HMAC signing key: unlike Credential's TokenHash, it
// must be retained in retrievable form because the dispatcher needs it on
// every delivery, but the API never returns it after creation.
type CallbackSubscription struct {
	ID              uuid.UUID
	Name            string
	URL             string
	Secret          string
	Enabled         bool
	Filter          EventFilter
	SuccessCount    int64
	FailureCount    int64
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeadLetterEntry is a callback delivery that exhausted its retry budget or
// was classified as a permanent failure, retained for operator inspection
// and manual replay (spec.md §4.7, SPEC_FULL.md §9 design notes).
type DeadLetterEntry struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	TxHash         string
	Payload        []byte
	LastError      string
	Attempts       int
	Permanent      bool
	CreatedAt      time.Time
}

// Credential is an API caller's identity: only the token's hash is stored,
// the raw bearer token is returned exactly once at creation.
type Credential struct {
	ID          uuid.UUID
	Name        string
	TokenHash   string
	Permissions []string
	RateCeiling *int
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}
