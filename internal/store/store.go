package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup by primary key finds nothing.
var ErrNotFound = errors.New("store: record not found")

// ErrCursorNotFound is returned by GetCursor before the Scanner has
// committed its first block for a network.
var ErrCursorNotFound = errors.New("store: scan cursor not found")

// ErrDuplicateTransaction is returned by CommitBlock when a Transaction's
// (Hash, LogIndex) pair already exists; the caller treats this as evidence
// that the block was already committed and skips republishing events.
var ErrDuplicateTransaction = errors.New("store: duplicate transaction")

// MultiAddressQuery is the validated shape of a multi-address lookup
// (spec.md §4.4).
type MultiAddressQuery struct {
	Addresses []string
	Kinds     []EventKind
	Tokens    []string
	MinValue  *string // decimal string, validated by caller
	Since     *time.Time
	Until     *time.Time
	Page      int // 1-indexed
	Limit     int
}

// MultiAddressPage is one page of a multi-address query result, merged
// across the requested addresses and ordered newest-first.
type MultiAddressPage struct {
	Transactions []Transaction
	Page         int
	Limit        int
	Total        int64 // total matching rows across every page
	TotalPages   int
	Stats        map[string]AddressStats
}

// Store is the durable persistence contract of the ingestion core. A single
// implementation (internal/infra/storage/postgres) backs all of it; the
// interface exists so the Scanner, query engine, and API layer can be
// tested against an in-memory fake.
type Store interface {
	// CommitBlock atomically persists one block and its transactions, and
	// advances the scan cursor in the same transaction (spec.md §4.2
	// "Per-block atomic commit"). It returns ErrDuplicateTransaction,
	// wrapped, if any transaction in the batch already exists.
	CommitBlock(ctx context.Context, network string, block BlockRecord, txs []Transaction) error

	// GetCursor returns the last committed height for a network.
	GetCursor(ctx context.Context, network string) (int64, error)

	// RewindTo deletes every block and transaction above keepHeight (inclusive
	// of blocks whose height is greater than keepHeight), reverses the
	// per-address counter deltas of the deleted transactions, and resets the
	// cursor, for reorg handling (spec.md §4.2 "Reorg / rewind").
	RewindTo(ctx context.Context, network string, keepHeight int64) error

	// GetBlock returns the persisted record for a given height, or
	// ErrNotFound.
	GetBlock(ctx context.Context, network string, height int64) (BlockRecord, error)

	// QueryMultiAddress performs the union-merge lookup backing the
	// multi-address transactions endpoint (spec.md §4.4).
	QueryMultiAddress(ctx context.Context, q MultiAddressQuery) (MultiAddressPage, error)

	// CreateSubscription persists a new callback subscription.
	CreateSubscription(ctx context.Context, sub CallbackSubscription) (CallbackSubscription, error)
	// GetSubscription returns a subscription by ID, or ErrNotFound.
	GetSubscription(ctx context.Context, id uuid.UUID) (CallbackSubscription, error)
	// ListEnabledSubscriptions returns every subscription currently eligible
	// for delivery, for the Callback Dispatcher's filter-matching pass.
	ListEnabledSubscriptions(ctx context.Context) ([]CallbackSubscription, error)
	// UpdateSubscription persists mutated fields (Enabled, counters,
	// LastTriggeredAt) of an existing subscription.
	UpdateSubscription(ctx context.Context, sub CallbackSubscription) error
	// DeleteSubscription removes a subscription permanently.
	DeleteSubscription(ctx context.Context, id uuid.UUID) error

	// SaveDeadLetter persists a delivery that will not be retried further.
	SaveDeadLetter(ctx context.Context, entry DeadLetterEntry) error
	// ListDeadLetters returns dead-lettered deliveries for a subscription,
	// newest first.
	ListDeadLetters(ctx context.Context, subscriptionID uuid.UUID) ([]DeadLetterEntry, error)
	// DeleteDeadLetter prunes a single dead-lettered entry, after replay or
	// on operator request.
	DeleteDeadLetter(ctx context.Context, id uuid.UUID) error

	// CreateCredential persists a new API credential.
	CreateCredential(ctx context.Context, cred Credential) (Credential, error)
	// GetCredentialByTokenHash looks up a credential by its hashed bearer
	// token, for request authentication.
	GetCredentialByTokenHash(ctx context.Context, tokenHash string) (Credential, error)
	// RevokeCredential deletes a credential, immediately invalidating its
	// token.
	RevokeCredential(ctx context.Context, id uuid.UUID) error
}
