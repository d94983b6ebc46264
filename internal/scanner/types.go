// Package scanner implements the Scanner: the block-ingestion state
// machine that polls the Node Client for newly confirmed blocks, detects
// and recovers from chain reorgs, commits normalized transactions to the
// Store, and publishes them on the Event Bus (spec.md §4.2).
package scanner

import (
	"context"
	"time"

	"github.com/tronwatch/core/internal/eventbus"
	"github.com/tronwatch/core/internal/nodeclient"
	"github.com/tronwatch/core/internal/store"
)

// NodeClient is the subset of nodeclient.Client the Scanner depends on.
type NodeClient interface {
	GetLatestBlockNumber(ctx context.Context) (int64, error)
	GetBlockByHeight(ctx context.Context, height int64) (nodeclient.Block, error)
	GetTransactionReceipt(ctx context.Context, hash string) (nodeclient.Receipt, error)
}

// Store is the subset of store.Store the Scanner depends on.
type Store interface {
	CommitBlock(ctx context.Context, network string, block store.BlockRecord, txs []store.Transaction) error
	GetCursor(ctx context.Context, network string) (int64, error)
	RewindTo(ctx context.Context, network string, keepHeight int64) error
	GetBlock(ctx context.Context, network string, height int64) (store.BlockRecord, error)
}

// Publisher is the subset of eventbus.Bus the Scanner depends on.
type Publisher interface {
	Publish(ctx context.Context, ev eventbus.Event)
}

// CacheInvalidator is the subset of cache.Cache the Scanner depends on for
// rewind handling.
type CacheInvalidator interface {
	InvalidateRewind(ctx context.Context) error
}

// State is the Scanner's current phase (spec.md §4.2).
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StateCommitting  State = "committing"
	StateBackoff     State = "backoff"
)

// Config holds one Scanner instance's tuning knobs (spec.md §6, scan.*).
type Config struct {
	Network          string
	StartHeight      int64
	Confirmations    int64
	BatchSize        int
	MaxRewind        int64
	PollInterval     time.Duration
	FetchConcurrency int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
}
