// Package cache implements the read-through accelerator in front of Store:
// single-transaction lookups, multi-address query pages, and per-address
// stats, each with its own TTL, plus rewind-driven invalidation
// (spec.md §4.4, SPEC_FULL.md §3).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/tronwatch/core/internal/store"
)

// Backend is the subset of the Redis client the cache depends on. Narrowing
// to an interface keeps the accelerator swappable with an in-memory fake in
// tests.
type Backend interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error

	TxKey(hash string) string
	MultiKey(digest string) string
	AddrStatsKey(address string) string
	AddrStatsPattern() string
	MultiPattern() string
}

// Config holds the per-key-class TTLs (SPEC_FULL.md §3).
type Config struct {
	Enabled        bool
	TxTTL          time.Duration
	MultiTTL       time.Duration
	AddressStatsTTL time.Duration
}

// Cache is the read-through accelerator. A disabled Cache (Config.Enabled
// == false) makes every Get a miss and every Set a no-op, so callers never
// need to branch on whether caching is on.
type Cache struct {
	backend Backend
	cfg     Config
}

func New(backend Backend, cfg Config) *Cache {
	return &Cache{backend: backend, cfg: cfg}
}

// GetTransaction returns a cached single-transaction lookup.
func (c *Cache) GetTransaction(ctx context.Context, hash string) (store.Transaction, bool, error) {
	if !c.cfg.Enabled {
		return store.Transaction{}, false, nil
	}
	var tx store.Transaction
	ok, err := c.backend.GetJSON(ctx, c.backend.TxKey(hash), &tx)
	return tx, ok, err
}

// SetTransaction caches a single-transaction lookup.
func (c *Cache) SetTransaction(ctx context.Context, tx store.Transaction) error {
	if !c.cfg.Enabled {
		return nil
	}
	return c.backend.SetJSON(ctx, c.backend.TxKey(tx.Hash), tx, c.cfg.TxTTL)
}

// GetMultiAddressPage returns a cached multi-address query page, keyed by a
// digest of the query's full parameter set.
func (c *Cache) GetMultiAddressPage(ctx context.Context, q store.MultiAddressQuery) (store.MultiAddressPage, bool, error) {
	if !c.cfg.Enabled {
		return store.MultiAddressPage{}, false, nil
	}
	var page store.MultiAddressPage
	ok, err := c.backend.GetJSON(ctx, c.backend.MultiKey(queryDigest(q)), &page)
	return page, ok, err
}

// SetMultiAddressPage caches a multi-address query page.
func (c *Cache) SetMultiAddressPage(ctx context.Context, q store.MultiAddressQuery, page store.MultiAddressPage) error {
	if !c.cfg.Enabled {
		return nil
	}
	return c.backend.SetJSON(ctx, c.backend.MultiKey(queryDigest(q)), page, c.cfg.MultiTTL)
}

// GetAddressStats returns cached per-address counters.
func (c *Cache) GetAddressStats(ctx context.Context, address string) (store.AddressStats, bool, error) {
	if !c.cfg.Enabled {
		return store.AddressStats{}, false, nil
	}
	var stats store.AddressStats
	ok, err := c.backend.GetJSON(ctx, c.backend.AddrStatsKey(address), &stats)
	return stats, ok, err
}

// SetAddressStats caches per-address counters.
func (c *Cache) SetAddressStats(ctx context.Context, stats store.AddressStats) error {
	if !c.cfg.Enabled {
		return nil
	}
	return c.backend.SetJSON(ctx, c.backend.AddrStatsKey(stats.Address), stats, c.cfg.AddressStatsTTL)
}

// InvalidateRewind evicts every addr:stats and multi-address entry after a
// reorg rewind. Single-transaction entries (tx:*) are left alone: a
// transaction that survived the rewind is still correct, and one that
// didn't simply expires or is never looked up again by its now-orphaned
// hash (spec.md §4.2, SPEC_FULL.md §3).
func (c *Cache) InvalidateRewind(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	if err := c.backend.DeletePattern(ctx, c.backend.AddrStatsPattern()); err != nil {
		return err
	}
	return c.backend.DeletePattern(ctx, c.backend.MultiPattern())
}

// queryDigest deterministically hashes a MultiAddressQuery's parameters
// into a cache key suffix.
func queryDigest(q store.MultiAddressQuery) string {
	raw, _ := json.Marshal(q)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
