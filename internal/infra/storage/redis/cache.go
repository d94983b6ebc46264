package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "cache"

func txKey(hash string) string {
	return fmt.Sprintf("%s:tx:%s", cacheKeyPrefix, hash)
}

func multiKey(digest string) string {
	return fmt.Sprintf("%s:multi:%s", cacheKeyPrefix, digest)
}

func addrStatsKey(address string) string {
	return fmt.Sprintf("%s:addr:stats:%s", cacheKeyPrefix, address)
}

// GetJSON reads and unmarshals a cached value, reporting whether it was
// present. A cache miss is not an error.
func (c *client) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.conn.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals and stores a value under key with the given TTL.
func (c *client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.Set(ctx, key, raw, ttl).Err()
}

// DeletePattern evicts every key matching a glob pattern, used by rewind
// invalidation to clear addr:stats and multi-address entries that a reorg
// may have invalidated (spec.md §4.2, SPEC_FULL.md §3 cache invalidation).
func (c *client) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.conn.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.conn.Del(ctx, keys...).Err()
}

// TxKey, MultiKey and AddrStatsKey expose this package's key-naming scheme
// to internal/cache so it stays the single place that namespaces compose.
func (c *client) TxKey(hash string) string           { return txKey(hash) }
func (c *client) MultiKey(digest string) string      { return multiKey(digest) }
func (c *client) AddrStatsKey(address string) string { return addrStatsKey(address) }
func (c *client) AddrStatsPattern() string           { return addrStatsKey("*") }
func (c *client) MultiPattern() string               { return multiKey("*") }
