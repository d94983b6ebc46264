package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ingestKeyPrefix namespaces the Scanner's distributed ingest-claim guard.
const ingestKeyPrefix = "ingest"

func ingestClaimKey(network string, height int64) string {
	return fmt.Sprintf("%s:claim:%s:%d", ingestKeyPrefix, network, height)
}

// ClaimBlockForIngest attempts to take an exclusive, time-bounded claim on
// ingesting a given block height, so that at most one Scanner instance
// commits a given block when run with redundant processes (spec.md §4.2
// optional distributed deployment). It returns true if the claim was
// acquired, false if another process already holds it.
func (c *client) ClaimBlockForIngest(ctx context.Context, network string, height int64, ttl time.Duration) (bool, error) {
	key := ingestClaimKey(network, height)
	ok, err := c.conn.SetNX(ctx, key, "claimed", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// MarkBlockIngestComplete releases a claim early once the block has been
// durably committed, so a restarted Scanner does not wait out the full TTL
// before resuming past it.
func (c *client) MarkBlockIngestComplete(ctx context.Context, network string, height int64) error {
	key := ingestClaimKey(network, height)
	err := c.conn.Del(ctx, key).Err()
	if err != nil && err != redis.Nil {
		return err
	}
	return nil
}
