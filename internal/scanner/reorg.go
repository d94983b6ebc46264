package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/tronwatch/core/internal/nodeclient"
	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/store"
)

// ErrRewindLimitExceeded is returned when a reorg's divergence point could
// not be found within Config.MaxRewind blocks. The Scanner refuses to
// rewind further on its own; an operator must intervene (spec.md §9 design
// notes, "ack-reorg").
var ErrRewindLimitExceeded = errors.New("scanner: reorg divergence exceeds max rewind depth")

// checkReorg verifies that first's ParentHash matches the previously
// committed block at height-1. If it doesn't, a reorg has occurred: it
// walks backward re-fetching blocks from the node until it finds the
// height where the node's hash still matches the Store's, rewinds the
// Store and cache to that height, and returns it so the caller resumes
// fetching from the divergence point. Returns -1 if no reorg was detected.
func (s *service) checkReorg(ctx context.Context, height int64, first nodeclient.Block) (int64, error) {
	if height <= s.cfg.StartHeight {
		return -1, nil
	}

	prev, err := s.store.GetBlock(ctx, s.cfg.Network, height-1)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return -1, nil
		}
		return -1, err
	}

	if prev.Hash == first.ParentHash {
		return -1, nil
	}

	logger.Warn(ctx, "reorg detected, walking back to find divergence point",
		"scanner.network", s.cfg.Network, "scanner.height", height-1,
		"scanner.expected_hash", prev.Hash, "scanner.observed_parent_hash", first.ParentHash)

	floor := height - 1 - s.cfg.MaxRewind
	for h := height - 2; h >= floor && h >= s.cfg.StartHeight; h-- {
		local, err := s.store.GetBlock(ctx, s.cfg.Network, h)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return -1, err
		}

		remote, err := s.node.GetBlockByHeight(ctx, h)
		if err != nil {
			return -1, err
		}

		if local.Hash != remote.Hash {
			continue
		}

		if err := s.store.RewindTo(ctx, s.cfg.Network, h); err != nil {
			return -1, fmt.Errorf("rewinding to %d: %w", h, err)
		}
		if err := s.cache.InvalidateRewind(ctx); err != nil {
			logger.Warn(ctx, "cache invalidation after rewind failed", "error", err)
		}

		logger.Info(ctx, "reorg resolved", "scanner.network", s.cfg.Network, "scanner.rewound_to", h)
		return h, nil
	}

	return -1, fmt.Errorf("%w: network=%s below height=%d", ErrRewindLimitExceeded, s.cfg.Network, height-1)
}
