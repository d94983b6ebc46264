package scanner

import (
	"context"
	"errors"
	"sync"

	"github.com/tronwatch/core/internal/nodeclient"
)

// fetchRange retrieves every block in [start, end] concurrently, bounded by
// Config.FetchConcurrency, and returns them in ascending height order
// (spec.md §4.2 "Batch fetch with a concurrency ceiling").
func (s *service) fetchRange(ctx context.Context, start, end int64) ([]nodeclient.Block, error) {
	n := int(end - start + 1)
	blocks := make([]nodeclient.Block, n)
	errs := make([]error, n)
	sem := make(chan struct{}, s.cfg.FetchConcurrency)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}

			b, err := s.node.GetBlockByHeight(ctx, start+int64(i))
			blocks[i] = b
			errs[i] = err
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return blocks, nil
}
