package scanner

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/tronwatch/core/internal/eventbus"
	"github.com/tronwatch/core/internal/metrics"
	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/store"
)

// run drives the Scanner's Idle -> Fetching -> Normalizing -> Committing ->
// Idle cycle, falling back to Backoff with jittered exponential delay on a
// fatal upstream error (spec.md §4.2).
func (s *service) run(ctx context.Context) error {
	height, err := s.resumeHeight(ctx)
	if err != nil {
		return err
	}

	failures := 0
	for {
		s.setState(StateIdle)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		advanced, err := s.tick(ctx, height)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}

			failures++
			delay := backoffDelay(s.cfg.BackoffBase, s.cfg.BackoffCap, failures)
			logger.Warn(ctx, "scanner tick failed, backing off",
				"scanner.network", s.cfg.Network, "scanner.delay", delay, "error", err)

			s.setState(StateBackoff)
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		failures = 0
		if advanced == height-1 {
			// No new confirmed blocks; wait for the next poll.
			if !sleep(ctx, s.cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		height = advanced + 1
	}
}

// resumeHeight determines the height the Scanner should fetch next: one
// past the last committed cursor, or the configured StartHeight if this
// network has never been ingested.
func (s *service) resumeHeight(ctx context.Context) (int64, error) {
	cursor, err := s.store.GetCursor(ctx, s.cfg.Network)
	if err != nil {
		if errors.Is(err, store.ErrCursorNotFound) {
			return s.cfg.StartHeight, nil
		}
		return 0, err
	}
	return cursor + 1, nil
}

// tick fetches, normalizes, and commits one batch starting at height, and
// returns the highest height successfully committed (equal to height-1, or
// equivalently the unchanged argument minus one, if nothing new was
// available to fetch).
func (s *service) tick(ctx context.Context, height int64) (int64, error) {
	latest, err := s.node.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	confirmedHead := latest - s.cfg.Confirmations
	metrics.ScannerLag.WithLabelValues(s.cfg.Network).Set(float64(confirmedHead - (height - 1)))
	if confirmedHead < height {
		return height - 1, nil
	}

	batchEnd := min(confirmedHead, height+int64(s.cfg.BatchSize)-1)

	s.setState(StateFetching)
	blocks, err := s.fetchRange(ctx, height, batchEnd)
	if err != nil {
		return 0, err
	}

	if rewoundTo, err := s.checkReorg(ctx, height, blocks[0]); err != nil {
		return 0, err
	} else if rewoundTo >= 0 {
		return rewoundTo, nil
	}

	s.setState(StateNormalizing)
	for _, b := range blocks {
		txs, err := s.normalize(ctx, b)
		if err != nil {
			return 0, err
		}

		s.setState(StateCommitting)
		if err := s.commit(ctx, b, txs); err != nil {
			if errors.Is(err, store.ErrDuplicateTransaction) {
				// Already committed by a previous run (spec.md §4.2
				// "commit is effectively idempotent"); skip republishing.
				logger.Info(ctx, "block already committed, skipping",
					"scanner.network", s.cfg.Network, "scanner.height", b.Height)
				continue
			}
			return 0, err
		}

		for _, tx := range txs {
			s.publisher.Publish(ctx, eventFor(s.cfg.Network, tx))
		}
	}

	return batchEnd, nil
}

func eventFor(network string, tx store.Transaction) eventbus.Event {
	return eventbus.Event{Network: network, Transaction: tx}
}

func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	d := base << min(attempt-1, 30)
	if d <= 0 || d > cap {
		d = cap
	}
	half := d / 2
	if half < time.Millisecond {
		return d
	}
	return half + time.Duration(rand.Int64N(int64(half)))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
