package authn

import (
	"context"

	"go.uber.org/ratelimit"
)

// limiter paces requests for one credential to its configured rate
// ceiling, using the same leaky-bucket pacer the retrieved batcher uses for
// outbound flushes (go.uber.org/ratelimit).
type limiter struct {
	rl ratelimit.Limiter
}

func newLimiter(rps int) *limiter {
	if rps <= 0 {
		rps = 1
	}
	return &limiter{rl: ratelimit.New(rps)}
}

// Wait blocks until the credential's next admitted slot, or returns
// ctx.Err() if ctx is canceled first.
func (l *limiter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.rl.Take()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
