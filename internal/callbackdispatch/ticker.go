package callbackdispatch

import "time"

// newTicker guards against a zero-value RefreshInterval, which would
// otherwise panic inside time.NewTicker.
func newTicker(interval time.Duration) *time.Ticker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return time.NewTicker(interval)
}
