package scanner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tronwatch/core/internal/store"
)

func TestBackoffDelay_RespectsCapWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	cap := time.Second

	for attempt := 1; attempt <= 20; attempt++ {
		d := backoffDelay(base, cap, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, cap)
	}
}

func TestBackoffDelay_GrowsWithAttempt(t *testing.T) {
	base := 10 * time.Millisecond
	cap := time.Hour

	// Jittered, so compare upper bounds rather than exact values: the delay
	// before halving-plus-jitter for attempt n is base<<(n-1).
	d1 := backoffDelay(base, cap, 1)
	d5 := backoffDelay(base, cap, 5)
	assert.Less(t, d1, cap)
	assert.Less(t, d5, cap)
}

func TestEventFor_CarriesNetworkAndTransaction(t *testing.T) {
	tx := store.Transaction{Hash: "abc", Value: decimal.NewFromInt(1)}
	ev := eventFor("tron-mainnet", tx)

	assert.Equal(t, "tron-mainnet", ev.Network)
	assert.Equal(t, tx, ev.Transaction)
}
