// Package callbackdispatch implements the HTTP Callback Dispatcher: it
// consumes committed transactions from the Event Bus, matches them against
// every enabled CallbackSubscription's filter, and delivers signed webhook
// payloads with bounded retry, permanent-failure classification, and a
// dead-letter queue (spec.md §4.6, §4.7).
package callbackdispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tronwatch/core/internal/eventbus"
	"github.com/tronwatch/core/internal/store"
)

// Store is the subset of store.Store the dispatcher depends on.
type Store interface {
	ListEnabledSubscriptions(ctx context.Context) ([]store.CallbackSubscription, error)
	UpdateSubscription(ctx context.Context, sub store.CallbackSubscription) error
	SaveDeadLetter(ctx context.Context, entry store.DeadLetterEntry) error
}

// Consumer is the subset of eventbus.Bus the dispatcher depends on for
// receiving its own consumer group's events.
type Consumer <-chan eventbus.Event

// Config holds the dispatcher's tuning knobs (spec.md §6, callback.*).
type Config struct {
	WorkersGlobal       int
	WorkersPerSub       int
	Timeout             time.Duration
	MaxAttempts         int
	BaseDelay           time.Duration
	CapDelay            time.Duration
	AutoDisableOn404410 bool
	ShutdownGrace       time.Duration
	// RefreshInterval controls how often the dispatcher reloads the set of
	// enabled subscriptions from the Store.
	RefreshInterval time.Duration
}

// Payload is the JSON body delivered to a subscription's URL.
type Payload struct {
	EventID     uuid.UUID         `json:"event_id"`
	Network     string            `json:"network"`
	Kind        store.EventKind   `json:"kind"`
	Transaction store.Transaction `json:"transaction"`
	DeliveredAt time.Time         `json:"delivered_at"`
}

// job is one queued delivery attempt for one subscription.
type job struct {
	sub     store.CallbackSubscription
	network string
	tx      store.Transaction
}
