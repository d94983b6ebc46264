// Package eventbus implements the in-process fan-out core between the
// Scanner and its two consumers, the Callback Dispatcher and the Stream
// Session Manager (spec.md §4.5). A single producer publishes each
// committed Transaction once; every consumer group gets its own bounded
// queue with a group-specific overflow policy.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tronwatch/core/internal/metrics"
	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/pkg/x/chflow"
	"github.com/tronwatch/core/internal/store"
)

// Well-known consumer group names.
const (
	GroupCallback = "callback"
	GroupStream   = "stream"
)

// Event is one published domain event: a Transaction plus the network it
// was ingested from. Seq is a monotonically increasing publish counter,
// shared by every consumer group, that lets a lossy consumer detect a gap
// left by a dropped predecessor (spec.md §4.5, §4.8).
type Event struct {
	Network     string
	Transaction store.Transaction
	Seq         int64
}

// OverflowPolicy governs what a consumer group does when its queue is full.
type OverflowPolicy int

const (
	// OverflowBlock makes Publish block (subject to ctx) until the group's
	// queue has room. Used by the callback group: every subscription must
	// eventually see every matching event (spec.md §4.5).
	OverflowBlock OverflowPolicy = iota
	// OverflowDrop makes Publish evict the oldest queued event of this group
	// to make room for the new one, and increment its Dropped counter,
	// instead of blocking. Used by the
	// stream group: live viewers accept loss under load rather than stall
	// ingestion (spec.md §4.5, §4.8).
	OverflowDrop
)

// group is one consumer group's bounded queue and policy.
type group struct {
	name    string
	policy  OverflowPolicy
	queue   chan Event
	dropped atomic.Int64
}

// Bus is the Event Bus: a single producer, multiple consumer-group fan-out
// with per-group backpressure semantics.
type Bus struct {
	mu     sync.RWMutex
	groups map[string]*group
	seq    atomic.Int64
}

func New() *Bus {
	return &Bus{groups: make(map[string]*group)}
}

// Register creates a named consumer group with the given queue depth and
// overflow policy, and returns the channel consumers should range over.
// Register must be called before Publish starts delivering events destined
// for this group.
func (b *Bus) Register(name string, queueSize int, policy OverflowPolicy) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	g := &group{
		name:   name,
		policy: policy,
		queue:  make(chan Event, queueSize),
	}
	b.groups[name] = g
	return g.queue
}

// Dropped returns the number of events dropped for a lossy consumer group
// since startup (spec.md §4.8 "streaming_dropped").
func (b *Bus) Dropped(name string) int64 {
	b.mu.RLock()
	g, ok := b.groups[name]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return g.dropped.Load()
}

// Publish fans a single Event out to every registered consumer group,
// applying each group's overflow policy independently. A blocking group
// applies backpressure to the caller (the Scanner); a lossy group never
// blocks the publish path.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	ev.Seq = b.seq.Add(1)

	b.mu.RLock()
	groups := make([]*group, 0, len(b.groups))
	for _, g := range b.groups {
		groups = append(groups, g)
	}
	b.mu.RUnlock()

	for _, g := range groups {
		switch g.policy {
		case OverflowBlock:
			if !chflow.Send(ctx, g.queue, ev) {
				logger.Warn(ctx, "event bus publish canceled before delivery", "eventbus.group", g.name)
			}
		case OverflowDrop:
			g.sendDroppingOldest(ctx, ev)
		}
	}
}

// sendDroppingOldest enqueues ev, evicting the oldest queued entry first if
// the queue is full. It retries at most once: if a concurrent consumer
// happened to drain a slot between the two attempts, the second send
// succeeds without needing to evict anything.
func (g *group) sendDroppingOldest(ctx context.Context, ev Event) {
	select {
	case g.queue <- ev:
		return
	default:
	}

	select {
	case <-g.queue:
		g.dropped.Add(1)
		metrics.StreamingDropped.Inc()
		logger.Warn(ctx, "event bus dropped oldest event for lossy consumer group",
			"eventbus.group", g.name, "eventbus.dropped_total", g.dropped.Load())
	default:
	}

	select {
	case g.queue <- ev:
	default:
		// Lost the race to a concurrent consumer twice in a row; drop the
		// incoming event rather than spin.
		g.dropped.Add(1)
		metrics.StreamingDropped.Inc()
	}
}

// Close closes every registered group's queue, signaling consumers to
// drain and exit.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, g := range b.groups {
		close(g.queue)
	}
}
