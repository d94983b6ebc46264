package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/store"
)

func init() {
	_ = logger.Init(logger.WithLevel("error"))
}

func TestBus_PublishAssignsMonotonicSeq(t *testing.T) {
	b := New()
	consumer := b.Register(GroupCallback, 4, OverflowBlock)

	ctx := t.Context()
	b.Publish(ctx, Event{Network: "tron-mainnet", Transaction: store.Transaction{Hash: "a"}})
	b.Publish(ctx, Event{Network: "tron-mainnet", Transaction: store.Transaction{Hash: "b"}})

	first := <-consumer
	second := <-consumer

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
}

func TestBus_BlockingGroupAppliesBackpressure(t *testing.T) {
	b := New()
	consumer := b.Register(GroupCallback, 1, OverflowBlock)

	ctx := t.Context()
	b.Publish(ctx, Event{Transaction: store.Transaction{Hash: "1"}})

	done := make(chan struct{})
	go func() {
		b.Publish(ctx, Event{Transaction: store.Transaction{Hash: "2"}})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second publish should have blocked with the queue full")
	case <-time.After(50 * time.Millisecond):
	}

	<-consumer // drain the first event, freeing a slot

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish did not unblock after the queue drained")
	}

	<-consumer
}

func TestBus_LossyGroupDropsOldestUnderLoad(t *testing.T) {
	b := New()
	consumer := b.Register(GroupStream, 1, OverflowDrop)

	ctx := t.Context()
	b.Publish(ctx, Event{Transaction: store.Transaction{Hash: "old"}})
	b.Publish(ctx, Event{Transaction: store.Transaction{Hash: "new"}})

	got := <-consumer
	assert.Equal(t, "new", got.Transaction.Hash, "the oldest queued event should have been evicted, not the incoming one")
	assert.Equal(t, int64(1), b.Dropped(GroupStream))
}

func TestBus_PublishCancelableWhileBlocked(t *testing.T) {
	b := New()
	_ = b.Register(GroupCallback, 1, OverflowBlock)

	ctx := t.Context()
	b.Publish(ctx, Event{Transaction: store.Transaction{Hash: "1"}})

	cancelCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		b.Publish(cancelCtx, Event{Transaction: store.Transaction{Hash: "2"}})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("canceled publish should have returned once its context was canceled")
	}
}

func TestBus_CloseClosesRegisteredQueues(t *testing.T) {
	b := New()
	consumer := b.Register(GroupCallback, 1, OverflowBlock)

	b.Close()

	_, ok := <-consumer
	require.False(t, ok)
}
