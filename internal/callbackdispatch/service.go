package callbackdispatch

import (
	"context"
	"errors"
	"net/http"
	"sync"

	httptransport "github.com/tronwatch/core/internal/pkg/transport/http"

	"github.com/google/uuid"

	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/store"
)

// ErrServiceAlreadyStarted is returned if Start is called more than once.
var ErrServiceAlreadyStarted = errors.New("service already started")

// Service defines the dispatcher lifecycle.
type Service interface {
	Start(ctx context.Context) error
	Close()
}

type closeFunc func()

// dispatcher is the Callback Dispatcher: it matches inbound events against
// enabled subscriptions and hands matches off to a bounded worker pool,
// each worker owning a job's full retry lifecycle (spec.md §4.6).
type dispatcher struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc

	cfg        Config
	store      Store
	consumer   Consumer
	httpClient *http.Client

	subMu   sync.RWMutex
	subs    []store.CallbackSubscription
	subSems map[uuid.UUID]chan struct{}

	jobs chan job
	wg   sync.WaitGroup
}

var _ Service = (*dispatcher)(nil)

func New(cfg Config, st Store, consumer Consumer) *dispatcher {
	client := httptransport.NewClient(
		httptransport.WithTimeout(cfg.Timeout),
		httptransport.WithRetryMax(0), // the dispatcher owns retry/backoff/dead-letter, not the transport
	).StandardClient()

	return &dispatcher{
		cfg:        cfg,
		store:      st,
		consumer:   consumer,
		httpClient: client,
		subSems:    make(map[uuid.UUID]chan struct{}),
		jobs:       make(chan job, cfg.WorkersGlobal*4),
	}
}

func (d *dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isStarted {
		return ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)

	if err := d.refreshSubscriptions(ctx); err != nil {
		cancel()
		return err
	}

	for i := 0; i < d.cfg.WorkersGlobal; i++ {
		d.wg.Add(1)
		go d.runWorker(ctx)
	}

	d.wg.Add(1)
	go d.runRefresher(ctx)

	d.wg.Add(1)
	go d.runMatcher(ctx)

	d.closeFunc = func() {
		cancel()
		d.wg.Wait()
	}
	d.isStarted = true
	return nil
}

func (d *dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closeFunc != nil {
		d.closeFunc()
	}
	d.closeFunc = nil
	d.isStarted = false
}

// runMatcher consumes events from the Event Bus's callback consumer group
// and enqueues one job per matching enabled subscription.
func (d *dispatcher) runMatcher(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.consumer:
			if !ok {
				return
			}

			d.subMu.RLock()
			subs := d.subs
			d.subMu.RUnlock()

			for _, sub := range subs {
				if !sub.Enabled || !matches(sub.Filter, ev.Transaction) {
					continue
				}
				select {
				case d.jobs <- job{sub: sub, network: ev.Network, tx: ev.Transaction}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// runWorker pulls jobs and runs each to completion (including its full
// retry schedule) before picking up the next one, bounding the number of
// simultaneously in-flight deliveries to Config.WorkersGlobal.
func (d *dispatcher) runWorker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.jobs:
			if !ok {
				return
			}

			sem := d.subSemaphore(j.sub.ID)
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			d.deliver(ctx, j)

			<-sem
		}
	}
}

// subSemaphore lazily creates the per-subscription concurrency limiter
// bounding in-flight deliveries to Config.WorkersPerSub.
func (d *dispatcher) subSemaphore(id uuid.UUID) chan struct{} {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	sem, ok := d.subSems[id]
	if !ok {
		sem = make(chan struct{}, d.cfg.WorkersPerSub)
		d.subSems[id] = sem
	}
	return sem
}

// runRefresher periodically reloads the enabled-subscription list so newly
// created, updated, or deleted subscriptions take effect without a
// restart.
func (d *dispatcher) runRefresher(ctx context.Context) {
	defer d.wg.Done()

	ticker := newTicker(d.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.refreshSubscriptions(ctx); err != nil {
				logger.Warn(ctx, "failed to refresh callback subscriptions", "error", err)
			}
		}
	}
}

func (d *dispatcher) refreshSubscriptions(ctx context.Context) error {
	subs, err := d.store.ListEnabledSubscriptions(ctx)
	if err != nil {
		return err
	}
	d.subMu.Lock()
	d.subs = subs
	d.subMu.Unlock()
	return nil
}
