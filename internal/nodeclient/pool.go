package nodeclient

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/pkg/transport/jsonrpc"
)

// rpcCaller is the subset of jsonrpc.Client the pool depends on. Narrowing
// the dependency to an interface keeps endpoint construction swappable in
// tests, the same way the teacher's ethereum client depends on jsonrpc.Client.
type rpcCaller interface {
	Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// EndpointConfig describes one upstream endpoint as read from configuration.
type EndpointConfig struct {
	URL      string
	Priority int
	Timeout  time.Duration
}

// endpoint tracks the health and concurrency state of a single upstream
// RPC endpoint. Three consecutive failures suspend it for CoolDown; the
// first successful call after cool-down restores it (spec.md §4.1).
type endpoint struct {
	url      string
	priority int
	timeout  time.Duration
	conn     rpcCaller

	mu                  sync.Mutex
	consecutiveFailures int
	suspendedUntil      time.Time

	inflight chan struct{} // per-endpoint in-flight bound
}

func (e *endpoint) suspended(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Before(e.suspendedUntil)
}

func (e *endpoint) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveFailures = 0
	e.suspendedUntil = time.Time{}
}

func (e *endpoint) recordFailure(now time.Time, coolDown time.Duration, threshold int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveFailures++
	if e.consecutiveFailures >= threshold {
		e.suspendedUntil = now.Add(coolDown)
	}
}

// Pool is the Node Client: an ordered set of upstream endpoints with
// failover, health tracking, and bounded in-flight concurrency.
type Pool struct {
	endpoints []*endpoint

	coolDown           time.Duration
	failureThreshold   int
	perEndpointInFlight int
	totalInFlight      chan struct{}
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithCoolDown overrides the suspension cool-down duration. Default: 30s.
func WithCoolDown(d time.Duration) Option {
	return func(p *Pool) { p.coolDown = d }
}

// WithFailureThreshold overrides the number of consecutive failures that
// suspends an endpoint. Default: 3.
func WithFailureThreshold(n int) Option {
	return func(p *Pool) { p.failureThreshold = n }
}

// WithPerEndpointInFlight overrides the per-endpoint in-flight bound. Default: 32.
func WithPerEndpointInFlight(n int) Option {
	return func(p *Pool) { p.perEndpointInFlight = n }
}

// WithTotalInFlight overrides the pool-wide in-flight bound. Default: 128.
func WithTotalInFlight(n int) Option {
	return func(p *Pool) { p.totalInFlight = make(chan struct{}, n) }
}

// NewPool builds a Pool from the given endpoint configs, highest priority
// (lowest Priority value) attempted first. newConn lets callers (and tests)
// control how each endpoint's transport is constructed.
func NewPool(configs []EndpointConfig, newConn func(EndpointConfig) rpcCaller, opts ...Option) *Pool {
	p := &Pool{
		coolDown:            30 * time.Second,
		failureThreshold:    3,
		perEndpointInFlight: 32,
		totalInFlight:       make(chan struct{}, 128),
	}
	for _, opt := range opts {
		opt(p)
	}

	sorted := make([]EndpointConfig, len(configs))
	copy(sorted, configs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	for _, cfg := range sorted {
		p.endpoints = append(p.endpoints, &endpoint{
			url:      cfg.URL,
			priority: cfg.Priority,
			timeout:  cfg.Timeout,
			conn:     newConn(cfg),
			inflight: make(chan struct{}, p.perEndpointInFlight),
		})
	}

	return p
}

// call attempts the RPC on a single endpoint, honoring its per-call timeout
// and per-endpoint in-flight bound.
func (p *Pool) call(ctx context.Context, e *endpoint, method string, params ...any) (json.RawMessage, error) {
	select {
	case e.inflight <- struct{}{}:
		defer func() { <-e.inflight }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	return e.conn.Fetch(callCtx, method, params...)
}

// Fetch performs an RPC call across the endpoint pool, walking endpoints in
// priority order and failing over on transport error, timeout, or a parse
// error. It returns ErrUpstreamUnavailable if every endpoint fails or is
// currently suspended. A successful call restores the endpoint's health.
func (p *Pool) Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	select {
	case p.totalInFlight <- struct{}{}:
		defer func() { <-p.totalInFlight }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	now := time.Now()
	var errs []error
	for _, e := range p.endpoints {
		if e.suspended(now) {
			continue
		}

		result, err := p.call(ctx, e, method, params...)
		if err != nil {
			errs = append(errs, err)
			e.recordFailure(now, p.coolDown, p.failureThreshold)
			logger.Warn(ctx, "node endpoint call failed, failing over",
				"node.url", e.url, "node.method", method, "error", err)
			continue
		}

		e.recordSuccess()
		return result, nil
	}

	return nil, errors.Join(append([]error{ErrUpstreamUnavailable}, errs...)...)
}
