// Package ingest coordinates the block-level processing pipeline: it wires
// the Scanner's committed transactions through the Event Bus into the
// Callback Dispatcher and the Stream Session Manager, combining these
// downstream workflows into a unified orchestration layer.
package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/tronwatch/core/internal/callbackdispatch"
	"github.com/tronwatch/core/internal/eventbus"
	"github.com/tronwatch/core/internal/scanner"
	"github.com/tronwatch/core/internal/streamsession"
)

// ErrServiceAlreadyStarted is returned if Start is called more than once.
var ErrServiceAlreadyStarted = errors.New("service already started")

// Service defines the ingest lifecycle and coordination entrypoint.
type Service interface {
	// Start begins block scanning and wires all downstream workflows
	// (callback delivery, stream fan-out). Returns ErrServiceAlreadyStarted
	// if Start is called more than once.
	Start(ctx context.Context) error

	// Close shuts down the ingest service and every downstream workflow it
	// started. It is safe to call Close even if Start was never called.
	Close()
}

type closeFunc func()

// Config carries the queue sizing for the Event Bus's two consumer groups
// (spec.md §4.5, §6 eventbus.*).
type Config struct {
	CallbackQueueSize int
	StreamQueueSize   int
}

// service wires the Scanner (source of committed transactions) through the
// Event Bus into the Callback Dispatcher and Stream Session Manager.
type service struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc

	cfg Config

	bus     *eventbus.Bus
	scanner scanner.Service
	callback callbackdispatch.Service
	stream  *streamsession.Manager
}

var _ Service = (*service)(nil)

// New wires the pipeline. stream may be nil to run the ingestion core
// without the Stream Session Manager (e.g. a scan-only deployment).
func New(cfg Config, sc scanner.Service, bus *eventbus.Bus, cb callbackdispatch.Service, stream *streamsession.Manager) *service {
	return &service{
		cfg:      cfg,
		bus:      bus,
		scanner:  sc,
		callback: cb,
		stream:   stream,
	}
}

// Start launches the Scanner, the Callback Dispatcher, and (if configured)
// the Stream Session Manager, in that order.
func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)

	if err := s.scanner.Start(ctx); err != nil {
		cancel()
		return err
	}

	if err := s.callback.Start(ctx); err != nil {
		cancel()
		s.scanner.Close()
		return err
	}

	if s.stream != nil {
		if err := s.stream.Start(ctx); err != nil {
			cancel()
			s.callback.Close()
			s.scanner.Close()
			return err
		}
	}

	s.closeFunc = func() {
		cancel()
		if s.stream != nil {
			s.stream.Close()
		}
		s.callback.Close()
		s.scanner.Close()
		s.bus.Close()
	}
	s.isStarted = true
	return nil
}

// Close shuts down every component this service started, in reverse order.
func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closeFunc != nil {
		s.closeFunc()
	}
	s.closeFunc = nil
	s.isStarted = false
}
