package scanner

import (
	"context"
	"errors"
	"sync"

	"github.com/tronwatch/core/internal/pkg/logger"
)

// ErrServiceAlreadyStarted is returned if Start is called more than once.
var ErrServiceAlreadyStarted = errors.New("service already started")

// Service defines the Scanner lifecycle.
type Service interface {
	// Start begins polling for newly confirmed blocks and returns
	// immediately. Call Close to stop.
	//
	// Returns ErrServiceAlreadyStarted if Start is called more than once.
	Start(ctx context.Context) error

	// Close stops the polling loop. It is safe to call even if the
	// Scanner was never started.
	Close()

	// State returns the Scanner's current phase, for health reporting.
	State() State
}

type closeFunc func()

type service struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc

	stateMu sync.RWMutex
	state   State

	cfg       Config
	node      NodeClient
	store     Store
	publisher Publisher
	cache     CacheInvalidator
}

var _ Service = (*service)(nil)

// New builds a Scanner for one network.
func New(cfg Config, node NodeClient, st Store, publisher Publisher, cache CacheInvalidator) *service {
	return &service{
		cfg:       cfg,
		node:      node,
		store:     st,
		publisher: publisher,
		cache:     cache,
		state:     StateIdle,
	}
}

func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.closeFunc = cancel

	go func() {
		if err := s.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "scanner loop exited", "scanner.network", s.cfg.Network, "error", err)
		}
	}()

	s.isStarted = true
	return nil
}

func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closeFunc != nil {
		s.closeFunc()
	}
	s.closeFunc = nil
	s.isStarted = false
}

func (s *service) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *service) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}
