package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronwatch/core/internal/eventbus"
	"github.com/tronwatch/core/internal/scanner"
)

type fakeScanner struct {
	startErr  error
	started   bool
	closed    bool
}

func (f *fakeScanner) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}
func (f *fakeScanner) Close()            { f.closed = true }
func (f *fakeScanner) State() scanner.State { return scanner.StateIdle }

type fakeCallback struct {
	startErr error
	started  bool
	closed   bool
}

func (f *fakeCallback) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}
func (f *fakeCallback) Close() { f.closed = true }

func TestService_Start_WiresScannerAndCallback(t *testing.T) {
	sc := &fakeScanner{}
	cb := &fakeCallback{}
	bus := eventbus.New()

	svc := New(Config{}, sc, bus, cb, nil)

	require.NoError(t, svc.Start(t.Context()))
	assert.True(t, sc.started)
	assert.True(t, cb.started)

	svc.Close()
	assert.True(t, sc.closed)
	assert.True(t, cb.closed)
}

func TestService_Start_RollsBackScannerOnCallbackFailure(t *testing.T) {
	sc := &fakeScanner{}
	cb := &fakeCallback{startErr: errors.New("boom")}
	bus := eventbus.New()

	svc := New(Config{}, sc, bus, cb, nil)

	err := svc.Start(t.Context())
	require.Error(t, err)
	assert.True(t, sc.started)
	assert.True(t, sc.closed, "scanner should be rolled back when the callback dispatcher fails to start")
}

func TestService_Start_RejectsDoubleStart(t *testing.T) {
	sc := &fakeScanner{}
	cb := &fakeCallback{}
	bus := eventbus.New()

	svc := New(Config{}, sc, bus, cb, nil)
	require.NoError(t, svc.Start(t.Context()))

	err := svc.Start(t.Context())
	assert.ErrorIs(t, err, ErrServiceAlreadyStarted)

	svc.Close()
}

func TestService_Close_SafeWithoutStart(t *testing.T) {
	svc := New(Config{}, &fakeScanner{}, eventbus.New(), &fakeCallback{}, nil)
	assert.NotPanics(t, func() { svc.Close() })
}
