package streamsession

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tronwatch/core/internal/metrics"
	"github.com/tronwatch/core/internal/pkg/logger"
)

// ErrManagerAlreadyStarted is returned if Start is called more than once.
var ErrManagerAlreadyStarted = errors.New("streamsession: manager already started")

// Manager is the Stream Session Manager: it accepts WebSocket upgrades,
// tracks every live Session, and fans out Event Bus transactions to the
// sessions whose subscriptions match (spec.md §4.8).
type Manager struct {
	mu        sync.Mutex
	isStarted bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	cfg      Config
	auth     Authenticator
	consumer Consumer
	upgrader websocket.Upgrader

	sessMu   sync.RWMutex
	sessions map[*Session]struct{}
}

// New builds a Manager. consumer must be the channel returned by the Event
// Bus's Register call for the stream consumer group.
func New(cfg Config, auth Authenticator, consumer Consumer) *Manager {
	return &Manager{
		cfg:      cfg,
		auth:     auth,
		consumer: consumer,
		sessions: make(map[*Session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start launches the fan-out loop that reads from the Event Bus consumer
// and delivers matching transactions to every registered session.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isStarted {
		return ErrManagerAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.runFanout(ctx)

	m.isStarted = true
	return nil
}

// Close stops the fan-out loop and closes every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()

	m.sessMu.Lock()
	for s := range m.sessions {
		s.close()
	}
	m.sessions = make(map[*Session]struct{})
	m.sessMu.Unlock()
}

func (m *Manager) runFanout(ctx context.Context) {
	defer m.wg.Done()

	var lastSeq int64
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.consumer:
			if !ok {
				return
			}

			m.sessMu.RLock()
			// A gap in the shared publish sequence means the bus's stream
			// group dropped one or more events under load (spec.md §4.5).
			// Every active session is told once, on the next message it
			// receives, rather than silently served a hole in the feed.
			if lastSeq != 0 && ev.Seq > lastSeq+1 {
				for s := range m.sessions {
					s.enqueue(serverMessage{Type: "gap", Message: "one or more events were dropped"})
				}
			}
			for s := range m.sessions {
				s.Deliver(ev.Transaction, ev.Network)
			}
			m.sessMu.RUnlock()
			lastSeq = ev.Seq
		}
	}
}

func (m *Manager) register(s *Session) {
	m.sessMu.Lock()
	m.sessions[s] = struct{}{}
	m.sessMu.Unlock()
	metrics.ActiveStreamSessions.Inc()
}

func (m *Manager) unregister(s *Session) {
	m.sessMu.Lock()
	delete(m.sessions, s)
	m.sessMu.Unlock()
	metrics.ActiveStreamSessions.Dec()
}

// HandleUpgrade is a gin handler that upgrades the request to a WebSocket
// connection and runs the resulting Session until it closes.
func (m *Manager) HandleUpgrade(c *gin.Context) {
	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(conn, m.cfg, m.auth)
	m.register(sess)
	defer m.unregister(sess)

	sess.run(c.Request.Context())
}
