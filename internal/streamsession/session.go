package streamsession

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/store"
)

// ErrSlowConsumer is the close-frame reason sent when a session's outbound
// buffer overflows in Deliver and the connection is closed rather than let it apply
// back-pressure to the whole fan-out (spec.md §4.8).
var ErrSlowConsumer = errors.New("streamsession: outbound buffer full")

// Session is one authenticated WebSocket connection and its subscriptions.
type Session struct {
	ID   uuid.UUID
	conn *websocket.Conn
	cfg  Config
	auth Authenticator

	credentialID uuid.UUID

	mu    sync.Mutex
	state State
	subs  map[uuid.UUID]store.EventFilter

	outbound  chan serverMessage
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, cfg Config, auth Authenticator) *Session {
	return &Session{
		ID:       uuid.New(),
		conn:     conn,
		cfg:      cfg,
		auth:     auth,
		state:    StateAccepted,
		subs:     make(map[uuid.UUID]store.EventFilter),
		outbound: make(chan serverMessage, cfg.OutboundBuffer),
		done:     make(chan struct{}),
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// run drives one connection's full lifecycle: authentication grace period,
// then concurrent read/write/heartbeat loops until the connection closes
// or ctx is canceled (spec.md §4.8).
func (s *Session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.close()

	if !s.authenticate(ctx) {
		return
	}
	s.setState(StateActive)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.writePump(ctx) }()
	go func() { defer wg.Done(); s.readPump(ctx) }()
	wg.Wait()
}

// authenticate enforces the AuthGrace window: the client's first message
// must be an "auth" message carrying a valid bearer token, or the
// connection is closed (spec.md §4.8 "Accepted -> Authenticated").
func (s *Session) authenticate(ctx context.Context) bool {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.AuthGrace))

	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		logger.Warn(ctx, "stream session closed before authenticating", "session.id", s.ID, "error", err)
		return false
	}

	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "auth" || msg.Token == "" {
		s.sendNow(serverMessage{Type: "error", Message: "expected auth message"})
		return false
	}

	credentialID, _, err := s.auth.Verify(ctx, msg.Token)
	if err != nil {
		s.sendNow(serverMessage{Type: "error", Message: "authentication failed"})
		return false
	}

	s.credentialID = credentialID
	s.setState(StateAuthenticated)
	s.sendNow(serverMessage{Type: "auth_ok"})
	return true
}

// readPump reads client messages (subscribe/unsubscribe/ping) and refreshes
// the idle deadline on every frame received, including pongs.
func (s *Session) readPump(ctx context.Context) {
	defer s.close()

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	})
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.enqueue(serverMessage{Type: "error", Message: "invalid message"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			s.handleSubscribe(msg)
		case "unsubscribe":
			s.handleUnsubscribe(msg)
		case "ping":
			s.enqueue(serverMessage{Type: "pong"})
		default:
			s.enqueue(serverMessage{Type: "error", Message: "unknown message type"})
		}
	}
}

func (s *Session) handleSubscribe(msg clientMessage) {
	if msg.Filter == nil {
		s.enqueue(serverMessage{Type: "error", Message: "subscribe requires a filter"})
		return
	}

	s.mu.Lock()
	if len(s.subs) >= s.cfg.MaxSubsPerSession {
		s.mu.Unlock()
		s.enqueue(serverMessage{Type: "error", Message: "subscription limit reached"})
		return
	}

	id := uuid.New()
	s.subs[id] = *msg.Filter
	s.mu.Unlock()

	s.enqueue(serverMessage{Type: "subscribed", SubscriptionID: id.String()})
}

func (s *Session) handleUnsubscribe(msg clientMessage) {
	id, err := uuid.Parse(msg.ID)
	if err != nil {
		s.enqueue(serverMessage{Type: "error", Message: "invalid subscription id"})
		return
	}

	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()

	s.enqueue(serverMessage{Type: "unsubscribed", SubscriptionID: msg.ID})
}

// writePump drains the outbound queue to the socket and sends periodic
// heartbeat pings (spec.md §4.8).
func (s *Session) writePump(ctx context.Context) {
	defer s.close()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case msg, ok := <-s.outbound:
			if !ok {
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// Deliver matches ev against every active subscription and enqueues one
// server message per match. If the outbound buffer is already full the
// session is closed rather than allowed to stall the fan-out (spec.md
// §4.8 "SlowConsumer").
func (s *Session) Deliver(ev store.Transaction, network string) {
	s.mu.Lock()
	matched := make([]uuid.UUID, 0, 1)
	for id, f := range s.subs {
		if matchesFilter(f, ev) {
			matched = append(matched, id)
		}
	}
	s.mu.Unlock()

	for _, id := range matched {
		tx := ev
		msg := serverMessage{Type: "event", SubscriptionID: id.String(), Network: network, Transaction: &tx}
		select {
		case s.outbound <- msg:
		default:
			logger.Warn(context.Background(), "closing slow stream consumer", "session.id", s.ID)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ErrSlowConsumer.Error()), time.Now().Add(time.Second))
			s.close()
			return
		}
	}
}

func (s *Session) enqueue(msg serverMessage) {
	select {
	case s.outbound <- msg:
	default:
		s.close()
	}
}

func (s *Session) sendNow(msg serverMessage) {
	_ = s.conn.WriteJSON(msg)
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.done)
		_ = s.conn.Close()
	})
}
