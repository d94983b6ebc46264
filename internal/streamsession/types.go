// Package streamsession implements the Stream Session Manager: it upgrades
// HTTP requests to WebSocket connections, authenticates each connection by
// its first message, tracks each
// connection's subscribe/unsubscribe state, fans out matching Event Bus
// events, and enforces heartbeat, idle-timeout, and back-pressure closure
// (spec.md §4.8).
package streamsession

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tronwatch/core/internal/eventbus"
	"github.com/tronwatch/core/internal/store"
)

// State is a Session's position in its connection lifecycle (spec.md §4.8).
type State string

const (
	StateAccepted     State = "accepted"
	StateAuthenticated State = "authenticated"
	StateActive       State = "active"
	StateIdle         State = "idle"
	StateClosing      State = "closing"
	StateClosed       State = "closed"
)

// Authenticator verifies a bearer token presented during the auth grace
// window. It is the same contract the HTTP API uses (internal/authn).
type Authenticator interface {
	Verify(ctx context.Context, token string) (credentialID uuid.UUID, permissions []string, err error)
}

// Config holds the manager's tuning knobs (spec.md §6, stream.*).
type Config struct {
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	AuthGrace         time.Duration
	MaxSubsPerSession int
	OutboundBuffer    int
}

// clientMessage is the inbound JSON message shape a session accepts.
type clientMessage struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Token string          `json:"token,omitempty"`
	Filter *store.EventFilter `json:"filter,omitempty"`
}

// serverMessage is the outbound JSON message shape a session sends.
type serverMessage struct {
	Type           string             `json:"type"`
	SubscriptionID string             `json:"subscription_id,omitempty"`
	Network        string             `json:"network,omitempty"`
	Transaction    *store.Transaction `json:"transaction,omitempty"`
	Message        string             `json:"message,omitempty"`
}

// Consumer is the subset of eventbus.Bus the manager depends on for
// receiving its own consumer group's events.
type Consumer <-chan eventbus.Event
