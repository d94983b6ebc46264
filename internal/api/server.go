package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tronwatch/core/internal/query"
	"github.com/tronwatch/core/internal/store"
)

// Store is the subset of store.Store the API layer depends on directly;
// transaction lookups go through query.Engine instead.
type Store interface {
	CreateSubscription(ctx context.Context, sub store.CallbackSubscription) (store.CallbackSubscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (store.CallbackSubscription, error)
	DeleteSubscription(ctx context.Context, id uuid.UUID) error

	ListDeadLetters(ctx context.Context, subscriptionID uuid.UUID) ([]store.DeadLetterEntry, error)

	CreateCredential(ctx context.Context, cred store.Credential) (store.Credential, error)
	RevokeCredential(ctx context.Context, id uuid.UUID) error
}

// StreamUpgrader is the subset of streamsession.Manager the router needs
// for the WebSocket upgrade endpoint.
type StreamUpgrader interface {
	HandleUpgrade(c *gin.Context)
}

// Server holds the API layer's dependencies and builds the gin.Engine that
// serves them (spec.md §4.4, §4.7, §4.8).
type Server struct {
	store  Store
	query  *query.Engine
	auth   Authenticator
	stream StreamUpgrader
}

// New builds a Server. stream may be nil, in which case /v1/stream is not
// registered (useful for deployments running only the ingestion core).
func New(st Store, q *query.Engine, auth Authenticator, stream StreamUpgrader) *Server {
	return &Server{store: st, query: q, auth: auth, stream: stream}
}

// Router builds the gin.Engine with every route this package serves.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	v1 := r.Group("/v1")
	v1.Use(authMiddleware(s.auth))

	v1.POST("/transactions/multi-address", s.postMultiAddress)

	v1.POST("/subscriptions", requirePermission("subscriptions:write"), s.postSubscriptions)
	v1.GET("/subscriptions/:id", requirePermission("subscriptions:read"), s.getSubscription)
	v1.DELETE("/subscriptions/:id", requirePermission("subscriptions:write"), s.deleteSubscription)
	v1.GET("/subscriptions/:id/dead-letters", requirePermission("subscriptions:read"), s.getDeadLetters)

	v1.POST("/credentials", requirePermission("admin"), s.postCredentials)
	v1.DELETE("/credentials/:id", requirePermission("admin"), s.deleteCredential)

	if s.stream != nil {
		r.GET("/v1/stream", s.stream.HandleUpgrade)
	}

	return r
}
