// Package api exposes the HTTP and WebSocket surface: the multi-address
// transaction query, callback subscription and credential CRUD, dead-letter
// inspection, and the stream upgrade endpoint (spec.md §4.4, §4.7, §4.8).
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tronwatch/core/internal/authn"
	"github.com/tronwatch/core/internal/query"
	"github.com/tronwatch/core/internal/store"
)

// ok writes the {success:true, data:...} envelope (spec.md §7).
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// fail writes the {success:false, error, message} envelope (spec.md §7).
func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"success": false, "error": code, "message": message})
}

// failFromError maps a domain error to a status code and error envelope.
func failFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, authn.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, authn.ErrRateLimited):
		fail(c, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, query.ErrInvalidInput):
		fail(c, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
	}
}
