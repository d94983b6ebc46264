package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// getDeadLetters handles GET /v1/subscriptions/:id/dead-letters, listing
// deliveries that exhausted their retry budget for operator inspection
// (spec.md §4.7).
func (s *Server) getDeadLetters(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid subscription id")
		return
	}

	entries, err := s.store.ListDeadLetters(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	ok(c, http.StatusOK, entries)
}
