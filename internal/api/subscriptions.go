package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tronwatch/core/internal/pkg/validator"
	"github.com/tronwatch/core/internal/store"
)

type subscriptionRequest struct {
	Name      string   `json:"name" validate:"required"`
	URL       string   `json:"url" validate:"required,url"`
	Secret    string   `json:"secret" validate:"required,min=16"`
	Enabled   bool     `json:"enabled"`
	Kinds     []string `json:"kinds"`
	Addresses []string `json:"addresses"`
	Tokens    []string `json:"tokens"`
	MinValue  string   `json:"min_value"`
}

// postSubscriptions handles POST /v1/subscriptions. The secret is echoed
// back exactly once, in the create response, and never again (spec.md §4.6).
func (s *Server) postSubscriptions(c *gin.Context) {
	var body subscriptionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := validator.Validate(body); err != nil {
		fail(c, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	sub := store.CallbackSubscription{
		Name:    body.Name,
		URL:     body.URL,
		Secret:  body.Secret,
		Enabled: body.Enabled,
		Filter:  toFilter(body.Kinds, body.Addresses, body.Tokens, body.MinValue),
	}

	created, err := s.store.CreateSubscription(c.Request.Context(), sub)
	if err != nil {
		failFromError(c, err)
		return
	}

	ok(c, http.StatusCreated, created)
}

func (s *Server) getSubscription(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid subscription id")
		return
	}

	sub, err := s.store.GetSubscription(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	sub.Secret = ""
	ok(c, http.StatusOK, sub)
}

func (s *Server) deleteSubscription(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid subscription id")
		return
	}

	if err := s.store.DeleteSubscription(c.Request.Context(), id); err != nil {
		failFromError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func toFilter(kinds, addresses, tokens []string, minValue string) store.EventFilter {
	f := store.EventFilter{Addresses: addresses, Tokens: tokens}
	for _, k := range kinds {
		f.Kinds = append(f.Kinds, store.EventKind(k))
	}
	if minValue != "" {
		if d, err := parseDecimal(minValue); err == nil {
			f.MinValue = &d
		}
	}
	return f
}
