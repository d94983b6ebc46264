package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tronwatch/core/internal/authn"
	"github.com/tronwatch/core/internal/pkg/validator"
	"github.com/tronwatch/core/internal/store"
)

type credentialRequest struct {
	Name        string     `json:"name" validate:"required"`
	Permissions []string   `json:"permissions"`
	RateCeiling *int       `json:"rate_ceiling"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// postCredentials handles POST /v1/credentials. The raw bearer token is
// generated here and returned exactly once; only its hash is persisted
// (spec.md §7, glossary "Credential").
func (s *Server) postCredentials(c *gin.Context) {
	var body credentialRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := validator.Validate(body); err != nil {
		fail(c, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	token, err := generateToken()
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal", "failed to generate credential token")
		return
	}

	cred := store.Credential{
		Name:        body.Name,
		TokenHash:   authn.HashToken(token),
		Permissions: body.Permissions,
		RateCeiling: body.RateCeiling,
		ExpiresAt:   body.ExpiresAt,
	}

	created, err := s.store.CreateCredential(c.Request.Context(), cred)
	if err != nil {
		failFromError(c, err)
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"id":           created.ID,
		"name":         created.Name,
		"token":        token,
		"permissions":  created.Permissions,
		"rate_ceiling": created.RateCeiling,
		"expires_at":   created.ExpiresAt,
	})
}

func (s *Server) deleteCredential(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid credential id")
		return
	}

	if err := s.store.RevokeCredential(c.Request.Context(), id); err != nil {
		failFromError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
