// Package authn authenticates bearer tokens against the Credential store
// and enforces each credential's per-second rate ceiling (spec.md §4.4,
// §4.8, glossary "Credential").
package authn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tronwatch/core/internal/store"
)

// ErrUnauthenticated is returned when the presented token does not match
// any non-expired credential.
var ErrUnauthenticated = errors.New("authn: invalid or expired token")

// ErrRateLimited is returned when a credential's request rate ceiling is
// exceeded.
var ErrRateLimited = errors.New("authn: rate limit exceeded")

// Store is the subset of store.Store the authenticator depends on.
type Store interface {
	GetCredentialByTokenHash(ctx context.Context, tokenHash string) (store.Credential, error)
}

// Authenticator verifies bearer tokens presented over HTTP or WebSocket and
// enforces per-credential rate limiting. It implements the Authenticator
// contract both internal/api and internal/streamsession depend on.
type Authenticator struct {
	store Store

	mu       sync.Mutex
	limiters map[uuid.UUID]*limiter
}

// New builds an Authenticator backed by st.
func New(st Store) *Authenticator {
	return &Authenticator{
		store:    st,
		limiters: make(map[uuid.UUID]*limiter),
	}
}

// Verify hashes token, looks up the matching credential, rejects it if
// expired, and applies its rate ceiling. It returns the credential's ID and
// granted permissions on success.
func (a *Authenticator) Verify(ctx context.Context, token string) (uuid.UUID, []string, error) {
	hash := HashToken(token)

	cred, err := a.store.GetCredentialByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, nil, ErrUnauthenticated
		}
		return uuid.Nil, nil, err
	}

	if cred.ExpiresAt != nil && cred.ExpiresAt.Before(time.Now()) {
		return uuid.Nil, nil, ErrUnauthenticated
	}

	if cred.RateCeiling != nil {
		if err := a.limiterFor(cred).Wait(ctx); err != nil {
			return uuid.Nil, nil, ErrRateLimited
		}
	}

	return cred.ID, cred.Permissions, nil
}

func (a *Authenticator) limiterFor(cred store.Credential) *limiter {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.limiters[cred.ID]
	if !ok {
		l = newLimiter(*cred.RateCeiling)
		a.limiters[cred.ID] = l
	}
	return l
}

// HashToken reduces a raw bearer token to its stored comparison form. Only
// the hash is ever persisted or compared; the raw token is shown to its
// owner exactly once, at creation.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
