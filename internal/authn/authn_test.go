package authn

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronwatch/core/internal/store"
)

type fakeStore struct {
	byHash map[string]store.Credential
}

func newFakeStore(creds ...store.Credential) *fakeStore {
	byHash := make(map[string]store.Credential, len(creds))
	for _, c := range creds {
		byHash[c.TokenHash] = c
	}
	return &fakeStore{byHash: byHash}
}

func (f *fakeStore) GetCredentialByTokenHash(ctx context.Context, tokenHash string) (store.Credential, error) {
	cred, ok := f.byHash[tokenHash]
	if !ok {
		return store.Credential{}, store.ErrNotFound
	}
	return cred, nil
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("secret"), HashToken("secret"))
	assert.NotEqual(t, HashToken("secret"), HashToken("other"))
}

func TestAuthenticator_Verify_Success(t *testing.T) {
	id := uuid.New()
	st := newFakeStore(store.Credential{
		ID:          id,
		TokenHash:   HashToken("good-token"),
		Permissions: []string{"subscriptions:read"},
	})
	a := New(st)

	gotID, perms, err := a.Verify(t.Context(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, []string{"subscriptions:read"}, perms)
}

func TestAuthenticator_Verify_UnknownToken(t *testing.T) {
	a := New(newFakeStore())

	_, _, err := a.Verify(t.Context(), "nope")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticator_Verify_ExpiredCredential(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	st := newFakeStore(store.Credential{
		ID:        uuid.New(),
		TokenHash: HashToken("expired-token"),
		ExpiresAt: &past,
	})
	a := New(st)

	_, _, err := a.Verify(t.Context(), "expired-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticator_Verify_RateLimited(t *testing.T) {
	ceiling := 1
	st := newFakeStore(store.Credential{
		ID:          uuid.New(),
		TokenHash:   HashToken("rated-token"),
		RateCeiling: &ceiling,
	})
	a := New(st)

	// The leaky bucket admits the first call immediately; a context that is
	// already past its deadline forces any subsequent wait to fail fast
	// rather than pace at 1 req/s for the length of the test.
	_, _, err := a.Verify(t.Context(), "rated-token")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, _, err = a.Verify(ctx, "rated-token")
	assert.ErrorIs(t, err, ErrRateLimited)
}
