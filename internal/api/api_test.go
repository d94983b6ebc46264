package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronwatch/core/internal/query"
	"github.com/tronwatch/core/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAPIStore struct {
	subs  map[uuid.UUID]store.CallbackSubscription
	creds map[uuid.UUID]store.Credential
}

func newFakeAPIStore() *fakeAPIStore {
	return &fakeAPIStore{subs: map[uuid.UUID]store.CallbackSubscription{}, creds: map[uuid.UUID]store.Credential{}}
}

func (f *fakeAPIStore) CreateSubscription(ctx context.Context, sub store.CallbackSubscription) (store.CallbackSubscription, error) {
	sub.ID = uuid.New()
	f.subs[sub.ID] = sub
	return sub, nil
}

func (f *fakeAPIStore) GetSubscription(ctx context.Context, id uuid.UUID) (store.CallbackSubscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return store.CallbackSubscription{}, store.ErrNotFound
	}
	return sub, nil
}

func (f *fakeAPIStore) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	delete(f.subs, id)
	return nil
}

func (f *fakeAPIStore) ListDeadLetters(ctx context.Context, subscriptionID uuid.UUID) ([]store.DeadLetterEntry, error) {
	return nil, nil
}

func (f *fakeAPIStore) CreateCredential(ctx context.Context, cred store.Credential) (store.Credential, error) {
	cred.ID = uuid.New()
	f.creds[cred.ID] = cred
	return cred, nil
}

func (f *fakeAPIStore) RevokeCredential(ctx context.Context, id uuid.UUID) error {
	delete(f.creds, id)
	return nil
}

type fakeQueryStoreForAPI struct{ page store.MultiAddressPage }

func (f *fakeQueryStoreForAPI) QueryMultiAddress(ctx context.Context, q store.MultiAddressQuery) (store.MultiAddressPage, error) {
	return f.page, nil
}

type fakeAuth struct {
	credentialID uuid.UUID
	permissions  []string
	err          error
}

func (f *fakeAuth) Verify(ctx context.Context, token string) (uuid.UUID, []string, error) {
	if f.err != nil {
		return uuid.Nil, nil, f.err
	}
	return f.credentialID, f.permissions, nil
}

func newTestServer(auth Authenticator, st Store) *Server {
	qe := query.New(&fakeQueryStoreForAPI{page: store.MultiAddressPage{Transactions: []store.Transaction{{Hash: "tx1"}}}}, nil)
	return New(st, qe, auth, nil)
}

func doRequest(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	srv := newTestServer(&fakeAuth{}, newFakeAPIStore())
	rec := doRequest(srv.Router(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_MissingTokenRejected(t *testing.T) {
	srv := newTestServer(&fakeAuth{}, newFakeAPIStore())
	rec := doRequest(srv.Router(), http.MethodPost, "/v1/transactions/multi-address", "", map[string]any{"addresses": []string{"a"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "unauthenticated", body["error"])
}

func TestRequirePermission_ForbidsWithoutScope(t *testing.T) {
	srv := newTestServer(&fakeAuth{permissions: []string{"subscriptions:read"}}, newFakeAPIStore())
	rec := doRequest(srv.Router(), http.MethodPost, "/v1/subscriptions", "tok", map[string]any{
		"name": "x", "url": "https://example.com/hook", "secret": "1234567890123456",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermission_AdminGrantsEverything(t *testing.T) {
	srv := newTestServer(&fakeAuth{permissions: []string{"admin"}}, newFakeAPIStore())
	rec := doRequest(srv.Router(), http.MethodPost, "/v1/subscriptions", "tok", map[string]any{
		"name": "x", "url": "https://example.com/hook", "secret": "1234567890123456",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPostMultiAddress_SuccessEnvelope(t *testing.T) {
	srv := newTestServer(&fakeAuth{permissions: []string{"admin"}}, newFakeAPIStore())
	rec := doRequest(srv.Router(), http.MethodPost, "/v1/transactions/multi-address", "tok", map[string]any{
		"addresses": []string{"TAddr1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.NotNil(t, data["transactions"])
}

func TestPostMultiAddress_IncludesPaginationEnvelope(t *testing.T) {
	qe := query.New(&fakeQueryStoreForAPI{page: store.MultiAddressPage{
		Transactions: []store.Transaction{{Hash: "tx1"}},
		Page:         1,
		Limit:        50,
		Total:        1,
		TotalPages:   1,
	}}, nil)
	srv := New(newFakeAPIStore(), qe, &fakeAuth{permissions: []string{"admin"}}, nil)

	rec := doRequest(srv.Router(), http.MethodPost, "/v1/transactions/multi-address", "tok", map[string]any{
		"addresses": []string{"X", "Y"},
		"limit":     50,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(1), pagination["page"])
	assert.Equal(t, float64(50), pagination["limit"])
	assert.Equal(t, float64(1), pagination["total"])
	assert.Equal(t, float64(1), pagination["total_pages"])
}

func TestPostMultiAddress_ZeroAddressesRejectedAsInvalidInput(t *testing.T) {
	srv := newTestServer(&fakeAuth{permissions: []string{"admin"}}, newFakeAPIStore())
	rec := doRequest(srv.Router(), http.MethodPost, "/v1/transactions/multi-address", "tok", map[string]any{
		"addresses": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_input", body["error"])
}

func TestSubscriptionLifecycle_SecretNeverReturnedAfterCreate(t *testing.T) {
	st := newFakeAPIStore()
	srv := newTestServer(&fakeAuth{permissions: []string{"admin"}}, st)
	router := srv.Router()

	createRec := doRequest(router, http.MethodPost, "/v1/subscriptions", "tok", map[string]any{
		"name": "hook", "url": "https://example.com/hook", "secret": "1234567890123456",
	})
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	data := created["data"].(map[string]any)
	id := data["ID"].(string)

	getRec := doRequest(router, http.MethodGet, "/v1/subscriptions/"+id, "tok", nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	gotData := got["data"].(map[string]any)
	assert.Equal(t, "", gotData["Secret"])
}

func TestPostCredentials_ReturnsRawTokenOnce(t *testing.T) {
	st := newFakeAPIStore()
	srv := newTestServer(&fakeAuth{permissions: []string{"admin"}}, st)
	rec := doRequest(srv.Router(), http.MethodPost, "/v1/credentials", "tok", map[string]any{"name": "ops"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	token, ok := data["token"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, token)
}
