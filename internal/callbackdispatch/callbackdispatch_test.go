package callbackdispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronwatch/core/internal/store"
)

func TestSign_MatchesExpectedHMACFormat(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	secret := "shared-secret"

	got := sign(secret, body)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, got)
	assert.True(t, strings.HasPrefix(got, "sha256="))
}

func TestSign_DifferentSecretsProduceDifferentSignatures(t *testing.T) {
	body := []byte(`{"a":1}`)
	assert.NotEqual(t, sign("secret-a", body), sign("secret-b", body))
}

func token(v string) store.Transaction {
	sym := v
	return store.Transaction{TokenSymbol: &sym, Value: decimal.NewFromInt(100)}
}

func TestMatches_EmptyFilterMatchesEverything(t *testing.T) {
	tx := store.Transaction{Sender: "A", Recipient: "B", Value: decimal.NewFromInt(1)}
	assert.True(t, matches(store.EventFilter{}, tx))
}

func TestMatches_KindFilter(t *testing.T) {
	native := store.Transaction{Value: decimal.NewFromInt(1)}
	assert.True(t, matches(store.EventFilter{Kinds: []store.EventKind{store.EventKindNativeTransfer}}, native))
	assert.False(t, matches(store.EventFilter{Kinds: []store.EventKind{store.EventKindTokenTransfer}}, native))
}

func TestMatches_AddressFilterIsCaseInsensitiveAndEitherSide(t *testing.T) {
	tx := store.Transaction{Sender: "TAbc123", Recipient: "TXyz789", Value: decimal.NewFromInt(1)}
	f := store.EventFilter{Addresses: []string{"txyz789"}}
	assert.True(t, matches(f, tx))

	f = store.EventFilter{Addresses: []string{"tnotinvolved"}}
	assert.False(t, matches(f, tx))
}

func TestMatches_TokenFilterDefaultsToNative(t *testing.T) {
	native := store.Transaction{Value: decimal.NewFromInt(1)}
	assert.True(t, matches(store.EventFilter{Tokens: []string{"native"}}, native))
	assert.False(t, matches(store.EventFilter{Tokens: []string{"usdt"}}, native))
	assert.True(t, matches(store.EventFilter{Tokens: []string{"USDT"}}, token("usdt")))
}

func TestMatches_MinValue(t *testing.T) {
	tx := store.Transaction{Value: decimal.NewFromInt(5)}
	min := decimal.NewFromInt(10)
	assert.False(t, matches(store.EventFilter{MinValue: &min}, tx))

	min = decimal.NewFromInt(5)
	assert.True(t, matches(store.EventFilter{MinValue: &min}, tx))
}

func TestDelay_GrowsExponentiallyAndRespectsCap(t *testing.T) {
	base := 2 * time.Second
	cap := 10 * time.Second

	for attempt := 1; attempt <= 10; attempt++ {
		d := delay(base, cap, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, cap+cap/2, "attempt %d exceeded cap plus max jitter", attempt)
	}

	// large attempts saturate the cap, so jitter can only push delay upward
	// from cap, never below it.
	d := delay(base, cap, 20)
	assert.GreaterOrEqual(t, d, cap)
}

func TestDelay_JitterNeverShrinksBelowBase(t *testing.T) {
	base := 2 * time.Second
	cap := time.Hour

	for attempt := 1; attempt <= 5; attempt++ {
		undelayed := base << attempt
		d := delay(base, cap, attempt)
		assert.GreaterOrEqual(t, d, undelayed, "attempt %d's jittered delay must never be below the unjittered value", attempt)
	}
}

func TestIsPermanentFailure(t *testing.T) {
	assert.True(t, isPermanentFailure(http.StatusNotFound))
	assert.True(t, isPermanentFailure(http.StatusUnprocessableEntity))
	assert.False(t, isPermanentFailure(http.StatusInternalServerError))
	assert.False(t, isPermanentFailure(http.StatusTooManyRequests))
}

func TestIsAutoDisableStatus(t *testing.T) {
	assert.True(t, isAutoDisableStatus(http.StatusNotFound))
	assert.True(t, isAutoDisableStatus(http.StatusGone))
	assert.False(t, isAutoDisableStatus(http.StatusBadRequest))
}

func TestAttempt_SetsRequiredWebhookHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(Config{Timeout: time.Second}, nil, nil)
	sub := store.CallbackSubscription{ID: uuid.New(), URL: srv.URL, Secret: "shh"}

	payload := Payload{
		Kind:        store.EventKindTokenTransfer,
		DeliveredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	body := []byte(`{"hello":"world"}`)

	status, err := d.attempt(t.Context(), sub, payload, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	assert.Equal(t, sign(sub.Secret, body), gotHeaders.Get("X-Webhook-Signature"))
	assert.Equal(t, sub.ID.String(), gotHeaders.Get("X-Webhook-Subscription-Id"))
	assert.Equal(t, "2026-01-02T03:04:05Z", gotHeaders.Get("X-Webhook-Timestamp"))
	assert.Equal(t, "token_transfer", gotHeaders.Get("X-Webhook-Event"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
}
