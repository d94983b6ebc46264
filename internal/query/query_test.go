package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronwatch/core/internal/cache"
	"github.com/tronwatch/core/internal/store"
)

type fakeQueryStore struct {
	page  store.MultiAddressPage
	err   error
	calls int
}

func (f *fakeQueryStore) QueryMultiAddress(ctx context.Context, q store.MultiAddressQuery) (store.MultiAddressPage, error) {
	f.calls++
	return f.page, f.err
}

// fakeBackend is an in-memory stand-in for cache.Backend.
type fakeBackend struct{ data map[string][]byte }

func newFakeBackend() *fakeBackend { return &fakeBackend{data: make(map[string][]byte)} }

func (b *fakeBackend) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok := b.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (b *fakeBackend) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.data[key] = raw
	return nil
}

func (b *fakeBackend) DeletePattern(ctx context.Context, pattern string) error { return nil }
func (b *fakeBackend) TxKey(hash string) string                                { return "tx:" + hash }
func (b *fakeBackend) MultiKey(digest string) string                           { return "multi:" + digest }
func (b *fakeBackend) AddrStatsKey(address string) string                      { return "addr:" + address }
func (b *fakeBackend) AddrStatsPattern() string                                { return "addr:*" }
func (b *fakeBackend) MultiPattern() string                                    { return "multi:*" }

func TestEngine_Lookup_RejectsTooManyAddresses(t *testing.T) {
	st := &fakeQueryStore{}
	e := New(st, nil)

	addrs := make([]string, MaxAddresses+1)
	for i := range addrs {
		addrs[i] = "addr"
	}

	_, err := e.Lookup(t.Context(), Request{Addresses: addrs})
	assert.ErrorIs(t, err, ErrAddressCountOutOfRange)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, st.calls)
}

func TestEngine_Lookup_RejectsEmptyRequest(t *testing.T) {
	e := New(&fakeQueryStore{}, nil)
	_, err := e.Lookup(t.Context(), Request{})
	assert.ErrorIs(t, err, ErrAddressCountOutOfRange)
}

func TestEngine_Lookup_RejectsLimitOutOfRange(t *testing.T) {
	e := New(&fakeQueryStore{}, nil)
	_, err := e.Lookup(t.Context(), Request{Addresses: []string{"a"}, Limit: MaxLimit + 1})
	assert.ErrorIs(t, err, ErrLimitOutOfRange)
}

func TestEngine_Lookup_RejectsInvertedTimeRange(t *testing.T) {
	e := New(&fakeQueryStore{}, nil)
	since := time.Now()
	until := since.Add(-time.Hour)
	_, err := e.Lookup(t.Context(), Request{Addresses: []string{"a"}, Since: &since, Until: &until})
	assert.ErrorIs(t, err, ErrTimeRangeInverted)
}

func TestEngine_Lookup_FallsThroughToStoreOnCacheMiss(t *testing.T) {
	want := store.MultiAddressPage{Transactions: []store.Transaction{{Hash: "h1"}}}
	st := &fakeQueryStore{page: want}
	c := cache.New(newFakeBackend(), cache.Config{Enabled: true, MultiTTL: time.Minute})
	e := New(st, c)

	got, err := e.Lookup(t.Context(), Request{Addresses: []string{"TAddr1"}})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, st.calls)
}

func TestEngine_Lookup_SecondCallHitsCache(t *testing.T) {
	want := store.MultiAddressPage{Transactions: []store.Transaction{{Hash: "h1"}}}
	st := &fakeQueryStore{page: want}
	c := cache.New(newFakeBackend(), cache.Config{Enabled: true, MultiTTL: time.Minute})
	e := New(st, c)

	req := Request{Addresses: []string{"TAddr1"}}
	_, err := e.Lookup(t.Context(), req)
	require.NoError(t, err)

	_, err = e.Lookup(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, st.calls, "second lookup with identical parameters should be served from cache")
}

func TestEngine_Lookup_InvalidMinValueRejected(t *testing.T) {
	e := New(&fakeQueryStore{}, nil)
	_, err := e.Lookup(t.Context(), Request{Addresses: []string{"a"}, MinValue: "not-a-number"})
	require.Error(t, err)
}
