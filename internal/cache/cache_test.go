package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronwatch/core/internal/store"
)

type fakeBackend struct {
	data     map[string][]byte
	deleted  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string][]byte)}
}

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

func (b *fakeBackend) DeletePattern(ctx context.Context, pattern string) error {
	b.deleted = append(b.deleted, pattern)
	for k := range b.data {
		delete(b.data, k)
	}
	return nil
}

func (b *fakeBackend) TxKey(hash string) string          { return "tx:" + hash }
func (b *fakeBackend) MultiKey(digest string) string     { return "multi:" + digest }
func (b *fakeBackend) AddrStatsKey(address string) string { return "addr:" + address }
func (b *fakeBackend) AddrStatsPattern() string          { return "addr:*" }
func (b *fakeBackend) MultiPattern() string              { return "multi:*" }

func TestCache_DisabledIsAlwaysAMiss(t *testing.T) {
	c := New(newFakeBackend(), Config{Enabled: false})

	require.NoError(t, c.SetTransaction(t.Context(), store.Transaction{Hash: "a"}))
	_, ok, err := c.GetTransaction(t.Context(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_TransactionRoundTrip(t *testing.T) {
	c := New(newFakeBackend(), Config{Enabled: true, TxTTL: time.Minute})

	tx := store.Transaction{Hash: "abc", BlockHeight: 10}
	require.NoError(t, c.SetTransaction(t.Context(), tx))

	got, ok, err := c.GetTransaction(t.Context(), "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tx.Hash, got.Hash)
	assert.Equal(t, tx.BlockHeight, got.BlockHeight)
}

func TestCache_MultiAddressPageKeyedByFullQuery(t *testing.T) {
	c := New(newFakeBackend(), Config{Enabled: true, MultiTTL: time.Minute})

	q1 := store.MultiAddressQuery{Addresses: []string{"a"}, Limit: 10}
	q2 := store.MultiAddressQuery{Addresses: []string{"b"}, Limit: 10}
	page := store.MultiAddressPage{Total: 1}

	require.NoError(t, c.SetMultiAddressPage(t.Context(), q1, page))

	_, ok, err := c.GetMultiAddressPage(t.Context(), q1)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = c.GetMultiAddressPage(t.Context(), q2)
	require.NoError(t, err)
	assert.False(t, ok, "a different query should not share a cache entry")
}

func TestCache_InvalidateRewindClearsAddrAndMultiEntries(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend, Config{Enabled: true, AddressStatsTTL: time.Minute, MultiTTL: time.Minute})

	require.NoError(t, c.SetAddressStats(t.Context(), store.AddressStats{Address: "a"}))
	require.NoError(t, c.SetMultiAddressPage(t.Context(), store.MultiAddressQuery{Addresses: []string{"a"}}, store.MultiAddressPage{}))

	require.NoError(t, c.InvalidateRewind(t.Context()))

	assert.Contains(t, backend.deleted, "addr:*")
	assert.Contains(t, backend.deleted, "multi:*")
}

func TestCache_InvalidateRewindNoOpWhenDisabled(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend, Config{Enabled: false})

	require.NoError(t, c.InvalidateRewind(t.Context()))
	assert.Empty(t, backend.deleted)
}
