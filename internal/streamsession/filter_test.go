package streamsession

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tronwatch/core/internal/store"
)

func TestMatchesFilter_EmptyFilterMatchesEverything(t *testing.T) {
	tx := store.Transaction{Sender: "a", Recipient: "b", Value: decimal.NewFromInt(1)}
	assert.True(t, matchesFilter(store.EventFilter{}, tx))
}

func TestMatchesFilter_KindMismatch(t *testing.T) {
	tx := store.Transaction{Value: decimal.NewFromInt(1)} // native
	f := store.EventFilter{Kinds: []store.EventKind{store.EventKindTokenTransfer}}
	assert.False(t, matchesFilter(f, tx))
}

func TestMatchesFilter_AddressCaseInsensitive(t *testing.T) {
	tx := store.Transaction{Sender: "TAbC", Value: decimal.NewFromInt(1)}
	assert.True(t, matchesFilter(store.EventFilter{Addresses: []string{"tabc"}}, tx))
	assert.False(t, matchesFilter(store.EventFilter{Addresses: []string{"tdef"}}, tx))
}

func TestMatchesFilter_TokenDefaultsToNative(t *testing.T) {
	tx := store.Transaction{Value: decimal.NewFromInt(1)}
	assert.True(t, matchesFilter(store.EventFilter{Tokens: []string{"NATIVE"}}, tx))
	assert.False(t, matchesFilter(store.EventFilter{Tokens: []string{"usdt"}}, tx))
}

func TestMatchesFilter_MinValueExcludesSmallerTransfers(t *testing.T) {
	tx := store.Transaction{Value: decimal.NewFromInt(3)}
	min := decimal.NewFromInt(5)
	assert.False(t, matchesFilter(store.EventFilter{MinValue: &min}, tx))
}

func TestNormalizeAll(t *testing.T) {
	got := normalizeAll([]string{"ABC", "dEf"})
	assert.Equal(t, []string{"abc", "def"}, got)
}
