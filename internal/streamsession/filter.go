package streamsession

import (
	"strings"

	"github.com/tronwatch/core/internal/pkg/types"
	"github.com/tronwatch/core/internal/store"
)

// matchesFilter reports whether tx satisfies a session subscription's
// filter. An empty list for any dimension matches everything on that
// dimension, mirroring the Callback Dispatcher's filter semantics
// (spec.md §4.6, §4.8).
func matchesFilter(f store.EventFilter, tx store.Transaction) bool {
	if len(f.Kinds) > 0 {
		kinds := types.NewSet(f.Kinds...)
		if _, ok := kinds[tx.Kind()]; !ok {
			return false
		}
	}

	if len(f.Addresses) > 0 {
		addrs := types.NewSet(normalizeAll(f.Addresses)...)
		_, sender := addrs[strings.ToLower(tx.Sender)]
		_, recipient := addrs[strings.ToLower(tx.Recipient)]
		if !sender && !recipient {
			return false
		}
	}

	if len(f.Tokens) > 0 {
		symbol := "native"
		if tx.TokenSymbol != nil && *tx.TokenSymbol != "" {
			symbol = *tx.TokenSymbol
		}
		tokens := types.NewSet(normalizeAll(f.Tokens)...)
		if _, ok := tokens[strings.ToLower(symbol)]; !ok {
			return false
		}
	}

	if f.MinValue != nil && tx.Value.LessThan(*f.MinValue) {
		return false
	}

	return true
}

func normalizeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
