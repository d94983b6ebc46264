package callbackdispatch

import (
	"strings"

	"github.com/tronwatch/core/internal/store"
)

// matches reports whether a Transaction satisfies a subscription's filter
// (spec.md §4.6). An empty list for any dimension matches everything on
// that dimension.
func matches(f store.EventFilter, tx store.Transaction) bool {
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, tx.Kind()) {
		return false
	}

	if len(f.Addresses) > 0 {
		if !containsAddress(f.Addresses, tx.Sender) && !containsAddress(f.Addresses, tx.Recipient) {
			return false
		}
	}

	if len(f.Tokens) > 0 {
		symbol := "native"
		if tx.TokenSymbol != nil && *tx.TokenSymbol != "" {
			symbol = *tx.TokenSymbol
		}
		if !containsToken(f.Tokens, symbol) {
			return false
		}
	}

	if f.MinValue != nil && tx.Value.LessThan(*f.MinValue) {
		return false
	}

	return true
}

func containsKind(kinds []store.EventKind, target store.EventKind) bool {
	for _, k := range kinds {
		if k == target {
			return true
		}
	}
	return false
}

func containsAddress(addrs []string, target string) bool {
	for _, a := range addrs {
		if strings.EqualFold(a, target) {
			return true
		}
	}
	return false
}

func containsToken(tokens []string, target string) bool {
	for _, t := range tokens {
		if strings.EqualFold(t, target) {
			return true
		}
	}
	return false
}
