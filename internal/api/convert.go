package api

import (
	"github.com/tronwatch/core/internal/query"
	"github.com/tronwatch/core/internal/store"
)

func toQueryRequest(body multiAddressRequest) query.Request {
	kinds := make([]store.EventKind, 0, len(body.Kinds))
	for _, k := range body.Kinds {
		kinds = append(kinds, store.EventKind(k))
	}

	return query.Request{
		Addresses: body.Addresses,
		Kinds:     kinds,
		Tokens:    body.Tokens,
		MinValue:  body.MinValue,
		Since:     body.Since,
		Until:     body.Until,
		Page:      body.Page,
		Limit:     body.Limit,
	}
}
