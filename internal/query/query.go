// Package query implements the multi-address transaction lookup: request
// validation, cache-then-store resolution, and response shaping
// (spec.md §4.4).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tronwatch/core/internal/cache"
	"github.com/tronwatch/core/internal/pkg/validator"
	"github.com/tronwatch/core/internal/store"
)

// ErrInvalidInput is the base sentinel for every request-validation failure
// (spec.md §7 "InvalidInput"). The more specific errors below wrap it, so
// callers can branch on the specific condition or just on ErrInvalidInput.
var ErrInvalidInput = errors.New("query: invalid input")

// ErrAddressCountOutOfRange is returned when a request names zero or more
// than MaxAddresses addresses (spec.md §4.7, §8 property 10).
var ErrAddressCountOutOfRange = fmt.Errorf("query: address count must be between 1 and %d: %w", MaxAddresses, ErrInvalidInput)

// ErrLimitOutOfRange is returned when a request's page size is negative or
// exceeds MaxLimit (spec.md §4.7).
var ErrLimitOutOfRange = fmt.Errorf("query: limit must be between 1 and %d: %w", MaxLimit, ErrInvalidInput)

// ErrTimeRangeInverted is returned when a request's Since is after its
// Until (spec.md §4.7).
var ErrTimeRangeInverted = fmt.Errorf("query: since must not be after until: %w", ErrInvalidInput)

// MaxAddresses bounds the union-merge fan-out of a single request.
const MaxAddresses = 100

// MaxLimit bounds the page size a caller may request.
const MaxLimit = 1000

// DefaultLimit is used when a request does not specify a page size.
const DefaultLimit = 100

// Request is the validated input to Lookup.
type Request struct {
	Addresses []string          `validate:"required,dive,required"`
	Kinds     []store.EventKind `validate:"omitempty,dive,oneof=native_transfer token_transfer"`
	Tokens    []string          `validate:"omitempty,dive,required"`
	MinValue  string            `validate:"omitempty,numeric"`
	Since     *time.Time
	Until     *time.Time
	Page      int
	Limit     int
}

// Store is the subset of store.Store the query engine depends on.
type Store interface {
	QueryMultiAddress(ctx context.Context, q store.MultiAddressQuery) (store.MultiAddressPage, error)
}

// Engine resolves multi-address lookups, checking the read-side cache
// before falling through to the durable store (spec.md §4.4, §5).
type Engine struct {
	store Store
	cache *cache.Cache
}

// New builds an Engine. c may be nil, in which case every lookup goes
// straight to the store.
func New(st Store, c *cache.Cache) *Engine {
	return &Engine{store: st, cache: c}
}

// Lookup validates req and resolves it into a page of transactions, using
// the cache when the request is a first page (cacheable) and consulting
// the store on a miss or for subsequent pages.
func (e *Engine) Lookup(ctx context.Context, req Request) (store.MultiAddressPage, error) {
	if len(req.Addresses) == 0 || len(req.Addresses) > MaxAddresses {
		return store.MultiAddressPage{}, ErrAddressCountOutOfRange
	}
	if req.Limit < 0 || req.Limit > MaxLimit {
		return store.MultiAddressPage{}, ErrLimitOutOfRange
	}
	if req.Page < 0 {
		return store.MultiAddressPage{}, ErrInvalidInput
	}
	if req.Since != nil && req.Until != nil && req.Since.After(*req.Until) {
		return store.MultiAddressPage{}, ErrTimeRangeInverted
	}
	if err := validator.Validate(req); err != nil {
		return store.MultiAddressPage{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	q, err := toStoreQuery(req)
	if err != nil {
		return store.MultiAddressPage{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if e.cache != nil {
		if page, ok, err := e.cache.GetMultiAddressPage(ctx, q); err == nil && ok {
			return page, nil
		}
	}

	page, err := e.store.QueryMultiAddress(ctx, q)
	if err != nil {
		return store.MultiAddressPage{}, err
	}

	if e.cache != nil {
		_ = e.cache.SetMultiAddressPage(ctx, q, page)
	}

	return page, nil
}

func toStoreQuery(req Request) (store.MultiAddressQuery, error) {
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	page := req.Page
	if page == 0 {
		page = 1
	}

	q := store.MultiAddressQuery{
		Addresses: req.Addresses,
		Kinds:     req.Kinds,
		Tokens:    req.Tokens,
		Since:     req.Since,
		Until:     req.Until,
		Page:      page,
		Limit:     limit,
	}

	if req.MinValue != "" {
		if _, err := decimal.NewFromString(req.MinValue); err != nil {
			return store.MultiAddressQuery{}, err
		}
		q.MinValue = &req.MinValue
	}

	return q, nil
}
