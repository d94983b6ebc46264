package callbackdispatch

import (
	"math/rand/v2"
	"net/http"
	"time"
)

// delay computes the backoff before retry attempt n (1-indexed), per
// spec.md §4.7: delay(n) = min(cap, base * 2^n) * (1 + jitter), jitter
// drawn uniformly from [0, 0.5) so backoff only ever grows, never shrinks
// below the documented minimum.
func delay(base, cap time.Duration, n int) time.Duration {
	d := base << min(n, 30)
	if d <= 0 || d > cap {
		d = cap
	}

	jitter := rand.Float64() * 0.5
	return d + time.Duration(float64(d)*jitter)
}

// isPermanentFailure classifies an HTTP status code as one that will never
// succeed on retry (spec.md §4.7): 400, 401, 403, 404, 410, 422.
func isPermanentFailure(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusGone, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

// isAutoDisableStatus reports whether a status code should auto-disable
// the subscription entirely, not just dead-letter this one delivery
// (spec.md §4.7: 404 and 410 mean the endpoint is gone for good).
func isAutoDisableStatus(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}
