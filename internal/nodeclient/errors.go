package nodeclient

import "errors"

// ErrUpstreamUnavailable is returned when every configured endpoint failed
// (or is currently suspended) for a given call.
var ErrUpstreamUnavailable = errors.New("no usable upstream node endpoint")

// ErrCapacityExceeded names the pool's total in-flight bound being
// exhausted. Pool.Fetch does not return it: when the bound is reached,
// Fetch waits until capacity frees or ctx is done (spec.md §4.1).
var ErrCapacityExceeded = errors.New("node client at total in-flight capacity")
