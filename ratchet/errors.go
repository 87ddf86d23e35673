package ratchet

import "errors"

// ErrTooDistantInThePast is returned when a requested generation falls
// outside the trailing OUT_OF_ORDER_TOLERANCE window (spec.md §4.5).
var ErrTooDistantInThePast = errors.New("ratchet: generation too distant in the past")

// ErrTooDistantInTheFuture is returned when a requested generation would
// require stepping forward more than the allowed lookahead.
var ErrTooDistantInTheFuture = errors.New("ratchet: generation too distant in the future")
