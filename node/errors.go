package node

import "errors"

// ErrInvalidTag is returned when a decoded node tag byte is neither
// TagLeaf nor TagParent (spec.md §9: unknown tags must map to a defined
// fallback, never be reinterpreted).
var ErrInvalidTag = errors.New("node: invalid node tag")
