package wireformat

import "errors"

// ErrMalformed is wrapped by every decode error caused by truncated or
// otherwise structurally invalid input, so callers can test for it with
// errors.Is regardless of which field failed to decode.
var ErrMalformed = errors.New("wireformat: malformed encoding")

// ErrTrailingBytes is returned by RequireAtEnd when a decoded message is
// followed by bytes that were never consumed.
var ErrTrailingBytes = errors.New("wireformat: trailing bytes after decode")
