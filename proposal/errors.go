package proposal

import "errors"

// ErrInvalidType is returned for an unrecognized proposal tag, never
// reinterpreted as undefined behavior (spec.md §9).
var ErrInvalidType = errors.New("proposal: invalid proposal type")

// ErrProposalNotFound is returned when a Commit references a ProposalID
// the queue never saw (spec.md §7 error taxonomy).
var ErrProposalNotFound = errors.New("proposal: proposal not found")
