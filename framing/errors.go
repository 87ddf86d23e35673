package framing

import "errors"

// ErrSignatureInvalid is returned when a Plaintext's signature does not
// verify against the sender's signature public key.
var ErrSignatureInvalid = errors.New("framing: signature verification failed")

// ErrConfirmationTagInvalid is returned when a Commit's confirmation tag
// does not match the recomputed one.
var ErrConfirmationTagInvalid = errors.New("framing: confirmation tag mismatch")

// ErrMembershipTagInvalid is returned when a Plaintext's membership tag
// does not match the recomputed one.
var ErrMembershipTagInvalid = errors.New("framing: membership tag mismatch")
