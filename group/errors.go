package group

import "errors"

// ErrStaleEpoch is returned when an incoming Commit or ciphertext names an
// epoch older than the receiver's current one (spec.md §7).
var ErrStaleEpoch = errors.New("group: stale epoch")

// ErrFutureEpoch is returned when an incoming message names an epoch ahead
// of the receiver's current one.
var ErrFutureEpoch = errors.New("group: future epoch")

// ErrSelfRemoved marks the terminal transition after a Commit removes the
// local member; it is not a failure of the operation that produced it.
var ErrSelfRemoved = errors.New("group: self removed")

// ErrKeyPackageNotFound is returned when a Welcome carries no GroupSecrets
// entry addressed to the joiner's KeyPackage.
var ErrKeyPackageNotFound = errors.New("group: key package not found in welcome")
