package extensions

import "github.com/kindlyrobotics/maelstrom/wireformat"

// Lifetime bounds the validity window of a KeyPackage: (not_before:u64,
// not_after:u64), both Unix seconds.
//
// The source this was distilled from has an IsExpired that returns true
// when now lies inside [not_before, not_after] - backwards from what the
// name says. Treated here as a bug: IsValidNow is true inside the interval,
// IsExpired is its negation, spec.md §9.
type Lifetime struct {
	NotBefore uint64
	NotAfter  uint64
}

// IsValidNow reports whether now falls within [NotBefore, NotAfter].
func (l Lifetime) IsValidNow(now uint64) bool {
	return now >= l.NotBefore && now <= l.NotAfter
}

// IsExpired is the negation of IsValidNow.
func (l Lifetime) IsExpired(now uint64) bool {
	return !l.IsValidNow(now)
}

// NewLifetime builds a Lifetime the way an issuer is expected to: one hour
// of clock-skew slack on either side of [now, now+ttlSeconds] (spec.md §6).
func NewLifetime(now, ttlSeconds uint64) Lifetime {
	const hour = 3600
	notBefore := uint64(0)
	if now > hour {
		notBefore = now - hour
	}
	return Lifetime{NotBefore: notBefore, NotAfter: now + ttlSeconds + hour}
}

func (l Lifetime) Encode() []byte {
	w := wireformat.NewWriter()
	w.WriteUint64(l.NotBefore)
	w.WriteUint64(l.NotAfter)
	return w.Bytes()
}

func DecodeLifetime(data []byte) (Lifetime, error) {
	r := wireformat.NewReader(data)
	notBefore, err := r.ReadUint64()
	if err != nil {
		return Lifetime{}, err
	}
	notAfter, err := r.ReadUint64()
	if err != nil {
		return Lifetime{}, err
	}
	if err := r.RequireAtEnd(); err != nil {
		return Lifetime{}, err
	}
	return Lifetime{NotBefore: notBefore, NotAfter: notAfter}, nil
}

func (l Lifetime) ToExtension() Extension {
	return Extension{Type: TypeLifetime, Data: l.Encode()}
}
