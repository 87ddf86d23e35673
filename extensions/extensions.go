// Package extensions implements the KeyPackage and leaf extensions of
// spec.md §6: Capabilities, Lifetime, KeyID, ParentHash, and RatchetTree.
package extensions

import (
	"fmt"

	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// Type is the wire tag for an extension (§6: ExtensionType is u16).
type Type uint16

const (
	TypeCapabilities Type = 1
	TypeLifetime     Type = 2
	TypeKeyID        Type = 3
	TypeParentHash   Type = 4
	TypeRatchetTree  Type = 5
	// TypeInvalid is the explicit fallback for an unrecognized wire tag
	// (spec.md §9: never reinterpret an unknown tag as undefined behavior).
	TypeInvalid Type = 0
)

// TypeFromUint16 maps a wire value to a known Type, or TypeInvalid if the
// value does not correspond to any defined extension.
func TypeFromUint16(v uint16) Type {
	switch Type(v) {
	case TypeCapabilities, TypeLifetime, TypeKeyID, TypeParentHash, TypeRatchetTree:
		return Type(v)
	default:
		return TypeInvalid
	}
}

// Extension is a single (type, opaque body) pair as it appears on the wire:
// (type:u16, data:vec<u8,u16>).
type Extension struct {
	Type Type
	Data []byte
}

func (e Extension) Encode(w *wireformat.Writer) error {
	w.WriteUint16(uint16(e.Type))
	return w.WriteVarBytesU16(e.Data)
}

func DecodeExtension(r *wireformat.Reader) (Extension, error) {
	typ, err := r.ReadUint16()
	if err != nil {
		return Extension{}, err
	}
	data, err := r.ReadVarBytesU16()
	if err != nil {
		return Extension{}, err
	}
	return Extension{Type: TypeFromUint16(typ), Data: append([]byte{}, data...)}, nil
}

// List is a vector of extensions prefixed by a u32 count of extensions. The
// prefix is the number of entries, not the encoded length in bytes.
type List []Extension

func (l List) Encode(w *wireformat.Writer) error {
	inner := wireformat.NewWriter()
	inner.WriteUint32(uint32(len(l)))
	for _, e := range l {
		if err := e.Encode(inner); err != nil {
			return err
		}
	}
	w.WriteRaw(inner.Bytes())
	return nil
}

func DecodeList(r *wireformat.Reader) (List, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make(List, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := DecodeExtension(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Find returns the first extension of type t, if present.
func (l List) Find(t Type) (Extension, bool) {
	for _, e := range l {
		if e.Type == t {
			return e, true
		}
	}
	return Extension{}, false
}

// Has reports whether an extension of type t is present.
func (l List) Has(t Type) bool {
	_, ok := l.Find(t)
	return ok
}

// WithReplaced returns a copy of l with any existing extension of the same
// type as ext replaced by ext, or ext appended if none existed.
func (l List) WithReplaced(ext Extension) List {
	out := make(List, 0, len(l)+1)
	replaced := false
	for _, e := range l {
		if e.Type == ext.Type {
			out = append(out, ext)
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, ext)
	}
	return out
}

// ErrMissingExtension is returned when a KeyPackage lacks a required
// extension (spec.md §3: exactly one Capabilities and one Lifetime).
var ErrMissingExtension = fmt.Errorf("extensions: required extension missing")
