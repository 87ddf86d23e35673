package keypackage

import (
	"github.com/google/uuid"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// ID is a 16-byte UUID v4-random identifying a KeyPackage on the wire
// (§6: vec<u8,u8>). Generated with google/uuid, the library the teacher
// uses for every primary key it mints.
type ID [16]byte

// NewID mints a fresh random KeyPackageID.
func NewID() ID {
	return ID(uuid.New())
}

func (id ID) Encode(w *wireformat.Writer) error {
	return w.WriteVarBytesU8(id[:])
}

func DecodeID(r *wireformat.Reader) (ID, error) {
	raw, err := r.ReadVarBytesU8()
	if err != nil {
		return ID{}, err
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}
