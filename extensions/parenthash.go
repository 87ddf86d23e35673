package extensions

import "github.com/kindlyrobotics/maelstrom/wireformat"

// ParentHash carries the parent-hash chain binding a committer's leaf to
// its ancestor (§6: vec<u8,u8>).
type ParentHash struct {
	Hash []byte
}

func (p ParentHash) Encode() ([]byte, error) {
	w := wireformat.NewWriter()
	if err := w.WriteVarBytesU8(p.Hash); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeParentHash(data []byte) (ParentHash, error) {
	r := wireformat.NewReader(data)
	h, err := r.ReadVarBytesU8()
	if err != nil {
		return ParentHash{}, err
	}
	if err := r.RequireAtEnd(); err != nil {
		return ParentHash{}, err
	}
	return ParentHash{Hash: append([]byte{}, h...)}, nil
}

func (p ParentHash) ToExtension() (Extension, error) {
	data, err := p.Encode()
	if err != nil {
		return Extension{}, err
	}
	return Extension{Type: TypeParentHash, Data: data}, nil
}

// KeyID is an opaque application-assigned identifier (§6: vec<u8,u8>,
// reusing the same shape as ParentHash).
type KeyID struct {
	ID []byte
}

func (k KeyID) Encode() ([]byte, error) {
	w := wireformat.NewWriter()
	if err := w.WriteVarBytesU8(k.ID); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeKeyID(data []byte) (KeyID, error) {
	r := wireformat.NewReader(data)
	id, err := r.ReadVarBytesU8()
	if err != nil {
		return KeyID{}, err
	}
	if err := r.RequireAtEnd(); err != nil {
		return KeyID{}, err
	}
	return KeyID{ID: append([]byte{}, id...)}, nil
}

func (k KeyID) ToExtension() (Extension, error) {
	data, err := k.Encode()
	if err != nil {
		return Extension{}, err
	}
	return Extension{Type: TypeKeyID, Data: data}, nil
}
