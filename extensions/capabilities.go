package extensions

import "github.com/kindlyrobotics/maelstrom/wireformat"

// Capabilities advertises the protocol versions, ciphersuites, and
// extension types a member supports (§6: three vec<_,u8> vectors).
type Capabilities struct {
	Versions    []uint8
	Ciphersuites []uint16
	Extensions  []uint16
}

func (c Capabilities) Encode() ([]byte, error) {
	w := wireformat.NewWriter()
	if err := w.WriteVarBytesU8(c.Versions); err != nil {
		return nil, err
	}
	suitesBuf := wireformat.NewWriter()
	for _, s := range c.Ciphersuites {
		suitesBuf.WriteUint16(s)
	}
	if err := w.WriteVarBytesU8(suitesBuf.Bytes()); err != nil {
		return nil, err
	}
	extBuf := wireformat.NewWriter()
	for _, e := range c.Extensions {
		extBuf.WriteUint16(e)
	}
	if err := w.WriteVarBytesU8(extBuf.Bytes()); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeCapabilities(data []byte) (Capabilities, error) {
	r := wireformat.NewReader(data)
	versions, err := r.ReadVarBytesU8()
	if err != nil {
		return Capabilities{}, err
	}
	suitesRaw, err := r.ReadVarBytesU8()
	if err != nil {
		return Capabilities{}, err
	}
	extRaw, err := r.ReadVarBytesU8()
	if err != nil {
		return Capabilities{}, err
	}
	suites, err := decodeUint16Vector(suitesRaw)
	if err != nil {
		return Capabilities{}, err
	}
	exts, err := decodeUint16Vector(extRaw)
	if err != nil {
		return Capabilities{}, err
	}
	if err := r.RequireAtEnd(); err != nil {
		return Capabilities{}, err
	}
	return Capabilities{
		Versions:     append([]uint8{}, versions...),
		Ciphersuites: suites,
		Extensions:   exts,
	}, nil
}

func decodeUint16Vector(raw []byte) ([]uint16, error) {
	r := wireformat.NewReader(raw)
	var out []uint16
	for !r.AtEnd() {
		v, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ToExtension wraps the encoded Capabilities in the generic Extension
// envelope.
func (c Capabilities) ToExtension() (Extension, error) {
	data, err := c.Encode()
	if err != nil {
		return Extension{}, err
	}
	return Extension{Type: TypeCapabilities, Data: data}, nil
}
