// Package wireformat implements the canonical length-prefixed wire encoding
// that spec.md §6 requires byte-exact compatibility for: fixed-endian
// (big-endian) primitives, length-prefixed vectors, and u8-tagged optionals.
package wireformat

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates a canonical MLS-style encoding.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteUint8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) WriteUint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *Writer) WriteUint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *Writer) WriteUint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

// WriteUint24 writes the low 24 bits of v, big-endian, as §6's u24 requires.
func (w *Writer) WriteUint24(v uint32) {
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
}

// WriteRaw appends bytes with no length prefix (e.g. a fixed-size field).
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// WriteVarBytesU8/U16/U24/U32 write a length-prefixed byte vector, the
// prefix width given by the suffix, per §6's "vec<u8,width>" convention.
func (w *Writer) WriteVarBytesU8(b []byte) error {
	if len(b) > 0xFF {
		return fmt.Errorf("wireformat: vector too long for u8 prefix: %d bytes", len(b))
	}
	w.WriteUint8(uint8(len(b)))
	w.WriteRaw(b)
	return nil
}

func (w *Writer) WriteVarBytesU16(b []byte) error {
	if len(b) > 0xFFFF {
		return fmt.Errorf("wireformat: vector too long for u16 prefix: %d bytes", len(b))
	}
	w.WriteUint16(uint16(len(b)))
	w.WriteRaw(b)
	return nil
}

func (w *Writer) WriteVarBytesU24(b []byte) error {
	if len(b) > 0xFFFFFF {
		return fmt.Errorf("wireformat: vector too long for u24 prefix: %d bytes", len(b))
	}
	w.WriteUint24(uint32(len(b)))
	w.WriteRaw(b)
	return nil
}

func (w *Writer) WriteVarBytesU32(b []byte) error {
	w.WriteUint32(uint32(len(b)))
	w.WriteRaw(b)
	return nil
}

// WriteOptional writes the u8 presence tag required by §6, then invokes
// write if present is true.
func (w *Writer) WriteOptional(present bool, write func(*Writer)) {
	if present {
		w.WriteUint8(1)
		write(w)
	} else {
		w.WriteUint8(0)
	}
}

// Reader consumes a canonical MLS-style encoding.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential decoding.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("wireformat: %w: need %d bytes, have %d", ErrMalformed, n, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint24() (uint32, error) {
	if err := r.need(3); err != nil {
		return 0, err
	}
	v := uint32(r.buf[r.pos])<<16 | uint32(r.buf[r.pos+1])<<8 | uint32(r.buf[r.pos+2])
	r.pos += 3
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *Reader) ReadVarBytesU8() ([]byte, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	return r.ReadRaw(int(n))
}

func (r *Reader) ReadVarBytesU16() ([]byte, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	return r.ReadRaw(int(n))
}

func (r *Reader) ReadVarBytesU24() ([]byte, error) {
	n, err := r.ReadUint24()
	if err != nil {
		return nil, err
	}
	return r.ReadRaw(int(n))
}

func (r *Reader) ReadVarBytesU32() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return r.ReadRaw(int(n))
}

// ReadOptional reads the u8 presence tag and invokes read only if present.
func (r *Reader) ReadOptional(read func(*Reader) error) (present bool, err error) {
	tag, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		if err := read(r); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("wireformat: %w: invalid optional tag %d", ErrMalformed, tag)
	}
}

// AtEnd reports whether every byte has been consumed, for round-trip tests
// that want to assert no trailing garbage survived decode.
func (r *Reader) AtEnd() bool { return r.Remaining() == 0 }

// RequireAtEnd returns ErrTrailingBytes if any bytes remain unconsumed.
// Every top-level Decode* entry point calls this before returning success,
// so a message with extra bytes appended after an otherwise-valid encoding
// is rejected rather than silently accepted (spec.md §7).
func (r *Reader) RequireAtEnd() error {
	if !r.AtEnd() {
		return fmt.Errorf("wireformat: %w: %d unconsumed bytes", ErrTrailingBytes, r.Remaining())
	}
	return nil
}
