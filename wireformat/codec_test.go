package wireformat

import (
	"bytes"
	"errors"
	"testing"
)

func TestUintRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(0xAB)
	w.WriteUint16(0x1234)
	w.WriteUint24(0x010203)
	w.WriteUint32(0xDEADBEEF)
	w.WriteUint64(0x0102030405060708)

	r := NewReader(w.Bytes())
	if v, err := r.ReadUint8(); err != nil || v != 0xAB {
		t.Fatalf("ReadUint8 = %v, %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadUint16 = %v, %v", v, err)
	}
	if v, err := r.ReadUint24(); err != nil || v != 0x010203 {
		t.Fatalf("ReadUint24 = %v, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadUint32 = %v, %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadUint64 = %v, %v", v, err)
	}
	if !r.AtEnd() {
		t.Fatalf("expected reader exhausted, %d bytes remain", r.Remaining())
	}
}

func TestVarBytesRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 300)

	w := NewWriter()
	if err := w.WriteVarBytesU8([]byte("hi")); err != nil {
		t.Fatalf("WriteVarBytesU8: %v", err)
	}
	if err := w.WriteVarBytesU16(payload); err != nil {
		t.Fatalf("WriteVarBytesU16: %v", err)
	}
	if err := w.WriteVarBytesU24(payload); err != nil {
		t.Fatalf("WriteVarBytesU24: %v", err)
	}
	if err := w.WriteVarBytesU32(nil); err != nil {
		t.Fatalf("WriteVarBytesU32: %v", err)
	}

	r := NewReader(w.Bytes())
	got, err := r.ReadVarBytesU8()
	if err != nil || string(got) != "hi" {
		t.Fatalf("ReadVarBytesU8 = %q, %v", got, err)
	}
	got, err = r.ReadVarBytesU16()
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("ReadVarBytesU16 mismatch, err=%v", err)
	}
	got, err = r.ReadVarBytesU24()
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("ReadVarBytesU24 mismatch, err=%v", err)
	}
	got, err = r.ReadVarBytesU32()
	if err != nil || len(got) != 0 {
		t.Fatalf("ReadVarBytesU32 expected empty, got %v, err=%v", got, err)
	}
	if !r.AtEnd() {
		t.Fatalf("expected reader exhausted, %d bytes remain", r.Remaining())
	}
}

func TestWriteVarBytesU8TooLong(t *testing.T) {
	w := NewWriter()
	if err := w.WriteVarBytesU8(make([]byte, 256)); err == nil {
		t.Fatalf("expected error for 256-byte vector with u8 length prefix")
	}
}

func TestOptionalRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteOptional(true, func(w *Writer) { w.WriteUint32(7) })
	w.WriteOptional(false, func(w *Writer) { w.WriteUint32(999) })

	r := NewReader(w.Bytes())
	var got uint32
	present, err := r.ReadOptional(func(r *Reader) error {
		v, err := r.ReadUint32()
		got = v
		return err
	})
	if err != nil || !present || got != 7 {
		t.Fatalf("first optional: present=%v got=%v err=%v", present, got, err)
	}
	present, err = r.ReadOptional(func(r *Reader) error {
		v, err := r.ReadUint32()
		got = v
		return err
	})
	if err != nil || present {
		t.Fatalf("second optional: expected absent, present=%v err=%v", present, err)
	}
	if !r.AtEnd() {
		t.Fatalf("expected reader exhausted, %d bytes remain", r.Remaining())
	}
}

func TestReadOptionalInvalidTag(t *testing.T) {
	r := NewReader([]byte{0x02})
	_, err := r.ReadOptional(func(r *Reader) error { return nil })
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestReadTruncatedInputIsMalformed(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01})
	if _, err := r.ReadUint32(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncated uint32, got %v", err)
	}
}

func TestReadVarBytesTruncatedLength(t *testing.T) {
	// length prefix claims 10 bytes follow, but none do.
	r := NewReader([]byte{0x00, 0x0A})
	if _, err := r.ReadVarBytesU16(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncated vector, got %v", err)
	}
}
