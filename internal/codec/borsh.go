// Package codec implements the Borsh-style binary layout used for every
// persisted value and every signed byte string: little-endian integers,
// fixed arrays written raw, and u32 length-prefixed byte vectors.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a decode runs past the end of the input.
var ErrShortBuffer = errors.New("short buffer")

// Encoder appends Borsh-encoded fields to a buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder with the given capacity hint.
func NewEncoder(capacity int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// U8 appends one byte.
func (e *Encoder) U8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

// U16 appends a little-endian uint16.
func (e *Encoder) U16(v uint16) *Encoder {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
	return e
}

// U32 appends a little-endian uint32.
func (e *Encoder) U32(v uint32) *Encoder {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
	return e
}

// U64 appends a little-endian uint64.
func (e *Encoder) U64(v uint64) *Encoder {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
	return e
}

// Fixed appends a fixed-size array without a length prefix.
func (e *Encoder) Fixed(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// Bytes appends a u32 length prefix followed by b (Vec<u8>).
func (e *Encoder) Bytes(b []byte) *Encoder {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	return e
}

// Finish returns the encoded bytes.
func (e *Encoder) Finish() []byte {
	return e.buf
}

// Decoder reads Borsh-encoded fields. The first failure is sticky:
// later reads return zero values and Err reports the original error.
type Decoder struct {
	data []byte
	off  int
	err  error
}

// NewDecoder creates a decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// take returns the next n bytes or records ErrShortBuffer.
func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}

	if n < 0 || len(d.data)-d.off < n {
		d.err = fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, d.off, len(d.data)-d.off, ErrShortBuffer)
		return nil
	}

	b := d.data[d.off : d.off+n]
	d.off += n

	return b
}

// U8 reads one byte.
func (d *Decoder) U8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a little-endian uint16.
func (d *Decoder) U16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U32 reads a little-endian uint32.
func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a little-endian uint64.
func (d *Decoder) U64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Fixed copies len(dst) raw bytes into dst.
func (d *Decoder) Fixed(dst []byte) {
	if b := d.take(len(dst)); b != nil {
		copy(dst, b)
	}
}

// Bytes reads a u32 length-prefixed vector into a fresh slice.
func (d *Decoder) Bytes() []byte {
	n := d.U32()
	b := d.take(int(n))
	if b == nil {
		return nil
	}

	out := make([]byte, len(b))
	copy(out, b)

	return out
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Err returns the first decode error.
func (d *Decoder) Err() error {
	return d.err
}

// Finish returns the first decode error, or an error if input is left over.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}

	if rest := d.Remaining(); rest != 0 {
		return fmt.Errorf("%d trailing bytes", rest)
	}

	return nil
}
