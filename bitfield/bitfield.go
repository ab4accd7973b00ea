// Package bitfield reads and writes unsigned bit fields of big-endian wire
// structures. Bit 0 is the most significant bit of the first byte, as in every
// MPEG, DVB, SMPTE and IETF layout.
//
// A Field is declared once per structure member and reused:
//
//	var sectionLength = bitfield.New(1, 4, 12)
//	n, err := sectionLength.Get(buf)
//
// Get and Set are bounds checked and return an error wrapping
// bitstream.ErrTooShort instead of indexing past the buffer. Value and Put are
// the unchecked variants used by view types whose size has already been
// validated: Value returns zero and Put does nothing when the buffer is short.
package bitfield

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// Field is a run of Width bits starting at bit Bit of byte Byte.
type Field struct {
	Byte  int
	Bit   uint
	Width uint
}

// New returns the field of width bits starting at bit bitOff of byte byteOff.
// Bit offsets of 8 or more are folded into the byte offset.
func New(byteOff int, bitOff, width uint) Field {
	return Field{
		Byte:  byteOff + int(bitOff/8),
		Bit:   bitOff % 8,
		Width: width,
	}
}

// Size is the number of bytes the field touches.
func (f Field) Size() int {
	return int((f.Bit + f.Width + 7) / 8)
}

// End is the offset of the first byte after the field.
func (f Field) End() int {
	return f.Byte + f.Size()
}

// Max is the largest value the field holds.
func (f Field) Max() uint64 {
	if f.Width >= 64 {
		return ^uint64(0)
	}
	return 1<<f.Width - 1
}

func (f Field) check(op string, buf []byte) error {
	if f.Width == 0 || f.Width > 64 || f.Bit > 7 || f.Byte < 0 {
		return errors.E(op, errors.K.Invalid, bitstream.ErrInvalidValue,
			"byte", f.Byte, "bit", f.Bit, "width", f.Width)
	}
	if f.End() > len(buf) {
		return errors.E(op, errors.K.Invalid, bitstream.ErrTooShort,
			"need", f.End(), "len", len(buf))
	}
	return nil
}

// Get returns the value of the field in buf.
func (f Field) Get(buf []byte) (uint64, error) {
	if err := f.check("bitfield.Get", buf); err != nil {
		return 0, err
	}
	return f.get(buf), nil
}

// Set writes v to the field in buf. Bits outside the field, including the
// other bits of partially covered bytes, are preserved.
func (f Field) Set(buf []byte, v uint64) error {
	if err := f.check("bitfield.Set", buf); err != nil {
		return err
	}
	if v > f.Max() {
		return errors.E("bitfield.Set", errors.K.Invalid, bitstream.ErrInvalidValue,
			"value", v, "width", f.Width)
	}
	f.set(buf, v)
	return nil
}

// Value is Get without error: it returns zero if buf is too short.
func (f Field) Value(buf []byte) uint64 {
	if f.check("bitfield.Value", buf) != nil {
		return 0
	}
	return f.get(buf)
}

// Put is Set without error: v is truncated to the field width and nothing is
// written if buf is too short.
func (f Field) Put(buf []byte, v uint64) {
	if f.check("bitfield.Put", buf) != nil {
		return
	}
	f.set(buf, v&f.Max())
}

func (f Field) get(buf []byte) uint64 {
	var v uint64
	i := f.Byte
	pos := f.Bit
	remaining := f.Width
	for remaining > 0 {
		avail := 8 - pos
		n := min(avail, remaining)
		shift := avail - n
		bits := (buf[i] >> shift) & (0xFF >> (8 - n))
		v = v<<n | uint64(bits)
		remaining -= n
		pos = 0
		i++
	}
	return v
}

func (f Field) set(buf []byte, v uint64) {
	i := f.Byte
	pos := f.Bit
	remaining := f.Width
	for remaining > 0 {
		avail := 8 - pos
		n := min(avail, remaining)
		shift := avail - n
		low := byte(0xFF >> (8 - n))
		bits := byte(v>>(remaining-n)) & low
		buf[i] = buf[i]&^(low<<shift) | bits<<shift
		remaining -= n
		pos = 0
		i++
	}
}
