package tlv

import (
	"encoding/binary"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// TLV (Tag Length Value) lists: descriptor loops of PSI/SI sections, splice
// descriptor loops of SCTE-35 and the PDU framing of MPEGTS over transports.

// Layout is the size in bytes of the tag and length fields of a record header.
// Lengths are big-endian and count only the value bytes.
type Layout struct {
	TagSize    int
	LengthSize int
}

// Descriptor is the layout of MPEG-2/DVB descriptors: 8-bit tag, 8-bit length.
var Descriptor = Layout{TagSize: 1, LengthSize: 1}

// Transport is the layout of the PDU framing: 8-bit type, 16-bit length.
var Transport = Layout{TagSize: 1, LengthSize: 2}

const U16MAX = 0xFFFF

// HeaderLen is the size of a record header.
func (l Layout) HeaderLen() int {
	return l.TagSize + l.LengthSize
}

// MaxLength is the largest value length a header can declare.
func (l Layout) MaxLength() int {
	return 1<<(8*l.LengthSize) - 1
}

func (l Layout) valid() bool {
	return l.TagSize >= 1 && l.TagSize <= 4 && l.LengthSize >= 1 && l.LengthSize <= 2
}

func (l Layout) tag(b []byte) uint32 {
	var t uint32
	for _, c := range b[:l.TagSize] {
		t = t<<8 | uint32(c)
	}
	return t
}

func (l Layout) length(b []byte) int {
	if l.LengthSize == 1 {
		return int(b[0])
	}
	return int(binary.BigEndian.Uint16(b))
}

// Header returns the encoded header of a record with the given tag and value
// length.
func (l Layout) Header(tag uint32, length int) ([]byte, error) {
	e := errors.Template("tlv.Header", errors.K.Invalid)
	if !l.valid() {
		return nil, e(bitstream.ErrInvalidValue, "reason", "bad layout", "layout", l)
	}
	if length > l.MaxLength() || length < 0 {
		return nil, e(bitstream.ErrInvalidValue, "reason", "bad length", "length", length)
	}
	if l.TagSize < 4 && tag >= 1<<(8*l.TagSize) {
		return nil, e(bitstream.ErrInvalidValue, "reason", "bad tag", "tag", tag)
	}
	header := make([]byte, l.HeaderLen())
	for i := l.TagSize - 1; i >= 0; i-- {
		header[i] = byte(tag)
		tag >>= 8
	}
	if l.LengthSize == 1 {
		header[l.TagSize] = byte(length)
	} else {
		binary.BigEndian.PutUint16(header[l.TagSize:], uint16(length))
	}
	return header, nil
}

// Append appends a record to dst and returns the extended slice.
func (l Layout) Append(dst []byte, tag uint32, value []byte) ([]byte, error) {
	header, err := l.Header(tag, len(value))
	if err != nil {
		return dst, err
	}
	dst = append(dst, header...)
	return append(dst, value...), nil
}

// Record is one tag/length/value record. Value is a view into the walked
// buffer, never a copy.
type Record struct {
	Tag    uint32
	Offset int // offset of the record header within the list
	Value  []byte
}

// Len is the declared value length.
func (r Record) Len() int {
	return len(r.Value)
}

// Size is the number of list bytes the record occupies for layout l.
func (r Record) Size(l Layout) int {
	return l.HeaderLen() + len(r.Value)
}
