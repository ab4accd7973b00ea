// Package id3 reads and writes ID3v2.3 and ID3v2.4 tags, as carried in
// timed metadata streams and CMAF emsg boxes.
package id3

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

// HeaderLen is the size of the tag header, and of the v2.4 footer.
const HeaderLen = 10

// MaxSize is the largest value of a 28-bit syncsafe integer.
const MaxSize = 1<<28 - 1

var (
	magic       = []byte("ID3")
	footerMagic = []byte("3DI")
)

var (
	fieldVersion  = bitfield.NewUint[uint8](3, 0, 8)
	fieldRevision = bitfield.NewUint[uint8](4, 0, 8)
	fieldUnsync   = bitfield.NewFlag(5, 0)
	fieldExtended = bitfield.NewFlag(5, 1)
	fieldExperim  = bitfield.NewFlag(5, 2)
	fieldFooter   = bitfield.NewFlag(5, 3)
	fieldSize     = bitfield.NewSpan(6, 4)
)

// DecodeSyncsafe decodes a 4-byte syncsafe integer, whose bytes carry 7 bits
// each.
func DecodeSyncsafe(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, errors.E("id3.DecodeSyncsafe", errors.K.Invalid, bitstream.ErrTooShort, "len", len(b))
	}
	var v uint32
	for _, c := range b[:4] {
		if c&0x80 != 0 {
			return 0, errors.E("id3.DecodeSyncsafe", errors.K.Invalid, bitstream.ErrInvalidValue,
				"reason", "msb set in syncsafe byte", "byte", c)
		}
		v = v<<7 | uint32(c)
	}
	return v, nil
}

// EncodeSyncsafe writes v as a 4-byte syncsafe integer.
func EncodeSyncsafe(dst []byte, v uint32) error {
	e := errors.Template("id3.EncodeSyncsafe", errors.K.Invalid)
	if len(dst) < 4 {
		return e(bitstream.ErrTooShort, "len", len(dst))
	}
	if v > MaxSize {
		return e(bitstream.ErrInvalidValue, "value", v)
	}
	for i := 3; i >= 0; i-- {
		dst[i] = byte(v & 0x7F)
		v >>= 7
	}
	return nil
}

// Tag is a view of an ID3v2 tag, header included.
type Tag []byte

func (t Tag) Version() uint8          { return fieldVersion.Value(t) }
func (t Tag) Revision() uint8         { return fieldRevision.Value(t) }
func (t Tag) Unsynchronised() bool    { return fieldUnsync.Value(t) }
func (t Tag) HasExtendedHeader() bool { return fieldExtended.Value(t) }
func (t Tag) Experimental() bool      { return fieldExperim.Value(t) }

// HasFooter is only meaningful for v2.4 tags.
func (t Tag) HasFooter() bool { return t.Version() >= 4 && fieldFooter.Value(t) }

// Size is the declared size of the tag after the header, footer excluded.
func (t Tag) Size() int {
	b, err := fieldSize.Get(t)
	if err != nil {
		return 0
	}
	v, _ := DecodeSyncsafe(b)
	return int(v)
}

// TotalSize is the size of the whole tag, header and footer included.
func (t Tag) TotalSize() int {
	n := HeaderLen + t.Size()
	if t.HasFooter() {
		n += HeaderLen
	}
	return n
}

// extendedLen returns the size of the extended header, or 0.
func (t Tag) extendedLen() (int, error) {
	if !t.HasExtendedHeader() {
		return 0, nil
	}
	e := errors.Template("id3.ExtendedHeader", errors.K.Invalid)
	if len(t) < HeaderLen+4 {
		return 0, e(bitstream.ErrTooShort, "len", len(t))
	}
	b := t[HeaderLen:]
	var n int
	if t.Version() == 3 {
		// v2.3 excludes the size field itself
		n = int(uint32(b[0])<<24|uint32(b[1])<<16|uint32(b[2])<<8|uint32(b[3])) + 4
	} else {
		v, err := DecodeSyncsafe(b)
		if err != nil {
			return 0, e(err)
		}
		n = int(v)
	}
	if n < 6 || n > t.Size() {
		return 0, e(bitstream.ErrLengthMismatch, "extended_len", n, "size", t.Size())
	}
	return n, nil
}

// FrameArea returns the frame area: the bytes following the header and the
// extended header, padding included.
func (t Tag) FrameArea() []byte {
	n, err := t.extendedLen()
	if err != nil || len(t) < HeaderLen+t.Size() {
		return nil
	}
	return t[HeaderLen+n : HeaderLen+t.Size()]
}

// Init writes a tag header for a tag of size bytes after the header at the
// start of buf.
func Init(buf []byte, version uint8, size int) (Tag, error) {
	e := errors.Template("id3.Init", errors.K.Invalid, "version", version)
	if version != 3 && version != 4 {
		return nil, e(bitstream.ErrInvalidValue, "reason", "unsupported version")
	}
	if size < 0 || size > MaxSize {
		return nil, e(bitstream.ErrInvalidValue, "size", size)
	}
	if len(buf) < HeaderLen+size {
		return nil, e(bitstream.ErrTooShort, "need", HeaderLen+size, "len", len(buf))
	}
	copy(buf, magic)
	buf[3], buf[4], buf[5] = version, 0, 0
	_ = EncodeSyncsafe(buf[6:], uint32(size))
	return Tag(buf[:HeaderLen+size]), nil
}

// Validate checks the tag at the start of buf and the frames it holds, and
// returns a view trimmed to the tag.
func Validate(buf []byte) (Tag, error) {
	e := errors.Template("id3.Validate", errors.K.Invalid)
	if len(buf) < HeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	if string(buf[:3]) != string(magic) {
		return nil, e(bitstream.ErrInvalidValue, "reason", "missing ID3 identifier")
	}
	t := Tag(buf)
	if v := t.Version(); v != 3 && v != 4 {
		return nil, e(bitstream.ErrInvalidValue, "reason", "unsupported version", "version", v)
	}
	if t.Revision() == 0xFF {
		return nil, e(bitstream.ErrInvalidValue, "revision", t.Revision())
	}
	if _, err := DecodeSyncsafe(buf[6:]); err != nil {
		return nil, e(err)
	}
	if t.TotalSize() > len(buf) {
		return nil, e(bitstream.ErrLengthMismatch, "size", t.TotalSize(), "len", len(buf))
	}
	t = t[:t.TotalSize()]
	if t.HasFooter() {
		f := t[HeaderLen+t.Size():]
		if string(f[:3]) != string(footerMagic) || string(f[3:]) != string(t[3:HeaderLen]) {
			return nil, e(bitstream.ErrInvalidValue, "reason", "footer does not match header")
		}
	}
	if _, err := t.extendedLen(); err != nil {
		return nil, e(err)
	}
	it := t.Walk()
	for it.Next() {
	}
	if err := it.Err(); err != nil {
		return nil, e(err)
	}
	return t, nil
}
