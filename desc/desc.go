// Package desc reads and writes MPEG-2 and DVB descriptors and interprets
// descriptor lists, private descriptors included.
package desc

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/broadcastproto/tlv"
)

// HeaderLen is the size of the tag and length bytes.
const HeaderLen = 2

// MaxLength is the largest descriptor payload.
const MaxLength = 255

// Descriptor tags
const (
	TagRegistration          = 0x05
	TagCA                    = 0x09
	TagISO639Language        = 0x0A
	TagMaximumBitrate        = 0x0E
	TagNetworkName           = 0x40
	TagServiceList           = 0x41
	TagStuffing              = 0x42
	TagVBITeletext           = 0x46
	TagBouquetName           = 0x47
	TagService               = 0x48
	TagLinkage               = 0x4A
	TagShortEvent            = 0x4D
	TagStreamIdentifier      = 0x52
	TagTeletext              = 0x56
	TagLocalTimeOffset       = 0x58
	TagSubtitling            = 0x59
	TagPrivateDataSpecifier  = 0x5F
	TagLogicalChannel        = 0x83
	TagHDSimulcastLogicalChn = 0x88

	TagPrivateFirst = 0x80
	TagPrivateLast  = 0xFE
)

// IsPrivate tells whether tag is in the user private range, whose meaning
// depends on the private data specifier in effect.
func IsPrivate(tag uint8) bool {
	return tag >= TagPrivateFirst && tag <= TagPrivateLast
}

// Descriptor is a view of one descriptor, header included.
type Descriptor []byte

func (d Descriptor) Tag() uint8 {
	if len(d) < 1 {
		return 0
	}
	return d[0]
}

// Length is the declared payload length.
func (d Descriptor) Length() int {
	if len(d) < HeaderLen {
		return 0
	}
	return int(d[1])
}

// Payload returns the bytes following the header, nil if the view is shorter
// than declared.
func (d Descriptor) Payload() []byte {
	end := HeaderLen + d.Length()
	if len(d) < end {
		return nil
	}
	return d[HeaderLen:end:end]
}

// Size is the size of the descriptor, header included.
func (d Descriptor) Size() int {
	return HeaderLen + d.Length()
}

// Init writes the header of a descriptor with a payload of length bytes at
// the start of buf.
func Init(buf []byte, tag uint8, length int) (Descriptor, error) {
	e := errors.Template("desc.Init", errors.K.Invalid, "tag", tag)
	if length < 0 || length > MaxLength {
		return nil, e(bitstream.ErrInvalidValue, "length", length)
	}
	if len(buf) < HeaderLen+length {
		return nil, e(bitstream.ErrTooShort, "need", HeaderLen+length, "len", len(buf))
	}
	buf[0] = tag
	buf[1] = byte(length)
	return Descriptor(buf[:HeaderLen+length]), nil
}

// New allocates a descriptor holding payload.
func New(tag uint8, payload []byte) (Descriptor, error) {
	d, err := Init(make([]byte, HeaderLen+len(payload)), tag, len(payload))
	if err != nil {
		return nil, err
	}
	copy(d[HeaderLen:], payload)
	return d, nil
}

// Validate checks the descriptor header at the start of buf and returns a
// view trimmed to the descriptor.
func Validate(buf []byte) (Descriptor, error) {
	e := errors.Template("desc.Validate", errors.K.Invalid)
	if len(buf) < HeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	d := Descriptor(buf)
	if d.Size() > len(buf) {
		return nil, e(bitstream.ErrLengthMismatch, "tag", d.Tag(), "length", d.Length(), "len", len(buf))
	}
	return d[:d.Size()], nil
}

// expect validates buf as a descriptor with the given tag whose payload
// passes check.
func expect(op string, buf []byte, tag uint8, check func(p []byte) error) (Descriptor, error) {
	d, err := Validate(buf)
	if err != nil {
		return nil, errors.E(op, errors.K.Invalid, err)
	}
	if d.Tag() != tag {
		return nil, errors.E(op, errors.K.Invalid, bitstream.ErrTableIDMismatch,
			"reason", "unexpected descriptor tag", "tag", d.Tag(), "expected", tag)
	}
	if check != nil {
		if err = check(d.Payload()); err != nil {
			return nil, errors.E(op, errors.K.Invalid, err, "tag", tag)
		}
	}
	return d, nil
}

// minLen returns a check requiring at least n payload bytes.
func minLen(n int) func([]byte) error {
	return func(p []byte) error {
		if len(p) < n {
			return errors.E("desc.minLen", errors.K.Invalid, bitstream.ErrTooShort, "need", n, "len", len(p))
		}
		return nil
	}
}

// exactLen returns a check requiring exactly n payload bytes.
func exactLen(n int) func([]byte) error {
	return func(p []byte) error {
		if len(p) != n {
			return errors.E("desc.exactLen", errors.K.Invalid, bitstream.ErrLengthMismatch, "want", n, "len", len(p))
		}
		return nil
	}
}

// entries returns a check requiring a whole number of n-byte entries.
func entries(n int) func([]byte) error {
	return func(p []byte) error {
		if len(p)%n != 0 {
			return errors.E("desc.entries", errors.K.Invalid, bitstream.ErrLengthMismatch,
				"entry_size", n, "len", len(p))
		}
		return nil
	}
}

// List returns the descriptors of a descriptor list.
func List(list []byte) ([]Descriptor, error) {
	var ds []Descriptor
	it := tlv.Walk(list, len(list))
	for it.Next() {
		rec := it.Record()
		ds = append(ds, Descriptor(list[rec.Offset:rec.Offset+rec.Size(tlv.Descriptor)]))
	}
	if err := it.Err(); err != nil {
		return ds, errors.E("desc.List", errors.K.Invalid, err)
	}
	return ds, nil
}

// AppendList concatenates descriptors into a list.
func AppendList(dst []byte, ds ...Descriptor) []byte {
	for _, d := range ds {
		dst = append(dst, d...)
	}
	return dst
}
