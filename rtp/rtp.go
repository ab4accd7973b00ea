// Package rtp reads and writes RTP (RFC 3550) data packet headers and RTCP
// control packets in place.
package rtp

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

const (
	// HeaderLen is the size of the fixed RTP header.
	HeaderLen = 12
	Version   = 2
	// ExtensionHeaderLen is the size of the profile/length word preceding
	// header extension data.
	ExtensionHeaderLen = 4
)

// Static payload types commonly found in broadcast contribution.
const (
	PayloadTypeMP2T = 33 // MPEG-2 transport stream, RFC 2250
	PayloadTypeMPV  = 32
	PayloadTypeMPA  = 14
)

var (
	fieldVersion     = bitfield.NewUint[uint8](0, 0, 2)
	fieldPadding     = bitfield.NewFlag(0, 2)
	fieldExtension   = bitfield.NewFlag(0, 3)
	fieldCSRCCount   = bitfield.NewUint[uint8](0, 4, 4)
	fieldMarker      = bitfield.NewFlag(1, 0)
	fieldPayloadType = bitfield.NewUint[uint8](1, 1, 7)
	fieldSequence    = bitfield.NewUint[uint16](2, 0, 16)
	fieldTimestamp   = bitfield.NewUint[uint32](4, 0, 32)
	fieldSSRC        = bitfield.NewUint[uint32](8, 0, 32)
)

// Packet is a view of an RTP packet. Accessors of the fixed header assume at
// least HeaderLen bytes, which Validate and Init guarantee.
type Packet []byte

// Init writes a version 2 fixed header with all other fields cleared at the
// start of buf and returns the packet view.
func Init(buf []byte) (Packet, error) {
	if len(buf) < HeaderLen {
		return nil, errors.E("rtp.Init", errors.K.Invalid, bitstream.ErrTooShort, "len", len(buf))
	}
	clear(buf[:HeaderLen])
	p := Packet(buf)
	p.SetVersion(Version)
	return p, nil
}

// Validate checks the fixed header, the CSRC list, the header extension and
// the padding count of buf.
func Validate(buf []byte) (Packet, error) {
	e := errors.Template("rtp.Validate", errors.K.Invalid)
	if len(buf) < HeaderLen {
		return nil, e(bitstream.ErrTooShort, "reason", "RTP packet too short", "len", len(buf))
	}
	p := Packet(buf)
	if p.Version() != Version {
		return nil, e(bitstream.ErrInvalidValue, "reason", "unsupported RTP version", "version", p.Version())
	}
	csrcEnd := HeaderLen + 4*int(p.CSRCCount())
	if len(buf) < csrcEnd {
		return nil, e(bitstream.ErrTooShort, "reason", "RTP packet too short for CSRCs",
			"expected", csrcEnd, "len", len(buf))
	}
	if p.Extension() {
		if len(buf) < csrcEnd+ExtensionHeaderLen {
			return nil, e(bitstream.ErrTooShort, "reason", "RTP packet too short for extension header",
				"expected", csrcEnd+ExtensionHeaderLen, "len", len(buf))
		}
		if len(buf) < p.HeaderLen() {
			return nil, e(bitstream.ErrLengthMismatch, "reason", "RTP packet too short for extension",
				"expected", p.HeaderLen(), "len", len(buf))
		}
	}
	if p.Padding() {
		pad := int(buf[len(buf)-1])
		if pad == 0 || p.HeaderLen()+pad > len(buf) {
			return nil, e(bitstream.ErrLengthMismatch, "reason", "bad padding count", "padding", pad, "len", len(buf))
		}
	}
	return p, nil
}

func (p Packet) Version() uint8         { return fieldVersion.Value(p) }
func (p Packet) SetVersion(v uint8)     { fieldVersion.Put(p, v) }
func (p Packet) Padding() bool          { return fieldPadding.Value(p) }
func (p Packet) SetPadding(on bool)     { fieldPadding.Put(p, on) }
func (p Packet) Extension() bool        { return fieldExtension.Value(p) }
func (p Packet) SetExtension(on bool)   { fieldExtension.Put(p, on) }
func (p Packet) CSRCCount() uint8       { return fieldCSRCCount.Value(p) }
func (p Packet) SetCSRCCount(n uint8)   { fieldCSRCCount.Put(p, n) }
func (p Packet) Marker() bool           { return fieldMarker.Value(p) }
func (p Packet) SetMarker(on bool)      { fieldMarker.Put(p, on) }
func (p Packet) PayloadType() uint8     { return fieldPayloadType.Value(p) }
func (p Packet) SetPayloadType(t uint8) { fieldPayloadType.Put(p, t) }
func (p Packet) Sequence() uint16       { return fieldSequence.Value(p) }
func (p Packet) SetSequence(s uint16)   { fieldSequence.Put(p, s) }
func (p Packet) Timestamp() uint32      { return fieldTimestamp.Value(p) }
func (p Packet) SetTimestamp(t uint32)  { fieldTimestamp.Put(p, t) }
func (p Packet) SSRC() uint32           { return fieldSSRC.Value(p) }
func (p Packet) SetSSRC(s uint32)       { fieldSSRC.Put(p, s) }

func csrcField(i int) bitfield.Uint[uint32] {
	return bitfield.NewUint[uint32](HeaderLen+4*i, 0, 32)
}

// CSRC returns the i-th contributing source, or zero if i is out of range.
func (p Packet) CSRC(i int) uint32 {
	if i < 0 || i >= int(p.CSRCCount()) {
		return 0
	}
	return csrcField(i).Value(p)
}

// SetCSRC writes the i-th contributing source. The CSRC count must already
// cover i.
func (p Packet) SetCSRC(i int, csrc uint32) error {
	if i < 0 || i >= int(p.CSRCCount()) {
		return errors.E("rtp.SetCSRC", errors.K.Invalid, bitstream.ErrInvalidValue, "index", i, "count", p.CSRCCount())
	}
	return csrcField(i).Set(p, csrc)
}

func (p Packet) extOffset() int {
	return HeaderLen + 4*int(p.CSRCCount())
}

// ExtensionProfile returns the profile-defined 16 bits of the header
// extension.
func (p Packet) ExtensionProfile() uint16 {
	if !p.Extension() {
		return 0
	}
	return bitfield.NewUint[uint16](p.extOffset(), 0, 16).Value(p)
}

// ExtensionWords returns the header extension length in 32-bit words, not
// counting the extension header.
func (p Packet) ExtensionWords() uint16 {
	if !p.Extension() {
		return 0
	}
	return bitfield.NewUint[uint16](p.extOffset()+2, 0, 16).Value(p)
}

// SetExtensionHeader sets the extension bit and writes the extension header.
func (p Packet) SetExtensionHeader(profile, words uint16) error {
	off := p.extOffset()
	if len(p) < off+ExtensionHeaderLen+4*int(words) {
		return errors.E("rtp.SetExtensionHeader", errors.K.Invalid, bitstream.ErrTooShort,
			"need", off+ExtensionHeaderLen+4*int(words), "len", len(p))
	}
	p.SetExtension(true)
	bitfield.NewUint[uint16](off, 0, 16).Put(p, profile)
	bitfield.NewUint[uint16](off+2, 0, 16).Put(p, words)
	return nil
}

// ExtensionData returns the header extension data, without its header.
func (p Packet) ExtensionData() []byte {
	if !p.Extension() {
		return nil
	}
	start := p.extOffset() + ExtensionHeaderLen
	end := p.HeaderLen()
	if end > len(p) {
		return nil
	}
	return p[start:end]
}

// HeaderLen is the size of the fixed header, CSRC list and header extension.
func (p Packet) HeaderLen() int {
	n := p.extOffset()
	if p.Extension() {
		n += ExtensionHeaderLen + 4*int(p.ExtensionWords())
	}
	return n
}

// PaddingLen returns the number of padding bytes at the end of the packet.
func (p Packet) PaddingLen() int {
	if !p.Padding() || len(p) == 0 {
		return 0
	}
	return int(p[len(p)-1])
}

// Payload returns the bytes between the header and the padding.
func (p Packet) Payload() []byte {
	start := p.HeaderLen()
	end := len(p) - p.PaddingLen()
	if start > end {
		return nil
	}
	return p[start:end]
}
