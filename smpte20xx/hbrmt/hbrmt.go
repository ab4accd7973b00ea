// Package hbrmt reads and writes the SMPTE ST 2022-6 high bit rate media
// transport payload header carried after the RTP header.
package hbrmt

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
	"github.com/eluv-io/bitstream/rtp"
)

const (
	// HeaderLen is the size of the fixed payload header.
	HeaderLen = 8
	// TimestampLen is the size of the video timestamp present when the clock
	// frequency is not zero.
	TimestampLen = 4
	// MediaPayloadLen is the fixed size of the media payload of a datagram.
	MediaPayloadLen = 1376
	// PayloadType is the RTP payload type recommended for HBRMT.
	PayloadType = 98
)

// Clock frequencies of the video timestamp.
const (
	ClockNone      = 0
	Clock27MHz     = 1
	Clock148MHz    = 2
	Clock148MHz001 = 3
	Clock297MHz    = 4
	Clock297MHz001 = 5
)

var (
	fieldExt      = bitfield.NewUint[uint8](0, 0, 4)
	fieldF        = bitfield.NewFlag(0, 4)
	fieldVSID     = bitfield.NewUint[uint8](0, 5, 3)
	fieldFRCount  = bitfield.NewUint[uint8](1, 0, 8)
	fieldR        = bitfield.NewUint[uint8](2, 0, 2)
	fieldS        = bitfield.NewUint[uint8](2, 2, 2)
	fieldFEC      = bitfield.NewUint[uint8](2, 4, 3)
	fieldCF       = bitfield.NewUint[uint8](2, 7, 4)
	fieldReserved = bitfield.NewUint[uint8](3, 3, 5)
	fieldMAP      = bitfield.NewUint[uint8](4, 0, 4)
	fieldFRAME    = bitfield.NewUint[uint8](4, 4, 8)
	fieldFRATE    = bitfield.NewUint[uint8](5, 4, 8)
	fieldSAMPLE   = bitfield.NewUint[uint8](6, 4, 4)
	fieldFmtRes   = bitfield.NewUint[uint8](7, 0, 8)
	fieldVideoTS  = bitfield.NewUint[uint32](HeaderLen, 0, 32)
)

// Header is a view of an HBRMT payload: the payload header, the optional
// video timestamp and header extension, and the media payload.
type Header []byte

func (h Header) Ext() uint8         { return fieldExt.Value(h) }
func (h Header) SetExt(n uint8)     { fieldExt.Put(h, n) }
func (h Header) F() bool            { return fieldF.Value(h) }
func (h Header) SetF(on bool)       { fieldF.Put(h, on) }
func (h Header) VSID() uint8        { return fieldVSID.Value(h) }
func (h Header) SetVSID(v uint8)    { fieldVSID.Put(h, v) }
func (h Header) FRCount() uint8     { return fieldFRCount.Value(h) }
func (h Header) SetFRCount(v uint8) { fieldFRCount.Put(h, v) }
func (h Header) R() uint8           { return fieldR.Value(h) }
func (h Header) SetR(v uint8)       { fieldR.Put(h, v) }
func (h Header) S() uint8           { return fieldS.Value(h) }
func (h Header) SetS(v uint8)       { fieldS.Put(h, v) }
func (h Header) FEC() uint8         { return fieldFEC.Value(h) }
func (h Header) SetFEC(v uint8)     { fieldFEC.Put(h, v) }
func (h Header) CF() uint8          { return fieldCF.Value(h) }
func (h Header) SetCF(v uint8)      { fieldCF.Put(h, v) }
func (h Header) MAP() uint8         { return fieldMAP.Value(h) }
func (h Header) SetMAP(v uint8)     { fieldMAP.Put(h, v) }
func (h Header) FRAME() uint8       { return fieldFRAME.Value(h) }
func (h Header) SetFRAME(v uint8)   { fieldFRAME.Put(h, v) }
func (h Header) FRATE() uint8       { return fieldFRATE.Value(h) }
func (h Header) SetFRATE(v uint8)   { fieldFRATE.Put(h, v) }
func (h Header) SAMPLE() uint8      { return fieldSAMPLE.Value(h) }
func (h Header) SetSAMPLE(v uint8)  { fieldSAMPLE.Put(h, v) }

// HasTimestamp reports whether a video timestamp follows the fixed header.
func (h Header) HasTimestamp() bool { return h.CF() != ClockNone }

// Timestamp returns the video timestamp, or zero if there is none.
func (h Header) Timestamp() uint32 {
	if !h.HasTimestamp() {
		return 0
	}
	return fieldVideoTS.Value(h)
}

// SetTimestamp writes the video timestamp. The clock frequency must be set
// first.
func (h Header) SetTimestamp(ts uint32) error {
	if !h.HasTimestamp() {
		return errors.E("hbrmt.SetTimestamp", errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", "no clock frequency")
	}
	return fieldVideoTS.Set(h, ts)
}

func (h Header) extOffset() int {
	if h.HasTimestamp() {
		return HeaderLen + TimestampLen
	}
	return HeaderLen
}

// Len is the size of the payload header including the video timestamp and
// the header extension.
func (h Header) Len() int {
	return h.extOffset() + 4*int(h.Ext())
}

// Extension returns the header extension words.
func (h Header) Extension() []byte {
	if h.Len() > len(h) {
		return nil
	}
	return h[h.extOffset():h.Len()]
}

// Payload returns the media payload.
func (h Header) Payload() []byte {
	if h.Len() > len(h) {
		return nil
	}
	return h[h.Len():]
}

// Init clears the fixed header at the start of buf and returns the view.
func Init(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return nil, errors.E("hbrmt.Init", errors.K.Invalid, bitstream.ErrTooShort, "len", len(buf))
	}
	clear(buf[:HeaderLen])
	return Header(buf), nil
}

// Validate checks the reserved bits, the header length and the media payload
// size of buf.
func Validate(buf []byte) (Header, error) {
	e := errors.Template("hbrmt.Validate", errors.K.Invalid)
	if len(buf) < HeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	h := Header(buf)
	if fieldReserved.Value(h) != 0 || fieldFmtRes.Value(h) != 0 {
		return nil, e(bitstream.ErrInvalidValue, "reason", "reserved bits set")
	}
	if h.CF() > Clock297MHz001 {
		return nil, e(bitstream.ErrInvalidValue, "cf", h.CF())
	}
	if !h.F() && (h.MAP() != 0 || h.FRAME() != 0 || h.FRATE() != 0 || h.SAMPLE() != 0) {
		return nil, e(bitstream.ErrInvalidValue, "reason", "video source format without F flag")
	}
	if h.Len() > len(buf) {
		return nil, e(bitstream.ErrTooShort, "header_len", h.Len(), "len", len(buf))
	}
	if n := len(h.Payload()); n != MediaPayloadLen {
		return nil, e(bitstream.ErrLengthMismatch, "payload", n, "expected", MediaPayloadLen)
	}
	return h, nil
}

// FromRTP validates the RTP packet and its HBRMT payload.
func FromRTP(buf []byte) (rtp.Packet, Header, error) {
	p, err := rtp.Validate(buf)
	if err != nil {
		return nil, nil, err
	}
	h, err := Validate(p.Payload())
	if err != nil {
		return nil, nil, err
	}
	return p, h, nil
}

var frameRates = map[uint8]string{
	0x10: "60",
	0x11: "59.94",
	0x12: "50",
	0x14: "48",
	0x15: "47.95",
	0x16: "30",
	0x17: "29.97",
	0x18: "25",
	0x1A: "24",
	0x1B: "23.98",
}

// FrameRate returns the frame rate of a FRATE code, or "" if unknown.
func FrameRate(code uint8) string {
	return frameRates[code]
}
