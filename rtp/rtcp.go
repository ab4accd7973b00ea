package rtp

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

// RTCP packet types
const (
	RtcpSR   = 200
	RtcpRR   = 201
	RtcpSDES = 202
	RtcpBYE  = 203
	RtcpAPP  = 204
)

const (
	// CtrlHeaderLen is the size of the common RTCP header.
	CtrlHeaderLen = 4
	// SenderInfoLen is the size of the sender info block of an SR, after the
	// sender SSRC.
	SenderInfoLen = 20
	// ReportBlockLen is the size of one reception report block.
	ReportBlockLen = 24

	srReportOffset = 8 + SenderInfoLen
	rrReportOffset = 8
)

var (
	ctrlVersion = bitfield.NewUint[uint8](0, 0, 2)
	ctrlPadding = bitfield.NewFlag(0, 2)
	ctrlCount   = bitfield.NewUint[uint8](0, 3, 5)
	ctrlType    = bitfield.NewUint[uint8](1, 0, 8)
	ctrlLength  = bitfield.NewUint[uint16](2, 0, 16)
	ctrlSSRC    = bitfield.NewUint[uint32](4, 0, 32)

	srNTPSeconds  = bitfield.NewUint[uint32](8, 0, 32)
	srNTPFraction = bitfield.NewUint[uint32](12, 0, 32)
	srRTPTime     = bitfield.NewUint[uint32](16, 0, 32)
	srPackets     = bitfield.NewUint[uint32](20, 0, 32)
	srOctets      = bitfield.NewUint[uint32](24, 0, 32)
)

// CtrlPacket is a view of a single RTCP packet.
type CtrlPacket []byte

// CtrlTypeName returns a name for an RTCP packet type.
func CtrlTypeName(t uint8) string {
	switch t {
	case RtcpSR:
		return "SR"
	case RtcpRR:
		return "RR"
	case RtcpSDES:
		return "SDES"
	case RtcpBYE:
		return "BYE"
	case RtcpAPP:
		return "APP"
	}
	return "unknown"
}

// InitCtrl writes a version 2 RTCP header of the given type whose length
// field covers all of buf. len(buf) must be a multiple of 4.
func InitCtrl(buf []byte, typ uint8) (CtrlPacket, error) {
	e := errors.Template("rtp.InitCtrl", errors.K.Invalid)
	if len(buf) < CtrlHeaderLen+4 {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	if len(buf)%4 != 0 || len(buf)/4-1 > 0xFFFF {
		return nil, e(bitstream.ErrInvalidValue, "reason", "length not a multiple of 32 bits", "len", len(buf))
	}
	clear(buf)
	c := CtrlPacket(buf)
	ctrlVersion.Put(c, Version)
	ctrlType.Put(c, typ)
	ctrlLength.Put(c, uint16(len(buf)/4-1))
	return c, nil
}

// ValidateCtrl checks one RTCP packet at the start of buf and returns a view
// trimmed to its declared length.
func ValidateCtrl(buf []byte) (CtrlPacket, error) {
	e := errors.Template("rtp.ValidateCtrl", errors.K.Invalid)
	if len(buf) < CtrlHeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	c := CtrlPacket(buf)
	if c.Version() != Version {
		return nil, e(bitstream.ErrInvalidValue, "reason", "unsupported RTCP version", "version", c.Version())
	}
	size := c.Size()
	if size > len(buf) {
		return nil, e(bitstream.ErrLengthMismatch, "declared", size, "len", len(buf))
	}
	c = c[:size]
	var need int
	switch c.Type() {
	case RtcpSR:
		need = srReportOffset + ReportBlockLen*int(c.Count())
	case RtcpRR:
		need = rrReportOffset + ReportBlockLen*int(c.Count())
	case RtcpBYE:
		need = CtrlHeaderLen + 4*int(c.Count())
	}
	if size < need {
		return nil, e(bitstream.ErrTooShort, "reason", "report blocks exceed packet",
			"type", CtrlTypeName(c.Type()), "need", need, "size", size)
	}
	if c.Padding() {
		pad := int(c[size-1])
		if pad == 0 || pad > size-CtrlHeaderLen {
			return nil, e(bitstream.ErrLengthMismatch, "reason", "bad padding count", "padding", pad)
		}
	}
	return c, nil
}

func (c CtrlPacket) Version() uint8 { return ctrlVersion.Value(c) }
func (c CtrlPacket) Padding() bool  { return ctrlPadding.Value(c) }

// Count is the report count, source count or APP subtype depending on Type.
func (c CtrlPacket) Count() uint8     { return ctrlCount.Value(c) }
func (c CtrlPacket) SetCount(n uint8) { ctrlCount.Put(c, n) }
func (c CtrlPacket) Type() uint8      { return ctrlType.Value(c) }
func (c CtrlPacket) Length() uint16   { return ctrlLength.Value(c) }
func (c CtrlPacket) SSRC() uint32     { return ctrlSSRC.Value(c) }
func (c CtrlPacket) SetSSRC(s uint32) { ctrlSSRC.Put(c, s) }

// Size is the packet size in bytes derived from the length field.
func (c CtrlPacket) Size() int {
	return (int(c.Length()) + 1) * 4
}

// NTPTime returns the NTP timestamp of a sender report.
func (c CtrlPacket) NTPTime() (seconds, fraction uint32) {
	return srNTPSeconds.Value(c), srNTPFraction.Value(c)
}

func (c CtrlPacket) SetNTPTime(seconds, fraction uint32) {
	srNTPSeconds.Put(c, seconds)
	srNTPFraction.Put(c, fraction)
}

func (c CtrlPacket) RTPTime() uint32         { return srRTPTime.Value(c) }
func (c CtrlPacket) SetRTPTime(t uint32)     { srRTPTime.Put(c, t) }
func (c CtrlPacket) PacketCount() uint32     { return srPackets.Value(c) }
func (c CtrlPacket) SetPacketCount(n uint32) { srPackets.Put(c, n) }
func (c CtrlPacket) OctetCount() uint32      { return srOctets.Value(c) }
func (c CtrlPacket) SetOctetCount(n uint32)  { srOctets.Put(c, n) }

func (c CtrlPacket) reportOffset() int {
	if c.Type() == RtcpSR {
		return srReportOffset
	}
	return rrReportOffset
}

// Report returns the i-th reception report block of an SR or RR, or nil if it
// is out of range.
func (c CtrlPacket) Report(i int) ReportBlock {
	t := c.Type()
	if (t != RtcpSR && t != RtcpRR) || i < 0 || i >= int(c.Count()) {
		return nil
	}
	off := c.reportOffset() + i*ReportBlockLen
	if off+ReportBlockLen > len(c) {
		return nil
	}
	return ReportBlock(c[off : off+ReportBlockLen])
}

// ReportBlock is a view of a 24-byte reception report block.
type ReportBlock []byte

var (
	rbSSRC         = bitfield.NewUint[uint32](0, 0, 32)
	rbFractionLost = bitfield.NewUint[uint8](4, 0, 8)
	rbCumLost      = bitfield.NewSignMagnitude(5, 0, 24)
	rbHighestSeq   = bitfield.NewUint[uint32](8, 0, 32)
	rbJitter       = bitfield.NewUint[uint32](12, 0, 32)
	rbLSR          = bitfield.NewUint[uint32](16, 0, 32)
	rbDLSR         = bitfield.NewUint[uint32](20, 0, 32)
)

func (r ReportBlock) SSRC() uint32             { return rbSSRC.Value(r) }
func (r ReportBlock) SetSSRC(s uint32)         { rbSSRC.Put(r, s) }
func (r ReportBlock) FractionLost() uint8      { return rbFractionLost.Value(r) }
func (r ReportBlock) SetFractionLost(f uint8)  { rbFractionLost.Put(r, f) }
func (r ReportBlock) CumulativeLost() int64    { return rbCumLost.Value(r) }
func (r ReportBlock) HighestSeq() uint32       { return rbHighestSeq.Value(r) }
func (r ReportBlock) SetHighestSeq(s uint32)   { rbHighestSeq.Put(r, s) }
func (r ReportBlock) Jitter() uint32           { return rbJitter.Value(r) }
func (r ReportBlock) SetJitter(j uint32)       { rbJitter.Put(r, j) }
func (r ReportBlock) LastSR() uint32           { return rbLSR.Value(r) }
func (r ReportBlock) SetLastSR(v uint32)       { rbLSR.Put(r, v) }
func (r ReportBlock) DelaySinceLastSR() uint32 { return rbDLSR.Value(r) }
func (r ReportBlock) SetDelaySinceLastSR(v uint32) {
	rbDLSR.Put(r, v)
}

// SetCumulativeLost writes the signed 24-bit cumulative packets lost.
func (r ReportBlock) SetCumulativeLost(n int64) error {
	return rbCumLost.Set(r, n)
}

// WalkCompound splits a compound RTCP packet into its packets. It stops at
// the first invalid packet and returns the packets validated so far together
// with the error.
func WalkCompound(buf []byte) ([]CtrlPacket, error) {
	var pkts []CtrlPacket
	for len(buf) > 0 {
		c, err := ValidateCtrl(buf)
		if err != nil {
			return pkts, errors.E("rtp.WalkCompound", errors.K.Invalid, err, "index", len(pkts))
		}
		pkts = append(pkts, c)
		buf = buf[len(c):]
	}
	return pkts, nil
}
