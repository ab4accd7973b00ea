// Package udp reads and writes UDP headers and builds and parses
// Ethernet/IPv4/UDP datagrams, as found in capture files and SMPTE ST 2110
// or ST 2022 streams.
package udp

import (
	"encoding/binary"
	"net"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
	"github.com/eluv-io/bitstream/output"
)

// HeaderLen is the size of the UDP header.
const HeaderLen = 8

// ProtocolUDP is the IP protocol number of UDP.
const ProtocolUDP = 17

var (
	fieldSrcPort  = bitfield.NewUint[uint16](0, 0, 16)
	fieldDstPort  = bitfield.NewUint[uint16](2, 0, 16)
	fieldLength   = bitfield.NewUint[uint16](4, 0, 16)
	fieldChecksum = bitfield.NewUint[uint16](6, 0, 16)
)

// Header is a view of a UDP datagram, header first.
type Header []byte

func (h Header) SrcPort() uint16  { return fieldSrcPort.Value(h) }
func (h Header) DstPort() uint16  { return fieldDstPort.Value(h) }
func (h Header) Length() uint16   { return fieldLength.Value(h) }
func (h Header) Checksum() uint16 { return fieldChecksum.Value(h) }

func (h Header) SetSrcPort(v uint16)  { fieldSrcPort.Put(h, v) }
func (h Header) SetDstPort(v uint16)  { fieldDstPort.Put(h, v) }
func (h Header) SetLength(v uint16)   { fieldLength.Put(h, v) }
func (h Header) SetChecksum(v uint16) { fieldChecksum.Put(h, v) }

// Payload returns the bytes covered by the length field after the header.
func (h Header) Payload() []byte {
	n := int(h.Length())
	if n < HeaderLen || n > len(h) {
		return nil
	}
	return h[HeaderLen:n]
}

// Init writes a header for a payload of payloadLen bytes at the start of
// buf. The checksum is left zero.
func Init(buf []byte, src, dst uint16, payloadLen int) (Header, error) {
	e := errors.Template("udp.Init", errors.K.Invalid)
	n := HeaderLen + payloadLen
	if payloadLen < 0 || n > 0xFFFF {
		return nil, e(bitstream.ErrInvalidValue, "payload_len", payloadLen)
	}
	if len(buf) < n {
		return nil, e(bitstream.ErrTooShort, "need", n, "len", len(buf))
	}
	h := Header(buf[:n])
	h.SetSrcPort(src)
	h.SetDstPort(dst)
	h.SetLength(uint16(n))
	h.SetChecksum(0)
	return h, nil
}

// Validate checks the header at the start of buf and returns a view trimmed
// to the datagram length.
func Validate(buf []byte) (Header, error) {
	e := errors.Template("udp.Validate", errors.K.Invalid)
	if len(buf) < HeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	h := Header(buf)
	n := int(h.Length())
	if n < HeaderLen || n > len(buf) {
		return nil, e(bitstream.ErrLengthMismatch, "length", n, "len", len(buf))
	}
	return h[:n], nil
}

// sum adds b as big-endian 16-bit words to s.
func sum(s uint32, b []byte) uint32 {
	for ; len(b) >= 2; b = b[2:] {
		s += uint32(binary.BigEndian.Uint16(b))
	}
	if len(b) == 1 {
		s += uint32(b[0]) << 8
	}
	return s
}

func fold(s uint32) uint16 {
	for s > 0xFFFF {
		s = s>>16 + s&0xFFFF
	}
	return uint16(s)
}

// InternetChecksum is the ones' complement checksum of RFC 1071.
func InternetChecksum(b []byte) uint16 {
	return ^fold(sum(0, b))
}

// pseudoSum sums the IPv4 or IPv6 pseudo header.
func pseudoSum(src, dst net.IP, length int) (uint32, error) {
	var s uint32
	if s4, d4 := src.To4(), dst.To4(); s4 != nil && d4 != nil {
		s = sum(sum(s, s4), d4)
	} else if s16, d16 := src.To16(), dst.To16(); s16 != nil && d16 != nil {
		s = sum(sum(s, s16), d16)
	} else {
		return 0, errors.E("udp.Checksum", errors.K.Invalid, bitstream.ErrInvalidValue, "src", src, "dst", dst)
	}
	s += ProtocolUDP
	s += uint32(length>>16) + uint32(length&0xFFFF)
	return s, nil
}

// ComputeChecksum returns the checksum of h between src and dst, with the
// checksum field taken as zero. A computed zero is sent as 0xFFFF.
func (h Header) ComputeChecksum(src, dst net.IP) (uint16, error) {
	s, err := pseudoSum(src, dst, len(h))
	if err != nil {
		return 0, err
	}
	s = sum(s, h[:6])
	s = sum(s, h[HeaderLen:])
	c := ^fold(s)
	if c == 0 {
		c = 0xFFFF
	}
	return c, nil
}

// UpdateChecksum computes and writes the checksum.
func (h Header) UpdateChecksum(src, dst net.IP) error {
	c, err := h.ComputeChecksum(src, dst)
	if err != nil {
		return err
	}
	h.SetChecksum(c)
	return nil
}

// VerifyChecksum checks the checksum of h. A zero checksum means none was
// sent, which IPv4 allows.
func (h Header) VerifyChecksum(src, dst net.IP) error {
	stored := h.Checksum()
	if stored == 0 && src.To4() != nil {
		return nil
	}
	c, err := h.ComputeChecksum(src, dst)
	if err != nil {
		return err
	}
	if c != stored {
		return errors.E("udp.VerifyChecksum", errors.K.Invalid, bitstream.ErrCrcMismatch,
			"computed", output.Hex(uint64(c), 4), "stored", output.Hex(uint64(stored), 4))
	}
	return nil
}

// Print prints the header of h.
func Print(h Header, p *output.Printer) {
	p.Element("UDP",
		output.A("src_port", h.SrcPort()),
		output.A("dst_port", h.DstPort()),
		output.A("length", h.Length()),
		output.A("checksum", output.Hex(uint64(h.Checksum()), 4)))
}
