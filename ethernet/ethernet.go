// Package ethernet reads and writes Ethernet II frame headers, with an
// optional IEEE 802.1Q VLAN tag.
package ethernet

import (
	"net"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
	"github.com/eluv-io/bitstream/output"
)

const (
	AddrLen    = 6
	HeaderLen  = 14
	VLANTagLen = 4
	// MaxLengthField is the largest EtherType value that is an IEEE 802.3
	// payload length instead of a protocol.
	MaxLengthField = 1500
)

// EtherTypes
const (
	TypeIPv4 uint16 = 0x0800
	TypeARP  uint16 = 0x0806
	TypeVLAN uint16 = 0x8100
	TypeIPv6 uint16 = 0x86DD
	TypeQinQ uint16 = 0x88A8
)

var (
	fieldDst       = bitfield.NewSpan(0, AddrLen)
	fieldSrc       = bitfield.NewSpan(AddrLen, AddrLen)
	fieldEtherType = bitfield.NewUint[uint16](12, 0, 16)
	fieldPCP       = bitfield.NewUint[uint8](14, 0, 3)
	fieldDEI       = bitfield.NewFlag(14, 3)
	fieldVID       = bitfield.NewUint[uint16](14, 4, 12)
	fieldInnerType = bitfield.NewUint[uint16](16, 0, 16)
)

// Frame is a view of an Ethernet frame, header first. The frame check
// sequence is not part of the view.
type Frame []byte

func (f Frame) Dst() net.HardwareAddr {
	b, _ := fieldDst.Get(f)
	return net.HardwareAddr(b)
}

func (f Frame) Src() net.HardwareAddr {
	b, _ := fieldSrc.Get(f)
	return net.HardwareAddr(b)
}

func (f Frame) SetDst(a net.HardwareAddr) error { return fieldDst.Set(f, a) }
func (f Frame) SetSrc(a net.HardwareAddr) error { return fieldSrc.Set(f, a) }

// HasVLAN tells whether the frame carries an 802.1Q tag.
func (f Frame) HasVLAN() bool { return fieldEtherType.Value(f) == TypeVLAN }

// EtherType returns the type of the payload, looking through a VLAN tag.
func (f Frame) EtherType() uint16 {
	if f.HasVLAN() {
		return fieldInnerType.Value(f)
	}
	return fieldEtherType.Value(f)
}

// IsLengthField tells whether the EtherType field holds an 802.3 length.
func (f Frame) IsLengthField() bool { return f.EtherType() <= MaxLengthField }

// PCP, DEI and VID are zero for untagged frames.
func (f Frame) PCP() uint8 {
	if !f.HasVLAN() {
		return 0
	}
	return fieldPCP.Value(f)
}

func (f Frame) DEI() bool { return f.HasVLAN() && fieldDEI.Value(f) }

func (f Frame) VID() uint16 {
	if !f.HasVLAN() {
		return 0
	}
	return fieldVID.Value(f)
}

// HeaderLen is 14, or 18 with a VLAN tag.
func (f Frame) HeaderLen() int {
	if f.HasVLAN() {
		return HeaderLen + VLANTagLen
	}
	return HeaderLen
}

// Payload returns the bytes after the header. For 802.3 frames it is
// trimmed to the length field.
func (f Frame) Payload() []byte {
	if len(f) < f.HeaderLen() {
		return nil
	}
	p := f[f.HeaderLen():]
	if f.IsLengthField() && int(f.EtherType()) <= len(p) {
		p = p[:f.EtherType()]
	}
	return p
}

// Init writes an untagged header at the start of buf.
func Init(buf []byte, dst, src net.HardwareAddr, etherType uint16) (Frame, error) {
	e := errors.Template("ethernet.Init", errors.K.Invalid)
	if len(buf) < HeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	f := Frame(buf)
	if err := f.SetDst(dst); err != nil {
		return nil, e(err, "dst", dst)
	}
	if err := f.SetSrc(src); err != nil {
		return nil, e(err, "src", src)
	}
	fieldEtherType.Put(f, etherType)
	return f, nil
}

// InitVLAN writes a header with an 802.1Q tag at the start of buf.
func InitVLAN(buf []byte, dst, src net.HardwareAddr, pcp uint8, dei bool, vid uint16, etherType uint16) (Frame, error) {
	e := errors.Template("ethernet.InitVLAN", errors.K.Invalid)
	if len(buf) < HeaderLen+VLANTagLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	f, err := Init(buf, dst, src, TypeVLAN)
	if err != nil {
		return nil, e(err)
	}
	if err = fieldPCP.Set(f, pcp); err != nil {
		return nil, e(err, "pcp", pcp)
	}
	fieldDEI.Put(f, dei)
	if err = fieldVID.Set(f, vid); err != nil {
		return nil, e(err, "vid", vid)
	}
	fieldInnerType.Put(f, etherType)
	return f, nil
}

// Validate checks the header at the start of buf.
func Validate(buf []byte) (Frame, error) {
	e := errors.Template("ethernet.Validate", errors.K.Invalid)
	if len(buf) < HeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	f := Frame(buf)
	if len(f) < f.HeaderLen() {
		return nil, e(bitstream.ErrTooShort, "reason", "truncated VLAN tag", "len", len(buf))
	}
	if f.HasVLAN() && f.VID() == 0xFFF {
		return nil, e(bitstream.ErrInvalidValue, "vid", f.VID())
	}
	if f.IsLengthField() && int(f.EtherType()) > len(f)-f.HeaderLen() {
		return nil, e(bitstream.ErrLengthMismatch, "length", f.EtherType(), "payload", len(f)-f.HeaderLen())
	}
	return f, nil
}

// Print prints the header of f.
func Print(f Frame, p *output.Printer) {
	attrs := []output.Attr{
		output.A("dst", f.Dst().String()),
		output.A("src", f.Src().String()),
		output.A("type", output.Hex(uint64(f.EtherType()), 4)),
	}
	if f.HasVLAN() {
		attrs = append(attrs, output.A("pcp", f.PCP()), output.A("dei", f.DEI()), output.A("vid", f.VID()))
	}
	p.Element("ETHERNET", append(attrs, output.A("payload", len(f.Payload())))...)
}
