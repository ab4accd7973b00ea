package udp

import (
	"encoding/binary"
	"net"

	"github.com/eluv-io/errors-go"
	"golang.org/x/net/ipv4"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/ethernet"
	"github.com/eluv-io/bitstream/output"
)

// DefaultTTL is used when BuildOptions.TTL is zero.
const DefaultTTL = 64

// BuildOptions sets the IPv4 header fields of a built datagram.
type BuildOptions struct {
	TTL          int
	TOS          int
	ID           int
	DontFragment bool
}

// Datagram is a parsed IPv4/UDP datagram. UDP is a view into the parsed
// buffer.
type Datagram struct {
	IP  *ipv4.Header
	UDP Header
}

func (d Datagram) Src() *net.UDPAddr {
	return &net.UDPAddr{IP: d.IP.Src, Port: int(d.UDP.SrcPort())}
}

func (d Datagram) Dst() *net.UDPAddr {
	return &net.UDPAddr{IP: d.IP.Dst, Port: int(d.UDP.DstPort())}
}

func (d Datagram) Payload() []byte { return d.UDP.Payload() }

// Build returns an IPv4 datagram carrying payload from src to dst, with the
// IPv4 header and UDP checksums set.
func Build(src, dst *net.UDPAddr, payload []byte, opts BuildOptions) ([]byte, error) {
	e := errors.Template("udp.Build", errors.K.Invalid)
	if src.IP.To4() == nil || dst.IP.To4() == nil {
		return nil, e(bitstream.ErrInvalidValue, "reason", "IPv4 addresses required", "src", src, "dst", dst)
	}
	total := ipv4.HeaderLen + HeaderLen + len(payload)
	if total > 0xFFFF {
		return nil, e(bitstream.ErrInvalidValue, "payload_len", len(payload))
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	ih := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TOS:      opts.TOS,
		TotalLen: total,
		ID:       opts.ID,
		TTL:      opts.TTL,
		Protocol: ProtocolUDP,
		Src:      src.IP.To4(),
		Dst:      dst.IP.To4(),
	}
	if opts.DontFragment {
		ih.Flags = ipv4.DontFragment
	}
	hb, err := ih.Marshal()
	if err != nil {
		return nil, e(err)
	}
	// ipv4.Header uses host order for raw sockets on some BSDs; datagrams
	// here are always in wire order.
	binary.BigEndian.PutUint16(hb[2:4], uint16(total))
	binary.BigEndian.PutUint16(hb[6:8], uint16(ih.Flags)<<13|uint16(ih.FragOff&0x1FFF))
	binary.BigEndian.PutUint16(hb[10:12], InternetChecksum(hb))

	buf := make([]byte, total)
	copy(buf, hb)
	uh, err := Init(buf[ipv4.HeaderLen:], uint16(src.Port), uint16(dst.Port), len(payload))
	if err != nil {
		return nil, e(err)
	}
	copy(uh[HeaderLen:], payload)
	if err = uh.UpdateChecksum(ih.Src, ih.Dst); err != nil {
		return nil, e(err)
	}
	return buf, nil
}

// Parse validates an IPv4 datagram carrying UDP: header checksum, lengths,
// protocol and UDP checksum. Fragments are rejected.
func Parse(b []byte) (Datagram, error) {
	e := errors.Template("udp.Parse", errors.K.Invalid)
	ih, err := ipv4.ParseHeader(b)
	if err != nil {
		return Datagram{}, e(bitstream.ErrTooShort, "reason", err.Error(), "len", len(b))
	}
	if ih.Version != ipv4.Version {
		return Datagram{}, e(bitstream.ErrInvalidValue, "version", ih.Version)
	}
	ih.TotalLen = int(binary.BigEndian.Uint16(b[2:4]))
	fo := binary.BigEndian.Uint16(b[6:8])
	ih.Flags, ih.FragOff = ipv4.HeaderFlags(fo>>13), int(fo&0x1FFF)

	if c := InternetChecksum(b[:ih.Len]); c != 0 {
		return Datagram{}, e(bitstream.ErrCrcMismatch, "reason", "bad IPv4 header checksum",
			"stored", output.Hex(uint64(ih.Checksum), 4))
	}
	if ih.TotalLen < ih.Len || ih.TotalLen > len(b) {
		return Datagram{}, e(bitstream.ErrLengthMismatch, "total_len", ih.TotalLen, "len", len(b))
	}
	if ih.Protocol != ProtocolUDP {
		return Datagram{}, e(bitstream.ErrInvalidValue, "protocol", ih.Protocol)
	}
	if ih.Flags&ipv4.MoreFragments != 0 || ih.FragOff != 0 {
		return Datagram{}, e(bitstream.ErrInvalidValue, "reason", "fragmented datagram", "frag_off", ih.FragOff)
	}
	uh, err := Validate(b[ih.Len:ih.TotalLen])
	if err != nil {
		return Datagram{}, e(err)
	}
	if len(uh) != ih.TotalLen-ih.Len {
		return Datagram{}, e(bitstream.ErrLengthMismatch, "udp_len", len(uh), "ip_payload", ih.TotalLen-ih.Len)
	}
	if err = uh.VerifyChecksum(ih.Src, ih.Dst); err != nil {
		return Datagram{}, e(err)
	}
	return Datagram{IP: ih, UDP: uh}, nil
}

// BuildFrame wraps a datagram built by Build in an untagged Ethernet frame.
func BuildFrame(dstMAC, srcMAC net.HardwareAddr, src, dst *net.UDPAddr, payload []byte, opts BuildOptions) (ethernet.Frame, error) {
	dg, err := Build(src, dst, payload, opts)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, ethernet.HeaderLen+len(dg))
	f, err := ethernet.Init(buf, dstMAC, srcMAC, ethernet.TypeIPv4)
	if err != nil {
		return nil, errors.E("udp.BuildFrame", errors.K.Invalid, err)
	}
	copy(f[ethernet.HeaderLen:], dg)
	return f, nil
}

// ParseFrame validates an Ethernet frame carrying an IPv4/UDP datagram,
// VLAN tagged or not.
func ParseFrame(buf []byte) (ethernet.Frame, Datagram, error) {
	e := errors.Template("udp.ParseFrame", errors.K.Invalid)
	f, err := ethernet.Validate(buf)
	if err != nil {
		return nil, Datagram{}, e(err)
	}
	if f.EtherType() != ethernet.TypeIPv4 {
		return nil, Datagram{}, e(bitstream.ErrInvalidValue, "ether_type", output.Hex(uint64(f.EtherType()), 4))
	}
	dg, err := Parse(f.Payload())
	if err != nil {
		return nil, Datagram{}, e(err)
	}
	return f, dg, nil
}
