package rtp

import (
	"github.com/eluv-io/bitstream/output"
)

// Print writes the RTP header fields of p.
func Print(p Packet, pr *output.Printer) {
	attrs := []output.Attr{
		output.A("version", p.Version()),
		output.A("padding", p.Padding()),
		output.A("extension", p.Extension()),
		output.A("marker", p.Marker()),
		output.A("pt", p.PayloadType()),
		output.A("seq", p.Sequence()),
		output.A("timestamp", p.Timestamp()),
		output.A("ssrc", output.Hex(uint64(p.SSRC()), 8)),
	}
	if p.CSRCCount() == 0 && !p.Extension() {
		pr.Element("RTP", attrs...)
		return
	}
	pr.Open("RTP", attrs...)
	for i := 0; i < int(p.CSRCCount()); i++ {
		pr.Element("CSRC", output.A("id", output.Hex(uint64(p.CSRC(i)), 8)))
	}
	if p.Extension() {
		pr.Element("EXTENSION",
			output.A("profile", output.Hex(uint64(p.ExtensionProfile()), 4)),
			output.A("data", output.HexBytes(p.ExtensionData())))
	}
	pr.Close("RTP")
}

// PrintCtrl writes an RTCP packet and its report blocks.
func PrintCtrl(c CtrlPacket, pr *output.Printer) {
	attrs := []output.Attr{
		output.A("type", CtrlTypeName(c.Type())),
		output.A("count", c.Count()),
		output.A("length", c.Length()),
	}
	switch c.Type() {
	case RtcpSR:
		sec, frac := c.NTPTime()
		attrs = append(attrs,
			output.A("ssrc", output.Hex(uint64(c.SSRC()), 8)),
			output.A("ntp", output.Hex(uint64(sec)<<32|uint64(frac), 16)),
			output.A("rtp_time", c.RTPTime()),
			output.A("packets", c.PacketCount()),
			output.A("octets", c.OctetCount()))
	case RtcpRR:
		attrs = append(attrs, output.A("ssrc", output.Hex(uint64(c.SSRC()), 8)))
	}
	if c.Type() != RtcpSR && c.Type() != RtcpRR || c.Count() == 0 {
		pr.Element("RTCP", attrs...)
		return
	}
	pr.Open("RTCP", attrs...)
	for i := 0; i < int(c.Count()); i++ {
		r := c.Report(i)
		if r == nil {
			break
		}
		pr.Element("REPORT",
			output.A("ssrc", output.Hex(uint64(r.SSRC()), 8)),
			output.A("fraction_lost", r.FractionLost()),
			output.A("cumulative_lost", r.CumulativeLost()),
			output.A("highest_seq", r.HighestSeq()),
			output.A("jitter", r.Jitter()),
			output.A("lsr", output.Hex(uint64(r.LastSR()), 8)),
			output.A("dlsr", r.DelaySinceLastSR()))
	}
	pr.Close("RTCP")
}
