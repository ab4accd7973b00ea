package anc

import (
	"github.com/eluv-io/bitstream/output"
)

// Print prints a decoded ST 2038 PES packet. ATC timecodes are decoded,
// other payloads are printed as hex.
func Print(r *PES, p *output.Printer) {
	attrs := []output.Attr{output.A("stream_id", output.Hex(uint64(r.StreamID), 2))}
	if r.HasPTS {
		attrs = append(attrs, output.A("pts", r.PTS))
	}
	attrs = append(attrs, output.A("packets", len(r.Packets)))
	p.Open("ANC_PES", attrs...)
	defer p.Close("ANC_PES")
	for _, pkt := range r.Packets {
		PrintPacket(pkt, p)
	}
}

// PrintPacket prints one ANC data packet.
func PrintPacket(pkt ST2038Packet, p *output.Printer) {
	attrs := []output.Attr{
		output.A("c_not_y", pkt.CNotY),
		output.A("line", pkt.Line),
		output.A("hoffset", pkt.HOffset),
		output.A("did", output.Hex(uint64(pkt.DID), 2)),
		output.A("sdid", output.Hex(uint64(pkt.SDID), 2)),
		output.A("dc", len(pkt.UDW)),
		output.A("name", Description(pkt.DID, pkt.SDID)),
	}
	if pkt.Err != nil {
		attrs = append(attrs, output.A("error", pkt.Err.Error()))
	}
	if pkt.Err == nil && pkt.DID == DIDTimecode && pkt.SDID == SDIDATC {
		if tc, err := DecodeTimecode(pkt.UDW); err == nil {
			p.Element("ANC", append(attrs, output.A("timecode", tc.String()))...)
			return
		}
	}
	p.Element("ANC", append(attrs, output.A("data", output.HexBytes(pkt.UDW)))...)
}
