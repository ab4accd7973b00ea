package hbrmt

import (
	"github.com/eluv-io/bitstream/output"
)

// Print prints the payload header of h.
func Print(h Header, p *output.Printer) {
	attrs := []output.Attr{
		output.A("vsid", h.VSID()),
		output.A("frcount", h.FRCount()),
		output.A("r", h.R()),
		output.A("s", h.S()),
		output.A("fec", h.FEC()),
		output.A("cf", h.CF()),
	}
	if h.F() {
		attrs = append(attrs,
			output.A("map", h.MAP()),
			output.A("frame", output.Hex(uint64(h.FRAME()), 2)),
			output.A("frate", output.Hex(uint64(h.FRATE()), 2)))
		if r := FrameRate(h.FRATE()); r != "" {
			attrs = append(attrs, output.A("fps", r))
		}
		attrs = append(attrs, output.A("sample", h.SAMPLE()))
	}
	if h.HasTimestamp() {
		attrs = append(attrs, output.A("timestamp", h.Timestamp()))
	}
	if h.Ext() > 0 {
		attrs = append(attrs, output.A("ext", output.HexBytes(h.Extension())))
	}
	attrs = append(attrs, output.A("payload", len(h.Payload())))
	p.Element("HBRMT", attrs...)
}
