package desc

import (
	"github.com/eluv-io/bitstream/output"
)

const element = "DESC"

func header(d Descriptor, name string) []output.Attr {
	return []output.Attr{
		output.A("tag", output.Hex(uint64(d.Tag()), 2)),
		output.A("name", name),
		output.A("length", d.Length()),
	}
}

func withName(d Descriptor) []output.Attr {
	k := Lookup(d.Tag(), 0)
	name := "unknown"
	if k != nil {
		name = k.Name
	}
	return header(d, name)
}

// PrintList interprets list and prints its descriptors. Descriptors that are
// unknown or invalid are printed as hex.
func PrintList(list []byte, p *output.Printer, opts ...Option) error {
	ds, err := Interpret(list, opts...)
	if err != nil {
		p.Element(element, output.A("error", err.Error()), output.A("data", output.HexBytes(list)))
		return err
	}
	for _, d := range ds {
		Print(d, p)
	}
	return nil
}

// Print prints one interpreted descriptor.
func Print(in Interpreted, p *output.Printer) {
	if in.Kind == nil || in.Err != nil || in.Kind.Print == nil {
		attrs := header(in.Descriptor, in.Name())
		if IsPrivate(in.Tag()) {
			attrs = append(attrs, output.A("specifier", output.Hex(uint64(in.Specifier), 8)))
		}
		if in.Err != nil {
			attrs = append(attrs, output.A("error", in.Err.Error()))
		}
		p.Element(element, append(attrs, output.A("data", output.HexBytes(in.Payload())))...)
		return
	}
	in.Kind.Print(in.Descriptor, p)
}

func printRegistration(d Descriptor, p *output.Printer) {
	r := Registration{d}
	p.Element(element, append(withName(d),
		output.A("format_identifier", output.Hex(uint64(r.FormatIdentifier()), 8)),
		output.A("additional_info", output.HexBytes(r.AdditionalInfo())))...)
}

func printCA(d Descriptor, p *output.Printer) {
	c := CA{d}
	p.Element(element, append(withName(d),
		output.A("ca_system_id", output.Hex(uint64(c.SystemID()), 4)),
		output.A("ca_pid", c.PID()),
		output.A("private", output.HexBytes(c.PrivateData())))...)
}

func printISO639Language(d Descriptor, p *output.Printer) {
	p.Open(element, withName(d)...)
	for _, l := range (ISO639Language{d}).Languages() {
		p.Element("LANGUAGE", output.A("code", l.Code), output.A("audio_type", l.AudioType))
	}
	p.Close(element)
}

func printMaximumBitrate(d Descriptor, p *output.Printer) {
	p.Element(element, append(withName(d),
		output.A("max_bitrate", (MaximumBitrate{d}).BitsPerSecond()))...)
}

func printName(d Descriptor, p *output.Printer) {
	p.Element(element, append(withName(d), output.A("text", printString(p, (Name{d}).Text())))...)
}

func printServiceList(d Descriptor, p *output.Printer) {
	p.Open(element, withName(d)...)
	for _, s := range (ServiceList{d}).Services() {
		p.Element("SERVICE", output.A("sid", s.ID), output.A("type", output.Hex(uint64(s.Type), 2)))
	}
	p.Close(element)
}

func printStuffing(d Descriptor, p *output.Printer) {
	p.Element(element, withName(d)...)
}

func printTeletext(d Descriptor, p *output.Printer) {
	p.Open(element, withName(d)...)
	for _, pg := range (Teletext{d}).Pages() {
		p.Element("PAGE", output.A("language", pg.Language), output.A("type", pg.Type),
			output.A("magazine", pg.Magazine), output.A("page", output.Hex(uint64(pg.Page), 2)))
	}
	p.Close(element)
}

func printService(d Descriptor, p *output.Printer) {
	s := Service{d}
	p.Element(element, append(withName(d),
		output.A("service_type", output.Hex(uint64(s.ServiceType()), 2)),
		output.A("provider", printString(p, s.Provider())),
		output.A("service", printString(p, s.Name())))...)
}

func printLinkage(d Descriptor, p *output.Printer) {
	l := Linkage{d}
	p.Element(element, append(withName(d),
		output.A("tsid", l.TransportStreamID()),
		output.A("onid", l.OriginalNetworkID()),
		output.A("sid", l.ServiceID()),
		output.A("linkage", output.Hex(uint64(l.LinkageType()), 2)),
		output.A("private", output.HexBytes(l.PrivateData())))...)
}

func printShortEvent(d Descriptor, p *output.Printer) {
	s := ShortEvent{d}
	p.Element(element, append(withName(d),
		output.A("language", s.Language()),
		output.A("event", printString(p, s.EventName())),
		output.A("text", printString(p, s.Text())))...)
}

func printStreamIdentifier(d Descriptor, p *output.Printer) {
	p.Element(element, append(withName(d),
		output.A("component_tag", output.Hex(uint64((StreamIdentifier{d}).ComponentTag()), 2)))...)
}

func printLocalTimeOffset(d Descriptor, p *output.Printer) {
	p.Open(element, withName(d)...)
	for _, o := range (LocalTimeOffset{d}).Offsets() {
		p.Element("OFFSET", output.A("country", o.Country), output.A("region", o.Region),
			output.A("offset", o.Offset), output.A("change", o.TimeOfChange.Format("2006-01-02 15:04:05")),
			output.A("next_offset", o.NextOffset))
	}
	p.Close(element)
}

func printSubtitling(d Descriptor, p *output.Printer) {
	p.Open(element, withName(d)...)
	for _, s := range (Subtitling{d}).Subtitles() {
		p.Element("SUBTITLE", output.A("language", s.Language), output.A("type", output.Hex(uint64(s.Type), 2)),
			output.A("composition", s.CompositionPage), output.A("ancillary", s.AncillaryPage))
	}
	p.Close(element)
}

func printPrivateDataSpecifier(d Descriptor, p *output.Printer) {
	p.Element(element, append(withName(d),
		output.A("specifier", output.Hex(uint64((PrivateDataSpecifier{d}).Specifier()), 8)))...)
}

func printLogicalChannel(d Descriptor, p *output.Printer) {
	name := "eacem_logical_channel"
	if d.Tag() == TagHDSimulcastLogicalChn {
		name = "eacem_hd_simulcast_logical_channel"
	}
	p.Open(element, header(d, name)...)
	for _, c := range (LogicalChannel{d}).Channels() {
		p.Element("CHANNEL", output.A("sid", c.ServiceID), output.A("visible", c.Visible), output.A("lcn", c.Number))
	}
	p.Close(element)
}
