package psi

import (
	"time"

	"github.com/eluv-io/bitstream/output"
)

const timeLayout = "2006-01-02 15:04:05"

// ListPrinter prints a descriptor list carried in a section. A nil
// ListPrinter prints lists as hex.
type ListPrinter func(list []byte, p *output.Printer)

type sectionPrinter struct {
	p  *output.Printer
	lp ListPrinter
}

func (sp sectionPrinter) descriptors(list []byte) {
	if len(list) == 0 {
		return
	}
	if sp.lp == nil {
		sp.p.Element("DESCRIPTORS", output.A("data", output.HexBytes(list)))
		return
	}
	sp.lp(list, sp.p)
}

func header(s Section) []output.Attr {
	attrs := []output.Attr{
		output.A("table_id", output.Hex(uint64(s.TableID()), 2)),
		output.A("name", TableName(s.TableID())),
		output.A("length", s.SectionLength()),
	}
	if s.SyntaxIndicator() {
		attrs = append(attrs,
			output.A("tid_ext", s.TableIDExtension()),
			output.A("version", s.Version()),
			output.A("current", s.CurrentNext()),
			output.A("section", s.SectionNumber()),
			output.A("last_section", s.LastSectionNumber()))
	}
	return attrs
}

// Print validates s against its table type and prints it. Descriptor lists
// are handed to lp. A section that does not validate is printed as hex along
// with the error, which is returned.
func Print(s Section, p *output.Printer, lp ListPrinter, opts ...ValidateOption) error {
	sp := sectionPrinter{p: p, lp: lp}
	var body func()
	var err error

	switch id := s.TableID(); {
	case id == TableIDPAT:
		var pat PAT
		if pat, err = ValidatePAT(s, opts...); err == nil {
			body = func() { sp.pat(pat) }
		}
	case id == TableIDCAT || id == TableIDTSDT:
		var d Descriptors
		if id == TableIDCAT {
			d, err = ValidateCAT(s, opts...)
		} else {
			d, err = ValidateTSDT(s, opts...)
		}
		if err == nil {
			body = func() { sp.descriptors(d.Descriptors()) }
		}
	case id == TableIDPMT:
		var pmt PMT
		if pmt, err = ValidatePMT(s, opts...); err == nil {
			body = func() { sp.pmt(pmt) }
		}
	case id == TableIDNITActual || id == TableIDNITOther || id == TableIDBAT:
		var nit NIT
		if id == TableIDBAT {
			nit, err = ValidateBAT(s, opts...)
		} else {
			nit, err = ValidateNIT(s, opts...)
		}
		if err == nil {
			body = func() { sp.nit(nit) }
		}
	case id == TableIDSDTActual || id == TableIDSDTOther:
		var sdt SDT
		if sdt, err = ValidateSDT(s, opts...); err == nil {
			body = func() { sp.sdt(sdt) }
		}
	case id >= TableIDEITFirst && id <= TableIDEITLast:
		var eit EIT
		if eit, err = ValidateEIT(s, opts...); err == nil {
			body = func() { sp.eit(eit) }
		}
	case id == TableIDTDT:
		var tdt TDT
		if tdt, err = ValidateTDT(s, opts...); err == nil {
			body = func() { p.Element("TIME", output.A("utc", formatTime(tdt.UTC()))) }
		}
	case id == TableIDTOT:
		var tot TOT
		if tot, err = ValidateTOT(s, opts...); err == nil {
			body = func() {
				p.Element("TIME", output.A("utc", formatTime(tot.UTC())))
				sp.descriptors(tot.Descriptors())
			}
		}
	case id == TableIDRST:
		var rst RST
		if rst, err = ValidateRST(s, opts...); err == nil {
			body = func() { sp.rst(rst) }
		}
	case id == TableIDSIT:
		var sit SIT
		if sit, err = ValidateSIT(s, opts...); err == nil {
			body = func() { sp.sit(sit) }
		}
	default:
		var v Section
		if v, err = Validate(s, opts...); err == nil {
			body = func() { p.Element("PAYLOAD", output.A("data", output.HexBytes(v.Payload()))) }
		}
	}

	if err != nil {
		attrs := []output.Attr{
			output.A("table_id", output.Hex(uint64(s.TableID()), 2)),
			output.A("name", TableName(s.TableID())),
			output.A("error", err.Error()),
			output.A("data", output.HexBytes(s)),
		}
		p.Element("SECTION", attrs...)
		return err
	}
	p.Open("SECTION", header(s)...)
	body()
	p.Close("SECTION")
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "undefined"
	}
	return t.Format(timeLayout)
}

func (sp sectionPrinter) pat(pat PAT) {
	for _, prog := range pat.Programs() {
		name := "PROGRAM"
		if prog.Number == 0 {
			name = "NETWORK"
		}
		sp.p.Element(name, output.A("number", prog.Number), output.A("pid", prog.PID))
	}
}

func (sp sectionPrinter) pmt(pmt PMT) {
	sp.p.Element("PCR", output.A("pid", pmt.PCRPID()))
	sp.descriptors(pmt.ProgramInfo())
	for _, es := range pmt.Streams() {
		sp.p.Open("ES", output.A("pid", es.PID), output.A("streamtype", output.Hex(uint64(es.Type), 2)))
		sp.descriptors(es.Descriptors)
		sp.p.Close("ES")
	}
}

func (sp sectionPrinter) nit(nit NIT) {
	sp.descriptors(nit.Descriptors())
	for _, ts := range nit.TransportStreams() {
		sp.p.Open("TS", output.A("tsid", ts.TSID), output.A("onid", ts.ONID))
		sp.descriptors(ts.Descriptors)
		sp.p.Close("TS")
	}
}

func (sp sectionPrinter) sdt(sdt SDT) {
	sp.p.Element("SDT", output.A("onid", sdt.OriginalNetworkID()))
	for _, svc := range sdt.Services() {
		sp.p.Open("SERVICE", output.A("sid", svc.ID),
			output.A("eit_schedule", svc.EITSchedule),
			output.A("eit_pf", svc.EITPresentFollowing),
			output.A("running", svc.RunningStatus),
			output.A("free_ca", svc.FreeCA))
		sp.descriptors(svc.Descriptors)
		sp.p.Close("SERVICE")
	}
}

func (sp sectionPrinter) eit(eit EIT) {
	sp.p.Element("EIT", output.A("tsid", eit.TransportStreamID()), output.A("onid", eit.OriginalNetworkID()),
		output.A("segment_last_section", eit.SegmentLastSectionNumber()),
		output.A("last_table_id", output.Hex(uint64(eit.LastTableID()), 2)))
	for _, ev := range eit.Events() {
		sp.p.Open("EVENT", output.A("id", ev.ID),
			output.A("start", formatTime(ev.Start)),
			output.A("duration", ev.Duration),
			output.A("running", ev.RunningStatus),
			output.A("free_ca", ev.FreeCA))
		sp.descriptors(ev.Descriptors)
		sp.p.Close("EVENT")
	}
}

func (sp sectionPrinter) rst(rst RST) {
	for _, st := range rst.Statuses() {
		sp.p.Element("STATUS", output.A("tsid", st.TSID), output.A("onid", st.ONID),
			output.A("sid", st.ServiceID), output.A("eid", st.EventID), output.A("running", st.Status))
	}
}

func (sp sectionPrinter) sit(sit SIT) {
	sp.descriptors(sit.Descriptors())
	for _, svc := range sit.Services() {
		sp.p.Open("SERVICE", output.A("sid", svc.ID), output.A("running", svc.RunningStatus))
		sp.descriptors(svc.Descriptors)
		sp.p.Close("SERVICE")
	}
}
