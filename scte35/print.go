package scte35

import (
	"github.com/eluv-io/bitstream/output"
)

// Print prints s with its splice command and descriptors. Segmentation
// descriptors are printed from their gots decoding when it succeeds.
func Print(s SpliceInfo, p *output.Printer) error {
	p.Open("SCTE35",
		output.A("protocol_version", s.ProtocolVersion()),
		output.A("encrypted", s.Encrypted()),
		output.A("pts_adjustment", s.PTSAdjustment()),
		output.A("tier", output.Hex(uint64(s.Tier()), 3)),
		output.A("command", CommandName(s.CommandType())),
		output.A("command_length", s.CommandLength()))
	defer p.Close("SCTE35")

	if s.Encrypted() {
		p.Element("ENCRYPTED",
			output.A("algorithm", s.EncryptionAlgorithm()),
			output.A("cw_index", s.CWIndex()))
		return nil
	}
	if err := printCommand(s, p); err != nil {
		return err
	}

	descs, err := s.Descriptors()
	if err != nil {
		p.Element("ERROR", output.A("error", err.Error()))
		return err
	}
	var segs []Segmentation
	if g, err := Decode(s); err == nil {
		if info, err := Convert(0, g); err == nil {
			segs = info.SpliceDescriptors
		}
	}
	for _, d := range descs {
		if d.Tag == TagSegmentation && d.Identifier == CUEI && len(segs) > 0 {
			printSegmentation(segs[0], p)
			segs = segs[1:]
			continue
		}
		p.Element("DESCRIPTOR",
			output.A("tag", output.Hex(uint64(d.Tag), 2)),
			output.A("name", DescriptorName(d.Tag)),
			output.A("identifier", output.Hex(uint64(d.Identifier), 8)),
			output.A("data", output.HexBytes(d.Data)))
	}
	return nil
}

func printTime(name string, t SpliceTime) output.Attr {
	if !t.Specified {
		return output.A(name, "unspecified")
	}
	return output.A(name, t.PTS)
}

func printCommand(s SpliceInfo, p *output.Printer) error {
	switch s.CommandType() {
	case CommandNull, CommandBandwidthReservation:
		return nil
	case CommandTimeSignal:
		t, err := DecodeTimeSignal(s.Command())
		if err != nil {
			p.Element("ERROR", output.A("error", err.Error()))
			return err
		}
		p.Element("TIME_SIGNAL", printTime("pts", t))
	case CommandInsert:
		si, err := DecodeSpliceInsert(s.Command())
		if err != nil {
			p.Element("ERROR", output.A("error", err.Error()))
			return err
		}
		attrs := []output.Attr{
			output.A("event_id", si.EventID),
			output.A("cancel", si.Cancel),
		}
		if !si.Cancel {
			attrs = append(attrs,
				output.A("out_of_network", si.OutOfNetwork),
				output.A("immediate", si.Immediate))
			if si.ProgramSplice && !si.Immediate {
				attrs = append(attrs, printTime("pts", si.Time))
			}
			if si.HasDuration {
				attrs = append(attrs, output.A("duration", si.Duration), output.A("auto_return", si.AutoReturn))
			}
			attrs = append(attrs,
				output.A("program_id", si.UniqueProgramID),
				output.A("avail", si.AvailNum),
				output.A("avails_expected", si.AvailsExpected))
		}
		if len(si.Components) == 0 {
			p.Element("SPLICE_INSERT", attrs...)
			return nil
		}
		p.Open("SPLICE_INSERT", attrs...)
		for _, c := range si.Components {
			attrs := []output.Attr{output.A("tag", c.Tag)}
			if !si.Immediate {
				attrs = append(attrs, printTime("pts", c.Time))
			}
			p.Element("COMPONENT", attrs...)
		}
		p.Close("SPLICE_INSERT")
	default:
		p.Element("COMMAND",
			output.A("type", output.Hex(uint64(s.CommandType()), 2)),
			output.A("data", output.HexBytes(s.Command())))
	}
	return nil
}

func printSegmentation(seg Segmentation, p *output.Printer) {
	attrs := []output.Attr{
		output.A("event_id", seg.EventID),
		output.A("cancel", seg.EventCancel),
		output.A("type", output.Hex(uint64(seg.TypeID), 2)),
		output.A("segment", seg.SegmentNum),
		output.A("expected", seg.SegmentsExpected),
	}
	if seg.Duration > 0 {
		attrs = append(attrs, output.A("duration", seg.Duration))
	}
	for _, u := range seg.UPIDs {
		if len(u.UPID) > 0 {
			attrs = append(attrs,
				output.A("upid_type", output.Hex(uint64(u.Type), 2)),
				output.A("upid", output.HexBytes(u.UPID)))
		}
	}
	p.Element("SEGMENTATION", attrs...)
}
