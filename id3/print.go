package id3

import (
	"strings"

	"github.com/eluv-io/bitstream/output"
)

// Print prints t and its frames. Frames that cannot be decoded are printed
// as hex with the error.
func Print(t Tag, p *output.Printer) error {
	p.Open("ID3",
		output.A("version", t.Version()),
		output.A("revision", t.Revision()),
		output.A("size", t.Size()),
		output.A("unsync", t.Unsynchronised()),
		output.A("footer", t.HasFooter()))
	defer p.Close("ID3")

	it := t.Walk()
	for it.Next() {
		printFrame(it.Frame(), p)
	}
	if err := it.Err(); err != nil {
		p.Element("ERROR", output.A("error", err.Error()))
		return err
	}
	return nil
}

func printFrame(f Frame, p *output.Printer) {
	attrs := []output.Attr{output.A("id", f.ID), output.A("size", len(f.Data))}
	if f.Flags != 0 {
		attrs = append(attrs, output.A("flags", output.Hex(uint64(f.Flags), 4)))
	}
	var err error
	switch {
	case IsText(f.ID):
		var values []string
		if values, err = Text(f, p.Transcoder); err == nil {
			attrs = append(attrs, output.A("text", strings.Join(values, "|")))
		}
	case f.ID == FrameUserText:
		var desc, value string
		if desc, value, err = UserText(f, p.Transcoder); err == nil {
			attrs = append(attrs, output.A("description", desc), output.A("text", value))
		}
	case f.ID == FramePrivate || f.ID == FrameUFID:
		var o Owned
		if o, err = DecodeOwned(f); err == nil {
			attrs = append(attrs, output.A("owner", o.Owner), output.A("data", output.HexBytes(o.Data)))
		}
	default:
		attrs = append(attrs, output.A("data", output.HexBytes(f.Data)))
	}
	if err != nil {
		attrs = append(attrs, output.A("error", err.Error()), output.A("data", output.HexBytes(f.Data)))
	}
	p.Element("FRAME", attrs...)
}
