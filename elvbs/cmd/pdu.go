package cmd

import (
	"github.com/spf13/cobra"

	"github.com/eluv-io/bitstream/broadcastproto/mpegts"
	"github.com/eluv-io/bitstream/broadcastproto/pdu"
	"github.com/eluv-io/bitstream/output"
)

func InitPDU(cmdRoot *cobra.Command) error {
	cmdPDU := &cobra.Command{
		Use:   "pdu",
		Short: "Validate a file of PDU framed transport stream data",
		Long: "Walk the PDUs of a file (1 byte type, 16 bit length, payload) and validate the RTP or " +
			"TS packets each one carries.",
		RunE: doPDU,
	}
	cmdRoot.AddCommand(cmdPDU)

	addFormatFlag(cmdPDU)
	cmdPDU.PersistentFlags().StringP("file", "f", "", "(mandatory) input file, - for stdin")
	cmdPDU.PersistentFlags().Bool("lenient", false, "accept a truncated PDU at the end of the file")
	return nil
}

func doPDU(c *cobra.Command, args []string) error {
	buf, err := readInput(c, c.Flag("file").Value.String())
	if err != nil {
		return err
	}
	lenient, _ := c.Flags().GetBool("lenient")
	p, err := newPrinter(c)
	if err != nil {
		return err
	}

	return document(p, "PDUS", func() error {
		pdus, rest, err := pdu.Split(buf, lenient)
		offset := 0
		for _, u := range pdus {
			attrs := []output.Attr{
				output.A("offset", offset),
				output.A("type", u.Type),
				output.A("length", len(u.Payload)),
			}
			if u.Type == pdu.PduTypeRawTs {
				attrs = append(attrs, output.A("ts_packets", len(u.Payload)/mpegts.PacketSize))
			}
			p.Element("PDU", attrs...)
			offset += pdu.PDU_HEADER_LEN + len(u.Payload)
		}
		if err != nil {
			p.Element("ERROR", output.A("offset", len(buf)-len(rest)), output.A("error", err.Error()))
			return err
		}
		if len(rest) > 0 {
			p.Element("TRAILING", output.A("offset", len(buf)-len(rest)), output.A("length", len(rest)))
		}
		p.Element("SUMMARY", output.A("pdus", len(pdus)), output.A("bytes", len(buf)))
		return nil
	})
}
