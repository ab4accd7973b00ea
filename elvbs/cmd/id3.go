package cmd

import (
	"github.com/spf13/cobra"

	"github.com/eluv-io/bitstream/id3"
	"github.com/eluv-io/bitstream/output"
)

func InitID3(cmdRoot *cobra.Command) error {
	cmdID3 := &cobra.Command{
		Use:   "id3",
		Short: "Print an ID3v2 tag",
		Long:  "Validate and print an ID3v2 tag, or the ID3 tag carried in a CMAF emsg box with --emsg.",
		RunE:  doID3,
	}
	cmdRoot.AddCommand(cmdID3)

	addFormatFlag(cmdID3)
	cmdID3.PersistentFlags().StringP("file", "f", "", "(mandatory) input file, - for stdin")
	cmdID3.PersistentFlags().Bool("emsg", false, "the input is an emsg box")
	return nil
}

func doID3(c *cobra.Command, args []string) error {
	buf, err := readInput(c, c.Flag("file").Value.String())
	if err != nil {
		return err
	}
	emsg, _ := c.Flags().GetBool("emsg")
	p, err := newPrinter(c)
	if err != nil {
		return err
	}

	return document(p, "ID3", func() error {
		var tag id3.Tag
		if emsg {
			var ev id3.Event
			if tag, ev, err = id3.DecodeEmsg(buf); err != nil {
				return err
			}
			p.Element("EMSG",
				output.A("id", ev.ID),
				output.A("timescale", ev.Timescale),
				output.A("presentation_time", ev.PresentationTime),
				output.A("duration", ev.Duration))
		} else if tag, err = id3.Validate(buf); err != nil {
			return err
		}
		return id3.Print(tag, p)
	})
}
