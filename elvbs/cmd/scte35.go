package cmd

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/eluv-io/errors-go"
	"github.com/grafov/m3u8"
	"github.com/spf13/cobra"

	"github.com/eluv-io/bitstream/scte35"
)

func InitSCTE35(cmdRoot *cobra.Command) error {
	cmdSCTE35 := &cobra.Command{
		Use:   "scte35 <cue>",
		Short: "Decode an SCTE-35 cue",
		Long: "Validate and print a splice_info_section given in base64 or hex. With --hls the cue " +
			"is also printed as the tag of an HLS media segment.",
		Args: cobra.ExactArgs(1),
		RunE: doSCTE35,
	}
	cmdRoot.AddCommand(cmdSCTE35)

	addFormatFlag(cmdSCTE35)
	cmdSCTE35.PersistentFlags().String("encoding", "base64", "encoding of the cue: base64 or hex")
	cmdSCTE35.PersistentFlags().Bool("hls", false, "print the cue as an HLS media playlist")
	cmdSCTE35.PersistentFlags().Float64("segment-duration", 6, "duration of the HLS segment carrying the cue")
	return nil
}

func decodeCue(cue, encoding string) ([]byte, error) {
	var buf []byte
	var err error
	switch encoding {
	case "base64":
		buf, err = base64.StdEncoding.DecodeString(strings.TrimSpace(cue))
	case "hex":
		buf, err = hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(cue), "0x"))
	default:
		return nil, errors.E("elvbs.scte35", errors.K.Invalid, "reason", "unknown encoding", "encoding", encoding)
	}
	if err != nil {
		return nil, errors.E("elvbs.scte35", errors.K.Invalid, err, "encoding", encoding)
	}
	return buf, nil
}

func doSCTE35(c *cobra.Command, args []string) error {
	buf, err := decodeCue(args[0], c.Flag("encoding").Value.String())
	if err != nil {
		return err
	}
	withHLS, _ := c.Flags().GetBool("hls")
	duration, _ := c.Flags().GetFloat64("segment-duration")

	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	s, err := scte35.Validate(buf)
	if err != nil {
		return err
	}
	if err = document(p, "CUES", func() error { return scte35.Print(s, p) }); err != nil {
		return err
	}
	if !withHLS {
		return nil
	}

	pl, err := m3u8.NewMediaPlaylist(1, 1)
	if err != nil {
		return errors.E("elvbs.scte35", errors.K.Invalid, err)
	}
	if err = pl.Append("segment0.ts", duration, ""); err != nil {
		return errors.E("elvbs.scte35", errors.K.Invalid, err)
	}
	if err = scte35.AddCue(pl, s); err != nil {
		return err
	}
	_, err = fmt.Fprint(c.OutOrStdout(), pl.Encode().String())
	return err
}
