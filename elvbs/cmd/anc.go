package cmd

import (
	"github.com/spf13/cobra"

	"github.com/eluv-io/bitstream/broadcastproto/mpegts"
	"github.com/eluv-io/bitstream/output"
	"github.com/eluv-io/bitstream/psi"
	"github.com/eluv-io/bitstream/smpte20xx/anc"
)

func InitANC(cmdRoot *cobra.Command) error {
	cmdANC := &cobra.Command{
		Use:   "anc",
		Short: "Decode SMPTE ST 2038 ancillary data",
		Long: "Decode a single ST 2038 PES packet read from --file, or every ST 2038 PES packet " +
			"carried on --pid of the transport stream at --url.",
		RunE: doANC,
	}
	cmdRoot.AddCommand(cmdANC)

	addFormatFlag(cmdANC)
	cmdANC.PersistentFlags().StringP("file", "f", "", "file holding one PES packet, - for stdin")
	cmdANC.PersistentFlags().StringP("url", "u", "", "file or URL of a transport stream")
	cmdANC.PersistentFlags().Int("pid", -1, "PID of the ST 2038 stream, mandatory with --url")
	return nil
}

func doANC(c *cobra.Command, args []string) error {
	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	url := c.Flag("url").Value.String()
	if url == "" {
		buf, err := readInput(c, c.Flag("file").Value.String())
		if err != nil {
			return err
		}
		return document(p, "ANC", func() error {
			pes, err := anc.ParsePES(buf)
			if err != nil {
				p.Element("ERROR", output.A("error", err.Error()))
				return err
			}
			anc.Print(pes, p)
			return nil
		})
	}

	pid, _ := c.Flags().GetInt("pid")
	if pid < 0 || pid >= mpegts.PIDNull {
		return errInput("pid")
	}
	cfg := mpegts.DefaultConfig()
	cfg.ANCPID = pid
	d := mpegts.NewDemux(cfg, psi.NewAssembler(),
		mpegts.OnANC(func(pid int, pes *anc.PES) {
			anc.Print(pes, p)
		}),
		mpegts.OnError(func(pid int, err error) {
			if pid == cfg.ANCPID {
				p.Element("ERROR", output.A("pid", pid), output.A("error", err.Error()))
			}
		}))

	ctx, cancel := interruptible(c)
	defer cancel()
	return document(p, "ANC", func() error {
		if err := d.RunURL(ctx, url); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
}
