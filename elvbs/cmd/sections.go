package cmd

import (
	"github.com/spf13/cobra"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/broadcastproto/mpegts"
	"github.com/eluv-io/bitstream/broadcastproto/transport"
	"github.com/eluv-io/bitstream/desc"
	"github.com/eluv-io/bitstream/output"
	"github.com/eluv-io/bitstream/psi"
	"github.com/eluv-io/bitstream/scte35"
)

func InitSections(cmdRoot *cobra.Command) error {
	cmdSections := &cobra.Command{
		Use:   "sections",
		Short: "Print the PSI/SI tables of a transport stream",
		Long: "Extract the sections of a transport stream, assemble them into tables and print every " +
			"complete table. The input is a file or a udp://, rtp:// or srt:// URL.",
		RunE: doSections,
	}
	cmdRoot.AddCommand(cmdSections)

	addFormatFlag(cmdSections)
	cmdSections.PersistentFlags().StringP("url", "u", "", "(mandatory) file or URL of the transport stream")
	cmdSections.PersistentFlags().IntSlice("pid", nil, "PIDs to extract sections from, default follows PAT and PMTs")
	cmdSections.PersistentFlags().Bool("lenient", false, "accept descriptors longer than their fields")
	cmdSections.PersistentFlags().Bool("no-crc", false, "do not verify section CRCs")
	cmdSections.PersistentFlags().Bool("next", false, "also print tables not yet applicable")
	cmdSections.PersistentFlags().Bool("stats", false, "print demux statistics and input warnings at the end")
	return nil
}

func doSections(c *cobra.Command, args []string) error {
	url := c.Flag("url").Value.String()
	if url == "" && len(args) > 0 {
		url = args[0]
	}
	if url == "" {
		return errInput("url")
	}
	pids, err := c.Flags().GetIntSlice("pid")
	if err != nil {
		return err
	}
	lenient, _ := c.Flags().GetBool("lenient")
	noCRC, _ := c.Flags().GetBool("no-crc")
	next, _ := c.Flags().GetBool("next")
	withStats, _ := c.Flags().GetBool("stats")

	p, err := newPrinter(c)
	if err != nil {
		return err
	}

	vopts := []psi.ValidateOption{psi.WithCRC(!noCRC)}
	aopts := []psi.AssemblerOption{psi.WithValidateOptions(vopts...)}
	if next {
		aopts = append(aopts, psi.AcceptNext())
	}
	var dopts []desc.Option
	if lenient {
		dopts = append(dopts, desc.Lenient())
	}
	listPrinter := func(list []byte, p *output.Printer) {
		_ = desc.PrintList(list, p, dopts...)
	}

	cfg := mpegts.DefaultConfig()
	cfg.SectionPIDs = pids
	d := mpegts.NewDemux(cfg, psi.NewAssembler(aopts...),
		mpegts.OnTable(func(pid int, t *psi.Table) {
			printTable(p, pid, t, listPrinter, vopts)
		}),
		mpegts.OnError(func(pid int, err error) {
			p.Element("ERROR", output.A("pid", pid), output.A("error", err.Error()))
		}))

	// warnings logged while reading the input, keyed by the source label
	// RunURL associates with its goroutine
	source := transport.New(url).URL()
	warnings := make(chan string, maxWarnings)
	bitstream.RegisterWarnErrChanForSource(source, warnings)

	ctx, cancel := interruptible(c)
	defer cancel()
	return document(p, "SECTIONS", func() error {
		err := d.RunURL(ctx, url)
		bitstream.SourceEnded(source)
		if withStats {
			printStats(p, d.Stats())
			for w := range warnings {
				p.Element("WARNING", output.A("message", w))
			}
		}
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
}

const maxWarnings = 100

func printTable(p *output.Printer, pid int, t *psi.Table, lp psi.ListPrinter, vopts []psi.ValidateOption) {
	p.Open("TABLE", output.A("pid", pid), output.A("sections", t.Len()))
	defer p.Close("TABLE")
	for _, s := range t.Sections() {
		if s.TableID() == psi.TableIDSCTE35 {
			si, err := scte35.Validate(s, vopts...)
			if err != nil {
				p.Element("SCTE35", output.A("error", err.Error()), output.A("data", output.HexBytes(s)))
				continue
			}
			if err = scte35.Print(si, p); err != nil {
				log.Debug("scte35 section", "pid", pid, "err", err)
			}
			continue
		}
		if err := psi.Print(s, p, lp, vopts...); err != nil {
			log.Debug("invalid section", "pid", pid, "table_id", s.TableID(), "err", err)
		}
	}
}

func printStats(p *output.Printer, st mpegts.Stats) {
	p.Element("STATS",
		output.A("packets", st.PacketsReceived),
		output.A("bad_packets", st.BadPackets),
		output.A("cc_errors", st.ErrorsCC),
		output.A("sections", st.SectionsPushed),
		output.A("section_errors", st.SectionErrors),
		output.A("sections_dropped", st.SectionsDropped),
		output.A("tables", st.TablesCompleted),
		output.A("anc_pes", st.ANCPES))
}
