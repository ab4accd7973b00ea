package main

import (
	"fmt"
	"os"

	"github.com/eluv-io/log-go"
	"github.com/spf13/cobra"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/elvbs/cmd"
)

func main() {
	cmdRoot := &cobra.Command{
		Use:          "elvbs",
		Short:        "Broadcast bitstream tool",
		Long:         "Validate and print PSI/SI sections, SCTE-35 cues, PDU framing and ST 2038 ancillary data",
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			level, _ := c.Flags().GetString("log-level")
			file, _ := c.Flags().GetString("log-file")
			log.SetDefault(&log.Config{
				Level:   level,
				Handler: "text",
				File: &log.LumberjackConfig{
					Filename:  file,
					LocalTime: true,
				},
			})
			log.Info("Starting elvbs", "version", bitstream.Version(), "command", c.Name())
			return nil
		},
	}
	cmdRoot.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn or error")
	cmdRoot.PersistentFlags().String("log-file", "elvbs.log", "log file")

	for _, initCmd := range []func(*cobra.Command) error{
		cmd.InitSections,
		cmd.InitSCTE35,
		cmd.InitANC,
		cmd.InitPDU,
		cmd.InitID3,
	} {
		if err := initCmd(cmdRoot); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	err := cmdRoot.Execute()
	if err != nil {
		fmt.Printf("Command failed\n")
		os.Exit(1)
	}
}
