// Package cmd holds the sub-commands of elvbs.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/eluv-io/errors-go"
	"github.com/spf13/cobra"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
)

var log = bitstream.NewLog("/bitstream/elvbs")

func addFormatFlag(c *cobra.Command) {
	c.PersistentFlags().String("format", "text", "output format: text or xml")
}

// newPrinter returns a printer writing one fragment per line to the output
// of c.
func newPrinter(c *cobra.Command) (*output.Printer, error) {
	mode, err := output.ParseMode(c.Flag("format").Value.String())
	if err != nil {
		return nil, err
	}
	w := c.OutOrStdout()
	return output.New(mode, func(fragment string) {
		_, _ = fmt.Fprintln(w, fragment)
	}), nil
}

// document runs fn inside a root element when printing XML.
func document(p *output.Printer, name string, fn func() error) error {
	if p.Mode == output.XML {
		p.Open(name)
		defer p.Close(name)
	}
	return fn()
}

func errInput(flag string) error {
	return errors.E("elvbs", errors.K.Invalid, "reason", "input is needed after --"+flag)
}

// readInput reads the named file, or stdin for "-".
func readInput(c *cobra.Command, name string) ([]byte, error) {
	if name == "" {
		return nil, errInput("file")
	}
	var buf []byte
	var err error
	if name == "-" {
		buf, err = io.ReadAll(c.InOrStdin())
	} else {
		buf, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, errors.E("elvbs", errors.K.IO, err, "file", name)
	}
	return buf, nil
}

// interruptible returns a context cancelled on SIGINT.
func interruptible(c *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}
