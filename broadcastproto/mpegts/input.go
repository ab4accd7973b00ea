package mpegts

import (
	"context"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/broadcastproto/transport"
)

// RunURL opens url with the transport matching its scheme and runs the demux
// on the stream. Cancelling ctx closes the input.
func (d *Demux) RunURL(ctx context.Context, url string) error {
	t := transport.New(url)
	rc, err := t.Open()
	if err != nil {
		return errors.E("mpegts.RunURL", errors.K.IO, err, "url", url, "handler", t.Handler())
	}
	defer func() { _ = rc.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = rc.Close() })
	defer stop()

	bitstream.AssociateGIDWithSource(t.URL())
	defer bitstream.DissociateGIDFromSource()
	log.Info("reading transport stream", "url", t.URL(), "handler", t.Handler())

	err = d.Run(ctx, rc)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
