// Package transport opens live inputs carrying MPEG-TS for the command line
// tools: plain UDP, RTP over UDP and SRT.
package transport

import (
	"io"
	"os"
	"strings"

	"github.com/eluv-io/errors-go"
)

// Transport defines the interface for transport protocols that wrap MPEGTS data.
type Transport interface {
	Open() (io.ReadCloser, error)
	URL() string
	Handler() string
}

// TsPackagingMode tells whether TS packets arrive bare or inside RTP.
type TsPackagingMode string

const (
	RawTs TsPackagingMode = "raw_ts"
	RtpTs TsPackagingMode = "rtp_ts"
)

// New picks a transport from the URL scheme. RTP headers are always stripped
// so that readers see a contiguous TS byte stream. Anything without a known
// scheme is opened as a file.
func New(url string) Transport {
	switch {
	case strings.HasPrefix(url, "udp://"):
		return NewUDPTransport(url)
	case strings.HasPrefix(url, "rtp://"):
		return NewRTPTransport(url, true)
	case strings.HasPrefix(url, "srt://"):
		return NewSRTTransport(url, RtpTs, RawTs)
	}
	return &fileProto{path: strings.TrimPrefix(url, "file://")}
}

type fileProto struct {
	path string
}

func (f *fileProto) URL() string {
	return f.path
}

func (f *fileProto) Handler() string {
	return "file"
}

func (f *fileProto) Open() (io.ReadCloser, error) {
	if f.path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	rc, err := os.Open(f.path)
	if err != nil {
		return nil, errors.E("fileProto.Open", errors.K.IO, err, "path", f.path)
	}
	return rc, nil
}
