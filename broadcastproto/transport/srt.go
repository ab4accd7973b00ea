package transport

import (
	"io"
	"strings"

	"github.com/datarhei/gosrt"
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream/rtp"
)

var _ Transport = (*srtProto)(nil)

// srtProto reads TS from an SRT connection, in caller mode by default and in
// listener mode when the URL asks for it (mode=listener).
type srtProto struct {
	url string
	in  TsPackagingMode
	out TsPackagingMode
}

// NewSRTTransport returns an SRT input whose messages carry TS packaged as in.
// RTP headers are removed when out is RawTs.
func NewSRTTransport(url string, in TsPackagingMode, out TsPackagingMode) Transport {
	return &srtProto{url: url, in: in, out: out}
}

func (s *srtProto) URL() string {
	return s.url
}

func (s *srtProto) Handler() string {
	return "srt"
}

func (s *srtProto) PackagingMode() TsPackagingMode {
	return s.out
}

func (s *srtProto) Open() (io.ReadCloser, error) {
	e := errors.Template("srtProto.Open", errors.K.IO, "url", s.url)

	cfg := srt.DefaultConfig()
	addr, err := cfg.UnmarshalURL(s.url)
	if err != nil {
		return nil, e(err)
	}
	// message API: one Read returns one sender message
	cfg.MessageAPI = true

	var conn srt.Conn
	if strings.Contains(s.url, "listen") {
		conn, err = acceptPublisher(addr, cfg)
	} else {
		conn, err = srt.Dial("srt", addr, cfg)
	}
	if err != nil {
		return nil, e(err)
	}

	var decap decapFunc
	if s.in == RtpTs && s.out == RawTs {
		decap = decapSRT
	}
	return newDatagramReader(conn, decap), nil
}

// acceptPublisher waits for the first publishing caller.
func acceptPublisher(addr string, cfg srt.Config) (srt.Conn, error) {
	ln, err := srt.Listen("srt", addr, cfg)
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	req, err := ln.Accept2()
	if err != nil {
		return nil, err
	}
	streamID := req.StreamId()
	log.Debug("srt connection request", "remote", req.RemoteAddr(), "version", req.Version(), "stream_id", streamID)

	if req.Version() > 4 && strings.Contains(streamID, "subscribe") {
		req.Reject(srt.REJX_BAD_MODE)
		return nil, errors.E("transport.acceptPublisher", errors.K.Permission,
			"reason", "only publishing callers are accepted", "stream_id", streamID)
	}
	if cfg.Passphrase != "" {
		if err = req.SetPassphrase(cfg.Passphrase); err != nil {
			req.Reject(srt.REJX_UNAUTHORIZED)
			return nil, errors.E("transport.acceptPublisher", errors.K.Permission, err)
		}
	}
	return req.Accept()
}

// decapSRT strips the RTP header of messages that do not start with a TS
// sync byte.
func decapSRT(msg []byte) ([]byte, error) {
	if len(msg) > 0 && msg[0] == 0x47 {
		return msg, nil
	}
	p, err := rtp.Validate(msg)
	if err != nil {
		return nil, err
	}
	return p.Payload(), nil
}
