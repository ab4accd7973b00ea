package transport

import (
	"io"

	"github.com/eluv-io/bitstream/rtp"
)

// rtpProto reads TS carried in RTP over UDP (SMPTE 2022-2 style, payload type
// 33).
type rtpProto struct {
	url  string
	mode TsPackagingMode
}

// NewRTPTransport returns an RTP input. With stripHeader the reader returns
// bare TS packets, otherwise whole RTP packets.
func NewRTPTransport(url string, stripHeader bool) Transport {
	mode := RtpTs
	if stripHeader {
		mode = RawTs
	}
	return &rtpProto{url: url, mode: mode}
}

func (r *rtpProto) URL() string {
	return r.url
}

func (r *rtpProto) Handler() string {
	return "rtp"
}

func (r *rtpProto) PackagingMode() TsPackagingMode {
	return r.mode
}

func (r *rtpProto) Open() (io.ReadCloser, error) {
	conn, err := listenUDP(r.url)
	if err != nil {
		return nil, err
	}
	var decap decapFunc
	if r.mode == RawTs {
		decap = (&rtpDecap{}).payload
	}
	return newDatagramReader(conn, decap), nil
}

// rtpDecap strips RTP headers and reports sequence number gaps.
type rtpDecap struct {
	seq     uint16
	started bool
}

func (d *rtpDecap) payload(msg []byte) ([]byte, error) {
	if _, err := StripRTP(msg); err != nil {
		return nil, err
	}
	p := rtp.Packet(msg)
	seq := p.Sequence()
	if d.started && seq != d.seq+1 {
		log.Debug("rtp sequence gap", "expected", d.seq+1, "got", seq)
	}
	d.seq, d.started = seq, true
	return p.Payload(), nil
}

// StripRTP returns the offset of the TS payload in an RTP datagram.
func StripRTP(data []byte) (int, error) {
	return rtp.Strip(data)
}
