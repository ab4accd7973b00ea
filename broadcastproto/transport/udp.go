package transport

import (
	"io"
	"net"
	"strings"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// readBufferSize is the socket receive buffer requested for UDP inputs.
const readBufferSize = 10 * 1024 * 1024

var log = bitstream.NewLog("/bitstream/transport")

var _ Transport = (*udpProto)(nil)

// udpProto reads TS packets carried directly in UDP datagrams.
type udpProto struct {
	url string
}

func NewUDPTransport(url string) Transport {
	return &udpProto{url: url}
}

func (u *udpProto) URL() string {
	return u.url
}

func (u *udpProto) Handler() string {
	return "udp"
}

func (u *udpProto) Open() (io.ReadCloser, error) {
	conn, err := listenUDP(u.url)
	if err != nil {
		return nil, err
	}
	return newDatagramReader(conn, nil), nil
}

// hostPort drops the scheme of a udp:// or rtp:// URL.
func hostPort(url string) string {
	for _, scheme := range []string{"udp://", "rtp://"} {
		url = strings.TrimPrefix(url, scheme)
	}
	return url
}

// listenUDP binds to the address of url, joining the group of a multicast
// address.
func listenUDP(url string) (*net.UDPConn, error) {
	e := errors.Template("transport.listenUDP", errors.K.IO, "url", url)
	addr, err := net.ResolveUDPAddr("udp", hostPort(url))
	if err != nil {
		return nil, e(err)
	}

	var conn *net.UDPConn
	if addr.IP.IsMulticast() {
		conn, err = net.ListenMulticastUDP("udp", nil, addr)
	} else {
		conn, err = net.ListenUDP("udp", addr)
	}
	if err != nil {
		return nil, e(err)
	}
	if err = conn.SetReadBuffer(readBufferSize); err != nil {
		log.Debug("cannot set read buffer", "err", err, "size", readBufferSize)
	}
	log.Debug("listening", "addr", addr, "multicast", addr.IP.IsMulticast())
	return conn, nil
}
