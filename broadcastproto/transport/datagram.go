package transport

import (
	"io"
)

const maxDatagramSize = 1<<16 - 1

// decapFunc returns the TS bytes carried in one datagram or message.
type decapFunc func(msg []byte) ([]byte, error)

// datagramReader turns a message oriented source (a UDP socket, an SRT
// connection in message mode) into a byte stream. Each message is read whole
// and handed out over as many Read calls as needed, so that no datagram is
// truncated by a short read buffer.
type datagramReader struct {
	src     io.ReadCloser
	decap   decapFunc
	buf     []byte
	pending []byte
}

func newDatagramReader(src io.ReadCloser, decap decapFunc) *datagramReader {
	return &datagramReader{
		src:   src,
		decap: decap,
		buf:   make([]byte, maxDatagramSize),
	}
}

func (r *datagramReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		n, err := r.src.Read(r.buf)
		if err != nil {
			return 0, err
		}
		msg := r.buf[:n]
		if r.decap != nil {
			if msg, err = r.decap(msg); err != nil {
				log.Warn("dropping message", "err", err, "len", n)
				continue
			}
		}
		r.pending = msg
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *datagramReader) Close() error {
	return r.src.Close()
}
