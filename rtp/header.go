package rtp

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// Header is a decoded copy of the RTP header fields, convenient for logging
// and JSON.
type Header struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CSRCCount      uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRCs          []uint32
	// Number of bytes in the extension (header + payload), if present
	ExtensionByteCount int
}

// ByteLength is the size of the header in bytes, CSRCs and extension included.
func (h *Header) ByteLength() int {
	length := HeaderLen
	if h.CSRCCount > 0 {
		length += int(h.CSRCCount) * 4
	}
	if h.Extension {
		length += h.ExtensionByteCount
	}
	return length
}

// ParseHeader validates data and decodes its header.
func ParseHeader(data []byte) (*Header, error) {
	p, err := Validate(data)
	if err != nil {
		return nil, err
	}
	header := &Header{
		Version:        p.Version(),
		Padding:        p.Padding(),
		Extension:      p.Extension(),
		CSRCCount:      p.CSRCCount(),
		Marker:         p.Marker(),
		PayloadType:    p.PayloadType(),
		SequenceNumber: p.Sequence(),
		Timestamp:      p.Timestamp(),
		SSRC:           p.SSRC(),
	}
	for i := 0; i < int(header.CSRCCount); i++ {
		header.CSRCs = append(header.CSRCs, p.CSRC(i))
	}
	if header.Extension {
		header.ExtensionByteCount = ExtensionHeaderLen + 4*int(p.ExtensionWords())
	}
	return header, nil
}

// Strip returns the offset of the payload of an RTP packet carrying MPEG-TS,
// checking that at least one TS packet follows the header.
func Strip(data []byte) (int, error) {
	p, err := Validate(data)
	if err != nil {
		return 0, err
	}
	if len(p.Payload()) < 188 {
		return 0, errors.E("rtp.Strip", errors.K.Invalid, bitstream.ErrTooShort,
			"reason", "packet too short for RTP and TS", "len", len(data))
	}
	return p.HeaderLen(), nil
}
