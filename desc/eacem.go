package desc

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

// Channel is an entry of the EACEM logical channel descriptors.
type Channel struct {
	ServiceID uint16
	Visible   bool
	Number    uint16
}

// LogicalChannel is an EACEM logical channel (0x83) or HD simulcast logical
// channel (0x88) descriptor. Both are private to specifier 0x28.
type LogicalChannel struct {
	Descriptor
}

var (
	fieldLCNVisible = bitfield.NewFlag(2, 0)
	fieldLCNNumber  = bitfield.NewUint[uint16](2, 6, 10)
)

func ValidateLogicalChannel(buf []byte) (LogicalChannel, error) {
	d, err := expect("desc.ValidateLogicalChannel", buf, TagLogicalChannel, entries(4))
	return LogicalChannel{d}, err
}

func ValidateHDSimulcastLogicalChannel(buf []byte) (LogicalChannel, error) {
	d, err := expect("desc.ValidateHDSimulcastLogicalChannel", buf, TagHDSimulcastLogicalChn, entries(4))
	return LogicalChannel{d}, err
}

// NewLogicalChannel builds a logical channel descriptor with tag
// TagLogicalChannel or TagHDSimulcastLogicalChn.
func NewLogicalChannel(tag uint8, channels ...Channel) (LogicalChannel, error) {
	e := errors.Template("desc.NewLogicalChannel", errors.K.Invalid)
	if tag != TagLogicalChannel && tag != TagHDSimulcastLogicalChn {
		return LogicalChannel{}, e(bitstream.ErrTableIDMismatch, "tag", tag)
	}
	payload := make([]byte, 4*len(channels))
	for i, c := range channels {
		entry := payload[4*i : 4*i+4]
		entry[0], entry[1] = byte(c.ServiceID>>8), byte(c.ServiceID)
		entry[2] = 0x7C
		if err := fieldLCNVisible.Set(entry, c.Visible); err != nil {
			return LogicalChannel{}, e(err)
		}
		if err := fieldLCNNumber.Set(entry, c.Number); err != nil {
			return LogicalChannel{}, e(err, "service_id", c.ServiceID)
		}
	}
	d, err := New(tag, payload)
	return LogicalChannel{d}, err
}

func (l LogicalChannel) Channels() []Channel {
	p := l.Payload()
	channels := make([]Channel, 0, len(p)/4)
	for off := 0; off+4 <= len(p); off += 4 {
		entry := p[off : off+4]
		channels = append(channels, Channel{
			ServiceID: uint16(entry[0])<<8 | uint16(entry[1]),
			Visible:   fieldLCNVisible.Value(entry),
			Number:    fieldLCNNumber.Value(entry),
		})
	}
	return channels
}
