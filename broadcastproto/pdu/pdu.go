package pdu

import (
	"fmt"

	"github.com/Comcast/gots/v2/packet"
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/broadcastproto/tlv"
	"github.com/eluv-io/bitstream/rtp"
)

// PDU (Protocol Data Unit) definitions for MPEGTS over various transports.
// A PDU is a TLV record with an 8-bit type and a 16-bit big-endian length,
// see tlv.Transport. PDU encapsulation is only used for
// serialization/deserialization of packetized data.

type PduType byte

const PDU_HEADER_LEN = 3

const (
	PduTypeUnknown PduType = iota
	PduTypeRtpTs
	PduTypeRawTs
)

var ErrUnknownPduType = fmt.Errorf("unknown PDU type")

func (pt PduType) String() string {
	switch pt {
	case PduTypeRtpTs:
		return "RTP-TS"
	case PduTypeRawTs:
		return "Raw-TS"
	default:
		return "Unknown"
	}
}

func ByteToPDUType(b byte) (PduType, error) {
	switch b {
	case 0x01:
		return PduTypeRtpTs, nil
	case 0x02:
		return PduTypeRawTs, nil
	}
	return PduTypeUnknown, ErrUnknownPduType
}

// Encode returns the PDU of the given type carrying payload.
func Encode(pduType PduType, payload []byte) ([]byte, error) {
	if pduType == PduTypeUnknown {
		return nil, errors.E("pdu.Encode", errors.K.Invalid, ErrUnknownPduType)
	}
	buf := make([]byte, 0, PDU_HEADER_LEN+len(payload))
	return tlv.Transport.Append(buf, uint32(pduType), payload)
}

// ValidatePDU checks if the provided data starts with a valid PDU and returns
// its type. If the PDU type is not valid, the data is too short, or any other
// error occurs, it returns an error. It also validates the RTP header or raw
// TS packets based on the PDU type. Bytes after the PDU are ignored.
func ValidatePDU(data []byte) (PduType, error) {
	e := errors.Template("pdu.ValidatePDU", errors.K.Invalid)
	if len(data) < PDU_HEADER_LEN {
		return PduTypeUnknown, e(bitstream.ErrTooShort, "reason", "data too short to contain PDU header")
	}
	pduType, err := ByteToPDUType(data[0])
	if err != nil {
		return PduTypeUnknown, e(err)
	}

	it := tlv.Walk(data, len(data), tlv.WithLayout(tlv.Transport), tlv.Lenient())
	if !it.Next() {
		return PduTypeUnknown, e(bitstream.ErrLengthMismatch, "reason", "data length mismatch", "len", len(data))
	}

	return pduType, validatePayload(pduType, it.Record().Value)
}

// PDU is one decoded PDU of a stream.
type PDU struct {
	Type    PduType
	Payload []byte
}

// Split walks a buffer of back-to-back PDUs. Every PDU is validated; the walk
// stops on the first invalid one. With lenient set, a truncated PDU at the end
// of data is left for the caller (its bytes are returned as rest) instead of
// failing the walk.
func Split(data []byte, lenient bool) (pdus []PDU, rest []byte, err error) {
	e := errors.Template("pdu.Split", errors.K.Invalid)
	opts := []tlv.Option{tlv.WithLayout(tlv.Transport)}
	if lenient {
		opts = append(opts, tlv.Lenient())
	}
	it := tlv.Walk(data, len(data), opts...)
	for it.Next() {
		rec := it.Record()
		pduType, err := ByteToPDUType(byte(rec.Tag))
		if err != nil {
			return pdus, data[rec.Offset:], e(err, "offset", rec.Offset)
		}
		if err = validatePayload(pduType, rec.Value); err != nil {
			return pdus, data[rec.Offset:], e(err, "offset", rec.Offset)
		}
		pdus = append(pdus, PDU{Type: pduType, Payload: rec.Value})
	}
	if err = it.Err(); err != nil {
		return pdus, it.Trailing(), e(err)
	}
	return pdus, it.Trailing(), nil
}

func validatePayload(pduType PduType, data []byte) error {
	switch pduType {
	case PduTypeRtpTs:
		return validateRtpTS(data)
	case PduTypeRawTs:
		return validateRawTS(data)
	}
	return ErrUnknownPduType
}

func validateRtpTS(data []byte) error {
	p, err := rtp.Validate(data)
	if err != nil {
		return err
	}
	return validateRawTS(p.Payload())
}

func validateRawTS(data []byte) error {
	e := errors.Template("pdu.validateRawTS", errors.K.Invalid)
	if len(data) == 0 || len(data)%packet.PacketSize != 0 {
		return e(bitstream.ErrLengthMismatch, "reason", "raw TS data length is not a multiple of 188 bytes", "len", len(data))
	}

	var pkt packet.Packet
	for offset := 0; offset < len(data); offset += packet.PacketSize {
		copy(pkt[:], data[offset:offset+packet.PacketSize])
		err := pkt.CheckErrors()
		if err != nil {
			return e(err, "reason", "invalid TS packet", "index", offset/packet.PacketSize)
		}
	}

	return nil
}
