package anc

import (
	"github.com/Comcast/gots/pes"
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

const (
	// StreamID is the PES stream_id of ST 2038 (private_stream_1).
	StreamID = 0xBD
	// PESHeaderLen is the fixed part of the PES header up to and including
	// PES_header_data_length.
	PESHeaderLen = 9
	// headerBits covers the six zero bits through data_count.
	headerBits = 6 + 1 + 11 + 12 + 3*10
)

var (
	fieldStartCode  = bitfield.NewUint[uint32](0, 0, 24)
	fieldStreamID   = bitfield.NewUint[uint8](3, 0, 8)
	fieldPESLength  = bitfield.NewUint[uint16](4, 0, 16)
	fieldMarker     = bitfield.NewUint[uint8](6, 0, 2)
	fieldAlignment  = bitfield.NewFlag(6, 5)
	fieldPTSFlags   = bitfield.NewUint[uint8](7, 0, 2)
	fieldHeaderData = bitfield.NewUint[uint8](8, 0, 8)
)

// ST2038Packet is one ANC_data_packet of an ST 2038 PES payload.
type ST2038Packet struct {
	CNotY   bool
	Line    uint16
	HOffset uint16
	Packet
	// Err is set when the parity or checksum of the packet words is wrong.
	// The other fields then hold the raw 8-bit values.
	Err error
}

// PES is a decoded ST 2038 PES packet.
type PES struct {
	StreamID  uint8
	HasPTS    bool
	PTS       uint64
	Aligned   bool
	Packets   []ST2038Packet
	Stuffing  int
	PayloadAt int
}

// ParsePES decodes an ST 2038 PES packet. Structural errors in the PES
// header or the packet framing fail the parse. Word level errors are kept
// in the Err field of the affected packet.
func ParsePES(buf []byte) (*PES, error) {
	e := errors.Template("anc.ParsePES", errors.K.Invalid)
	if len(buf) < PESHeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf), "need", PESHeaderLen)
	}
	if fieldStartCode.Value(buf) != 1 || fieldMarker.Value(buf) != 0x2 {
		return nil, e(bitstream.ErrInvalidValue, "reason", "not a PES header")
	}
	if sid := fieldStreamID.Value(buf); sid != StreamID {
		return nil, e(bitstream.ErrInvalidValue, "stream_id", sid)
	}
	if n := int(fieldPESLength.Value(buf)); n != 0 {
		if 6+n > len(buf) {
			return nil, e(bitstream.ErrLengthMismatch, "pes_packet_length", n, "len", len(buf))
		}
		buf = buf[:6+n]
	}
	start := PESHeaderLen + int(fieldHeaderData.Value(buf))
	if start > len(buf) {
		return nil, e(bitstream.ErrLengthMismatch, "header_data_length", start-PESHeaderLen, "len", len(buf))
	}

	hdr, err := pes.NewPESHeader(buf)
	if err != nil {
		return nil, e(bitstream.ErrInvalidValue, "reason", err.Error())
	}
	res := &PES{
		StreamID:  hdr.StreamId(),
		HasPTS:    hdr.HasPTS(),
		Aligned:   fieldAlignment.Value(buf),
		PayloadAt: start,
	}
	if res.HasPTS {
		res.PTS = hdr.PTS()
	}

	payload := buf[start:]
	for pos := 0; pos < len(payload); {
		if payload[pos] == 0xFF {
			for _, b := range payload[pos:] {
				if b != 0xFF {
					return nil, e(bitstream.ErrMalformedList, "reason", "data after stuffing",
						"offset", start+pos)
				}
			}
			res.Stuffing = len(payload) - pos
			break
		}
		pkt, n, err := readPacket(payload[pos:])
		if err != nil {
			return nil, e(err, "packet", len(res.Packets), "offset", start+pos)
		}
		res.Packets = append(res.Packets, pkt)
		pos += n
	}
	return res, nil
}

func ancField(pos, width int) bitfield.Field {
	return bitfield.New(0, uint(pos), uint(width))
}

// readPacket decodes one ANC_data_packet and returns it with the number of
// bytes it occupies including the trailing '1' bits.
func readPacket(buf []byte) (ST2038Packet, int, error) {
	if len(buf)*8 < headerBits {
		return ST2038Packet{}, 0, errors.E("anc.readPacket", errors.K.Invalid, bitstream.ErrTooShort,
			"len", len(buf))
	}
	if ancField(0, 6).Value(buf) != 0 {
		return ST2038Packet{}, 0, errors.E("anc.readPacket", errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", "leading bits not zero")
	}
	var pkt ST2038Packet
	pkt.CNotY = ancField(6, 1).Value(buf) == 1
	pkt.Line = uint16(ancField(7, 11).Value(buf))
	pkt.HOffset = uint16(ancField(18, 12).Value(buf))

	pos := 30
	dc := int(Word(ancField(pos+20, 10).Value(buf)).Value())
	words := make([]Word, dc+4)
	end := pos + 10*len(words)
	if (end+7)/8 > len(buf) {
		return ST2038Packet{}, 0, errors.E("anc.readPacket", errors.K.Invalid, bitstream.ErrTooShort,
			"data_count", dc, "len", len(buf))
	}
	for i := range words {
		words[i] = Word(ancField(pos, 10).Value(buf))
		pos += 10
	}
	if pad := (8 - end%8) % 8; pad > 0 && ancField(end, pad).Value(buf) != 1<<pad-1 {
		return ST2038Packet{}, 0, errors.E("anc.readPacket", errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", "alignment bits not one")
	}

	pkt.Packet, pkt.Err = ParseWords(words)
	if pkt.Err != nil {
		pkt.Packet = Packet{DID: words[0].Value(), SDID: words[1].Value(), UDW: make([]uint8, dc)}
		for i := range pkt.UDW {
			pkt.UDW[i] = words[3+i].Value()
		}
	}
	return pkt, (end + 7) / 8, nil
}

// AppendPacket appends the ST 2038 encoding of pkt to dst.
func AppendPacket(dst []byte, pkt ST2038Packet) ([]byte, error) {
	words, err := pkt.Words()
	if err != nil {
		return dst, err
	}
	end := 30 + 10*len(words)
	buf := make([]byte, (end+7)/8)
	for i := range buf {
		buf[i] = 0xFF
	}
	ancField(0, 6).Put(buf, 0)
	ancField(6, 1).Put(buf, b2u(pkt.CNotY))
	ancField(7, 11).Put(buf, uint64(pkt.Line))
	ancField(18, 12).Put(buf, uint64(pkt.HOffset))
	for i, w := range words {
		ancField(30+10*i, 10).Put(buf, uint64(w))
	}
	return append(dst, buf...), nil
}

// BuildPES returns a complete ST 2038 PES packet carrying pkts, with a PTS
// and the data alignment indicator set.
func BuildPES(pts uint64, pkts []ST2038Packet) ([]byte, error) {
	buf := make([]byte, PESHeaderLen+5)
	fieldStartCode.Put(buf, 1)
	fieldStreamID.Put(buf, StreamID)
	fieldMarker.Put(buf, 0x2)
	fieldAlignment.Put(buf, true)
	fieldPTSFlags.Put(buf, 0x2)
	fieldHeaderData.Put(buf, 5)
	putPTS(buf[PESHeaderLen:], pts)

	var err error
	for _, p := range pkts {
		if buf, err = AppendPacket(buf, p); err != nil {
			return nil, err
		}
	}
	n := len(buf) - 6
	if n > 0xFFFF {
		n = 0
	}
	fieldPESLength.Put(buf, uint16(n))
	return buf, nil
}

// putPTS writes the 5-byte '0010' PTS field.
func putPTS(buf []byte, pts uint64) {
	bitfield.New(0, 0, 4).Put(buf, 0x2)
	bitfield.New(0, 4, 3).Put(buf, pts>>30)
	bitfield.New(0, 7, 1).Put(buf, 1)
	bitfield.New(1, 0, 15).Put(buf, pts>>15)
	bitfield.New(2, 7, 1).Put(buf, 1)
	bitfield.New(3, 0, 15).Put(buf, pts)
	bitfield.New(4, 7, 1).Put(buf, 1)
}

func b2u(on bool) uint64 {
	if on {
		return 1
	}
	return 0
}
