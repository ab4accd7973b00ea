package anc

import (
	"fmt"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// MaxDataCount is the largest number of user data words in one packet.
const MaxDataCount = 255

// Packet is a type 2 ancillary data packet: a DID/SDID pair and its user
// data words reduced to their 8-bit values.
type Packet struct {
	DID  uint8
	SDID uint8
	UDW  []uint8
}

// Words returns the packet as 10-bit words without the ancillary data flag:
// DID, SDID, DC, UDW... and the checksum.
func (p Packet) Words() ([]Word, error) {
	if len(p.UDW) > MaxDataCount {
		return nil, errors.E("anc.Words", errors.K.Invalid, bitstream.ErrInvalidValue,
			"data_count", len(p.UDW))
	}
	words := make([]Word, 0, len(p.UDW)+4)
	words = append(words, NewWord(p.DID), NewWord(p.SDID), NewWord(uint8(len(p.UDW))))
	for _, v := range p.UDW {
		words = append(words, NewWord(v))
	}
	return append(words, Checksum(words)), nil
}

// ParseWords is the inverse of Words. Parity errors in any word are reported
// as ErrInvalidValue and a checksum mismatch as ErrCrcMismatch.
func ParseWords(words []Word) (Packet, error) {
	e := errors.Template("anc.ParseWords", errors.K.Invalid)
	if len(words) < 4 {
		return Packet{}, e(bitstream.ErrTooShort, "words", len(words))
	}
	dc := int(words[2].Value())
	if len(words) != dc+4 {
		return Packet{}, e(bitstream.ErrLengthMismatch, "data_count", dc, "words", len(words))
	}
	for i, w := range words[:len(words)-1] {
		if !w.Valid() {
			return Packet{}, e(bitstream.ErrInvalidValue, "reason", "parity", "word", i,
				"value", fmt.Sprintf("0x%03x", uint16(w)))
		}
	}
	cs := words[len(words)-1]
	if want := Checksum(words[:len(words)-1]); cs != want {
		return Packet{}, e(bitstream.ErrCrcMismatch,
			"checksum", fmt.Sprintf("0x%03x", uint16(cs)),
			"computed", fmt.Sprintf("0x%03x", uint16(want)))
	}
	p := Packet{
		DID:  words[0].Value(),
		SDID: words[1].Value(),
		UDW:  make([]uint8, dc),
	}
	for i := range p.UDW {
		p.UDW[i] = words[3+i].Value()
	}
	return p, nil
}

// Registered DID/SDID pairs (SMPTE RA). Descriptions name the defining
// document: ST 2016-3/4, ST 2031, RDD 8, ST 12-2, CEA-708/608, RP 207/208,
// ST 2020.
const (
	DIDAFD       = 0x41
	DIDOP47      = 0x43
	DIDAudio     = 0x45
	DIDTimecode  = 0x60
	DIDCaptions  = 0x61
	DIDProgram   = 0x62
	SDIDAFD      = 0x05
	SDIDPanScan  = 0x06
	SDIDSCTE104  = 0x07
	SDIDVBI      = 0x08
	SDIDATC      = 0x60
	SDIDCEA708   = 0x01
	SDIDCEA608   = 0x02
	SDIDOP47SDP  = 0x02
	SDIDOP47Mult = 0x03
)

type didKey struct{ did, sdid uint8 }

var descriptions = map[didKey]string{
	{DIDAFD, SDIDAFD}:         "afd_bar_data",
	{DIDAFD, SDIDPanScan}:     "pan_scan",
	{DIDAFD, SDIDSCTE104}:     "scte104",
	{DIDAFD, SDIDVBI}:         "vbi_st2031",
	{DIDOP47, SDIDOP47SDP}:    "op47_sdp",
	{DIDOP47, SDIDOP47Mult}:   "op47_multipacket",
	{DIDTimecode, SDIDATC}:    "atc_timecode",
	{DIDCaptions, SDIDCEA708}: "cea708_cdp",
	{DIDCaptions, SDIDCEA608}: "cea608",
	{DIDProgram, 0x01}:        "program_description",
	{DIDProgram, 0x02}:        "data_broadcast",
	{DIDProgram, 0x03}:        "vbi_rp208",
}

// Description names the payload registered for did/sdid, or "unknown".
func Description(did, sdid uint8) string {
	if did == DIDAudio && sdid >= 0x01 && sdid <= 0x09 {
		return "audio_metadata"
	}
	if d, ok := descriptions[didKey{did, sdid}]; ok {
		return d
	}
	return "unknown"
}
