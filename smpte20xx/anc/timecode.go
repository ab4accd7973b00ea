package anc

import (
	"fmt"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

// ATCDataCount is the number of user data words of an ancillary timecode
// packet.
const ATCDataCount = 16

// Timecode is an ST 12-2 ancillary timecode. Each of the 16 user data words
// carries one nibble of the ST 12-1 timecode in bits 7-4 and one bit of the
// distributed binary bit groups DBB1 (words 1-8) and DBB2 (words 9-16) in
// bit 3.
type Timecode struct {
	Hours      uint8
	Minutes    uint8
	Seconds    uint8
	Frames     uint8
	DropFrame  bool
	ColorFrame bool
	// Flags holds the binary group flags: bit 0 from the tens of seconds,
	// bit 1 from the tens of minutes, bits 2-3 from the tens of hours.
	Flags        uint8
	BinaryGroups [8]uint8
	DBB1         uint8
	DBB2         uint8
}

func nibble(i int) bitfield.Uint[uint8] { return bitfield.NewUint[uint8](i, 0, 4) }
func dbb(i int) bitfield.Flag           { return bitfield.NewFlag(i, 4) }

// DecodeTimecode decodes the user data words of an ATC packet.
func DecodeTimecode(udw []uint8) (Timecode, error) {
	e := errors.Template("anc.DecodeTimecode", errors.K.Invalid)
	if len(udw) != ATCDataCount {
		return Timecode{}, e(bitstream.ErrLengthMismatch, "data_count", len(udw), "expected", ATCDataCount)
	}
	n := make([]uint8, ATCDataCount)
	var tc Timecode
	for i := range n {
		n[i] = nibble(i).Value(udw)
		if dbb(i).Value(udw) {
			if i < 8 {
				tc.DBB1 |= 1 << i
			} else {
				tc.DBB2 |= 1 << (i - 8)
			}
		}
	}
	for i := range tc.BinaryGroups {
		tc.BinaryGroups[i] = n[2*i+1]
	}
	tc.DropFrame = n[2]&0x4 != 0
	tc.ColorFrame = n[2]&0x8 != 0
	tc.Flags = n[6]>>3 | (n[10]>>3)<<1 | (n[14]>>2)<<2

	digits := []struct {
		name       string
		units, ten uint8
		max        uint8
		dst        *uint8
	}{
		{"frames", n[0], n[2] & 0x3, 39, &tc.Frames},
		{"seconds", n[4], n[6] & 0x7, 59, &tc.Seconds},
		{"minutes", n[8], n[10] & 0x7, 59, &tc.Minutes},
		{"hours", n[12], n[14] & 0x3, 23, &tc.Hours},
	}
	for _, d := range digits {
		v := d.ten*10 + d.units
		if d.units > 9 || v > d.max {
			return Timecode{}, e(bitstream.ErrInvalidValue, "field", d.name,
				"units", d.units, "tens", d.ten)
		}
		*d.dst = v
	}
	return tc, nil
}

// Encode returns the 16 user data words of tc. Out of range fields are
// truncated to their BCD digit widths.
func (tc Timecode) Encode() []uint8 {
	n := [ATCDataCount]uint8{
		tc.Frames % 10, 0, tc.Frames / 10 & 0x3, 0,
		tc.Seconds % 10, 0, tc.Seconds / 10 & 0x7, 0,
		tc.Minutes % 10, 0, tc.Minutes / 10 & 0x7, 0,
		tc.Hours % 10, 0, tc.Hours / 10 & 0x3, 0,
	}
	if tc.DropFrame {
		n[2] |= 0x4
	}
	if tc.ColorFrame {
		n[2] |= 0x8
	}
	n[6] |= tc.Flags & 0x1 << 3
	n[10] |= tc.Flags >> 1 & 0x1 << 3
	n[14] |= tc.Flags >> 2 & 0x3 << 2
	for i, g := range tc.BinaryGroups {
		n[2*i+1] = g & 0xF
	}

	udw := make([]uint8, ATCDataCount)
	for i, v := range n {
		nibble(i).Put(udw, v)
		if i < 8 {
			dbb(i).Put(udw, tc.DBB1>>i&1 == 1)
		} else {
			dbb(i).Put(udw, tc.DBB2>>(i-8)&1 == 1)
		}
	}
	return udw
}

// String formats tc as HH:MM:SS:FF, or HH:MM:SS;FF for drop frame.
func (tc Timecode) String() string {
	sep := ":"
	if tc.DropFrame {
		sep = ";"
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%02d", tc.Hours, tc.Minutes, tc.Seconds, sep, tc.Frames)
}
