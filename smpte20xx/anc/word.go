// Package anc decodes SMPTE ST 291 ancillary data packets and their ST 2038
// carriage in MPEG-2 transport stream PES packets.
package anc

import (
	"math/bits"
)

// Word is a 10-bit ancillary data word. Bits 0-7 carry the value, bit 8 is
// the even parity of bits 0-7 and bit 9 is the inverse of bit 8.
type Word uint16

const (
	parityBit = 1 << 8
	notBit    = 1 << 9
	wordMask  = 0x3FF
)

// NewWord returns the 10-bit word carrying v with parity bits set.
func NewWord(v uint8) Word {
	w := Word(v)
	if bits.OnesCount8(v)%2 == 1 {
		return w | parityBit
	}
	return w | notBit
}

// Value returns the 8 data bits of w.
func (w Word) Value() uint8 { return uint8(w) }

// Valid reports whether w fits in 10 bits and its parity bits are correct.
func (w Word) Valid() bool {
	return w&^wordMask == 0 && w == NewWord(w.Value())
}

// Checksum computes the ST 291 checksum word over the DID, SDID, DC and user
// data words: the 9-bit sum of bits 0-8 with bit 9 set to the inverse of
// bit 8.
func Checksum(words []Word) Word {
	var sum Word
	for _, w := range words {
		sum += w & 0x1FF
	}
	sum &= 0x1FF
	if sum&parityBit == 0 {
		sum |= notBit
	}
	return sum
}
