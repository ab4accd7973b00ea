// Package bitstream holds accessors for the binary structures of broadcast and
// networking standards: MPEG-2 TS PSI sections and descriptors, DVB-SI tables,
// ID3v2 tags, RTP/RTCP, Ethernet/UDP headers and SMPTE ancillary data.
//
// The root package only carries what all sub-packages share: the error
// taxonomy and the logging wrapper. The parsers live in sub-packages:
//
//	bitfield                  bit-field get/set primitive
//	broadcastproto/tlv        tag-length-value list walker
//	psi                       PSI sections, CRC-32, table assembly
//	desc                      MPEG/DVB descriptors
//	output                    text/XML printing and charset transcoding
//	id3, rtp, ethernet, udp   non-PSI wire structures
//	smpte20xx/anc             SMPTE ST 291 / ST 2038 ancillary data
package bitstream

const version = "1.0.0"

// Version returns the library version.
func Version() string {
	return version
}
