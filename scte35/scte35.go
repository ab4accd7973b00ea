// Package scte35 validates and decodes SCTE-35 splice_info_section messages
// and converts them to HLS cues.
package scte35

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
	"github.com/eluv-io/bitstream/broadcastproto/tlv"
	"github.com/eluv-io/bitstream/psi"
)

const (
	// commandOffset is the offset of the splice command within the section.
	commandOffset = 14
	// LegacyCommandLength marks a splice_command_length left unspecified by
	// older encoders.
	LegacyCommandLength = 0xFFF
	// MinSectionLen is the size of a section with an empty command and no
	// descriptors.
	MinSectionLen = commandOffset + 2 + psi.CRCLen
	// CUEI is the identifier of descriptors defined by SCTE-35.
	CUEI = 0x43554549
	// MaxPTS is the largest 33-bit presentation time.
	MaxPTS = 1<<33 - 1
)

// Splice command types.
const (
	CommandNull                 = 0x00
	CommandSchedule             = 0x04
	CommandInsert               = 0x05
	CommandTimeSignal           = 0x06
	CommandBandwidthReservation = 0x07
	CommandPrivate              = 0xFF
)

// Splice descriptor tags.
const (
	TagAvail        = 0x00
	TagDTMF         = 0x01
	TagSegmentation = 0x02
	TagTime         = 0x03
	TagAudio        = 0x04
)

var commandNames = map[uint8]string{
	CommandNull:                 "splice_null",
	CommandSchedule:             "splice_schedule",
	CommandInsert:               "splice_insert",
	CommandTimeSignal:           "time_signal",
	CommandBandwidthReservation: "bandwidth_reservation",
	CommandPrivate:              "private_command",
}

var descriptorNames = map[uint8]string{
	TagAvail:        "avail_descriptor",
	TagDTMF:         "DTMF_descriptor",
	TagSegmentation: "segmentation_descriptor",
	TagTime:         "time_descriptor",
	TagAudio:        "audio_descriptor",
}

// CommandName returns the name of a splice command type.
func CommandName(t uint8) string {
	if n, ok := commandNames[t]; ok {
		return n
	}
	return "reserved"
}

// DescriptorName returns the name of a splice descriptor tag.
func DescriptorName(tag uint8) string {
	if n, ok := descriptorNames[tag]; ok {
		return n
	}
	return "unknown"
}

var (
	fieldProtocolVersion = bitfield.NewUint[uint8](3, 0, 8)
	fieldEncrypted       = bitfield.NewFlag(4, 0)
	fieldEncryption      = bitfield.NewUint[uint8](4, 1, 6)
	fieldPTSAdjustment   = bitfield.NewUint[uint64](4, 7, 33)
	fieldCWIndex         = bitfield.NewUint[uint8](9, 0, 8)
	fieldTier            = bitfield.NewUint[uint16](10, 0, 12)
	fieldCommandLength   = bitfield.NewUint[uint16](11, 4, 12)
	fieldCommandType     = bitfield.NewUint[uint8](13, 0, 8)
)

// SpliceInfo is a view of a splice_info_section. Accessors assume a section
// returned by Validate or New.
type SpliceInfo []byte

// Section returns the PSI view of s.
func (s SpliceInfo) Section() psi.Section { return psi.Section(s) }

func (s SpliceInfo) ProtocolVersion() uint8     { return fieldProtocolVersion.Value(s) }
func (s SpliceInfo) Encrypted() bool            { return fieldEncrypted.Value(s) }
func (s SpliceInfo) EncryptionAlgorithm() uint8 { return fieldEncryption.Value(s) }
func (s SpliceInfo) PTSAdjustment() uint64      { return fieldPTSAdjustment.Value(s) }
func (s SpliceInfo) CWIndex() uint8             { return fieldCWIndex.Value(s) }
func (s SpliceInfo) Tier() uint16               { return fieldTier.Value(s) }
func (s SpliceInfo) CommandType() uint8         { return fieldCommandType.Value(s) }

// CommandLength returns the size of the splice command. A legacy unspecified
// length is resolved for the commands whose size follows from their content;
// -1 is returned for the others.
func (s SpliceInfo) CommandLength() int {
	n := int(fieldCommandLength.Value(s))
	if n != LegacyCommandLength {
		return n
	}
	switch s.CommandType() {
	case CommandNull, CommandBandwidthReservation:
		return 0
	case CommandTimeSignal:
		if len(s) > commandOffset {
			return spliceTimeLen(s[commandOffset])
		}
	}
	return -1
}

// Command returns the splice command bytes.
func (s SpliceInfo) Command() []byte {
	n := s.CommandLength()
	if n < 0 || commandOffset+n > len(s) {
		return nil
	}
	return s[commandOffset : commandOffset+n]
}

func (s SpliceInfo) loopOffset() int {
	return commandOffset + s.CommandLength()
}

// DescriptorLoop returns the splice descriptor loop.
func (s SpliceInfo) DescriptorLoop() []byte {
	off := s.loopOffset()
	if s.CommandLength() < 0 || off+2 > len(s) {
		return nil
	}
	n := int(bitfield.NewUint[uint16](off, 0, 16).Value(s))
	if off+2+n > len(s) {
		return nil
	}
	return s[off+2 : off+2+n]
}

// Descriptor is one splice descriptor.
type Descriptor struct {
	Tag        uint8
	Identifier uint32
	// Data follows the identifier.
	Data []byte
	// Offset is the offset of the descriptor within the loop.
	Offset int
}

// Descriptors returns the splice descriptors of s.
func (s SpliceInfo) Descriptors() ([]Descriptor, error) {
	loop := s.DescriptorLoop()
	recs, err := tlv.Records(loop, len(loop))
	if err != nil {
		return nil, errors.E("scte35.Descriptors", errors.K.Invalid, err)
	}
	res := make([]Descriptor, 0, len(recs))
	for _, r := range recs {
		if len(r.Value) < 4 {
			return nil, errors.E("scte35.Descriptors", errors.K.Invalid, bitstream.ErrTooShort,
				"reason", "descriptor without identifier", "tag", r.Tag, "offset", r.Offset)
		}
		res = append(res, Descriptor{
			Tag:        uint8(r.Tag),
			Identifier: bitfield.NewUint[uint32](0, 0, 32).Value(r.Value),
			Data:       r.Value[4:],
			Offset:     r.Offset,
		})
	}
	return res, nil
}

// Validate checks the PSI framing and CRC of the section at the start of buf,
// then the splice command and descriptor loop lengths. The returned view is
// trimmed to the section.
func Validate(buf []byte, opts ...psi.ValidateOption) (SpliceInfo, error) {
	e := errors.Template("scte35.Validate", errors.K.Invalid)
	sec, err := psi.Validate(buf, opts...)
	if err != nil {
		return nil, e(err)
	}
	if sec.TableID() != psi.TableIDSCTE35 {
		return nil, e(bitstream.ErrTableIDMismatch, "table_id", sec.TableID())
	}
	if sec.SyntaxIndicator() {
		return nil, e(bitstream.ErrInvalidValue, "reason", "section_syntax_indicator set")
	}
	if len(sec) < MinSectionLen {
		return nil, e(bitstream.ErrTooShort, "len", len(sec), "need", MinSectionLen)
	}
	s := SpliceInfo(sec)
	end := len(s) - psi.CRCLen
	if s.Encrypted() {
		end -= 4
	}
	n := s.CommandLength()
	if n < 0 {
		return nil, e(bitstream.ErrInvalidValue, "reason", "unspecified splice_command_length",
			"command", CommandName(s.CommandType()))
	}
	if commandOffset+n+2 > end {
		return nil, e(bitstream.ErrLengthMismatch, "reason", "splice command exceeds section",
			"splice_command_length", n, "len", len(s))
	}
	loopLen := int(bitfield.NewUint[uint16](commandOffset+n, 0, 16).Value(s))
	if commandOffset+n+2+loopLen > end {
		return nil, e(bitstream.ErrLengthMismatch, "reason", "descriptor loop exceeds section",
			"descriptor_loop_length", loopLen, "len", len(s))
	}
	if s.Encrypted() {
		// encrypted commands and descriptors cannot be inspected
		return s, nil
	}
	if _, err = s.Descriptors(); err != nil {
		return nil, e(err)
	}
	return s, nil
}

// New builds a splice_info_section around a splice command and descriptors
// with the CRC set.
func New(ptsAdjustment uint64, tier uint16, cmdType uint8, cmd []byte, descs []Descriptor) (SpliceInfo, error) {
	e := errors.Template("scte35.New", errors.K.Invalid)
	if ptsAdjustment > MaxPTS || tier > 0xFFF || len(cmd) >= LegacyCommandLength {
		return nil, e(bitstream.ErrInvalidValue,
			"pts_adjustment", ptsAdjustment, "tier", tier, "command_length", len(cmd))
	}
	var loop []byte
	var err error
	for _, d := range descs {
		value := make([]byte, 4, 4+len(d.Data))
		bitfield.NewUint[uint32](0, 0, 32).Put(value, d.Identifier)
		if loop, err = tlv.Descriptor.Append(loop, uint32(d.Tag), append(value, d.Data...)); err != nil {
			return nil, e(err)
		}
	}
	if len(loop) > 0xFFFF {
		return nil, e(bitstream.ErrInvalidValue, "descriptor_loop_length", len(loop))
	}

	payloadLen := commandOffset - psi.HeaderLen + len(cmd) + 2 + len(loop)
	buf := make([]byte, psi.HeaderLen+payloadLen+psi.CRCLen)
	sec, err := psi.Init(buf, psi.TableIDSCTE35, false)
	if err != nil {
		return nil, e(err)
	}
	if err = sec.SetLength(payloadLen); err != nil {
		return nil, e(err)
	}
	s := SpliceInfo(sec)
	fieldPTSAdjustment.Put(s, ptsAdjustment)
	fieldTier.Put(s, tier)
	fieldCommandLength.Put(s, uint16(len(cmd)))
	fieldCommandType.Put(s, cmdType)
	copy(s[commandOffset:], cmd)
	off := commandOffset + len(cmd)
	bitfield.NewUint[uint16](off, 0, 16).Put(s, uint16(len(loop)))
	copy(s[off+2:], loop)
	if err = sec.SetCRC(); err != nil {
		return nil, e(err)
	}
	return s, nil
}
