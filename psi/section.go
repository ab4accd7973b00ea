// Package psi models MPEG-2 TS program specific information and DVB service
// information sections: header accessors, CRC, validation, per-table views
// and builders, and the assembly of multi-section tables.
package psi

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

const (
	// HeaderLen is the size of the header common to all sections, up to and
	// including section_length.
	HeaderLen = 3
	// SyntaxHeaderLen is the header size of sections with the syntax
	// indicator set.
	SyntaxHeaderLen = 8
	CRCLen          = 4

	// MaxSectionLength is the largest section_length of private sections.
	MaxSectionLength = 4093
	// MaxMPEGSectionLength is the largest section_length of the tables
	// defined by ISO/IEC 13818-1 (PAT, CAT, PMT, TSDT).
	MaxMPEGSectionLength = 1021
	// MaxSectionSize is the largest section including its header.
	MaxSectionSize = HeaderLen + MaxSectionLength
)

var (
	fieldTableID          = bitfield.NewUint[uint8](0, 0, 8)
	fieldSyntax           = bitfield.NewFlag(1, 0)
	fieldPrivate          = bitfield.NewFlag(1, 1)
	fieldReserved1        = bitfield.NewUint[uint8](1, 2, 2)
	fieldSectionLength    = bitfield.NewUint[uint16](1, 4, 12)
	fieldTableIDExtension = bitfield.NewUint[uint16](3, 0, 16)
	fieldReserved5        = bitfield.NewUint[uint8](5, 0, 2)
	fieldVersion          = bitfield.NewUint[uint8](5, 2, 5)
	fieldCurrentNext      = bitfield.NewFlag(5, 7)
	fieldSectionNumber    = bitfield.NewUint[uint8](6, 0, 8)
	fieldLastSection      = bitfield.NewUint[uint8](7, 0, 8)
)

// Section is a view of one PSI/SI section. The view may extend past the
// section into padding; Validate returns views trimmed to Size.
//
// Accessors of the syntax header return zero when the indicator is clear.
type Section []byte

// Init writes a section header at the start of buf: the table id, the syntax
// indicator, reserved bits set to one and a section_length covering the
// headers and, when the table carries one, the CRC. Syntax sections are
// marked current. Use SetLength once the payload is written.
func Init(buf []byte, tableID uint8, syntax bool) (Section, error) {
	s := Section(buf)
	need := s.minSize(tableID, syntax)
	if len(buf) < need {
		return nil, errors.E("psi.Init", errors.K.Invalid, bitstream.ErrTooShort,
			"table_id", tableID, "need", need, "len", len(buf))
	}
	clear(buf[:need])
	fieldTableID.Put(s, tableID)
	fieldSyntax.Put(s, syntax)
	fieldPrivate.Put(s, tableID >= TableIDNITActual && tableID != TableIDSCTE35)
	fieldReserved1.Put(s, 3)
	if syntax {
		fieldReserved5.Put(s, 3)
		fieldCurrentNext.Put(s, true)
	}
	fieldSectionLength.Put(s, uint16(need-HeaderLen))
	return s, nil
}

func (s Section) minSize(tableID uint8, syntax bool) int {
	n := HeaderLen
	if syntax {
		n = SyntaxHeaderLen
	}
	if syntax || crcPrivateTables[tableID] {
		n += CRCLen
	}
	return n
}

func (s Section) TableID() uint8             { return fieldTableID.Value(s) }
func (s Section) SetTableID(id uint8)        { fieldTableID.Put(s, id) }
func (s Section) SyntaxIndicator() bool      { return fieldSyntax.Value(s) }
func (s Section) PrivateIndicator() bool     { return fieldPrivate.Value(s) }
func (s Section) SetPrivateIndicator(b bool) { fieldPrivate.Put(s, b) }

// SectionLength is the number of bytes following the section_length field.
func (s Section) SectionLength() uint16 { return fieldSectionLength.Value(s) }

// SetSectionLength writes section_length as is. See SetLength.
func (s Section) SetSectionLength(n uint16) { fieldSectionLength.Put(s, n) }

// Size is the size of the whole section, header included.
func (s Section) Size() int {
	return HeaderLen + int(s.SectionLength())
}

func (s Section) syntaxField() bool {
	return s.SyntaxIndicator() && len(s) >= SyntaxHeaderLen
}

func (s Section) TableIDExtension() uint16 {
	if !s.syntaxField() {
		return 0
	}
	return fieldTableIDExtension.Value(s)
}

func (s Section) SetTableIDExtension(v uint16) { fieldTableIDExtension.Put(s, v) }

func (s Section) Version() uint8 {
	if !s.syntaxField() {
		return 0
	}
	return fieldVersion.Value(s)
}

func (s Section) SetVersion(v uint8) { fieldVersion.Put(s, v) }

func (s Section) CurrentNext() bool {
	if !s.syntaxField() {
		return false
	}
	return fieldCurrentNext.Value(s)
}

func (s Section) SetCurrentNext(b bool) { fieldCurrentNext.Put(s, b) }

func (s Section) SectionNumber() uint8 {
	if !s.syntaxField() {
		return 0
	}
	return fieldSectionNumber.Value(s)
}

func (s Section) SetSectionNumber(n uint8) { fieldSectionNumber.Put(s, n) }

func (s Section) LastSectionNumber() uint8 {
	if !s.syntaxField() {
		return 0
	}
	return fieldLastSection.Value(s)
}

func (s Section) SetLastSectionNumber(n uint8) { fieldLastSection.Put(s, n) }

// HasCRC tells whether the section ends with a CRC32: sections with the
// syntax indicator set and a few private-syntax tables like the TOT.
func (s Section) HasCRC() bool {
	return s.SyntaxIndicator() || crcPrivateTables[s.TableID()]
}

func (s Section) headerLen() int {
	if s.SyntaxIndicator() {
		return SyntaxHeaderLen
	}
	return HeaderLen
}

// Payload returns the bytes between the header and the CRC. It returns nil
// if the view is shorter than the section.
func (s Section) Payload() []byte {
	start := s.headerLen()
	end := s.Size()
	if s.HasCRC() {
		end -= CRCLen
	}
	if end > len(s) || start > end {
		return nil
	}
	return s[start:end:end]
}

// CRC returns the CRC field of the section.
func (s Section) CRC() uint32 {
	if !s.HasCRC() || s.Size() > len(s) || s.Size() < CRCLen {
		return 0
	}
	return bitfield.NewUint[uint32](s.Size()-CRCLen, 0, 32).Value(s)
}

// SetLength sets section_length for a payload of payloadLen bytes, headers
// and CRC accounted for.
func (s Section) SetLength(payloadLen int) error {
	e := errors.Template("psi.SetLength", errors.K.Invalid)
	if len(s) < HeaderLen {
		return e(bitstream.ErrTooShort, "len", len(s))
	}
	size := s.headerLen() + payloadLen
	if s.HasCRC() {
		size += CRCLen
	}
	if payloadLen < 0 || size-HeaderLen > MaxSectionLength {
		return e(bitstream.ErrInvalidValue, "payload_len", payloadLen)
	}
	if size > len(s) {
		return e(bitstream.ErrTooShort, "need", size, "len", len(s))
	}
	s.SetSectionLength(uint16(size - HeaderLen))
	return nil
}

// SetCRC computes the CRC over the section and writes it to the last four
// bytes.
func (s Section) SetCRC() error {
	e := errors.Template("psi.SetCRC", errors.K.Invalid)
	if len(s) < HeaderLen {
		return e(bitstream.ErrTooShort, "len", len(s))
	}
	size := s.Size()
	if !s.HasCRC() {
		return e(bitstream.ErrInvalidValue, "reason", "table carries no CRC", "table_id", s.TableID())
	}
	if size > len(s) || size < s.headerLen()+CRCLen {
		return e(bitstream.ErrLengthMismatch, "size", size, "len", len(s))
	}
	return bitfield.NewUint[uint32](size-CRCLen, 0, 32).Set(s, CRC32(s[:size-CRCLen]))
}

// Bytes returns the section trimmed to Size, or the whole view if it is
// shorter.
func (s Section) Bytes() []byte {
	if len(s) < HeaderLen || s.Size() > len(s) {
		return s
	}
	return s[:s.Size()]
}
