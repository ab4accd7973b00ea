package psi

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// Table ids
const (
	TableIDPAT         = 0x00
	TableIDCAT         = 0x01
	TableIDPMT         = 0x02
	TableIDTSDT        = 0x03
	TableIDNITActual   = 0x40
	TableIDNITOther    = 0x41
	TableIDSDTActual   = 0x42
	TableIDSDTOther    = 0x46
	TableIDBAT         = 0x4A
	TableIDEITPFActual = 0x4E
	TableIDEITPFOther  = 0x4F
	TableIDEITFirst    = 0x4E
	TableIDEITLast     = 0x6F
	TableIDTDT         = 0x70
	TableIDRST         = 0x71
	TableIDST          = 0x72
	TableIDTOT         = 0x73
	TableIDSIT         = 0x7F
	TableIDSCTE35      = 0xFC
	TableIDStuffing    = 0xFF
)

// crcPrivateTables lists tables with the syntax indicator clear that still
// end with a CRC32.
var crcPrivateTables = map[uint8]bool{
	TableIDTOT:    true,
	TableIDSCTE35: true,
}

// mpegTables are limited to MaxMPEGSectionLength.
var mpegTables = map[uint8]bool{
	TableIDPAT:  true,
	TableIDCAT:  true,
	TableIDPMT:  true,
	TableIDTSDT: true,
}

// TableName returns a short name for a table id.
func TableName(id uint8) string {
	switch {
	case id == TableIDPAT:
		return "PAT"
	case id == TableIDCAT:
		return "CAT"
	case id == TableIDPMT:
		return "PMT"
	case id == TableIDTSDT:
		return "TSDT"
	case id == TableIDNITActual || id == TableIDNITOther:
		return "NIT"
	case id == TableIDSDTActual || id == TableIDSDTOther:
		return "SDT"
	case id == TableIDBAT:
		return "BAT"
	case id >= TableIDEITFirst && id <= TableIDEITLast:
		return "EIT"
	case id == TableIDTDT:
		return "TDT"
	case id == TableIDRST:
		return "RST"
	case id == TableIDST:
		return "ST"
	case id == TableIDTOT:
		return "TOT"
	case id == TableIDSIT:
		return "SIT"
	case id == TableIDSCTE35:
		return "SCTE35"
	}
	return "unknown"
}

type validateConfig struct {
	checkCRC   bool
	strictMPEG bool
}

// ValidateOption configures Validate.
type ValidateOption func(*validateConfig)

// WithCRC turns CRC verification on (the default) or off.
func WithCRC(check bool) ValidateOption {
	return func(c *validateConfig) {
		c.checkCRC = check
	}
}

// StrictMPEGLength limits the tables of ISO/IEC 13818-1 to a section_length
// of MaxMPEGSectionLength instead of MaxSectionLength.
func StrictMPEGLength() ValidateOption {
	return func(c *validateConfig) {
		c.strictMPEG = true
	}
}

func newValidateConfig(opts []ValidateOption) validateConfig {
	cfg := validateConfig{checkCRC: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate checks the section at the start of buf and returns a view trimmed
// to the section size. buf may extend past the section, e.g. with stuffing
// up to the end of a TS packet.
func Validate(buf []byte, opts ...ValidateOption) (Section, error) {
	return validate("psi.Validate", buf, newValidateConfig(opts))
}

func validate(op string, buf []byte, cfg validateConfig) (Section, error) {
	e := errors.Template(op, errors.K.Invalid)
	if len(buf) < HeaderLen {
		return nil, e(bitstream.ErrTooShort, "len", len(buf))
	}
	s := Section(buf)
	tableID := s.TableID()
	hl := s.headerLen()
	if len(buf) < hl {
		return nil, e(bitstream.ErrTooShort, "table_id", tableID, "need", hl, "len", len(buf))
	}

	length := int(s.SectionLength())
	limit := MaxSectionLength
	if cfg.strictMPEG && mpegTables[tableID] {
		limit = MaxMPEGSectionLength
	}
	if length > limit {
		return nil, e(bitstream.ErrLengthMismatch, "reason", "section_length too large",
			"table_id", tableID, "section_length", length, "limit", limit)
	}
	if HeaderLen+length > len(buf) {
		return nil, e(bitstream.ErrLengthMismatch, "reason", "section exceeds buffer",
			"table_id", tableID, "section_length", length, "len", len(buf))
	}
	if min := s.minSize(tableID, s.SyntaxIndicator()); HeaderLen+length < min {
		return nil, e(bitstream.ErrLengthMismatch, "reason", "section_length too small",
			"table_id", tableID, "section_length", length, "min", min-HeaderLen)
	}
	s = s[:HeaderLen+length]

	if s.SyntaxIndicator() && s.SectionNumber() > s.LastSectionNumber() {
		return nil, e(bitstream.ErrInvalidValue, "reason", "section_number beyond last_section_number",
			"table_id", tableID, "section_number", s.SectionNumber(), "last", s.LastSectionNumber())
	}

	if cfg.checkCRC && s.HasCRC() {
		computed := CRC32(s[:len(s)-CRCLen])
		if stored := s.CRC(); computed != stored {
			return nil, e(bitstream.ErrCrcMismatch, "table_id", tableID,
				"computed", computed, "stored", stored)
		}
	}
	return s, nil
}
