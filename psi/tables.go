package psi

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
	"github.com/eluv-io/bitstream/broadcastproto/tlv"
)

var (
	fieldPID      = bitfield.NewUint[uint16](0, 3, 13)
	fieldLength12 = bitfield.NewUint[uint16](0, 4, 12)
)

// expect validates buf as one of the given tables. The table id is checked
// first so that probing a section against each decoder in turn is cheap.
func expect(op string, buf []byte, opts []ValidateOption, ids ...uint8) (Section, error) {
	if len(buf) > 0 {
		match := false
		for _, id := range ids {
			if buf[0] == id {
				match = true
				break
			}
		}
		if !match {
			return nil, errors.E(op, errors.K.Invalid, bitstream.ErrTableIDMismatch,
				"table_id", buf[0], "expected", ids)
		}
	}
	return validate(op, buf, newValidateConfig(opts))
}

func expectRange(op string, buf []byte, opts []ValidateOption, first, last uint8) (Section, error) {
	if len(buf) > 0 && (buf[0] < first || buf[0] > last) {
		return nil, errors.E(op, errors.K.Invalid, bitstream.ErrTableIDMismatch,
			"table_id", buf[0], "first", first, "last", last)
	}
	return validate(op, buf, newValidateConfig(opts))
}

func requireSyntax(op string, s Section, want bool) error {
	if s.SyntaxIndicator() != want {
		return errors.E(op, errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", "unexpected section_syntax_indicator", "table_id", s.TableID())
	}
	return nil
}

// descLoop returns the descriptor list at off of b, prefixed by a 16-bit
// word whose low 12 bits hold its length, and the offset following it.
func descLoop(op string, b []byte, off int) ([]byte, int, error) {
	if off+2 > len(b) {
		return nil, 0, errors.E(op, errors.K.Invalid, bitstream.ErrTooShort,
			"reason", "loop length missing", "offset", off, "len", len(b))
	}
	n := int(fieldLength12.Value(b[off:]))
	start := off + 2
	if start+n > len(b) {
		return nil, 0, errors.E(op, errors.K.Invalid, bitstream.ErrLengthMismatch,
			"reason", "loop exceeds section", "offset", off, "loop_length", n, "len", len(b))
	}
	return b[start : start+n : start+n], start + n, nil
}

func checkDescriptors(op string, list []byte) error {
	if err := tlv.Validate(list, len(list)); err != nil {
		return errors.E(op, errors.K.Invalid, err)
	}
	return nil
}

// entry is an item of a loop: a fixed head whose last two bytes carry the
// 12-bit length of the descriptor list that follows.
type entry struct {
	head  []byte
	descs []byte
}

func walkEntries(op string, loop []byte, headLen int) ([]entry, error) {
	var entries []entry
	for off := 0; off < len(loop); {
		if off+headLen > len(loop) {
			return nil, errors.E(op, errors.K.Invalid, bitstream.ErrLengthMismatch,
				"reason", "truncated loop entry", "offset", off, "len", len(loop))
		}
		descs, next, err := descLoop(op, loop, off+headLen-2)
		if err != nil {
			return nil, err
		}
		if err = checkDescriptors(op, descs); err != nil {
			return nil, err
		}
		entries = append(entries, entry{head: loop[off : off+headLen], descs: descs})
		off = next
	}
	return entries, nil
}

// Program is an entry of the PAT. Program number zero points to the NIT.
type Program struct {
	Number uint16
	PID    uint16
}

// PAT is a validated program association table section.
type PAT struct {
	Section
}

// ValidatePAT validates a PAT section.
func ValidatePAT(buf []byte, opts ...ValidateOption) (PAT, error) {
	const op = "psi.ValidatePAT"
	s, err := expect(op, buf, opts, TableIDPAT)
	if err != nil {
		return PAT{}, err
	}
	if err = requireSyntax(op, s, true); err != nil {
		return PAT{}, err
	}
	if len(s.Payload())%4 != 0 {
		return PAT{}, errors.E(op, errors.K.Invalid, bitstream.ErrLengthMismatch,
			"reason", "program loop not a multiple of 4", "len", len(s.Payload()))
	}
	return PAT{s}, nil
}

func (p PAT) TransportStreamID() uint16 { return p.TableIDExtension() }

func (p PAT) Programs() []Program {
	payload := p.Payload()
	programs := make([]Program, 0, len(payload)/4)
	for off := 0; off+4 <= len(payload); off += 4 {
		programs = append(programs, Program{
			Number: uint16(payload[off])<<8 | uint16(payload[off+1]),
			PID:    fieldPID.Value(payload[off+2:]),
		})
	}
	return programs
}

// NetworkPID returns the PID of the NIT if the PAT lists it.
func (p PAT) NetworkPID() (uint16, bool) {
	for _, prog := range p.Programs() {
		if prog.Number == 0 {
			return prog.PID, true
		}
	}
	return 0, false
}

// Descriptors is a section whose payload is a single descriptor list, like
// the CAT and TSDT.
type Descriptors struct {
	Section
}

func (d Descriptors) Descriptors() []byte { return d.Payload() }

// ValidateCAT validates a conditional access table section.
func ValidateCAT(buf []byte, opts ...ValidateOption) (Descriptors, error) {
	return validateDescriptors("psi.ValidateCAT", buf, opts, TableIDCAT)
}

// ValidateTSDT validates a transport stream description table section.
func ValidateTSDT(buf []byte, opts ...ValidateOption) (Descriptors, error) {
	return validateDescriptors("psi.ValidateTSDT", buf, opts, TableIDTSDT)
}

func validateDescriptors(op string, buf []byte, opts []ValidateOption, id uint8) (Descriptors, error) {
	s, err := expect(op, buf, opts, id)
	if err != nil {
		return Descriptors{}, err
	}
	if err = requireSyntax(op, s, true); err != nil {
		return Descriptors{}, err
	}
	if err = checkDescriptors(op, s.Payload()); err != nil {
		return Descriptors{}, err
	}
	return Descriptors{s}, nil
}

// Stream is an elementary stream entry of the PMT.
type Stream struct {
	Type        uint8
	PID         uint16
	Descriptors []byte
}

// PMT is a validated program map table section.
type PMT struct {
	Section
}

const pmtHeaderLen = 4

// ValidatePMT validates a PMT section, its program info and its elementary
// stream loop.
func ValidatePMT(buf []byte, opts ...ValidateOption) (PMT, error) {
	const op = "psi.ValidatePMT"
	s, err := expect(op, buf, opts, TableIDPMT)
	if err != nil {
		return PMT{}, err
	}
	if err = requireSyntax(op, s, true); err != nil {
		return PMT{}, err
	}
	payload := s.Payload()
	if len(payload) < pmtHeaderLen {
		return PMT{}, errors.E(op, errors.K.Invalid, bitstream.ErrTooShort, "len", len(payload))
	}
	info, next, err := descLoop(op, payload, 2)
	if err != nil {
		return PMT{}, err
	}
	if err = checkDescriptors(op, info); err != nil {
		return PMT{}, err
	}
	if _, err = walkEntries(op, payload[next:], 5); err != nil {
		return PMT{}, err
	}
	return PMT{s}, nil
}

func (p PMT) ProgramNumber() uint16 { return p.TableIDExtension() }
func (p PMT) PCRPID() uint16        { return fieldPID.Value(p.Payload()) }

func (p PMT) ProgramInfo() []byte {
	info, _, _ := descLoop("psi.PMT", p.Payload(), 2)
	return info
}

func (p PMT) Streams() []Stream {
	payload := p.Payload()
	_, next, err := descLoop("psi.PMT", payload, 2)
	if err != nil {
		return nil
	}
	entries, _ := walkEntries("psi.PMT", payload[next:], 5)
	streams := make([]Stream, 0, len(entries))
	for _, en := range entries {
		streams = append(streams, Stream{
			Type:        en.head[0],
			PID:         fieldPID.Value(en.head[1:]),
			Descriptors: en.descs,
		})
	}
	return streams
}
