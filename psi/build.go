package psi

import (
	"time"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// SyntaxHeader holds the extended header fields of sections with the syntax
// indicator set.
type SyntaxHeader struct {
	TableIDExtension  uint16
	Version           uint8
	SectionNumber     uint8
	LastSectionNumber uint8
}

// Build allocates a section holding payload, sets its length and, when the
// table carries one, its CRC.
func Build(tableID uint8, syntax bool, h SyntaxHeader, payload []byte) (Section, error) {
	e := errors.Template("psi.Build", errors.K.Invalid, "table_id", tableID)
	var s Section
	size := s.minSize(tableID, syntax) + len(payload)
	if size-HeaderLen > MaxSectionLength {
		return nil, e(bitstream.ErrInvalidValue, "reason", "payload too large", "payload_len", len(payload))
	}
	s, err := Init(make([]byte, size), tableID, syntax)
	if err != nil {
		return nil, e(err)
	}
	if syntax {
		if h.SectionNumber > h.LastSectionNumber {
			return nil, e(bitstream.ErrInvalidValue, "section_number", h.SectionNumber, "last", h.LastSectionNumber)
		}
		s.SetTableIDExtension(h.TableIDExtension)
		if err = fieldVersion.Set(s, h.Version); err != nil {
			return nil, e(err)
		}
		s.SetSectionNumber(h.SectionNumber)
		s.SetLastSectionNumber(h.LastSectionNumber)
	}
	copy(s[s.headerLen():], payload)
	if err = s.SetLength(len(payload)); err != nil {
		return nil, e(err)
	}
	if s.HasCRC() {
		if err = s.SetCRC(); err != nil {
			return nil, e(err)
		}
	}
	return s, nil
}

// appendLoop appends list prefixed by its 12-bit length, reserved bits set.
func appendLoop(dst, list []byte) ([]byte, error) {
	if len(list) > 0x0FFF {
		return nil, errors.E("psi.appendLoop", errors.K.Invalid, bitstream.ErrInvalidValue, "loop_length", len(list))
	}
	dst = append(dst, 0xF0|byte(len(list)>>8), byte(len(list)))
	return append(dst, list...), nil
}

func appendU16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

func appendPID(dst []byte, pid uint16) []byte {
	return append(dst, 0xE0|byte(pid>>8)&0x1F, byte(pid))
}

// NewPAT builds a single-section PAT.
func NewPAT(tsid uint16, version uint8, programs []Program) (Section, error) {
	payload := make([]byte, 0, 4*len(programs))
	for _, p := range programs {
		payload = appendU16(payload, p.Number)
		payload = appendPID(payload, p.PID)
	}
	return Build(TableIDPAT, true, SyntaxHeader{TableIDExtension: tsid, Version: version}, payload)
}

// NewCAT builds a single-section CAT carrying descs.
func NewCAT(version uint8, descs []byte) (Section, error) {
	return Build(TableIDCAT, true, SyntaxHeader{TableIDExtension: 0xFFFF, Version: version}, descs)
}

// NewPMT builds a single-section PMT.
func NewPMT(program uint16, version uint8, pcrPID uint16, info []byte, streams []Stream) (Section, error) {
	payload := appendPID(nil, pcrPID)
	payload, err := appendLoop(payload, info)
	if err != nil {
		return nil, err
	}
	for _, st := range streams {
		payload = append(payload, st.Type)
		payload = appendPID(payload, st.PID)
		if payload, err = appendLoop(payload, st.Descriptors); err != nil {
			return nil, err
		}
	}
	return Build(TableIDPMT, true, SyntaxHeader{TableIDExtension: program, Version: version}, payload)
}

// NewNIT builds one section of a NIT of the actual network.
func NewNIT(h SyntaxHeader, descs []byte, streams []TransportStream) (Section, error) {
	payload, err := appendLoop(nil, descs)
	if err != nil {
		return nil, err
	}
	var loop []byte
	for _, ts := range streams {
		loop = appendU16(loop, ts.TSID)
		loop = appendU16(loop, ts.ONID)
		if loop, err = appendLoop(loop, ts.Descriptors); err != nil {
			return nil, err
		}
	}
	if payload, err = appendLoop(payload, loop); err != nil {
		return nil, err
	}
	return Build(TableIDNITActual, true, h, payload)
}

func b2b(on bool, bit byte) byte {
	if on {
		return bit
	}
	return 0
}

func statusByte(status uint8, freeCA bool, n int) byte {
	return status&0x07<<5 | b2b(freeCA, 0x10) | byte(n>>8)&0x0F
}

// NewSDT builds one section of a SDT of the actual transport stream.
func NewSDT(h SyntaxHeader, onid uint16, services []Service) (Section, error) {
	payload := appendU16(nil, onid)
	payload = append(payload, 0xFF)
	for _, sv := range services {
		if len(sv.Descriptors) > 0x0FFF {
			return nil, errors.E("psi.NewSDT", errors.K.Invalid, bitstream.ErrInvalidValue,
				"service_id", sv.ID, "loop_length", len(sv.Descriptors))
		}
		payload = appendU16(payload, sv.ID)
		payload = append(payload, 0xFC|b2b(sv.EITSchedule, 0x02)|b2b(sv.EITPresentFollowing, 0x01))
		payload = append(payload, statusByte(sv.RunningStatus, sv.FreeCA, len(sv.Descriptors)), byte(len(sv.Descriptors)))
		payload = append(payload, sv.Descriptors...)
	}
	return Build(TableIDSDTActual, true, h, payload)
}

// NewEIT builds one section of the EIT table tableID for the service in
// h.TableIDExtension.
func NewEIT(tableID uint8, h SyntaxHeader, tsid, onid uint16, lastTableID uint8, events []Event) (Section, error) {
	e := errors.Template("psi.NewEIT", errors.K.Invalid)
	if tableID < TableIDEITFirst || tableID > TableIDEITLast {
		return nil, e(bitstream.ErrTableIDMismatch, "table_id", tableID)
	}
	payload := appendU16(nil, tsid)
	payload = appendU16(payload, onid)
	payload = append(payload, h.LastSectionNumber, lastTableID)
	for _, ev := range events {
		if len(ev.Descriptors) > 0x0FFF {
			return nil, e(bitstream.ErrInvalidValue, "event_id", ev.ID, "loop_length", len(ev.Descriptors))
		}
		var head [eitEventHead]byte
		head[0], head[1] = byte(ev.ID>>8), byte(ev.ID)
		if err := EncodeUTC(head[2:], ev.Start); err != nil {
			return nil, e(err, "event_id", ev.ID)
		}
		if err := EncodeDuration(head[7:], ev.Duration); err != nil {
			return nil, e(err, "event_id", ev.ID)
		}
		head[10] = statusByte(ev.RunningStatus, ev.FreeCA, len(ev.Descriptors))
		head[11] = byte(len(ev.Descriptors))
		payload = append(payload, head[:]...)
		payload = append(payload, ev.Descriptors...)
	}
	return Build(tableID, true, h, payload)
}

// NewTDT builds a TDT carrying t.
func NewTDT(t time.Time) (Section, error) {
	var payload [UTCLen]byte
	if err := EncodeUTC(payload[:], t); err != nil {
		return nil, err
	}
	return Build(TableIDTDT, false, SyntaxHeader{}, payload[:])
}

// NewTOT builds a TOT carrying t and descs, usually local time offset
// descriptors.
func NewTOT(t time.Time, descs []byte) (Section, error) {
	payload := make([]byte, UTCLen, UTCLen+2+len(descs))
	if err := EncodeUTC(payload, t); err != nil {
		return nil, err
	}
	payload, err := appendLoop(payload, descs)
	if err != nil {
		return nil, err
	}
	return Build(TableIDTOT, false, SyntaxHeader{}, payload)
}
