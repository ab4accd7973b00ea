package psi

import (
	"time"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

// Running status values of EN 300 468.
const (
	RunningUndefined  = 0
	RunningNot        = 1
	RunningStartsSoon = 2
	RunningPausing    = 3
	RunningRunning    = 4
	RunningOffAir     = 5
)

var (
	fieldRunningStatus = bitfield.NewUint[uint8](0, 0, 3)
	fieldFreeCA        = bitfield.NewFlag(0, 3)
	fieldEITSchedule   = bitfield.NewFlag(0, 6)
	fieldEITPF         = bitfield.NewFlag(0, 7)
)

func u16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// TransportStream is an entry of the NIT and BAT transport stream loop.
type TransportStream struct {
	TSID        uint16
	ONID        uint16
	Descriptors []byte
}

// NIT is a validated network information table section. Bouquet association
// tables share its layout.
type NIT struct {
	Section
}

// ValidateNIT validates a NIT section of the actual or another network.
func ValidateNIT(buf []byte, opts ...ValidateOption) (NIT, error) {
	return validateNIT("psi.ValidateNIT", buf, opts, TableIDNITActual, TableIDNITOther)
}

// ValidateBAT validates a bouquet association table section.
func ValidateBAT(buf []byte, opts ...ValidateOption) (NIT, error) {
	return validateNIT("psi.ValidateBAT", buf, opts, TableIDBAT)
}

func validateNIT(op string, buf []byte, opts []ValidateOption, ids ...uint8) (NIT, error) {
	s, err := expect(op, buf, opts, ids...)
	if err != nil {
		return NIT{}, err
	}
	if err = requireSyntax(op, s, true); err != nil {
		return NIT{}, err
	}
	payload := s.Payload()
	descs, next, err := descLoop(op, payload, 0)
	if err != nil {
		return NIT{}, err
	}
	if err = checkDescriptors(op, descs); err != nil {
		return NIT{}, err
	}
	loop, end, err := descLoop(op, payload, next)
	if err != nil {
		return NIT{}, err
	}
	if end != len(payload) {
		return NIT{}, errors.E(op, errors.K.Invalid, bitstream.ErrLengthMismatch,
			"reason", "transport stream loop does not end the section", "end", end, "len", len(payload))
	}
	if _, err = walkEntries(op, loop, 6); err != nil {
		return NIT{}, err
	}
	return NIT{s}, nil
}

// NetworkID is the network id of a NIT or the bouquet id of a BAT.
func (n NIT) NetworkID() uint16 { return n.TableIDExtension() }

func (n NIT) Descriptors() []byte {
	descs, _, _ := descLoop("psi.NIT", n.Payload(), 0)
	return descs
}

func (n NIT) TransportStreams() []TransportStream {
	payload := n.Payload()
	_, next, err := descLoop("psi.NIT", payload, 0)
	if err != nil {
		return nil
	}
	loop, _, err := descLoop("psi.NIT", payload, next)
	if err != nil {
		return nil
	}
	entries, _ := walkEntries("psi.NIT", loop, 6)
	ts := make([]TransportStream, 0, len(entries))
	for _, en := range entries {
		ts = append(ts, TransportStream{
			TSID:        u16(en.head),
			ONID:        u16(en.head[2:]),
			Descriptors: en.descs,
		})
	}
	return ts
}

// Service is an entry of the SDT service loop.
type Service struct {
	ID                  uint16
	EITSchedule         bool
	EITPresentFollowing bool
	RunningStatus       uint8
	FreeCA              bool
	Descriptors         []byte
}

// SDT is a validated service description table section.
type SDT struct {
	Section
}

const sdtHeaderLen = 3

// ValidateSDT validates a SDT section of the actual or another transport
// stream.
func ValidateSDT(buf []byte, opts ...ValidateOption) (SDT, error) {
	const op = "psi.ValidateSDT"
	s, err := expect(op, buf, opts, TableIDSDTActual, TableIDSDTOther)
	if err != nil {
		return SDT{}, err
	}
	if err = requireSyntax(op, s, true); err != nil {
		return SDT{}, err
	}
	payload := s.Payload()
	if len(payload) < sdtHeaderLen {
		return SDT{}, errors.E(op, errors.K.Invalid, bitstream.ErrTooShort, "len", len(payload))
	}
	if _, err = walkEntries(op, payload[sdtHeaderLen:], 5); err != nil {
		return SDT{}, err
	}
	return SDT{s}, nil
}

func (s SDT) TransportStreamID() uint16 { return s.TableIDExtension() }
func (s SDT) OriginalNetworkID() uint16 { return u16(s.Payload()) }

func (s SDT) Services() []Service {
	entries, _ := walkEntries("psi.SDT", s.Payload()[sdtHeaderLen:], 5)
	services := make([]Service, 0, len(entries))
	for _, en := range entries {
		services = append(services, Service{
			ID:                  u16(en.head),
			EITSchedule:         fieldEITSchedule.Value(en.head[2:]),
			EITPresentFollowing: fieldEITPF.Value(en.head[2:]),
			RunningStatus:       fieldRunningStatus.Value(en.head[3:]),
			FreeCA:              fieldFreeCA.Value(en.head[3:]),
			Descriptors:         en.descs,
		})
	}
	return services
}

// Event is an entry of the EIT event loop. Start is the zero time when the
// start time is undefined.
type Event struct {
	ID            uint16
	Start         time.Time
	Duration      time.Duration
	RunningStatus uint8
	FreeCA        bool
	Descriptors   []byte
}

// EIT is a validated event information table section.
type EIT struct {
	Section
}

const (
	eitHeaderLen = 6
	eitEventHead = 12
)

// ValidateEIT validates an EIT section of any of the present/following and
// schedule tables. Event start times and durations must be valid BCD.
func ValidateEIT(buf []byte, opts ...ValidateOption) (EIT, error) {
	const op = "psi.ValidateEIT"
	s, err := expectRange(op, buf, opts, TableIDEITFirst, TableIDEITLast)
	if err != nil {
		return EIT{}, err
	}
	if err = requireSyntax(op, s, true); err != nil {
		return EIT{}, err
	}
	payload := s.Payload()
	if len(payload) < eitHeaderLen {
		return EIT{}, errors.E(op, errors.K.Invalid, bitstream.ErrTooShort, "len", len(payload))
	}
	entries, err := walkEntries(op, payload[eitHeaderLen:], eitEventHead)
	if err != nil {
		return EIT{}, err
	}
	for _, en := range entries {
		if _, err = DecodeUTC(en.head[2:]); err != nil {
			return EIT{}, errors.E(op, errors.K.Invalid, err, "event_id", u16(en.head))
		}
		if _, err = DecodeDuration(en.head[7:]); err != nil {
			return EIT{}, errors.E(op, errors.K.Invalid, err, "event_id", u16(en.head))
		}
	}
	return EIT{s}, nil
}

func (e EIT) ServiceID() uint16               { return e.TableIDExtension() }
func (e EIT) TransportStreamID() uint16       { return u16(e.Payload()) }
func (e EIT) OriginalNetworkID() uint16       { return u16(e.Payload()[2:]) }
func (e EIT) SegmentLastSectionNumber() uint8 { return e.Payload()[4] }
func (e EIT) LastTableID() uint8              { return e.Payload()[5] }
func (e EIT) PresentFollowing() bool          { return e.TableID() <= TableIDEITPFOther }

func (e EIT) Events() []Event {
	entries, _ := walkEntries("psi.EIT", e.Payload()[eitHeaderLen:], eitEventHead)
	events := make([]Event, 0, len(entries))
	for _, en := range entries {
		start, _ := DecodeUTC(en.head[2:])
		duration, _ := DecodeDuration(en.head[7:])
		events = append(events, Event{
			ID:            u16(en.head),
			Start:         start,
			Duration:      duration,
			RunningStatus: fieldRunningStatus.Value(en.head[10:]),
			FreeCA:        fieldFreeCA.Value(en.head[10:]),
			Descriptors:   en.descs,
		})
	}
	return events
}

// TDT is a validated time and date table section.
type TDT struct {
	Section
}

// ValidateTDT validates a TDT section. The TDT has no CRC.
func ValidateTDT(buf []byte, opts ...ValidateOption) (TDT, error) {
	const op = "psi.ValidateTDT"
	s, err := expect(op, buf, opts, TableIDTDT)
	if err != nil {
		return TDT{}, err
	}
	if err = requireSyntax(op, s, false); err != nil {
		return TDT{}, err
	}
	if len(s.Payload()) != UTCLen {
		return TDT{}, errors.E(op, errors.K.Invalid, bitstream.ErrLengthMismatch, "len", len(s.Payload()))
	}
	if _, err = DecodeUTC(s.Payload()); err != nil {
		return TDT{}, errors.E(op, errors.K.Invalid, err)
	}
	return TDT{s}, nil
}

func (t TDT) UTC() time.Time {
	utc, _ := DecodeUTC(t.Payload())
	return utc
}

// TOT is a validated time offset table section.
type TOT struct {
	Section
}

// ValidateTOT validates a TOT section, including its CRC.
func ValidateTOT(buf []byte, opts ...ValidateOption) (TOT, error) {
	const op = "psi.ValidateTOT"
	s, err := expect(op, buf, opts, TableIDTOT)
	if err != nil {
		return TOT{}, err
	}
	if err = requireSyntax(op, s, false); err != nil {
		return TOT{}, err
	}
	payload := s.Payload()
	if len(payload) < UTCLen+2 {
		return TOT{}, errors.E(op, errors.K.Invalid, bitstream.ErrTooShort, "len", len(payload))
	}
	if _, err = DecodeUTC(payload); err != nil {
		return TOT{}, errors.E(op, errors.K.Invalid, err)
	}
	descs, end, err := descLoop(op, payload, UTCLen)
	if err != nil {
		return TOT{}, err
	}
	if end != len(payload) {
		return TOT{}, errors.E(op, errors.K.Invalid, bitstream.ErrLengthMismatch,
			"reason", "descriptor loop does not end the section", "end", end, "len", len(payload))
	}
	if err = checkDescriptors(op, descs); err != nil {
		return TOT{}, err
	}
	return TOT{s}, nil
}

func (t TOT) UTC() time.Time {
	utc, _ := DecodeUTC(t.Payload())
	return utc
}

func (t TOT) Descriptors() []byte {
	descs, _, _ := descLoop("psi.TOT", t.Payload(), UTCLen)
	return descs
}

// RunningStatus is an entry of the RST.
type RunningStatus struct {
	TSID      uint16
	ONID      uint16
	ServiceID uint16
	EventID   uint16
	Status    uint8
}

const rstEntryLen = 9

// RST is a validated running status table section.
type RST struct {
	Section
}

// ValidateRST validates a RST section.
func ValidateRST(buf []byte, opts ...ValidateOption) (RST, error) {
	const op = "psi.ValidateRST"
	s, err := expect(op, buf, opts, TableIDRST)
	if err != nil {
		return RST{}, err
	}
	if err = requireSyntax(op, s, false); err != nil {
		return RST{}, err
	}
	if len(s.Payload())%rstEntryLen != 0 {
		return RST{}, errors.E(op, errors.K.Invalid, bitstream.ErrLengthMismatch,
			"reason", "status loop not a multiple of 9", "len", len(s.Payload()))
	}
	return RST{s}, nil
}

func (r RST) Statuses() []RunningStatus {
	payload := r.Payload()
	statuses := make([]RunningStatus, 0, len(payload)/rstEntryLen)
	for off := 0; off+rstEntryLen <= len(payload); off += rstEntryLen {
		b := payload[off:]
		statuses = append(statuses, RunningStatus{
			TSID:      u16(b),
			ONID:      u16(b[2:]),
			ServiceID: u16(b[4:]),
			EventID:   u16(b[6:]),
			Status:    b[8] & 0x07,
		})
	}
	return statuses
}

// SITService is an entry of the SIT service loop.
type SITService struct {
	ID            uint16
	RunningStatus uint8
	Descriptors   []byte
}

// SIT is a validated selection information table section, as found in
// partial transport streams.
type SIT struct {
	Section
}

// ValidateSIT validates a SIT section.
func ValidateSIT(buf []byte, opts ...ValidateOption) (SIT, error) {
	const op = "psi.ValidateSIT"
	s, err := expect(op, buf, opts, TableIDSIT)
	if err != nil {
		return SIT{}, err
	}
	if err = requireSyntax(op, s, true); err != nil {
		return SIT{}, err
	}
	payload := s.Payload()
	descs, next, err := descLoop(op, payload, 0)
	if err != nil {
		return SIT{}, err
	}
	if err = checkDescriptors(op, descs); err != nil {
		return SIT{}, err
	}
	if _, err = walkEntries(op, payload[next:], 4); err != nil {
		return SIT{}, err
	}
	return SIT{s}, nil
}

func (s SIT) Descriptors() []byte {
	descs, _, _ := descLoop("psi.SIT", s.Payload(), 0)
	return descs
}

func (s SIT) Services() []SITService {
	payload := s.Payload()
	_, next, err := descLoop("psi.SIT", payload, 0)
	if err != nil {
		return nil
	}
	entries, _ := walkEntries("psi.SIT", payload[next:], 4)
	services := make([]SITService, 0, len(entries))
	for _, en := range entries {
		services = append(services, SITService{
			ID:            u16(en.head),
			RunningStatus: en.head[2] >> 4 & 0x07,
			Descriptors:   en.descs,
		})
	}
	return services
}
