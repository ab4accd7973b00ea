package desc

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

// Registration is a registration descriptor (0x05).
type Registration struct {
	Descriptor
}

var fieldFormatIdentifier = bitfield.NewUint[uint32](HeaderLen, 0, 32)

func ValidateRegistration(buf []byte) (Registration, error) {
	d, err := expect("desc.ValidateRegistration", buf, TagRegistration, minLen(4))
	return Registration{d}, err
}

// NewRegistration builds a registration descriptor for the four character
// format identifier id.
func NewRegistration(id string, info []byte) (Registration, error) {
	if len(id) != 4 {
		return Registration{}, errors.E("desc.NewRegistration", errors.K.Invalid, bitstream.ErrInvalidValue, "format_identifier", id)
	}
	d, err := New(TagRegistration, append([]byte(id), info...))
	return Registration{d}, err
}

func (r Registration) FormatIdentifier() uint32 { return fieldFormatIdentifier.Value(r.Descriptor) }

// Format returns the format identifier as text, like "HDMV" or "CUEI".
func (r Registration) Format() string {
	return string(r.Payload()[:4])
}

func (r Registration) AdditionalInfo() []byte { return r.Payload()[4:] }

// CA is a conditional access descriptor (0x09).
type CA struct {
	Descriptor
}

var (
	fieldCASystemID = bitfield.NewUint[uint16](HeaderLen, 0, 16)
	fieldCAPID      = bitfield.NewUint[uint16](HeaderLen+2, 3, 13)
)

func ValidateCA(buf []byte) (CA, error) {
	d, err := expect("desc.ValidateCA", buf, TagCA, minLen(4))
	return CA{d}, err
}

func NewCA(system, pid uint16, private []byte) (CA, error) {
	d, err := New(TagCA, append([]byte{byte(system >> 8), byte(system), 0xE0, 0}, private...))
	if err != nil {
		return CA{}, err
	}
	if err = fieldCAPID.Set(d, pid); err != nil {
		return CA{}, err
	}
	return CA{d}, nil
}

func (c CA) SystemID() uint16    { return fieldCASystemID.Value(c.Descriptor) }
func (c CA) PID() uint16         { return fieldCAPID.Value(c.Descriptor) }
func (c CA) PrivateData() []byte { return c.Payload()[4:] }

// Language is an entry of the ISO 639 language descriptor.
type Language struct {
	Code      string
	AudioType uint8
}

// Audio types
const (
	AudioUndefined       = 0
	AudioCleanEffects    = 1
	AudioHearingImpaired = 2
	AudioVisualImpaired  = 3
)

// ISO639Language is an ISO 639 language descriptor (0x0A).
type ISO639Language struct {
	Descriptor
}

func ValidateISO639Language(buf []byte) (ISO639Language, error) {
	d, err := expect("desc.ValidateISO639Language", buf, TagISO639Language, entries(4))
	return ISO639Language{d}, err
}

func NewISO639Language(langs ...Language) (ISO639Language, error) {
	payload := make([]byte, 0, 4*len(langs))
	for _, l := range langs {
		code, err := langCode("desc.NewISO639Language", l.Code)
		if err != nil {
			return ISO639Language{}, err
		}
		payload = append(append(payload, code...), l.AudioType)
	}
	d, err := New(TagISO639Language, payload)
	return ISO639Language{d}, err
}

func (l ISO639Language) Languages() []Language {
	p := l.Payload()
	langs := make([]Language, 0, len(p)/4)
	for off := 0; off+4 <= len(p); off += 4 {
		langs = append(langs, Language{Code: string(p[off : off+3]), AudioType: p[off+3]})
	}
	return langs
}

func langCode(op, code string) ([]byte, error) {
	if len(code) != 3 {
		return nil, errors.E(op, errors.K.Invalid, bitstream.ErrInvalidValue, "language", code)
	}
	return []byte(code), nil
}

// MaximumBitrate is a maximum bitrate descriptor (0x0E).
type MaximumBitrate struct {
	Descriptor
}

var fieldMaximumBitrate = bitfield.NewUint[uint32](HeaderLen, 2, 22)

// BitrateUnit is the unit of the maximum bitrate field in bytes per second.
const BitrateUnit = 50

func ValidateMaximumBitrate(buf []byte) (MaximumBitrate, error) {
	d, err := expect("desc.ValidateMaximumBitrate", buf, TagMaximumBitrate, exactLen(3))
	return MaximumBitrate{d}, err
}

// NewMaximumBitrate builds the descriptor for a rate in bits per second,
// rounded up to the field unit.
func NewMaximumBitrate(bitsPerSecond uint64) (MaximumBitrate, error) {
	units := (bitsPerSecond/8 + BitrateUnit - 1) / BitrateUnit
	d, err := New(TagMaximumBitrate, []byte{0xC0, 0, 0})
	if err != nil {
		return MaximumBitrate{}, err
	}
	if units > fieldMaximumBitrate.Field.Max() {
		return MaximumBitrate{}, errors.E("desc.NewMaximumBitrate", errors.K.Invalid, bitstream.ErrInvalidValue, "bitrate", bitsPerSecond)
	}
	fieldMaximumBitrate.Put(d, uint32(units))
	return MaximumBitrate{d}, nil
}

// Units returns the raw field, in units of 50 bytes per second.
func (m MaximumBitrate) Units() uint32 { return fieldMaximumBitrate.Value(m.Descriptor) }

// BitsPerSecond returns the maximum bitrate.
func (m MaximumBitrate) BitsPerSecond() uint64 {
	return uint64(m.Units()) * BitrateUnit * 8
}
