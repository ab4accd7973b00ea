package desc

import (
	"time"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
	"github.com/eluv-io/bitstream/psi"
)

// Name is a network name (0x40) or bouquet name (0x47) descriptor. Both carry
// a single DVB text field.
type Name struct {
	Descriptor
}

func ValidateNetworkName(buf []byte) (Name, error) {
	d, err := expect("desc.ValidateNetworkName", buf, TagNetworkName, nil)
	return Name{d}, err
}

// ValidateBouquetName validates a bouquet name descriptor, which has the
// layout of the network name descriptor.
func ValidateBouquetName(buf []byte) (Name, error) {
	d, err := expect("desc.ValidateBouquetName", buf, TagBouquetName, nil)
	return Name{d}, err
}

func NewNetworkName(name string) (Name, error) {
	d, err := New(TagNetworkName, EncodeString(name))
	return Name{d}, err
}

func NewBouquetName(name string) (Name, error) {
	n, err := NewNetworkName(name)
	if err != nil {
		return Name{}, err
	}
	n.Descriptor[0] = TagBouquetName
	return n, nil
}

// Text returns the encoded name.
func (n Name) Text() []byte { return n.Payload() }

// ServiceRef is an entry of the service list descriptor.
type ServiceRef struct {
	ID   uint16
	Type uint8
}

// ServiceList is a service list descriptor (0x41).
type ServiceList struct {
	Descriptor
}

func ValidateServiceList(buf []byte) (ServiceList, error) {
	d, err := expect("desc.ValidateServiceList", buf, TagServiceList, entries(3))
	return ServiceList{d}, err
}

func NewServiceList(services ...ServiceRef) (ServiceList, error) {
	payload := make([]byte, 0, 3*len(services))
	for _, s := range services {
		payload = append(payload, byte(s.ID>>8), byte(s.ID), s.Type)
	}
	d, err := New(TagServiceList, payload)
	return ServiceList{d}, err
}

func (s ServiceList) Services() []ServiceRef {
	p := s.Payload()
	refs := make([]ServiceRef, 0, len(p)/3)
	for off := 0; off+3 <= len(p); off += 3 {
		refs = append(refs, ServiceRef{ID: uint16(p[off])<<8 | uint16(p[off+1]), Type: p[off+2]})
	}
	return refs
}

// ValidateStuffing validates a stuffing descriptor (0x42), whose payload is
// ignored.
func ValidateStuffing(buf []byte) (Descriptor, error) {
	return expect("desc.ValidateStuffing", buf, TagStuffing, nil)
}

// TeletextPage is an entry of the teletext and VBI teletext descriptors.
type TeletextPage struct {
	Language string
	Type     uint8
	Magazine uint8
	Page     uint8
}

// Teletext types
const (
	TeletextInitial            = 0x01
	TeletextSubtitle           = 0x02
	TeletextInformation        = 0x03
	TeletextSchedule           = 0x04
	TeletextSubtitleHearingImp = 0x05
)

// Teletext is a teletext (0x56) or VBI teletext (0x46) descriptor.
type Teletext struct {
	Descriptor
}

func ValidateTeletext(buf []byte) (Teletext, error) {
	d, err := expect("desc.ValidateTeletext", buf, TagTeletext, entries(5))
	return Teletext{d}, err
}

// ValidateVBITeletext validates a VBI teletext descriptor, which has the
// layout of the teletext descriptor.
func ValidateVBITeletext(buf []byte) (Teletext, error) {
	d, err := expect("desc.ValidateVBITeletext", buf, TagVBITeletext, entries(5))
	return Teletext{d}, err
}

func NewTeletext(pages ...TeletextPage) (Teletext, error) {
	payload := make([]byte, 0, 5*len(pages))
	for _, pg := range pages {
		code, err := langCode("desc.NewTeletext", pg.Language)
		if err != nil {
			return Teletext{}, err
		}
		if pg.Type > 0x1F || pg.Magazine > 7 {
			return Teletext{}, errors.E("desc.NewTeletext", errors.K.Invalid, bitstream.ErrInvalidValue,
				"type", pg.Type, "magazine", pg.Magazine)
		}
		payload = append(append(payload, code...), pg.Type<<3|pg.Magazine, pg.Page)
	}
	d, err := New(TagTeletext, payload)
	return Teletext{d}, err
}

func (t Teletext) Pages() []TeletextPage {
	p := t.Payload()
	pages := make([]TeletextPage, 0, len(p)/5)
	for off := 0; off+5 <= len(p); off += 5 {
		pages = append(pages, TeletextPage{
			Language: string(p[off : off+3]),
			Type:     p[off+3] >> 3,
			Magazine: p[off+3] & 0x07,
			Page:     p[off+4],
		})
	}
	return pages
}

// Service is a service descriptor (0x48).
type Service struct {
	Descriptor
}

// Service types
const (
	ServiceTypeTV       = 0x01
	ServiceTypeRadio    = 0x02
	ServiceTypeTeletext = 0x03
	ServiceTypeHDTV     = 0x19
	ServiceTypeHEVCTV   = 0x1F
)

func ValidateService(buf []byte) (Service, error) {
	d, err := expect("desc.ValidateService", buf, TagService, func(p []byte) error {
		if len(p) < 2 {
			return errors.E("desc.Service", errors.K.Invalid, bitstream.ErrTooShort, "len", len(p))
		}
		n := int(p[1])
		if 2+n+1 > len(p) || 2+n+1+int(p[2+n]) != len(p) {
			return errors.E("desc.Service", errors.K.Invalid, bitstream.ErrLengthMismatch,
				"reason", "name lengths disagree with descriptor length", "len", len(p))
		}
		return nil
	})
	return Service{d}, err
}

func NewService(serviceType uint8, provider, name string) (Service, error) {
	pb, nb := EncodeString(provider), EncodeString(name)
	if len(pb) > 0xFF || len(nb) > 0xFF {
		return Service{}, errors.E("desc.NewService", errors.K.Invalid, bitstream.ErrInvalidValue, "reason", "name too long")
	}
	payload := append([]byte{serviceType, byte(len(pb))}, pb...)
	payload = append(append(payload, byte(len(nb))), nb...)
	d, err := New(TagService, payload)
	return Service{d}, err
}

func (s Service) ServiceType() uint8 { return s.Payload()[0] }

func (s Service) Provider() []byte {
	p := s.Payload()
	return p[2 : 2+int(p[1])]
}

func (s Service) Name() []byte {
	p := s.Payload()
	off := 2 + int(p[1])
	return p[off+1 : off+1+int(p[off])]
}

// Linkage is a linkage descriptor (0x4A).
type Linkage struct {
	Descriptor
}

// Linkage types
const (
	LinkageInformation    = 0x01
	LinkageEPG            = 0x02
	LinkageCAReplacement  = 0x03
	LinkageServiceReplace = 0x05
	LinkageMobileHandover = 0x08
	LinkageSystemSoftware = 0x09
)

var (
	fieldLinkageTSID    = bitfield.NewUint[uint16](HeaderLen, 0, 16)
	fieldLinkageONID    = bitfield.NewUint[uint16](HeaderLen+2, 0, 16)
	fieldLinkageService = bitfield.NewUint[uint16](HeaderLen+4, 0, 16)
	fieldLinkageType    = bitfield.NewUint[uint8](HeaderLen+6, 0, 8)
)

func ValidateLinkage(buf []byte) (Linkage, error) {
	d, err := expect("desc.ValidateLinkage", buf, TagLinkage, minLen(7))
	return Linkage{d}, err
}

func NewLinkage(tsid, onid, service uint16, linkageType uint8, private []byte) (Linkage, error) {
	payload := []byte{byte(tsid >> 8), byte(tsid), byte(onid >> 8), byte(onid), byte(service >> 8), byte(service), linkageType}
	d, err := New(TagLinkage, append(payload, private...))
	return Linkage{d}, err
}

func (l Linkage) TransportStreamID() uint16 { return fieldLinkageTSID.Value(l.Descriptor) }
func (l Linkage) OriginalNetworkID() uint16 { return fieldLinkageONID.Value(l.Descriptor) }
func (l Linkage) ServiceID() uint16         { return fieldLinkageService.Value(l.Descriptor) }
func (l Linkage) LinkageType() uint8        { return fieldLinkageType.Value(l.Descriptor) }
func (l Linkage) PrivateData() []byte       { return l.Payload()[7:] }

// ShortEvent is a short event descriptor (0x4D).
type ShortEvent struct {
	Descriptor
}

func ValidateShortEvent(buf []byte) (ShortEvent, error) {
	d, err := expect("desc.ValidateShortEvent", buf, TagShortEvent, func(p []byte) error {
		if len(p) < 5 {
			return errors.E("desc.ShortEvent", errors.K.Invalid, bitstream.ErrTooShort, "len", len(p))
		}
		n := int(p[3])
		if 4+n+1 > len(p) || 4+n+1+int(p[4+n]) != len(p) {
			return errors.E("desc.ShortEvent", errors.K.Invalid, bitstream.ErrLengthMismatch,
				"reason", "text lengths disagree with descriptor length", "len", len(p))
		}
		return nil
	})
	return ShortEvent{d}, err
}

func NewShortEvent(lang, name, text string) (ShortEvent, error) {
	code, err := langCode("desc.NewShortEvent", lang)
	if err != nil {
		return ShortEvent{}, err
	}
	nb, tb := EncodeString(name), EncodeString(text)
	if 5+len(nb)+len(tb) > MaxLength {
		return ShortEvent{}, errors.E("desc.NewShortEvent", errors.K.Invalid, bitstream.ErrInvalidValue, "reason", "text too long")
	}
	payload := append(append(code, byte(len(nb))), nb...)
	payload = append(append(payload, byte(len(tb))), tb...)
	d, err := New(TagShortEvent, payload)
	return ShortEvent{d}, err
}

func (s ShortEvent) Language() string { return string(s.Payload()[:3]) }

func (s ShortEvent) EventName() []byte {
	p := s.Payload()
	return p[4 : 4+int(p[3])]
}

func (s ShortEvent) Text() []byte {
	p := s.Payload()
	off := 4 + int(p[3])
	return p[off+1 : off+1+int(p[off])]
}

// StreamIdentifier is a stream identifier descriptor (0x52).
type StreamIdentifier struct {
	Descriptor
}

func ValidateStreamIdentifier(buf []byte) (StreamIdentifier, error) {
	d, err := expect("desc.ValidateStreamIdentifier", buf, TagStreamIdentifier, exactLen(1))
	return StreamIdentifier{d}, err
}

func NewStreamIdentifier(componentTag uint8) (StreamIdentifier, error) {
	d, err := New(TagStreamIdentifier, []byte{componentTag})
	return StreamIdentifier{d}, err
}

func (s StreamIdentifier) ComponentTag() uint8 { return s.Payload()[0] }

// TimeOffset is an entry of the local time offset descriptor.
type TimeOffset struct {
	Country      string
	Region       uint8
	Offset       time.Duration
	TimeOfChange time.Time
	NextOffset   time.Duration
}

// LocalTimeOffset is a local time offset descriptor (0x58).
type LocalTimeOffset struct {
	Descriptor
}

const timeOffsetLen = 13

func ValidateLocalTimeOffset(buf []byte) (LocalTimeOffset, error) {
	d, err := expect("desc.ValidateLocalTimeOffset", buf, TagLocalTimeOffset, func(p []byte) error {
		if err := entries(timeOffsetLen)(p); err != nil {
			return err
		}
		for off := 0; off < len(p); off += timeOffsetLen {
			if _, err := psi.DecodeUTC(p[off+6:]); err != nil {
				return err
			}
		}
		return nil
	})
	return LocalTimeOffset{d}, err
}

// decodeOffset decodes a polarity bit and a 16-bit BCD hhmm offset.
func decodeOffset(negative bool, b []byte) time.Duration {
	h := int(b[0]>>4)*10 + int(b[0]&0x0F)
	m := int(b[1]>>4)*10 + int(b[1]&0x0F)
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if negative {
		return -d
	}
	return d
}

func encodeOffset(d time.Duration) (bool, [2]byte) {
	negative := d < 0
	if negative {
		d = -d
	}
	mins := int(d / time.Minute)
	h, m := mins/60%100, mins%60
	return negative, [2]byte{byte(h/10<<4 | h%10), byte(m/10<<4 | m%10)}
}

func NewLocalTimeOffset(offsets ...TimeOffset) (LocalTimeOffset, error) {
	payload := make([]byte, 0, timeOffsetLen*len(offsets))
	for _, o := range offsets {
		code, err := langCode("desc.NewLocalTimeOffset", o.Country)
		if err != nil {
			return LocalTimeOffset{}, err
		}
		if o.Region > 0x3F || o.Offset != o.NextOffset && (o.Offset < 0) != (o.NextOffset < 0) {
			return LocalTimeOffset{}, errors.E("desc.NewLocalTimeOffset", errors.K.Invalid, bitstream.ErrInvalidValue,
				"region", o.Region, "offset", o.Offset, "next_offset", o.NextOffset)
		}
		var entry [timeOffsetLen]byte
		copy(entry[:], code)
		neg, off := encodeOffset(o.Offset)
		entry[3] = o.Region<<2 | 0x02
		if neg {
			entry[3] |= 0x01
		}
		copy(entry[4:], off[:])
		if err = psi.EncodeUTC(entry[6:], o.TimeOfChange); err != nil {
			return LocalTimeOffset{}, err
		}
		_, next := encodeOffset(o.NextOffset)
		copy(entry[11:], next[:])
		payload = append(payload, entry[:]...)
	}
	d, err := New(TagLocalTimeOffset, payload)
	return LocalTimeOffset{d}, err
}

func (l LocalTimeOffset) Offsets() []TimeOffset {
	p := l.Payload()
	offsets := make([]TimeOffset, 0, len(p)/timeOffsetLen)
	for off := 0; off+timeOffsetLen <= len(p); off += timeOffsetLen {
		e := p[off : off+timeOffsetLen]
		neg := e[3]&0x01 == 1
		change, _ := psi.DecodeUTC(e[6:])
		offsets = append(offsets, TimeOffset{
			Country:      string(e[:3]),
			Region:       e[3] >> 2,
			Offset:       decodeOffset(neg, e[4:]),
			TimeOfChange: change,
			NextOffset:   decodeOffset(neg, e[11:]),
		})
	}
	return offsets
}

// Subtitle is an entry of the subtitling descriptor.
type Subtitle struct {
	Language        string
	Type            uint8
	CompositionPage uint16
	AncillaryPage   uint16
}

// Subtitling is a subtitling descriptor (0x59).
type Subtitling struct {
	Descriptor
}

func ValidateSubtitling(buf []byte) (Subtitling, error) {
	d, err := expect("desc.ValidateSubtitling", buf, TagSubtitling, entries(8))
	return Subtitling{d}, err
}

func NewSubtitling(subs ...Subtitle) (Subtitling, error) {
	payload := make([]byte, 0, 8*len(subs))
	for _, s := range subs {
		code, err := langCode("desc.NewSubtitling", s.Language)
		if err != nil {
			return Subtitling{}, err
		}
		payload = append(append(payload, code...), s.Type,
			byte(s.CompositionPage>>8), byte(s.CompositionPage),
			byte(s.AncillaryPage>>8), byte(s.AncillaryPage))
	}
	d, err := New(TagSubtitling, payload)
	return Subtitling{d}, err
}

func (s Subtitling) Subtitles() []Subtitle {
	p := s.Payload()
	subs := make([]Subtitle, 0, len(p)/8)
	for off := 0; off+8 <= len(p); off += 8 {
		subs = append(subs, Subtitle{
			Language:        string(p[off : off+3]),
			Type:            p[off+3],
			CompositionPage: uint16(p[off+4])<<8 | uint16(p[off+5]),
			AncillaryPage:   uint16(p[off+6])<<8 | uint16(p[off+7]),
		})
	}
	return subs
}

// PrivateDataSpecifier is a private data specifier descriptor (0x5F). It
// sets the meaning of the private descriptors that follow it in a list.
type PrivateDataSpecifier struct {
	Descriptor
}

var fieldSpecifier = bitfield.NewUint[uint32](HeaderLen, 0, 32)

// Well known private data specifiers
const (
	SpecifierEACEM  uint32 = 0x00000028
	SpecifierNordig uint32 = 0x00000029
)

func ValidatePrivateDataSpecifier(buf []byte) (PrivateDataSpecifier, error) {
	d, err := expect("desc.ValidatePrivateDataSpecifier", buf, TagPrivateDataSpecifier, exactLen(4))
	return PrivateDataSpecifier{d}, err
}

func NewPrivateDataSpecifier(specifier uint32) (PrivateDataSpecifier, error) {
	d, err := New(TagPrivateDataSpecifier, make([]byte, 4))
	if err != nil {
		return PrivateDataSpecifier{}, err
	}
	fieldSpecifier.Put(d, specifier)
	return PrivateDataSpecifier{d}, nil
}

func (p PrivateDataSpecifier) Specifier() uint32 { return fieldSpecifier.Value(p.Descriptor) }
