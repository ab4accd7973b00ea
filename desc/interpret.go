package desc

import (
	"sync"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream/broadcastproto/tlv"
	"github.com/eluv-io/bitstream/output"
)

// Kind describes how descriptors of one tag are validated and printed.
// Private tags are registered with the private data specifier that gives
// them their meaning.
type Kind struct {
	Tag       uint8
	Name      string
	Specifier uint32
	Validate  func(buf []byte) error
	Print     func(d Descriptor, p *output.Printer)
}

type kindKey struct {
	tag       uint8
	specifier uint32
}

var (
	kindsMu sync.RWMutex
	kinds   = map[kindKey]*Kind{}
	// first specifier registered for each private tag
	defaultSpecifiers = map[uint8]uint32{}
)

// Register adds k to the kinds known to Interpret, replacing any kind with
// the same tag and specifier. The specifier of public tags is ignored.
func Register(k *Kind) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	key := kindKey{tag: k.Tag}
	if IsPrivate(k.Tag) {
		key.specifier = k.Specifier
		if _, ok := defaultSpecifiers[k.Tag]; !ok {
			defaultSpecifiers[k.Tag] = k.Specifier
		}
	}
	kinds[key] = k
}

// Lookup returns the kind of tag under specifier, or nil.
func Lookup(tag uint8, specifier uint32) *Kind {
	key := kindKey{tag: tag}
	if IsPrivate(tag) {
		key.specifier = specifier
	}
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	return kinds[key]
}

func lookupDefault(tag uint8) (*Kind, uint32) {
	kindsMu.RLock()
	specifier, ok := defaultSpecifiers[tag]
	kindsMu.RUnlock()
	if !ok {
		return nil, 0
	}
	return Lookup(tag, specifier), specifier
}

type interpretConfig struct {
	advisory  bool
	walk      []tlv.Option
	specifier uint32
}

// Option configures Interpret.
type Option func(*interpretConfig)

// Advisory interprets a private descriptor by the specifier it was first
// registered with when the list does not carry a matching private data
// specifier. By default such descriptors stay unknown.
func Advisory() Option {
	return func(c *interpretConfig) {
		c.advisory = true
	}
}

// WithSpecifier sets the private data specifier in effect at the start of
// the list, as inherited from an enclosing loop.
func WithSpecifier(specifier uint32) Option {
	return func(c *interpretConfig) {
		c.specifier = specifier
	}
}

// Lenient tolerates trailing bytes after the last whole descriptor, see
// tlv.Lenient.
func Lenient() Option {
	return func(c *interpretConfig) {
		c.walk = append(c.walk, tlv.Lenient())
	}
}

// Interpreted is a descriptor of a list together with its meaning.
type Interpreted struct {
	Descriptor
	// Offset of the descriptor in the list
	Offset int
	// Kind is nil for unknown descriptors and for private descriptors
	// without a matching private data specifier.
	Kind *Kind
	// Specifier is the private data specifier in effect.
	Specifier uint32
	// Err is set when the descriptor does not validate as its kind.
	Err error
}

// Name returns the kind name or "unknown".
func (i Interpreted) Name() string {
	if i.Kind == nil {
		return "unknown"
	}
	return i.Kind.Name
}

// Interpret walks a descriptor list and resolves the kind of each
// descriptor. The list structure is checked in full before anything is
// interpreted; a malformed list yields an error and no descriptors. A
// descriptor that fails its own validation is returned with Err set.
func Interpret(list []byte, opts ...Option) ([]Interpreted, error) {
	cfg := interpretConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var recs []tlv.Record
	it := tlv.Walk(list, len(list), cfg.walk...)
	for it.Next() {
		recs = append(recs, it.Record())
	}
	if err := it.Err(); err != nil {
		return nil, errors.E("desc.Interpret", errors.K.Invalid, err)
	}

	res := make([]Interpreted, 0, len(recs))
	specifier := cfg.specifier
	for _, rec := range recs {
		d := Descriptor(list[rec.Offset : rec.Offset+rec.Size(tlv.Descriptor)])
		in := Interpreted{Descriptor: d, Offset: rec.Offset}
		tag := d.Tag()
		switch {
		case tag == TagPrivateDataSpecifier:
			in.Kind = Lookup(tag, 0)
			if pds, err := ValidatePrivateDataSpecifier(d); err == nil {
				specifier = pds.Specifier()
			}
		case IsPrivate(tag):
			in.Kind = Lookup(tag, specifier)
		default:
			in.Kind = Lookup(tag, 0)
		}
		in.Specifier = specifier
		if in.Kind == nil && IsPrivate(tag) && cfg.advisory {
			if k, pds := lookupDefault(tag); k != nil {
				in.Kind, in.Specifier = k, pds
			}
		}
		if in.Kind != nil && in.Kind.Validate != nil {
			in.Err = in.Kind.Validate(d)
		}
		res = append(res, in)
	}
	return res, nil
}

func init() {
	for _, k := range []*Kind{
		{Tag: TagRegistration, Name: "registration",
			Validate: validator(ValidateRegistration), Print: printRegistration},
		{Tag: TagCA, Name: "CA",
			Validate: validator(ValidateCA), Print: printCA},
		{Tag: TagISO639Language, Name: "ISO_639_language",
			Validate: validator(ValidateISO639Language), Print: printISO639Language},
		{Tag: TagMaximumBitrate, Name: "maximum_bitrate",
			Validate: validator(ValidateMaximumBitrate), Print: printMaximumBitrate},
		{Tag: TagNetworkName, Name: "network_name",
			Validate: validator(ValidateNetworkName), Print: printName},
		{Tag: TagServiceList, Name: "service_list",
			Validate: validator(ValidateServiceList), Print: printServiceList},
		{Tag: TagStuffing, Name: "stuffing",
			Validate: validator(ValidateStuffing), Print: printStuffing},
		{Tag: TagVBITeletext, Name: "VBI_teletext",
			Validate: validator(ValidateVBITeletext), Print: printTeletext},
		{Tag: TagBouquetName, Name: "bouquet_name",
			Validate: validator(ValidateBouquetName), Print: printName},
		{Tag: TagService, Name: "service",
			Validate: validator(ValidateService), Print: printService},
		{Tag: TagLinkage, Name: "linkage",
			Validate: validator(ValidateLinkage), Print: printLinkage},
		{Tag: TagShortEvent, Name: "short_event",
			Validate: validator(ValidateShortEvent), Print: printShortEvent},
		{Tag: TagStreamIdentifier, Name: "stream_identifier",
			Validate: validator(ValidateStreamIdentifier), Print: printStreamIdentifier},
		{Tag: TagTeletext, Name: "teletext",
			Validate: validator(ValidateTeletext), Print: printTeletext},
		{Tag: TagLocalTimeOffset, Name: "local_time_offset",
			Validate: validator(ValidateLocalTimeOffset), Print: printLocalTimeOffset},
		{Tag: TagSubtitling, Name: "subtitling",
			Validate: validator(ValidateSubtitling), Print: printSubtitling},
		{Tag: TagPrivateDataSpecifier, Name: "private_data_specifier",
			Validate: validator(ValidatePrivateDataSpecifier), Print: printPrivateDataSpecifier},
		{Tag: TagLogicalChannel, Name: "eacem_logical_channel", Specifier: SpecifierEACEM,
			Validate: validator(ValidateLogicalChannel), Print: printLogicalChannel},
		{Tag: TagHDSimulcastLogicalChn, Name: "eacem_hd_simulcast_logical_channel", Specifier: SpecifierEACEM,
			Validate: validator(ValidateHDSimulcastLogicalChannel), Print: printLogicalChannel},
	} {
		Register(k)
	}
}

func validator[T any](fn func([]byte) (T, error)) func([]byte) error {
	return func(buf []byte) error {
		_, err := fn(buf)
		return err
	}
}
