package id3

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// Builder assembles a tag frame by frame.
type Builder struct {
	version uint8
	frames  []byte
	padding int
	footer  bool
}

// NewBuilder returns a builder for a v2.3 or v2.4 tag.
func NewBuilder(version uint8) *Builder {
	return &Builder{version: version}
}

// Padding reserves n zero bytes after the last frame.
func (b *Builder) Padding(n int) *Builder {
	b.padding = n
	return b
}

// Footer appends a footer to v2.4 tags.
func (b *Builder) Footer() *Builder {
	b.footer = true
	return b
}

// AddFrame appends a frame with the given body as is.
func (b *Builder) AddFrame(id string, flags uint16, data []byte) error {
	e := errors.Template("id3.AddFrame", errors.K.Invalid, "frame", id)
	if len(id) != 4 || !validFrameID([]byte(id)) {
		return e(bitstream.ErrInvalidValue, "reason", "bad frame id")
	}
	var hdr [FrameHeaderLen]byte
	copy(hdr[:], id)
	if b.version == 3 {
		n := uint32(len(data))
		hdr[4], hdr[5], hdr[6], hdr[7] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
	} else if err := EncodeSyncsafe(hdr[4:], uint32(len(data))); err != nil {
		return e(err)
	}
	hdr[8], hdr[9] = byte(flags>>8), byte(flags)
	b.frames = append(append(b.frames, hdr[:]...), data...)
	return nil
}

// AddText appends a text information frame.
func (b *Builder) AddText(id string, values ...string) error {
	if !IsText(id) {
		return errors.E("id3.AddText", errors.K.Invalid, bitstream.ErrInvalidValue, "frame", id)
	}
	data, err := encodeValues(b.version, values...)
	if err != nil {
		return errors.E("id3.AddText", errors.K.Invalid, err, "frame", id)
	}
	return b.AddFrame(id, 0, data)
}

// AddUserText appends a TXXX frame.
func (b *Builder) AddUserText(description, value string) error {
	enc, _, err := encodeText(b.version, description+value)
	if err != nil {
		return errors.E("id3.AddUserText", errors.K.Invalid, err)
	}
	data := []byte{enc}
	for i, s := range []string{description, value} {
		if i > 0 {
			data = append(data, make([]byte, terminatorLen(enc))...)
		}
		v, err := encodeAs(enc, s)
		if err != nil {
			return errors.E("id3.AddUserText", errors.K.Invalid, err)
		}
		data = append(data, v...)
	}
	return b.AddFrame(FrameUserText, 0, data)
}

// AddPrivate appends a PRIV frame.
func (b *Builder) AddPrivate(owner string, data []byte) error {
	body, err := ownedBody("id3.AddPrivate", owner, data)
	if err != nil {
		return err
	}
	return b.AddFrame(FramePrivate, 0, body)
}

// AddUFID appends a UFID frame.
func (b *Builder) AddUFID(owner string, id []byte) error {
	if owner == "" || len(id) > MaxUFIDLen {
		return errors.E("id3.AddUFID", errors.K.Invalid, bitstream.ErrInvalidValue, "owner", owner, "id_len", len(id))
	}
	body, err := ownedBody("id3.AddUFID", owner, id)
	if err != nil {
		return err
	}
	return b.AddFrame(FrameUFID, 0, body)
}

func ownedBody(op, owner string, data []byte) ([]byte, error) {
	o, err := encodeAs(EncodingLatin1, owner)
	if err != nil {
		return nil, errors.E(op, errors.K.Invalid, err, "owner", owner)
	}
	return append(append(o, 0), data...), nil
}

// Tag returns the assembled tag.
func (b *Builder) Tag() (Tag, error) {
	size := len(b.frames) + b.padding
	total := HeaderLen + size
	footer := b.footer && b.version >= 4
	if footer {
		total += HeaderLen
	}
	t, err := Init(make([]byte, total), b.version, size)
	if err != nil {
		return nil, err
	}
	copy(t[HeaderLen:], b.frames)
	if footer {
		fieldFooter.Put(t, true)
		t = t[:total]
		f := t[HeaderLen+size:]
		copy(f, footerMagic)
		copy(f[3:], t[3:HeaderLen])
	}
	return t, nil
}
