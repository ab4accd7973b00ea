package id3

import (
	"bytes"
	"strings"

	"github.com/eluv-io/errors-go"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
)

// Text encodings of text frames.
const (
	EncodingLatin1  = 0x00
	EncodingUTF16   = 0x01
	EncodingUTF16BE = 0x02
	EncodingUTF8    = 0x03
)

// Frame ids with a dedicated layout.
const (
	FrameUserText = "TXXX"
	FramePrivate  = "PRIV"
	FrameUFID     = "UFID"
)

// MaxUFIDLen is the largest UFID identifier.
const MaxUFIDLen = 64

var charsets = map[byte]string{
	EncodingLatin1:  output.CharsetLatin1,
	EncodingUTF16:   output.CharsetUTF16,
	EncodingUTF16BE: output.CharsetUTF16BE,
	EncodingUTF8:    output.CharsetUTF8,
}

// IsText tells whether id names a text information frame.
func IsText(id string) bool {
	return len(id) == 4 && id[0] == 'T' && id != FrameUserText
}

func terminatorLen(enc byte) int {
	if enc == EncodingUTF16 || enc == EncodingUTF16BE {
		return 2
	}
	return 1
}

// splitTerminated splits b at the first terminator of the encoding. ok is
// false when b holds no terminator.
func splitTerminated(enc byte, b []byte) (head, rest []byte, ok bool) {
	if terminatorLen(enc) == 1 {
		i := bytes.IndexByte(b, 0)
		if i < 0 {
			return b, nil, false
		}
		return b[:i], b[i+1:], true
	}
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			return b[:i], b[i+2:], true
		}
	}
	return b, nil, false
}

func decode(t output.Transcoder, enc byte, b []byte) (string, error) {
	charset, ok := charsets[enc]
	if !ok {
		return "", errors.E("id3.decode", errors.K.Invalid, bitstream.ErrInvalidValue, "encoding", enc)
	}
	if t == nil {
		t = output.DefaultTranscoder
	}
	return t.Transcode(charset, b)
}

// Text decodes the values of a text information frame. v2.4 frames may hold
// several null separated values.
func Text(f Frame, t output.Transcoder) ([]string, error) {
	e := errors.Template("id3.Text", errors.K.Invalid, "frame", f.ID)
	if !IsText(f.ID) {
		return nil, e(bitstream.ErrInvalidValue, "reason", "not a text frame")
	}
	data, err := f.Content()
	if err != nil {
		return nil, e(err)
	}
	if len(data) < 1 {
		return nil, e(bitstream.ErrTooShort)
	}
	enc, rest := data[0], data[1:]
	var values []string
	for len(rest) > 0 {
		head, tail, ok := splitTerminated(enc, rest)
		s, err := decode(t, enc, head)
		if err != nil {
			return nil, e(err)
		}
		values = append(values, s)
		if !ok {
			break
		}
		rest = tail
	}
	return values, nil
}

// UserText decodes a TXXX frame.
func UserText(f Frame, t output.Transcoder) (description, value string, err error) {
	e := errors.Template("id3.UserText", errors.K.Invalid, "frame", f.ID)
	if f.ID != FrameUserText {
		return "", "", e(bitstream.ErrInvalidValue, "reason", "not a TXXX frame")
	}
	data, err := f.Content()
	if err != nil {
		return "", "", e(err)
	}
	if len(data) < 1 {
		return "", "", e(bitstream.ErrTooShort)
	}
	enc := data[0]
	head, rest, ok := splitTerminated(enc, data[1:])
	if !ok {
		return "", "", e(bitstream.ErrMalformedList, "reason", "unterminated description")
	}
	if description, err = decode(t, enc, head); err != nil {
		return "", "", e(err)
	}
	raw, _, _ := splitTerminated(enc, rest)
	if value, err = decode(t, enc, raw); err != nil {
		return "", "", e(err)
	}
	return description, value, nil
}

// Owned is the content of PRIV and UFID frames: a Latin-1 owner identifier
// followed by binary data.
type Owned struct {
	Owner string
	Data  []byte
}

// DecodeOwned decodes a PRIV or UFID frame.
func DecodeOwned(f Frame) (Owned, error) {
	e := errors.Template("id3.DecodeOwned", errors.K.Invalid, "frame", f.ID)
	if f.ID != FramePrivate && f.ID != FrameUFID {
		return Owned{}, e(bitstream.ErrInvalidValue, "reason", "not a PRIV or UFID frame")
	}
	data, err := f.Content()
	if err != nil {
		return Owned{}, e(err)
	}
	owner, rest, ok := splitTerminated(EncodingLatin1, data)
	if !ok {
		return Owned{}, e(bitstream.ErrMalformedList, "reason", "unterminated owner")
	}
	if f.ID == FrameUFID && (len(owner) == 0 || len(rest) > MaxUFIDLen) {
		return Owned{}, e(bitstream.ErrInvalidValue, "owner_len", len(owner), "id_len", len(rest))
	}
	o, err := decode(nil, EncodingLatin1, owner)
	if err != nil {
		return Owned{}, e(err)
	}
	return Owned{Owner: o, Data: rest}, nil
}

// encodeText picks the narrowest encoding of s for the tag version: Latin-1
// when possible, otherwise UTF-16 with BOM for v2.3 and UTF-8 for v2.4.
func encodeText(version uint8, s string) (byte, []byte, error) {
	if b, err := charmap.ISO8859_1.NewEncoder().String(s); err == nil {
		return EncodingLatin1, []byte(b), nil
	}
	if version >= 4 {
		return EncodingUTF8, []byte(s), nil
	}
	b, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String(s)
	if err != nil {
		return 0, nil, errors.E("id3.encodeText", errors.K.Invalid, bitstream.ErrInvalidValue, "reason", err.Error())
	}
	return EncodingUTF16, []byte(b), nil
}

// encodeValues encodes null separated values with one encoding. v2.3 only
// knows a single value, so values are joined with "/".
func encodeValues(version uint8, values ...string) ([]byte, error) {
	if version == 3 && len(values) > 1 {
		values = []string{strings.Join(values, "/")}
	}
	enc, _, err := encodeText(version, strings.Join(values, ""))
	if err != nil {
		return nil, err
	}
	out := []byte{enc}
	for i, v := range values {
		if i > 0 {
			out = append(out, make([]byte, terminatorLen(enc))...)
		}
		b, err := encodeAs(enc, v)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeAs(enc byte, s string) ([]byte, error) {
	var (
		out string
		err error
	)
	switch enc {
	case EncodingLatin1:
		out, err = charmap.ISO8859_1.NewEncoder().String(s)
	case EncodingUTF16:
		out, err = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String(s)
	case EncodingUTF16BE:
		out, err = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().String(s)
	default:
		out = s
	}
	if err != nil {
		return nil, errors.E("id3.encode", errors.K.Invalid, bitstream.ErrInvalidValue, "reason", err.Error())
	}
	return []byte(out), nil
}
