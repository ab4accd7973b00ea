package output

import (
	"strings"
	"unicode/utf8"

	"github.com/eluv-io/errors-go"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Transcoder converts a text field from the named character set to a Go
// string.
type Transcoder interface {
	Transcode(charset string, data []byte) (string, error)
}

// TranscoderFunc adapts a function to the Transcoder interface.
type TranscoderFunc func(charset string, data []byte) (string, error)

func (f TranscoderFunc) Transcode(charset string, data []byte) (string, error) {
	return f(charset, data)
}

// Character set names understood by DefaultTranscoder.
const (
	CharsetUTF8    = "UTF-8"
	CharsetUTF16   = "UTF-16"
	CharsetUTF16BE = "UTF-16BE"
	CharsetUTF16LE = "UTF-16LE"
	CharsetLatin1  = "ISO-8859-1"
	// CharsetISO6937 is the DVB default table. It is handled as Latin-1,
	// which matches it on the printable ASCII range.
	CharsetISO6937 = "ISO6937"
	CharsetKSX1001 = "KSX1001"
	CharsetGB2312  = "GB2312"
	CharsetBig5    = "BIG5"
)

var charmaps = map[string]encoding.Encoding{
	"ISO-8859-1":   charmap.ISO8859_1,
	"ISO-8859-2":   charmap.ISO8859_2,
	"ISO-8859-3":   charmap.ISO8859_3,
	"ISO-8859-4":   charmap.ISO8859_4,
	"ISO-8859-5":   charmap.ISO8859_5,
	"ISO-8859-6":   charmap.ISO8859_6,
	"ISO-8859-7":   charmap.ISO8859_7,
	"ISO-8859-8":   charmap.ISO8859_8,
	"ISO-8859-9":   charmap.ISO8859_9,
	"ISO-8859-10":  charmap.ISO8859_10,
	"ISO-8859-11":  charmap.Windows874, // superset of TIS-620
	"ISO-8859-13":  charmap.ISO8859_13,
	"ISO-8859-14":  charmap.ISO8859_14,
	"ISO-8859-15":  charmap.ISO8859_15,
	"ISO-8859-16":  charmap.ISO8859_16,
	CharsetISO6937: charmap.ISO8859_1,
	// EUC forms of the DVB double byte tables
	CharsetKSX1001: korean.EUCKR,
	CharsetGB2312:  simplifiedchinese.GBK,
	CharsetBig5:    traditionalchinese.Big5,
}

type xtextTranscoder struct{}

// DefaultTranscoder decodes UTF-8, UTF-16 (with or without byte order mark),
// the ISO-8859 family and the DVB CJK tables with golang.org/x/text. An empty
// charset name is an error.
var DefaultTranscoder Transcoder = xtextTranscoder{}

func (xtextTranscoder) Transcode(charset string, data []byte) (string, error) {
	e := errors.Template("output.Transcode", errors.K.Invalid, "charset", charset)

	name := strings.ToUpper(charset)
	var enc encoding.Encoding
	switch name {
	case "":
		return "", e("reason", "unknown charset")
	case CharsetUTF8:
		if !utf8.Valid(data) {
			return "", e("reason", "invalid UTF-8")
		}
		return string(data), nil
	case CharsetUTF16:
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case CharsetUTF16BE:
		enc = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case CharsetUTF16LE:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	default:
		var ok bool
		if enc, ok = charmaps[name]; !ok {
			return "", e("reason", "unsupported charset")
		}
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", e(err)
	}
	return string(out), nil
}
