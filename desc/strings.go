package desc

import (
	"fmt"
	"unicode/utf8"

	"github.com/eluv-io/bitstream/output"
)

// DVB text selector bytes of EN 300 468 annex A.
const (
	selectorISO8859    = 0x10
	selectorUTF16      = 0x11
	selectorKSX1001    = 0x12
	selectorGB2312     = 0x13
	selectorBig5       = 0x14
	selectorUTF8       = 0x15
	selectorEncodingID = 0x1F
	firstPrintable     = 0x20
)

// single-byte selectors 0x01..0x0B
var selectorCharsets = map[byte]string{
	0x01: "ISO-8859-5",
	0x02: "ISO-8859-6",
	0x03: "ISO-8859-7",
	0x04: "ISO-8859-8",
	0x05: "ISO-8859-9",
	0x06: "ISO-8859-10",
	0x07: "ISO-8859-11",
	0x09: "ISO-8859-13",
	0x0A: "ISO-8859-14",
	0x0B: "ISO-8859-15",
}

// Charset splits a DVB text field into its character set name and the
// encoded text. An empty charset means the selector is unknown.
func Charset(b []byte) (string, []byte) {
	if len(b) == 0 {
		return output.CharsetISO6937, b
	}
	c := b[0]
	switch {
	case c >= firstPrintable:
		return output.CharsetISO6937, b
	case selectorCharsets[c] != "":
		return selectorCharsets[c], b[1:]
	case c == selectorISO8859:
		if len(b) < 3 {
			return "", b[1:]
		}
		return fmt.Sprintf("ISO-8859-%d", int(b[1])<<8|int(b[2])), b[3:]
	case c == selectorUTF16:
		return output.CharsetUTF16BE, b[1:]
	case c == selectorKSX1001:
		return output.CharsetKSX1001, b[1:]
	case c == selectorGB2312:
		return output.CharsetGB2312, b[1:]
	case c == selectorBig5:
		return output.CharsetBig5, b[1:]
	case c == selectorUTF8:
		return output.CharsetUTF8, b[1:]
	case c == selectorEncodingID:
		if len(b) < 2 {
			return "", b[1:]
		}
		return fmt.Sprintf("ENCODING-%d", b[1]), b[2:]
	}
	return "", b[1:]
}

// DecodeString decodes a DVB text field with t.
func DecodeString(b []byte, t output.Transcoder) (string, error) {
	charset, text := Charset(b)
	if t == nil {
		t = output.DefaultTranscoder
	}
	return t.Transcode(charset, text)
}

// EncodeString encodes s as a DVB text field: printable ASCII as is,
// anything else as UTF-8 behind its selector.
func EncodeString(s string) []byte {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] < firstPrintable || s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return []byte(s)
	}
	return append([]byte{selectorUTF8}, s...)
}

// printString renders a DVB text field with the printer's transcoder.
func printString(p *output.Printer, b []byte) string {
	charset, text := Charset(b)
	return p.String(charset, text)
}
