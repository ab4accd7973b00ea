// Package output prints decoded structures as line-oriented text or as XML
// fragments. A Printer never builds a whole report: every fragment is handed
// to the caller's Sink as soon as it is formatted, in document order.
package output

import (
	"fmt"
	"strings"

	"github.com/eluv-io/errors-go"
)

// Mode selects the output syntax.
type Mode int

const (
	Text Mode = iota
	XML
)

func (m Mode) String() string {
	switch m {
	case Text:
		return "text"
	case XML:
		return "xml"
	default:
		return "unknown"
	}
}

// ParseMode parses "text" or "xml".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return Text, nil
	case "xml":
		return XML, nil
	}
	return Text, errors.E("output.ParseMode", errors.K.Invalid, "reason", "unknown output mode", "mode", s)
}

// Sink receives formatted fragments.
type Sink func(fragment string)

// Attr is one key/value pair of an element.
type Attr struct {
	Key   string
	Value interface{}
}

// A is shorthand for an Attr.
func A(key string, value interface{}) Attr {
	return Attr{Key: key, Value: value}
}

// Hex formats v as 0x-prefixed hexadecimal padded to width digits.
func Hex(v uint64, width int) string {
	return fmt.Sprintf("0x%0*x", width, v)
}

// Printer formats elements for a Sink. Text mode emits one indented line per
// element; XML mode emits one tag per fragment.
type Printer struct {
	Mode       Mode
	Sink       Sink
	Transcoder Transcoder

	depth int
}

// New returns a printer using DefaultTranscoder.
func New(mode Mode, sink Sink) *Printer {
	return &Printer{
		Mode:       mode,
		Sink:       sink,
		Transcoder: DefaultTranscoder,
	}
}

// Emit hands a fragment to the sink as is.
func (p *Printer) Emit(fragment string) {
	if p.Sink != nil {
		p.Sink(fragment)
	}
}

// Printf formats and emits a fragment.
func (p *Printer) Printf(format string, args ...interface{}) {
	p.Emit(fmt.Sprintf(format, args...))
}

// Element emits an element without children.
func (p *Printer) Element(name string, attrs ...Attr) {
	if p.Mode == XML {
		p.Emit(p.xmlTag(name, attrs, true))
		return
	}
	p.Emit(p.textLine(name, attrs))
}

// Open emits the start of an element whose children follow. Every Open must
// be matched by a Close with the same name.
func (p *Printer) Open(name string, attrs ...Attr) {
	if p.Mode == XML {
		p.Emit(p.xmlTag(name, attrs, false))
	} else {
		p.Emit(p.textLine(name, attrs))
	}
	p.depth++
}

// Close ends an element started with Open.
func (p *Printer) Close(name string) {
	if p.depth > 0 {
		p.depth--
	}
	if p.Mode == XML {
		p.Emit("</" + name + ">")
	}
}

func (p *Printer) textLine(name string, attrs []Attr) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", p.depth))
	sb.WriteString(name)
	for _, a := range attrs {
		_, _ = fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	return sb.String()
}

func (p *Printer) xmlTag(name string, attrs []Attr, empty bool) string {
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(name)
	for _, a := range attrs {
		_, _ = fmt.Fprintf(&sb, ` %s="%s"`, a.Key, EscapeXML(fmt.Sprint(a.Value)))
	}
	if empty {
		sb.WriteString("/>")
	} else {
		sb.WriteString(">")
	}
	return sb.String()
}

// String decodes a text field with the printer's transcoder. When the
// transcoder fails the bytes are rendered in hex so that nothing is lost.
func (p *Printer) String(charset string, data []byte) string {
	t := p.Transcoder
	if t == nil {
		t = DefaultTranscoder
	}
	s, err := t.Transcode(charset, data)
	if err != nil {
		return HexBytes(data)
	}
	return s
}

// HexBytes renders data as contiguous lowercase hex digits.
func HexBytes(data []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 2*len(data))
	for i, b := range data {
		out[2*i] = digits[b>>4]
		out[2*i+1] = digits[b&0x0F]
	}
	return string(out)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters of s.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
