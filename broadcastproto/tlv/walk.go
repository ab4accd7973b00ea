package tlv

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

type config struct {
	layout      Layout
	lenient     bool
	paddingOnly bool
	padding     byte
}

// Option configures a walk.
type Option func(*config)

// WithLayout selects the record header layout. The default is Descriptor.
func WithLayout(l Layout) Option {
	return func(c *config) {
		c.layout = l
	}
}

// Lenient tolerates trailing bytes after the last complete record: instead of
// failing with ErrMalformedList, the walk ends normally and the bytes are
// reported by Iterator.Trailing.
func Lenient() Option {
	return func(c *config) {
		c.lenient = true
	}
}

// LenientPadding is Lenient restricted to trailing bytes that all equal b,
// like the 0xFF stuffing that ends some descriptor loops.
func LenientPadding(b byte) Option {
	return func(c *config) {
		c.lenient = true
		c.paddingOnly = true
		c.padding = b
	}
}

// Iterator walks the records of a list. It is created by Walk and is lazy:
// each call to Next decodes exactly one record header.
type Iterator struct {
	cfg      config
	buf      []byte
	cursor   int
	rec      Record
	err      error
	trailing []byte
	done     bool
}

// Walk returns an iterator over the records of the first declaredLen bytes of
// buf. Every call returns a fresh iterator starting at the first record.
//
//	it := tlv.Walk(loop, len(loop))
//	for it.Next() {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
func Walk(buf []byte, declaredLen int, opts ...Option) *Iterator {
	it := &Iterator{
		cfg: config{layout: Descriptor},
	}
	for _, opt := range opts {
		opt(&it.cfg)
	}
	e := errors.Template("tlv.Walk", errors.K.Invalid)
	switch {
	case !it.cfg.layout.valid():
		it.fail(e(bitstream.ErrInvalidValue, "reason", "bad layout", "layout", it.cfg.layout))
	case declaredLen < 0 || declaredLen > len(buf):
		it.fail(e(bitstream.ErrLengthMismatch, "declared", declaredLen, "len", len(buf)))
	default:
		it.buf = buf[:declaredLen:declaredLen]
	}
	return it
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.done = true
}

// Next advances to the next record and reports whether there is one. It
// returns false at the end of the list or on the first malformed record.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	l := it.cfg.layout
	declaredLen := len(it.buf)
	if it.cursor+l.HeaderLen() > declaredLen {
		it.finish()
		return false
	}
	header := it.buf[it.cursor:]
	tag := l.tag(header)
	length := l.length(header[l.TagSize:])
	start := it.cursor + l.HeaderLen()
	if start+length > declaredLen {
		it.stopAt(it.cursor)
		return false
	}
	it.rec = Record{
		Tag:    tag,
		Offset: it.cursor,
		Value:  it.buf[start : start+length : start+length],
	}
	it.cursor = start + length
	return true
}

// finish ends a walk whose cursor can no longer hold a record header.
func (it *Iterator) finish() {
	if it.cursor == len(it.buf) {
		it.done = true
		return
	}
	it.stopAt(it.cursor)
}

// stopAt ends a walk with unconsumed bytes from offset off on.
func (it *Iterator) stopAt(off int) {
	it.done = true
	it.trailing = it.buf[off:]
	if it.cfg.lenient && (!it.cfg.paddingOnly || allBytes(it.trailing, it.cfg.padding)) {
		return
	}
	it.err = errors.E("tlv.Walk", errors.K.Invalid, bitstream.ErrMalformedList,
		"offset", off,
		"trailing", len(it.trailing),
		"declared", len(it.buf))
}

// Record returns the current record.
func (it *Iterator) Record() Record {
	return it.rec
}

// Err returns the error that ended the walk, if any. A walk ends without
// error only when the records consume exactly the declared length, or when
// trailing bytes are tolerated by a lenient option.
func (it *Iterator) Err() error {
	return it.err
}

// Trailing returns the bytes left unconsumed at the end of the walk. They are
// reported whether or not they were tolerated.
func (it *Iterator) Trailing() []byte {
	return it.trailing
}

func allBytes(b []byte, v byte) bool {
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}

// Records walks the list and returns all its records.
func Records(buf []byte, declaredLen int, opts ...Option) ([]Record, error) {
	var recs []Record
	it := Walk(buf, declaredLen, opts...)
	for it.Next() {
		recs = append(recs, it.Record())
	}
	return recs, it.Err()
}

// Validate walks the list and returns the first error, if any.
func Validate(buf []byte, declaredLen int, opts ...Option) error {
	it := Walk(buf, declaredLen, opts...)
	for it.Next() {
	}
	return it.Err()
}

// Count returns the number of records of a valid list.
func Count(buf []byte, declaredLen int, opts ...Option) (int, error) {
	n := 0
	it := Walk(buf, declaredLen, opts...)
	for it.Next() {
		n++
	}
	return n, it.Err()
}

// Find returns the n-th record (0 based) carrying tag. The list is walked only
// up to that record, so a malformation further down is not reported.
func Find(buf []byte, declaredLen int, tag uint32, n int, opts ...Option) (Record, bool, error) {
	it := Walk(buf, declaredLen, opts...)
	for it.Next() {
		rec := it.Record()
		if rec.Tag != tag {
			continue
		}
		if n == 0 {
			return rec, true, nil
		}
		n--
	}
	return Record{}, false, it.Err()
}
