package bitfield

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// Unsigned is the set of integer types a Uint field can be read into.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// Uint is a Field read and written as T.
type Uint[T Unsigned] struct {
	Field
}

// NewUint returns a typed field, see New.
func NewUint[T Unsigned](byteOff int, bitOff, width uint) Uint[T] {
	return Uint[T]{Field: New(byteOff, bitOff, width)}
}

func (u Uint[T]) Get(buf []byte) (T, error) {
	v, err := u.Field.Get(buf)
	return T(v), err
}

func (u Uint[T]) Set(buf []byte, v T) error {
	return u.Field.Set(buf, uint64(v))
}

func (u Uint[T]) Value(buf []byte) T {
	return T(u.Field.Value(buf))
}

func (u Uint[T]) Put(buf []byte, v T) {
	u.Field.Put(buf, uint64(v))
}

// Flag is a single bit read as a bool.
type Flag struct {
	Field
}

// NewFlag returns the flag at bit bitOff of byte byteOff.
func NewFlag(byteOff int, bitOff uint) Flag {
	return Flag{Field: New(byteOff, bitOff, 1)}
}

func (f Flag) Get(buf []byte) (bool, error) {
	v, err := f.Field.Get(buf)
	return v == 1, err
}

func (f Flag) Set(buf []byte, on bool) error {
	return f.Field.Set(buf, b2u(on))
}

func (f Flag) Value(buf []byte) bool {
	return f.Field.Value(buf) == 1
}

func (f Flag) Put(buf []byte, on bool) {
	f.Field.Put(buf, b2u(on))
}

func b2u(on bool) uint64 {
	if on {
		return 1
	}
	return 0
}

// Span is a byte-aligned run of Len bytes at Offset.
type Span struct {
	Offset int
	Len    int
}

// NewSpan returns the span of n bytes at offset.
func NewSpan(offset, n int) Span {
	return Span{Offset: offset, Len: n}
}

// Get returns a view of the span inside buf; it is not a copy.
func (s Span) Get(buf []byte) ([]byte, error) {
	if s.Offset < 0 || s.Len < 0 || s.Offset+s.Len > len(buf) {
		return nil, errors.E("bitfield.Span.Get", errors.K.Invalid, bitstream.ErrTooShort,
			"need", s.Offset+s.Len, "len", len(buf))
	}
	return buf[s.Offset : s.Offset+s.Len : s.Offset+s.Len], nil
}

// Set copies v into the span. v must be exactly Len bytes.
func (s Span) Set(buf []byte, v []byte) error {
	if len(v) != s.Len {
		return errors.E("bitfield.Span.Set", errors.K.Invalid, bitstream.ErrLengthMismatch,
			"expected", s.Len, "got", len(v))
	}
	dst, err := s.Get(buf)
	if err != nil {
		return err
	}
	copy(dst, v)
	return nil
}

// SignMagnitude is a signed field whose top bit is the sign and whose other
// bits are the magnitude. It is not two's complement: RTCP cumulative packets
// lost, for one, is encoded this way.
type SignMagnitude struct {
	Field
}

// NewSignMagnitude returns a sign-magnitude field of width bits, sign included.
func NewSignMagnitude(byteOff int, bitOff, width uint) SignMagnitude {
	return SignMagnitude{Field: New(byteOff, bitOff, width)}
}

func (s SignMagnitude) magMax() uint64 {
	return s.Field.Max() >> 1
}

func (s SignMagnitude) Get(buf []byte) (int64, error) {
	raw, err := s.Field.Get(buf)
	if err != nil {
		return 0, err
	}
	return s.decode(raw), nil
}

func (s SignMagnitude) Set(buf []byte, v int64) error {
	mag := uint64(v)
	if v < 0 {
		mag = uint64(-v)
	}
	if s.Width < 2 || mag > s.magMax() {
		return errors.E("bitfield.SignMagnitude.Set", errors.K.Invalid, bitstream.ErrInvalidValue,
			"value", v, "width", s.Width)
	}
	return s.Field.Set(buf, s.encode(v))
}

func (s SignMagnitude) Value(buf []byte) int64 {
	return s.decode(s.Field.Value(buf))
}

func (s SignMagnitude) decode(raw uint64) int64 {
	mag := int64(raw & s.magMax())
	if raw>>(s.Width-1)&1 == 1 {
		return -mag
	}
	return mag
}

func (s SignMagnitude) encode(v int64) uint64 {
	if v < 0 {
		return 1<<(s.Width-1) | uint64(-v)&s.magMax()
	}
	return uint64(v) & s.magMax()
}
