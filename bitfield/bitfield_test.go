package bitfield

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
)

func TestFieldRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		size  int
	}{
		{"byte aligned 8", New(0, 0, 8), 1},
		{"byte aligned 16", New(2, 0, 16), 4},
		{"one bit", New(0, 3, 1), 1},
		{"spanning 12 at 4", New(0, 4, 12), 2},
		{"spanning 13 at 3", New(1, 3, 13), 3},
		{"33 bits", New(0, 7, 33), 6},
		{"64 bits unaligned", New(0, 5, 64), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			max := tt.field.Max()
			spanning := max &^ 0x0F // crosses at least one byte boundary for width > 4
			for _, v := range []uint64{0, max, spanning, 1} {
				buf := make([]byte, tt.size)
				require.NoError(t, tt.field.Set(buf, v))
				got, err := tt.field.Get(buf)
				require.NoError(t, err)
				require.Equal(t, v, got)
			}
		})
	}
}

func TestTwelveBitsAtFourKeepsNeighbours(t *testing.T) {
	// byte 0 high nibble belongs to another field, the 12-bit field fills the
	// low nibble of byte 0 and all of byte 1
	sectionLength := New(0, 4, 12)
	buf := []byte{0xA5, 0x00, 0x3C}

	require.NoError(t, sectionLength.Set(buf, 0xFFF))
	require.Equal(t, []byte{0xAF, 0xFF, 0x3C}, buf)

	v, err := sectionLength.Get(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFF), v)

	require.NoError(t, sectionLength.Set(buf, 0))
	require.Equal(t, []byte{0xA0, 0x00, 0x3C}, buf)

	// a field ending mid-byte keeps the low bits of its last byte
	mid := New(0, 0, 12)
	buf = []byte{0x00, 0x05}
	require.NoError(t, mid.Set(buf, 0xABC))
	require.Equal(t, []byte{0xAB, 0xC5}, buf)
}

func TestFieldBounds(t *testing.T) {
	f := New(1, 4, 12)
	require.Equal(t, 2, f.Size())
	require.Equal(t, 3, f.End())

	_, err := f.Get(make([]byte, 2))
	require.ErrorIs(t, err, bitstream.ErrTooShort)

	err = f.Set(make([]byte, 2), 1)
	require.ErrorIs(t, err, bitstream.ErrTooShort)

	err = f.Set(make([]byte, 3), 0x1000)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)

	_, err = Field{Byte: 0, Bit: 0, Width: 0}.Get([]byte{0})
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)

	// unchecked variants never panic
	require.Equal(t, uint64(0), f.Value([]byte{0xFF}))
	buf := []byte{0xFF}
	f.Put(buf, 0x123)
	require.Equal(t, []byte{0xFF}, buf)
}

func TestFoldedBitOffset(t *testing.T) {
	f := New(1, 12, 4)
	require.Equal(t, Field{Byte: 2, Bit: 4, Width: 4}, f)
}

func TestPutTruncates(t *testing.T) {
	f := New(0, 2, 5)
	buf := []byte{0xC3}
	f.Put(buf, 0xFF)
	require.Equal(t, byte(0xFF), buf[0])
	require.Equal(t, uint64(0x1F), f.Value(buf))
}

func TestTypedFields(t *testing.T) {
	pid := NewUint[uint16](1, 3, 13)
	buf := []byte{0x47, 0xE0, 0x00, 0x10}
	require.NoError(t, pid.Set(buf, 0x1FFF))
	require.Equal(t, []byte{0x47, 0xFF, 0xFF, 0x10}, buf)
	require.Equal(t, uint16(0x1FFF), pid.Value(buf))

	pusi := NewFlag(1, 1)
	on, err := pusi.Get(buf)
	require.NoError(t, err)
	require.True(t, on)
	pusi.Put(buf, false)
	require.Equal(t, byte(0xBF), buf[1])
	require.Equal(t, uint16(0x1FFF), pid.Value(buf))

	span := NewSpan(1, 2)
	v, err := span.Get(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0xBF, 0xFF}, v)
	require.NoError(t, span.Set(buf, []byte{0x01, 0x02}))
	require.Equal(t, []byte{0x47, 0x01, 0x02, 0x10}, buf)
	require.ErrorIs(t, span.Set(buf, []byte{0x01}), bitstream.ErrLengthMismatch)
	_, err = NewSpan(3, 2).Get(buf)
	require.ErrorIs(t, err, bitstream.ErrTooShort)
}

func TestSignMagnitude(t *testing.T) {
	// 24-bit cumulative packets lost following the 8-bit fraction lost
	lost := NewSignMagnitude(1, 0, 24)
	buf := make([]byte, 4)

	for _, v := range []int64{0, 1, -1, 0x7FFFFF, -0x7FFFFF, 300, -300} {
		require.NoError(t, lost.Set(buf, v))
		got, err := lost.Get(buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, v, lost.Value(buf))
	}

	require.NoError(t, lost.Set(buf, -5))
	require.Equal(t, []byte{0x00, 0x80, 0x00, 0x05}, buf)

	require.ErrorIs(t, lost.Set(buf, 0x800000), bitstream.ErrInvalidValue)
	require.ErrorIs(t, lost.Set(buf, -0x800000), bitstream.ErrInvalidValue)
}
