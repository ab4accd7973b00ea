package hbrmt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
	"github.com/eluv-io/bitstream/rtp"
)

func datagram(t *testing.T) []byte {
	buf := make([]byte, rtp.HeaderLen+HeaderLen+TimestampLen+MediaPayloadLen)
	p, err := rtp.Init(buf)
	require.NoError(t, err)
	p.SetPayloadType(PayloadType)
	p.SetSequence(100)

	h, err := Init(p.Payload())
	require.NoError(t, err)
	h.SetF(true)
	h.SetVSID(1)
	h.SetFRCount(7)
	h.SetCF(Clock27MHz)
	h.SetFRAME(0x20)
	h.SetFRATE(0x17)
	h.SetSAMPLE(1)
	require.NoError(t, h.SetTimestamp(0x01020304))
	return buf
}

func TestHeaderLayout(t *testing.T) {
	buf := datagram(t)
	require.Equal(t,
		[]byte{0x09, 0x07, 0x00, 0x20, 0x02, 0x01, 0x71, 0x00, 0x01, 0x02, 0x03, 0x04},
		buf[rtp.HeaderLen:rtp.HeaderLen+HeaderLen+TimestampLen])

	p, h, err := FromRTP(buf)
	require.NoError(t, err)
	require.Equal(t, uint8(PayloadType), p.PayloadType())
	require.True(t, h.F())
	require.Equal(t, uint8(1), h.VSID())
	require.Equal(t, uint8(7), h.FRCount())
	require.Equal(t, uint8(Clock27MHz), h.CF())
	require.Equal(t, uint8(0x20), h.FRAME())
	require.Equal(t, uint8(0x17), h.FRATE())
	require.Equal(t, uint8(1), h.SAMPLE())
	require.Equal(t, uint32(0x01020304), h.Timestamp())
	require.Equal(t, HeaderLen+TimestampLen, h.Len())
	require.Len(t, h.Payload(), MediaPayloadLen)
	require.Empty(t, h.Extension())
	require.Equal(t, "29.97", FrameRate(h.FRATE()))
}

func TestExtension(t *testing.T) {
	buf := make([]byte, HeaderLen+8+MediaPayloadLen)
	h, err := Init(buf)
	require.NoError(t, err)
	h.SetExt(2)
	copy(buf[HeaderLen:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	_, err = Validate(buf)
	require.NoError(t, err)
	require.False(t, h.HasTimestamp())
	require.Equal(t, uint32(0), h.Timestamp())
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, h.Extension())
	require.ErrorIs(t, h.SetTimestamp(1), bitstream.ErrInvalidValue)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b []byte) []byte
		want   error
	}{
		{"short", func(b []byte) []byte { return b[:HeaderLen-1] }, bitstream.ErrTooShort},
		{"reserved", func(b []byte) []byte { b[3] |= 0x01; return b }, bitstream.ErrInvalidValue},
		{"format reserved", func(b []byte) []byte { b[7] = 1; return b }, bitstream.ErrInvalidValue},
		{"clock", func(b []byte) []byte { Header(b).SetCF(9); return b }, bitstream.ErrInvalidValue},
		{"format without F", func(b []byte) []byte { Header(b).SetF(false); return b }, bitstream.ErrInvalidValue},
		{"extension", func(b []byte) []byte { Header(b).SetExt(15); return b[:HeaderLen+TimestampLen+8] }, bitstream.ErrTooShort},
		{"payload", func(b []byte) []byte { return b[:len(b)-1] }, bitstream.ErrLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := datagram(t)[rtp.HeaderLen:]
			_, err := Validate(tt.mutate(b))
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, _, err := FromRTP([]byte{0x40})
	require.ErrorIs(t, err, bitstream.ErrTooShort)
	_, err = Init(nil)
	require.ErrorIs(t, err, bitstream.ErrTooShort)
}

func TestPrint(t *testing.T) {
	_, h, err := FromRTP(datagram(t))
	require.NoError(t, err)
	var lines []string
	Print(h, output.New(output.Text, func(s string) { lines = append(lines, s) }))
	require.Equal(t, []string{
		"HBRMT vsid=1 frcount=7 r=0 s=0 fec=0 cf=1 map=0 frame=0x20 frate=0x17 fps=29.97 sample=1 timestamp=16909060 payload=1376",
	}, lines)
}
