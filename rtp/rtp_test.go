package rtp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
)

func TestInitAndFields(t *testing.T) {
	buf := make([]byte, 12+188)
	p, err := Init(buf)
	require.NoError(t, err)
	p.SetMarker(true)
	p.SetPayloadType(PayloadTypeMP2T)
	p.SetSequence(0xBEEF)
	p.SetTimestamp(0x01020304)
	p.SetSSRC(0xCAFEBABE)

	require.Equal(t, []byte{0x80, 0xA1, 0xBE, 0xEF, 1, 2, 3, 4, 0xCA, 0xFE, 0xBA, 0xBE}, buf[:12])

	v, err := Validate(buf)
	require.NoError(t, err)
	require.Equal(t, uint8(2), v.Version())
	require.True(t, v.Marker())
	require.Equal(t, uint8(33), v.PayloadType())
	require.Equal(t, uint16(0xBEEF), v.Sequence())
	require.Equal(t, uint32(0x01020304), v.Timestamp())
	require.Equal(t, uint32(0xCAFEBABE), v.SSRC())
	require.Equal(t, 12, v.HeaderLen())
	require.Len(t, v.Payload(), 188)

	_, err = Init(buf[:11])
	require.ErrorIs(t, err, bitstream.ErrTooShort)
}

func TestCSRCAndExtension(t *testing.T) {
	buf := make([]byte, 12+8+4+8+4)
	p, err := Init(buf)
	require.NoError(t, err)
	p.SetCSRCCount(2)
	require.NoError(t, p.SetCSRC(0, 0x11111111))
	require.NoError(t, p.SetCSRC(1, 0x22222222))
	require.Error(t, p.SetCSRC(2, 1))
	require.NoError(t, p.SetExtensionHeader(0xBEDE, 2))
	copy(p.ExtensionData(), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(p.Payload(), []byte{0xAA, 0xBB, 0xCC, 0xDD})

	v, err := Validate(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(0x22222222), v.CSRC(1))
	require.Equal(t, uint32(0), v.CSRC(2))
	require.Equal(t, uint16(0xBEDE), v.ExtensionProfile())
	require.Equal(t, uint16(2), v.ExtensionWords())
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, v.ExtensionData())
	require.Equal(t, 32, v.HeaderLen())
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, v.Payload())

	h, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, []uint32{0x11111111, 0x22222222}, h.CSRCs)
	require.Equal(t, 12, h.ExtensionByteCount)
	require.Equal(t, 32, h.ByteLength())
}

func TestPadding(t *testing.T) {
	buf := make([]byte, 12+4+4)
	p, _ := Init(buf)
	p.SetPadding(true)
	buf[len(buf)-1] = 4
	v, err := Validate(buf)
	require.NoError(t, err)
	require.Equal(t, 4, v.PaddingLen())
	require.Len(t, v.Payload(), 4)

	buf[len(buf)-1] = 0
	_, err = Validate(buf)
	require.ErrorIs(t, err, bitstream.ErrLengthMismatch)

	buf[len(buf)-1] = 9
	_, err = Validate(buf)
	require.ErrorIs(t, err, bitstream.ErrLengthMismatch)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"short", []byte{0x80, 0x21, 0, 1}, bitstream.ErrTooShort},
		{"version", append([]byte{0x40}, make([]byte, 11)...), bitstream.ErrInvalidValue},
		{"csrc", append([]byte{0x83}, make([]byte, 15)...), bitstream.ErrTooShort},
		{"ext header", append([]byte{0x90}, make([]byte, 13)...), bitstream.ErrTooShort},
		{"ext data", append([]byte{0x90}, append(make([]byte, 13), 0, 3, 0, 0)...), bitstream.ErrLengthMismatch},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Validate(test.buf)
			require.ErrorIs(t, err, test.want)
		})
	}
}

func TestStrip(t *testing.T) {
	buf := make([]byte, 16+188)
	p, _ := Init(buf)
	p.SetCSRCCount(1)
	off, err := Strip(buf)
	require.NoError(t, err)
	require.Equal(t, 16, off)

	_, err = Strip(buf[:16+187])
	require.ErrorIs(t, err, bitstream.ErrTooShort)
}

func TestPrint(t *testing.T) {
	buf := make([]byte, 16)
	p, _ := Init(buf)
	p.SetCSRCCount(1)
	_ = p.SetCSRC(0, 7)
	p.SetPayloadType(96)
	p.SetSequence(5)

	var lines []string
	Print(p, output.New(output.Text, func(s string) { lines = append(lines, s) }))
	require.Equal(t, []string{
		"RTP version=2 padding=false extension=false marker=false pt=96 seq=5 timestamp=0 ssrc=0x00000000",
		"  CSRC id=0x00000007",
	}, lines)
}
