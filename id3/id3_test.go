package id3

import (
	"bytes"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
)

func TestSyncsafe(t *testing.T) {
	b := make([]byte, 4)
	require.NoError(t, EncodeSyncsafe(b, 257))
	require.Equal(t, []byte{0x00, 0x00, 0x02, 0x01}, b)
	v, err := DecodeSyncsafe(b)
	require.NoError(t, err)
	require.Equal(t, uint32(257), v)

	v, err = DecodeSyncsafe([]byte{0x7F, 0x7F, 0x7F, 0x7F})
	require.NoError(t, err)
	require.Equal(t, uint32(MaxSize), v)

	_, err = DecodeSyncsafe([]byte{0x00, 0x80, 0x00, 0x00})
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)
	require.ErrorIs(t, EncodeSyncsafe(b, MaxSize+1), bitstream.ErrInvalidValue)
	_, err = DecodeSyncsafe([]byte{0x00})
	require.ErrorIs(t, err, bitstream.ErrTooShort)
}

func TestBuildText(t *testing.T) {
	b := NewBuilder(4)
	require.NoError(t, b.AddText("TIT2", "Hello"))
	tag, err := b.Tag()
	require.NoError(t, err)
	require.Equal(t, []byte{
		'I', 'D', '3', 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10,
		'T', 'I', 'T', '2', 0x00, 0x00, 0x00, 0x06, 0x00, 0x00,
		0x00, 'H', 'e', 'l', 'l', 'o',
	}, []byte(tag))

	v, err := Validate(append(tag, 0xAA, 0xBB))
	require.NoError(t, err)
	require.Equal(t, tag, v)
	frames, err := v.Frames()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, "TIT2", frames[0].ID)
	require.Equal(t, HeaderLen, frames[0].Offset)
	values, err := Text(frames[0], nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Hello"}, values)
}

func TestTextEncodings(t *testing.T) {
	b := NewBuilder(4)
	require.NoError(t, b.AddText("TPE1", "Ĳ", "b"))
	tag, err := b.Tag()
	require.NoError(t, err)
	f, ok := tag.Find("TPE1")
	require.True(t, ok)
	require.Equal(t, []byte{EncodingUTF8, 0xC4, 0xB2, 0x00, 'b'}, f.Data)
	values, err := Text(f, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Ĳ", "b"}, values)

	b = NewBuilder(3)
	require.NoError(t, b.AddText("TPE1", "Ĳ", "b"))
	tag, err = b.Tag()
	require.NoError(t, err)
	f, ok = tag.Find("TPE1")
	require.True(t, ok)
	require.Equal(t, []byte{EncodingUTF16, 0xFE, 0xFF, 0x01, 0x32, 0x00, '/', 0x00, 'b'}, f.Data)
	values, err = Text(f, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Ĳ/b"}, values)

	_, err = Text(Frame{ID: "TIT2", Version: 4, Data: []byte{0x07, 'x'}}, nil)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)
	_, err = Text(Frame{ID: "PRIV", Version: 4}, nil)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)
}

func TestUserTextAndOwned(t *testing.T) {
	b := NewBuilder(4)
	require.NoError(t, b.AddUserText("key", "value"))
	require.NoError(t, b.AddUFID("http://example.com", []byte{1, 2, 3}))
	require.ErrorIs(t, b.AddUFID("", []byte{1}), bitstream.ErrInvalidValue)
	require.ErrorIs(t, b.AddUFID("x", make([]byte, MaxUFIDLen+1)), bitstream.ErrInvalidValue)
	require.ErrorIs(t, b.AddFrame("ab", 0, nil), bitstream.ErrInvalidValue)
	tag, err := b.Tag()
	require.NoError(t, err)

	f, ok := tag.Find(FrameUserText)
	require.True(t, ok)
	require.Equal(t, []byte{0x00, 'k', 'e', 'y', 0x00, 'v', 'a', 'l', 'u', 'e'}, f.Data)
	desc, value, err := UserText(f, nil)
	require.NoError(t, err)
	require.Equal(t, "key", desc)
	require.Equal(t, "value", value)

	f, ok = tag.Find(FrameUFID)
	require.True(t, ok)
	o, err := DecodeOwned(f)
	require.NoError(t, err)
	require.Equal(t, Owned{Owner: "http://example.com", Data: []byte{1, 2, 3}}, o)

	_, err = DecodeOwned(Frame{ID: FramePrivate, Version: 4, Data: []byte("owner")})
	require.ErrorIs(t, err, bitstream.ErrMalformedList)
}

func TestFrameSizeByVersion(t *testing.T) {
	data := make([]byte, 198)
	for _, test := range []struct {
		version uint8
		size    []byte
	}{
		{3, []byte{0x00, 0x00, 0x00, 0xC8}},
		{4, []byte{0x00, 0x00, 0x01, 0x48}},
	} {
		b := NewBuilder(test.version)
		require.NoError(t, b.AddPrivate("o", data))
		tag, err := b.Tag()
		require.NoError(t, err)
		require.Equal(t, test.size, []byte(tag[HeaderLen+4:HeaderLen+8]))
		_, err = Validate(tag)
		require.NoError(t, err)
		f, ok := tag.Find(FramePrivate)
		require.True(t, ok)
		require.Len(t, f.Data, 200)
	}
}

func TestPaddingAndFooter(t *testing.T) {
	b := NewBuilder(4).Padding(20).Footer()
	require.NoError(t, b.AddText("TIT2", "x"))
	tag, err := b.Tag()
	require.NoError(t, err)
	require.True(t, tag.HasFooter())
	require.Equal(t, 12+20, tag.Size())
	require.Equal(t, HeaderLen+32+HeaderLen, tag.TotalSize())
	require.Equal(t, []byte("3DI"), []byte(tag[len(tag)-HeaderLen:len(tag)-7]))

	v, err := Validate(tag)
	require.NoError(t, err)
	frames, err := v.Frames()
	require.NoError(t, err)
	require.Len(t, frames, 1)

	bad := append(Tag(nil), tag...)
	bad[HeaderLen+20] = 0x01
	_, err = Validate(bad)
	require.ErrorIs(t, err, bitstream.ErrMalformedList)

	bad = append(Tag(nil), tag...)
	bad[len(bad)-HeaderLen] = 'X'
	_, err = Validate(bad)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)
}

func TestExtendedHeader(t *testing.T) {
	frame := []byte{'T', 'I', 'T', '2', 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 'x'}
	ext := []byte{0x00, 0x00, 0x00, 0x06, 0x01, 0x00}
	buf := append([]byte{'I', 'D', '3', 0x04, 0x00, 0x40, 0x00, 0x00, 0x00, byte(len(ext) + len(frame))}, ext...)
	buf = append(buf, frame...)

	tag, err := Validate(buf)
	require.NoError(t, err)
	require.True(t, tag.HasExtendedHeader())
	require.Equal(t, frame, tag.FrameArea())
	frames, err := tag.Frames()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, HeaderLen+len(ext), frames[0].Offset)

	buf[HeaderLen+3] = 0x40
	_, err = Validate(buf)
	require.ErrorIs(t, err, bitstream.ErrLengthMismatch)
}

func TestValidateErrors(t *testing.T) {
	b := NewBuilder(4)
	require.NoError(t, b.AddText("TIT2", "Hello"))
	tag, err := b.Tag()
	require.NoError(t, err)

	mutate := func(fn func(Tag)) []byte {
		c := append(Tag(nil), tag...)
		fn(c)
		return c
	}
	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"short", tag[:5], bitstream.ErrTooShort},
		{"magic", mutate(func(c Tag) { c[0] = 'X' }), bitstream.ErrInvalidValue},
		{"version", mutate(func(c Tag) { c[3] = 2 }), bitstream.ErrInvalidValue},
		{"syncsafe", mutate(func(c Tag) { c[8] = 0x80 }), bitstream.ErrInvalidValue},
		{"truncated", tag[:len(tag)-1], bitstream.ErrLengthMismatch},
		{"frame overrun", mutate(func(c Tag) { c[HeaderLen+7] = 0x07 }), bitstream.ErrMalformedList},
		{"frame id", mutate(func(c Tag) { c[HeaderLen+1] = 'i' }), bitstream.ErrInvalidValue},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Validate(test.buf)
			require.ErrorIs(t, err, test.want)
		})
	}
}

func TestUnsynchronisation(t *testing.T) {
	require.Equal(t, []byte{0xFF, 0xE0, 0x01}, Resynchronise([]byte{0xFF, 0x00, 0xE0, 0x01}))
	plain := []byte{0xFF, 0xE0, 0xFF}
	coded := Unsynchronise(plain)
	require.Equal(t, []byte{0xFF, 0x00, 0xE0, 0xFF, 0x00}, coded)
	require.Equal(t, plain, Resynchronise(coded))

	body := append([]byte("o\x00"), plain...)
	dli := make([]byte, 4)
	require.NoError(t, EncodeSyncsafe(dli, uint32(len(body))))
	b := NewBuilder(4)
	require.NoError(t, b.AddFrame(FramePrivate, FlagUnsynchronisation|FlagDataLength, append(dli, Unsynchronise(body)...)))
	tag, err := b.Tag()
	require.NoError(t, err)
	f, ok := tag.Find(FramePrivate)
	require.True(t, ok)
	o, err := DecodeOwned(f)
	require.NoError(t, err)
	require.Equal(t, plain, o.Data)

	_, err = Frame{ID: FramePrivate, Version: 4, Flags: FlagCompression}.Content()
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)
}

func TestPrint(t *testing.T) {
	b := NewBuilder(4)
	require.NoError(t, b.AddText("TIT2", "Hello"))
	require.NoError(t, b.AddPrivate("com.apple.streaming.transportStreamTimestamp", []byte{0, 0, 0, 0, 0, 0, 0x27, 0x10}))
	require.NoError(t, b.AddFrame("ZZZZ", 0, []byte{0xAB}))
	tag, err := b.Tag()
	require.NoError(t, err)

	var lines []string
	p := output.New(output.Text, func(s string) { lines = append(lines, s) })
	require.NoError(t, Print(tag, p))
	require.Equal(t, []string{
		"ID3 version=4 revision=0 size=90 unsync=false footer=false",
		"  FRAME id=TIT2 size=6 text=Hello",
		"  FRAME id=PRIV size=53 owner=com.apple.streaming.transportStreamTimestamp data=0000000000002710",
		"  FRAME id=ZZZZ size=1 data=ab",
	}, lines)
}

func TestEmsg(t *testing.T) {
	b := NewBuilder(4)
	require.NoError(t, b.AddText("TIT2", "cue"))
	tag, err := b.Tag()
	require.NoError(t, err)

	ev := Event{Timescale: 90000, PresentationTime: 900000, Duration: 0xFFFFFFFF, ID: 7}
	data, err := EncodeEmsg(tag, ev)
	require.NoError(t, err)
	require.Equal(t, []byte("emsg"), data[4:8])

	got, gotEv, err := DecodeEmsg(data)
	require.NoError(t, err)
	require.Equal(t, tag, got)
	require.Equal(t, ev, gotEv)

	box, err := NewEmsg(tag, ev)
	require.NoError(t, err)
	box.SchemeIDURI = "urn:scte:scte35:2013:bin"
	_, _, err = FromEmsg(box)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)

	_, err = NewEmsg(tag, Event{})
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)

	var buf bytes.Buffer
	require.NoError(t, mp4.NewFtyp("cmfc", 0, []string{"cmfc"}).Encode(&buf))
	_, _, err = DecodeEmsg(buf.Bytes())
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)
}
