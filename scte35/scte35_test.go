package scte35

import (
	"encoding/json"
	"strings"
	"testing"

	gscte35 "github.com/Comcast/gots/scte35"
	"github.com/grafov/m3u8"
	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
	"github.com/eluv-io/bitstream/psi"
)

// time_signal with 3 segmentation_descriptors, behind a pointer field
var scteMsg = []byte{0x00, 0xfc, 0x30, 0x57, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xf0, 0x05, 0x06, 0xff, 0xff, 0x90, 0x5c, 0x30, 0x00, 0x41, 0x02, 0x0f, 0x43, 0x55, 0x45, 0x49, 0x09, 0x7b, 0x74, 0xaf, 0x7f, 0x9f, 0x03, 0x00, 0x31, 0x01, 0x01, 0x02, 0x0f, 0x43, 0x55, 0x45, 0x49, 0x09, 0x79, 0xfc, 0x8b, 0x7f, 0x9f, 0x00, 0x00, 0x35, 0x00, 0x01, 0x02, 0x1d, 0x43, 0x55, 0x45, 0x49, 0x09, 0x7b, 0xe8, 0x83, 0x7f, 0x9f, 0x01, 0x0e, 0x45, 0x50, 0x30, 0x33, 0x34, 0x31, 0x31, 0x35, 0x30, 0x36, 0x30, 0x30, 0x39, 0x39, 0x20, 0x06, 0x01, 0x28, 0x20, 0xce, 0x5c}

var insert = SpliceInsert{
	EventID:         42,
	OutOfNetwork:    true,
	ProgramSplice:   true,
	Time:            SpliceTime{Specified: true, PTS: 900000},
	HasDuration:     true,
	AutoReturn:      true,
	Duration:        30 * PTSClock,
	UniqueProgramID: 7,
	AvailNum:        1,
	AvailsExpected:  2,
}

func mutate(t *testing.T, s []byte, f func(b SpliceInfo)) []byte {
	b := append([]byte{}, s...)
	f(b)
	require.NoError(t, psi.Section(b).SetCRC())
	return b
}

func TestValidateTimeSignal(t *testing.T) {
	s, err := Validate(scteMsg[1:])
	require.NoError(t, err)
	require.Len(t, s, 90)
	require.Equal(t, uint8(0), s.ProtocolVersion())
	require.False(t, s.Encrypted())
	require.Equal(t, uint64(0), s.PTSAdjustment())
	require.Equal(t, uint16(0xFFF), s.Tier())
	require.Equal(t, uint8(CommandTimeSignal), s.CommandType())
	require.Equal(t, 5, s.CommandLength())

	ts, err := DecodeTimeSignal(s.Command())
	require.NoError(t, err)
	require.Equal(t, SpliceTime{Specified: true, PTS: 8582618160}, ts)
	require.Equal(t, s.Command(), []byte(EncodeTimeSignal(ts)))

	descs, err := s.Descriptors()
	require.NoError(t, err)
	require.Len(t, descs, 3)
	for _, d := range descs {
		require.Equal(t, uint8(TagSegmentation), d.Tag)
		require.Equal(t, uint32(CUEI), d.Identifier)
	}
	require.Len(t, descs[2].Data, 25)
	require.Equal(t, 34, descs[2].Offset)
}

func TestGotsConvert(t *testing.T) {
	s, err := Validate(scteMsg[1:])
	require.NoError(t, err)
	g, err := Decode(s)
	require.NoError(t, err)
	info, err := Convert(0x1F0, g)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1F0), info.PID)
	require.EqualValues(t, gscte35.TimeSignal, info.SpliceCommandType)
	require.Len(t, info.SpliceDescriptors, 3)
	require.Equal(t, uint32(159085743), info.SpliceDescriptors[0].EventID)
	require.True(t, info.SpliceDescriptors[0].IsEnd())
	require.False(t, info.SpliceDescriptors[2].IsEnd())
	require.Equal(t, "EP034115060099", string(info.SpliceDescriptors[2].UPIDs[0].UPID))

	js, err := json.Marshal(info)
	require.NoError(t, err)
	require.Contains(t, string(js), `"segmentation_event_id":159085743`)
}

func TestHLSCueTimeSignal(t *testing.T) {
	s, err := Validate(scteMsg[1:])
	require.NoError(t, err)
	cue, err := HLSCue(s)
	require.NoError(t, err)
	require.Equal(t, m3u8.SCTE35_67_2014, cue.Syntax)
	require.Equal(t, m3u8.SCTE35Cue_End, cue.CueType)
	require.Equal(t, "159085743", cue.ID)
	require.Equal(t, "/DBXAAAAAAAAAP/wBQb//5BcMABBAg9DVUVJCXt0r3+fAwAxAQECD0NVRUkJefyLf58AADUAAQIdQ1VFSQl76IN/nwEORVAwMzQxMTUwNjAwOTkgBgEoIM5c", cue.Cue)

	pl, err := m3u8.NewMediaPlaylist(3, 3)
	require.NoError(t, err)
	require.NoError(t, pl.Append("seg0.ts", 6, ""))
	require.NoError(t, AddCue(pl, s))
	require.Equal(t, cue, pl.Segments[0].SCTE)
	require.Contains(t, pl.Encode().String(), cue.Cue)
}

func TestSpliceInsert(t *testing.T) {
	cmd := insert.Encode()
	require.Equal(t, []byte{
		0x00, 0x00, 0x00, 0x2A, 0x7F, 0xEF,
		0xFE, 0x00, 0x0D, 0xBB, 0xA0,
		0xFE, 0x00, 0x29, 0x32, 0xE0,
		0x00, 0x07, 0x01, 0x02,
	}, cmd)
	got, err := DecodeSpliceInsert(cmd)
	require.NoError(t, err)
	require.Equal(t, insert, got)

	s, err := New(0, 0xFFF, CommandInsert, cmd, nil)
	require.NoError(t, err)
	s, err = Validate(s)
	require.NoError(t, err)
	require.Equal(t, cmd, s.Command())
	require.Empty(t, s.DescriptorLoop())

	cue, err := HLSCue(s)
	require.NoError(t, err)
	require.Equal(t, m3u8.SCTE35Cue_Start, cue.CueType)
	require.Equal(t, "42", cue.ID)
	require.Equal(t, 30.0, cue.Time)

	g, err := Decode(s)
	require.NoError(t, err)
	info, err := Convert(0, g)
	require.NoError(t, err)
	require.EqualValues(t, gscte35.SpliceInsert, info.SpliceCommandType)
}

func TestSpliceInsertModes(t *testing.T) {
	components := SpliceInsert{
		EventID: 1,
		Components: []Component{
			{Tag: 1, Time: SpliceTime{Specified: true, PTS: 100}},
			{Tag: 2},
		},
		UniqueProgramID: 1,
	}
	cancel := SpliceInsert{EventID: 9, Cancel: true}
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x09, 0xFF}, cancel.Encode())

	for _, si := range []SpliceInsert{components, cancel} {
		got, err := DecodeSpliceInsert(si.Encode())
		require.NoError(t, err)
		require.Equal(t, si, got)
	}

	s, err := New(0, 0xFFF, CommandInsert, cancel.Encode(), nil)
	require.NoError(t, err)
	_, err = HLSCue(s)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)

	cmd := insert.Encode()
	_, err = DecodeSpliceInsert(cmd[:len(cmd)-1])
	require.ErrorIs(t, err, bitstream.ErrTooShort)
	_, err = DecodeSpliceInsert(append(cmd, 0))
	require.ErrorIs(t, err, bitstream.ErrLengthMismatch)
}

func TestValidateErrors(t *testing.T) {
	good, err := New(0, 0xFFF, CommandTimeSignal, EncodeTimeSignal(SpliceTime{}), []Descriptor{
		{Tag: TagAvail, Identifier: CUEI, Data: []byte{0, 0, 0, 1}},
	})
	require.NoError(t, err)
	_, err = Validate(good)
	require.NoError(t, err)

	tests := []struct {
		name string
		buf  []byte
		opts []psi.ValidateOption
		want error
	}{
		{"crc", func() []byte { b := append([]byte{}, good...); b[5] ^= 1; return b }(), nil, bitstream.ErrCrcMismatch},
		{"table id", func() []byte { b := append([]byte{}, good...); b[0] = 0xFD; return b }(), []psi.ValidateOption{psi.WithCRC(false)}, bitstream.ErrTableIDMismatch},
		{"syntax", mutate(t, good, func(b SpliceInfo) { b[1] |= 0x80 }), []psi.ValidateOption{psi.WithCRC(false)}, bitstream.ErrInvalidValue},
		{"command length", mutate(t, good, func(b SpliceInfo) { fieldCommandLength.Put(b, 0x100) }), nil, bitstream.ErrLengthMismatch},
		{"loop length", mutate(t, good, func(b SpliceInfo) { b[16] = 0x20 }), nil, bitstream.ErrLengthMismatch},
		{"malformed loop", mutate(t, good, func(b SpliceInfo) { b[18] = 0x09 }), nil, bitstream.ErrMalformedList},
		{"legacy length", mutate(t, good, func(b SpliceInfo) {
			fieldCommandLength.Put(b, LegacyCommandLength)
			fieldCommandType.Put(b, CommandInsert)
		}), nil, bitstream.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.buf, tt.opts...)
			require.ErrorIs(t, err, tt.want)
		})
	}

	legacy, err := Validate(mutate(t, good, func(b SpliceInfo) { fieldCommandLength.Put(b, LegacyCommandLength) }))
	require.NoError(t, err)
	require.Equal(t, 1, legacy.CommandLength())

	noID, err := New(0, 0, CommandNull, nil, []Descriptor{{Tag: TagSegmentation, Identifier: 0x00020000, Data: []byte{0, 0}}})
	require.NoError(t, err)
	_, err = Validate(mutate(t, noID, func(b SpliceInfo) { b[17] = 0 }))
	require.ErrorIs(t, err, bitstream.ErrTooShort)

	_, err = New(0, 0x1000, CommandNull, nil, nil)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)
}

func TestEncrypted(t *testing.T) {
	s, err := New(0, 0, CommandNull, nil, nil)
	require.NoError(t, err)
	// room for E_CRC_32
	b := make([]byte, len(s)+4)
	copy(b, s[:len(s)-psi.CRCLen])
	b[2] += 4
	fieldEncrypted.Put(b, true)
	require.NoError(t, psi.Section(b).SetCRC())

	enc, err := Validate(b)
	require.NoError(t, err)
	require.True(t, enc.Encrypted())
	_, err = Decode(enc)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)

	var lines []string
	require.NoError(t, Print(enc, output.New(output.Text, func(s string) { lines = append(lines, s) })))
	require.Equal(t, "  ENCRYPTED algorithm=0 cw_index=0", lines[1])
}

func TestPrint(t *testing.T) {
	s, err := Validate(scteMsg[1:])
	require.NoError(t, err)
	var lines []string
	require.NoError(t, Print(s, output.New(output.Text, func(s string) { lines = append(lines, s) })))
	require.Len(t, lines, 5)
	require.Equal(t, "SCTE35 protocol_version=0 encrypted=false pts_adjustment=0 tier=0xfff command=time_signal command_length=5", lines[0])
	require.Equal(t, "  TIME_SIGNAL pts=8582618160", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "  SEGMENTATION event_id=159085743 cancel=false type=0x31"))
	require.Contains(t, lines[4], "upid=4550303334313135303630303939")

	s, err = New(0, 0, CommandInsert, insert.Encode(), []Descriptor{{Tag: TagAvail, Identifier: CUEI, Data: []byte{0, 0, 0, 1}}})
	require.NoError(t, err)
	lines = nil
	require.NoError(t, Print(s, output.New(output.Text, func(s string) { lines = append(lines, s) })))
	require.Equal(t, []string{
		"SCTE35 protocol_version=0 encrypted=false pts_adjustment=0 tier=0x000 command=splice_insert command_length=20",
		"  SPLICE_INSERT event_id=42 cancel=false out_of_network=true immediate=false pts=900000 duration=2700000 auto_return=true program_id=7 avail=1 avails_expected=2",
		"  DESCRIPTOR tag=0x00 name=avail_descriptor identifier=0x43554549 data=00000001",
	}, lines)
}
