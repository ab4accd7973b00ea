package psi

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
)

func collect(mode output.Mode) (*output.Printer, *[]string) {
	var lines []string
	return output.New(mode, func(s string) { lines = append(lines, s) }), &lines
}

func TestPrintPAT(t *testing.T) {
	s, err := NewPAT(1, 3, []Program{{Number: 0, PID: 0x10}, {Number: 1, PID: 0x100}})
	require.NoError(t, err)

	p, lines := collect(output.Text)
	require.NoError(t, Print(s, p, nil))
	require.Equal(t, []string{
		"SECTION table_id=0x00 name=PAT length=17 tid_ext=1 version=3 current=true section=0 last_section=0",
		"  NETWORK number=0 pid=16",
		"  PROGRAM number=1 pid=256",
	}, *lines)
}

func TestPrintPMT(t *testing.T) {
	info := []byte{0x52, 0x01, 0x07}
	s, err := NewPMT(1, 0, 0x100, info, []Stream{{Type: 0x1B, PID: 0x100}, {Type: 0x0F, PID: 0x101, Descriptors: info}})
	require.NoError(t, err)

	p, lines := collect(output.Text)
	var lists [][]byte
	lp := func(list []byte, p *output.Printer) {
		lists = append(lists, list)
		p.Element("LIST", output.A("data", output.HexBytes(list)))
	}
	require.NoError(t, Print(s, p, lp))
	require.Equal(t, []string{
		"SECTION table_id=0x02 name=PMT length=29 tid_ext=1 version=0 current=true section=0 last_section=0",
		"  PCR pid=256",
		"  LIST data=520107",
		"  ES pid=256 streamtype=0x1b",
		"  ES pid=257 streamtype=0x0f",
		"    LIST data=520107",
	}, *lines)
	require.Equal(t, [][]byte{info, info}, lists)

	// without a list printer, lists print as hex
	p, lines = collect(output.Text)
	require.NoError(t, Print(s, p, nil))
	require.Equal(t, "  DESCRIPTORS data=520107", (*lines)[2])
}

func TestPrintTDT(t *testing.T) {
	s, err := NewTDT(time.Date(1993, time.October, 13, 12, 45, 0, 0, time.UTC))
	require.NoError(t, err)

	p, lines := collect(output.XML)
	require.NoError(t, Print(s, p, nil))
	require.Equal(t, []string{
		`<SECTION table_id="0x70" name="TDT" length="5">`,
		`<TIME utc="1993-10-13 12:45:00"/>`,
		`</SECTION>`,
	}, *lines)
}

func TestPrintInvalid(t *testing.T) {
	s, err := NewPAT(1, 0, []Program{{Number: 1, PID: 0x100}})
	require.NoError(t, err)
	s[len(s)-1] ^= 0xFF

	p, lines := collect(output.Text)
	err = Print(s, p, nil)
	require.ErrorIs(t, err, bitstream.ErrCrcMismatch)
	require.Len(t, *lines, 1)
	require.True(t, strings.HasPrefix((*lines)[0], "SECTION table_id=0x00 name=PAT error="))
	require.True(t, strings.HasSuffix((*lines)[0], "data="+output.HexBytes(s)))

	// unknown tables print their payload
	u, err := Build(0x90, true, SyntaxHeader{TableIDExtension: 7}, []byte{0xAB})
	require.NoError(t, err)
	p, lines = collect(output.Text)
	require.NoError(t, Print(u, p, nil))
	require.Equal(t, "  PAYLOAD data=ab", (*lines)[1])
}
