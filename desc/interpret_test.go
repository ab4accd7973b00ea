package desc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
)

func lcnList(t *testing.T, specifier uint32) []byte {
	lcn, err := NewLogicalChannel(TagLogicalChannel, Channel{ServiceID: 0x10, Visible: true, Number: 7})
	require.NoError(t, err)
	if specifier == 0 {
		return AppendList(nil, lcn.Descriptor)
	}
	pds, err := NewPrivateDataSpecifier(specifier)
	require.NoError(t, err)
	return AppendList(nil, pds.Descriptor, lcn.Descriptor)
}

func TestInterpretPrivateDescriptors(t *testing.T) {
	t.Run("no specifier", func(t *testing.T) {
		ds, err := Interpret(lcnList(t, 0))
		require.NoError(t, err)
		require.Len(t, ds, 1)
		require.Nil(t, ds[0].Kind)
		require.Equal(t, "unknown", ds[0].Name())
		require.Equal(t, uint32(0), ds[0].Specifier)
	})
	t.Run("preceding specifier", func(t *testing.T) {
		ds, err := Interpret(lcnList(t, SpecifierEACEM))
		require.NoError(t, err)
		require.Len(t, ds, 2)
		require.Equal(t, "private_data_specifier", ds[0].Name())
		require.Equal(t, "eacem_logical_channel", ds[1].Name())
		require.Equal(t, SpecifierEACEM, ds[1].Specifier)
		require.Equal(t, 6, ds[1].Offset)
		require.NoError(t, ds[1].Err)
	})
	t.Run("inherited specifier", func(t *testing.T) {
		ds, err := Interpret(lcnList(t, 0), WithSpecifier(SpecifierEACEM))
		require.NoError(t, err)
		require.Equal(t, "eacem_logical_channel", ds[0].Name())
	})
	t.Run("other specifier", func(t *testing.T) {
		ds, err := Interpret(lcnList(t, SpecifierNordig))
		require.NoError(t, err)
		require.Nil(t, ds[1].Kind)
		require.Equal(t, SpecifierNordig, ds[1].Specifier)
	})
	t.Run("advisory", func(t *testing.T) {
		list := lcnList(t, SpecifierNordig)
		list = append(list, lcnList(t, 0)...)
		ds, err := Interpret(list, Advisory())
		require.NoError(t, err)
		require.Len(t, ds, 3)
		for _, d := range ds[1:] {
			require.Equal(t, "eacem_logical_channel", d.Name())
			require.Equal(t, SpecifierEACEM, d.Specifier)
		}
	})
}

func TestInterpretErrors(t *testing.T) {
	sid, err := NewStreamIdentifier(3)
	require.NoError(t, err)
	bad := Descriptor{TagStreamIdentifier, 0x02, 0x03, 0x04}
	list := AppendList(nil, sid.Descriptor, bad)

	ds, err := Interpret(list)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	require.NoError(t, ds[0].Err)
	require.ErrorIs(t, ds[1].Err, bitstream.ErrLengthMismatch)

	ds, err = Interpret(append(list, 0x52))
	require.ErrorIs(t, err, bitstream.ErrMalformedList)
	require.Nil(t, ds)

	ds, err = Interpret(append(list, 0x52), Lenient())
	require.NoError(t, err)
	require.Len(t, ds, 2)
}

func TestRegisterKind(t *testing.T) {
	const specifier uint32 = 0x0000ABCD
	Register(&Kind{Tag: 0xF0, Name: "test_private", Specifier: specifier})
	require.Nil(t, Lookup(0xF0, SpecifierEACEM))
	require.Equal(t, "test_private", Lookup(0xF0, specifier).Name)

	ds, err := Interpret([]byte{0xF0, 0x00}, WithSpecifier(specifier))
	require.NoError(t, err)
	require.Equal(t, "test_private", ds[0].Name())
	require.NoError(t, ds[0].Err)

	// public tags ignore the specifier
	require.Equal(t, "CA", Lookup(TagCA, specifier).Name)
}

func TestPrintList(t *testing.T) {
	name, _ := NewBouquetName("Bq")
	vbi, _ := NewTeletext(TeletextPage{Language: "deu", Type: TeletextSubtitle, Magazine: 1, Page: 0x50})
	vbi.Descriptor[0] = TagVBITeletext
	list := AppendList(lcnList(t, SpecifierEACEM), name.Descriptor, vbi.Descriptor, Descriptor{0x99, 0x01, 0xAB})

	var lines []string
	p := output.New(output.Text, func(s string) { lines = append(lines, s) })
	require.NoError(t, PrintList(list, p))
	require.Equal(t, []string{
		"DESC tag=0x5f name=private_data_specifier length=4 specifier=0x00000028",
		"DESC tag=0x83 name=eacem_logical_channel length=4",
		"  CHANNEL sid=16 visible=true lcn=7",
		"DESC tag=0x47 name=bouquet_name length=2 text=Bq",
		"DESC tag=0x46 name=VBI_teletext length=5",
		"  PAGE language=deu type=2 magazine=1 page=0x50",
		"DESC tag=0x99 name=unknown length=1 specifier=0x00000028 data=ab",
	}, lines)

	lines = nil
	p = output.New(output.XML, func(s string) { lines = append(lines, s) })
	bad := Descriptor{TagStreamIdentifier, 0x00}
	require.NoError(t, PrintList(bad, p))
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `<DESC tag="0x52" name="stream_identifier" length="0" error="`)
	require.Contains(t, lines[0], `data=""/>`)

	lines = nil
	require.Error(t, PrintList([]byte{0x52, 0x05}, p))
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `data="5205"`)
}
