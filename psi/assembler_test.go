package psi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
)

func section(t *testing.T, version, number, last uint8, payload ...byte) Section {
	s, err := Build(TableIDSDTActual, true, SyntaxHeader{
		TableIDExtension:  9,
		Version:           version,
		SectionNumber:     number,
		LastSectionNumber: last,
	}, append([]byte{0x23, 0x3A, 0xFF}, payload...))
	require.NoError(t, err)
	return s
}

var sdtKey = Key{TableID: TableIDSDTActual, Extension: 9}

func TestAssembleOutOfOrder(t *testing.T) {
	s0 := section(t, 1, 0, 2, 0xA0)
	s1 := section(t, 1, 1, 2, 0xA1)
	s2 := section(t, 1, 2, 2, 0xA2)

	a := NewAssembler()
	require.Equal(t, StateEmpty, a.State(sdtKey))

	res, tbl, err := a.Push(s1)
	require.NoError(t, err)
	require.Equal(t, ResultAccepted, res)
	require.Nil(t, tbl)
	require.Equal(t, StateAccumulating, a.State(sdtKey))

	res, _, err = a.Push(s0)
	require.NoError(t, err)
	require.Equal(t, ResultAccepted, res)
	require.Equal(t, []uint8{0, 1}, a.Held(sdtKey))

	res, tbl, err = a.Push(s2)
	require.NoError(t, err)
	require.Equal(t, ResultComplete, res)
	require.Equal(t, StateComplete, a.State(sdtKey))
	require.Equal(t, 3, tbl.Len())
	require.Equal(t, uint8(1), tbl.Version)
	require.Equal(t, sdtKey, tbl.Key)
	require.Equal(t, []Section{s0, s1, s2}, tbl.Sections())
	require.Same(t, tbl, a.Table(sdtKey))
	require.Empty(t, a.Held(sdtKey))
}

func TestAssembleIdempotent(t *testing.T) {
	s0 := section(t, 1, 0, 1, 0xA0)
	s1 := section(t, 1, 1, 1, 0xA1)

	a := NewAssembler()
	_, _, err := a.Push(s0)
	require.NoError(t, err)
	res, _, err := a.Push(s0)
	require.NoError(t, err)
	require.Equal(t, ResultDuplicate, res)
	require.Equal(t, StateAccumulating, a.State(sdtKey))
	require.Equal(t, []uint8{0}, a.Held(sdtKey))

	res, tbl, err := a.Push(s1)
	require.NoError(t, err)
	require.Equal(t, ResultComplete, res)

	for _, s := range []Section{s0, s1} {
		res, got, err := a.Push(s)
		require.NoError(t, err)
		require.Equal(t, ResultDuplicate, res)
		require.Nil(t, got)
	}
	require.Equal(t, StateComplete, a.State(sdtKey))
	require.Same(t, tbl, a.Table(sdtKey))
	require.Equal(t, uint64(3), a.Stats().Duplicates)
}

func TestAssembleLastWriterWins(t *testing.T) {
	a := NewAssembler()
	_, _, err := a.Push(section(t, 1, 0, 1, 0xA0))
	require.NoError(t, err)
	newer := section(t, 1, 0, 1, 0xB0)
	res, _, err := a.Push(newer)
	require.NoError(t, err)
	require.Equal(t, ResultAccepted, res)

	_, tbl, err := a.Push(section(t, 1, 1, 1, 0xA1))
	require.NoError(t, err)
	require.Equal(t, newer, tbl.Section(0))
}

func TestAssembleVersionReset(t *testing.T) {
	a := NewAssembler()

	// accumulating table of version 1
	_, _, err := a.Push(section(t, 1, 0, 2))
	require.NoError(t, err)
	_, _, err = a.Push(section(t, 1, 1, 2))
	require.NoError(t, err)

	res, _, err := a.Push(section(t, 2, 2, 2))
	require.NoError(t, err)
	require.Equal(t, ResultReset, res)
	require.Equal(t, StateAccumulating, a.State(sdtKey))
	require.Equal(t, []uint8{2}, a.Held(sdtKey))

	_, _, err = a.Push(section(t, 2, 0, 2))
	require.NoError(t, err)
	_, v2, err := a.Push(section(t, 2, 1, 2))
	require.NoError(t, err)
	require.NotNil(t, v2)
	require.Equal(t, uint8(2), v2.Version)
	require.Empty(t, a.Held(sdtKey))
	snapshot := v2.Sections()

	// complete table of version 2, new version 3
	res, _, err = a.Push(section(t, 3, 1, 2))
	require.NoError(t, err)
	require.Equal(t, ResultReset, res)
	require.Equal(t, StateAccumulating, a.State(sdtKey))
	require.Equal(t, []uint8{1}, a.Held(sdtKey))
	// the delivered snapshot is left alone
	require.Equal(t, snapshot, v2.Sections())
	require.Same(t, v2, a.Table(sdtKey))

	// last_section_number changes without a version change
	res, _, err = a.Push(section(t, 3, 0, 1))
	require.NoError(t, err)
	require.Equal(t, ResultReset, res)
	require.Equal(t, []uint8{0}, a.Held(sdtKey))
	require.Equal(t, uint64(3), a.Stats().Resets)
}

func TestAssembleRejects(t *testing.T) {
	a := NewAssembler()
	s0 := section(t, 1, 0, 1)
	_, _, err := a.Push(s0)
	require.NoError(t, err)

	corrupt := append(Section{}, section(t, 2, 1, 1)...)
	corrupt[len(corrupt)-1] ^= 0x01
	res, tbl, err := a.Push(corrupt)
	require.ErrorIs(t, err, bitstream.ErrCrcMismatch)
	require.Equal(t, ResultRejected, res)
	require.Nil(t, tbl)
	require.Equal(t, StateAccumulating, a.State(sdtKey))
	require.Equal(t, []uint8{0}, a.Held(sdtKey))

	_, _, err = a.Push([]byte{0x42})
	require.ErrorIs(t, err, bitstream.ErrTooShort)
	require.Equal(t, uint64(2), a.Stats().Rejected)
}

func TestAssembleCopiesSections(t *testing.T) {
	a := NewAssembler()
	buf := append([]byte{}, section(t, 1, 0, 0, 0xA0)...)
	want := append(Section{}, buf...)
	_, tbl, err := a.Push(buf)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = 0
	}
	require.Equal(t, want, tbl.Section(0))
}

func TestAssembleCurrentNext(t *testing.T) {
	next := append(Section{}, section(t, 1, 0, 0)...)
	next.SetCurrentNext(false)
	require.NoError(t, next.SetCRC())

	res, _, err := NewAssembler().Push(next)
	require.NoError(t, err)
	require.Equal(t, ResultIgnored, res)

	res, tbl, err := NewAssembler(AcceptNext()).Push(next)
	require.NoError(t, err)
	require.Equal(t, ResultComplete, res)
	require.False(t, tbl.Section(0).CurrentNext())
}

func TestAssembleWithoutSyntax(t *testing.T) {
	a := NewAssembler()
	tdt, err := ValidateTDT(mustTDT(t, 0x12))
	require.NoError(t, err)
	res, tbl, err := a.Push(tdt.Section)
	require.NoError(t, err)
	require.Equal(t, ResultComplete, res)
	require.Equal(t, 1, tbl.Len())

	res, _, err = a.Push(tdt.Section)
	require.NoError(t, err)
	require.Equal(t, ResultDuplicate, res)

	res, tbl, err = a.Push(mustTDT(t, 0x13))
	require.NoError(t, err)
	require.Equal(t, ResultComplete, res)
	require.Equal(t, byte(0x13), tbl.Section(0)[HeaderLen+2])
}

func mustTDT(t *testing.T, hour byte) Section {
	s, err := Build(TableIDTDT, false, SyntaxHeader{}, []byte{0xC0, 0x79, hour, 0x45, 0x00})
	require.NoError(t, err)
	return s
}

func TestAssembleOnComplete(t *testing.T) {
	var completed []*Table
	a := NewAssembler(OnComplete(func(tbl *Table) {
		completed = append(completed, tbl)
	}))
	_, _, _ = a.Push(section(t, 1, 0, 0))
	_, _, _ = a.Push(section(t, 1, 0, 0))
	_, _, _ = a.Push(section(t, 2, 0, 0))
	require.Len(t, completed, 2)
	require.Equal(t, uint8(2), completed[1].Version)
	require.Equal(t, []Key{sdtKey}, a.Keys())

	a.Forget(sdtKey)
	require.Equal(t, StateEmpty, a.State(sdtKey))
	require.Nil(t, a.Table(sdtKey))
}

func TestAssembleConcurrent(t *testing.T) {
	const last = 15
	sections := make([]Section, 0, last+1)
	for n := 0; n <= last; n++ {
		sections = append(sections, section(t, 1, uint8(n), last, byte(n)))
	}

	var mu sync.Mutex
	var completed []*Table
	a := NewAssembler(OnComplete(func(tbl *Table) {
		mu.Lock()
		completed = append(completed, tbl)
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range sections {
				_, _, err := a.Push(sections[(i+g)%len(sections)])
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	require.Len(t, completed, 1)
	require.Equal(t, sections, completed[0].Sections())
	st := a.Stats()
	require.Equal(t, uint64(8*len(sections)), st.Pushed)
	require.Equal(t, uint64(1), st.Completed)
	require.Equal(t, uint64(8*len(sections)-len(sections)), st.Duplicates)
}
