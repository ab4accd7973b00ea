package mpegts

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eluv-io/bitstream/psi"
	"github.com/eluv-io/bitstream/scte35"
	"github.com/eluv-io/bitstream/smpte20xx/anc"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// muxer packetizes payload units with a continuity counter per PID.
type muxer struct {
	cc map[int]uint8
}

func newMuxer() *muxer {
	return &muxer{cc: map[int]uint8{}}
}

// packets splits payload over as many packets as needed. The first packet
// has the payload_unit_start_indicator set when pusi is true. The last one is
// padded with 0xFF.
func (m *muxer) packets(pid int, pusi bool, payload []byte) []byte {
	var out []byte
	for first := true; first || len(payload) > 0; first = false {
		pkt := make([]byte, PacketSize)
		pkt[0] = SyncByte
		if first && pusi {
			pkt[1] = 0x40
		}
		pkt[1] |= byte(pid>>8) & 0x1F
		pkt[2] = byte(pid)
		pkt[3] = 0x10 | m.cc[pid]
		m.cc[pid] = (m.cc[pid] + 1) % 16
		n := copy(pkt[4:], payload)
		payload = payload[n:]
		for i := 4 + n; i < PacketSize; i++ {
			pkt[i] = 0xFF
		}
		out = append(out, pkt...)
	}
	return out
}

// sections packetizes complete sections as one payload unit.
func (m *muxer) sections(pid int, secs ...[]byte) []byte {
	payload := []byte{0}
	for _, s := range secs {
		payload = append(payload, s...)
	}
	return m.packets(pid, true, payload)
}

func privateSection(t *testing.T, ext uint16, n int) psi.Section {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i)
	}
	s, err := psi.Build(0x90, true, psi.SyntaxHeader{TableIDExtension: ext}, payload)
	require.NoError(t, err)
	return s
}

type collector struct {
	tables []*psi.Table
	pids   []int
	errs   []error
	pes    []*anc.PES
}

func (c *collector) options() []Option {
	return []Option{
		OnTable(func(pid int, t *psi.Table) {
			c.pids = append(c.pids, pid)
			c.tables = append(c.tables, t)
		}),
		OnError(func(pid int, err error) { c.errs = append(c.errs, err) }),
		OnANC(func(pid int, p *anc.PES) { c.pes = append(c.pes, p) }),
	}
}

func newTestDemux(cfg Config) (*Demux, *collector) {
	c := &collector{}
	return NewDemux(cfg, psi.NewAssembler(), c.options()...), c
}

func TestFollowPATAndPMT(t *testing.T) {
	pat, err := psi.NewPAT(1, 0, []psi.Program{{Number: 1, PID: 0x100}})
	require.NoError(t, err)
	pmt, err := psi.NewPMT(1, 0, 0x101, nil, []psi.Stream{
		{Type: 0x1B, PID: 0x101},
		{Type: StreamTypeSCTE35, PID: 0x102},
	})
	require.NoError(t, err)
	cmd := scte35.EncodeTimeSignal(scte35.SpliceTime{Specified: true, PTS: 900000})
	cue, err := scte35.New(0, 0xFFF, scte35.CommandTimeSignal, cmd, nil)
	require.NoError(t, err)

	m := newMuxer()
	var ts []byte
	ts = append(ts, m.sections(0x102, cue)...) // not followed yet
	ts = append(ts, m.sections(PIDPAT, pat)...)
	ts = append(ts, m.sections(0x100, pmt)...)
	ts = append(ts, m.sections(0x102, cue)...)

	d, c := newTestDemux(DefaultConfig())
	d.ProcessPackets(ts)

	require.Equal(t, []int{PIDPAT, 0x100, 0x102}, c.pids)
	require.Len(t, c.tables, 3)
	require.Equal(t, uint8(psi.TableIDPAT), c.tables[0].Section(0).TableID())
	require.Equal(t, uint8(psi.TableIDPMT), c.tables[1].Section(0).TableID())
	require.Equal(t, uint8(psi.TableIDSCTE35), c.tables[2].Section(0).TableID())
	require.Empty(t, c.errs)
	require.Contains(t, d.SectionPIDs(), 0x100)
	require.Contains(t, d.SectionPIDs(), 0x102)
	require.NotContains(t, d.SectionPIDs(), 0x101)

	st := d.Stats()
	require.Equal(t, uint64(4), st.PacketsReceived)
	require.Equal(t, uint64(4*PacketSize), st.BytesReceived)
	require.Equal(t, uint64(3), st.SectionsPushed)
	require.Equal(t, uint64(3), st.TablesCompleted)
}

func TestSectionAcrossPackets(t *testing.T) {
	big := privateSection(t, 1, 400)
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	m := newMuxer()
	ts := m.sections(0x200, big)
	require.Len(t, ts, 3*PacketSize)
	d.ProcessPackets(ts)

	require.Len(t, c.tables, 1)
	require.Equal(t, []byte(big), []byte(c.tables[0].Section(0)))
	require.Empty(t, c.errs)
}

func TestSectionsInOnePacket(t *testing.T) {
	s1 := privateSection(t, 1, 10)
	s2 := privateSection(t, 2, 20)
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	d.ProcessPackets(newMuxer().sections(0x200, s1, s2))

	require.Len(t, c.tables, 2)
	require.Equal(t, uint16(1), c.tables[0].Section(0).TableIDExtension())
	require.Equal(t, uint16(2), c.tables[1].Section(0).TableIDExtension())
}

func TestPointerField(t *testing.T) {
	s1 := privateSection(t, 1, 300)
	s2 := privateSection(t, 2, 10)
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	// s1 starts in the first packet and ends in the second, where s2 starts
	// behind the pointer field
	m := newMuxer()
	first := append([]byte{0}, s1[:183]...)
	rest := s1[183:]
	second := append([]byte{byte(len(rest))}, rest...)
	second = append(second, s2...)
	ts := m.packets(0x200, true, first)
	ts = append(ts, m.packets(0x200, true, second)...)
	d.ProcessPackets(ts)

	require.Empty(t, c.errs)
	require.Len(t, c.tables, 2)
	require.Equal(t, []byte(s1), []byte(c.tables[0].Section(0)))
	require.Equal(t, []byte(s2), []byte(c.tables[1].Section(0)))
}

func TestPointerFieldPastPayload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	payload := make([]byte, 184)
	payload[0] = 200
	d.ProcessPackets(newMuxer().packets(0x200, true, payload))

	require.Len(t, c.errs, 1)
	require.Empty(t, c.tables)
	require.Equal(t, uint64(1), d.Stats().SectionsDropped)
}

func TestContinuityErrorDropsSection(t *testing.T) {
	big := privateSection(t, 1, 400)
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	ts := newMuxer().sections(0x200, big)
	// lose the second packet
	ts = append(ts[:PacketSize:PacketSize], ts[2*PacketSize:]...)
	d.ProcessPackets(ts)

	require.Empty(t, c.tables)
	st := d.Stats()
	require.Equal(t, uint64(1), st.ErrorsCC)
	require.Equal(t, map[int]uint64{0x200: 1}, st.ErrorsCCByPid)
	require.Equal(t, uint64(1), st.SectionsDropped)

	// the next payload unit is picked up again
	d.ProcessPackets(newMuxer().sections(0x200, privateSection(t, 3, 10)))
	require.Len(t, c.tables, 1)
}

func TestDuplicatePacket(t *testing.T) {
	s := privateSection(t, 1, 10)
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	pkt := newMuxer().sections(0x200, s)
	d.ProcessPackets(append(pkt, pkt...))

	require.Len(t, c.tables, 1)
	require.Equal(t, uint64(1), d.Stats().Duplicates)
	require.Equal(t, uint64(0), d.Stats().ErrorsCC)
}

func TestStuffingEndsPayloadUnit(t *testing.T) {
	s := privateSection(t, 1, 10)
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	m := newMuxer()
	ts := m.sections(0x200, s)
	// a continuation packet without a started section is ignored
	ts = append(ts, m.packets(0x200, false, s)...)
	d.ProcessPackets(ts)

	require.Len(t, c.tables, 1)
	require.Empty(t, c.errs)
}

func TestSectionError(t *testing.T) {
	s := privateSection(t, 1, 10)
	s[len(s)-1] ^= 0xFF
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	d.ProcessPackets(newMuxer().sections(0x200, s))

	require.Empty(t, c.tables)
	require.Len(t, c.errs, 1)
	require.Equal(t, uint64(1), d.Stats().SectionErrors)
}

func TestResync(t *testing.T) {
	s := privateSection(t, 1, 10)
	cfg := DefaultConfig()
	cfg.SectionPIDs = []int{0x200}
	d, c := newTestDemux(cfg)

	ts := append([]byte{0x00, 0x01, 0x02}, newMuxer().sections(0x200, s)...)
	ts = append(ts, 0x47, 0x00) // partial packet
	d.ProcessPackets(ts)

	require.Len(t, c.tables, 1)
	st := d.Stats()
	require.Equal(t, uint64(1), st.BadPackets)
	require.Equal(t, uint64(1), st.ErrorsIncompletePackets)
}

func TestPCR(t *testing.T) {
	d, _ := newTestDemux(DefaultConfig())

	base := uint64(90000)
	pkt := make([]byte, PacketSize)
	pkt[0] = SyncByte
	pkt[1], pkt[2] = 0x01, 0x00
	pkt[3] = 0x20 // adaptation field only
	pkt[4] = 183
	pkt[5] = 0x10 // PCR flag
	pkt[6] = byte(base >> 25)
	pkt[7] = byte(base >> 17)
	pkt[8] = byte(base >> 9)
	pkt[9] = byte(base >> 1)
	pkt[10] = byte(base&1)<<7 | 0x7E
	pkt[11] = 0
	for i := 12; i < PacketSize; i++ {
		pkt[i] = 0xFF
	}
	d.ProcessPackets(pkt)

	require.Equal(t, base*300, d.PCR())
	require.Equal(t, PcrTs, d.PCR())
	require.Equal(t, PcrTs, d.Stats().FirstPCR)
	require.Equal(t, PcrTs, d.Stats().LastPCR)
}

func ancPES(t *testing.T, pts uint64, line uint16) []byte {
	pes, err := anc.BuildPES(pts, []anc.ST2038Packet{{
		Line:    line,
		HOffset: 0,
		Packet:  anc.Packet{DID: anc.DIDAFD, SDID: anc.SDIDSCTE104, UDW: []uint8{0x08}},
	}})
	require.NoError(t, err)
	return pes
}

func TestANC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ANCPID = 0x300
	d, c := newTestDemux(cfg)

	m := newMuxer()
	ts := m.packets(0x300, true, ancPES(t, 90000, 9))
	ts = append(ts, m.packets(0x300, true, ancPES(t, 93003, 10))...)
	require.NoError(t, d.Run(context.Background(), bytes.NewReader(ts)))

	require.Empty(t, c.errs)
	require.Len(t, c.pes, 2)
	require.Equal(t, uint64(90000), c.pes[0].PTS)
	require.Equal(t, uint64(93003), c.pes[1].PTS)
	require.Len(t, c.pes[1].Packets, 1)
	require.Equal(t, uint16(10), c.pes[1].Packets[0].Line)
	require.Equal(t, []uint8{0x08}, c.pes[1].Packets[0].UDW)
	require.NoError(t, c.pes[1].Packets[0].Err)
	require.Equal(t, uint64(2), d.Stats().ANCPES)
}

func TestANCContinuityError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ANCPID = 0x300
	d, c := newTestDemux(cfg)

	m := newMuxer()
	ts := m.packets(0x300, true, ancPES(t, 90000, 9))
	m.cc[0x300] = 7
	ts = append(ts, m.packets(0x300, false, []byte{0xFF})...)
	d.ProcessPackets(ts)
	d.Flush()

	require.Empty(t, c.pes)
	require.Equal(t, uint64(1), d.Stats().PESDropped)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, _ := newTestDemux(DefaultConfig())
	err := d.Run(ctx, bytes.NewReader(make([]byte, PacketSize)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestStatsReporting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatsInterval = time.Millisecond
	d, _ := newTestDemux(cfg)
	d.StartReportingStats()
	time.Sleep(5 * time.Millisecond)
	d.Stop()
	d.Stop()
	// the reporting goroutine exits, goleak checks it in TestMain
}
