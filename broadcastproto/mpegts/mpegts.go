// Package mpegts demultiplexes MPEG-2 transport streams: it extracts PSI/SI
// sections from the packet payloads and hands them to a psi.Assembler, and
// collects ST 2038 ancillary data PES packets.
package mpegts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Comcast/gots/v2"
	"github.com/Comcast/gots/v2/packet"
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/psi"
	"github.com/eluv-io/bitstream/smpte20xx/anc"
)

const PcrTs uint64 = 27_000_000
const PcrMax uint64 = ((1 << 33) * 300) + (1 << 9)

const (
	PacketSize = packet.PacketSize
	SyncByte   = 0x47
	readSize   = 7 * PacketSize
)

// Well known PIDs.
const (
	PIDPAT  = 0x0000
	PIDCAT  = 0x0001
	PIDNIT  = 0x0010
	PIDSDT  = 0x0011
	PIDEIT  = 0x0012
	PIDRST  = 0x0013
	PIDTDT  = 0x0014
	PIDSIT  = 0x001F
	PIDNull = 0x1FFF
)

// Stream types the demux follows in the PMT.
const (
	StreamTypeSCTE35  = 0x86
	StreamTypePrivate = 0x06
)

var log = bitstream.NewLog("/bitstream/mpegts")

// Config configures a Demux.
type Config struct {
	// SectionPIDs lists the PIDs sections are extracted from. When empty the
	// PAT, CAT and DVB SI PIDs are followed and PMT and SCTE-35 PIDs are added
	// as the PAT and PMTs announce them.
	SectionPIDs []int
	// ANCPID is the PID of an ST 2038 stream, or -1.
	ANCPID int
	// StatsInterval is the period of StartReportingStats.
	StatsInterval time.Duration
}

// DefaultConfig follows the SI PIDs and no ANC stream.
func DefaultConfig() Config {
	return Config{
		ANCPID:        -1,
		StatsInterval: 5 * time.Second,
	}
}

// Option configures the callbacks of a Demux.
type Option func(*Demux)

// OnANC registers fn to receive every ST 2038 PES packet.
func OnANC(fn func(pid int, pes *anc.PES)) Option {
	return func(d *Demux) { d.onANC = fn }
}

// OnError registers fn to receive section and PES errors. Errors do not stop
// the demux.
func OnError(fn func(pid int, err error)) Option {
	return func(d *Demux) { d.onError = fn }
}

// OnTable registers fn to receive every table the assembler completes,
// together with the PID its last section arrived on.
func OnTable(fn func(pid int, t *psi.Table)) Option {
	return func(d *Demux) { d.onTable = fn }
}

// sectionBuffer holds the bytes of a section spanning packets.
type sectionBuffer struct {
	buf    []byte
	active bool
}

func (sb *sectionBuffer) reset() {
	sb.buf = sb.buf[:0]
	sb.active = false
}

// Demux is not safe for concurrent use except for Stats, which may be called
// from any goroutine.
type Demux struct {
	cfg       Config
	assembler *psi.Assembler
	onANC     func(int, *anc.PES)
	onError   func(int, error)
	onTable   func(int, *psi.Table)

	auto          bool
	sections      map[int]*sectionBuffer
	continuityMap map[int]uint8 // Map of PID to last continuity counter
	pcr           uint64        // Last seen PCR value
	pes           packet.Accumulator
	pesStarted    bool

	stats   stats
	closeCh chan struct{}
	stopped sync.Once
}

// NewDemux returns a demux pushing sections to a.
func NewDemux(cfg Config, a *psi.Assembler, opts ...Option) *Demux {
	d := &Demux{
		cfg:           cfg,
		assembler:     a,
		auto:          len(cfg.SectionPIDs) == 0,
		sections:      make(map[int]*sectionBuffer),
		continuityMap: make(map[int]uint8),
		closeCh:       make(chan struct{}),
	}
	d.stats.ccByPid = make(map[int]uint64)
	for _, opt := range opts {
		opt(d)
	}
	pids := cfg.SectionPIDs
	if d.auto {
		pids = []int{PIDPAT, PIDCAT, PIDNIT, PIDSDT, PIDEIT, PIDRST, PIDTDT, PIDSIT}
	}
	for _, pid := range pids {
		d.sections[pid] = &sectionBuffer{}
	}
	if cfg.ANCPID >= 0 {
		d.pes = packet.NewAccumulator(func([]byte) (bool, error) {
			return false, nil
		})
	}
	return d
}

// SectionPIDs returns the PIDs sections are currently extracted from.
func (d *Demux) SectionPIDs() []int {
	pids := make([]int, 0, len(d.sections))
	for pid := range d.sections {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// Run reads the transport stream from r until EOF, a read error or the
// cancellation of ctx. Data between packets is skipped up to the next sync
// byte.
func (d *Demux) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 0, 2*readSize)
	chunk := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		used := d.process(buf)
		buf = append(buf[:0], buf[used:]...)
		if err == io.EOF {
			if len(buf) > 0 {
				d.stats.incompletePackets.Inc()
			}
			d.Flush()
			return nil
		}
		if err != nil {
			d.Flush()
			return errors.E("mpegts.Run", errors.K.IO, err)
		}
	}
}

// ProcessPackets handles the packets of buf. A trailing partial packet is
// counted and dropped.
func (d *Demux) ProcessPackets(packets []byte) {
	if used := d.process(packets); used < len(packets) {
		d.stats.incompletePackets.Inc()
	}
}

// process handles the whole packets of buf and returns the number of bytes
// consumed.
func (d *Demux) process(buf []byte) int {
	off := 0
	for off+PacketSize <= len(buf) {
		if buf[off] != SyncByte {
			d.stats.badPackets.Inc()
			i := bytes.IndexByte(buf[off+1:], SyncByte)
			if i < 0 {
				return len(buf)
			}
			off += 1 + i
			continue
		}
		d.HandlePacket(toTSPacket(buf[off : off+PacketSize]))
		off += PacketSize
	}
	return off
}

// HandlePacket processes one packet.
func (d *Demux) HandlePacket(pkt packet.Packet) {
	d.stats.packetsReceived.Inc()
	d.stats.bytesReceived.Add(uint64(len(pkt)))

	if err := pkt.CheckErrors(); err != nil {
		d.stats.badPackets.Inc()
		return
	}
	d.updatePCR(pkt)
	pid := pkt.PID()
	switch d.checkContinuityCounter(pkt) {
	case ccDuplicate:
		return
	case ccError:
		if sb, ok := d.sections[pid]; ok && sb.active {
			d.stats.sectionsDropped.Inc()
			sb.reset()
		}
		if pid == d.cfg.ANCPID && d.pesStarted {
			d.stats.pesDropped.Inc()
			d.pes.Reset()
			d.pesStarted = false
		}
	}
	if !pkt.HasPayload() {
		return
	}
	if sb, ok := d.sections[pid]; ok {
		d.feedSections(pid, sb, &pkt)
	}
	if pid == d.cfg.ANCPID {
		d.feedPES(pid, &pkt)
	}
}

// Flush hands over the PES packet being accumulated.
func (d *Demux) Flush() {
	if d.pesStarted {
		d.emitPES(d.cfg.ANCPID)
		d.pesStarted = false
	}
}

func (d *Demux) fail(pid int, err error) {
	log.Debug("mpegts error", "pid", pid, "err", err)
	if d.onError != nil {
		d.onError(pid, err)
	}
}

type ccResult int

const (
	ccOK ccResult = iota
	ccDuplicate
	ccError
)

func (d *Demux) checkContinuityCounter(pkt packet.Packet) ccResult {
	pid := pkt.PID()

	if !pkt.HasPayload() || pkt.IsNull() {
		// the continuity counter only applies to packets with payload
		return ccOK
	}

	cc := uint8(pkt.ContinuityCounter())

	lastCC, exists := d.continuityMap[pid]
	d.continuityMap[pid] = cc

	switch {
	case !exists || cc == (lastCC+1)%16:
		return ccOK
	case cc == lastCC:
		d.stats.duplicates.Inc()
		return ccDuplicate
	}
	d.stats.errorsCC.Inc()
	d.stats.mu.Lock()
	d.stats.ccByPid[pid]++
	d.stats.mu.Unlock()
	return ccError
}

func (d *Demux) updatePCR(pkt packet.Packet) {
	if !pkt.HasAdaptationField() {
		return
	}

	// Cannot fail as we already checked for adaptation field
	a, _ := pkt.AdaptationField()

	hasPcr, err := a.HasPCR()
	if err != nil {
		d.stats.errorsAdaptationField.Inc()
		return
	} else if !hasPcr {
		return
	}

	pcr, err := a.PCR()
	if err != nil {
		d.stats.errorsAdaptationField.Inc()
		return
	}
	d.pcr = pcr
	d.stats.firstPCR.CompareAndSwap(0, pcr)
	d.stats.lastPCR.Store(pcr)
}

// PCR returns the last PCR seen on any PID, in 27 MHz units.
func (d *Demux) PCR() uint64 {
	return d.pcr
}

func (d *Demux) feedSections(pid int, sb *sectionBuffer, pkt *packet.Packet) {
	payload, err := pkt.Payload()
	if err != nil {
		d.stats.errorsOther.Inc()
		return
	}
	if pkt.PayloadUnitStartIndicator() {
		if len(payload) == 0 {
			return
		}
		ptr := int(payload[0])
		if 1+ptr > len(payload) {
			sb.reset()
			d.stats.sectionsDropped.Inc()
			d.fail(pid, errors.E("mpegts.Demux", errors.K.Invalid, bitstream.ErrLengthMismatch,
				"reason", "pointer_field past payload", "pointer", ptr, "len", len(payload)))
			return
		}
		if sb.active {
			sb.buf = append(sb.buf, payload[1:1+ptr]...)
			d.drain(pid, sb)
			if sb.active {
				d.stats.sectionsDropped.Inc()
				d.fail(pid, errors.E("mpegts.Demux", errors.K.Invalid, bitstream.ErrTooShort,
					"reason", "section interrupted by a new payload unit", "len", len(sb.buf)))
			}
		}
		sb.buf = append(sb.buf[:0], payload[1+ptr:]...)
		sb.active = true
	} else if sb.active {
		sb.buf = append(sb.buf, payload...)
	} else {
		return
	}
	d.drain(pid, sb)
}

// drain pushes the complete sections at the start of sb. A section ending
// exactly at the end of the buffered data ends the payload unit.
func (d *Demux) drain(pid int, sb *sectionBuffer) {
	for len(sb.buf) > 0 {
		if sb.buf[0] == psi.TableIDStuffing {
			sb.reset()
			return
		}
		if len(sb.buf) < psi.HeaderLen {
			return
		}
		length := int(psi.Section(sb.buf).SectionLength())
		if length > psi.MaxSectionLength {
			sb.reset()
			d.stats.sectionsDropped.Inc()
			d.fail(pid, errors.E("mpegts.Demux", errors.K.Invalid, bitstream.ErrLengthMismatch,
				"reason", "section_length too large", "section_length", length))
			return
		}
		size := psi.HeaderLen + length
		if len(sb.buf) < size {
			return
		}
		sec := append([]byte(nil), sb.buf[:size]...)
		sb.buf = append(sb.buf[:0], sb.buf[size:]...)
		d.pushSection(pid, sec)
	}
	sb.active = false
}

func (d *Demux) pushSection(pid int, sec []byte) {
	d.stats.sectionsPushed.Inc()
	res, tbl, err := d.assembler.Push(sec)
	if err != nil {
		d.stats.sectionErrors.Inc()
		d.fail(pid, err)
		return
	}
	if res != psi.ResultComplete {
		return
	}
	d.stats.tablesCompleted.Inc()
	if d.auto {
		d.follow(tbl)
	}
	if d.onTable != nil {
		d.onTable(pid, tbl)
	}
}

// follow adds the section PIDs announced by a PAT or PMT.
func (d *Demux) follow(tbl *psi.Table) {
	add := func(pid uint16) {
		if _, ok := d.sections[int(pid)]; !ok {
			log.Debug("following pid", "pid", pid)
			d.sections[int(pid)] = &sectionBuffer{}
		}
	}
	for _, s := range tbl.Sections() {
		switch s.TableID() {
		case psi.TableIDPAT:
			pat, err := psi.ValidatePAT(s)
			if err != nil {
				continue
			}
			for _, prog := range pat.Programs() {
				add(prog.PID)
			}
		case psi.TableIDPMT:
			pmt, err := psi.ValidatePMT(s)
			if err != nil {
				continue
			}
			for _, es := range pmt.Streams() {
				if es.Type == StreamTypeSCTE35 {
					add(es.PID)
				}
			}
		}
	}
}

// feedPES follows the ST 2038 stream: a payload unit start ends the PES
// packet being accumulated.
func (d *Demux) feedPES(pid int, pkt *packet.Packet) {
	if pkt.PayloadUnitStartIndicator() {
		if d.pesStarted {
			d.emitPES(pid)
		}
		d.pesStarted = true
	}
	if !d.pesStarted {
		// wait for the start of a PES packet
		return
	}
	if _, err := d.pes.WritePacket(pkt); err != nil && err != gots.ErrAccumulatorDone {
		d.stats.pesDropped.Inc()
		d.pes.Reset()
		d.pesStarted = false
		d.fail(pid, errors.E("mpegts.Demux", errors.K.Invalid, err))
	}
}

func (d *Demux) emitPES(pid int) {
	r, err := anc.ParsePES(d.pes.Bytes())
	d.pes.Reset()
	if err != nil {
		d.stats.pesDropped.Inc()
		d.fail(pid, err)
		return
	}
	d.stats.ancPES.Inc()
	if d.onANC != nil {
		d.onANC(pid, r)
	}
}

// StartReportingStats kicks off a job that periodically logs the stats until
// Stop is called.
func (d *Demux) StartReportingStats() {
	interval := d.cfg.StatsInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				v, _ := json.Marshal(d.Stats())
				log.Debug("mpegts stats", "stats", string(v))
			case <-d.closeCh:
				return
			}
		}
	}()
}

// Stop ends the stats reporting.
func (d *Demux) Stop() {
	d.stopped.Do(func() { close(d.closeCh) })
}

// toTSPacket converts a byte slice to a TS packet.
// If the byte slice is not exactly 188 bytes, it panics.
func toTSPacket(data []byte) packet.Packet {
	if len(data) != packet.PacketSize {
		// Should never occur if called correctly
		panic("invalid TS packet size")
	}
	var pkt packet.Packet
	copy(pkt[:], data[:packet.PacketSize])
	return pkt
}
