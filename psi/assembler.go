package psi

import (
	"bytes"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/eluv-io/bitstream"
)

var log = bitstream.NewLog("/bitstream/psi")

// Key identifies a table in an Assembler.
type Key struct {
	TableID   uint8
	Extension uint16
}

// KeyOf returns the identity of the table s belongs to.
func KeyOf(s Section) Key {
	return Key{TableID: s.TableID(), Extension: s.TableIDExtension()}
}

// State is the assembly state of a table.
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateComplete:
		return "complete"
	}
	return "empty"
}

// Result tells what a pushed section did to its table.
type Result int

const (
	// ResultRejected: the section is invalid and was dropped.
	ResultRejected Result = iota
	// ResultIgnored: the section is not applicable yet (current_next_indicator
	// clear) and was dropped.
	ResultIgnored
	// ResultDuplicate: the section was already held; nothing changed.
	ResultDuplicate
	// ResultAccepted: the section was added to an incomplete table.
	ResultAccepted
	// ResultReset: the section started a new version of the table.
	ResultReset
	// ResultComplete: the section completed the table.
	ResultComplete
)

func (r Result) String() string {
	switch r {
	case ResultIgnored:
		return "ignored"
	case ResultDuplicate:
		return "duplicate"
	case ResultAccepted:
		return "accepted"
	case ResultReset:
		return "reset"
	case ResultComplete:
		return "complete"
	}
	return "rejected"
}

// Table is a complete table: one section for every number from zero to
// LastSectionNumber, all of the same version. A Table is never modified once
// returned.
type Table struct {
	Key
	Version           uint8
	LastSectionNumber uint8
	sections          []Section
}

// Len returns the number of sections.
func (t *Table) Len() int {
	return len(t.sections)
}

// Section returns the section numbered n.
func (t *Table) Section(n int) Section {
	if n < 0 || n >= len(t.sections) {
		return nil
	}
	return t.sections[n]
}

// Sections returns the sections ordered by section number.
func (t *Table) Sections() []Section {
	return append([]Section(nil), t.sections...)
}

// Stats holds assembler counters.
type Stats struct {
	Pushed     uint64
	Rejected   uint64
	Ignored    uint64
	Duplicates uint64
	Completed  uint64
	Resets     uint64
}

type stats struct {
	pushed     atomic.Uint64
	rejected   atomic.Uint64
	ignored    atomic.Uint64
	duplicates atomic.Uint64
	completed  atomic.Uint64
	resets     atomic.Uint64
}

type assemblerConfig struct {
	acceptNext bool
	onComplete func(*Table)
	validate   []ValidateOption
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*assemblerConfig)

// AcceptNext assembles sections whose current_next_indicator is clear like
// current ones. By default they are ignored.
func AcceptNext() AssemblerOption {
	return func(c *assemblerConfig) {
		c.acceptNext = true
	}
}

// OnComplete registers fn to be called with every table completed by Push.
// fn runs on the pushing goroutine after the table lock is released.
func OnComplete(fn func(*Table)) AssemblerOption {
	return func(c *assemblerConfig) {
		c.onComplete = fn
	}
}

// WithValidateOptions sets the options sections are validated with.
func WithValidateOptions(opts ...ValidateOption) AssemblerOption {
	return func(c *assemblerConfig) {
		c.validate = opts
	}
}

// tableState is the assembly state of one table identity.
type tableState struct {
	mu       sync.Mutex
	state    State
	version  uint8
	last     uint8
	sections map[uint8]Section
	complete *Table
}

// Assembler collects sections into complete tables. Push may be called
// concurrently; pushes for the same table identity are serialized.
//
// Only sections with the syntax indicator set are assembled. Others are
// single-section tables by construction and are returned as complete on every
// push.
type Assembler struct {
	cfg assemblerConfig

	mu     sync.Mutex
	tables map[Key]*tableState

	stats stats
}

// NewAssembler returns an empty assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{tables: make(map[Key]*tableState)}
	for _, opt := range opts {
		opt(&a.cfg)
	}
	return a
}

func (a *Assembler) table(k Key) *tableState {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts, ok := a.tables[k]
	if !ok {
		ts = &tableState{}
		a.tables[k] = ts
	}
	return ts
}

// Push validates buf as a section and applies it to its table. The table is
// returned when the result is ResultComplete. An invalid section leaves all
// tables untouched and is reported as an error with ResultRejected.
func (a *Assembler) Push(buf []byte) (Result, *Table, error) {
	a.stats.pushed.Inc()
	s, err := validate("psi.Assembler.Push", buf, newValidateConfig(a.cfg.validate))
	if err != nil {
		a.stats.rejected.Inc()
		log.Debug("section dropped", "err", err)
		return ResultRejected, nil, err
	}
	if s.SyntaxIndicator() && !s.CurrentNext() && !a.cfg.acceptNext {
		a.stats.ignored.Inc()
		return ResultIgnored, nil, nil
	}

	k := KeyOf(s)
	ts := a.table(k)
	ts.mu.Lock()
	res, tbl := a.apply(ts, k, s)
	ts.mu.Unlock()

	switch res {
	case ResultDuplicate:
		a.stats.duplicates.Inc()
	case ResultComplete:
		a.stats.completed.Inc()
		if a.cfg.onComplete != nil {
			a.cfg.onComplete(tbl)
		}
	}
	return res, tbl, nil
}

// apply runs the state transition for s. ts must be locked.
func (a *Assembler) apply(ts *tableState, k Key, s Section) (Result, *Table) {
	if !s.SyntaxIndicator() {
		if ts.state == StateComplete && bytes.Equal(ts.complete.sections[0], s) {
			return ResultDuplicate, nil
		}
		tbl := &Table{Key: k, sections: []Section{append(Section(nil), s...)}}
		ts.state = StateComplete
		ts.complete = tbl
		return ResultComplete, tbl
	}

	version, number, last := s.Version(), s.SectionNumber(), s.LastSectionNumber()

	switch ts.state {
	case StateComplete:
		if version == ts.version && last == ts.last {
			return ResultDuplicate, nil
		}
		a.reset(ts, k, s)
	case StateAccumulating:
		if version != ts.version || last != ts.last {
			a.reset(ts, k, s)
			break
		}
		if held, ok := ts.sections[number]; ok && bytes.Equal(held, s) {
			return ResultDuplicate, nil
		}
	}
	res := ResultAccepted
	if ts.state == StateEmpty {
		ts.state = StateAccumulating
		ts.version = version
		ts.last = last
		ts.sections = make(map[uint8]Section, int(last)+1)
	} else if len(ts.sections) == 0 {
		res = ResultReset
	}

	// retained sections outlive the caller's buffer
	ts.sections[number] = append(Section(nil), s...)

	if len(ts.sections) < int(ts.last)+1 {
		return res, nil
	}
	tbl := &Table{
		Key:               k,
		Version:           ts.version,
		LastSectionNumber: ts.last,
		sections:          make([]Section, 0, len(ts.sections)),
	}
	for n := 0; n <= int(ts.last); n++ {
		tbl.sections = append(tbl.sections, ts.sections[uint8(n)])
	}
	ts.state = StateComplete
	ts.complete = tbl
	ts.sections = nil
	log.Debug("table complete", "table", TableName(k.TableID), "table_id", k.TableID,
		"extension", k.Extension, "version", tbl.Version, "sections", tbl.Len())
	return ResultComplete, tbl
}

// reset discards the held sections of ts so that s can start a new instance
// of the table. The last complete table stays available until the new
// instance completes.
func (a *Assembler) reset(ts *tableState, k Key, s Section) {
	a.stats.resets.Inc()
	log.Debug("table reset", "table", TableName(k.TableID), "table_id", k.TableID,
		"extension", k.Extension, "version", ts.version, "new_version", s.Version(),
		"last", ts.last, "new_last", s.LastSectionNumber())
	ts.state = StateAccumulating
	ts.version = s.Version()
	ts.last = s.LastSectionNumber()
	ts.sections = make(map[uint8]Section, int(ts.last)+1)
}

// State returns the assembly state of the table k.
func (a *Assembler) State(k Key) State {
	a.mu.Lock()
	ts, ok := a.tables[k]
	a.mu.Unlock()
	if !ok {
		return StateEmpty
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.state
}

// Table returns the last complete instance of the table k, or nil.
func (a *Assembler) Table(k Key) *Table {
	a.mu.Lock()
	ts, ok := a.tables[k]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.complete
}

// Held returns the section numbers held for the table k while it
// accumulates, in ascending order. It is empty once the table completes.
func (a *Assembler) Held(k Key) []uint8 {
	a.mu.Lock()
	ts, ok := a.tables[k]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	held := make([]uint8, 0, len(ts.sections))
	for n := range ts.sections {
		held = append(held, n)
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	return held
}

// Keys returns the identities of all tables seen so far.
func (a *Assembler) Keys() []Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]Key, 0, len(a.tables))
	for k := range a.tables {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TableID != keys[j].TableID {
			return keys[i].TableID < keys[j].TableID
		}
		return keys[i].Extension < keys[j].Extension
	})
	return keys
}

// Forget drops all state of the table k.
func (a *Assembler) Forget(k Key) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tables, k)
}

// Stats returns a snapshot of the counters.
func (a *Assembler) Stats() Stats {
	return Stats{
		Pushed:     a.stats.pushed.Load(),
		Rejected:   a.stats.rejected.Load(),
		Ignored:    a.stats.ignored.Load(),
		Duplicates: a.stats.duplicates.Load(),
		Completed:  a.stats.completed.Load(),
		Resets:     a.stats.resets.Load(),
	}
}
