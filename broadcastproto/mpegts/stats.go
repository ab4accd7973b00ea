package mpegts

import (
	"sync"

	"go.uber.org/atomic"
)

// Stats is a snapshot of the demux counters.
type Stats struct {
	PacketsReceived uint64 `json:"packets_received"`
	BytesReceived   uint64 `json:"bytes_received"`
	BadPackets      uint64 `json:"bad_packets"`
	Duplicates      uint64 `json:"duplicates"`

	FirstPCR uint64 `json:"first_pcr"` // First seen PCR value
	LastPCR  uint64 `json:"last_pcr"`  // Last seen PCR value

	SectionsPushed  uint64 `json:"sections_pushed"`
	SectionErrors   uint64 `json:"section_errors"`
	SectionsDropped uint64 `json:"sections_dropped"`
	TablesCompleted uint64 `json:"tables_completed"`
	ANCPES          uint64 `json:"anc_pes"`
	PESDropped      uint64 `json:"pes_dropped"`

	// Errors in the continuity counter
	ErrorsCC                uint64         `json:"errors_cc"`
	ErrorsCCByPid           map[int]uint64 `json:"errors_cc_by_pid,omitempty"`
	ErrorsAdaptationField   uint64         `json:"errors_adaptation_field"`
	ErrorsOther             uint64         `json:"errors_other"`
	ErrorsIncompletePackets uint64         `json:"errors_incomplete_packets"`
}

type stats struct {
	packetsReceived atomic.Uint64
	bytesReceived   atomic.Uint64
	badPackets      atomic.Uint64
	duplicates      atomic.Uint64
	firstPCR        atomic.Uint64
	lastPCR         atomic.Uint64

	sectionsPushed  atomic.Uint64
	sectionErrors   atomic.Uint64
	sectionsDropped atomic.Uint64
	tablesCompleted atomic.Uint64
	ancPES          atomic.Uint64
	pesDropped      atomic.Uint64

	errorsCC              atomic.Uint64
	errorsAdaptationField atomic.Uint64
	errorsOther           atomic.Uint64
	incompletePackets     atomic.Uint64

	mu      sync.Mutex
	ccByPid map[int]uint64
}

// Stats returns a snapshot of the counters.
func (d *Demux) Stats() Stats {
	s := &d.stats
	res := Stats{
		PacketsReceived:         s.packetsReceived.Load(),
		BytesReceived:           s.bytesReceived.Load(),
		BadPackets:              s.badPackets.Load(),
		Duplicates:              s.duplicates.Load(),
		FirstPCR:                s.firstPCR.Load(),
		LastPCR:                 s.lastPCR.Load(),
		SectionsPushed:          s.sectionsPushed.Load(),
		SectionErrors:           s.sectionErrors.Load(),
		SectionsDropped:         s.sectionsDropped.Load(),
		TablesCompleted:         s.tablesCompleted.Load(),
		ANCPES:                  s.ancPES.Load(),
		PESDropped:              s.pesDropped.Load(),
		ErrorsCC:                s.errorsCC.Load(),
		ErrorsAdaptationField:   s.errorsAdaptationField.Load(),
		ErrorsOther:             s.errorsOther.Load(),
		ErrorsIncompletePackets: s.incompletePackets.Load(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ccByPid) > 0 {
		res.ErrorsCCByPid = make(map[int]uint64, len(s.ccByPid))
		for pid, n := range s.ccByPid {
			res.ErrorsCCByPid[pid] = n
		}
	}
	return res
}
