package scte35

import (
	"encoding/base64"
	"strconv"

	"github.com/eluv-io/errors-go"
	"github.com/grafov/m3u8"

	"github.com/eluv-io/bitstream"
)

// PTSClock is the frequency of presentation times and durations.
const PTSClock = 90000

// HLSCue converts a splice_insert or a time_signal with a segmentation
// descriptor into an SCTE-35 cue of an HLS media segment. The cue carries
// the whole section in base64.
func HLSCue(s SpliceInfo) (*m3u8.SCTE, error) {
	e := errors.Template("scte35.HLSCue", errors.K.Invalid)
	cue := &m3u8.SCTE{
		Syntax: m3u8.SCTE35_67_2014,
		Cue:    base64.StdEncoding.EncodeToString(s),
	}
	switch s.CommandType() {
	case CommandInsert:
		si, err := DecodeSpliceInsert(s.Command())
		if err != nil {
			return nil, e(err)
		}
		if si.Cancel {
			return nil, e(bitstream.ErrInvalidValue, "reason", "cancelled splice event", "event_id", si.EventID)
		}
		cue.ID = strconv.FormatUint(uint64(si.EventID), 10)
		cue.CueType = m3u8.SCTE35Cue_End
		if si.OutOfNetwork {
			cue.CueType = m3u8.SCTE35Cue_Start
		}
		if si.HasDuration {
			cue.Time = float64(si.Duration) / PTSClock
		}
	case CommandTimeSignal:
		g, err := Decode(s)
		if err != nil {
			return nil, e(err)
		}
		info, err := Convert(0, g)
		if err != nil {
			return nil, e(err)
		}
		if len(info.SpliceDescriptors) == 0 {
			return nil, e(bitstream.ErrInvalidValue, "reason", "time_signal without segmentation descriptor")
		}
		seg := info.SpliceDescriptors[0]
		cue.ID = strconv.FormatUint(uint64(seg.EventID), 10)
		cue.CueType = m3u8.SCTE35Cue_Start
		if seg.IsEnd() {
			cue.CueType = m3u8.SCTE35Cue_End
		}
		cue.Time = float64(seg.Duration) / PTSClock
	default:
		return nil, e(bitstream.ErrInvalidValue, "reason", "no cue for command",
			"command", CommandName(s.CommandType()))
	}
	return cue, nil
}

// AddCue attaches the cue of s to the last segment of pl.
func AddCue(pl *m3u8.MediaPlaylist, s SpliceInfo) error {
	cue, err := HLSCue(s)
	if err != nil {
		return err
	}
	if err = pl.SetSCTE35(cue); err != nil {
		return errors.E("scte35.AddCue", errors.K.Invalid, "reason", err.Error())
	}
	return nil
}
