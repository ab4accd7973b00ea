package scte35

import (
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/bitfield"
)

// bitReader reads consecutive MSB-first fields and keeps the first error.
type bitReader struct {
	buf []byte
	pos int
	err error
}

func (r *bitReader) read(width uint) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := bitfield.New(0, uint(r.pos), width).Get(r.buf)
	if err != nil {
		r.err = err
		return 0
	}
	r.pos += int(width)
	return v
}

func (r *bitReader) flag() bool { return r.read(1) == 1 }

// bitWriter appends consecutive MSB-first fields.
type bitWriter struct {
	buf []byte
	pos int
}

func (w *bitWriter) write(width uint, v uint64) {
	for need := (w.pos + int(width) + 7) / 8; len(w.buf) < need; {
		w.buf = append(w.buf, 0)
	}
	bitfield.New(0, uint(w.pos), width).Put(w.buf, v)
	w.pos += int(width)
}

func (w *bitWriter) flag(on bool) {
	if on {
		w.write(1, 1)
	} else {
		w.write(1, 0)
	}
}

// reserved writes width one bits.
func (w *bitWriter) reserved(width uint) { w.write(width, 1<<width-1) }

func spliceTimeLen(first byte) int {
	if first&0x80 != 0 {
		return 5
	}
	return 1
}

// SpliceTime is a splice_time structure. PTS is only meaningful when
// Specified is set.
type SpliceTime struct {
	Specified bool
	PTS       uint64
}

func (t *SpliceTime) read(r *bitReader) {
	t.Specified = r.flag()
	if t.Specified {
		r.read(6)
		t.PTS = r.read(33)
	} else {
		r.read(7)
	}
}

func (t SpliceTime) write(w *bitWriter) {
	w.flag(t.Specified)
	if t.Specified {
		w.reserved(6)
		w.write(33, t.PTS)
	} else {
		w.reserved(7)
	}
}

// DecodeTimeSignal decodes the splice_time of a time_signal command.
func DecodeTimeSignal(cmd []byte) (SpliceTime, error) {
	r := &bitReader{buf: cmd}
	var t SpliceTime
	t.read(r)
	if r.err != nil {
		return SpliceTime{}, errors.E("scte35.DecodeTimeSignal", errors.K.Invalid, r.err)
	}
	if r.pos/8 != len(cmd) {
		return SpliceTime{}, errors.E("scte35.DecodeTimeSignal", errors.K.Invalid, bitstream.ErrLengthMismatch,
			"len", len(cmd), "used", r.pos/8)
	}
	return t, nil
}

// EncodeTimeSignal returns the time_signal command for t.
func EncodeTimeSignal(t SpliceTime) []byte {
	w := &bitWriter{}
	t.write(w)
	return w.buf
}

// Component is one component of a component mode splice_insert.
type Component struct {
	Tag  uint8
	Time SpliceTime
}

// SpliceInsert is a decoded splice_insert command.
type SpliceInsert struct {
	EventID         uint32
	Cancel          bool
	OutOfNetwork    bool
	ProgramSplice   bool
	Immediate       bool
	Time            SpliceTime
	Components      []Component
	HasDuration     bool
	AutoReturn      bool
	Duration        uint64
	UniqueProgramID uint16
	AvailNum        uint8
	AvailsExpected  uint8
}

// DecodeSpliceInsert decodes a splice_insert command.
func DecodeSpliceInsert(cmd []byte) (SpliceInsert, error) {
	var si SpliceInsert
	r := &bitReader{buf: cmd}
	si.EventID = uint32(r.read(32))
	si.Cancel = r.flag()
	r.read(7)
	if !si.Cancel {
		si.OutOfNetwork = r.flag()
		si.ProgramSplice = r.flag()
		si.HasDuration = r.flag()
		si.Immediate = r.flag()
		r.read(4)
		if si.ProgramSplice && !si.Immediate {
			si.Time.read(r)
		}
		if !si.ProgramSplice {
			n := int(r.read(8))
			for i := 0; i < n && r.err == nil; i++ {
				c := Component{Tag: uint8(r.read(8))}
				if !si.Immediate {
					c.Time.read(r)
				}
				si.Components = append(si.Components, c)
			}
		}
		if si.HasDuration {
			si.AutoReturn = r.flag()
			r.read(6)
			si.Duration = r.read(33)
		}
		si.UniqueProgramID = uint16(r.read(16))
		si.AvailNum = uint8(r.read(8))
		si.AvailsExpected = uint8(r.read(8))
	}
	if r.err != nil {
		return SpliceInsert{}, errors.E("scte35.DecodeSpliceInsert", errors.K.Invalid, r.err)
	}
	if r.pos/8 != len(cmd) {
		return SpliceInsert{}, errors.E("scte35.DecodeSpliceInsert", errors.K.Invalid, bitstream.ErrLengthMismatch,
			"len", len(cmd), "used", r.pos/8)
	}
	return si, nil
}

// Encode returns the splice_insert command bytes.
func (si SpliceInsert) Encode() []byte {
	w := &bitWriter{}
	w.write(32, uint64(si.EventID))
	w.flag(si.Cancel)
	w.reserved(7)
	if si.Cancel {
		return w.buf
	}
	w.flag(si.OutOfNetwork)
	w.flag(si.ProgramSplice)
	w.flag(si.HasDuration)
	w.flag(si.Immediate)
	w.reserved(4)
	if si.ProgramSplice && !si.Immediate {
		si.Time.write(w)
	}
	if !si.ProgramSplice {
		w.write(8, uint64(len(si.Components)))
		for _, c := range si.Components {
			w.write(8, uint64(c.Tag))
			if !si.Immediate {
				c.Time.write(w)
			}
		}
	}
	if si.HasDuration {
		w.flag(si.AutoReturn)
		w.reserved(6)
		w.write(33, si.Duration)
	}
	w.write(16, uint64(si.UniqueProgramID))
	w.write(8, uint64(si.AvailNum))
	w.write(8, uint64(si.AvailsExpected))
	return w.buf
}
