package id3

import (
	"bytes"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// SchemeID3 is the emsg scheme of ID3 timed metadata in CMAF.
const SchemeID3 = "https://aomedia.org/emsg/ID3"

// Event places a tag on the media timeline of a CMAF track.
type Event struct {
	Timescale        uint32
	PresentationTime uint64
	Duration         uint32
	ID               uint32
}

// NewEmsg wraps t in a version 1 emsg box with an absolute presentation
// time.
func NewEmsg(t Tag, ev Event) (*mp4.EmsgBox, error) {
	v, err := Validate(t)
	if err != nil {
		return nil, errors.E("id3.NewEmsg", errors.K.Invalid, err)
	}
	if ev.Timescale == 0 {
		return nil, errors.E("id3.NewEmsg", errors.K.Invalid, bitstream.ErrInvalidValue, "timescale", 0)
	}
	return &mp4.EmsgBox{
		Version:          1,
		TimeScale:        ev.Timescale,
		PresentationTime: ev.PresentationTime,
		EventDuration:    ev.Duration,
		ID:               ev.ID,
		SchemeIDURI:      SchemeID3,
		Value:            "",
		MessageData:      append([]byte(nil), v...),
	}, nil
}

// EncodeEmsg wraps t in an emsg box and returns the encoded box.
func EncodeEmsg(t Tag, ev Event) ([]byte, error) {
	box, err := NewEmsg(t, ev)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = box.Encode(&buf); err != nil {
		return nil, errors.E("id3.EncodeEmsg", errors.K.IO, err)
	}
	return buf.Bytes(), nil
}

// FromEmsg extracts the tag of an ID3 emsg box.
func FromEmsg(box *mp4.EmsgBox) (Tag, Event, error) {
	e := errors.Template("id3.FromEmsg", errors.K.Invalid)
	if box.SchemeIDURI != SchemeID3 {
		return nil, Event{}, e(bitstream.ErrInvalidValue, "reason", "not an ID3 scheme", "scheme", box.SchemeIDURI)
	}
	t, err := Validate(box.MessageData)
	if err != nil {
		return nil, Event{}, e(err)
	}
	ev := Event{
		Timescale:        box.TimeScale,
		PresentationTime: box.PresentationTime,
		Duration:         box.EventDuration,
		ID:               box.ID,
	}
	if box.Version == 0 {
		ev.PresentationTime = uint64(box.PresentationTimeDelta)
	}
	return t, ev, nil
}

// DecodeEmsg decodes an encoded emsg box and extracts its tag.
func DecodeEmsg(data []byte) (Tag, Event, error) {
	box, err := mp4.DecodeBox(0, bytes.NewReader(data))
	if err != nil {
		return nil, Event{}, errors.E("id3.DecodeEmsg", errors.K.Invalid, err)
	}
	emsg, ok := box.(*mp4.EmsgBox)
	if !ok {
		return nil, Event{}, errors.E("id3.DecodeEmsg", errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", "not an emsg box", "type", box.Type())
	}
	return FromEmsg(emsg)
}
