package scte35

import (
	gscte35 "github.com/Comcast/gots/scte35"
	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// Info is a JSON friendly summary of a splice_info_section decoded by gots.
type Info struct {
	PID               uint16                    `json:"pid"`
	PTS               uint64                    `json:"pts"`
	Tier              uint16                    `json:"tier"`
	SpliceCommandType gscte35.SpliceCommandType `json:"splice_command_type"`
	SpliceDescriptors []Segmentation            `json:"splice_descriptors,omitempty"`
}

// Segmentation is a segmentation_descriptor. gots decodes no other splice
// descriptor.
type Segmentation struct {
	EventID             uint32                `json:"segmentation_event_id"`
	EventCancel         bool                  `json:"segmentation_event_cancel_indicator"`
	Duration            uint64                `json:"segmentation_duration,omitempty"`
	TypeID              gscte35.SegDescType   `json:"segmentation_type_id"`
	SegmentNum          uint8                 `json:"segment_num"`
	SegmentsExpected    uint8                 `json:"segments_expected"`
	SubSegmentNum       uint8                 `json:"sub_segment_num"`
	SubSegmentsExpected uint8                 `json:"sub_segments_expected"`
	DeliveryRestriction *DeliveryRestrictions `json:"delivery_restrictions,omitempty"`
	UPIDs               []UPID                `json:"segmentation_upids,omitempty"`
	Components          []SegmentComponent    `json:"components,omitempty"`
}

type DeliveryRestrictions struct {
	WebDeliveryAllowed bool                       `json:"web_delivery_allowed_flag"`
	NoRegionalBlackout bool                       `json:"no_regional_blackout_flag"`
	ArchiveAllowed     bool                       `json:"archive_allowed_flag"`
	DeviceRestrictions gscte35.DeviceRestrictions `json:"device_restrictions"`
}

type UPID struct {
	Type gscte35.SegUPIDType `json:"segmentation_upid_type"`
	UPID []byte              `json:"upid,omitempty"`
}

type SegmentComponent struct {
	Tag       uint8  `json:"component_tag"`
	PTSOffset uint64 `json:"pts_offset"`
}

// IsEnd reports whether the segmentation type ends a segment: the types
// from 0x10 on come in start/end pairs with odd ids ending the segment.
func (s Segmentation) IsEnd() bool {
	return s.TypeID >= 0x10 && s.TypeID%2 == 1
}

// Decode hands a validated section to the gots decoder.
func Decode(s SpliceInfo) (gscte35.SCTE35, error) {
	if s.Encrypted() {
		return nil, errors.E("scte35.Decode", errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", "encrypted section")
	}
	// gots expects the section behind a pointer field
	data := make([]byte, 1, 1+len(s))
	data = append(data, s...)
	g, err := gscte35.NewSCTE35(data)
	if err != nil {
		return nil, errors.E("scte35.Decode", errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", err.Error(), "command", CommandName(s.CommandType()))
	}
	return g, nil
}

// Convert summarizes a gots message received on pid.
func Convert(pid uint16, g gscte35.SCTE35) (Info, error) {
	info := Info{
		PID:               pid,
		PTS:               uint64(g.PTS()),
		Tier:              g.Tier(),
		SpliceCommandType: g.Command(),
	}
	switch info.SpliceCommandType {
	case gscte35.SpliceNull, gscte35.TimeSignal, gscte35.SpliceInsert:
	default:
		return info, errors.E("scte35.Convert", errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", "splice command not handled", "command", uint8(info.SpliceCommandType))
	}
	for _, gd := range g.Descriptors() {
		seg := Segmentation{
			EventID:             gd.EventID(),
			EventCancel:         gd.IsEventCanceled(),
			Duration:            uint64(gd.Duration()),
			TypeID:              gd.TypeID(),
			SegmentNum:          gd.SegmentNum(),
			SegmentsExpected:    gd.SegmentsExpected(),
			SubSegmentNum:       gd.SubSegmentNumber(),
			SubSegmentsExpected: gd.SubSegmentsExpected(),
		}
		if !gd.IsDeliveryNotRestricted() {
			seg.DeliveryRestriction = &DeliveryRestrictions{
				WebDeliveryAllowed: gd.IsWebDeliveryAllowed(),
				NoRegionalBlackout: gd.HasNoRegionalBlackout(),
				ArchiveAllowed:     gd.IsArchiveAllowed(),
				DeviceRestrictions: gd.DeviceRestrictions(),
			}
		}
		if gd.UPIDType() == gscte35.SegUPIDMID {
			for _, mid := range gd.MID() {
				seg.UPIDs = append(seg.UPIDs, UPID{Type: mid.UPIDType(), UPID: clone(mid.UPID())})
			}
		} else {
			seg.UPIDs = append(seg.UPIDs, UPID{Type: gd.UPIDType(), UPID: clone(gd.UPID())})
		}
		for _, gc := range gd.Components() {
			seg.Components = append(seg.Components, SegmentComponent{
				Tag:       gc.ComponentTag(),
				PTSOffset: uint64(gc.PTSOffset()),
			})
		}
		info.SpliceDescriptors = append(info.SpliceDescriptors, seg)
	}
	return info, nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
