package id3

import (
	"bytes"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// FrameHeaderLen is the size of a v2.3/v2.4 frame header.
const FrameHeaderLen = 10

// Frame format flags of v2.4.
const (
	FlagGrouping          uint16 = 0x0040
	FlagCompression       uint16 = 0x0008
	FlagEncryption        uint16 = 0x0004
	FlagUnsynchronisation uint16 = 0x0002
	FlagDataLength        uint16 = 0x0001
)

// Frame format flags of v2.3.
const (
	FlagV3Compression uint16 = 0x0080
	FlagV3Encryption  uint16 = 0x0040
	FlagV3Grouping    uint16 = 0x0020
)

// Frame is one frame of a tag. Data is the frame body as stored, a view into
// the tag unless the tag had to be resynchronised.
type Frame struct {
	ID      string
	Flags   uint16
	Data    []byte
	Offset  int
	Version uint8
}

// Size is the size of the frame, header included.
func (f Frame) Size() int { return FrameHeaderLen + len(f.Data) }

// Content returns the frame body with grouping, data length and
// unsynchronisation undone. Compressed and encrypted frames are rejected.
func (f Frame) Content() ([]byte, error) {
	e := errors.Template("id3.Frame.Content", errors.K.Invalid, "frame", f.ID)
	data := f.Data
	if f.Version == 3 {
		if f.Flags&(FlagV3Compression|FlagV3Encryption) != 0 {
			return nil, e(bitstream.ErrInvalidValue, "reason", "compressed or encrypted frame", "flags", f.Flags)
		}
		if f.Flags&FlagV3Grouping != 0 {
			if len(data) < 1 {
				return nil, e(bitstream.ErrTooShort)
			}
			data = data[1:]
		}
		return data, nil
	}
	if f.Flags&(FlagCompression|FlagEncryption) != 0 {
		return nil, e(bitstream.ErrInvalidValue, "reason", "compressed or encrypted frame", "flags", f.Flags)
	}
	if f.Flags&FlagGrouping != 0 {
		if len(data) < 1 {
			return nil, e(bitstream.ErrTooShort)
		}
		data = data[1:]
	}
	if f.Flags&FlagDataLength != 0 {
		if len(data) < 4 {
			return nil, e(bitstream.ErrTooShort)
		}
		data = data[4:]
	}
	if f.Flags&FlagUnsynchronisation != 0 {
		data = Resynchronise(data)
	}
	return data, nil
}

// Resynchronise undoes unsynchronisation: every 0xFF 0x00 pair becomes 0xFF.
// b is returned as is when it holds no such pair.
func Resynchronise(b []byte) []byte {
	if !bytes.Contains(b, []byte{0xFF, 0x00}) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		out = append(out, b[i])
		if b[i] == 0xFF && i+1 < len(b) && b[i+1] == 0x00 {
			i++
		}
	}
	return out
}

// Unsynchronise inserts a zero byte after every 0xFF that is followed by a
// byte with the top three bits set or by a zero, and after a final 0xFF.
func Unsynchronise(b []byte) []byte {
	out := make([]byte, 0, len(b)+len(b)/16)
	for i, c := range b {
		out = append(out, c)
		if c != 0xFF {
			continue
		}
		if i+1 == len(b) || b[i+1]&0xE0 == 0xE0 || b[i+1] == 0x00 {
			out = append(out, 0x00)
		}
	}
	return out
}

func validFrameID(id []byte) bool {
	for _, c := range id {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Iterator walks the frames of a tag. Padding after the last frame ends the
// walk normally.
type Iterator struct {
	version uint8
	area    []byte
	base    int
	cursor  int
	frame   Frame
	err     error
	done    bool
}

// Walk returns an iterator over the frames of t. t should have been
// validated at least up to its header.
func (t Tag) Walk() *Iterator {
	it := &Iterator{version: t.Version()}
	n, err := t.extendedLen()
	if err != nil {
		it.err, it.done = err, true
		return it
	}
	end := HeaderLen + t.Size()
	if end > len(t) {
		it.err = errors.E("id3.Walk", errors.K.Invalid, bitstream.ErrLengthMismatch, "size", end, "len", len(t))
		it.done = true
		return it
	}
	it.base = HeaderLen + n
	it.area = t[it.base:end]
	if it.version == 3 && t.Unsynchronised() {
		it.area = Resynchronise(it.area)
	}
	return it
}

func (it *Iterator) fail(err error) {
	it.err = errors.E("id3.Walk", errors.K.Invalid, err, "offset", it.base+it.cursor)
	it.done = true
}

// Next decodes the next frame header.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	rest := it.area[it.cursor:]
	if len(rest) == 0 || rest[0] == 0x00 {
		it.done = true
		for _, c := range rest {
			if c != 0x00 {
				it.fail(errors.E("id3.Walk", errors.K.Invalid, bitstream.ErrMalformedList,
					"reason", "non-zero byte in padding"))
				break
			}
		}
		return false
	}
	if len(rest) < FrameHeaderLen {
		it.fail(bitstream.ErrMalformedList)
		return false
	}
	if !validFrameID(rest[:4]) {
		it.fail(errors.E("id3.Walk", errors.K.Invalid, bitstream.ErrInvalidValue, "frame", string(rest[:4])))
		return false
	}
	var size int
	if it.version == 3 {
		size = int(uint32(rest[4])<<24 | uint32(rest[5])<<16 | uint32(rest[6])<<8 | uint32(rest[7]))
	} else {
		v, err := DecodeSyncsafe(rest[4:])
		if err != nil {
			it.fail(err)
			return false
		}
		size = int(v)
	}
	if FrameHeaderLen+size > len(rest) {
		it.fail(errors.E("id3.Walk", errors.K.Invalid, bitstream.ErrMalformedList,
			"frame", string(rest[:4]), "size", size, "remaining", len(rest)-FrameHeaderLen))
		return false
	}
	it.frame = Frame{
		ID:      string(rest[:4]),
		Flags:   uint16(rest[8])<<8 | uint16(rest[9]),
		Data:    rest[FrameHeaderLen : FrameHeaderLen+size : FrameHeaderLen+size],
		Offset:  it.base + it.cursor,
		Version: it.version,
	}
	it.cursor += FrameHeaderLen + size
	return true
}

// Frame returns the current frame.
func (it *Iterator) Frame() Frame { return it.frame }

// Err returns the error that ended the walk, if any.
func (it *Iterator) Err() error { return it.err }

// Frames returns all frames of t.
func (t Tag) Frames() ([]Frame, error) {
	var frames []Frame
	it := t.Walk()
	for it.Next() {
		frames = append(frames, it.Frame())
	}
	return frames, it.Err()
}

// Find returns the first frame with the given id.
func (t Tag) Find(id string) (Frame, bool) {
	it := t.Walk()
	for it.Next() {
		if it.Frame().ID == id {
			return it.Frame(), true
		}
	}
	return Frame{}, false
}
