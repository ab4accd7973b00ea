package psi

import (
	"time"

	"github.com/eluv-io/errors-go"

	"github.com/eluv-io/bitstream"
)

// UTCLen is the size of a DVB UTC time: a 16-bit modified Julian date
// followed by hours, minutes and seconds in BCD.
const UTCLen = 5

// DurationLen is the size of a BCD hhmmss duration.
const DurationLen = 3

var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

func fromBCD(b byte) (int, bool) {
	hi, lo := int(b>>4), int(b&0x0F)
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return hi*10 + lo, true
}

func toBCD(v int) byte {
	return byte(v/10<<4 | v%10)
}

func decodeHMS(op string, b []byte) (h, m, s int, err error) {
	var ok [3]bool
	h, ok[0] = fromBCD(b[0])
	m, ok[1] = fromBCD(b[1])
	s, ok[2] = fromBCD(b[2])
	if !ok[0] || !ok[1] || !ok[2] || m > 59 || s > 60 {
		return 0, 0, 0, errors.E(op, errors.K.Invalid, bitstream.ErrInvalidValue,
			"reason", "bad BCD time", "bcd", b[:3])
	}
	return h, m, s, nil
}

// UndefinedUTC tells whether b holds the all-ones pattern that marks an
// unknown time, e.g. the start of an NVOD reference event.
func UndefinedUTC(b []byte) bool {
	if len(b) < UTCLen {
		return false
	}
	for _, c := range b[:UTCLen] {
		if c != 0xFF {
			return false
		}
	}
	return true
}

// DecodeUTC decodes a 40-bit DVB UTC time. An undefined time decodes to the
// zero time without error.
func DecodeUTC(b []byte) (time.Time, error) {
	if len(b) < UTCLen {
		return time.Time{}, errors.E("psi.DecodeUTC", errors.K.Invalid, bitstream.ErrTooShort, "len", len(b))
	}
	if UndefinedUTC(b) {
		return time.Time{}, nil
	}
	h, m, s, err := decodeHMS("psi.DecodeUTC", b[2:])
	if err != nil {
		return time.Time{}, err
	}
	if h > 23 {
		return time.Time{}, errors.E("psi.DecodeUTC", errors.K.Invalid, bitstream.ErrInvalidValue, "hour", h)
	}
	mjd := int(b[0])<<8 | int(b[1])
	return mjdEpoch.AddDate(0, 0, mjd).Add(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute + time.Duration(s)*time.Second), nil
}

// EncodeUTC writes t, converted to UTC and truncated to the second. The zero
// time is written as undefined.
func EncodeUTC(dst []byte, t time.Time) error {
	e := errors.Template("psi.EncodeUTC", errors.K.Invalid)
	if len(dst) < UTCLen {
		return e(bitstream.ErrTooShort, "len", len(dst))
	}
	if t.IsZero() {
		copy(dst, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
		return nil
	}
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	mjd := int(day.Sub(mjdEpoch).Hours() / 24)
	if mjd < 0 || mjd > 0xFFFF {
		return e(bitstream.ErrInvalidValue, "reason", "date out of MJD range", "time", t)
	}
	dst[0] = byte(mjd >> 8)
	dst[1] = byte(mjd)
	dst[2] = toBCD(t.Hour())
	dst[3] = toBCD(t.Minute())
	dst[4] = toBCD(t.Second())
	return nil
}

// DecodeDuration decodes a 24-bit BCD hhmmss duration.
func DecodeDuration(b []byte) (time.Duration, error) {
	if len(b) < DurationLen {
		return 0, errors.E("psi.DecodeDuration", errors.K.Invalid, bitstream.ErrTooShort, "len", len(b))
	}
	h, m, s, err := decodeHMS("psi.DecodeDuration", b)
	if err != nil {
		return 0, err
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

// EncodeDuration writes d, truncated to the second, as BCD hhmmss.
func EncodeDuration(dst []byte, d time.Duration) error {
	e := errors.Template("psi.EncodeDuration", errors.K.Invalid)
	if len(dst) < DurationLen {
		return e(bitstream.ErrTooShort, "len", len(dst))
	}
	secs := int(d / time.Second)
	if secs < 0 || secs >= 100*3600 {
		return e(bitstream.ErrInvalidValue, "duration", d)
	}
	dst[0] = toBCD(secs / 3600)
	dst[1] = toBCD(secs / 60 % 60)
	dst[2] = toBCD(secs % 60)
	return nil
}
