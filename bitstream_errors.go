/*
 * Defines the error taxonomy shared by all wire structure parsers.
 */
package bitstream

import (
	"errors"
)

// ErrTooShort is the error returned when a buffer is smaller than the minimum
// size of the structure being read or written.
var ErrTooShort = errors.New("ErrTooShort")

// ErrLengthMismatch is the error returned when a declared length is
// inconsistent with the buffer, or with the sum of the child records it
// declares.
var ErrLengthMismatch = errors.New("ErrLengthMismatch")

// ErrCrcMismatch is the error returned when a CRC-32 or checksum does not
// match the protected bytes. It implies transmission corruption.
var ErrCrcMismatch = errors.New("ErrCrcMismatch")

// ErrTableIDMismatch is the error returned when a section is structurally
// valid but carries a table_id other than the one expected by the decoder.
// This is routine when probing sections with several decoders.
var ErrTableIDMismatch = errors.New("ErrTableIDMismatch")

// ErrMalformedList is the error returned when a tag/length list contains a
// record whose length runs past the end of the list.
var ErrMalformedList = errors.New("ErrMalformedList")

// ErrInvalidValue is the error returned when a value does not fit the field
// it is written to, or a field holds a value the standard forbids.
var ErrInvalidValue = errors.New("ErrInvalidValue")

// IsDecodeError reports whether err carries one of the taxonomy errors above.
// Anything else (I/O failures in the tools, for instance) is not a decode error.
func IsDecodeError(err error) bool {
	for _, target := range []error{
		ErrTooShort,
		ErrLengthMismatch,
		ErrCrcMismatch,
		ErrTableIDMismatch,
		ErrMalformedList,
		ErrInvalidValue,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
