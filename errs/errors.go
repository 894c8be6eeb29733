// Package errs defines sentinel errors shared across colpack packages.
//
// Callers can match these with errors.Is after any level of wrapping:
//
//	if errors.Is(err, errs.ErrInvalidBinary) { ... }
package errs

import "errors"

// Column binary errors, returned when parsing or reopening column data.
var (
	// ErrInvalidBinary indicates column bytes that do not form a valid stream.
	ErrInvalidBinary = errors.New("invalid column binary")

	// ErrUnexpectedEOF indicates a column binary that ends mid element,
	// mid control region or without a terminator.
	ErrUnexpectedEOF = errors.New("unexpected end of column binary")

	// ErrInvalidControlByte indicates a control byte outside the known
	// literal, packed-region and interleave ranges.
	ErrInvalidControlByte = errors.New("invalid control byte")

	// ErrInvalidElement indicates malformed element bytes (bad tag,
	// truncated value, unterminated name).
	ErrInvalidElement = errors.New("invalid element")

	// ErrInvalidSelector indicates a packed word with the reserved zero
	// selector.
	ErrInvalidSelector = errors.New("invalid simple8b selector")
)

// Blob container errors.
var (
	ErrInvalidHeader          = errors.New("invalid blob header")
	ErrInvalidMagic           = errors.New("invalid magic number")
	ErrInvalidIndexEntry      = errors.New("invalid index entry")
	ErrUnsupportedCompression = errors.New("unsupported compression codec")
	ErrChecksumMismatch       = errors.New("payload checksum mismatch")
	ErrColumnNotFound         = errors.New("column not found")
	ErrInvalidColumnName      = errors.New("invalid column name")
	ErrHashCollision          = errors.New("field name hash collision")
	ErrBlobTooLarge           = errors.New("blob payload exceeds offset range")
)

// Store errors.
var (
	ErrSeriesNotFound = errors.New("series not found")
	ErrStoreClosed    = errors.New("store is closed")
)
