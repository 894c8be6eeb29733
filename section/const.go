package section

import "math"

const (
	// Bit masks for the packed Options field.
	EndiannessMask = 0x0001 // Mask for endianness bit (bit 0)
	ChecksumMask   = 0x0002 // Mask for payload checksum bit (bit 1)
	ReservedMask   = 0x000C // Mask for reserved bits (bits 2-3)
	MagicMask      = 0xFFF0 // Mask for magic number (bits 4-15)

	// MagicColumnV1Opt is the version 1 magic number for the column blob
	// format, stored in bits 4-15 of the Options field.
	MagicColumnV1Opt = 0xC010

	// FormatVersion1 is the current blob format version, stored in the
	// flag's version byte.
	FormatVersion1 = 1
)

// Offsets and section sizes in the blob.
const (
	HeaderSize     = 32             // fixed header size in bytes
	IndexEntrySize = 16             // fixed index entry size in bytes
	IndexOffset    = HeaderSize     // byte offset where the index section starts
	MaxOffset      = math.MaxUint32 // maximum payload-relative offset value
	MaxColumnCount = math.MaxUint32 // maximum number of columns per blob
)
