package section

import (
	"github.com/colpack/colpack/endian"
	"github.com/colpack/colpack/errs"
	"github.com/colpack/colpack/format"
)

// Flag represents the packed 4-byte flag field at the start of a blob header.
type Flag struct {
	// Options is a packed field for various options.
	// Bit 0 is the endianness flag, 0 means little-endian, 1 means big-endian.
	// Bit 1 is the checksum flag, 0 means no payload checksum, 1 means CRC32.
	// Bits 2-3 are reserved for future use, must be set to 0.
	// Bits 4-15 are the magic number identifying the blob format:
	//   - 0xC010 (0b1100_0000_0001_0000): column blob format v1
	//
	// The Options field itself is always little-endian on the wire so the
	// endianness bit can be read before the byte order is known.
	Options uint16

	// Version is the blob format version, currently always FormatVersion1.
	Version uint8

	// CompressionType is the codec the whole payload section is compressed
	// with (format.CompressionNone for raw payloads).
	CompressionType uint8
}

var validCompressions = map[uint8]struct{}{
	uint8(format.CompressionNone):   {},
	uint8(format.CompressionZstd):   {},
	uint8(format.CompressionS2):     {},
	uint8(format.CompressionLZ4):    {},
	uint8(format.CompressionSnappy): {},
}

// NewFlag creates a new Flag with default settings: little-endian, checksum
// enabled, no payload compression.
func NewFlag() Flag {
	flag := Flag{
		Options:         MagicColumnV1Opt,
		Version:         FormatVersion1,
		CompressionType: uint8(format.CompressionNone),
	}
	flag.WithLittleEndian()
	flag.SetChecksum(true)

	return flag
}

// IsLittleEndian returns whether the blob data is little-endian.
func (f Flag) IsLittleEndian() bool {
	return (f.Options & EndiannessMask) == 0
}

// IsBigEndian returns whether the blob data is big-endian.
func (f Flag) IsBigEndian() bool {
	return (f.Options & EndiannessMask) != 0
}

// WithLittleEndian sets little-endian byte order.
func (f *Flag) WithLittleEndian() {
	f.Options &= ^uint16(EndiannessMask)
}

// WithBigEndian sets big-endian byte order.
func (f *Flag) WithBigEndian() {
	f.Options |= EndiannessMask
}

// HasChecksum returns whether the payload carries a CRC32 checksum.
func (f Flag) HasChecksum() bool {
	return (f.Options & ChecksumMask) != 0
}

// SetChecksum enables or disables the payload checksum.
func (f *Flag) SetChecksum(enabled bool) {
	if enabled {
		f.Options |= ChecksumMask
	} else {
		f.Options &^= ChecksumMask
	}
}

// GetMagicNumber returns the magic number from the Options field.
func (f Flag) GetMagicNumber() uint16 {
	return f.Options & MagicMask
}

// Compression returns the payload compression codec.
func (f Flag) Compression() format.CompressionType {
	return format.CompressionType(f.CompressionType)
}

// SetCompression sets the payload compression codec.
func (f *Flag) SetCompression(compression format.CompressionType) {
	f.CompressionType = uint8(compression)
}

// IsValidMagicNumber checks if the magic number is valid.
func (f Flag) IsValidMagicNumber() bool {
	return f.GetMagicNumber() == MagicColumnV1Opt
}

// IsValidCompression checks if the compression codec is known.
func (f Flag) IsValidCompression() bool {
	_, ok := validCompressions[f.CompressionType]

	return ok
}

// Validate checks if the flag contains valid values.
func (f Flag) Validate() error {
	if !f.IsValidMagicNumber() {
		return errs.ErrInvalidMagic
	}

	if (f.Options & ReservedMask) != 0 {
		return errs.ErrInvalidHeader
	}

	if f.Version != FormatVersion1 {
		return errs.ErrInvalidHeader
	}

	if !f.IsValidCompression() {
		return errs.ErrUnsupportedCompression
	}

	return nil
}

// GetEndianEngine returns the endian engine matching the endianness bit.
func (f Flag) GetEndianEngine() endian.EndianEngine {
	if f.IsLittleEndian() {
		return endian.GetLittleEndianEngine()
	}

	return endian.GetBigEndianEngine()
}
