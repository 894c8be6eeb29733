package section

import (
	"github.com/colpack/colpack/errs"
)

// Header represents the fixed-size header section at the start of a blob.
//
// Layout (32 bytes):
//
//	Bytes  | Field         | Description
//	-------|---------------|------------------------------------------
//	0-3    | Flag          | magic, endianness, checksum, codec
//	4-7    | ColumnCount   | number of columns stored in the blob
//	8-11   | IndexOffset   | byte offset to the index section
//	12-15  | PayloadOffset | byte offset to the (compressed) payload
//	16-19  | PayloadLength | uncompressed payload length in bytes
//	20-23  | Checksum      | CRC32-Castagnoli of the stored payload
//	24-31  | Reserved      | must be zero
type Header struct {
	// ColumnCount is the number of columns stored in the blob.
	ColumnCount uint32 // byte offset 4-7
	// IndexOffset is the byte offset to the start of the index section.
	IndexOffset uint32 // byte offset 8-11
	// PayloadOffset is the byte offset to the start of the payload section,
	// recorded after the index section.
	PayloadOffset uint32 // byte offset 12-15
	// PayloadLength is the uncompressed payload length. When the payload is
	// stored uncompressed it equals the byte count after PayloadOffset.
	PayloadLength uint32 // byte offset 16-19
	// Checksum is the CRC32-Castagnoli checksum of the payload section as
	// stored (after compression). Zero when the checksum flag is off.
	Checksum uint32 // byte offset 20-23

	// Flag is a packed field for various flags and the magic number.
	Flag Flag // byte offset 0-3
}

// NewHeader creates a new Header with default flags.
// The column count and payload fields are set when the encoder finishes.
func NewHeader() *Header {
	return &Header{
		Flag:        NewFlag(),
		IndexOffset: IndexOffset,
	}
}

// Parse parses the header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing the header (must be exactly 32 bytes)
//
// Returns:
//   - error: ErrInvalidHeader if data is not 32 bytes, or flag validation errors
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeader
	}

	// Parse options first to determine endianness (the Options field itself
	// is always little-endian).
	h.Flag.Options = uint16(data[0]) | (uint16(data[1]) << 8)
	h.Flag.Version = data[2]
	h.Flag.CompressionType = data[3]

	engine := h.Flag.GetEndianEngine()

	h.ColumnCount = engine.Uint32(data[4:8])
	h.IndexOffset = engine.Uint32(data[8:12])
	h.PayloadOffset = engine.Uint32(data[12:16])
	h.PayloadLength = engine.Uint32(data[16:20])
	h.Checksum = engine.Uint32(data[20:24])

	return h.Flag.Validate()
}

// Bytes serializes the Header into a byte slice.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	engine := h.Flag.GetEndianEngine()

	b[0] = byte(h.Flag.Options)
	b[1] = byte(h.Flag.Options >> 8)
	b[2] = h.Flag.Version
	b[3] = h.Flag.CompressionType
	engine.PutUint32(b[4:8], h.ColumnCount)
	engine.PutUint32(b[8:12], h.IndexOffset)
	engine.PutUint32(b[12:16], h.PayloadOffset)
	engine.PutUint32(b[16:20], h.PayloadLength)
	engine.PutUint32(b[20:24], h.Checksum)

	return b
}

// Validate checks the header's internal consistency beyond the flag bits.
func (h *Header) Validate() error {
	if err := h.Flag.Validate(); err != nil {
		return err
	}

	if h.IndexOffset != IndexOffset {
		return errs.ErrInvalidHeader
	}

	indexSize := uint64(h.ColumnCount) * IndexEntrySize
	if uint64(h.PayloadOffset) != uint64(h.IndexOffset)+indexSize {
		return errs.ErrInvalidHeader
	}

	return nil
}

// ParseHeader parses a Header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing the header (must be at least 32 bytes)
//
// Returns:
//   - Header: Parsed header struct
//   - error: ErrInvalidHeader or flag validation errors
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.ErrInvalidHeader
	}

	h := Header{}
	if err := h.Parse(data[:HeaderSize]); err != nil {
		return Header{}, err
	}

	return h, nil
}
