package section

import (
	"github.com/colpack/colpack/endian"
	"github.com/colpack/colpack/errs"
)

// IndexEntry records information about a single column in the blob index
// section. It is a fixed size of 16 bytes.
//
// Entries are written in payload order, so a column's byte length is not
// stored: it is the gap between this entry's offset and the next entry's
// offset (or the payload end for the last entry). The decoder fills in
// Length while parsing.
type IndexEntry struct {
	// FieldID is the unsigned 64-bit xxHash64 hash of the column name.
	//
	// Offset: 0, Size: 8 bytes
	FieldID uint64

	// Offset is the byte offset of this column's binary relative to the
	// start of the uncompressed payload.
	//
	// Offset: 8, Size: 4 bytes (stored as uint32 on disk)
	Offset int

	// Count is the number of logical elements (values and holes) encoded in
	// this column.
	//
	// Offset: 12, Size: 4 bytes (stored as uint32 on disk)
	Count int

	// Length is the byte length of this column's binary inside the
	// uncompressed payload.
	//
	// This field is not stored on disk; the decoder derives it from the
	// neighboring entry's offset.
	Length int
}

// NewIndexEntry creates a new IndexEntry with the given field ID and count.
// The offset is set by the encoder when the payload is assembled.
func NewIndexEntry(fieldID uint64, count int) IndexEntry {
	return IndexEntry{
		FieldID: fieldID,
		Count:   count,
	}
}

// Bytes returns the index entry as a byte slice using the given endian engine.
//
// Uses stack allocation; offsets must fit in uint32 range, which the encoder
// guarantees by rejecting payloads past MaxOffset.
func (e *IndexEntry) Bytes(engine endian.EndianEngine) []byte {
	var b [IndexEntrySize]byte // stack allocation, faster than heap
	engine.PutUint64(b[0:8], e.FieldID)
	engine.PutUint32(b[8:12], uint32(e.Offset)) //nolint: gosec
	engine.PutUint32(b[12:16], uint32(e.Count)) //nolint: gosec

	return b[:]
}

// WriteToSlice writes to a pre-allocated slice and returns the next position.
//
// This is the most efficient method when writing multiple entries
// sequentially.
//
// Parameters:
//   - data: Pre-allocated byte slice (must have space for 16 bytes at offset)
//   - offset: Starting position in the data slice
//   - engine: Endian engine for byte order
//
// Returns:
//   - int: Next write position (offset + 16)
func (e *IndexEntry) WriteToSlice(data []byte, offset int, engine endian.EndianEngine) int {
	engine.PutUint64(data[offset:offset+8], e.FieldID)
	engine.PutUint32(data[offset+8:offset+12], uint32(e.Offset)) //nolint: gosec
	engine.PutUint32(data[offset+12:offset+16], uint32(e.Count)) //nolint: gosec

	return offset + IndexEntrySize
}

// ParseIndexEntry parses an IndexEntry from a byte slice.
//
// Parameters:
//   - data: Byte slice containing the index entry (must be at least 16 bytes)
//   - engine: Endian engine for byte order
//
// Returns:
//   - IndexEntry: Parsed index entry (Length is left zero, see type docs)
//   - error: ErrInvalidIndexEntry if data is too short
func ParseIndexEntry(data []byte, engine endian.EndianEngine) (IndexEntry, error) {
	if len(data) < IndexEntrySize {
		return IndexEntry{}, errs.ErrInvalidIndexEntry
	}

	return IndexEntry{
		FieldID: engine.Uint64(data[0:8]),
		Offset:  int(engine.Uint32(data[8:12])),
		Count:   int(engine.Uint32(data[12:16])),
	}, nil
}
