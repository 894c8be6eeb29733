package blob

import (
	"hash/crc32"

	"github.com/colpack/colpack/internal/hash"
	"github.com/colpack/colpack/section"
)

// castagnoli is the CRC32 table used for payload checksums. Castagnoli is
// hardware-accelerated on amd64 and arm64.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// FieldID returns the 64-bit field ID for a column name (xxHash64).
// The blob index identifies columns by this ID, not by name.
func FieldID(name string) uint64 {
	return hash.ID(name)
}

// Blob is a finished, immutable column blob produced by Encoder.Finish.
type Blob struct {
	data   []byte
	header section.Header
	index  []section.IndexEntry
}

// Bytes returns the complete blob binary: header, index and payload.
func (b Blob) Bytes() []byte {
	return b.data
}

// Size returns the total blob size in bytes.
func (b Blob) Size() int {
	return len(b.data)
}

// ColumnCount returns the number of columns stored in the blob.
func (b Blob) ColumnCount() int {
	return len(b.index)
}

// FieldIDs returns the field IDs of all columns in payload order.
func (b Blob) FieldIDs() []uint64 {
	ids := make([]uint64, len(b.index))
	for i := range b.index {
		ids[i] = b.index[i].FieldID
	}

	return ids
}

// Header returns the parsed blob header.
func (b Blob) Header() section.Header {
	return b.header
}
