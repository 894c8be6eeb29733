// Package colpack provides append-only columnar compression for streams of
// semi-structured values.
//
// A column turns a sequence of tagged elements (scalars, objects, arrays and
// holes) into a compact binary: values are delta encoded and bit packed into
// control-byte framed regions, doubles are adaptively rescaled to integer
// deltas, and runs of same-shaped objects fan out into per-field sub-streams
// for much better compression. A sealed binary can be reopened and appended
// to without re-encoding what was already written.
//
// # Core Features
//
//   - Delta + Simple8b bit packing with RLE for repetitive streams
//   - Adaptive decimal rescaling of float64 values
//   - Automatic interleaving of same-shaped objects and arrays
//   - Reopen: resume appending to a finalized binary, byte-exactly
//   - Incremental emission for streaming growing outputs
//   - Multi-column blobs with xxHash64 field IDs, CRC32 checksums and
//     optional payload compression (Zstd, S2, LZ4, Snappy)
//
// # Basic Usage
//
// Encoding one column:
//
//	builder := colpack.NewBuilder()
//	builder.Append(element.Double(1.0))
//	builder.Append(element.Double(1.5))
//	builder.Skip() // a hole
//	data := builder.Finalize()
//
// Decoding:
//
//	for el := range colpack.NewDecoder(data).All() {
//	    ...
//	}
//
// Resuming a sealed binary:
//
//	builder, err := colpack.ReopenBuilder(data)
//	builder.Append(element.Double(1.25))
//	data = builder.Finalize()
//
// Packing several named columns into one blob:
//
//	encoder, _ := colpack.NewBlobEncoder(blob.WithCompression(format.CompressionZstd))
//	col, _ := encoder.Column("cpu.usage")
//	col.Append(element.Double(0.42))
//	b, _ := encoder.Finish()
//
// The element package builds and inspects values; the column, blob and store
// packages expose the full API surface wrapped here.
package colpack

import (
	"github.com/colpack/colpack/blob"
	"github.com/colpack/colpack/column"
	"github.com/colpack/colpack/internal/hash"
)

// NewBuilder creates an empty column builder.
func NewBuilder(opts ...column.Option) *column.Builder {
	return column.NewBuilder(opts...)
}

// ReopenBuilder reconstructs a live column builder from a finalized column
// binary, so appends continue as if the binary had never been finalized.
func ReopenBuilder(data []byte, opts ...column.Option) (*column.Builder, error) {
	return column.Reopen(data, opts...)
}

// NewDecoder creates a decoder over a column binary.
func NewDecoder(data []byte) *column.Decoder {
	return column.NewDecoder(data)
}

// NewBlobEncoder creates an encoder packing named columns into one blob.
func NewBlobEncoder(opts ...blob.Option) (*blob.Encoder, error) {
	return blob.NewEncoder(opts...)
}

// NewBlobDecoder parses and validates a blob binary.
func NewBlobDecoder(data []byte) (*blob.Decoder, error) {
	return blob.NewDecoder(data)
}

// FieldID returns the 64-bit xxHash64 field ID for a column name.
func FieldID(name string) uint64 {
	return hash.ID(name)
}
