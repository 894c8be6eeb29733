// Package blob packs many named columns into one self-describing binary.
//
// A blob is a container around finalized column binaries (see the column
// package): a fixed 32-byte header, a fixed-size index identifying each
// column by the xxHash64 of its name, and a payload holding the concatenated
// column binaries, optionally compressed as one block and protected by a
// CRC32 checksum.
//
// # Encoding
//
//	encoder, _ := blob.NewEncoder(blob.WithCompression(format.CompressionZstd))
//	col, _ := encoder.Column("cpu.usage")
//	col.Append(element.Double(0.42))
//	col.Append(element.Double(0.43))
//	b, _ := encoder.Finish()
//	data := b.Bytes()
//
// # Decoding
//
//	decoder, _ := blob.NewDecoder(data)
//	values, _ := decoder.Column("cpu.usage")
//	for el := range values.All() { ... }
//
// Columns are identified in the index only by their 64-bit field ID, so two
// distinct names hashing to the same ID fail encoding with
// errs.ErrHashCollision.
package blob
