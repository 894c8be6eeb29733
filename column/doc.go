// Package column implements an append-only columnar binary format for
// heterogeneous element streams, compressing runs of similar values into
// delta-encoded simple8b words while keeping the stream decodable from the
// first byte.
//
// # Binary layout
//
// A column binary is a sequence of control bytes, each introducing either an
// uncompressed literal element or a run of simple8b words:
//
//   - 0x00 terminates the stream.
//   - Bytes below 0x20 start a literal: the element's type tag, a zero byte,
//     then the element's value encoding. A literal resets all delta state.
//   - Bytes with high nibble 0x80-0xD0 introduce 1 to 16 simple8b words
//     holding zigzag deltas against the last value. For doubles the nibble
//     also names the decimal scale the values were multiplied by before
//     encoding; all other types use the 0x80 marker.
//   - 0xF1 and 0xF2 open an interleaved region for objects and arrays.
//
// Numeric types store first-order deltas. Timestamps, datetimes and UIDs
// store delta-of-delta, so monotonic clocks collapse to zero. Strings,
// binaries and decimals below 17 bytes pack into 128-bit integers and store
// 128-bit deltas. Doubles scale to integers using the smallest decimal
// factor that round-trips, rescaling the in-flight block when a new value
// needs more precision.
//
// # Interleaving
//
// Consecutive objects with a compatible shape do not repeat their structure.
// The builder buffers a few objects, derives a reference shape, emits it
// once, and then fans each scalar leaf out into its own column encoded with
// the rules above. Word emission order follows the leaf with the fewest
// written words, which is exactly the order the decoder demands them in, so
// the merged stream needs no per-leaf framing.
//
// # Usage
//
// Building a column:
//
//	b := column.NewBuilder()
//	b.Append(element.Int64(1))
//	b.Append(element.Int64(2))
//	b.Skip()
//	data, err := b.Finalize()
//
// Reading one back:
//
//	dec := column.NewDecoder(data)
//	for el := range dec.All() {
//	    ...
//	}
//	if err := dec.Err(); err != nil {
//	    ...
//	}
//
// A finalized binary can be reopened for further appends with Reopen, which
// restores the builder to the exact state an uninterrupted build would have
// reached. Intermediate returns the encoded bytes mid-build as a diff
// against the previous call, for callers persisting a growing column.
package column
