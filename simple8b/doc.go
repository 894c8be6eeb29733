// Package simple8b packs sequences of small unsigned integers into
// fixed-size 64-bit words, with explicit skip slots for holes and
// run-length words for long stretches of one repeated value.
//
// Each word spends its low 4 bits on a selector and the remaining 60 bits
// on payload. Base selectors 1-14 divide the payload into equal slots of
// 1, 2, 3, 4, 5, 6, 7, 8, 10, 12, 15, 20, 30 or 60 bits, holding 60 down
// to 1 values per word. The all-ones pattern at the slot width marks a
// skip, which is why a value needing the full all-ones pattern promotes
// to the next wider slot. Selector 15 is a run-length word whose bits 4-7
// hold a multiplier m, repeating the final slot of the closest preceding
// base word (m+1)*120 times. Selector 0 is reserved and decoding rejects
// it.
//
// Words always pack to exact slot capacity, so the number of values a
// stream decodes to equals the number appended. The builders buffer
// values until one more would no longer share a word, then split the
// buffer greedily into full words, widest prefix first.
//
// Compression characteristics:
//   - Repeated values: 120 to 1920 values per 8-byte word (run-length)
//   - Small deltas: up to 60 values per word (1 bit each)
//   - Arbitrary storable values: 1 value per word (60 bits)
//   - Values above 60 bits: not storable, reported to the caller
//
// Builders hand finished words to a caller-supplied WriteFn instead of
// owning an output buffer, so a caller can interleave words from several
// builders into one stream and react to each word as it forms. The zero
// value of both builders is ready to use and treats the stream start as
// following a packed zero, matching the decoder's run-length lookback.
//
// Decoding is streaming: Visit64 and Visit128 walk raw slots, Sum64 and
// Sum128 fold zigzag deltas, and PrefixSum64 folds second-order deltas.
// All of them thread the run-length lookback through a caller-held word
// so a logical stream can span several physical stretches of words.
package simple8b
