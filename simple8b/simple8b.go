package simple8b

import "math/bits"

// WriteFn receives each completed 8-byte word, synchronously, before the
// call that produced it returns. Callers append the word to their output
// and maintain any surrounding framing.
type WriteFn func(word uint64)

const (
	// maxDataBits is the widest value a word can carry. Wider values are
	// rejected by Append and must be stored out of band.
	maxDataBits = 60

	// rleSelector marks a run-length word. Bits 4-7 hold the multiplier.
	rleSelector = 0xF

	// rleRun is the repeat granularity of one run-length multiplier step.
	rleRun = 120

	// rleMaxMultiplier caps the repeats a single run-length word can hold
	// at rleMaxMultiplier*rleRun.
	rleMaxMultiplier = 16

	numBaseSelectors = 14
)

// selectorBits maps base selectors 1-14 to the bit width of each packed
// value. Selector 0 is reserved.
var selectorBits = [numBaseSelectors + 1]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 10, 12, 15, 20, 30, 60}

// selectorCapacity maps base selectors to the exact number of values a
// word holds. Words are always filled to capacity so that decoded element
// counts match appended element counts.
var selectorCapacity = [numBaseSelectors + 1]int{0, 60, 30, 20, 15, 12, 10, 8, 7, 6, 5, 4, 3, 2, 1}

// SingleZeroWord packs exactly one zero. It is the neutral run-length
// basis: decoding starts as if such a word preceded the stream, so a
// leading run-length word repeats zero.
const SingleZeroWord uint64 = 0x0E

// SingleSkipWord packs exactly one skip.
const SingleSkipWord uint64 = 0xFFFFFFFFFFFFFFFE

// SingleValueWord returns the word packing v as its only value, used to
// seed run-length lookback when resuming a decode mid stream. v must be
// storable (at most 60 meaningful bits).
func SingleValueWord(v uint64) uint64 {
	return v<<4 | 0x0E
}

func wordMask(width int) uint64 {
	return uint64(1)<<width - 1
}

// minBitsFor returns the narrowest width able to hold v. The all-ones
// pattern at any width is the skip marker, so such values need one extra
// bit. Values above 60 bits yield a width Append rejects.
func minBitsFor(v uint64) int {
	n := bits.Len64(v)
	if n == 0 {
		return 1
	}
	if n < 64 && v == wordMask(n) {
		n++
	}

	return n
}

// IsRLE reports whether a packed word uses the run-length selector.
func IsRLE(word uint64) bool {
	return word&0xF == rleSelector
}

// lastInWord returns the final slot of a non-RLE word, which is what a
// following run-length word repeats.
func lastInWord(word uint64) (uint64, bool) {
	sel := word & 0xF
	width := selectorBits[sel]
	off := 4 + (selectorCapacity[sel]-1)*width
	raw := word >> off & wordMask(width)
	if raw == wordMask(width) {
		return 0, false
	}

	return raw, true
}

// ZigZagEncode64 maps signed deltas onto unsigned values with small
// magnitudes of either sign staying small.
func ZigZagEncode64(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// ZigZagDecode64 reverses ZigZagEncode64.
func ZigZagDecode64(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
