package column

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/simple8b"
)

// memoryAsInteger is the scale index that reinterprets the IEEE 754 bits of a
// double as a 64-bit integer. It is the catch-all when no decimal scale can
// reproduce the value exactly.
const memoryAsInteger = 5

// maxIntForDouble bounds the scaled magnitude; above 2^53 float64 loses
// integer precision and the round-trip check becomes meaningless.
const maxIntForDouble = float64(1 << 53)

// scaleMultipliers maps scale indices 0 through 4 to the factor that shifts
// up to eight decimal fraction digits into the integer domain.
var scaleMultipliers = [5]float64{1, 10, 100, 10000, 100000000}

// encodeDoubleAt scales val by the multiplier at idx and returns the integer
// whose delta stream reproduces it. ok is false when the value does not
// survive the round trip at this scale. Index 5 always succeeds.
func encodeDoubleAt(val float64, idx int) (int64, bool) {
	if idx == memoryAsInteger {
		return int64(math.Float64bits(val)), true //nolint: gosec
	}

	mult := scaleMultipliers[idx]
	rounded := math.Round(val * mult)
	if math.IsNaN(rounded) || math.Abs(rounded) > maxIntForDouble {
		return 0, false
	}

	enc := int64(rounded)
	if float64(enc)/mult != val {
		return 0, false
	}
	// Negative zero only survives through the memory representation.
	if enc == 0 && math.Signbit(val) {
		return 0, false
	}

	return enc, true
}

// decodeDoubleAt reverses encodeDoubleAt.
func decodeDoubleAt(enc int64, idx int) float64 {
	if idx == memoryAsInteger {
		return math.Float64frombits(uint64(enc)) //nolint: gosec
	}

	return float64(enc) / scaleMultipliers[idx]
}

// scaleAndEncodeDouble returns the encoding of val at the first scale index
// at or above minIdx that can represent it.
func scaleAndEncodeDouble(val float64, minIdx int) (int64, int) {
	for ; minIdx < memoryAsInteger; minIdx++ {
		if enc, ok := encodeDoubleAt(val, minIdx); ok {
			return enc, minIdx
		}
	}

	enc, _ := encodeDoubleAt(val, memoryAsInteger)

	return enc, memoryAsInteger
}

// encodeString packs a string of at most 16 bytes into an integer with the
// first character in the most significant populated byte, so strings sharing
// a prefix and differing near the end produce small deltas. A leading NUL
// cannot be encoded: the decoded size is derived from the highest set bit and
// would drop it.
func encodeString(s string) (simple8b.Uint128, bool) {
	if len(s) > 16 || (len(s) > 0 && s[0] == 0) {
		return simple8b.Uint128{}, false
	}

	var b [16]byte
	for i := 0; i < len(s); i++ {
		b[len(s)-1-i] = s[i]
	}

	return uint128FromBytes(b), true
}

// decodeString reverses encodeString.
func decodeString(v simple8b.Uint128) string {
	size := (v.BitLen() + 7) / 8

	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], v.Lo)
	binary.LittleEndian.PutUint64(b[8:16], v.Hi)

	out := make([]byte, size)
	for i := range out {
		out[i] = b[size-1-i]
	}

	return string(out)
}

// encodeBinaryValue packs a binary payload of at most 16 bytes into an
// integer as-is. The payload length is not recoverable from the integer;
// decoding takes it from the previous element, which is why binary deltas
// require equal lengths.
func encodeBinaryValue(payload []byte) (simple8b.Uint128, bool) {
	if len(payload) > 16 {
		return simple8b.Uint128{}, false
	}

	var b [16]byte
	copy(b[:], payload)

	return uint128FromBytes(b), true
}

// decodeBinaryValue reverses encodeBinaryValue for a known payload size.
func decodeBinaryValue(v simple8b.Uint128, size int) []byte {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], v.Lo)
	binary.LittleEndian.PutUint64(b[8:16], v.Hi)

	return b[:size]
}

// encodeDecimal128 maps the two value words directly.
func encodeDecimal128(el element.Element) simple8b.Uint128 {
	lo, hi := el.Decimal128()

	return simple8b.Uint128{Lo: lo, Hi: hi}
}

// encodeUID interleaves the counter and timestamp bytes of an identifier so
// identifiers generated close together in time encode close together as
// integers. The five process-unique bytes (4 through 8) are excluded and
// restored from the previous element on decode.
func encodeUID(id [12]byte) int64 {
	var b [8]byte
	b[0] = id[11]
	b[1] = id[3]
	b[2] = id[10]
	b[3] = id[2]
	b[4] = id[9]
	b[5] = id[1]
	b[6] = id[0]

	return int64(binary.LittleEndian.Uint64(b[:])) //nolint: gosec
}

// decodeUID reverses encodeUID, taking the process-unique bytes from the
// previous identifier in the stream.
func decodeUID(enc int64, instanceUnique [5]byte) [12]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(enc)) //nolint: gosec

	var id [12]byte
	id[0] = b[6]
	id[1] = b[5]
	id[2] = b[3]
	id[3] = b[1]
	copy(id[4:9], instanceUnique[:])
	id[9] = b[4]
	id[10] = b[2]
	id[11] = b[0]

	return id
}

// uidDeltaPossible reports whether two identifiers share the process-unique
// bytes, the only part the delta encoding cannot reproduce.
func uidDeltaPossible(a, b [12]byte) bool {
	return bytes.Equal(a[4:9], b[4:9])
}

// uint128FromBytes reads sixteen little-endian bytes.
func uint128FromBytes(b [16]byte) simple8b.Uint128 {
	return simple8b.Uint128{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// uses128 reports whether a type's deltas run through the 128-bit encoder.
func uses128(t element.Type) bool {
	switch t {
	case element.TypeString, element.TypeCode, element.TypeSymbol,
		element.TypeBinary, element.TypeDecimal128:
		return true
	default:
		return false
	}
}

// usesDeltaOfDelta reports whether a type encodes second-order deltas.
func usesDeltaOfDelta(t element.Type) bool {
	switch t {
	case element.TypeDateTime, element.TypeTimestamp, element.TypeUID:
		return true
	default:
		return false
	}
}

// onlyZeroDelta64 reports whether a 64-bit domain type admits nothing but
// zero deltas, so any packed region after its literal repeats that literal.
func onlyZeroDelta64(t element.Type) bool {
	switch t {
	case element.TypeObject, element.TypeArray, element.TypeUndefined,
		element.TypeNull, element.TypeRegex, element.TypeRef,
		element.TypeCodeWithScope:
		return true
	default:
		return false
	}
}

func boolInt(v bool) int64 {
	if v {
		return 1
	}

	return 0
}
