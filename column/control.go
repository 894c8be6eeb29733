package column

import (
	"encoding/binary"

	"github.com/colpack/colpack/simple8b"
)

// Control bytes partition the stream. A byte below 0x20 starts an
// uncompressed literal and doubles as its type tag, with 0x00 terminating the
// column. High nibbles 0x8 through 0xD carry one to sixteen simple8b words,
// the nibble naming the double scale in effect. 0xF1 and 0xF2 open an
// interleaved region rooted at an object or array.
const (
	controlMask = 0xF0
	countMask   = 0x0F

	maxBlocksPerControl = 16

	interleavedStartObject = 0xF1
	interleavedStartArray  = 0xF2

	// noControlOffset marks an encoding state with no open control byte.
	noControlOffset = -1

	// finalizedOffset poisons the builder offset after Finalize.
	finalizedOffset = -1
)

// scaleMarkers maps a scale index to the high nibble of its control byte.
// Index 5 (memory as integer) is also the only marker non-double types use.
var scaleMarkers = [6]byte{0x90, 0xA0, 0xB0, 0xC0, 0xD0, 0x80}

// scaleForControl returns the scale index a simple8b control byte names, or
// -1 for bytes outside the packed range.
func scaleForControl(b byte) int {
	switch b & controlMask {
	case 0x90:
		return 0
	case 0xA0:
		return 1
	case 0xB0:
		return 2
	case 0xC0:
		return 3
	case 0xD0:
		return 4
	case 0x80:
		return memoryAsInteger
	default:
		return -1
	}
}

// isLiteralControl reports whether b starts an uncompressed literal. The
// terminator 0x00 is not a literal.
func isLiteralControl(b byte) bool {
	return b > 0 && b < 0x20
}

// isInterleavedStart reports whether b opens an interleaved region.
func isInterleavedStart(b byte) bool {
	return b == interleavedStartObject || b == interleavedStartArray
}

// blocksForControl returns the number of eight-byte words that follow a
// simple8b control byte.
func blocksForControl(b byte) int {
	return int(b&countMask) + 1
}

// numElemsForControl counts the elements covered by the control region at
// the front of data: one for a literal, the summed slot count (values and
// holes) for a packed region. The interleaved merge uses it to order regions
// the way the decoder consumes them.
func numElemsForControl(data []byte) int {
	if isLiteralControl(data[0]) {
		return 1
	}

	n := 0
	for i := range blocksForControl(data[0]) {
		// The words were produced by our own builder, so the reserved
		// selector cannot occur.
		count, _ := simple8b.CountValues(binary.LittleEndian.Uint64(data[1+i*8:]))
		n += count
	}

	return n
}
