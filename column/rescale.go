package column

import (
	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/simple8b"
)

// appendDouble encodes the delta between two doubles. A value needing a
// different scale first tries to rebuild the pending deltas in place at that
// scale and otherwise flushes them; a flushed block resets the scale search
// to zero against the value at the end of the block and re-appends the
// remaining pending values at the coarser scale.
func (e *encoder64) appendDouble(value, previous float64, dst *stream, s *encodingState) bool {
	enc, scale := scaleAndEncodeDouble(value, e.scaleIndex)

	if scale != e.scaleIndex {
		if rescaled, ok := e.tryRescalePending(enc, scale); ok {
			e.bits = rescaled
			e.prevEncoded = enc
			e.scaleIndex = scale

			return true
		}

		// Pending deltas cannot move to the new scale. Flush them, seal the
		// region and align previous and value on one scale. Two passes
		// always align: a value rejected above its own scale is rejected for
		// magnitude, and the memory scale accepts anything.
		e.bits.Flush(e.writer(element.TypeDouble, dst, s))
		if s.ctrlOffset != noControlOffset {
			dst.emitControl(s.ctrlOffset, dst.len()-s.ctrlOffset)
			s.ctrlOffset = noControlOffset
		}

		var prevScale int
		e.prevEncoded, prevScale = scaleAndEncodeDouble(previous, scale)
		if scale != prevScale {
			enc, scale = scaleAndEncodeDouble(value, prevScale)
			e.prevEncoded, _ = scaleAndEncodeDouble(previous, scale)
		}
		e.scaleIndex = scale
	}

	before := dst.len()
	if !e.append(element.TypeDouble, simple8b.ZigZagEncode64(enc-e.prevEncoded), dst, s) {
		return false
	}
	if dst.len() == before {
		e.prevEncoded = enc

		return true
	}

	// A block was flushed. The scale baseline resets to the last value that
	// made it into a block; rebuild the remaining pending deltas against it,
	// each at the lowest scale that holds it.
	prevScale := e.scaleIndex
	e.prevEncoded, e.scaleIndex = scaleAndEncodeDouble(e.lastInPrevBlock, 0)

	old := e.bits
	e.bits = simple8b.Builder64{}
	e.bits.InitializeRLEFrom(&old)

	// Re-encoding the block baseline at its own scale cannot fail.
	replayEncoded, _ := encodeDoubleAt(e.lastInPrevBlock, prevScale)
	replayValue := e.lastInPrevBlock

	for delta, ok := range old.Pending() {
		if !ok {
			e.skip(element.TypeDouble, dst, s)
			continue
		}

		replayEncoded += simple8b.ZigZagDecode64(delta)
		val := decodeDoubleAt(replayEncoded, prevScale)
		e.appendDouble(val, replayValue, dst, s)
		replayValue = val
	}

	return true
}

// tryRescalePending rebuilds the pending deltas at a new scale in a scratch
// builder. Any word flushed during the rebuild means the rescaled deltas no
// longer fit the same block, so the attempt is abandoned; the final delta is
// always non-zero, leaving the returned builder with pending values and its
// run state coherent.
func (e *encoder64) tryRescalePending(encoded int64, newScale int) (simple8b.Builder64, bool) {
	// Re-encoding the block baseline at its own scale cannot fail.
	prev, _ := encodeDoubleAt(e.lastInPrevBlock, e.scaleIndex)
	prevRescaled, ok := encodeDoubleAt(e.lastInPrevBlock, newScale)
	if !ok {
		return simple8b.Builder64{}, false
	}

	var overflowed bool
	markOverflow := func(uint64) { overflowed = true }

	var rescaled simple8b.Builder64
	for delta, present := range e.bits.Pending() {
		if !present {
			rescaled.Skip(markOverflow)
			continue
		}

		prev += simple8b.ZigZagDecode64(delta)
		enc, ok := encodeDoubleAt(decodeDoubleAt(prev, e.scaleIndex), newScale)
		if !ok {
			return simple8b.Builder64{}, false
		}
		if !rescaled.Append(simple8b.ZigZagEncode64(enc-prevRescaled), markOverflow) || overflowed {
			return simple8b.Builder64{}, false
		}
		prevRescaled = enc
	}

	// The delta that triggered the rescale must fit the same block as well.
	if !rescaled.Append(simple8b.ZigZagEncode64(encoded-prevRescaled), markOverflow) || overflowed {
		return simple8b.Builder64{}, false
	}

	return rescaled, true
}
