package column

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/errs"
	"github.com/colpack/colpack/simple8b"
)

// Reopen rebuilds a live Builder from a finalized column binary so that more
// elements can be appended without re-encoding the whole stream. Finalize
// packed the trailing pending values into simple8b words; Reopen lifts them
// back out into pending state and keeps every byte before that point as-is,
// so continuing to append produces the same binary a single uninterrupted
// builder would have. Binaries with interleaved regions are decoded and
// re-appended instead, which yields an equivalent continuation.
func Reopen(data []byte, opts ...Option) (*Builder, error) {
	b := NewBuilder(opts...)

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty column binary", errs.ErrUnexpectedEOF)
	}

	var sc reopenScan
	ok, err := sc.scan(data)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Undoing the merge of interleaved leaf streams is not worth the
		// complexity. Decode everything and append it to a fresh builder.
		dec := NewDecoder(data)
		for el := range dec.All() {
			b.Append(el)
		}
		if err := dec.Err(); err != nil {
			return nil, err
		}

		return b, nil
	}

	// A binary ending in an uncompressed element re-initializes by keeping
	// everything before the element and appending it again.
	if sc.current.offset < 0 {
		if sc.st.literal.IsMissing() {
			return b, nil
		}
		b.stream.b = append(b.stream.b, data[:sc.literalStart]...)
		b.Append(sc.st.literal)

		return b, nil
	}

	if uses128(sc.st.literal.Type()) {
		err = b.reopen128(data, &sc)
	} else {
		err = b.reopen64(data, &sc)
	}
	if err != nil {
		return nil, err
	}

	return b, nil
}

// controlBlockInfo remembers one scanned control region. offset is -1 when
// the region does not exist, such as right after a literal.
type controlBlockInfo struct {
	offset           int
	scaleIndex       int
	lastAtEndOfBlock float64
}

// reopenScan accumulates decode state across one pass over the binary: the
// last literal and its canonical encoding, the running accumulators, and the
// two most recent control regions. Everything the rebuild needs.
type reopenScan struct {
	st               decodeState
	enc64            int64
	enc128           simple8b.Uint128
	unencodable      bool
	lastNonZeroDelta simple8b.Uint128
	literalStart     int

	current controlBlockInfo
	last    controlBlockInfo
}

// scan walks the whole binary once, decoding deltas into accumulators
// without materializing elements. Returns false when an interleaved region
// makes the fast rebuild impossible.
func (sc *reopenScan) scan(data []byte) (bool, error) {
	sc.st = newDecodeState()
	sc.current.offset = noControlOffset
	sc.last.offset = noControlOffset

	pos := 0
	for pos < len(data) {
		c := data[pos]

		if c == 0 {
			// Unencodable string literals allow non-zero deltas to follow. A
			// zero delta then repeats the accumulator, not the literal, so
			// adjust the encoding the rebuild compares against.
			if sc.unencodable && !sc.lastNonZeroDelta.IsZero() {
				sc.enc128 = sc.lastNonZeroDelta
			}

			return true, nil
		}

		if isInterleavedStart(c) {
			return false, nil
		}

		sc.last = sc.current

		if isLiteralControl(c) {
			el, n, err := element.ReadElement(data[pos:])
			if err != nil {
				return false, err
			}
			sc.st.setLiteral(el)
			sc.literalStart = pos
			sc.current.offset = noControlOffset
			sc.last.offset = noControlOffset
			sc.unencodable = false
			sc.lastNonZeroDelta = simple8b.Uint128{}

			t := el.Type()
			if uses128(t) {
				sc.enc128 = sc.st.last128
				switch t {
				case element.TypeString, element.TypeCode, element.TypeSymbol:
					sc.unencodable = !sc.st.hasEncoding
				}
			} else {
				sc.enc64 = sc.st.last
				if t == element.TypeDouble {
					sc.current.lastAtEndOfBlock = el.Double()
				}
			}

			pos += n

			continue
		}

		scale := scaleForControl(c)
		if scale < 0 {
			return false, fmt.Errorf("%w: 0x%02x", errs.ErrInvalidControlByte, c)
		}
		size := 1 + blocksForControl(c)*8
		if pos+size > len(data) {
			return false, fmt.Errorf("%w: control region needs %d bytes", errs.ErrUnexpectedEOF, size)
		}
		words := data[pos+1 : pos+size]

		var err error
		if uses128(sc.st.literal.Type()) {
			err = sc.scan128(words, scale)
		} else {
			err = sc.scan64(words, scale)
		}
		if err != nil {
			return false, err
		}

		sc.current.offset = pos
		pos += size
	}

	return false, fmt.Errorf("%w: missing stream terminator", errs.ErrUnexpectedEOF)
}

func (sc *reopenScan) scan64(words []byte, scale int) error {
	t := sc.st.literal.Type()
	if scale != memoryAsInteger && t != element.TypeDouble {
		return fmt.Errorf("%w: scale marker on %v stream", errs.ErrInvalidControlByte, t)
	}

	if t == element.TypeMissing {
		// Holes may pack before any literal; values cannot.
		sc.current.scaleIndex = scale

		return simple8b.Visit64(words, &sc.st.lastNonRLE, func(_ uint64, ok bool) error {
			if ok {
				return fmt.Errorf("%w: value delta before any literal", errs.ErrInvalidBinary)
			}

			return nil
		})
	}

	if t == element.TypeDouble {
		enc, ok := encodeDoubleAt(sc.current.lastAtEndOfBlock, scale)
		if !ok {
			return fmt.Errorf("%w: %v not representable at scale %d", errs.ErrInvalidBinary, sc.current.lastAtEndOfBlock, scale)
		}
		sc.st.last = enc
		sc.st.scale = scale
	}

	switch {
	case usesDeltaOfDelta(t):
		sum, err := simple8b.PrefixSum64(words, &sc.st.lastDelta, &sc.st.lastNonRLE)
		if err != nil {
			return err
		}
		sc.st.last += sum
	case onlyZeroDelta64(t):
		err := simple8b.Visit64(words, &sc.st.lastNonRLE, func(v uint64, ok bool) error {
			if ok && simple8b.ZigZagDecode64(v) != 0 {
				return fmt.Errorf("%w: non-zero delta on %v stream", errs.ErrInvalidBinary, t)
			}

			return nil
		})
		if err != nil {
			return err
		}
	default:
		sum, err := simple8b.Sum64(words, &sc.st.lastNonRLE)
		if err != nil {
			return err
		}
		sc.st.last += sum
		if t == element.TypeDouble {
			sc.current.lastAtEndOfBlock = decodeDoubleAt(sc.st.last, scale)
		}
	}

	sc.current.scaleIndex = scale

	return nil
}

func (sc *reopenScan) scan128(words []byte, scale int) error {
	t := sc.st.literal.Type()
	if scale != memoryAsInteger {
		return fmt.Errorf("%w: scale marker on %v stream", errs.ErrInvalidControlByte, t)
	}

	zeroOnly := false
	if t == element.TypeBinary {
		_, payload := sc.st.literal.Binary()
		zeroOnly = len(payload) > 16
	}

	switch {
	case zeroOnly:
		return simple8b.Visit128(words, &sc.st.lastNonRLE, func(v simple8b.Uint128, ok bool) error {
			if ok && !v.UnZigZag().IsZero() {
				return fmt.Errorf("%w: non-zero delta on %v stream", errs.ErrInvalidBinary, t)
			}

			return nil
		})
	case sc.unencodable:
		// The accumulator restarts from zero at the first non-zero delta, so
		// the last non-zero delta has to be remembered alongside the sum.
		return simple8b.Visit128(words, &sc.st.lastNonRLE, func(v simple8b.Uint128, ok bool) error {
			if !ok {
				return nil
			}
			delta := v.UnZigZag()
			if !delta.IsZero() {
				sc.lastNonZeroDelta = delta
			}
			sc.st.last128 = sc.st.last128.Add(delta)

			return nil
		})
	default:
		sum, err := simple8b.Sum128(words, &sc.st.lastNonRLE)
		if err != nil {
			return err
		}
		sc.st.last128 = sc.st.last128.Add(sum)

		return nil
	}
}

// rleBasis64 is the value a run-length word repeats: a value, or a hole when
// ok is false.
type rleBasis64 struct {
	val uint64
	ok  bool
}

func (r rleBasis64) word() uint64 {
	if !r.ok {
		return simple8b.SingleSkipWord
	}

	return simple8b.SingleValueWord(r.val)
}

type rleBasis128 struct {
	val simple8b.Uint128
	ok  bool
}

func (r rleBasis128) word() uint64 {
	if !r.ok {
		return simple8b.SingleSkipWord
	}

	// Packed values never exceed 60 bits, so the high half is zero.
	return simple8b.SingleValueWord(r.val.Lo)
}

func setBasis64(b *simple8b.Builder64, v rleBasis64) {
	if v.ok {
		b.SetLastForRLE(v.val)
	} else {
		b.SetLastForRLESkip()
	}
}

func setBasis128(b *simple8b.Builder128, v rleBasis128) {
	if v.ok {
		b.SetLastForRLE(v.val)
	} else {
		b.SetLastForRLESkip()
	}
}

// errStopVisit aborts a word visit early once the caller saw enough slots.
var errStopVisit = errors.New("stop visit")

// reopen64 undoes the final flush of a 64-bit domain stream. Values are
// replayed backwards block by block into a throwaway builder until it packs
// a word; that block is the overflow point, and every value after it goes
// back into pending state on the live builder.
func (b *Builder) reopen64(data []byte, sc *reopenScan) error {
	t := sc.st.literal.Type()
	enc := &b.regular.enc64
	enc.scaleIndex = sc.current.scaleIndex

	control := sc.current.offset
	extraS8b := -1
	overflow := false
	var detector simple8b.Builder64

	currNumBlocks := blocksForControl(data[control])
	rle := simple8b.IsRLE(binary.LittleEndian.Uint64(data[control+1+8*(currNumBlocks-1):]))

	var basis rleBasis64
	var currIndex int
	pendingRle := -1
	var err error
	if rle {
		// The trailing run-length words undo entirely; the overflow point is
		// the closest base word.
		basis, currIndex, err = appendUntilOverflowForRLE64(&enc.bits, &overflow, data, control, currNumBlocks-2)
	} else {
		// Assume the values before the search range repeat the value closest
		// to it, which holds whenever a trailing run could resume. The
		// builder resets the basis itself if the assumption turns out wrong.
		basis, err = setupOverflowDetector64(&detector, data, control, currNumBlocks-1)
		if err == nil {
			currIndex, pendingRle, err = appendUntilOverflow64(&detector, &enc.bits, &overflow, basis, data, control, currNumBlocks-1)
		}
	}
	if err != nil {
		return err
	}

	// A run-length word with nothing before it repeats zero.
	if !overflow && sc.last.offset < 0 && pendingRle != -1 {
		basis = rleBasis64{ok: true}
	}

	doubleRescale := false
	if !overflow && sc.last.offset >= 0 {
		lastControl := sc.last.offset
		blocks := blocksForControl(data[lastControl])
		overflowIndex := 0
		resumeCurrent := false

		if sc.current.scaleIndex == sc.last.scaleIndex {
			switch {
			case rle:
				basis, overflowIndex, err = appendUntilOverflowForRLE64(&enc.bits, &overflow, data, lastControl, blocks-1)
			case pendingRle != -1:
				// A pending run-length word needs its basis resolved here to
				// know whether the overflow sits before or inside it.
				var beforeRLE rleBasis64
				var rleIndex int
				beforeRLE, rleIndex, err = appendUntilOverflowForRLE64(&enc.bits, &overflow, data, lastControl, blocks-1)
				if beforeRLE == basis {
					overflowIndex = rleIndex
				} else {
					currIndex = pendingRle
					resumeCurrent = true
					// Both regions can run out of base words. Keep the
					// run-length block written instead of dropping its values.
					if !overflow {
						overflow = true
						basis = beforeRLE
						setBasis64(&enc.bits, beforeRLE)
					}
				}
			default:
				overflowIndex, pendingRle, err = appendUntilOverflow64(&detector, &enc.bits, &overflow, basis, data, lastControl, blocks-1)
			}
			if err != nil {
				return err
			}
		} else {
			// Different scales never share pending values; just pick up the
			// repeat basis from the final block.
			overflowIndex = blocks - 1
			var last rleBasis64
			last, err = lastValueInBlock64(data, lastControl, overflowIndex)
			if err != nil {
				return err
			}
			setBasis64(&enc.bits, last)
		}

		if !resumeCurrent {
			if overflowIndex == blocks-1 {
				// Overflow in the final block of the older region means
				// nothing there needs rewriting. For rescaled doubles a
				// partially filled region may still absorb pending values if
				// the first one fits the old scale.
				if blocks != maxBlocksPerControl && sc.current.scaleIndex != sc.last.scaleIndex {
					possible, perr := rescaleAcrossControls(data, control, currNumBlocks, basis, sc)
					if perr != nil {
						return perr
					}
					doubleRescale = possible
				}
				overflow = false
			} else {
				extraS8b = control
				control = lastControl
				currNumBlocks = blocks
				currIndex = overflowIndex
			}
		}
	}

	// The bit packer drains its whole pending buffer whenever a word closes,
	// so the values still pending at finalize are exactly the suffix whose
	// re-drain writes the trailing words back unchanged. The overflow search
	// only proves the lifted values fit together; a word boundary among them
	// may still be a committed drain point, for instance a hole word next to
	// a narrow value word that one pending buffer would have packed as one.
	// Keep such words written and move the boundary forward until the lifted
	// suffix re-drains to itself.
	for {
		ranges := pendingWordRanges(data, control, currNumBlocks, currIndex, extraS8b)
		if len(ranges) == 0 || drainReproduces64(&enc.bits, data, ranges, basis.word()) {
			break
		}

		if currIndex+1 >= currNumBlocks {
			control, extraS8b = extraS8b, -1
			currNumBlocks = blocksForControl(data[control])
			currIndex = -1
		}
		currIndex++
		overflow = true
		doubleRescale = false

		basis, err = keptWordBasis64(data, control, currIndex, basis)
		if err != nil {
			return err
		}
		setBasis64(&enc.bits, basis)
	}

	// Lay down the retained prefix. On overflow the open control region
	// keeps the words before the overflow point and its count shrinks to
	// match; the remaining values re-enter pending state below.
	if !overflow {
		b.stream.b = append(b.stream.b, data[:control]...)
		if doubleRescale {
			b.regular.ctrlOffset = sc.last.offset
		}
	} else {
		head := control + 1 + 8*(currIndex+1)
		b.stream.b = append(b.stream.b, data[:head]...)
		b.regular.ctrlOffset = control
		b.stream.b[control] = scaleMarkers[enc.scaleIndex] | byte(currIndex)&countMask
	}

	appendPending := func(words []byte, lastNonRLE *uint64) error {
		return simple8b.Visit64(words, lastNonRLE, func(v uint64, present bool) error {
			if !present {
				enc.skip(t, &b.stream, &b.regular)

				return nil
			}
			if !enc.append(t, v, &b.stream, &b.regular) {
				return fmt.Errorf("%w: pending value too wide", errs.ErrInvalidBinary)
			}

			return nil
		})
	}

	w := basis.word()
	start := control + 1 + 8*(currIndex+1)
	end := control + 1 + 8*currNumBlocks
	if err := appendPending(data[start:end], &w); err != nil {
		return err
	}
	if extraS8b >= 0 {
		ex := extraS8b + 1
		if err := appendPending(data[ex:ex+8*blocksForControl(data[extraS8b])], &w); err != nil {
			return err
		}
	}

	enc.bits.ResetLastForRLEIfNeeded()

	// Restore the delta baseline from the accumulators. A value equal to the
	// last literal reuses it; doubles always re-materialize because the
	// scale may have moved since.
	prev := sc.st.literal
	dod := usesDeltaOfDelta(t)
	if !prev.IsMissing() && (dod || t == element.TypeDouble || sc.st.last != sc.enc64) {
		prev = sc.st.materialize64(t)
	}
	b.regular.storePrevious(prev)

	if dod {
		if t == element.TypeUID {
			enc.prevEncoded = sc.st.last
		}
		enc.prevDelta = sc.st.lastDelta
	} else if t == element.TypeDouble {
		enc.prevEncoded = sc.st.last

		// Walk the pending deltas backwards to the last value that is still
		// inside a written block, the baseline rescaling resumes from.
		cur := enc.prevEncoded
		for delta, ok := range enc.bits.PendingReverse() {
			if ok {
				cur -= simple8b.ZigZagDecode64(delta)
			}
		}
		enc.lastInPrevBlock = decodeDoubleAt(cur, enc.scaleIndex)
	}

	return nil
}

// reopen128 is reopen64 for the 128-bit domain, which has no scales and so
// none of the double rescale handling.
func (b *Builder) reopen128(data []byte, sc *reopenScan) error {
	t := sc.st.literal.Type()
	b.regular.is128 = true
	enc := &b.regular.enc128

	control := sc.current.offset
	extraS8b := -1
	overflow := false
	var detector simple8b.Builder128

	currNumBlocks := blocksForControl(data[control])
	rle := simple8b.IsRLE(binary.LittleEndian.Uint64(data[control+1+8*(currNumBlocks-1):]))

	var basis rleBasis128
	var currIndex int
	pendingRle := -1
	var err error
	if rle {
		basis, currIndex, err = appendUntilOverflowForRLE128(&enc.bits, &overflow, data, control, currNumBlocks-2)
	} else {
		basis, err = setupOverflowDetector128(&detector, data, control, currNumBlocks-1)
		if err == nil {
			currIndex, pendingRle, err = appendUntilOverflow128(&detector, &enc.bits, &overflow, basis, data, control, currNumBlocks-1)
		}
	}
	if err != nil {
		return err
	}

	if !overflow && sc.last.offset < 0 && pendingRle != -1 {
		basis = rleBasis128{ok: true}
	}

	if !overflow && sc.last.offset >= 0 {
		lastControl := sc.last.offset
		blocks := blocksForControl(data[lastControl])
		overflowIndex := 0
		resumeCurrent := false

		switch {
		case rle:
			basis, overflowIndex, err = appendUntilOverflowForRLE128(&enc.bits, &overflow, data, lastControl, blocks-1)
		case pendingRle != -1:
			var beforeRLE rleBasis128
			var rleIndex int
			beforeRLE, rleIndex, err = appendUntilOverflowForRLE128(&enc.bits, &overflow, data, lastControl, blocks-1)
			if beforeRLE == basis {
				overflowIndex = rleIndex
			} else {
				currIndex = pendingRle
				resumeCurrent = true
				// Both regions can run out of base words. Keep the
				// run-length block written instead of dropping its values.
				if !overflow {
					overflow = true
					basis = beforeRLE
					setBasis128(&enc.bits, beforeRLE)
				}
			}
		default:
			overflowIndex, pendingRle, err = appendUntilOverflow128(&detector, &enc.bits, &overflow, basis, data, lastControl, blocks-1)
		}
		if err != nil {
			return err
		}

		if !resumeCurrent {
			if overflowIndex == blocks-1 {
				overflow = false
			} else {
				extraS8b = control
				control = lastControl
				currNumBlocks = blocks
				currIndex = overflowIndex
			}
		}
	}

	// Same drain-point refinement as the 64-bit domain: a lifted word
	// boundary must be one the final flush could have produced.
	for {
		ranges := pendingWordRanges(data, control, currNumBlocks, currIndex, extraS8b)
		if len(ranges) == 0 || drainReproduces128(&enc.bits, data, ranges, basis.word()) {
			break
		}

		if currIndex+1 >= currNumBlocks {
			control, extraS8b = extraS8b, -1
			currNumBlocks = blocksForControl(data[control])
			currIndex = -1
		}
		currIndex++
		overflow = true

		basis, err = keptWordBasis128(data, control, currIndex, basis)
		if err != nil {
			return err
		}
		setBasis128(&enc.bits, basis)
	}

	if !overflow {
		b.stream.b = append(b.stream.b, data[:control]...)
	} else {
		head := control + 1 + 8*(currIndex+1)
		b.stream.b = append(b.stream.b, data[:head]...)
		b.regular.ctrlOffset = control
		b.stream.b[control] = scaleMarkers[memoryAsInteger] | byte(currIndex)&countMask
	}

	appendPending := func(words []byte, lastNonRLE *uint64) error {
		return simple8b.Visit128(words, lastNonRLE, func(v simple8b.Uint128, present bool) error {
			if !present {
				enc.skip(t, &b.stream, &b.regular)

				return nil
			}
			if !enc.append(t, v, &b.stream, &b.regular) {
				return fmt.Errorf("%w: pending value too wide", errs.ErrInvalidBinary)
			}

			return nil
		})
	}

	w := basis.word()
	start := control + 1 + 8*(currIndex+1)
	end := control + 1 + 8*currNumBlocks
	if err := appendPending(data[start:end], &w); err != nil {
		return err
	}
	if extraS8b >= 0 {
		ex := extraS8b + 1
		if err := appendPending(data[ex:ex+8*blocksForControl(data[extraS8b])], &w); err != nil {
			return err
		}
	}

	enc.bits.ResetLastForRLEIfNeeded()

	// A matching accumulator reuses the literal, unless the literal has no
	// canonical encoding and a delta restarted the accumulator since.
	prev := sc.st.literal
	if sc.st.last128 != sc.enc128 || (sc.unencodable && !sc.enc128.IsZero()) {
		prev = sc.st.materialize128(t)
	}
	b.regular.storePrevious(prev)
	enc.initialize(b.regular.prevEl)

	return nil
}

// rescaleAcrossControls probes whether the first pending value fits the
// older region's scale, the condition for resuming that region instead of
// opening a new one.
func rescaleAcrossControls(data []byte, control, currNumBlocks int, basis rleBasis64, sc *reopenScan) (bool, error) {
	enc, ok := encodeDoubleAt(sc.last.lastAtEndOfBlock, sc.current.scaleIndex)
	if !ok {
		return false, nil
	}

	possible := true
	w := basis.word()
	err := simple8b.Visit64(data[control+1:control+1+8*currNumBlocks], &w, func(v uint64, present bool) error {
		if present {
			enc += simple8b.ZigZagDecode64(v)
			if _, ok := encodeDoubleAt(decodeDoubleAt(enc, sc.current.scaleIndex), sc.last.scaleIndex); !ok {
				possible = false
			}
		}

		return errStopVisit
	})
	if err != nil && !errors.Is(err, errStopVisit) {
		return false, err
	}

	return possible, nil
}

// pendingWordRanges lists the byte ranges of the words a candidate boundary
// leaves pending: the tail of the boundary's control region, then the whole
// newer region when the search crossed into an older one.
func pendingWordRanges(data []byte, control, currNumBlocks, currIndex, extraS8b int) [][2]int {
	ranges := make([][2]int, 0, 2)
	start := control + 1 + 8*(currIndex+1)
	end := control + 1 + 8*currNumBlocks
	if start < end {
		ranges = append(ranges, [2]int{start, end})
	}
	if extraS8b >= 0 {
		ex := extraS8b + 1
		ranges = append(ranges, [2]int{ex, ex + 8*blocksForControl(data[extraS8b])})
	}

	return ranges
}

// drainReproduces64 reports whether replaying the slots of ranges into a copy
// of bits and flushing writes back exactly the bytes of ranges. The pending
// set the final flush left behind has this property by construction; a
// candidate without it cannot be that pending set.
func drainReproduces64(bits *simple8b.Builder64, data []byte, ranges [][2]int, lookback uint64) bool {
	sim := bits.Clone()
	var got []byte
	write := func(word uint64) { got = binary.LittleEndian.AppendUint64(got, word) }

	want := make([]byte, 0, 64)
	w := lookback
	for _, r := range ranges {
		want = append(want, data[r[0]:r[1]]...)
		err := simple8b.Visit64(data[r[0]:r[1]], &w, func(v uint64, present bool) error {
			if !present {
				sim.Skip(write)
			} else if !sim.Append(v, write) {
				return errStopVisit
			}

			return nil
		})
		if err != nil {
			return false
		}
	}
	sim.Flush(write)

	return bytes.Equal(got, want)
}

func drainReproduces128(bits *simple8b.Builder128, data []byte, ranges [][2]int, lookback uint64) bool {
	sim := bits.Clone()
	var got []byte
	write := func(word uint64) { got = binary.LittleEndian.AppendUint64(got, word) }

	want := make([]byte, 0, 64)
	w := lookback
	for _, r := range ranges {
		want = append(want, data[r[0]:r[1]]...)
		err := simple8b.Visit128(data[r[0]:r[1]], &w, func(v simple8b.Uint128, present bool) error {
			if !present {
				sim.Skip(write)
			} else if !sim.Append(v, write) {
				return errStopVisit
			}

			return nil
		})
		if err != nil {
			return false
		}
	}
	sim.Flush(write)

	return bytes.Equal(got, want)
}

// keptWordBasis64 folds the newly kept word at index into the repeat basis.
// The lookback threads through so a run-length word resolves to the value it
// repeats.
func keptWordBasis64(data []byte, control, index int, prev rleBasis64) (rleBasis64, error) {
	off := control + 1 + 8*index
	last := prev
	w := prev.word()
	err := simple8b.Visit64(data[off:off+8], &w, func(v uint64, present bool) error {
		if present {
			last = rleBasis64{val: v, ok: true}
		} else {
			last = rleBasis64{}
		}

		return nil
	})
	if err != nil {
		return rleBasis64{}, err
	}

	return last, nil
}

func keptWordBasis128(data []byte, control, index int, prev rleBasis128) (rleBasis128, error) {
	off := control + 1 + 8*index
	last := prev
	w := prev.word()
	err := simple8b.Visit128(data[off:off+8], &w, func(v simple8b.Uint128, present bool) error {
		if present {
			last = rleBasis128{val: v, ok: true}
		} else {
			last = rleBasis128{}
		}

		return nil
	})
	if err != nil {
		return rleBasis128{}, err
	}

	return last, nil
}

// setupOverflowDetector64 seeds the detector's repeat basis with the nearest
// value before the search range, looking back at most one word's worth of
// holes. Returns the basis it settled on.
func setupOverflowDetector64(detector *simple8b.Builder64, data []byte, control, index int) (rleBasis64, error) {
	const maxSkipLookback = 60

	skips := 0
	for ; index >= 0 && skips < maxSkipLookback; index-- {
		off := control + 1 + 8*index
		if simple8b.IsRLE(binary.LittleEndian.Uint64(data[off:])) {
			// Runs resolve through a different path; stop the lookback.
			break
		}

		var found rleBasis64
		w := simple8b.SingleSkipWord
		err := simple8b.Visit64(data[off:off+8], &w, func(v uint64, present bool) error {
			if present {
				found = rleBasis64{val: v, ok: true}

				return errStopVisit
			}
			skips++
			if skips >= maxSkipLookback {
				return errStopVisit
			}

			return nil
		})
		if err != nil && !errors.Is(err, errStopVisit) {
			return rleBasis64{}, err
		}
		if found.ok {
			detector.SetLastForRLE(found.val)

			return found, nil
		}
	}

	detector.SetLastForRLESkip()

	return rleBasis64{}, nil
}

func setupOverflowDetector128(detector *simple8b.Builder128, data []byte, control, index int) (rleBasis128, error) {
	const maxSkipLookback = 60

	skips := 0
	for ; index >= 0 && skips < maxSkipLookback; index-- {
		off := control + 1 + 8*index
		if simple8b.IsRLE(binary.LittleEndian.Uint64(data[off:])) {
			break
		}

		var found rleBasis128
		w := simple8b.SingleSkipWord
		err := simple8b.Visit128(data[off:off+8], &w, func(v simple8b.Uint128, present bool) error {
			if present {
				found = rleBasis128{val: v, ok: true}

				return errStopVisit
			}
			skips++
			if skips >= maxSkipLookback {
				return errStopVisit
			}

			return nil
		})
		if err != nil && !errors.Is(err, errStopVisit) {
			return rleBasis128{}, err
		}
		if found.ok {
			detector.SetLastForRLE(found.val)

			return found, nil
		}
	}

	detector.SetLastForRLESkip()

	return rleBasis128{}, nil
}

// appendUntilOverflow64 replays blocks backwards from index into the
// detector until it packs a word. Returns the overflow block index, or -1
// with the index of a run-length word whose basis lives in an older region.
func appendUntilOverflow64(detector, main *simple8b.Builder64, overflow *bool, basis rleBasis64, data []byte, control, index int) (int, int, error) {
	write := func(uint64) { *overflow = true }

	for ; index >= 0; index-- {
		off := control + 1 + 8*index
		if simple8b.IsRLE(binary.LittleEndian.Uint64(data[off:])) {
			// Whether the overflow sits before the run or inside it depends
			// on whether the value the run repeats matches our basis.
			beforeRLE, rleIndex, err := appendUntilOverflowForRLE64(main, overflow, data, control, index-1)
			if err != nil {
				return 0, 0, err
			}
			if beforeRLE == basis {
				return rleIndex, -1, nil
			}
			if rleIndex == -1 {
				return -1, index, nil
			}

			break
		}

		var last rleBasis64
		w := basis.word()
		err := simple8b.Visit64(data[off:off+8], &w, func(v uint64, present bool) error {
			if present {
				last = rleBasis64{val: v, ok: true}
				detector.Append(v, write)
			} else {
				last = rleBasis64{}
				detector.Skip(write)
			}

			return nil
		})
		if err != nil {
			return 0, 0, err
		}

		if *overflow {
			setBasis64(main, last)

			break
		}
	}

	return index, -1, nil
}

func appendUntilOverflow128(detector, main *simple8b.Builder128, overflow *bool, basis rleBasis128, data []byte, control, index int) (int, int, error) {
	write := func(uint64) { *overflow = true }

	for ; index >= 0; index-- {
		off := control + 1 + 8*index
		if simple8b.IsRLE(binary.LittleEndian.Uint64(data[off:])) {
			beforeRLE, rleIndex, err := appendUntilOverflowForRLE128(main, overflow, data, control, index-1)
			if err != nil {
				return 0, 0, err
			}
			if beforeRLE == basis {
				return rleIndex, -1, nil
			}
			if rleIndex == -1 {
				return -1, index, nil
			}

			break
		}

		var last rleBasis128
		w := basis.word()
		err := simple8b.Visit128(data[off:off+8], &w, func(v simple8b.Uint128, present bool) error {
			if present {
				last = rleBasis128{val: v, ok: true}
				detector.Append(v, write)
			} else {
				last = rleBasis128{}
				detector.Skip(write)
			}

			return nil
		})
		if err != nil {
			return 0, 0, err
		}

		if *overflow {
			setBasis128(main, last)

			break
		}
	}

	return index, -1, nil
}

// appendUntilOverflowForRLE64 finds the overflow point when the newer words
// are run-length: the closest base word ends the run, and its final slot is
// both the repeat basis and the overflow point. Exhausting the region
// without a base word returns index -1 and a zero basis.
func appendUntilOverflowForRLE64(main *simple8b.Builder64, overflow *bool, data []byte, control, index int) (rleBasis64, int, error) {
	for ; index >= 0; index-- {
		off := control + 1 + 8*index
		if simple8b.IsRLE(binary.LittleEndian.Uint64(data[off:])) {
			continue
		}

		last, err := lastValueInBlock64(data, control, index)
		if err != nil {
			return rleBasis64{}, 0, err
		}

		setBasis64(main, last)
		*overflow = true

		return last, index, nil
	}

	return rleBasis64{ok: true}, index, nil
}

func appendUntilOverflowForRLE128(main *simple8b.Builder128, overflow *bool, data []byte, control, index int) (rleBasis128, int, error) {
	for ; index >= 0; index-- {
		off := control + 1 + 8*index
		if simple8b.IsRLE(binary.LittleEndian.Uint64(data[off:])) {
			continue
		}

		var last rleBasis128
		w := simple8b.SingleSkipWord
		err := simple8b.Visit128(data[off:off+8], &w, func(v simple8b.Uint128, present bool) error {
			if present {
				last = rleBasis128{val: v, ok: true}
			} else {
				last = rleBasis128{}
			}

			return nil
		})
		if err != nil {
			return rleBasis128{}, 0, err
		}

		setBasis128(main, last)
		*overflow = true

		return last, index, nil
	}

	return rleBasis128{ok: true}, index, nil
}

// lastValueInBlock64 returns the final slot of the block at index.
func lastValueInBlock64(data []byte, control, index int) (rleBasis64, error) {
	off := control + 1 + 8*index

	var last rleBasis64
	w := simple8b.SingleSkipWord
	err := simple8b.Visit64(data[off:off+8], &w, func(v uint64, present bool) error {
		if present {
			last = rleBasis64{val: v, ok: true}
		} else {
			last = rleBasis64{}
		}

		return nil
	})
	if err != nil {
		return rleBasis64{}, err
	}

	return last, nil
}
