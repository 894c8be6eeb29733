package column

import (
	"encoding/binary"

	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/simple8b"
)

// stream is the byte buffer an encoding state writes into, together with the
// callback receiving sealed control regions as (offset, size) pairs.
// Interleaved mode gives every leaf a private stream and stitches the
// recorded regions together afterwards; regular mode writes straight into
// the builder's buffer and leaves onControl nil.
type stream struct {
	b         []byte
	onControl func(offset, size int)
}

func (s *stream) len() int {
	return len(s.b)
}

func (s *stream) append(p []byte) {
	s.b = append(s.b, p...)
}

func (s *stream) appendByte(c byte) {
	s.b = append(s.b, c)
}

func (s *stream) emitControl(offset, size int) {
	if s.onControl != nil {
		s.onControl(offset, size)
	}
}

// encodingState compresses one logical value stream: the previous element in
// literal form, the offset of the control byte currently being filled and
// the delta encoder for the previous element's integer domain.
type encodingState struct {
	prev   []byte          // previous element as tag, NUL, value; reused across appends
	prevEl element.Element // parsed view into prev

	ctrlOffset int // open control byte offset, noControlOffset when closed

	is128  bool
	enc64  encoder64
	enc128 encoder128
}

func newEncodingState() encodingState {
	s := encodingState{ctrlOffset: noControlOffset, enc64: newEncoder64()}
	s.storePrevious(element.Missing())

	return s
}

// append adds an element to the stream, as a delta when the previous element
// shares its type and as an uncompressed literal otherwise.
func (s *encodingState) append(el element.Element, dst *stream) {
	prev := s.prevEl

	if prev.Type() != el.Type() {
		// Type changed. Flush pending deltas of the old run, emit the new
		// value as a literal and restart delta state from it.
		s.storePrevious(el)
		s.flushBits(el.Type(), dst)
		s.writeLiteralFromPrevious(dst)

		return
	}

	s.appendDelta(el, prev, dst)
}

// appendDelta encodes el against prev, falling back to a literal when the
// pair has no delta representation.
func (s *encodingState) appendDelta(el, prev element.Element, dst *stream) {
	t := el.Type()

	var ok bool
	if el.Equal(prev) && !usesDeltaOfDelta(t) {
		// Repeats become zero deltas for every type, including the
		// never-encodable ones.
		ok = s.appendZero(t, dst)
	} else if s.is128 {
		ok = s.enc128.appendDelta(el, prev, dst, s)
	} else {
		ok = s.enc64.appendDelta(el, prev, dst, s)
	}

	s.storePrevious(el)

	if !ok {
		s.flushBits(t, dst)
		s.writeLiteralFromPrevious(dst)
	}
}

// skip records a hole in the stream.
func (s *encodingState) skip(dst *stream) {
	t := s.prevEl.Type()
	before := dst.len()

	if s.is128 {
		s.enc128.skip(t, dst, s)
	} else {
		s.enc64.skip(t, dst, s)
	}

	// A flushed block resets the double scaling baseline.
	if dst.len() != before && t == element.TypeDouble {
		s.enc64.prevEncoded, s.enc64.scaleIndex = scaleAndEncodeDouble(s.enc64.lastInPrevBlock, 0)
	}
}

// flush drains pending deltas and reports the trailing open control region.
// The control offset stays open so further appends can extend the region;
// incremental emission depends on resuming it.
func (s *encodingState) flush(dst *stream) {
	s.flushBits(s.prevEl.Type(), dst)

	if s.ctrlOffset != noControlOffset {
		dst.emitControl(s.ctrlOffset, dst.len()-s.ctrlOffset)
	}
}

func (s *encodingState) appendZero(t element.Type, dst *stream) bool {
	if s.is128 {
		return s.enc128.append(t, simple8b.Uint128{}, dst, s)
	}

	return s.enc64.append(t, 0, dst, s)
}

func (s *encodingState) flushBits(t element.Type, dst *stream) {
	if s.is128 {
		s.enc128.flush(t, dst, s)
	} else {
		s.enc64.flush(t, dst, s)
	}
}

// storePrevious copies el into the state's literal buffer.
func (s *encodingState) storePrevious(el element.Element) {
	s.prev = el.AppendLiteralTo(s.prev[:0])
	s.prevEl = mustReadLiteral(s.prev)
}

// writeLiteralFromPrevious seals the open control region, emits the stored
// element uncompressed and resets delta state to it. The literal is reported
// as its own one-element control region for the interleaved merge.
func (s *encodingState) writeLiteralFromPrevious(dst *stream) {
	if s.ctrlOffset != noControlOffset {
		dst.emitControl(s.ctrlOffset, dst.len()-s.ctrlOffset)
	}

	off := dst.len()
	dst.append(s.prev)
	dst.emitControl(off, len(s.prev))

	s.ctrlOffset = noControlOffset
	s.initializeFromPrevious()
}

// clone returns a deep copy whose buffers evolve independently of s.
func (s *encodingState) clone() encodingState {
	c := *s
	c.prev = append([]byte(nil), s.prev...)
	c.prevEl = mustReadLiteral(c.prev)
	c.enc64.bits = s.enc64.bits.Clone()
	c.enc128.bits = s.enc128.bits.Clone()

	return c
}

// initializeFromPrevious resets the encoder for the stored element's domain
// and seeds its encoding baseline.
func (s *encodingState) initializeFromPrevious() {
	s.is128 = uses128(s.prevEl.Type())
	if s.is128 {
		s.enc128 = encoder128{}
		s.enc128.initialize(s.prevEl)
	} else {
		s.enc64 = newEncoder64()
		s.enc64.initialize(s.prevEl)
	}
}

// bumpControl increments the word count of the open control byte, opening a
// fresh one when none is open or when the scale marker changed. When the
// count reaches the maximum it returns the control offset so the caller can
// report the sealed region once the final word lands; otherwise -1.
func (s *encodingState) bumpControl(dst *stream, marker byte) int {
	var count byte
	if s.ctrlOffset == noControlOffset {
		s.ctrlOffset = dst.len()
		dst.appendByte(0)
	} else {
		if dst.b[s.ctrlOffset]&controlMask != marker {
			// Scale changed mid-region: seal it and start a new one.
			dst.emitControl(s.ctrlOffset, dst.len()-s.ctrlOffset)
			s.ctrlOffset = noControlOffset

			return s.bumpControl(dst, marker)
		}
		count = dst.b[s.ctrlOffset]&countMask + 1
	}

	dst.b[s.ctrlOffset] = marker | count
	if count+1 == maxBlocksPerControl {
		sealed := s.ctrlOffset
		s.ctrlOffset = noControlOffset

		return sealed
	}

	return noControlOffset
}

// encoder64 packs 64-bit domain deltas.
type encoder64 struct {
	bits simple8b.Builder64

	prevEncoded     int64
	prevDelta       int64
	scaleIndex      int
	lastInPrevBlock float64
}

func newEncoder64() encoder64 {
	return encoder64{scaleIndex: memoryAsInteger}
}

// initialize seeds the encoding baseline for types that encode against a
// derived integer rather than their own value bytes.
func (e *encoder64) initialize(el element.Element) {
	switch el.Type() {
	case element.TypeDouble:
		e.lastInPrevBlock = el.Double()
		e.prevEncoded, e.scaleIndex = scaleAndEncodeDouble(el.Double(), 0)
	case element.TypeUID:
		e.prevEncoded = encodeUID(el.UID())
	}
}

// appendDelta computes the wire delta for el against prev and packs it.
// Returns false when the pair is not delta-encodable.
func (e *encoder64) appendDelta(el, prev element.Element, dst *stream, s *encodingState) bool {
	t := el.Type()

	var delta int64
	switch t {
	case element.TypeDouble:
		return e.appendDouble(el.Double(), prev.Double(), dst, s)
	case element.TypeInt32:
		delta = int64(el.Int32()) - int64(prev.Int32())
	case element.TypeInt64:
		delta = el.Int64() - prev.Int64()
	case element.TypeUID:
		cur, prv := el.UID(), prev.UID()
		if !uidDeltaPossible(cur, prv) {
			return false
		}
		enc := encodeUID(cur)
		delta = enc - e.prevEncoded
		e.prevEncoded = enc
	case element.TypeDateTime:
		delta = el.DateTime() - prev.DateTime()
	case element.TypeBool:
		delta = boolInt(el.Bool()) - boolInt(prev.Bool())
	case element.TypeTimestamp:
		delta = int64(el.Timestamp()) - int64(prev.Timestamp()) //nolint: gosec
	case element.TypeUndefined, element.TypeNull:
		delta = 0
	default:
		// Containers, regexes, refs and code-with-scope restart with a
		// literal on every change.
		return false
	}

	if usesDeltaOfDelta(t) {
		cur := delta
		delta = cur - e.prevDelta
		e.prevDelta = cur
	}

	return e.append(t, simple8b.ZigZagEncode64(delta), dst, s)
}

// append packs an already zigzagged delta.
func (e *encoder64) append(t element.Type, wire uint64, dst *stream, s *encodingState) bool {
	return e.bits.Append(wire, e.writer(t, dst, s))
}

func (e *encoder64) skip(t element.Type, dst *stream, s *encodingState) {
	e.bits.Skip(e.writer(t, dst, s))
}

func (e *encoder64) flush(t element.Type, dst *stream, s *encodingState) {
	e.bits.Flush(e.writer(t, dst, s))
}

// writer returns the callback that lands sealed simple8b words in the
// stream. For doubles it additionally maintains the last value preceding the
// pending set, which rescaling resumes from when a block closes.
func (e *encoder64) writer(t element.Type, dst *stream, s *encodingState) simple8b.WriteFn {
	return func(word uint64) {
		sealed := s.bumpControl(dst, scaleMarkers[e.scaleIndex])
		dst.b = binary.LittleEndian.AppendUint64(dst.b, word)
		if sealed != noControlOffset {
			dst.emitControl(sealed, dst.len()-sealed)
		}

		if t != element.TypeDouble {
			return
		}

		// Walk the still-pending deltas backwards from the previous encoding
		// to the last value that made it into a block.
		cur := e.prevEncoded
		for delta, ok := range e.bits.PendingReverse() {
			if ok {
				cur -= simple8b.ZigZagDecode64(delta)
			}
		}
		e.lastInPrevBlock = decodeDoubleAt(cur, e.scaleIndex)
	}
}

// encoder128 packs 128-bit domain deltas.
type encoder128 struct {
	bits simple8b.Builder128

	prevEncoded    simple8b.Uint128
	hasPrevEncoded bool
}

// initialize seeds the baseline from the previous literal. A literal without
// a canonical encoding leaves the baseline unset, which blocks zero
// encodings from being appended as deltas.
func (e *encoder128) initialize(el element.Element) {
	switch el.Type() {
	case element.TypeString, element.TypeCode, element.TypeSymbol:
		e.prevEncoded, e.hasPrevEncoded = encodeString(el.StringValue())
	case element.TypeBinary:
		_, payload := el.Binary()
		e.prevEncoded, e.hasPrevEncoded = encodeBinaryValue(payload)
	case element.TypeDecimal128:
		e.prevEncoded, e.hasPrevEncoded = encodeDecimal128(el), true
	}
}

func (e *encoder128) appendDelta(el, prev element.Element, dst *stream, s *encodingState) bool {
	switch t := el.Type(); t {
	case element.TypeString, element.TypeCode, element.TypeSymbol:
		enc, ok := encodeString(el.StringValue())
		if !ok {
			return false
		}

		return e.appendEncoded(t, enc, dst, s)
	case element.TypeBinary:
		sub, payload := el.Binary()
		prevSub, prevPayload := prev.Binary()
		if sub != prevSub || len(payload) != len(prevPayload) {
			return false
		}
		enc, ok := encodeBinaryValue(payload)
		if !ok {
			return false
		}

		return e.appendEncoded(t, enc, dst, s)
	case element.TypeDecimal128:
		return e.appendEncoded(t, encodeDecimal128(el), dst, s)
	default:
		return false
	}
}

// appendEncoded packs the delta against the previous encoding. A zero
// encoding directly after an unencodable literal is not representable: the
// decoder reads a zero delta there as a repeat of that literal.
func (e *encoder128) appendEncoded(t element.Type, enc simple8b.Uint128, dst *stream, s *encodingState) bool {
	if !e.hasPrevEncoded && enc.IsZero() {
		return false
	}

	appended := e.append(t, enc.Sub(e.prevEncoded).ZigZag(), dst, s)
	e.prevEncoded = enc
	e.hasPrevEncoded = true

	return appended
}

func (e *encoder128) append(t element.Type, wire simple8b.Uint128, dst *stream, s *encodingState) bool {
	return e.bits.Append(wire, e.writer(t, dst, s))
}

func (e *encoder128) skip(t element.Type, dst *stream, s *encodingState) {
	e.bits.Skip(e.writer(t, dst, s))
}

func (e *encoder128) flush(t element.Type, dst *stream, s *encodingState) {
	e.bits.Flush(e.writer(t, dst, s))
}

func (e *encoder128) writer(_ element.Type, dst *stream, s *encodingState) simple8b.WriteFn {
	return func(word uint64) {
		sealed := s.bumpControl(dst, scaleMarkers[memoryAsInteger])
		dst.b = binary.LittleEndian.AppendUint64(dst.b, word)
		if sealed != noControlOffset {
			dst.emitControl(sealed, dst.len()-sealed)
		}
	}
}

// mustReadLiteral parses a literal produced by this package.
func mustReadLiteral(b []byte) element.Element {
	el, _, err := element.ReadElement(b)
	if err != nil {
		panic(err)
	}

	return el
}
