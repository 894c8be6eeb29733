package column

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/errs"
	"github.com/colpack/colpack/simple8b"
)

// Decoder replays a column binary into the element sequence that produced
// it. Holes decode as missing elements, keeping the sequence aligned one to
// one with the appends.
type Decoder struct {
	data []byte
	err  error
}

// NewDecoder wraps data for decoding. The bytes are not copied and must stay
// unchanged while decoding.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Values decodes the whole stream at once.
func (d *Decoder) Values() ([]element.Element, error) {
	var out []element.Element
	for el := range d.All() {
		out = append(out, el)
	}
	if d.err != nil {
		return nil, d.err
	}

	return out, nil
}

// All iterates the stream front to back. Iteration ends at the stream
// terminator or the first malformed byte; Err reports which one it was.
func (d *Decoder) All() iter.Seq[element.Element] {
	return func(yield func(element.Element) bool) {
		run := decoderRun{data: d.data}
		d.err = run.run(yield)
	}
}

// Err returns the error that ended the last All iteration, or nil.
func (d *Decoder) Err() error {
	return d.err
}

type decoderRun struct {
	data []byte
	pos  int
}

func (r *decoderRun) run(yield func(element.Element) bool) error {
	st := newDecodeState()

	var scratch []element.Element
	for {
		if r.pos >= len(r.data) {
			return fmt.Errorf("%w: missing stream terminator", errs.ErrUnexpectedEOF)
		}

		c := r.data[r.pos]
		switch {
		case c == 0:
			r.pos++

			return nil
		case isLiteralControl(c):
			el, n, err := element.ReadElement(r.data[r.pos:])
			if err != nil {
				return err
			}
			r.pos += n
			st.setLiteral(el)
			if !yield(el) {
				return nil
			}
		case isInterleavedStart(c):
			done, err := r.interleaved(yield)
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
			// The builder leaves interleaved mode with fresh encoding state.
			st = newDecodeState()
		default:
			vals, n, err := st.decodeRegion(r.data[r.pos:], scratch[:0])
			if err != nil {
				return err
			}
			r.pos += n
			for _, el := range vals {
				if !yield(el) {
					return nil
				}
			}
			scratch = vals
		}
	}
}

// interleaved decodes one interleaved region: one decode state per scalar
// leaf of the reference container, each pulling its next control region from
// the shared stream the moment it runs dry. The builder merged regions into
// the stream in exactly that demand order. Returns false when the consumer
// stopped the iteration.
func (r *decoderRun) interleaved(yield func(element.Element) bool) (bool, error) {
	root := element.TypeObject
	if r.data[r.pos] == interleavedStartArray {
		root = element.TypeArray
	}
	r.pos++

	ref, err := r.readReference(root)
	if err != nil {
		return false, err
	}

	leaves := collectLeaves(ref, nil)
	states := make([]decodeState, len(leaves))
	queues := make([][]element.Element, len(leaves))
	for i, leaf := range leaves {
		states[i] = newDecodeState()
		states[i].setLiteral(leaf)
	}

	row := make([]element.Element, len(leaves))
	for {
		if len(leaves) == 0 || len(queues[0]) == 0 {
			if r.pos >= len(r.data) {
				return false, fmt.Errorf("%w: unterminated interleaved region", errs.ErrUnexpectedEOF)
			}
			if r.data[r.pos] == 0 {
				r.pos++
				for _, q := range queues {
					if len(q) != 0 {
						return false, fmt.Errorf("%w: uneven leaf streams in interleaved region", errs.ErrInvalidBinary)
					}
				}

				return true, nil
			}
			if len(leaves) == 0 {
				return false, fmt.Errorf("%w: value blocks in interleaved region without leaves", errs.ErrInvalidBinary)
			}
		}

		allHoles := true
		for i := range leaves {
			if len(queues[i]) == 0 {
				if err := r.pull(&states[i], &queues[i]); err != nil {
					return false, err
				}
			}
			row[i] = queues[i][0]
			queues[i] = queues[i][1:]
			if !row[i].IsMissing() {
				allHoles = false
			}
		}

		el := element.Missing()
		if !allHoles {
			el, _ = rebuildContainer(ref, row, new(int))
		}
		if !yield(el) {
			return false, nil
		}
	}
}

// pull reads the next control region from the stream into one leaf's queue.
func (r *decoderRun) pull(st *decodeState, queue *[]element.Element) error {
	if r.pos >= len(r.data) {
		return fmt.Errorf("%w: unterminated interleaved region", errs.ErrUnexpectedEOF)
	}

	c := r.data[r.pos]
	switch {
	case c == 0:
		return fmt.Errorf("%w: interleaved region ended with values outstanding", errs.ErrInvalidBinary)
	case isLiteralControl(c):
		el, n, err := element.ReadElement(r.data[r.pos:])
		if err != nil {
			return err
		}
		r.pos += n
		st.setLiteral(el)
		*queue = append(*queue, el)

		return nil
	case isInterleavedStart(c):
		return fmt.Errorf("%w: nested interleaved start", errs.ErrInvalidBinary)
	default:
		vals, n, err := st.decodeRegion(r.data[r.pos:], *queue)
		if err != nil {
			return err
		}
		*queue = vals
		r.pos += n

		return nil
	}
}

// readReference reads the size-prefixed reference container value following
// an interleaved start byte.
func (r *decoderRun) readReference(root element.Type) (element.Element, error) {
	rest := r.data[r.pos:]
	if len(rest) < 4 {
		return element.Element{}, fmt.Errorf("%w: truncated reference container", errs.ErrUnexpectedEOF)
	}
	size := int(int32(binary.LittleEndian.Uint32(rest)))
	if size < 5 || size > len(rest) {
		return element.Element{}, fmt.Errorf("%w: reference container size %d", errs.ErrInvalidBinary, size)
	}

	lit := make([]byte, 0, 2+size)
	lit = append(lit, byte(root), 0)
	lit = append(lit, rest[:size]...)
	ref, _, err := element.ReadElement(lit)
	if err != nil {
		return element.Element{}, err
	}
	if err := validateContainer(ref); err != nil {
		return element.Element{}, err
	}
	r.pos += size

	return ref, nil
}

func validateContainer(el element.Element) error {
	it := el.Iter()
	for {
		_, sub, ok := it.Next()
		if !ok {
			return it.Err()
		}
		if isContainer(sub.Type()) {
			if err := validateContainer(sub); err != nil {
				return err
			}
		}
	}
}

// collectLeaves gathers the scalar leaves of a container depth first, the
// order leaf streams interleave in.
func collectLeaves(el element.Element, out []element.Element) []element.Element {
	for _, sub := range el.Fields() {
		if isContainer(sub.Type()) {
			out = collectLeaves(sub, out)
		} else {
			out = append(out, sub)
		}
	}

	return out
}

// rebuildContainer reassembles one decoded row in the reference shape.
// Leaves consume row values in traversal order; holes elide their field,
// sub-containers whose fields all elide drop out entirely, and empty
// containers materialize in every row. ok is false when nothing at all
// materialized.
func rebuildContainer(ref element.Element, row []element.Element, next *int) (element.Element, bool) {
	b := element.NewObjectBuilder()
	filled := false

	for name, sub := range ref.Fields() {
		if isContainer(sub.Type()) {
			if sub.EmptyContainer() {
				b.Append(name, sub)
				filled = true

				continue
			}
			if child, ok := rebuildContainer(sub, row, next); ok {
				b.Append(name, child)
				filled = true
			}

			continue
		}

		v := row[*next]
		*next++
		if !v.IsMissing() {
			b.Append(name, v)
			filled = true
		}
	}

	if !filled {
		return element.Element{}, false
	}
	if ref.Type() == element.TypeArray {
		return b.BuildArray(), true
	}

	return b.Build(), true
}

// decodeState mirrors one encoding state on the read side: the last
// uncompressed element and the integer accumulators deltas apply to.
type decodeState struct {
	literal element.Element

	// 64-bit domain.
	last       int64
	lastDelta  int64
	scale      int
	lastDouble float64

	// 128-bit domain. hasEncoding distinguishes a true zero encoding from
	// the unset state after a literal with no canonical encoding.
	last128     simple8b.Uint128
	hasEncoding bool

	// lastNonRLE threads the run-length basis across control regions.
	lastNonRLE uint64
}

func newDecodeState() decodeState {
	return decodeState{literal: element.Missing(), lastNonRLE: simple8b.SingleZeroWord}
}

// setLiteral restarts the state from an uncompressed element, like the
// builder restarts its encoders from a written literal.
func (st *decodeState) setLiteral(el element.Element) {
	st.literal = el
	st.last = 0
	st.lastDelta = 0
	st.lastNonRLE = simple8b.SingleZeroWord
	st.last128 = simple8b.Uint128{}
	st.hasEncoding = false

	switch el.Type() {
	case element.TypeDouble:
		st.lastDouble = el.Double()
	case element.TypeInt32:
		st.last = int64(el.Int32())
	case element.TypeInt64:
		st.last = el.Int64()
	case element.TypeDateTime:
		st.last = el.DateTime()
	case element.TypeBool:
		st.last = boolInt(el.Bool())
	case element.TypeTimestamp:
		st.last = int64(el.Timestamp()) //nolint: gosec
	case element.TypeUID:
		st.last = encodeUID(el.UID())
	case element.TypeString, element.TypeCode, element.TypeSymbol:
		st.last128, st.hasEncoding = encodeString(el.StringValue())
	case element.TypeBinary:
		_, payload := el.Binary()
		st.last128, st.hasEncoding = encodeBinaryValue(payload)
	case element.TypeDecimal128:
		st.last128, st.hasEncoding = encodeDecimal128(el), true
	}
}

// decodeRegion decodes one control byte and its words, appending the
// materialized elements to out. Returns the bytes consumed.
func (st *decodeState) decodeRegion(data []byte, out []element.Element) ([]element.Element, int, error) {
	c := data[0]
	scale := scaleForControl(c)
	if scale < 0 {
		return out, 0, fmt.Errorf("%w: 0x%02x", errs.ErrInvalidControlByte, c)
	}

	size := 1 + blocksForControl(c)*8
	if len(data) < size {
		return out, 0, fmt.Errorf("%w: control region needs %d bytes", errs.ErrUnexpectedEOF, size)
	}
	words := data[1:size]

	t := st.literal.Type()
	if uses128(t) {
		if scale != memoryAsInteger {
			return out, 0, fmt.Errorf("%w: scale marker on %v stream", errs.ErrInvalidControlByte, t)
		}
		err := simple8b.Visit128(words, &st.lastNonRLE, func(v simple8b.Uint128, present bool) error {
			el, err := st.apply128(t, v, present)
			if err != nil {
				return err
			}
			out = append(out, el)

			return nil
		})

		return out, size, err
	}

	switch {
	case t == element.TypeDouble:
		enc, ok := encodeDoubleAt(st.lastDouble, scale)
		if !ok {
			return out, 0, fmt.Errorf("%w: %v not representable at scale %d", errs.ErrInvalidBinary, st.lastDouble, scale)
		}
		st.last = enc
		st.scale = scale
	case scale != memoryAsInteger:
		return out, 0, fmt.Errorf("%w: scale marker on %v stream", errs.ErrInvalidControlByte, t)
	}

	err := simple8b.Visit64(words, &st.lastNonRLE, func(v uint64, present bool) error {
		el, err := st.apply64(t, v, present)
		if err != nil {
			return err
		}
		out = append(out, el)

		return nil
	})

	return out, size, err
}

// apply64 materializes one 64-bit domain slot.
func (st *decodeState) apply64(t element.Type, wire uint64, present bool) (element.Element, error) {
	if !present {
		return element.Missing(), nil
	}
	if t == element.TypeMissing {
		return element.Element{}, fmt.Errorf("%w: value delta before any literal", errs.ErrInvalidBinary)
	}

	delta := simple8b.ZigZagDecode64(wire)

	if onlyZeroDelta64(t) {
		if delta != 0 {
			return element.Element{}, fmt.Errorf("%w: non-zero delta on %v stream", errs.ErrInvalidBinary, t)
		}

		return st.literal, nil
	}

	if usesDeltaOfDelta(t) {
		st.lastDelta += delta
		st.last += st.lastDelta
	} else {
		st.last += delta
	}

	return st.materialize64(t), nil
}

// materialize64 builds the element the 64-bit accumulator currently names.
func (st *decodeState) materialize64(t element.Type) element.Element {
	switch t {
	case element.TypeDouble:
		st.lastDouble = decodeDoubleAt(st.last, st.scale)

		return element.Double(st.lastDouble)
	case element.TypeInt32:
		return element.Int32(int32(st.last)) //nolint: gosec
	case element.TypeInt64:
		return element.Int64(st.last)
	case element.TypeDateTime:
		return element.DateTime(st.last)
	case element.TypeBool:
		return element.Bool(st.last != 0)
	case element.TypeTimestamp:
		return element.TimestampRaw(uint64(st.last)) //nolint: gosec
	case element.TypeUID:
		id := st.literal.UID()
		var unique [5]byte
		copy(unique[:], id[4:9])

		return element.UID(decodeUID(st.last, unique))
	default:
		return st.literal
	}
}

// apply128 materializes one 128-bit domain slot.
func (st *decodeState) apply128(t element.Type, wire simple8b.Uint128, present bool) (element.Element, error) {
	if !present {
		return element.Missing(), nil
	}

	delta := wire.UnZigZag()

	if !st.hasEncoding {
		// No canonical encoding of the last literal exists. A zero delta
		// repeats the literal; anything else restarts the accumulator from
		// zero, which is how the builder encodes it.
		if delta.IsZero() {
			return st.literal, nil
		}
		if t == element.TypeBinary {
			// Binary decoding needs the payload length of the previous
			// element, which an unencodable literal cannot provide.
			return element.Element{}, fmt.Errorf("%w: non-zero delta after unencodable binary literal", errs.ErrInvalidBinary)
		}
		st.last128 = delta
		st.hasEncoding = true
	} else {
		st.last128 = st.last128.Add(delta)
	}

	return st.materialize128(t), nil
}

// materialize128 builds the element the 128-bit accumulator currently names.
func (st *decodeState) materialize128(t element.Type) element.Element {
	switch t {
	case element.TypeString:
		return element.String(decodeString(st.last128))
	case element.TypeCode:
		return element.Code(decodeString(st.last128))
	case element.TypeSymbol:
		return element.Symbol(decodeString(st.last128))
	case element.TypeBinary:
		sub, payload := st.literal.Binary()

		return element.Binary(sub, decodeBinaryValue(st.last128, len(payload)))
	case element.TypeDecimal128:
		return element.Decimal128(st.last128.Lo, st.last128.Hi)
	default:
		return st.literal
	}
}
