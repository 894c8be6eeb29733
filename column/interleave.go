package column

import (
	"container/heap"

	"github.com/colpack/colpack/element"
)

// Interleaved mode decomposes a stream of similarly-shaped containers into
// one compressed stream per scalar leaf. While the reference shape is still
// being determined incoming containers are buffered and merged into the
// reference; once committed, the reference is written verbatim after the
// interleave marker and every buffered container fans out into the per-leaf
// encoding states.

type interleaveMode int

const (
	determiningReference interleaveMode = iota
	appendingInterleaved
)

// interleavedState is the builder's state while compressing containers.
type interleavedState struct {
	mode      interleaveMode
	reference element.Element
	subs      []*subObjState
	buffered  []element.Element
}

// subObjState compresses one scalar leaf into a private stream, recording
// every sealed control region so the flush can stitch the streams together
// in the order the decoder consumes them.
type subObjState struct {
	state  encodingState
	stream stream
	blocks []controlRegion
}

type controlRegion struct {
	offset int
	size   int
}

func newSubObjState() *subObjState {
	s := &subObjState{state: newEncodingState()}
	s.stream.onControl = func(offset, size int) {
		s.blocks = append(s.blocks, controlRegion{offset: offset, size: size})
	}

	return s
}

func (s *subObjState) clone() *subObjState {
	c := newSubObjState()
	c.state = s.state.clone()
	c.stream.b = append([]byte(nil), s.stream.b...)
	c.blocks = append([]controlRegion(nil), s.blocks...)

	return c
}

func (il *interleavedState) clone() *interleavedState {
	c := &interleavedState{
		mode:      il.mode,
		reference: il.reference,
		subs:      make([]*subObjState, len(il.subs)),
		buffered:  append([]element.Element(nil), il.buffered...),
	}
	for i, s := range il.subs {
		c.subs[i] = s.clone()
	}

	return c
}

// appendContainer routes an object or array append. Containers without
// scalar leaves stay literals in the regular stream; everything else enters
// or extends interleaved mode.
func (b *Builder) appendContainer(el element.Element) {
	scalars := containsScalars(el)

	if b.interleaved == nil {
		if !scalars {
			b.regular.append(el, &b.stream)
		} else {
			b.startDetermineReference(el)
		}

		return
	}

	il := b.interleaved

	// A different root type cannot share the reference.
	if el.Type() != il.reference.Type() {
		b.flushInterleaved()
		if !scalars {
			b.regular.append(el, &b.stream)
		} else {
			b.startDetermineReference(el)
		}

		return
	}

	if il.mode == determiningReference {
		leaves := 0
		count := func(_, _ element.Element) { leaves++ }
		if !traverseLockStep(il.reference, el, count) {
			merged, ok := mergeContainers(il.reference, el)
			if !ok {
				// Shapes are irreconcilable: flush and let this container
				// seed a new reference.
				b.flushInterleaved()
				if !scalars {
					b.regular.append(el, &b.stream)

					return
				}
				b.startDetermineReference(el)

				return
			}
			il.reference = merged
		}

		// Keep buffering while the leaf streams the reference would open
		// still pay for themselves against the buffered rows.
		if leaves*b.factor >= len(il.buffered) {
			il.buffered = append(il.buffered, ownedContainer(el))

			return
		}

		b.finishDetermineReference()
	}

	if !b.appendSubElements(el) {
		// appendSubElements flushed interleaved mode on shape mismatch.
		if !scalars {
			b.regular.append(el, &b.stream)
		} else {
			b.startDetermineReference(el)
		}
	}
}

// startDetermineReference flushes the regular stream and enters interleaved
// mode with el as the reference seed.
func (b *Builder) startDetermineReference(el element.Element) {
	b.regular.flush(&b.stream)

	ref := ownedContainer(el)
	b.interleaved = &interleavedState{reference: ref, buffered: []element.Element{ref}}
}

// finishDetermineReference writes the interleave marker and the reference
// shape, opens one encoding state per scalar leaf and fans out the buffered
// containers.
func (b *Builder) finishDetermineReference() {
	il := b.interleaved

	marker := byte(interleavedStartObject)
	if il.reference.Type() == element.TypeArray {
		marker = interleavedStartArray
	}
	b.stream.appendByte(marker)
	b.stream.b = il.reference.AppendValueTo(b.stream.b)

	// Seed every leaf with its reference element so a first append of the
	// same value becomes a zero delta against the literal already in the
	// stream.
	seed := func(ref, sub element.Element) {
		s := newSubObjState()
		s.state.storePrevious(ref)
		s.state.initializeFromPrevious()
		if !sub.IsMissing() {
			s.state.append(sub, &s.stream)
		} else {
			s.state.skip(&s.stream)
		}
		il.subs = append(il.subs, s)
	}
	if !traverseLockStep(il.reference, il.buffered[0], seed) {
		panic("colpack/column: reference incompatible with buffered container")
	}
	il.mode = appendingInterleaved

	for _, obj := range il.buffered[1:] {
		if !b.appendSubElements(obj) {
			panic("colpack/column: buffered container incompatible with reference")
		}
	}
	il.buffered = nil
}

// appendSubElements fans one container out into the per-leaf states. It
// returns false after flushing interleaved mode when the container does not
// fit the reference shape.
func (b *Builder) appendSubElements(el element.Element) bool {
	il := b.interleaved

	leaves := make([]element.Element, 0, len(il.subs))
	collect := func(_, sub element.Element) { leaves = append(leaves, sub) }
	if !traverseLockStep(il.reference, el, collect) {
		b.flushInterleaved()

		return false
	}

	if len(leaves) != len(il.subs) {
		panic("colpack/column: leaf count diverged from reference")
	}

	for i, sub := range leaves {
		s := il.subs[i]
		if !sub.IsMissing() {
			s.state.append(sub, &s.stream)
		} else {
			s.state.skip(&s.stream)
		}
	}

	return true
}

// flushInterleaved commits a pending reference if needed, flushes every leaf
// stream and stitches their control regions into the main stream in decode
// order, then returns the builder to regular mode.
func (b *Builder) flushInterleaved() {
	il := b.interleaved

	if il.mode == determiningReference {
		b.finishDetermineReference()
	}

	for _, s := range il.subs {
		s.state.flush(&s.stream)
	}

	// The decoder pulls the next control region for whichever leaf ran out
	// of elements first. Replay that order: fewest elements written wins,
	// ties broken by leaf index.
	h := make(regionHeap, 0, len(il.subs))
	for i := range il.subs {
		h = append(h, heapEntry{leaf: i})
	}
	heap.Init(&h)

	for h.Len() > 0 {
		top := &h[0]
		s := il.subs[top.leaf]
		region := s.blocks[top.next]
		b.stream.append(s.stream.b[region.offset : region.offset+region.size])

		top.next++
		if top.next == len(s.blocks) {
			heap.Pop(&h)
			continue
		}

		top.written += numElemsForControl(s.stream.b[region.offset:])
		heap.Fix(&h, 0)
	}

	b.stream.appendByte(0)
	b.interleaved = nil
	b.regular = newEncodingState()
}

type heapEntry struct {
	written int
	leaf    int
	next    int
}

type regionHeap []heapEntry

func (h regionHeap) Len() int { return len(h) }

func (h regionHeap) Less(i, j int) bool {
	if h[i].written != h[j].written {
		return h[i].written < h[j].written
	}

	return h[i].leaf < h[j].leaf
}

func (h regionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *regionHeap) Push(x any) { *h = append(*h, x.(heapEntry)) }

func (h *regionHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]

	return x
}

// ownedContainer copies el into storage the builder owns.
func ownedContainer(el element.Element) element.Element {
	return mustReadLiteral(el.AppendLiteralTo(nil))
}

func isContainer(t element.Type) bool {
	return t == element.TypeObject || t == element.TypeArray
}

type leafFn func(ref, sub element.Element)

// fieldCursor steps through container fields with one element of lookahead,
// letting lock-step traversal peek without consuming.
type fieldCursor struct {
	it   *element.FieldIter
	name string
	el   element.Element
	ok   bool
}

func newFieldCursor(el element.Element) *fieldCursor {
	c := &fieldCursor{it: el.Iter()}
	c.advance()

	return c
}

func (c *fieldCursor) advance() {
	c.name, c.el, c.ok = c.it.Next()
}

// traverseLockStep walks ref and obj together, calling fn for every scalar
// leaf of ref with the matching obj element or missing. It reports whether
// obj fits inside ref: fields in the same order, containers matching in type
// and emptiness, with obj allowed to omit fields of ref but not to add any.
func traverseLockStep(ref, obj element.Element, fn leafFn) bool {
	cur := newFieldCursor(obj)

	for refName, refEl := range ref.Fields() {
		match := cur.ok && refName == cur.name

		if isContainer(refEl.Type()) {
			if !match {
				// Field absent from obj: every leaf under it is a hole. An
				// empty container under here has no leaf to record the hole.
				if traverseUntilEmpty(refEl, fn) {
					return false
				}
				continue
			}
			if cur.el.Type() != refEl.Type() {
				return false
			}
			if refEl.EmptyContainer() != cur.el.EmptyContainer() {
				return false
			}

			sub := cur.el
			cur.advance()
			if !traverseLockStep(refEl, sub, fn) {
				return false
			}
			continue
		}

		// A scalar in ref cannot become a container in obj.
		if match && isContainer(cur.el.Type()) {
			return false
		}

		if match {
			fn(refEl, cur.el)
			cur.advance()
		} else {
			fn(refEl, element.Missing())
		}
	}

	// Fields of obj missing from ref need a merge first.
	return !cur.ok
}

// traverseUntilEmpty visits every scalar leaf of el with a missing
// counterpart. It reports whether el is or contains an empty container.
func traverseUntilEmpty(el element.Element, fn leafFn) bool {
	for _, sub := range el.Fields() {
		if isContainer(sub.Type()) {
			if traverseUntilEmpty(sub, fn) {
				return true
			}
		} else {
			fn(sub, element.Missing())
		}
	}

	return el.EmptyContainer()
}

// hasEmptyContainer reports whether el is or contains an empty container.
func hasEmptyContainer(el element.Element) bool {
	return traverseUntilEmpty(el, func(_, _ element.Element) {})
}

// containsScalars reports whether el has at least one scalar leaf.
func containsScalars(el element.Element) bool {
	for _, sub := range el.Fields() {
		if !isContainer(sub.Type()) || containsScalars(sub) {
			return true
		}
	}

	return false
}

// mergeContainers merges obj's fields into ref preserving the relative order
// of both sides; fields present in both keep ref's value. It fails when the
// shapes cannot interleave: conflicting field types, shared fields in
// different orders, or an empty container on one side only. Merging unsorted
// shapes costs quadratic time in the field count.
func mergeContainers(ref, obj element.Element) (element.Element, bool) {
	b := element.NewObjectBuilder()
	if !mergeFields(b, ref, obj) {
		return element.Element{}, false
	}

	if ref.Type() == element.TypeArray {
		return b.BuildArray(), true
	}

	return b.Build(), true
}

func mergeFields(b *element.ObjectBuilder, ref, obj element.Element) bool {
	refFields := collectFields(ref)
	objFields := collectFields(obj)

	seen := make(map[string]bool, len(refFields)+len(objFields))
	add := func(f element.Field) bool {
		if seen[f.Name] {
			return false
		}
		seen[f.Name] = true
		b.Append(f.Name, f.Value)

		return true
	}

	ri, oi := 0, 0
	for ri < len(refFields) && oi < len(objFields) {
		rf, of := refFields[ri], objFields[oi]

		if rf.Name == of.Name {
			refC, objC := isContainer(rf.Value.Type()), isContainer(of.Value.Type())
			switch {
			case refC && objC && rf.Value.Type() == of.Value.Type():
				if rf.Value.EmptyContainer() != of.Value.EmptyContainer() {
					return false
				}
				sub, ok := mergeContainers(rf.Value, of.Value)
				if !ok || !add(element.F(rf.Name, sub)) {
					return false
				}
			case refC || objC:
				return false
			default:
				if !add(rf) {
					return false
				}
			}
			ri++
			oi++
			continue
		}

		// Names differ. If ref's field shows up later in obj, the field at
		// obj's cursor is new and slots in first; otherwise ref's field is
		// absent from obj and keeps its position.
		if fieldIndex(objFields[oi+1:], rf.Name) < 0 {
			if !addMergeable(add, rf) {
				return false
			}
			ri++
		} else {
			if !addMergeable(add, of) {
				return false
			}
			oi++
		}
	}

	for ; ri < len(refFields); ri++ {
		if !addMergeable(add, refFields[ri]) {
			return false
		}
	}
	for ; oi < len(objFields); oi++ {
		if !addMergeable(add, objFields[oi]) {
			return false
		}
	}

	return true
}

// addMergeable appends a field that exists on one side only. Such a field
// may not be or contain an empty container: the merged shape would make it
// unskippable.
func addMergeable(add func(element.Field) bool, f element.Field) bool {
	if isContainer(f.Value.Type()) && hasEmptyContainer(f.Value) {
		return false
	}

	return add(f)
}

func collectFields(el element.Element) []element.Field {
	fields := make([]element.Field, 0, el.FieldCount())
	for name, sub := range el.Fields() {
		fields = append(fields, element.F(name, sub))
	}

	return fields
}

func fieldIndex(fields []element.Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}

	return -1
}
