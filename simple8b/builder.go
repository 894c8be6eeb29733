package simple8b

import "iter"

// slot is one value queued for packing. bits caches minBitsFor(value) so
// word selection does not recount.
type slot struct {
	value uint64
	bits  uint8
	skip  bool
}

// packer is the selector-based packing core shared by Builder64 and
// Builder128. It buffers values until a word fills, accumulates runs of
// the repeat basis, and hands finished words to the caller's WriteFn.
//
// Invariant: an open run (rleCount > 0) implies the pending buffer is
// empty. Runs only grow while nothing is queued, and terminating a run
// re-queues its remainder before any new value is admitted.
type packer struct {
	pending []slot

	// maxBits is the widest pending value, the width the next word would
	// use if flushed now.
	maxBits int

	// rleValue and rleSkip form the repeat basis: the last value packed
	// into a word, or the seeded resume value. rleSkip doubles as the
	// cleared state since a run of skips and an unusable basis behave the
	// same for value matching. The zero value of packer has a zero basis,
	// matching the decoder's lookback at stream start.
	rleValue uint64
	rleSkip  bool

	// rleCount is the length of the open run of the basis.
	rleCount int
}

// runExtends reports whether v continues (or starts) a run of the basis.
// Only meaningful while pending is empty.
func (p *packer) runExtends(v uint64) bool {
	return !p.rleSkip && v == p.rleValue
}

// fits reports whether one more value of width mb shares a word with the
// pending values.
func (p *packer) fits(mb int) bool {
	need := max(p.maxBits, mb)
	for sel := 1; sel <= numBaseSelectors; sel++ {
		if selectorBits[sel] >= need {
			return len(p.pending)+1 <= selectorCapacity[sel]
		}
	}

	return false
}

func (p *packer) push(s slot) {
	p.pending = append(p.pending, s)
	if int(s.bits) > p.maxBits {
		p.maxBits = int(s.bits)
	}
}

// append queues a storable value, growing the open run when it matches
// the basis. It returns false for values wider than 60 bits, leaving all
// state untouched so the caller can fall back to storing the value out of
// band after a flush.
func (p *packer) append(v uint64, write WriteFn) bool {
	if len(p.pending) == 0 && p.runExtends(v) {
		p.rleCount++
		return true
	}

	mb := minBitsFor(v)
	if mb > maxDataBits {
		return false
	}

	if len(p.pending) == 0 {
		p.terminateRun(write)
	}
	if !p.fits(mb) {
		p.drain(write)
		// Draining rewrote the basis to the last packed value, so a
		// run can restart right at the word boundary.
		if p.runExtends(v) {
			p.rleCount = 1
			return true
		}
	}
	p.push(slot{value: v, bits: uint8(mb)})

	return true
}

// skip queues a hole. Skips pack as the all-ones pattern and extend runs
// whenever the basis is itself a skip.
func (p *packer) skip(write WriteFn) {
	if len(p.pending) == 0 {
		if p.rleSkip {
			p.rleCount++
			return
		}
		p.terminateRun(write)
	}
	if !p.fits(1) {
		p.drain(write)
		if p.rleSkip {
			p.rleCount = 1
			return
		}
	}
	p.push(slot{bits: 1, skip: true})
}

// terminateRun closes the open run. Whole multiples of rleRun leave as
// run-length words and the remainder re-enters the pending buffer as
// plain copies of the basis. rleCount decrements as values leave so that
// Pending stays accurate inside WriteFn callbacks.
func (p *packer) terminateRun(write WriteFn) {
	for p.rleCount >= rleRun {
		mult := min(p.rleCount/rleRun, rleMaxMultiplier)
		p.rleCount -= mult * rleRun
		write(uint64(rleSelector) | uint64(mult-1)<<4)
	}

	s := slot{value: p.rleValue, bits: 1, skip: p.rleSkip}
	if !s.skip {
		s.bits = uint8(minBitsFor(s.value))
	}
	for p.rleCount > 0 {
		if !p.fits(int(s.bits)) {
			p.drain(write)
		}
		p.rleCount--
		p.push(s)
	}
}

// drain packs the whole pending buffer into words. Each word takes the
// largest exact capacity whose width covers its prefix, so decoders see
// only full words.
func (p *packer) drain(write WriteFn) {
	for len(p.pending) > 0 {
		sel := p.drainSelector()
		width := selectorBits[sel]
		capacity := selectorCapacity[sel]

		word := uint64(sel)
		for i, s := range p.pending[:capacity] {
			raw := wordMask(width)
			if !s.skip {
				raw = s.value
			}
			word |= raw << (4 + i*width)
		}

		last := p.pending[capacity-1]
		p.rleValue, p.rleSkip = last.value, last.skip
		p.pending = p.pending[:copy(p.pending, p.pending[capacity:])]
		write(word)
	}
	p.maxBits = 0
}

// drainSelector picks the largest exact capacity not exceeding the
// pending count whose width holds every value in that prefix. Selector 14
// always qualifies, a single value of up to 60 bits.
func (p *packer) drainSelector() int {
	sel := 1
	for ; sel < numBaseSelectors; sel++ {
		capacity := selectorCapacity[sel]
		if capacity > len(p.pending) {
			continue
		}
		widest := 0
		for _, s := range p.pending[:capacity] {
			widest = max(widest, int(s.bits))
		}
		if widest <= selectorBits[sel] {
			break
		}
	}

	return sel
}

// flush forces everything queued out as words, ending on a word boundary.
func (p *packer) flush(write WriteFn) {
	p.terminateRun(write)
	p.drain(write)
}

func (p *packer) len() int {
	return p.rleCount + len(p.pending)
}

// forEach yields the unwritten values oldest first, the open run before
// the pending buffer. ok is false for skips.
func (p *packer) forEach(yield func(v uint64, ok bool) bool) {
	for i := 0; i < p.rleCount; i++ {
		if !p.yieldBasis(yield) {
			return
		}
	}
	for _, s := range p.pending {
		if !yieldSlot(s, yield) {
			return
		}
	}
}

// forEachReverse yields the unwritten values newest first.
func (p *packer) forEachReverse(yield func(v uint64, ok bool) bool) {
	for i := len(p.pending) - 1; i >= 0; i-- {
		if !yieldSlot(p.pending[i], yield) {
			return
		}
	}
	for i := 0; i < p.rleCount; i++ {
		if !p.yieldBasis(yield) {
			return
		}
	}
}

func (p *packer) yieldBasis(yield func(v uint64, ok bool) bool) bool {
	if p.rleSkip {
		return yield(0, false)
	}
	return yield(p.rleValue, true)
}

func yieldSlot(s slot, yield func(v uint64, ok bool) bool) bool {
	if s.skip {
		return yield(0, false)
	}
	return yield(s.value, true)
}

// setLastForRLE seeds the repeat basis when resuming from existing words.
func (p *packer) setLastForRLE(v uint64) {
	p.rleValue, p.rleSkip = v, false
}

func (p *packer) setLastForRLESkip() {
	p.rleValue, p.rleSkip = 0, true
}

// resetLastForRLEIfNeeded clears the basis when values are already
// pending, since a run can no longer form ahead of them. A skip basis is
// the cleared state: the basis is only consulted while pending is empty,
// and the next drain rewrites it either way.
func (p *packer) resetLastForRLEIfNeeded() {
	if len(p.pending) > 0 {
		p.rleValue, p.rleSkip = 0, true
	}
}

func (p *packer) clone() packer {
	c := *p
	c.pending = append([]slot(nil), p.pending...)

	return c
}

// Builder64 packs unsigned 64-bit values into selector-coded words. The
// zero value is ready to use. Values wider than 60 bits are not storable
// and Append reports them so the caller can store the value out of band.
//
// Words reach the caller through the WriteFn passed to each mutating
// call, which keeps the builder free of any output buffer and lets one
// output own words from several builders.
type Builder64 struct {
	p packer
}

// Append queues v for packing, emitting words as they fill. It returns
// false when v cannot be packed, with the builder unchanged.
func (b *Builder64) Append(v uint64, write WriteFn) bool {
	return b.p.append(v, write)
}

// Skip queues a hole at the current position.
func (b *Builder64) Skip(write WriteFn) {
	b.p.skip(write)
}

// Flush writes all queued values out as words.
func (b *Builder64) Flush(write WriteFn) {
	b.p.flush(write)
}

// Len is the number of queued values not yet packed into words, counting
// every repeat of an open run.
func (b *Builder64) Len() int {
	return b.p.len()
}

// Pending iterates the queued values oldest first. The boolean is false
// for skips.
func (b *Builder64) Pending() iter.Seq2[uint64, bool] {
	return func(yield func(uint64, bool) bool) {
		b.p.forEach(yield)
	}
}

// PendingReverse iterates the queued values newest first.
func (b *Builder64) PendingReverse() iter.Seq2[uint64, bool] {
	return func(yield func(uint64, bool) bool) {
		b.p.forEachReverse(yield)
	}
}

// SetLastForRLE seeds the repeat basis with the last value of previously
// written words so a continued run keeps compressing.
func (b *Builder64) SetLastForRLE(v uint64) {
	b.p.setLastForRLE(v)
}

// SetLastForRLESkip seeds the repeat basis with a skip.
func (b *Builder64) SetLastForRLESkip() {
	b.p.setLastForRLESkip()
}

// InitializeRLEFrom carries the repeat basis over from another builder,
// used when a rescale replaces the builder mid stream.
func (b *Builder64) InitializeRLEFrom(other *Builder64) {
	b.p.rleValue, b.p.rleSkip = other.p.rleValue, other.p.rleSkip
}

// ResetLastForRLEIfNeeded clears the repeat basis when values are already
// queued ahead of it.
func (b *Builder64) ResetLastForRLEIfNeeded() {
	b.p.resetLastForRLEIfNeeded()
}

// Clone returns a builder with the same queued values and repeat basis that
// packs independently of b.
func (b *Builder64) Clone() Builder64 {
	return Builder64{p: b.p.clone()}
}

// Builder128 packs unsigned 128-bit values. Storable values always have a
// zero high half, so it shares the 64-bit packing core and only widens
// the API surface.
type Builder128 struct {
	p packer
}

// Append queues v for packing. It returns false when v needs more than 60
// bits, with the builder unchanged.
func (b *Builder128) Append(v Uint128, write WriteFn) bool {
	if v.Hi != 0 {
		return false
	}
	return b.p.append(v.Lo, write)
}

// Skip queues a hole at the current position.
func (b *Builder128) Skip(write WriteFn) {
	b.p.skip(write)
}

// Flush writes all queued values out as words.
func (b *Builder128) Flush(write WriteFn) {
	b.p.flush(write)
}

// Len is the number of queued values not yet packed into words, counting
// every repeat of an open run.
func (b *Builder128) Len() int {
	return b.p.len()
}

// Pending iterates the queued values oldest first. The boolean is false
// for skips.
func (b *Builder128) Pending() iter.Seq2[Uint128, bool] {
	return func(yield func(Uint128, bool) bool) {
		b.p.forEach(func(v uint64, ok bool) bool {
			return yield(Uint128From(v), ok)
		})
	}
}

// PendingReverse iterates the queued values newest first.
func (b *Builder128) PendingReverse() iter.Seq2[Uint128, bool] {
	return func(yield func(Uint128, bool) bool) {
		b.p.forEachReverse(func(v uint64, ok bool) bool {
			return yield(Uint128From(v), ok)
		})
	}
}

// SetLastForRLE seeds the repeat basis with the last value of previously
// written words.
func (b *Builder128) SetLastForRLE(v Uint128) {
	if v.Hi != 0 {
		b.p.setLastForRLESkip()
		return
	}
	b.p.setLastForRLE(v.Lo)
}

// SetLastForRLESkip seeds the repeat basis with a skip.
func (b *Builder128) SetLastForRLESkip() {
	b.p.setLastForRLESkip()
}

// ResetLastForRLEIfNeeded clears the repeat basis when values are already
// queued ahead of it.
func (b *Builder128) ResetLastForRLEIfNeeded() {
	b.p.resetLastForRLEIfNeeded()
}

// Clone returns a builder with the same queued values and repeat basis that
// packs independently of b.
func (b *Builder128) Clone() Builder128 {
	return Builder128{p: b.p.clone()}
}
