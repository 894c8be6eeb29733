package column

import (
	"fmt"

	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/internal/options"
)

// defaultInterleaveFactor bounds how many containers buffer per reference
// leaf before interleaved compression commits to the reference shape.
const defaultInterleaveFactor = 2

// Option configures a Builder.
type Option = options.Option[*Builder]

// WithInterleaveBufferFactor sets how long container appends keep buffering
// while the reference shape settles: buffering continues while the leaf
// count times factor is at least the buffered count. Higher factors settle
// the shape across more containers at the cost of buffer memory.
func WithInterleaveBufferFactor(factor int) Option {
	return options.New(func(b *Builder) error {
		if factor < 1 {
			return fmt.Errorf("invalid interleave buffer factor: %d", factor)
		}
		b.factor = factor

		return nil
	})
}

// Builder compresses a stream of elements and holes into column binary form.
// Values append in stream order; Finalize seals the stream and returns the
// complete binary, Intermediate emits it incrementally instead. The zero
// Builder is not usable, construct with NewBuilder or Reopen.
type Builder struct {
	stream  stream
	regular encodingState

	// interleaved is non-nil while container compression is active.
	interleaved *interleavedState

	// offset is the absolute stream position of the live buffer's first
	// byte. Intermediate advances it as emitted bytes leave the buffer.
	offset int

	factor int

	finalized        bool
	intermediateUsed bool
}

// NewBuilder returns an empty column builder. Invalid options panic; they
// are programmer errors, not data errors.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{regular: newEncodingState(), factor: defaultInterleaveFactor}
	if err := options.Apply(b, opts...); err != nil {
		panic(fmt.Sprintf("colpack/column: %v", err))
	}

	return b
}

// Append adds el to the stream. Appending a missing element records a hole,
// same as Skip. Objects and arrays with at least one scalar leaf compress
// interleaved; empty containers and every other type extend the flat stream.
func (b *Builder) Append(el element.Element) {
	b.ensureLive()

	if el.IsMissing() {
		b.Skip()

		return
	}

	if !isContainer(el.Type()) || el.EmptyContainer() {
		if b.interleaved != nil {
			b.flushInterleaved()
		}
		b.regular.append(el, &b.stream)

		return
	}

	b.appendContainer(el)
}

// Skip records a hole at the current position.
func (b *Builder) Skip() {
	b.ensureLive()

	if b.interleaved == nil {
		b.regular.skip(&b.stream)

		return
	}

	// An empty sub-object in the reference has no leaf stream to record the
	// hole in, so a skipped row cannot be expressed inside interleaved mode.
	if hasEmptyContainer(b.interleaved.reference) {
		b.flushInterleaved()
		b.Skip()

		return
	}

	il := b.interleaved
	if il.mode == determiningReference {
		// An empty object marks an all-holes row; genuinely empty containers
		// never buffer, they append as plain literals.
		il.buffered = append(il.buffered, element.Object())

		return
	}

	for _, s := range il.subs {
		s.state.skip(&s.stream)
	}
}

// Last returns the most recently appended element while the flat stream is
// active, or a missing element during interleaved compression.
func (b *Builder) Last() element.Element {
	if b.interleaved != nil {
		return element.Missing()
	}

	return b.regular.prevEl
}

// Finalize flushes pending values, writes the terminal marker and returns
// the complete binary. The builder is sealed afterwards. Builders that
// emitted incrementally cannot Finalize; the remaining bytes come from a
// final Intermediate call.
func (b *Builder) Finalize() []byte {
	b.ensureLive()
	if b.intermediateUsed {
		panic("colpack/column: Finalize after Intermediate - emit the remainder with a final Intermediate call")
	}

	b.finishStream()
	b.finalized = true

	return b.stream.b
}

// Detach hands over the live buffer and seals the builder.
func (b *Builder) Detach() []byte {
	b.ensureLive()
	b.finalized = true

	data := b.stream.b
	b.stream.b = nil

	return data
}

// Diff is one incremental emission. Data holds the stream finalized up to
// this call. Writing Data at Offset in the output and truncating everything
// past it reproduces what a single Finalize of the same appends would have
// returned. IdenticalPrefix counts leading bytes of Data guaranteed
// unchanged since the previous emission; it is currently always zero.
type Diff struct {
	Data            []byte
	IdenticalPrefix int
	Offset          int
}

// Intermediate finalizes and returns the stream built so far while keeping
// the builder appendable. Only the bytes later appends can still change stay
// in the live buffer, so consecutive emissions overlap by at most one
// control region.
func (b *Builder) Intermediate() Diff {
	b.ensureLive()
	b.intermediateUsed = true

	saved := b.snapshot()
	length := b.stream.len()
	prevOffset := b.offset

	// In interleaved mode every byte of the emitted binary is final: the
	// leaf buffers are not consumed and re-emit in full next time.
	ctrlOffset := noControlOffset
	if b.interleaved == nil {
		ctrlOffset = b.regular.ctrlOffset
	}
	var lastControlByte byte
	if ctrlOffset != noControlOffset {
		lastControlByte = b.stream.b[ctrlOffset]
	}

	b.finishStream()
	data := b.stream.b

	// Restore the pre-finalize encoder state; as far as future appends are
	// concerned the flush that completed data never happened.
	b.regular, b.interleaved = saved.regular, saved.interleaved

	if ctrlOffset == noControlOffset {
		b.offset += length
		b.stream.b = nil
	} else {
		// The open control region can still grow words and its count nibble
		// can still change, so it stays live, control byte first. The byte
		// values past it are final even when the flush extended the region.
		keep := make([]byte, 0, length-ctrlOffset)
		keep = append(keep, lastControlByte)
		keep = append(keep, data[ctrlOffset+1:length]...)
		b.stream.b = keep
		b.regular.ctrlOffset = 0
		b.offset += ctrlOffset
	}

	return Diff{Data: data, Offset: prevOffset}
}

func (b *Builder) finishStream() {
	if b.interleaved != nil {
		b.flushInterleaved()
	} else {
		b.regular.flush(&b.stream)
	}
	b.stream.appendByte(0)
}

func (b *Builder) ensureLive() {
	if b.finalized {
		panic("colpack/column: builder already finalized - cannot append or emit after Finalize or Detach")
	}
}

// builderState is the deep copy Intermediate restores after its transient
// finalize.
type builderState struct {
	regular     encodingState
	interleaved *interleavedState
}

func (b *Builder) snapshot() builderState {
	s := builderState{regular: b.regular.clone()}
	if b.interleaved != nil {
		s.interleaved = b.interleaved.clone()
	}

	return s
}
