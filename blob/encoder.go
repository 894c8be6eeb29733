package blob

import (
	"fmt"
	"hash/crc32"

	"github.com/colpack/colpack/column"
	"github.com/colpack/colpack/compress"
	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/errs"
	"github.com/colpack/colpack/format"
	"github.com/colpack/colpack/internal/collision"
	"github.com/colpack/colpack/internal/hash"
	"github.com/colpack/colpack/internal/options"
	"github.com/colpack/colpack/internal/pool"
	"github.com/colpack/colpack/section"
)

// initialIndexCapacity is the initial capacity for the index entries slice.
// Small enough to avoid waste for small blobs, large enough to avoid early
// reallocations.
const initialIndexCapacity = 16

// Column is one named column inside an Encoder. It wraps a column.Builder
// and counts logical elements for the blob index; append through it, not
// through a detached Builder.
type Column struct {
	*column.Builder

	name  string
	count int
}

// Append appends one element to the column.
func (c *Column) Append(el element.Element) {
	c.Builder.Append(el)
	c.count++
}

// Skip appends a hole to the column.
func (c *Column) Skip() {
	c.Builder.Skip()
	c.count++
}

// Name returns the column name.
func (c *Column) Name() string {
	return c.name
}

// Count returns the number of logical elements appended so far, holes
// included.
func (c *Column) Count() int {
	return c.count
}

// Encoder assembles many named columns into a blob. Columns are created with
// Column and filled in any order; Finish finalizes every column and packs
// header, index and payload into one binary.
type Encoder struct {
	header  *section.Header
	tracker *collision.Tracker
	columns map[uint64]*Column
	order   []uint64
	colOpts []column.Option

	finished bool
}

// Option configures an Encoder.
type Option = options.Option[*Encoder]

// WithCompression sets the payload compression codec.
func WithCompression(compression format.CompressionType) Option {
	return options.New(func(e *Encoder) error {
		if _, err := compress.GetCodec(compression); err != nil {
			return err
		}
		e.header.Flag.SetCompression(compression)

		return nil
	})
}

// WithLittleEndian sets little-endian byte order for header and index.
func WithLittleEndian() Option {
	return options.NoError(func(e *Encoder) {
		e.header.Flag.WithLittleEndian()
	})
}

// WithBigEndian sets big-endian byte order for header and index.
func WithBigEndian() Option {
	return options.NoError(func(e *Encoder) {
		e.header.Flag.WithBigEndian()
	})
}

// WithChecksum enables or disables the payload CRC32 checksum.
func WithChecksum(enabled bool) Option {
	return options.NoError(func(e *Encoder) {
		e.header.Flag.SetChecksum(enabled)
	})
}

// WithColumnOptions sets column options applied to every column builder the
// encoder creates, e.g. column.WithInterleaveBufferFactor.
func WithColumnOptions(opts ...column.Option) Option {
	return options.NoError(func(e *Encoder) {
		e.colOpts = append(e.colOpts, opts...)
	})
}

// NewEncoder creates a blob encoder. Defaults: little-endian, checksum
// enabled, no payload compression.
func NewEncoder(opts ...Option) (*Encoder, error) {
	e := &Encoder{
		header:  section.NewHeader(),
		tracker: collision.NewTracker(),
		columns: make(map[uint64]*Column),
		order:   make([]uint64, 0, initialIndexCapacity),
	}
	if err := options.Apply(e, opts...); err != nil {
		return nil, err
	}

	return e, nil
}

// Column returns the column builder for the given name, creating it on first
// use. Returns errs.ErrInvalidColumnName for an empty name and
// errs.ErrHashCollision when a different name already claimed the same field
// ID.
func (e *Encoder) Column(name string) (*Column, error) {
	e.ensureLive("Column")

	id := hash.ID(name)
	if err := e.tracker.Track(name, id); err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}

	if col, ok := e.columns[id]; ok {
		return col, nil
	}

	col := &Column{Builder: column.NewBuilder(e.colOpts...), name: name}
	e.columns[id] = col
	e.order = append(e.order, id)

	return col, nil
}

// ColumnCount returns the number of columns created so far.
func (e *Encoder) ColumnCount() int {
	return len(e.order)
}

// Finish finalizes every column and assembles the blob. The encoder is
// sealed afterwards; further Column or Finish calls panic.
func (e *Encoder) Finish() (Blob, error) {
	e.ensureLive("Finish")
	e.finished = true

	payload := pool.GetBlobBuffer()
	defer pool.PutBlobBuffer(payload)

	index := make([]section.IndexEntry, 0, len(e.order))
	for _, id := range e.order {
		col := e.columns[id]

		bin := col.Builder.Finalize()

		entry := section.NewIndexEntry(id, col.count)
		entry.Offset = payload.Len()
		entry.Length = len(bin)
		payload.MustWrite(bin)
		index = append(index, entry)
	}

	if int64(payload.Len()) > int64(section.MaxOffset) {
		return Blob{}, errs.ErrBlobTooLarge
	}

	codec, err := compress.GetCodec(e.header.Flag.Compression())
	if err != nil {
		return Blob{}, err
	}

	stored, err := codec.Compress(payload.Bytes())
	if err != nil {
		return Blob{}, fmt.Errorf("compress payload: %w", err)
	}

	e.header.ColumnCount = uint32(len(index)) //nolint: gosec
	e.header.IndexOffset = section.IndexOffset
	e.header.PayloadOffset = uint32(section.IndexOffset + len(index)*section.IndexEntrySize) //nolint: gosec
	e.header.PayloadLength = uint32(payload.Len())                                           //nolint: gosec

	if e.header.Flag.HasChecksum() {
		e.header.Checksum = crc32.Checksum(stored, castagnoli)
	} else {
		e.header.Checksum = 0
	}

	engine := e.header.Flag.GetEndianEngine()
	data := make([]byte, int(e.header.PayloadOffset)+len(stored))
	copy(data, e.header.Bytes())

	offset := section.IndexOffset
	for i := range index {
		offset = index[i].WriteToSlice(data, offset, engine)
	}
	copy(data[offset:], stored)

	return Blob{data: data, header: *e.header, index: index}, nil
}

func (e *Encoder) ensureLive(op string) {
	if e.finished {
		panic("colpack/blob: " + op + " after Finish")
	}
}
