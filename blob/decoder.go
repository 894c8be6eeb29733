package blob

import (
	"fmt"
	"hash/crc32"
	"iter"

	"github.com/colpack/colpack/column"
	"github.com/colpack/colpack/compress"
	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/errs"
	"github.com/colpack/colpack/section"
)

// Decoder parses a blob binary and exposes its columns. Construction
// validates the header, verifies the checksum and decompresses the payload;
// column access afterwards is cheap slicing.
type Decoder struct {
	header  section.Header
	index   []section.IndexEntry
	byID    map[uint64]int
	payload []byte
}

// NewDecoder parses and validates a blob binary.
func NewDecoder(data []byte) (*Decoder, error) {
	header, err := section.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}

	if int64(header.PayloadOffset) > int64(len(data)) {
		return nil, fmt.Errorf("%w: payload offset %d past end of %d bytes",
			errs.ErrInvalidHeader, header.PayloadOffset, len(data))
	}

	stored := data[header.PayloadOffset:]
	if header.Flag.HasChecksum() {
		if sum := crc32.Checksum(stored, castagnoli); sum != header.Checksum {
			return nil, fmt.Errorf("%w: got %#08x, header says %#08x",
				errs.ErrChecksumMismatch, sum, header.Checksum)
		}
	}

	codec, err := compress.GetCodec(header.Flag.Compression())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCompression, header.Flag.Compression())
	}

	payload, err := codec.Decompress(stored)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress payload: %v", errs.ErrInvalidBinary, err)
	}
	if len(payload) != int(header.PayloadLength) {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d",
			errs.ErrInvalidBinary, len(payload), header.PayloadLength)
	}

	engine := header.Flag.GetEndianEngine()
	count := int(header.ColumnCount)
	index := make([]section.IndexEntry, 0, count)
	byID := make(map[uint64]int, count)

	prev := 0
	for i := range count {
		entryData := data[section.IndexOffset+i*section.IndexEntrySize:]
		entry, err := section.ParseIndexEntry(entryData, engine)
		if err != nil {
			return nil, err
		}
		if entry.Offset < prev || entry.Offset > len(payload) {
			return nil, fmt.Errorf("%w: column %d offset %d out of order",
				errs.ErrInvalidIndexEntry, i, entry.Offset)
		}
		if _, dup := byID[entry.FieldID]; dup {
			return nil, fmt.Errorf("%w: duplicate field ID %#016x",
				errs.ErrInvalidIndexEntry, entry.FieldID)
		}

		// Fill in the previous entry's derived length now that the next
		// offset is known.
		if i > 0 {
			index[i-1].Length = entry.Offset - index[i-1].Offset
		}
		prev = entry.Offset

		byID[entry.FieldID] = i
		index = append(index, entry)
	}
	if count > 0 {
		index[count-1].Length = len(payload) - index[count-1].Offset
	}

	return &Decoder{header: header, index: index, byID: byID, payload: payload}, nil
}

// Header returns the parsed blob header.
func (d *Decoder) Header() section.Header {
	return d.header
}

// ColumnCount returns the number of columns in the blob.
func (d *Decoder) ColumnCount() int {
	return len(d.index)
}

// FieldIDs returns the field IDs of all columns in payload order.
func (d *Decoder) FieldIDs() []uint64 {
	ids := make([]uint64, len(d.index))
	for i := range d.index {
		ids[i] = d.index[i].FieldID
	}

	return ids
}

// Index returns the parsed index entries in payload order, with derived
// lengths filled in.
func (d *Decoder) Index() []section.IndexEntry {
	return d.index
}

// Column returns a column decoder for the named column.
func (d *Decoder) Column(name string) (*column.Decoder, error) {
	col, err := d.ColumnByID(FieldID(name))
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}

	return col, nil
}

// ColumnByID returns a column decoder for the column with the given field ID.
func (d *Decoder) ColumnByID(id uint64) (*column.Decoder, error) {
	i, ok := d.byID[id]
	if !ok {
		return nil, errs.ErrColumnNotFound
	}
	entry := d.index[i]

	return column.NewDecoder(d.payload[entry.Offset : entry.Offset+entry.Length]), nil
}

// All returns an iterator over the named column's elements. Decode errors
// end the iteration early; use Column directly when they must be observed.
func (d *Decoder) All(name string) (iter.Seq[element.Element], error) {
	col, err := d.Column(name)
	if err != nil {
		return nil, err
	}

	return col.All(), nil
}
