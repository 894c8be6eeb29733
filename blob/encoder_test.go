package blob

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colpack/colpack/column"
	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/errs"
	"github.com/colpack/colpack/format"
	"github.com/colpack/colpack/section"
)

func TestEncoderRoundTrip(t *testing.T) {
	encoder, err := NewEncoder()
	require.NoError(t, err)

	cpu, err := encoder.Column("cpu.usage")
	require.NoError(t, err)
	mem, err := encoder.Column("mem.usage")
	require.NoError(t, err)

	for i := range 50 {
		cpu.Append(element.Double(float64(i) / 10))
		mem.Append(element.Int64(int64(1024 + i)))
	}
	mem.Skip()

	b, err := encoder.Finish()
	require.NoError(t, err)
	require.Equal(t, 2, b.ColumnCount())
	require.Equal(t, []uint64{FieldID("cpu.usage"), FieldID("mem.usage")}, b.FieldIDs())

	decoder, err := NewDecoder(b.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, decoder.ColumnCount())

	col, err := decoder.Column("cpu.usage")
	require.NoError(t, err)
	values, err := col.Values()
	require.NoError(t, err)
	require.Len(t, values, 50)
	for i, el := range values {
		require.Equal(t, element.TypeDouble, el.Type())
		require.InDelta(t, float64(i)/10, el.Double(), 0)
	}

	col, err = decoder.Column("mem.usage")
	require.NoError(t, err)
	values, err = col.Values()
	require.NoError(t, err)
	require.Len(t, values, 51)
	require.True(t, values[50].IsMissing())

	require.Equal(t, 50, decoder.Index()[0].Count)
	require.Equal(t, 51, decoder.Index()[1].Count)
}

func TestEncoderCompressionCodecs(t *testing.T) {
	codecs := []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
		format.CompressionSnappy,
	}

	for _, codec := range codecs {
		t.Run(codec.String(), func(t *testing.T) {
			encoder, err := NewEncoder(WithCompression(codec))
			require.NoError(t, err)

			col, err := encoder.Column("values")
			require.NoError(t, err)
			for i := range 200 {
				col.Append(element.Int32(int32(i % 7)))
			}

			b, err := encoder.Finish()
			require.NoError(t, err)
			require.Equal(t, codec, b.Header().Flag.Compression())

			decoder, err := NewDecoder(b.Bytes())
			require.NoError(t, err)

			values, err := mustColumn(t, decoder, "values").Values()
			require.NoError(t, err)
			require.Len(t, values, 200)
			for i, el := range values {
				require.Equal(t, int32(i%7), el.Int32())
			}
		})
	}
}

func TestEncoderBigEndianHeader(t *testing.T) {
	encoder, err := NewEncoder(WithBigEndian())
	require.NoError(t, err)

	col, err := encoder.Column("a")
	require.NoError(t, err)
	col.Append(element.Int64(7))

	b, err := encoder.Finish()
	require.NoError(t, err)

	decoder, err := NewDecoder(b.Bytes())
	require.NoError(t, err)
	require.True(t, decoder.Header().Flag.IsBigEndian())

	values, err := mustColumn(t, decoder, "a").Values()
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, int64(7), values[0].Int64())
}

func TestEncoderEmptyBlob(t *testing.T) {
	encoder, err := NewEncoder()
	require.NoError(t, err)

	b, err := encoder.Finish()
	require.NoError(t, err)
	require.Zero(t, b.ColumnCount())
	require.Equal(t, section.HeaderSize, b.Size())

	decoder, err := NewDecoder(b.Bytes())
	require.NoError(t, err)
	require.Zero(t, decoder.ColumnCount())

	_, err = decoder.Column("anything")
	require.ErrorIs(t, err, errs.ErrColumnNotFound)
}

func TestEncoderColumnReuse(t *testing.T) {
	encoder, err := NewEncoder()
	require.NoError(t, err)

	first, err := encoder.Column("a")
	require.NoError(t, err)
	again, err := encoder.Column("a")
	require.NoError(t, err)
	require.Same(t, first, again)
	require.Equal(t, 1, encoder.ColumnCount())
}

func TestEncoderEmptyColumnName(t *testing.T) {
	encoder, err := NewEncoder()
	require.NoError(t, err)

	_, err = encoder.Column("")
	require.ErrorIs(t, err, errs.ErrInvalidColumnName)
}

func TestEncoderColumnOptions(t *testing.T) {
	encoder, err := NewEncoder(WithColumnOptions(column.WithInterleaveBufferFactor(4)))
	require.NoError(t, err)

	col, err := encoder.Column("objects")
	require.NoError(t, err)
	for i := range 20 {
		col.Append(element.Object(
			element.F("a", element.Int32(int32(i))),
			element.F("b", element.Int64(int64(i)*100)),
		))
	}

	b, err := encoder.Finish()
	require.NoError(t, err)

	decoder, err := NewDecoder(b.Bytes())
	require.NoError(t, err)
	values, err := mustColumn(t, decoder, "objects").Values()
	require.NoError(t, err)
	require.Len(t, values, 20)
	for i, el := range values {
		require.Equal(t, element.TypeObject, el.Type())
		expect := element.Object(
			element.F("a", element.Int32(int32(i))),
			element.F("b", element.Int64(int64(i)*100)),
		)
		require.True(t, expect.Equal(el), "object %d", i)
	}
}

func TestEncoderUseAfterFinishPanics(t *testing.T) {
	encoder, err := NewEncoder()
	require.NoError(t, err)

	_, err = encoder.Finish()
	require.NoError(t, err)

	require.Panics(t, func() { _, _ = encoder.Column("late") })
	require.Panics(t, func() { _, _ = encoder.Finish() })
}

func mustColumn(t *testing.T, d *Decoder, name string) *column.Decoder {
	t.Helper()

	col, err := d.Column(name)
	require.NoError(t, err)

	return col
}
