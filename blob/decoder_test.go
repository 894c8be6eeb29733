package blob

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/errs"
)

func encodeTestBlob(t *testing.T, opts ...Option) []byte {
	t.Helper()

	encoder, err := NewEncoder(opts...)
	require.NoError(t, err)

	col, err := encoder.Column("series")
	require.NoError(t, err)
	for i := range 30 {
		col.Append(element.Int64(int64(i)))
	}

	b, err := encoder.Finish()
	require.NoError(t, err)

	return b.Bytes()
}

func TestDecoderTruncatedHeader(t *testing.T) {
	data := encodeTestBlob(t)

	_, err := NewDecoder(data[:10])
	require.ErrorIs(t, err, errs.ErrInvalidHeader)
}

func TestDecoderCorruptMagic(t *testing.T) {
	data := encodeTestBlob(t)
	data[1] ^= 0xFF

	_, err := NewDecoder(data)
	require.ErrorIs(t, err, errs.ErrInvalidMagic)
}

func TestDecoderChecksumMismatch(t *testing.T) {
	data := encodeTestBlob(t)
	data[len(data)-1] ^= 0x01

	_, err := NewDecoder(data)
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
}

func TestDecoderChecksumDisabled(t *testing.T) {
	data := encodeTestBlob(t, WithChecksum(false))

	decoder, err := NewDecoder(data)
	require.NoError(t, err)
	require.False(t, decoder.Header().Flag.HasChecksum())
}

func TestDecoderColumnNotFound(t *testing.T) {
	data := encodeTestBlob(t)

	decoder, err := NewDecoder(data)
	require.NoError(t, err)

	_, err = decoder.Column("missing")
	require.ErrorIs(t, err, errs.ErrColumnNotFound)

	_, err = decoder.ColumnByID(0xABCDEF)
	require.ErrorIs(t, err, errs.ErrColumnNotFound)
}

func TestDecoderColumnByID(t *testing.T) {
	data := encodeTestBlob(t)

	decoder, err := NewDecoder(data)
	require.NoError(t, err)

	col, err := decoder.ColumnByID(FieldID("series"))
	require.NoError(t, err)

	values, err := col.Values()
	require.NoError(t, err)
	require.Len(t, values, 30)
}

func TestDecoderAll(t *testing.T) {
	data := encodeTestBlob(t)

	decoder, err := NewDecoder(data)
	require.NoError(t, err)

	seq, err := decoder.All("series")
	require.NoError(t, err)

	var got []int64
	for el := range seq {
		got = append(got, el.Int64())
	}
	require.Len(t, got, 30)
	require.Equal(t, int64(0), got[0])
	require.Equal(t, int64(29), got[29])
}
