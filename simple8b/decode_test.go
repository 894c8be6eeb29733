package simple8b

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colpack/colpack/errs"
)

func TestCountValues(t *testing.T) {
	tests := []struct {
		name string
		word uint64
		want int
	}{
		{"single zero", SingleZeroWord, 1},
		{"single skip", SingleSkipWord, 1},
		{"sixty one-bit slots", 0x01, 60},
		{"rle multiplier one", 0x0F, 120},
		{"rle multiplier two", 0x1F, 240},
		{"rle multiplier sixteen", 0xFF, 1920},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountValues(tt.word)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := CountValues(0x10)
	require.ErrorIs(t, err, errs.ErrInvalidSelector)
}

func TestVisit64_RLELookbackAcrossCalls(t *testing.T) {
	// A run-length word repeats the last slot of the closest preceding
	// base word, even when that word was decoded in an earlier call.
	last := SingleZeroWord

	err := Visit64(wordBytes([]uint64{SingleValueWord(77)}), &last, func(v uint64, ok bool) error {
		require.True(t, ok)
		require.Equal(t, uint64(77), v)
		return nil
	})
	require.NoError(t, err)

	count := 0
	err = Visit64(wordBytes([]uint64{uint64(rleSelector)}), &last, func(v uint64, ok bool) error {
		require.True(t, ok)
		require.Equal(t, uint64(77), v)
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 120, count)
}

func TestVisit64_LeadingRLERepeatsZero(t *testing.T) {
	last := SingleZeroWord
	count := 0

	err := Visit64(wordBytes([]uint64{uint64(rleSelector)}), &last, func(v uint64, ok bool) error {
		require.True(t, ok)
		require.Equal(t, uint64(0), v)
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 120, count)
}

func TestVisit64_InvalidSelector(t *testing.T) {
	last := SingleZeroWord
	err := Visit64(wordBytes([]uint64{0x10}), &last, func(uint64, bool) error {
		t.Fatal("callback reached for invalid word")
		return nil
	})
	require.ErrorIs(t, err, errs.ErrInvalidSelector)
}

func TestVisit64_TruncatedBlocks(t *testing.T) {
	last := SingleZeroWord
	err := Visit64(make([]byte, 7), &last, func(uint64, bool) error {
		return nil
	})
	require.ErrorIs(t, err, errs.ErrInvalidBinary)
}

func TestVisit64_CallbackErrorStopsWalk(t *testing.T) {
	sentinel := errors.New("stop")
	last := SingleZeroWord
	calls := 0

	err := Visit64(wordBytes([]uint64{0x01}), &last, func(uint64, bool) error {
		calls++
		if calls == 3 {
			return sentinel
		}
		return nil
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 3, calls)
}

func TestSum64_FoldsZigZagDeltas(t *testing.T) {
	var b Builder64
	var words []uint64
	sink := wordSink(&words)

	// Deltas +5, -3, +2 with a hole in between: the hole contributes
	// nothing.
	require.True(t, b.Append(ZigZagEncode64(5), sink))
	require.True(t, b.Append(ZigZagEncode64(-3), sink))
	b.Skip(sink)
	require.True(t, b.Append(ZigZagEncode64(2), sink))
	b.Flush(sink)

	last := SingleZeroWord
	sum, err := Sum64(wordBytes(words), &last)
	require.NoError(t, err)
	require.Equal(t, int64(4), sum)
}

func TestPrefixSum64_FoldsSecondOrderDeltas(t *testing.T) {
	var b Builder64
	var words []uint64
	sink := wordSink(&words)

	// Two packed +1 deltas of deltas with a skip in between: the running
	// delta moves 0 -> 1 -> 2 and the value moves by 1 + 2 = 3.
	require.True(t, b.Append(ZigZagEncode64(1), sink))
	b.Skip(sink)
	require.True(t, b.Append(ZigZagEncode64(1), sink))
	b.Flush(sink)

	prefix := int64(0)
	last := SingleZeroWord
	sum, err := PrefixSum64(wordBytes(words), &prefix, &last)
	require.NoError(t, err)
	require.Equal(t, int64(3), sum)
	require.Equal(t, int64(2), prefix)
}

func TestSum128_FoldsZigZagDeltas(t *testing.T) {
	var b Builder128
	var words []uint64
	sink := wordSink(&words)

	// A single -1 delta sums to the 128-bit two's complement of one.
	require.True(t, b.Append(Uint128From(1).Sub(Uint128From(2)).ZigZag(), sink))
	b.Flush(sink)

	last := SingleZeroWord
	sum, err := Sum128(wordBytes(words), &last)
	require.NoError(t, err)
	require.Equal(t, Uint128{Lo: ^uint64(0), Hi: ^uint64(0)}, sum)
}

func TestZigZag64_RoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 2, -2, 63, -64, 1<<40 + 3, -(1<<40 + 3), 1<<62 - 1, -(1 << 62)}
	for _, v := range values {
		require.Equal(t, v, ZigZagDecode64(ZigZagEncode64(v)))
	}

	// Small magnitudes of either sign stay small.
	require.Equal(t, uint64(0), ZigZagEncode64(0))
	require.Equal(t, uint64(1), ZigZagEncode64(-1))
	require.Equal(t, uint64(2), ZigZagEncode64(1))
	require.Equal(t, uint64(3), ZigZagEncode64(-2))
}
