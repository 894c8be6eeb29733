package column

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colpack/colpack/element"
)

func TestBuilder_Append_DoubleSameScale(t *testing.T) {
	data := buildColumn(t, element.Double(1.0), element.Double(2.0), element.Double(3.0))

	// Whole numbers encode at multiplier 1.
	require.Len(t, data, 20)
	require.Equal(t, byte(0x90), data[10])

	requireDecodes(t, data, element.Double(1.0), element.Double(2.0), element.Double(3.0))
}

func TestBuilder_Append_DoubleRescalesPendingInPlace(t *testing.T) {
	data := buildColumn(t, element.Double(1.0), element.Double(2.0), element.Double(1.25))

	// The pending delta re-encodes at multiplier 100 without flushing,
	// so a single region at the wider scale holds all three values.
	require.Len(t, data, 20)
	require.Equal(t, byte(0xB0), data[10])

	requireDecodes(t, data, element.Double(1.0), element.Double(2.0), element.Double(1.25))
}

func TestBuilder_Append_DoubleScaleWidening(t *testing.T) {
	seq := []element.Element{
		element.Double(1.5), element.Double(1.25), element.Double(1.125), element.Double(1.0625),
	}
	data := buildColumn(t, seq...)

	require.Len(t, data, 20)
	require.Equal(t, byte(0xC0), data[10])

	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_DoubleMemoryScale(t *testing.T) {
	seq := []element.Element{
		element.Double(math.Pi), element.Double(math.E), element.Double(math.Sqrt2),
	}
	data := buildColumn(t, seq...)

	// No decimal multiplier represents these, so deltas run over the raw
	// bit patterns. Each delta is too wide to share a packed word.
	require.Len(t, data, 28)
	require.Equal(t, byte(0x81), data[10])

	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_DoubleRescaleFlushesBlock(t *testing.T) {
	var seq []element.Element
	for i := 1; i <= 10; i++ {
		seq = append(seq, element.Double(float64(i)))
	}
	seq = append(seq, element.Double(math.Pi))
	data := buildColumn(t, seq...)

	// Rebuilding nine pending deltas at the raw-bits scale overflows a
	// word, so the run flushes at multiplier 1 and a new region starts.
	require.Len(t, data, 37)
	require.Equal(t, byte(0x91), data[10])
	require.Equal(t, byte(0x80), data[27])

	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_DoubleSkipResetsScaleSearch(t *testing.T) {
	seq := []element.Element{element.Double(1.0)}
	for i := 2; i <= 31; i++ {
		seq = append(seq, element.Double(float64(i)))
	}
	seq = append(seq, element.Missing(), element.Double(31.5))
	data := buildColumn(t, seq...)

	// The flushed block stays at multiplier 1; the hole and the final
	// value land in a fresh region at multiplier 10.
	require.Len(t, data, 29)
	require.Equal(t, byte(0x90), data[10])
	require.Equal(t, byte(0xA0), data[19])

	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_DoubleUnencodableDeltasRestart(t *testing.T) {
	nan := element.Double(math.NaN())
	negZero := element.Double(math.Copysign(0, -1))
	seq := []element.Element{element.Double(0.0), negZero, nan, element.Double(0.0)}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_RoundTrip_Doubles(t *testing.T) {
	tests := []struct {
		name string
		seq  []float64
	}{
		{name: "tenths", seq: []float64{0.1, 0.2, 0.3}},
		{name: "negative quarters", seq: []float64{-2.5, -2.25, -2.0}},
		{name: "equal run", seq: []float64{7.5, 7.5, 7.5, 7.5}},
		{name: "scale narrows then widens", seq: []float64{0.01, 1.0, 2.0, 0.001}},
		{name: "large magnitudes", seq: []float64{1e12, 1e12 + 1, 1e12 + 3}},
		{name: "infinity forces raw bits", seq: []float64{1.0, math.Inf(1), 2.0}},
		{name: "crossing zero", seq: []float64{-1.5, 0.0, 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			els := make([]element.Element, len(tt.seq))
			for i, v := range tt.seq {
				els[i] = element.Double(v)
			}

			requireDecodes(t, buildColumn(t, els...), els...)
		})
	}
}
