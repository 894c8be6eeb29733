package column

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colpack/colpack/element"
)

// requireIntermediateSplice appends the batches with an emission after each,
// splicing every Diff into out at its offset. After each emission out must be
// a complete decodable binary for the elements so far, and the final out must
// match what one uninterrupted Finalize would have produced.
func requireIntermediateSplice(t *testing.T, batches ...[]element.Element) {
	t.Helper()

	live := NewBuilder()
	ref := NewBuilder()
	var out []byte
	var appended []element.Element

	prevOffset := -1
	for _, batch := range batches {
		for _, el := range batch {
			live.Append(el)
			ref.Append(el)
			appended = append(appended, el)
		}

		d := live.Intermediate()
		require.GreaterOrEqual(t, d.Offset, 0)
		require.GreaterOrEqual(t, d.Offset, prevOffset, "offsets must not move backwards")
		require.LessOrEqual(t, d.Offset, len(out), "offset past the spliced stream")
		prevOffset = d.Offset

		out = append(out[:d.Offset], d.Data...)
		requireDecodes(t, out, appended...)
	}

	require.Equal(t, ref.Finalize(), out)
}

func TestIntermediate_SingleEmission(t *testing.T) {
	requireIntermediateSplice(t, int64Run(0, 10))
}

func TestIntermediate_EmptyBuilder(t *testing.T) {
	b := NewBuilder()
	d := b.Intermediate()
	require.Equal(t, 0, d.Offset)
	require.Equal(t, []byte{0x00}, d.Data)
}

func TestIntermediate_EmissionPerElement(t *testing.T) {
	els := int64Run(0, 50)
	batches := make([][]element.Element, len(els))
	for i, el := range els {
		batches[i] = []element.Element{el}
	}

	requireIntermediateSplice(t, batches...)
}

func TestIntermediate_AcrossControlBoundaries(t *testing.T) {
	// Each batch fills past a 120-value control region so the open region
	// closes between emissions.
	requireIntermediateSplice(t,
		int64Run(0, 119),
		int64Run(119, 5),
		int64Run(124, 250))
}

func TestIntermediate_RLERunSplit(t *testing.T) {
	run := func(n int) []element.Element {
		els := make([]element.Element, n)
		for i := range n {
			els[i] = element.Int64(9)
		}

		return els
	}

	requireIntermediateSplice(t, run(70), run(70), run(130))
}

func TestIntermediate_DoubleRescaleBetweenEmissions(t *testing.T) {
	requireIntermediateSplice(t,
		[]element.Element{element.Double(1), element.Double(2), element.Double(3)},
		[]element.Element{element.Double(3.5), element.Double(4.25)},
		[]element.Element{element.Double(5)})
}

func TestIntermediate_HolesAndTypeChange(t *testing.T) {
	requireIntermediateSplice(t,
		int64Run(0, 5),
		[]element.Element{element.Missing(), element.Missing(), element.Missing()},
		[]element.Element{element.String("a"), element.String("b")},
		int64Run(5, 3))
}

func TestIntermediate_NoNewAppendsBetweenCalls(t *testing.T) {
	live := NewBuilder()
	ref := NewBuilder()
	for _, el := range int64Run(0, 20) {
		live.Append(el)
		ref.Append(el)
	}

	var out []byte
	for range 3 {
		d := live.Intermediate()
		out = append(out[:d.Offset], d.Data...)
	}

	require.Equal(t, ref.Finalize(), out)
}

func TestIntermediate_InterleavedObjects(t *testing.T) {
	row := func(i int) element.Element {
		return element.Object(
			element.F("a", element.Int32(int32(i))),
			element.F("b", element.Double(float64(i)+0.5)),
		)
	}

	first := make([]element.Element, 0, 10)
	for i := range 10 {
		first = append(first, row(i))
	}
	second := make([]element.Element, 0, 10)
	for i := 10; i < 20; i++ {
		second = append(second, row(i))
	}

	requireIntermediateSplice(t, first, second)
}

func TestIntermediate_FinalizeAfterwardsPanics(t *testing.T) {
	b := NewBuilder()
	b.Append(element.Int64(1))
	b.Intermediate()
	b.Append(element.Int64(2))

	msg := "colpack/column: Finalize after Intermediate - emit the remainder with a final Intermediate call"
	require.PanicsWithValue(t, msg, func() { b.Finalize() })
}
