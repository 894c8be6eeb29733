package column

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colpack/colpack/element"
)

func TestBuilder_Append_ObjectsInterleave(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1))),
		element.Object(element.F("a", element.Int64(2))),
	}
	data := buildColumn(t, seq...)

	// Marker, reference shape, one leaf region, then both terminators.
	require.Len(t, data, 28)
	require.Equal(t, byte(0xF1), data[0])
	require.Equal(t, byte(0x00), data[len(data)-2])
	require.Equal(t, byte(0x00), data[len(data)-1])

	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_ArraysInterleave(t *testing.T) {
	seq := []element.Element{
		element.Array(element.Int64(1), element.Int64(2)),
		element.Array(element.Int64(3), element.Int64(4)),
	}
	data := buildColumn(t, seq...)

	require.Len(t, data, 48)
	require.Equal(t, byte(0xF2), data[0])

	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_ShapeMergeExpandsReference(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1))),
		element.Object(element.F("b", element.Int64(2))),
		element.Object(element.F("a", element.Int64(3)), element.F("b", element.Int64(4))),
	}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_Append_MissingFieldsBecomeHoles(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1)), element.F("b", element.Int64(2))),
		element.Object(element.F("a", element.Int64(3))),
		element.Object(element.F("b", element.Int64(4))),
	}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_Append_NestedObjectsInterleave(t *testing.T) {
	row := func(x, y, n int64) element.Element {
		return element.Object(
			element.F("u", element.Object(
				element.F("x", element.Int64(x)), element.F("y", element.Int64(y)),
			)),
			element.F("n", element.Int64(n)),
		)
	}
	seq := []element.Element{row(1, 2, 3), row(5, 6, 7), row(5, 8, 11)}
	data := buildColumn(t, seq...)

	require.Equal(t, byte(0xF1), data[0])
	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_ScalarFlushesInterleaved(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1))),
		element.Object(element.F("a", element.Int64(2))),
		element.Int64(5),
	}
	data := buildColumn(t, seq...)

	require.Equal(t, byte(0xF1), data[0])
	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_RootTypeChangeFlushesInterleaved(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1))),
		element.Object(element.F("a", element.Int64(2))),
		element.Array(element.Int64(1)),
		element.Array(element.Int64(2)),
	}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_Append_IrreconcilableShapeFlushes(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1))),
		element.Object(element.F("a", element.Object(element.F("b", element.Int64(2))))),
	}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_Skip_DuringDetermineBuffersHole(t *testing.T) {
	obj1 := element.Object(element.F("a", element.Int64(1)))
	obj2 := element.Object(element.F("a", element.Int64(2)))

	b := NewBuilder()
	b.Append(obj1)
	b.Skip()
	b.Append(obj2)
	data := b.Finalize()

	requireDecodes(t, data, obj1, element.Missing(), obj2)
}

func TestBuilder_Skip_WithEmptySubContainerFlushes(t *testing.T) {
	obj := element.Object(element.F("a", element.Int64(1)), element.F("e", element.Object()))

	b := NewBuilder()
	b.Append(obj)
	b.Skip()
	data := b.Finalize()

	require.Equal(t, byte(0xF1), data[0])
	requireDecodes(t, data, obj, element.Missing())
}

func TestBuilder_Append_EmptyContainerStaysRegular(t *testing.T) {
	seq := []element.Element{element.Object(), element.Object()}
	data := buildColumn(t, seq...)

	// Empty containers carry no leaves to interleave, so they stay plain
	// literals in the flat stream.
	require.Equal(t, byte(element.TypeObject), data[0])
	requireDecodes(t, data, seq...)
}

func TestBuilder_Append_CommitAfterBufferBudget(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1))),
		element.Object(element.F("a", element.Int64(2))),
		element.Object(element.F("a", element.Int64(3))),
	}

	b := NewBuilder(WithInterleaveBufferFactor(1))
	for _, el := range seq {
		b.Append(el)
	}

	requireDecodes(t, b.Finalize(), seq...)
}

func TestBuilder_Skip_AfterInterleaveCommit(t *testing.T) {
	obj := func(v int64) element.Element {
		return element.Object(element.F("a", element.Int64(v)))
	}

	b := NewBuilder(WithInterleaveBufferFactor(1))
	b.Append(obj(1))
	b.Append(obj(2))
	b.Append(obj(3))
	b.Skip()
	b.Append(obj(4))

	requireDecodes(t, b.Finalize(), obj(1), obj(2), obj(3), element.Missing(), obj(4))
}

func TestBuilder_Append_ShapeMismatchAfterCommit(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1))),
		element.Object(element.F("a", element.Int64(2))),
		element.Object(element.F("a", element.Int64(3))),
		element.Object(element.F("c", element.Int64(9))),
	}

	b := NewBuilder(WithInterleaveBufferFactor(1))
	for _, el := range seq {
		b.Append(el)
	}

	requireDecodes(t, b.Finalize(), seq...)
}

func TestBuilder_Append_MixedLeafTypesInterleave(t *testing.T) {
	row := func(n int64, s string, ok bool) element.Element {
		return element.Object(
			element.F("n", element.Int64(n)),
			element.F("s", element.String(s)),
			element.F("ok", element.Bool(ok)),
		)
	}
	seq := []element.Element{row(1, "a", true), row(2, "b", true), row(3, "b", false)}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_Append_LeafTypeChangeInsideInterleave(t *testing.T) {
	seq := []element.Element{
		element.Object(element.F("a", element.Int64(1))),
		element.Object(element.F("a", element.String("s"))),
		element.Object(element.F("a", element.Int64(2))),
	}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_Append_ManyRowsInterleaved(t *testing.T) {
	var seq []element.Element
	for i := 0; i < 200; i++ {
		seq = append(seq, element.Object(
			element.F("seq", element.Int64(int64(i))),
			element.F("val", element.Double(float64(i)/4)),
		))
	}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}
