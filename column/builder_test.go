package column

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colpack/colpack/element"
)

// buildColumn appends every element, with missing elements recorded as holes,
// and returns the finalized binary.
func buildColumn(t *testing.T, els ...element.Element) []byte {
	t.Helper()

	b := NewBuilder()
	for _, el := range els {
		b.Append(el)
	}

	return b.Finalize()
}

// requireDecodes asserts that data decodes to exactly the given elements.
func requireDecodes(t *testing.T, data []byte, want ...element.Element) {
	t.Helper()

	got, err := NewDecoder(data).Values()
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		require.True(t, want[i].Equal(got[i]), "element %d: want %#v, got %#v", i, want[i], got[i])
	}
}

func TestBuilder_Finalize_Empty(t *testing.T) {
	data := NewBuilder().Finalize()
	require.Equal(t, []byte{0x00}, data)
	requireDecodes(t, data)
}

func TestBuilder_Append_SingleValueStaysLiteral(t *testing.T) {
	data := buildColumn(t, element.Int64(42))

	want := element.Int64(42).AppendLiteralTo(nil)
	want = append(want, 0x00)
	require.Equal(t, want, data)
	requireDecodes(t, data, element.Int64(42))
}

func TestBuilder_Append_DeltasPackIntoOneWord(t *testing.T) {
	data := buildColumn(t, element.Int64(5), element.Int64(7), element.Int64(9))

	// Literal, one control byte with a single word, terminator.
	require.Len(t, data, 20)
	require.Equal(t, byte(0x80), data[10])

	word := uint64(13) | 4<<4 | 4<<34
	require.Equal(t, word, binary.LittleEndian.Uint64(data[11:19]))
	require.Equal(t, byte(0x00), data[19])

	requireDecodes(t, data, element.Int64(5), element.Int64(7), element.Int64(9))
}

func TestBuilder_Append_RepeatsBecomeRunWord(t *testing.T) {
	els := make([]element.Element, 121)
	for i := range els {
		els[i] = element.Int64(100)
	}
	data := buildColumn(t, els...)

	require.Len(t, data, 20)
	require.Equal(t, byte(0x80), data[10])
	require.Equal(t, uint64(0x0F), binary.LittleEndian.Uint64(data[11:19]))

	requireDecodes(t, data, els...)
}

func TestBuilder_Append_TypeChangeRestartsWithLiteral(t *testing.T) {
	data := buildColumn(t, element.Int64(1), element.Int32(2), element.Bool(true))

	var want []byte
	want = element.Int64(1).AppendLiteralTo(want)
	want = element.Int32(2).AppendLiteralTo(want)
	want = element.Bool(true).AppendLiteralTo(want)
	want = append(want, 0x00)
	require.Equal(t, want, data)

	requireDecodes(t, data, element.Int64(1), element.Int32(2), element.Bool(true))
}

func TestBuilder_Append_MissingEqualsSkip(t *testing.T) {
	viaAppend := buildColumn(t, element.Int64(1), element.Missing(), element.Int64(2))

	b := NewBuilder()
	b.Append(element.Int64(1))
	b.Skip()
	b.Append(element.Int64(2))
	viaSkip := b.Finalize()

	require.Equal(t, viaSkip, viaAppend)
	requireDecodes(t, viaAppend, element.Int64(1), element.Missing(), element.Int64(2))
}

func TestBuilder_Skip_LeadingHoles(t *testing.T) {
	b := NewBuilder()
	b.Skip()
	b.Skip()
	b.Skip()
	data := b.Finalize()

	// No literal: one control region of holes straight away.
	require.Len(t, data, 10)
	require.Equal(t, byte(0x80), data[0])
	requireDecodes(t, data, element.Missing(), element.Missing(), element.Missing())
}

func TestBuilder_Skip_HolesBetweenValues(t *testing.T) {
	seq := []element.Element{element.Int64(1), element.Missing(), element.Int64(3)}
	data := buildColumn(t, seq...)
	require.Len(t, data, 20)
	requireDecodes(t, data, seq...)
}

func TestBuilder_Skip_LongHoleRuns(t *testing.T) {
	seq := []element.Element{element.Int64(5)}
	for i := 0; i < 150; i++ {
		seq = append(seq, element.Missing())
	}
	seq = append(seq, element.Int64(6))

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_Append_LongIncreasingRun(t *testing.T) {
	seq := make([]element.Element, 300)
	for i := range seq {
		seq[i] = element.Int64(int64(i))
	}

	requireDecodes(t, buildColumn(t, seq...), seq...)
}

func TestBuilder_Append_WideDeltasRollControlRegions(t *testing.T) {
	seq := make([]element.Element, 21)
	for i := range seq {
		var v int64
		if i%2 == 1 {
			v = 1 << 50
		}
		seq[i] = element.Int64(v)
	}
	data := buildColumn(t, seq...)

	// Twenty one-value words: a full sixteen-word region then four more.
	require.Len(t, data, 173)
	require.Equal(t, byte(0x8F), data[10])
	require.Equal(t, byte(0x83), data[139])

	requireDecodes(t, data, seq...)
}

func TestBuilder_RoundTrip_ScalarTypes(t *testing.T) {
	uid := func(counter byte) element.Element {
		return element.UID([12]byte{1, 2, 3, 4, 9, 9, 9, 9, 9, 0, 0, counter})
	}
	otherUID := element.UID([12]byte{1, 2, 3, 4, 8, 8, 8, 8, 8, 0, 0, 1})
	scope := element.Object(element.F("y", element.Int32(2)))

	tests := []struct {
		name string
		seq  []element.Element
	}{
		{name: "int32", seq: []element.Element{
			element.Int32(-5), element.Int32(-5), element.Int32(100), element.Int32(7),
		}},
		{name: "int64 with holes", seq: []element.Element{
			element.Int64(10), element.Missing(), element.Int64(12),
		}},
		{name: "bool", seq: []element.Element{
			element.Bool(true), element.Bool(true), element.Bool(false), element.Bool(true),
		}},
		{name: "datetime", seq: []element.Element{
			element.DateTime(1000), element.DateTime(1500), element.DateTime(2000),
		}},
		{name: "timestamp", seq: []element.Element{
			element.Timestamp(1, 0), element.Timestamp(2, 0), element.Timestamp(4, 1),
		}},
		{name: "uid shared unique bytes", seq: []element.Element{
			uid(1), uid(2), uid(4),
		}},
		{name: "uid changed unique bytes", seq: []element.Element{
			uid(1), otherUID,
		}},
		{name: "string short", seq: []element.Element{
			element.String("a"), element.String("b"), element.String("basis"),
		}},
		{name: "string after unencodable literal", seq: []element.Element{
			element.String("this string is longer than sixteen"), element.String("x"),
		}},
		{name: "string repeat of unencodable literal", seq: []element.Element{
			element.String("another string over sixteen bytes"),
			element.String("another string over sixteen bytes"),
		}},
		{name: "code", seq: []element.Element{
			element.Code("f(){}"), element.Code("f(){ }"),
		}},
		{name: "symbol", seq: []element.Element{
			element.Symbol("s"), element.Symbol("s"),
		}},
		{name: "binary same length", seq: []element.Element{
			element.Binary(0, []byte{1, 2, 3}), element.Binary(0, []byte{1, 2, 4}),
		}},
		{name: "binary length change", seq: []element.Element{
			element.Binary(0, []byte{1, 2}), element.Binary(0, []byte{1, 2, 3}),
		}},
		{name: "binary subtype change", seq: []element.Element{
			element.Binary(0, []byte{1, 2}), element.Binary(4, []byte{1, 2}),
		}},
		{name: "binary long repeat", seq: []element.Element{
			element.Binary(0, make([]byte, 20)), element.Binary(0, make([]byte, 20)),
		}},
		{name: "decimal128", seq: []element.Element{
			element.Decimal128(1, 0), element.Decimal128(2, 0), element.Decimal128(2, 1),
		}},
		{name: "null run", seq: []element.Element{
			element.Null(), element.Null(), element.Null(),
		}},
		{name: "undefined", seq: []element.Element{
			element.Undefined(), element.Undefined(),
		}},
		{name: "regex", seq: []element.Element{
			element.Regex("^a.*", "i"), element.Regex("^a.*", "i"), element.Regex("b", ""),
		}},
		{name: "ref", seq: []element.Element{
			element.Ref("other", [12]byte{1}), element.Ref("other", [12]byte{1}),
		}},
		{name: "code with scope", seq: []element.Element{
			element.CodeWithScope("x=1", scope), element.CodeWithScope("x=1", scope),
		}},
		{name: "mixed types", seq: []element.Element{
			element.Int64(1), element.String("a"), element.Int64(2),
			element.Double(0.5), element.Null(), element.Int64(2),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireDecodes(t, buildColumn(t, tt.seq...), tt.seq...)
		})
	}
}

func TestBuilder_Last(t *testing.T) {
	b := NewBuilder()
	require.True(t, b.Last().IsMissing())

	b.Append(element.Int64(7))
	require.True(t, element.Int64(7).Equal(b.Last()))

	b.Skip()
	require.True(t, element.Int64(7).Equal(b.Last()))

	b.Append(element.Object(element.F("a", element.Int32(1))))
	require.True(t, b.Last().IsMissing())
}

func TestBuilder_Finalize_SealsBuilder(t *testing.T) {
	b := NewBuilder()
	b.Append(element.Int64(1))
	b.Finalize()

	msg := "colpack/column: builder already finalized - cannot append or emit after Finalize or Detach"
	require.PanicsWithValue(t, msg, func() { b.Append(element.Int64(2)) })
	require.PanicsWithValue(t, msg, func() { b.Skip() })
	require.PanicsWithValue(t, msg, func() { b.Finalize() })
	require.PanicsWithValue(t, msg, func() { b.Intermediate() })
}

func TestBuilder_Detach_HandsOverBuffer(t *testing.T) {
	b := NewBuilder()
	b.Append(element.Int64(5))

	data := b.Detach()
	require.Equal(t, element.Int64(5).AppendLiteralTo(nil), data)
	require.Panics(t, func() { b.Append(element.Int64(6)) })
}

func TestNewBuilder_InvalidOptionPanics(t *testing.T) {
	require.PanicsWithValue(t, "colpack/column: invalid interleave buffer factor: 0", func() {
		NewBuilder(WithInterleaveBufferFactor(0))
	})
}
