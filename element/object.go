package element

import (
	"encoding/binary"
	"fmt"
	"iter"
	"strconv"

	"github.com/colpack/colpack/errs"
)

// Object value layout:
//
//	int32 total size (including the size field and the terminator)
//	fields: tag byte, NUL-terminated name, value bytes
//	0x00 terminator
//
// Arrays share the layout with decimal index strings as names. The layout is
// self delimiting, which lets interleaving write a reference object verbatim
// and lets lock-step traversal walk two objects without materializing them.

// Field is one named value inside an object.
type Field struct {
	Name  string
	Value Element
}

// F is shorthand for constructing a Field.
func F(name string, value Element) Field {
	return Field{Name: name, Value: value}
}

// Object returns an object element with the given fields in order.
func Object(fields ...Field) Element {
	b := NewObjectBuilder()
	for _, f := range fields {
		b.Append(f.Name, f.Value)
	}

	return b.Build()
}

// Array returns an array element with the given values in order.
func Array(values ...Element) Element {
	b := NewArrayBuilder()
	for _, v := range values {
		b.Append(v)
	}

	return b.Build()
}

// ObjectBuilder assembles an object element field by field, preserving
// insertion order.
type ObjectBuilder struct {
	buf  []byte
	done bool
}

// NewObjectBuilder creates an empty object builder.
func NewObjectBuilder() *ObjectBuilder {
	return &ObjectBuilder{buf: make([]byte, 4, 64)}
}

// Append adds a field. Appending a missing element is a no-op so decoders can
// elide holes without branching at every call site.
func (b *ObjectBuilder) Append(name string, el Element) *ObjectBuilder {
	if b.done {
		panic("colpack/element: ObjectBuilder used after Build")
	}
	if el.IsMissing() {
		return b
	}

	b.buf = append(b.buf, byte(el.typ))
	b.buf = append(b.buf, name...)
	b.buf = append(b.buf, 0)
	b.buf = append(b.buf, el.data...)

	return b
}

// Empty reports whether no fields have been appended.
func (b *ObjectBuilder) Empty() bool {
	return len(b.buf) == 4
}

// Build seals the builder and returns the object element.
func (b *ObjectBuilder) Build() Element {
	if b.done {
		panic("colpack/element: ObjectBuilder used after Build")
	}
	b.done = true

	b.buf = append(b.buf, 0)
	binary.LittleEndian.PutUint32(b.buf[0:4], uint32(len(b.buf))) //nolint: gosec

	return Element{typ: TypeObject, data: b.buf}
}

// BuildArray seals the builder and returns the fields as an array element,
// keeping the appended names as element indices. Shape merging uses it to
// rebuild arrays whose indices must not shift.
func (b *ObjectBuilder) BuildArray() Element {
	el := b.Build()
	el.typ = TypeArray

	return el
}

// ArrayBuilder assembles an array element value by value.
type ArrayBuilder struct {
	inner ObjectBuilder
	next  int
}

// NewArrayBuilder creates an empty array builder.
func NewArrayBuilder() *ArrayBuilder {
	return &ArrayBuilder{inner: ObjectBuilder{buf: make([]byte, 4, 64)}}
}

// Append adds the next value. Missing elements are elided, matching
// ObjectBuilder semantics; the index still advances so later values keep
// their positions relative to a reference shape.
func (b *ArrayBuilder) Append(el Element) *ArrayBuilder {
	b.inner.Append(strconv.Itoa(b.next), el)
	b.next++

	return b
}

// Build seals the builder and returns the array element.
func (b *ArrayBuilder) Build() Element {
	el := b.inner.Build()
	el.typ = TypeArray

	return el
}

// FieldIter walks the fields of an object or array element one at a time.
// It is a cursor rather than a range iterator because callers such as
// lock-step traversal advance two objects simultaneously.
type FieldIter struct {
	rest []byte
	err  error
}

// Iter returns a field cursor over an object or array element.
// Iterating any other element type yields nothing.
func (el Element) Iter() *FieldIter {
	if el.typ != TypeObject && el.typ != TypeArray {
		return &FieldIter{}
	}
	if len(el.data) < 5 {
		return &FieldIter{err: fmt.Errorf("%w: object shorter than header", errs.ErrInvalidElement)}
	}

	// Strip the size prefix and trailing terminator.
	return &FieldIter{rest: el.data[4 : len(el.data)-1]}
}

// Next returns the next field. ok is false once the object is exhausted or
// malformed; check Err to distinguish.
func (it *FieldIter) Next() (name string, el Element, ok bool) {
	if it.err != nil || len(it.rest) == 0 {
		return "", Element{}, false
	}

	name, el, rest, err := readField(it.rest)
	if err != nil {
		it.err = err
		return "", Element{}, false
	}
	it.rest = rest

	return name, el, true
}

// Err returns the parse error that stopped iteration, if any.
func (it *FieldIter) Err() error {
	return it.err
}

// Fields returns a range iterator over an object or array element's fields.
// Malformed bytes silently end the iteration; use Iter for error handling.
func (el Element) Fields() iter.Seq2[string, Element] {
	return func(yield func(string, Element) bool) {
		it := el.Iter()
		for {
			name, f, ok := it.Next()
			if !ok || !yield(name, f) {
				return
			}
		}
	}
}

// FieldCount returns the number of fields of an object or array element.
func (el Element) FieldCount() int {
	n := 0
	it := el.Iter()
	for {
		if _, _, ok := it.Next(); !ok {
			return n
		}
		n++
	}
}

// EmptyContainer reports whether el is an object or array with no fields.
func (el Element) EmptyContainer() bool {
	if el.typ != TypeObject && el.typ != TypeArray {
		return false
	}

	return len(el.data) <= 5
}

// readField parses one tag+name+value field from data.
func readField(data []byte) (name string, el Element, rest []byte, err error) {
	typ := Type(data[0])
	if !typ.Valid() || typ == TypeMissing {
		return "", Element{}, nil, fmt.Errorf("%w: bad field tag 0x%02x", errs.ErrInvalidElement, data[0])
	}

	nameEnd := -1
	for i := 1; i < len(data); i++ {
		if data[i] == 0 {
			nameEnd = i
			break
		}
	}
	if nameEnd < 0 {
		return "", Element{}, nil, fmt.Errorf("%w: unterminated field name", errs.ErrInvalidElement)
	}

	value := data[nameEnd+1:]
	size, err := ValueSize(typ, value)
	if err != nil {
		return "", Element{}, nil, err
	}

	return string(data[1:nameEnd]), Element{typ: typ, data: value[:size]}, value[size:], nil
}

// ReadElement parses one literal element (tag, empty name terminator, value
// bytes) from the front of data, returning the element and its encoded size.
func ReadElement(data []byte) (Element, int, error) {
	if len(data) < 2 {
		return Element{}, 0, fmt.Errorf("%w: literal shorter than header", errs.ErrUnexpectedEOF)
	}
	if data[0] == 0 {
		return Element{}, 1, nil
	}

	name, el, rest, err := readField(data)
	if err != nil {
		return Element{}, 0, err
	}
	if name != "" {
		return Element{}, 0, fmt.Errorf("%w: literal with non-empty name", errs.ErrInvalidElement)
	}

	return el, len(data) - len(rest), nil
}

// ValueSize computes the byte length of a value of the given type at the
// front of data, validating that data is long enough to hold it.
func ValueSize(typ Type, data []byte) (int, error) {
	need := func(n int) (int, error) {
		if n < 0 || n > len(data) {
			return 0, fmt.Errorf("%w: truncated %s value", errs.ErrUnexpectedEOF, typ)
		}

		return n, nil
	}

	switch typ {
	case TypeMissing, TypeNull, TypeUndefined:
		return 0, nil
	case TypeBool:
		return need(1)
	case TypeInt32:
		return need(4)
	case TypeDouble, TypeDateTime, TypeTimestamp, TypeInt64:
		return need(8)
	case TypeUID:
		return need(12)
	case TypeDecimal128:
		return need(16)
	case TypeString, TypeCode, TypeSymbol:
		if len(data) < 4 {
			return 0, fmt.Errorf("%w: truncated %s header", errs.ErrUnexpectedEOF, typ)
		}
		n := int(int32(binary.LittleEndian.Uint32(data))) //nolint: gosec
		if n < 1 {
			return 0, fmt.Errorf("%w: non-positive %s length", errs.ErrInvalidElement, typ)
		}

		return need(4 + n)
	case TypeBinary:
		if len(data) < 5 {
			return 0, fmt.Errorf("%w: truncated binary header", errs.ErrUnexpectedEOF)
		}
		n := int(int32(binary.LittleEndian.Uint32(data))) //nolint: gosec
		if n < 0 {
			return 0, fmt.Errorf("%w: negative binary length", errs.ErrInvalidElement)
		}

		return need(5 + n)
	case TypeObject, TypeArray, TypeCodeWithScope:
		if len(data) < 4 {
			return 0, fmt.Errorf("%w: truncated %s header", errs.ErrUnexpectedEOF, typ)
		}
		n := int(int32(binary.LittleEndian.Uint32(data))) //nolint: gosec
		if n < 5 {
			return 0, fmt.Errorf("%w: %s size below minimum", errs.ErrInvalidElement, typ)
		}

		return need(n)
	case TypeRegex:
		seen := 0
		for i, c := range data {
			if c == 0 {
				seen++
				if seen == 2 {
					return i + 1, nil
				}
			}
		}

		return 0, fmt.Errorf("%w: unterminated regex", errs.ErrUnexpectedEOF)
	case TypeRef:
		if len(data) < 4 {
			return 0, fmt.Errorf("%w: truncated ref header", errs.ErrUnexpectedEOF)
		}
		n := int(int32(binary.LittleEndian.Uint32(data))) //nolint: gosec
		if n < 1 {
			return 0, fmt.Errorf("%w: non-positive ref length", errs.ErrInvalidElement)
		}

		return need(4 + n + 12)
	default:
		return 0, fmt.Errorf("%w: unknown type tag 0x%02x", errs.ErrInvalidElement, byte(typ))
	}
}
