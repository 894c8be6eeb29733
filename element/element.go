package element

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Type identifies the kind of value an Element holds.
//
// The numeric values are part of the column wire format: a literal element is
// written as its type tag followed by an empty name terminator and the value
// bytes, so every tag must stay below the first control-byte marker (0x20).
type Type byte

const (
	TypeMissing       Type = 0x00 // absent value; the tag byte doubles as the stream terminator
	TypeDouble        Type = 0x01
	TypeString        Type = 0x02
	TypeObject        Type = 0x03
	TypeArray         Type = 0x04
	TypeBinary        Type = 0x05
	TypeUndefined     Type = 0x06
	TypeUID           Type = 0x07 // 96-bit unique identifier
	TypeBool          Type = 0x08
	TypeDateTime      Type = 0x09 // UTC milliseconds since epoch
	TypeNull          Type = 0x0A
	TypeRegex         Type = 0x0B
	TypeRef           Type = 0x0C // named reference plus 96-bit identifier
	TypeCode          Type = 0x0D
	TypeSymbol        Type = 0x0E
	TypeCodeWithScope Type = 0x0F
	TypeInt32         Type = 0x10
	TypeTimestamp     Type = 0x11 // seconds in the high 32 bits, increment in the low 32
	TypeInt64         Type = 0x12
	TypeDecimal128    Type = 0x13
)

// maxType is the highest valid type tag.
const maxType = TypeDecimal128

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeMissing:
		return "missing"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binary"
	case TypeUndefined:
		return "undefined"
	case TypeUID:
		return "uid"
	case TypeBool:
		return "bool"
	case TypeDateTime:
		return "datetime"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeRef:
		return "ref"
	case TypeCode:
		return "code"
	case TypeSymbol:
		return "symbol"
	case TypeCodeWithScope:
		return "codewithscope"
	case TypeInt32:
		return "int32"
	case TypeTimestamp:
		return "timestamp"
	case TypeInt64:
		return "int64"
	case TypeDecimal128:
		return "decimal128"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a known type tag.
func (t Type) Valid() bool {
	return t <= maxType
}

// Element is an immutable tagged value: a type tag plus the value's native
// byte encoding. The zero Element is the missing value.
//
// Elements borrow the byte slices handed to constructors; callers must not
// mutate them afterwards. Container encoders that need the bytes beyond one
// call copy them explicitly.
type Element struct {
	typ  Type
	data []byte
}

// Missing returns the absent element.
func Missing() Element {
	return Element{}
}

// Double returns a double element.
func Double(v float64) Element {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))

	return Element{typ: TypeDouble, data: b[:]}
}

// String returns a string element.
func String(s string) Element {
	return Element{typ: TypeString, data: appendLengthString(nil, s)}
}

// Binary returns a binary element with the given subtype byte.
func Binary(subtype byte, payload []byte) Element {
	data := make([]byte, 0, 5+len(payload))
	data = binary.LittleEndian.AppendUint32(data, uint32(len(payload))) //nolint: gosec
	data = append(data, subtype)
	data = append(data, payload...)

	return Element{typ: TypeBinary, data: data}
}

// Undefined returns an undefined element.
func Undefined() Element {
	return Element{typ: TypeUndefined}
}

// UID returns a 96-bit unique identifier element.
func UID(id [12]byte) Element {
	return Element{typ: TypeUID, data: id[:]}
}

// Bool returns a boolean element.
func Bool(v bool) Element {
	if v {
		return Element{typ: TypeBool, data: []byte{1}}
	}

	return Element{typ: TypeBool, data: []byte{0}}
}

// DateTime returns a UTC datetime element from milliseconds since epoch.
func DateTime(millis int64) Element {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(millis)) //nolint: gosec

	return Element{typ: TypeDateTime, data: b[:]}
}

// DateTimeFromTime returns a UTC datetime element from a time.Time,
// truncated to millisecond precision.
func DateTimeFromTime(t time.Time) Element {
	return DateTime(t.UnixMilli())
}

// Null returns a null element.
func Null() Element {
	return Element{typ: TypeNull}
}

// Regex returns a regular expression element. Pattern and options must not
// contain NUL bytes.
func Regex(pattern, options string) Element {
	data := make([]byte, 0, len(pattern)+len(options)+2)
	data = append(data, pattern...)
	data = append(data, 0)
	data = append(data, options...)
	data = append(data, 0)

	return Element{typ: TypeRegex, data: data}
}

// Ref returns a named-reference element pointing at a 96-bit identifier.
func Ref(name string, id [12]byte) Element {
	data := appendLengthString(nil, name)
	data = append(data, id[:]...)

	return Element{typ: TypeRef, data: data}
}

// Code returns a code element.
func Code(s string) Element {
	return Element{typ: TypeCode, data: appendLengthString(nil, s)}
}

// Symbol returns a symbol element.
func Symbol(s string) Element {
	return Element{typ: TypeSymbol, data: appendLengthString(nil, s)}
}

// CodeWithScope returns a scoped-code element. The scope must be an object
// element; any other element panics.
func CodeWithScope(code string, scope Element) Element {
	if scope.typ != TypeObject {
		panic("colpack/element: CodeWithScope scope must be an object")
	}

	body := appendLengthString(nil, code)
	total := 4 + len(body) + len(scope.data)
	data := make([]byte, 0, total)
	data = binary.LittleEndian.AppendUint32(data, uint32(total)) //nolint: gosec
	data = append(data, body...)
	data = append(data, scope.data...)

	return Element{typ: TypeCodeWithScope, data: data}
}

// Int32 returns a 32-bit integer element.
func Int32(v int32) Element {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v)) //nolint: gosec

	return Element{typ: TypeInt32, data: b[:]}
}

// Timestamp returns a timestamp element from seconds and increment.
func Timestamp(seconds, increment uint32) Element {
	return TimestampRaw(uint64(seconds)<<32 | uint64(increment))
}

// TimestampRaw returns a timestamp element from its raw 64-bit form.
func TimestampRaw(v uint64) Element {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)

	return Element{typ: TypeTimestamp, data: b[:]}
}

// Int64 returns a 64-bit integer element.
func Int64(v int64) Element {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v)) //nolint: gosec

	return Element{typ: TypeInt64, data: b[:]}
}

// Decimal128 returns a 128-bit decimal element from its low and high words.
func Decimal128(lo, hi uint64) Element {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], lo)
	binary.LittleEndian.PutUint64(b[8:16], hi)

	return Element{typ: TypeDecimal128, data: b[:]}
}

// Type returns the element's type tag.
func (el Element) Type() Type {
	return el.typ
}

// IsMissing reports whether the element is absent.
func (el Element) IsMissing() bool {
	return el.typ == TypeMissing
}

// Value returns the element's raw value bytes. The slice is shared, not
// copied; callers must not mutate it.
func (el Element) Value() []byte {
	return el.data
}

// Size returns the encoded size of the element as a column literal:
// tag byte, empty name terminator and value bytes.
func (el Element) Size() int {
	return 2 + len(el.data)
}

// AppendLiteralTo appends the element in literal form (tag, empty name
// terminator, value bytes) to dst and returns the extended slice.
func (el Element) AppendLiteralTo(dst []byte) []byte {
	dst = append(dst, byte(el.typ), 0)

	return append(dst, el.data...)
}

// AppendValueTo appends only the value bytes to dst.
func (el Element) AppendValueTo(dst []byte) []byte {
	return append(dst, el.data...)
}

// Equal reports whether two elements have identical type and value bytes.
func (el Element) Equal(other Element) bool {
	return el.typ == other.typ && bytes.Equal(el.data, other.data)
}

// Double returns the element's float64 value. Valid only for TypeDouble.
func (el Element) Double() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(el.data))
}

// Int32 returns the element's int32 value. Valid only for TypeInt32.
func (el Element) Int32() int32 {
	return int32(binary.LittleEndian.Uint32(el.data)) //nolint: gosec
}

// Int64 returns the element's int64 value. Valid only for TypeInt64.
func (el Element) Int64() int64 {
	return int64(binary.LittleEndian.Uint64(el.data)) //nolint: gosec
}

// Bool returns the element's boolean value. Valid only for TypeBool.
func (el Element) Bool() bool {
	return el.data[0] != 0
}

// DateTime returns milliseconds since epoch. Valid only for TypeDateTime.
func (el Element) DateTime() int64 {
	return int64(binary.LittleEndian.Uint64(el.data)) //nolint: gosec
}

// Time returns the datetime value as a time.Time in UTC.
func (el Element) Time() time.Time {
	return time.UnixMilli(el.DateTime()).UTC()
}

// Timestamp returns the raw 64-bit timestamp value. Valid only for
// TypeTimestamp.
func (el Element) Timestamp() uint64 {
	return binary.LittleEndian.Uint64(el.data)
}

// UID returns the 96-bit identifier. Valid only for TypeUID.
func (el Element) UID() [12]byte {
	var id [12]byte
	copy(id[:], el.data)

	return id
}

// StringValue returns the string payload of string, code or symbol elements.
func (el Element) StringValue() string {
	n := int(binary.LittleEndian.Uint32(el.data))
	// n counts the trailing NUL
	return string(el.data[4 : 4+n-1])
}

// Binary returns the subtype byte and payload of a binary element. The
// payload aliases the element's storage.
func (el Element) Binary() (byte, []byte) {
	n := int(binary.LittleEndian.Uint32(el.data))

	return el.data[4], el.data[5 : 5+n]
}

// Decimal128 returns the low and high words of a decimal element.
func (el Element) Decimal128() (lo, hi uint64) {
	return binary.LittleEndian.Uint64(el.data[0:8]), binary.LittleEndian.Uint64(el.data[8:16])
}

// Regex returns the pattern and options of a regex element.
func (el Element) Regex() (pattern, options string) {
	for i, c := range el.data {
		if c == 0 {
			return string(el.data[:i]), string(el.data[i+1 : len(el.data)-1])
		}
	}

	return "", ""
}

// GoString implements fmt.GoStringer for test failure output.
func (el Element) GoString() string {
	return fmt.Sprintf("element.Element{%s, %d bytes}", el.typ, len(el.data))
}

// appendLengthString appends the length-prefixed, NUL-terminated string
// layout shared by string, code and symbol values.
func appendLengthString(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)+1)) //nolint: gosec
	dst = append(dst, s...)

	return append(dst, 0)
}
