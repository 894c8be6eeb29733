package element

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/colpack/colpack/errs"
)

// JSON bridge used by the colpack CLI. Object field order is significant for
// interleaving, so decoding goes through json.Decoder tokens instead of maps.

// FromJSON converts a JSON document into an element. Numbers become Int32,
// Int64 or Double depending on their value; objects preserve field order.
func FromJSON(data []byte) (Element, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	el, err := decodeJSONValue(dec)
	if err != nil {
		return Element{}, err
	}
	if dec.More() {
		return Element{}, fmt.Errorf("%w: trailing JSON content", errs.ErrInvalidElement)
	}

	return el, nil
}

func decodeJSONValue(dec *json.Decoder) (Element, error) {
	tok, err := dec.Token()
	if err != nil {
		return Element{}, fmt.Errorf("%w: %s", errs.ErrInvalidElement, err)
	}

	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Element, error) {
	switch v := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		return numberElement(v), nil
	case json.Delim:
		switch v {
		case '{':
			b := NewObjectBuilder()
			for dec.More() {
				nameTok, err := dec.Token()
				if err != nil {
					return Element{}, fmt.Errorf("%w: %s", errs.ErrInvalidElement, err)
				}
				name, _ := nameTok.(string)
				field, err := decodeJSONValue(dec)
				if err != nil {
					return Element{}, err
				}
				b.Append(name, field)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Element{}, fmt.Errorf("%w: %s", errs.ErrInvalidElement, err)
			}

			return b.Build(), nil
		case '[':
			b := NewArrayBuilder()
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return Element{}, err
				}
				b.Append(item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Element{}, fmt.Errorf("%w: %s", errs.ErrInvalidElement, err)
			}

			return b.Build(), nil
		}
	}

	return Element{}, fmt.Errorf("%w: unsupported JSON token %v", errs.ErrInvalidElement, tok)
}

func numberElement(n json.Number) Element {
	if i, err := n.Int64(); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return Int32(int32(i))
		}

		return Int64(i)
	}

	f, _ := n.Float64()

	return Double(f)
}

// ToJSON renders an element as JSON. Types without a native JSON form use a
// single-key wrapper object (e.g. {"$uid": "hex"}), mirroring common extended
// JSON conventions.
func ToJSON(el Element) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendJSON(&buf, el); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func appendJSON(buf *bytes.Buffer, el Element) error {
	switch el.Type() {
	case TypeMissing:
		buf.WriteString(`{"$missing":true}`)
	case TypeNull, TypeUndefined:
		buf.WriteString("null")
	case TypeBool:
		buf.WriteString(strconv.FormatBool(el.Bool()))
	case TypeInt32:
		buf.WriteString(strconv.FormatInt(int64(el.Int32()), 10))
	case TypeInt64:
		buf.WriteString(strconv.FormatInt(el.Int64(), 10))
	case TypeDouble:
		f := el.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			fmt.Fprintf(buf, `{"$double":%q}`, strconv.FormatFloat(f, 'g', -1, 64))
			return nil
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case TypeString, TypeCode, TypeSymbol:
		writeJSONString(buf, el.StringValue())
	case TypeDateTime:
		fmt.Fprintf(buf, `{"$date":%d}`, el.DateTime())
	case TypeTimestamp:
		fmt.Fprintf(buf, `{"$timestamp":%d}`, el.Timestamp())
	case TypeUID:
		id := el.UID()
		fmt.Fprintf(buf, `{"$uid":"%x"}`, id[:])
	case TypeBinary:
		subtype, payload := el.Binary()
		fmt.Fprintf(buf, `{"$binary":{"base64":%q,"subType":%d}}`,
			base64.StdEncoding.EncodeToString(payload), subtype)
	case TypeDecimal128:
		lo, hi := el.Decimal128()
		fmt.Fprintf(buf, `{"$decimal128":"%016x%016x"}`, hi, lo)
	case TypeRegex:
		pattern, options := el.Regex()
		buf.WriteString(`{"$regex":`)
		writeJSONString(buf, pattern)
		buf.WriteString(`,"$options":`)
		writeJSONString(buf, options)
		buf.WriteByte('}')
	case TypeObject:
		buf.WriteByte('{')
		first := true
		it := el.Iter()
		for {
			name, field, ok := it.Next()
			if !ok {
				break
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			writeJSONString(buf, name)
			buf.WriteByte(':')
			if err := appendJSON(buf, field); err != nil {
				return err
			}
		}
		if err := it.Err(); err != nil {
			return err
		}
		buf.WriteByte('}')
	case TypeArray:
		buf.WriteByte('[')
		first := true
		it := el.Iter()
		for {
			_, item, ok := it.Next()
			if !ok {
				break
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := appendJSON(buf, item); err != nil {
				return err
			}
		}
		if err := it.Err(); err != nil {
			return err
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: no JSON form for %s", errs.ErrInvalidElement, el.Type())
	}

	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
