// Package display turns decoded contract results into typed, renderable
// shapes: entity ids, areas, builds, leaderboards and so on.
//
// Results are first normalized into a small value tree:
//
//	nil | bool | int64 | float64 | *big.Int | string | []any | *Tuple
//
// Integers up to 48 bits become int64 numbers, wider ones stay *big.Int.
// Addresses and byte strings become 0x-prefixed hex.
package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Tuple is a decoded struct or JSON object with its fields in declaration order.
type Tuple struct {
	Names  []string
	Values []any
}

func NewTuple() *Tuple { return &Tuple{} }

func (t *Tuple) Set(name string, v any) *Tuple {
	for i, n := range t.Names {
		if n == name {
			t.Values[i] = v
			return t
		}
	}
	t.Names = append(t.Names, name)
	t.Values = append(t.Values, v)
	return t
}

func (t *Tuple) Get(name string) (any, bool) {
	if t == nil {
		return nil, false
	}
	for i, n := range t.Names {
		if n == name {
			return t.Values[i], true
		}
	}
	return nil, false
}

func (t *Tuple) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// MarshalJSON keeps field order and writes big integers as strings.
func (t *Tuple) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range t.Names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(n)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := marshalNoEscape(Replace(t.Values[i]))
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Replace rewrites big integers as decimal strings so the value can be
// encoded as JSON without losing precision.
func Replace(v any) any {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Replace(e)
		}
		return out
	default:
		return v
	}
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FromABI normalizes values unpacked by go-ethereum for the given outputs.
// A single output is returned bare; several outputs become a []any.
func FromABI(args abi.Arguments, values []any) (any, error) {
	if len(args) != len(values) {
		return nil, fmt.Errorf("display: %d outputs, %d values", len(args), len(values))
	}
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) == 1 {
		return fromABIType(args[0].Type, reflect.ValueOf(values[0]))
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := fromABIType(a.Type, reflect.ValueOf(values[i]))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fromABIType(t abi.Type, rv reflect.Value) (any, error) {
	for rv.IsValid() && (rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer) && rv.Type() != bigIntType {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, nil
	}
	switch t.T {
	case abi.IntTy, abi.UintTy:
		return fromInteger(t, rv)
	case abi.BoolTy:
		return rv.Bool(), nil
	case abi.StringTy:
		return rv.String(), nil
	case abi.AddressTy:
		addr, ok := rv.Interface().(common.Address)
		if !ok {
			return nil, fmt.Errorf("display: address value is %s", rv.Type())
		}
		return addr.Hex(), nil
	case abi.FixedBytesTy, abi.HashTy, abi.FunctionTy, abi.BytesTy:
		return hexutil.Encode(byteSlice(rv)), nil
	case abi.SliceTy, abi.ArrayTy:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := fromABIType(*t.Elem, rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case abi.TupleTy:
		if rv.Kind() != reflect.Struct || rv.NumField() != len(t.TupleElems) {
			return nil, fmt.Errorf("display: tuple value is %s", rv.Type())
		}
		tup := &Tuple{}
		for i, elem := range t.TupleElems {
			v, err := fromABIType(*elem, rv.Field(i))
			if err != nil {
				return nil, err
			}
			tup.Names = append(tup.Names, t.TupleRawNames[i])
			tup.Values = append(tup.Values, v)
		}
		return tup, nil
	default:
		return nil, fmt.Errorf("display: unsupported abi type %s", t.String())
	}
}

var bigIntType = reflect.TypeOf((*big.Int)(nil))

func fromInteger(t abi.Type, rv reflect.Value) (any, error) {
	if rv.Type() == bigIntType {
		b := new(big.Int).Set(rv.Interface().(*big.Int))
		if t.Size <= 48 {
			return b.Int64(), nil
		}
		return b, nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t.Size <= 48 {
			return rv.Int(), nil
		}
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if t.Size <= 48 {
			return int64(rv.Uint()), nil
		}
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("display: integer value is %s", rv.Type())
}

func byteSlice(rv reflect.Value) []byte {
	if rv.Kind() == reflect.Slice {
		return append([]byte(nil), rv.Bytes()...)
	}
	b := make([]byte, rv.Len())
	reflect.Copy(reflect.ValueOf(b), rv)
	return b
}

// FromJSON decodes JSON into the value tree, keeping object key order.
// Integers that fit a float64 exactly become int64, others stay *big.Int.
func FromJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("display: trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch x := tok.(type) {
	case json.Delim:
		switch x {
		case '{':
			tup := &Tuple{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("display: object key is %T", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				tup.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return tup, nil
		case '[':
			out := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		}
		return nil, fmt.Errorf("display: unexpected delimiter %v", x)
	case json.Number:
		return fromNumber(x)
	default:
		// nil, bool, string
		return x, nil
	}
}

func fromNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		b, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("display: bad number %q", s)
		}
		if b.IsInt64() && math.Abs(float64(b.Int64())) <= maxSafeInteger {
			return b.Int64(), nil
		}
		return b, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	if f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger {
		return int64(f), nil
	}
	return f, nil
}

const maxSafeInteger = 1<<53 - 1
