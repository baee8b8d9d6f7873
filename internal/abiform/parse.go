package abiform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var bigIntType = reflect.TypeOf((*big.Int)(nil))

var trueValues = map[string]struct{}{
	"true": {}, "1": {}, "0x1": {}, "0x01": {}, "0x0001": {},
}

// ParseValue decodes one form string into the Go value go-ethereum packs
// for p. Tuples are JSON objects keyed by component name; arrays are JSON
// arrays or comma-separated lists.
func ParseValue(p Param, s string) (any, error) {
	t, err := p.ABIType()
	if err != nil {
		return nil, err
	}
	rv, err := fromString(t, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", componentName(p, 0), err)
	}
	return rv.Interface(), nil
}

// ParseWei reads a transaction value. Empty means zero.
func ParseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := parseInteger(s)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}

// parseInteger reads a decimal integer, or hex with a 0x prefix. Leading
// zeros stay decimal and digit separators are rejected.
func parseInteger(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, s = 16, s[2:]
	}
	if s == "" || strings.ContainsAny(s, "_+-") {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, false
	}
	if neg {
		v.Neg(v)
	}
	return v, true
}

var etherPattern = regexp.MustCompile(`^(\d*)(?:\.(\d*))?$`)

const etherDecimals = 18

// ParseEther reads a decimal ether amount ("0.0015") into wei.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	m := etherPattern.FindStringSubmatch(s)
	if m == nil || m[1]+m[2] == "" {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	frac := strings.TrimRight(m[2], "0")
	if len(frac) > etherDecimals {
		return nil, fmt.Errorf("ether amount %q has more than %d decimals", s, etherDecimals)
	}
	digits := m[1] + frac + strings.Repeat("0", etherDecimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	return v, nil
}

func fromString(t abi.Type, s string) (reflect.Value, error) {
	switch t.T {
	case abi.TupleTy:
		return fromJSON(t, json.RawMessage(s))
	case abi.SliceTy, abi.ArrayTy:
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "[") {
			return fromJSON(t, json.RawMessage(trimmed))
		}
		var parts []string
		if trimmed != "" {
			parts = strings.Split(trimmed, ",")
		}
		return fromList(t, len(parts), func(i int) (reflect.Value, error) {
			return fromString(*t.Elem, strings.TrimSpace(parts[i]))
		})
	case abi.IntTy, abi.UintTy:
		v, ok := parseInteger(s)
		if !ok {
			return reflect.Value{}, fmt.Errorf("invalid integer %q", s)
		}
		return fromInteger(t, v)
	case abi.BoolTy:
		_, ok := trueValues[strings.TrimSpace(s)]
		return reflect.ValueOf(ok), nil
	case abi.AddressTy:
		s = strings.TrimSpace(s)
		if !common.IsHexAddress(s) {
			return reflect.Value{}, fmt.Errorf("invalid address %q", s)
		}
		return reflect.ValueOf(common.HexToAddress(s)), nil
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(strings.TrimSpace(s))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid bytes%d %q: %w", t.Size, s, err)
		}
		if len(b) != t.Size {
			return reflect.Value{}, fmt.Errorf("bytes%d needs %d bytes, got %d", t.Size, t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr, nil
	case abi.BytesTy:
		b, err := hexutil.Decode(strings.TrimSpace(s))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid bytes %q: %w", s, err)
		}
		return reflect.ValueOf(b), nil
	case abi.StringTy:
		return reflect.ValueOf(s), nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported type %s", t.String())
}

func fromJSON(t abi.Type, raw json.RawMessage) (reflect.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return reflect.Value{}, fmt.Errorf("empty value for %s", t.String())
	}
	if raw[0] == '"' && t.T != abi.StringTy {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return reflect.Value{}, err
		}
		return fromString(t, s)
	}
	switch t.T {
	case abi.TupleTy:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return reflect.Value{}, fmt.Errorf("%s: %w", t.String(), err)
		}
		out := reflect.New(t.GetType()).Elem()
		for i, elem := range t.TupleElems {
			name := t.TupleRawNames[i]
			fv, ok := fields[name]
			if !ok {
				return reflect.Value{}, fmt.Errorf("missing tuple field %q", name)
			}
			v, err := fromJSON(*elem, fv)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%s: %w", name, err)
			}
			out.Field(i).Set(v)
		}
		return out, nil
	case abi.SliceTy, abi.ArrayTy:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return reflect.Value{}, fmt.Errorf("%s: %w", t.String(), err)
		}
		return fromList(t, len(items), func(i int) (reflect.Value, error) {
			return fromJSON(*t.Elem, items[i])
		})
	case abi.IntTy, abi.UintTy:
		v, ok := new(big.Int).SetString(string(raw), 10)
		if !ok {
			return reflect.Value{}, fmt.Errorf("invalid integer %s", raw)
		}
		return fromInteger(t, v)
	case abi.BoolTy:
		switch string(raw) {
		case "true", "1":
			return reflect.ValueOf(true), nil
		case "false", "0":
			return reflect.ValueOf(false), nil
		}
		return reflect.Value{}, fmt.Errorf("invalid bool %s", raw)
	case abi.StringTy:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s), nil
	}
	return reflect.Value{}, fmt.Errorf("%s expects a string, got %s", t.String(), raw)
}

func fromList(t abi.Type, n int, elem func(i int) (reflect.Value, error)) (reflect.Value, error) {
	var out reflect.Value
	if t.T == abi.ArrayTy {
		if n != t.Size {
			return reflect.Value{}, fmt.Errorf("%s needs %d elements, got %d", t.String(), t.Size, n)
		}
		out = reflect.New(t.GetType()).Elem()
	} else {
		out = reflect.MakeSlice(t.GetType(), n, n)
	}
	for i := 0; i < n; i++ {
		v, err := elem(i)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("[%d]: %w", i, err)
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func fromInteger(t abi.Type, v *big.Int) (reflect.Value, error) {
	if t.T == abi.UintTy && v.Sign() < 0 {
		return reflect.Value{}, fmt.Errorf("negative value %s for %s", v, t.String())
	}
	limit := t.Size
	if t.T == abi.IntTy {
		limit--
	}
	if v.Sign() >= 0 && v.BitLen() > limit {
		return reflect.Value{}, fmt.Errorf("%s overflows %s", v, t.String())
	}
	if v.Sign() < 0 && new(big.Int).Add(v, big.NewInt(1)).BitLen() > limit {
		return reflect.Value{}, fmt.Errorf("%s overflows %s", v, t.String())
	}
	rt := t.GetType()
	if rt == bigIntType {
		return reflect.ValueOf(v), nil
	}
	out := reflect.New(rt).Elem()
	if t.T == abi.UintTy {
		out.SetUint(v.Uint64())
	} else {
		out.SetInt(v.Int64())
	}
	return out, nil
}
