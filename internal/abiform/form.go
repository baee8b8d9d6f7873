package abiform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Form holds the string-encoded state of one function's inputs.
type Form struct {
	fn     Function
	keys   []string
	values map[string]string
}

func NewForm(fn Function) *Form {
	f := &Form{fn: fn, values: map[string]string{}}
	for i, in := range fn.Inputs {
		k := InputKey(fn.Name, in, i)
		f.keys = append(f.keys, k)
		f.values[k] = ""
	}
	return f
}

func (f *Form) Function() Function { return f.fn }

// Keys returns the input keys in ABI order.
func (f *Form) Keys() []string { return append([]string(nil), f.keys...) }

func (f *Form) Get(key string) string { return f.values[key] }

func (f *Form) Set(key, value string) error {
	if _, ok := f.values[key]; !ok {
		return fmt.Errorf("%s has no input %q", f.fn.Name, key)
	}
	f.values[key] = value
	return nil
}

// SetInput sets the i-th input.
func (f *Form) SetInput(i int, value string) error {
	if i < 0 || i >= len(f.keys) {
		return fmt.Errorf("%s has no input %d", f.fn.Name, i)
	}
	f.values[f.keys[i]] = value
	return nil
}

// SetNamed sets the input with the given parameter name.
func (f *Form) SetNamed(name, value string) error {
	for i, in := range f.fn.Inputs {
		if in.Name == name {
			return f.SetInput(i, value)
		}
	}
	return fmt.Errorf("%s has no input named %q", f.fn.Name, name)
}

// Args decodes every input in ABI order.
func (f *Form) Args() ([]any, error) {
	out := make([]any, 0, len(f.keys))
	for i, in := range f.fn.Inputs {
		v, err := ParseValue(in, f.values[f.keys[i]])
		if err != nil {
			return nil, fmt.Errorf("%s: input %d: %w", f.fn.Name, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// TupleForm edits a tuple input component by component. Its JSON is the
// string stored in the parent form.
type TupleForm struct {
	param  Param
	keys   []string
	values []json.RawMessage
}

func NewTupleForm(p Param) *TupleForm {
	t := &TupleForm{param: p}
	name := p.Name
	if name == "" {
		name = "tuple"
	}
	for i, c := range p.Components {
		t.keys = append(t.keys, InputKey(name, c, i))
		t.values = append(t.values, json.RawMessage(`""`))
	}
	return t
}

func (t *TupleForm) Keys() []string { return append([]string(nil), t.keys...) }

// Set stores a component's form string.
func (t *TupleForm) Set(i int, value string) error {
	if i < 0 || i >= len(t.values) {
		return fmt.Errorf("tuple %s has no component %d", t.param.Name, i)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	t.values[i] = b
	return nil
}

// Value returns a component as a form string. Non-string JSON values are
// returned as their JSON text.
func (t *TupleForm) Value(i int) string {
	raw := t.values[i]
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// JSON encodes the components keyed by name, in ABI order.
func (t *TupleForm) JSON() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.param.Components {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(componentName(c, i))
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(t.values[i])
	}
	buf.WriteByte('}')
	return buf.String()
}

// Load replaces the component values from a parent's JSON string. Named
// components missing from the JSON are cleared.
func (t *TupleForm) Load(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return err
	}
	for i, c := range t.param.Components {
		v, ok := fields[componentName(c, i)]
		if !ok {
			v = json.RawMessage(`""`)
		}
		t.values[i] = compact(v)
	}
	return nil
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
