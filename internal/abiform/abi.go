// Package abiform builds call forms from contract ABIs and parses the
// string form state back into call arguments.
package abiform

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Param mirrors an ABI JSON parameter, keeping internalType which the
// go-ethereum model drops.
type Param struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	InternalType string  `json:"internalType,omitempty"`
	Components   []Param `json:"components,omitempty"`
	Indexed      bool    `json:"indexed,omitempty"`
}

type Entry struct {
	Type            string  `json:"type"`
	Name            string  `json:"name,omitempty"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs,omitempty"`
	StateMutability string  `json:"stateMutability,omitempty"`
	Anonymous       bool    `json:"anonymous,omitempty"`
}

// Function is a callable ABI entry. Method is the name go-ethereum binds it
// under; overloads get a numeric suffix.
type Function struct {
	Entry
	Method        string
	InheritedFrom string
}

func (f Function) IsView() bool {
	return f.StateMutability == "view" || f.StateMutability == "pure"
}

func (f Function) IsPayable() bool {
	return f.StateMutability == "payable"
}

type ABI struct {
	Entries   []Entry
	Functions []Function
}

func ParseABI(data []byte) (ABI, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return ABI{}, fmt.Errorf("abi: %w", err)
	}
	a := ABI{Entries: entries}
	used := map[string]bool{}
	for _, e := range entries {
		if e.Type != "function" {
			continue
		}
		method := abi.ResolveNameConflict(e.Name, func(s string) bool { return used[s] })
		used[method] = true
		a.Functions = append(a.Functions, Function{Entry: e, Method: method})
	}
	return a, nil
}

// Function finds a function by bound method name, falling back to the
// first function with that ABI name.
func (a ABI) Function(name string) (Function, bool) {
	for _, f := range a.Functions {
		if f.Method == name {
			return f, true
		}
	}
	for _, f := range a.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Overload finds the function named name whose input types are exactly
// types.
func (a ABI) Overload(name string, types ...string) (Function, bool) {
	for _, f := range a.Functions {
		if f.Name != name || len(f.Inputs) != len(types) {
			continue
		}
		match := true
		for i, p := range f.Inputs {
			if p.Type != types[i] {
				match = false
				break
			}
		}
		if match {
			return f, true
		}
	}
	return Function{}, false
}

func (a ABI) Constructor() (Entry, bool) {
	for _, e := range a.Entries {
		if e.Type == "constructor" {
			return e, true
		}
	}
	return Entry{}, false
}

func (a ABI) Has(names ...string) bool {
	return len(a.Missing(names...)) == 0
}

// Missing lists the names with no matching function.
func (a ABI) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if _, ok := a.Function(n); !ok {
			out = append(out, n)
		}
	}
	return out
}

// hookFunctions are callbacks invoked by the world contract; they are never
// offered as user calls.
var hookFunctions = map[string]struct{}{
	"onBeforeCallSystem": {},
	"onAfterCallSystem":  {},
	"onRegisterHook":     {},
	"onUnregisterHook":   {},
	"canUnregister":      {},
}

func IsHookFunction(name string) bool {
	_, ok := hookFunctions[name]
	return ok
}

// Catalog groups an ABI's functions the way a contract page lays them out.
type Catalog struct {
	// Variables are views without inputs, polled and shown as values.
	Variables []Function
	// Reads are views that take inputs.
	Reads []Function
	// Writes change state. Hook callbacks are excluded.
	Writes []Function
}

// NewCatalog splits a's functions. inherited maps function names to the
// parent contract that declares them.
func NewCatalog(a ABI, inherited map[string]string) Catalog {
	var c Catalog
	for _, f := range a.Functions {
		f.InheritedFrom = inherited[f.Name]
		switch {
		case f.IsView() && len(f.Inputs) == 0:
			c.Variables = append(c.Variables, f)
		case f.IsView():
			c.Reads = append(c.Reads, f)
		case !IsHookFunction(f.Name):
			c.Writes = append(c.Writes, f)
		}
	}
	sortInherited(c.Variables)
	sortInherited(c.Reads)
	sortInherited(c.Writes)
	return c
}

// sortInherited puts the contract's own functions first, then inherited
// ones by parent name descending.
func sortInherited(fns []Function) {
	sort.SliceStable(fns, func(i, j int) bool {
		a, b := fns[i].InheritedFrom, fns[j].InheritedFrom
		if a == "" || b == "" {
			return a == "" && b != ""
		}
		return a > b
	})
}

// InputKey names the form slot of an input:
// <fn>_<name or input_<i>_>_<internalType or type>.
func InputKey(fn string, p Param, index int) string {
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("input_%d_", index)
	}
	typ := p.InternalType
	if typ == "" {
		typ = p.Type
	}
	return fn + "_" + name + "_" + typ
}

func componentName(p Param, index int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("input_%d_", index)
}

// ABIType converts p to a go-ethereum type.
func (p Param) ABIType() (abi.Type, error) {
	return abi.NewType(p.Type, p.InternalType, marshaling(p.Components))
}

func marshaling(ps []Param) []abi.ArgumentMarshaling {
	if len(ps) == 0 {
		return nil
	}
	out := make([]abi.ArgumentMarshaling, len(ps))
	for i, p := range ps {
		out[i] = abi.ArgumentMarshaling{
			Name:         p.Name,
			Type:         p.Type,
			InternalType: p.InternalType,
			Components:   marshaling(p.Components),
			Indexed:      p.Indexed,
		}
	}
	return out
}
