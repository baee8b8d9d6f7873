package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/display"
)

// ErrNoData is returned when a call to a method with outputs comes back empty,
// usually because nothing is deployed at the address.
var ErrNoData = errors.New("no data returned from contract")

// Contract binds an ABI to an address for reads and call-data packing.
type Contract struct {
	Name    string
	Address common.Address
	ABI     abi.ABI
	Form    abiform.ABI

	caller Caller
	from   common.Address
}

func NewContract(name string, addr common.Address, rawABI []byte, caller Caller) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(string(rawABI)))
	if err != nil {
		return nil, fmt.Errorf("%s abi: %w", name, err)
	}
	form, err := abiform.ParseABI(rawABI)
	if err != nil {
		return nil, fmt.Errorf("%s abi: %w", name, err)
	}
	return &Contract{Name: name, Address: addr, ABI: parsed, Form: form, caller: caller}, nil
}

// WithFrom returns a copy whose calls carry from as msg.sender.
func (c *Contract) WithFrom(from common.Address) *Contract {
	cp := *c
	cp.from = from
	return &cp
}

func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}
	return data, nil
}

// Call runs a read and returns the unpacked outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	m, ok := c.ABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s: unknown function %q", c.Name, method)
	}
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	to := c.Address
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}
	if len(out) == 0 && len(m.Outputs) > 0 {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, ErrNoData)
	}
	vals, err := m.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: unpack: %w", c.Name, method, err)
	}
	return vals, nil
}

// Read runs a read and normalizes the result into a display value tree.
func (c *Contract) Read(ctx context.Context, method string, args ...any) (any, error) {
	vals, err := c.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return display.FromABI(c.ABI.Methods[method].Outputs, vals)
}

// CallInto runs a read and copies the outputs into dst (a pointer, or a
// pointer to a struct for multiple outputs).
func (c *Contract) CallInto(ctx context.Context, dst any, method string, args ...any) error {
	vals, err := c.Call(ctx, method, args...)
	if err != nil {
		return err
	}
	if err := c.ABI.Methods[method].Outputs.Copy(dst, vals); err != nil {
		return fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}
	return nil
}

// NewForm starts an empty input form for the named function.
func (c *Contract) NewForm(name string) (*abiform.Form, error) {
	fn, ok := c.Form.Function(name)
	if !ok {
		return nil, fmt.Errorf("%s: unknown function %q", c.Name, name)
	}
	return abiform.NewForm(fn), nil
}

// Overload returns the bound method name of the overload of name taking
// exactly the given input types.
func (c *Contract) Overload(name string, types ...string) (string, bool) {
	f, ok := c.Form.Overload(name, types...)
	return f.Method, ok
}
