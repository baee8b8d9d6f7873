package biomes

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/chain"
)

// HookBitmap selects which optional hook callbacks are enabled.
type HookBitmap uint8

const (
	BeforeCallSystem         HookBitmap = 1
	AfterCallSystem          HookBitmap = 2
	BeforeAndAfterCallSystem HookBitmap = 3
)

// anyCallData registers a hook for every call data.
var anyCallData [32]byte

// SystemCallData is one entry of a world batchCall.
type SystemCallData struct {
	SystemID [32]byte `abi:"systemId"`
	CallData []byte   `abi:"callData"`
}

// SystemCall is a world function routed through a system.
type SystemCall struct {
	System   ResourceID
	Function string
	Args     []any
}

type World struct {
	contract *chain.Contract
	tx       *chain.Transactor
}

// NewWorld binds the world at addr. tx may be nil for read-only use.
func NewWorld(addr common.Address, caller chain.Caller, tx *chain.Transactor) (*World, error) {
	c, err := chain.NewContract("World", addr, worldABI, caller)
	if err != nil {
		return nil, err
	}
	return &World{contract: c, tx: tx}, nil
}

func (w *World) Address() common.Address { return w.contract.Address }

// EncodeSystemCalls packs each call against the world ABI.
func (w *World) EncodeSystemCalls(calls []SystemCall) ([]SystemCallData, error) {
	out := make([]SystemCallData, 0, len(calls))
	for _, c := range calls {
		data, err := w.contract.Pack(c.Function, c.Args...)
		if err != nil {
			return nil, err
		}
		out = append(out, SystemCallData{SystemID: c.System, CallData: data})
	}
	return out, nil
}

// BatchCall sends all calls in one transaction.
func (w *World) BatchCall(ctx context.Context, calls []SystemCall, onConfirmed func(*types.Receipt)) (*types.Receipt, error) {
	encoded, err := w.EncodeSystemCalls(calls)
	if err != nil {
		return nil, err
	}
	return w.write(ctx, "batchCall", onConfirmed, encoded)
}

func (w *World) write(ctx context.Context, method string, onConfirmed func(*types.Receipt), args ...any) (*types.Receipt, error) {
	if w.tx == nil {
		return nil, fmt.Errorf("world %s: %w", method, chain.ErrNoSigner)
	}
	return w.tx.Write(ctx, w.contract, method, chain.WriteOptions{OnConfirmed: onConfirmed}, args...)
}
