package biomes

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// HookEntry is the 21-byte value the world stores per registered hook.
func HookEntry(hook common.Address, bitmap HookBitmap) [21]byte {
	var v [21]byte
	copy(v[:20], hook.Bytes())
	v[20] = byte(bitmap)
	return v
}

// Hooks manages an experience's optional system hooks.
type Hooks struct {
	World   *World
	Hook    common.Address
	Systems []string
	Bitmap  HookBitmap
}

// Registered reports whether player has the hook with the exact bitmap on
// every system.
func (h Hooks) Registered(ctx context.Context, player common.Address) (bool, error) {
	want := HookEntry(h.Hook, h.Bitmap)
	for _, name := range h.Systems {
		var hooks [][21]byte
		if err := h.World.contract.CallInto(ctx, &hooks, "getOptionalSystemHooks", player, [32]byte(SystemID(name)), anyCallData); err != nil {
			return false, fmt.Errorf("hooks %s: %w", name, err)
		}
		found := false
		for _, e := range hooks {
			if bytes.Equal(e[:], want[:]) {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func (h Hooks) Register(ctx context.Context, onConfirmed func(*types.Receipt)) (*types.Receipt, error) {
	calls := make([]SystemCall, 0, len(h.Systems))
	for _, name := range h.Systems {
		calls = append(calls, SystemCall{
			System:   RegistrationSystem,
			Function: "registerOptionalSystemHook",
			Args:     []any{[32]byte(SystemID(name)), h.Hook, uint8(h.Bitmap), anyCallData},
		})
	}
	return h.World.BatchCall(ctx, calls, onConfirmed)
}

func (h Hooks) Unregister(ctx context.Context, onConfirmed func(*types.Receipt)) (*types.Receipt, error) {
	calls := make([]SystemCall, 0, len(h.Systems))
	for _, name := range h.Systems {
		calls = append(calls, SystemCall{
			System:   RegistrationSystem,
			Function: "unregisterOptionalSystemHook",
			Args:     []any{[32]byte(SystemID(name)), h.Hook, anyCallData},
		})
	}
	return h.World.BatchCall(ctx, calls, onConfirmed)
}
