// Package biomestest runs an in-memory Biomes world on a chaintest backend.
package biomestest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/biomes"
	"biomesxp.io/internal/chain/chaintest"
)

type hookKey struct {
	player common.Address
	system [32]byte
}

// World keeps hook and delegation tables keyed by the sending account.
type World struct {
	Address common.Address

	abi abi.ABI

	mu          sync.Mutex
	hooks       map[hookKey][][21]byte
	delegations map[[2]common.Address][32]byte
	batches     int
}

func New(b *chaintest.Backend, addr common.Address) *World {
	parsed, err := abi.JSON(strings.NewReader(string(biomes.WorldABI())))
	if err != nil {
		panic(err)
	}
	w := &World{
		Address:     addr,
		abi:         parsed,
		hooks:       map[hookKey][][21]byte{},
		delegations: map[[2]common.Address][32]byte{},
	}
	b.Register(addr, biomes.WorldABI()).
		On("batchCall", w.batchCall).
		On("getOptionalSystemHooks", w.getHooks).
		On("registerDelegation", w.registerDelegation).
		On("unregisterDelegation", w.unregisterDelegation).
		On("getUserDelegation", w.getUserDelegation)
	return w
}

// Batches counts batchCall transactions.
func (w *World) Batches() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batches
}

// SetHooks overwrites the hooks a player has on a system.
func (w *World) SetHooks(player common.Address, system string, entries ...[21]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks[hookKey{player, biomes.SystemID(system)}] = entries
}

func (w *World) batchCall(msg chaintest.Msg, args []any) ([]any, error) {
	calls := reflect.ValueOf(args[0])
	w.mu.Lock()
	w.batches++
	w.mu.Unlock()
	out := make([][]byte, 0, calls.Len())
	for i := 0; i < calls.Len(); i++ {
		c := calls.Index(i)
		system := c.FieldByName("SystemId").Interface().([32]byte)
		if biomes.ResourceID(system) != biomes.RegistrationSystem {
			return nil, fmt.Errorf("biomestest: unexpected system %x", system)
		}
		data := c.FieldByName("CallData").Bytes()
		m, err := w.abi.MethodById(data[:4])
		if err != nil {
			return nil, err
		}
		in, err := m.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		switch m.Name {
		case "registerOptionalSystemHook":
			w.addHook(msg.From, in[0].([32]byte), biomes.HookEntry(in[1].(common.Address), biomes.HookBitmap(in[2].(uint8))))
		case "unregisterOptionalSystemHook":
			w.removeHook(msg.From, in[0].([32]byte), in[1].(common.Address))
		default:
			return nil, errors.New("biomestest: unsupported system call " + m.Name)
		}
		out = append(out, nil)
	}
	return []any{out}, nil
}

func (w *World) addHook(player common.Address, system [32]byte, entry [21]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := hookKey{player, system}
	w.hooks[k] = append(w.hooks[k], entry)
}

func (w *World) removeHook(player common.Address, system [32]byte, hook common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := hookKey{player, system}
	kept := w.hooks[k][:0]
	for _, e := range w.hooks[k] {
		if common.BytesToAddress(e[:20]) != hook {
			kept = append(kept, e)
		}
	}
	w.hooks[k] = kept
}

func (w *World) getHooks(_ chaintest.Msg, args []any) ([]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entries := append([][21]byte{}, w.hooks[hookKey{args[0].(common.Address), args[1].([32]byte)}]...)
	return []any{entries}, nil
}

func (w *World) registerDelegation(msg chaintest.Msg, args []any) ([]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delegations[[2]common.Address{msg.From, args[0].(common.Address)}] = args[1].([32]byte)
	return nil, nil
}

func (w *World) unregisterDelegation(msg chaintest.Msg, args []any) ([]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.delegations, [2]common.Address{msg.From, args[0].(common.Address)})
	return nil, nil
}

func (w *World) getUserDelegation(_ chaintest.Msg, args []any) ([]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return []any{w.delegations[[2]common.Address{args[0].(common.Address), args[1].(common.Address)}]}, nil
}
