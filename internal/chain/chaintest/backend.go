// Package chaintest is an in-memory chain backend for tests. Contracts are
// ABI stubs whose functions are answered by Go handlers.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"biomesxp.io/internal/chain"
)

// Handler answers a call. msg carries sender and value.
type Handler func(msg Msg, args []any) ([]any, error)

type Msg struct {
	From  common.Address
	Value *big.Int
}

// Sent is a transaction accepted by the backend.
type Sent struct {
	To     common.Address
	Method string
	Args   []any
	Value  *big.Int
}

type Stub struct {
	ABI      abi.ABI
	handlers map[string]Handler
}

// On answers method with h.
func (s *Stub) On(method string, h Handler) *Stub {
	s.handlers[method] = h
	return s
}

// Return answers method with fixed outputs.
func (s *Stub) Return(method string, outs ...any) *Stub {
	return s.On(method, func(Msg, []any) ([]any, error) { return outs, nil })
}

type Backend struct {
	mu        sync.Mutex
	from      common.Address
	contracts map[common.Address]*Stub
	block     uint64
	nonce     uint64
	sent      []Sent
	mined     map[common.Hash]uint64
	reverts   map[string]bool
	deployed  []common.Address
}

func NewBackend(from common.Address) *Backend {
	return &Backend{
		from:      from,
		contracts: map[common.Address]*Stub{},
		block:     1,
		mined:     map[common.Hash]uint64{},
		reverts:   map[string]bool{},
	}
}

// Register installs a contract stub at addr.
func (b *Backend) Register(addr common.Address, rawABI []byte) *Stub {
	parsed, err := abi.JSON(strings.NewReader(string(rawABI)))
	if err != nil {
		panic(fmt.Sprintf("chaintest: abi: %v", err))
	}
	s := &Stub{ABI: parsed, handlers: map[string]Handler{}}
	b.mu.Lock()
	b.contracts[addr] = s
	b.mu.Unlock()
	return s
}

func (b *Backend) From() common.Address { return b.from }

// Revert makes mined transactions calling method fail.
func (b *Backend) Revert(method string) {
	b.mu.Lock()
	b.reverts[method] = true
	b.mu.Unlock()
}

func (b *Backend) SetBlock(n uint64) {
	b.mu.Lock()
	b.block = n
	b.mu.Unlock()
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block, nil
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, errors.New("chaintest: call without target")
	}
	return b.dispatch(*msg.To, Msg{From: msg.From, Value: msg.Value}, msg.Data, nil)
}

func (b *Backend) dispatch(to common.Address, msg Msg, data []byte, sent *Sent) ([]byte, error) {
	b.mu.Lock()
	s, ok := b.contracts[to]
	b.mu.Unlock()
	if !ok {
		// Nothing deployed: empty return data, like a real node.
		return nil, nil
	}
	if len(data) < 4 {
		return nil, errors.New("chaintest: short call data")
	}
	m, err := s.ABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("chaintest: %s: %w", m.Name, err)
	}
	if sent != nil {
		sent.Method = m.RawName
		sent.Args = args
	}
	h, ok := s.handlers[m.Name]
	if !ok {
		if sent != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("chaintest: no handler for %s", m.Name)
	}
	outs, err := h(msg, args)
	if err != nil {
		return nil, err
	}
	return m.Outputs.Pack(outs...)
}

func (b *Backend) Send(ctx context.Context, req chain.TxRequest) (*types.Transaction, error) {
	sent := Sent{To: req.To, Value: req.Value}
	if _, err := b.dispatch(req.To, Msg{From: b.from, Value: req.Value}, req.Data, &sent); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sent)
	to := req.To
	tx := types.NewTx(&types.LegacyTx{Nonce: b.nonce, To: &to, Value: req.Value, Data: req.Data})
	b.nonce++
	status := types.ReceiptStatusSuccessful
	if b.reverts[sent.Method] {
		status = types.ReceiptStatusFailed
	}
	b.mined[tx.Hash()] = status
	return tx, nil
}

func (b *Backend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, ok := b.mined[tx.Hash()]
	if !ok {
		return nil, fmt.Errorf("chaintest: unknown tx %s", tx.Hash().Hex())
	}
	b.block++
	return &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.block),
		GasUsed:     21000,
	}, nil
}

// Deploy records a creation and returns the next contract address.
func (b *Backend) Deploy(ctx context.Context, parsed abi.ABI, bytecode []byte, args ...any) (common.Address, *types.Receipt, error) {
	if _, err := parsed.Pack("", args...); err != nil {
		return common.Address{}, nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	addr := crypto.CreateAddress(b.from, b.nonce)
	b.nonce++
	b.block++
	b.deployed = append(b.deployed, addr)
	b.sent = append(b.sent, Sent{To: addr, Method: "constructor", Args: args})
	return addr, &types.Receipt{Status: types.ReceiptStatusSuccessful, ContractAddress: addr, BlockNumber: new(big.Int).SetUint64(b.block)}, nil
}

// Sent returns the accepted transactions in order.
func (b *Backend) Sent() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Sent(nil), b.sent...)
}

// SentTo filters Sent by method name.
func (b *Backend) SentTo(method string) []Sent {
	var out []Sent
	for _, s := range b.Sent() {
		if s.Method == method {
			out = append(out, s)
		}
	}
	return out
}
