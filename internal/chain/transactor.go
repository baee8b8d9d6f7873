package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/abiform"
)

var (
	// ErrWritePending rejects a write while the same write is in flight.
	ErrWritePending = errors.New("write already pending")
	ErrReverted     = errors.New("transaction reverted")
)

// TxRecord is one submitted transaction and its outcome.
type TxRecord struct {
	Time     time.Time `json:"time"`
	ChainID  uint64    `json:"chain_id,omitempty"`
	Contract string    `json:"contract,omitempty"`
	Method   string    `json:"method,omitempty"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Value    string    `json:"value,omitempty"`
	Hash     string    `json:"hash,omitempty"`
	Status   string    `json:"status"`
	Block    uint64    `json:"block,omitempty"`
	GasUsed  uint64    `json:"gas_used,omitempty"`
	Error    string    `json:"error,omitempty"`
}

const (
	TxSubmitted = "submitted"
	TxConfirmed = "confirmed"
	TxReverted  = "reverted"
	TxFailed    = "failed"
)

// TxRecorder receives a record when a transaction is sent and again when it
// settles.
type TxRecorder interface {
	RecordTx(r TxRecord)
}

type WriteOptions struct {
	Value     *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
	// OnConfirmed runs after a successful receipt.
	OnConfirmed func(*types.Receipt)
}

// Transactor sends contract writes, allowing one in-flight write per
// contract function.
type Transactor struct {
	sender    Sender
	chainID   uint64
	logger    *log.Logger
	recorders []TxRecorder

	mu      sync.Mutex
	pending map[string]bool
}

func NewTransactor(sender Sender, chainID uint64, logger *log.Logger, recorders ...TxRecorder) *Transactor {
	if logger == nil {
		logger = log.Default()
	}
	return &Transactor{
		sender:    sender,
		chainID:   chainID,
		logger:    logger,
		recorders: recorders,
		pending:   map[string]bool{},
	}
}

func (t *Transactor) From() common.Address { return t.sender.From() }

// Pending reports whether a write for key is in flight.
func (t *Transactor) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[key]
}

func writeKey(to common.Address, method string) string {
	return to.Hex() + "." + method
}

func (t *Transactor) acquire(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[key] {
		return false
	}
	t.pending[key] = true
	return true
}

func (t *Transactor) release(key string) {
	t.mu.Lock()
	delete(t.pending, key)
	t.mu.Unlock()
}

// Write packs and sends method on c, then waits for the receipt.
func (t *Transactor) Write(ctx context.Context, c *Contract, method string, opts WriteOptions, args ...any) (*types.Receipt, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return t.send(ctx, writeKey(c.Address, method), c.Name, method, TxRequest{
		To:        c.Address,
		Data:      data,
		Value:     opts.Value,
		GasFeeCap: opts.GasFeeCap,
		GasTipCap: opts.GasTipCap,
	}, opts.OnConfirmed)
}

// WriteForm sends a function from its filled-in form.
func (t *Transactor) WriteForm(ctx context.Context, c *Contract, f *abiform.Form, opts WriteOptions) (*types.Receipt, error) {
	args, err := f.Args()
	if err != nil {
		return nil, err
	}
	return t.Write(ctx, c, f.Function().Method, opts, args...)
}

func (t *Transactor) send(ctx context.Context, key, contract, method string, req TxRequest, onConfirmed func(*types.Receipt)) (*types.Receipt, error) {
	if !t.acquire(key) {
		return nil, fmt.Errorf("%s: %w", key, ErrWritePending)
	}
	defer t.release(key)

	rec := TxRecord{
		ChainID:  t.chainID,
		Contract: contract,
		Method:   method,
		From:     t.sender.From().Hex(),
		To:       req.To.Hex(),
	}
	if req.Value != nil {
		rec.Value = req.Value.String()
	}

	tx, err := t.sender.Send(ctx, req)
	if err != nil {
		rec.Status = TxFailed
		rec.Error = ParseError(err)
		t.record(rec)
		return nil, err
	}
	rec.Hash = tx.Hash().Hex()
	rec.Status = TxSubmitted
	t.record(rec)
	t.logger.Printf("tx sent: %s %s.%s", rec.Hash, contract, method)

	rcpt, err := t.sender.WaitMined(ctx, tx)
	if err != nil {
		rec.Status = TxFailed
		rec.Error = ParseError(err)
		t.record(rec)
		return nil, err
	}
	if rcpt.BlockNumber != nil {
		rec.Block = rcpt.BlockNumber.Uint64()
	}
	rec.GasUsed = rcpt.GasUsed
	if rcpt.Status != types.ReceiptStatusSuccessful {
		rec.Status = TxReverted
		t.record(rec)
		return rcpt, fmt.Errorf("%s: %w", rec.Hash, ErrReverted)
	}
	rec.Status = TxConfirmed
	t.record(rec)
	t.logger.Printf("tx confirmed: %s block=%d", rec.Hash, rec.Block)
	if onConfirmed != nil {
		onConfirmed(rcpt)
	}
	return rcpt, nil
}

func (t *Transactor) record(r TxRecord) {
	r.Time = time.Now().UTC()
	for _, rc := range t.recorders {
		rc.RecordTx(r)
	}
}
