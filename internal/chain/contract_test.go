package chain_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/chain/chaintest"
)

const counterABI = `[
 {"type":"function","name":"count","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"info","stateMutability":"view","inputs":[],"outputs":[{"name":"n","type":"uint256"},{"name":"open","type":"bool"}]},
 {"type":"function","name":"bump","stateMutability":"payable","inputs":[{"name":"by","type":"uint256"}],"outputs":[]}
]`

var (
	me      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	counter = common.HexToAddress("0x00000000000000000000000000000000000000c0")
)

type captured struct {
	mu   sync.Mutex
	recs []chain.TxRecord
}

func (c *captured) RecordTx(r chain.TxRecord) {
	c.mu.Lock()
	c.recs = append(c.recs, r)
	c.mu.Unlock()
}

func setup(t *testing.T) (*chaintest.Backend, *chain.Contract, *big.Int) {
	t.Helper()
	b := chaintest.NewBackend(me)
	n := big.NewInt(41)
	b.Register(counter, []byte(counterABI)).
		On("count", func(chaintest.Msg, []any) ([]any, error) { return []any{new(big.Int).Set(n)}, nil }).
		Return("owner", me).
		On("info", func(chaintest.Msg, []any) ([]any, error) { return []any{new(big.Int).Set(n), true}, nil }).
		On("bump", func(_ chaintest.Msg, args []any) ([]any, error) {
			n.Add(n, args[0].(*big.Int))
			return nil, nil
		})
	c, err := chain.NewContract("Counter", counter, []byte(counterABI), b)
	if err != nil {
		t.Fatalf("contract: %v", err)
	}
	return b, c, n
}

func TestContractRead(t *testing.T) {
	_, c, _ := setup(t)
	ctx := context.Background()

	v, err := c.Read(ctx, "count")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n, ok := v.(*big.Int); !ok || n.Int64() != 41 {
		t.Fatalf("count: %#v", v)
	}
	v, err = c.Read(ctx, "owner")
	if err != nil || v != me.Hex() {
		t.Fatalf("owner: %#v %v", v, err)
	}
	v, err = c.Read(ctx, "info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	list, ok := v.([]any)
	if !ok || len(list) != 2 || list[0].(*big.Int).Int64() != 41 || list[1] != true {
		t.Fatalf("info: %#v", v)
	}

	var out *big.Int
	if err := c.CallInto(ctx, &out, "count"); err != nil || out.Int64() != 41 {
		t.Fatalf("call into: %v %v", out, err)
	}
	if missing := c.Form.Missing("count", "bump"); len(missing) != 0 {
		t.Fatalf("missing: %v", missing)
	}
	if missing := c.Form.Missing("count", "missing"); len(missing) != 1 || missing[0] != "missing" {
		t.Fatalf("missing: %v", missing)
	}
}

func TestContractRead_NotDeployed(t *testing.T) {
	b := chaintest.NewBackend(me)
	c, err := chain.NewContract("Counter", counter, []byte(counterABI), b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Read(context.Background(), "count"); !errors.Is(err, chain.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestTransactorWrite(t *testing.T) {
	b, c, n := setup(t)
	rec := &captured{}
	tr := chain.NewTransactor(b, 31337, nil, rec)

	confirmed := false
	rcpt, err := tr.Write(context.Background(), c, "bump", chain.WriteOptions{
		Value:       big.NewInt(5),
		OnConfirmed: func(*types.Receipt) { confirmed = true },
	}, big.NewInt(2))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful || !confirmed {
		t.Fatalf("receipt status=%d confirmed=%v", rcpt.Status, confirmed)
	}
	if n.Int64() != 43 {
		t.Fatalf("count=%d", n.Int64())
	}
	sent := b.SentTo("bump")
	if len(sent) != 1 || sent[0].Value.Int64() != 5 {
		t.Fatalf("sent: %+v", sent)
	}
	if len(rec.recs) != 2 || rec.recs[0].Status != chain.TxSubmitted || rec.recs[1].Status != chain.TxConfirmed {
		t.Fatalf("records: %+v", rec.recs)
	}
	if rec.recs[1].Method != "bump" || rec.recs[1].Value != "5" || rec.recs[1].ChainID != 31337 {
		t.Fatalf("record: %+v", rec.recs[1])
	}
}

func TestTransactorWrite_Reverted(t *testing.T) {
	b, c, _ := setup(t)
	b.Revert("bump")
	rec := &captured{}
	tr := chain.NewTransactor(b, 1, nil, rec)
	called := false
	_, err := tr.Write(context.Background(), c, "bump", chain.WriteOptions{
		OnConfirmed: func(*types.Receipt) { called = true },
	}, big.NewInt(1))
	if !errors.Is(err, chain.ErrReverted) {
		t.Fatalf("expected revert, got %v", err)
	}
	if called {
		t.Fatalf("OnConfirmed ran for a reverted tx")
	}
	if last := rec.recs[len(rec.recs)-1]; last.Status != chain.TxReverted {
		t.Fatalf("last record: %+v", last)
	}
}

func TestTransactorWrite_SingleInFlight(t *testing.T) {
	b := chaintest.NewBackend(me)
	release := make(chan struct{})
	entered := make(chan struct{})
	b.Register(counter, []byte(counterABI)).On("bump", func(chaintest.Msg, []any) ([]any, error) {
		close(entered)
		<-release
		return nil, nil
	})
	c, err := chain.NewContract("Counter", counter, []byte(counterABI), b)
	if err != nil {
		t.Fatal(err)
	}
	tr := chain.NewTransactor(b, 1, nil)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Write(context.Background(), c, "bump", chain.WriteOptions{}, big.NewInt(1))
		done <- err
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first write never started")
	}
	if _, err := tr.Write(context.Background(), c, "bump", chain.WriteOptions{}, big.NewInt(1)); !errors.Is(err, chain.ErrWritePending) {
		t.Fatalf("expected ErrWritePending, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first write: %v", err)
	}
	if tr.Pending(counter.Hex() + ".bump") {
		t.Fatalf("still pending after completion")
	}
}
