package indexdb

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/deploy"
)

var (
	gameAddr = common.HexToAddress("0xaFFFd91f427b81e0e56be9A4b6369f8DE6f24994")
	player   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan chain.TxRecord, 1)}
	s.ch <- chain.TxRecord{Hash: "0x1"}

	s.RecordTx(chain.TxRecord{Hash: "0x2"})
	s.RecordTx(chain.TxRecord{Hash: "0x3"})

	st := s.Stats()
	if st.DropTxTotal != 2 {
		t.Fatalf("DropTxTotal=%d want=2", st.DropTxTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_Deployments(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	if _, ok, err := idx.Lookup(17069, "Game"); err != nil || ok {
		t.Fatalf("Lookup before record: ok=%v err=%v", ok, err)
	}
	d := deploy.Deployment{
		ChainID:  17069,
		Name:     "Game",
		Address:  gameAddr,
		Deployer: player,
		TxHash:   common.HexToHash("0xabc"),
		Block:    42,
		ABI:      json.RawMessage(`[]`),
		Time:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := idx.RecordDeployment(d); err != nil {
		t.Fatalf("RecordDeployment: %v", err)
	}
	addr, ok, err := idx.Lookup(17069, "Game")
	if err != nil || !ok || addr != gameAddr {
		t.Fatalf("Lookup=%s ok=%v err=%v", addr.Hex(), ok, err)
	}
	if _, ok, _ := idx.Lookup(690, "Game"); ok {
		t.Fatalf("deployment leaked across chains")
	}

	redeployed := common.HexToAddress("0x2222222222222222222222222222222222222222")
	d.Address = redeployed
	d.Block = 50
	if err := idx.RecordDeployment(d); err != nil {
		t.Fatalf("RecordDeployment again: %v", err)
	}
	list, err := idx.Deployments(17069)
	if err != nil {
		t.Fatalf("Deployments: %v", err)
	}
	if len(list) != 1 || list[0].Address != redeployed || list[0].Block != 50 || !list[0].Time.Equal(d.Time) {
		t.Fatalf("Deployments=%+v", list)
	}

	if err := idx.RecordDeployment(deploy.Deployment{}); err == nil {
		t.Fatalf("expected error for unnamed deployment")
	}
}

func TestSQLiteIndex_RecordTx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordTx(chain.TxRecord{ChainID: 690, Contract: "Game", Method: "registerPlayer", From: player.Hex(), To: gameAddr.Hex(), Value: "1500000000000000", Hash: "0x01", Status: chain.TxSubmitted})
	idx.RecordTx(chain.TxRecord{ChainID: 690, Contract: "Game", Method: "registerPlayer", From: player.Hex(), To: gameAddr.Hex(), Value: "1500000000000000", Hash: "0x01", Status: chain.TxConfirmed, Block: 7, GasUsed: 21000})
	idx.RecordTx(chain.TxRecord{ChainID: 690, Method: "", From: gameAddr.Hex(), To: player.Hex(), Hash: "0x02", Status: chain.TxFailed, Error: "insufficient funds"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	idx.RecordTx(chain.TxRecord{Hash: "0x03"})

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	all, err := idx.RecentTxs(common.Address{}, 10)
	if err != nil {
		t.Fatalf("RecentTxs: %v", err)
	}
	if len(all) != 3 || all[0].Hash != "0x02" || all[0].Error != "insufficient funds" {
		t.Fatalf("RecentTxs=%+v", all)
	}
	mine, err := idx.RecentTxs(player, 1)
	if err != nil {
		t.Fatalf("RecentTxs(player): %v", err)
	}
	if len(mine) != 1 || mine[0].Status != chain.TxConfirmed || mine[0].Block != 7 || mine[0].GasUsed != 21000 {
		t.Fatalf("RecentTxs(player)=%+v", mine)
	}
}

func TestSQLiteIndex_UpsertABIs(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	if err := idx.UpsertABIs(map[string][]byte{"Game": []byte(`[]`), "": []byte(`[]`)}); err != nil {
		t.Fatalf("UpsertABIs: %v", err)
	}
	d, ok, err := idx.ABIDigest("Game")
	if err != nil || !ok {
		t.Fatalf("ABIDigest ok=%v err=%v", ok, err)
	}
	// sha256("[]")
	if d != "4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945" {
		t.Fatalf("digest=%s", d)
	}
	if _, ok, _ := idx.ABIDigest("BuyChest"); ok {
		t.Fatalf("unexpected digest for BuyChest")
	}
}
