package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/chain/chaintest"
	"biomesxp.io/internal/contracts"
	"biomesxp.io/internal/stage"
)

var (
	gameAddr = common.HexToAddress("0xaFFFd91f427b81e0e56be9A4b6369f8DE6f24994")
	player   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type fakeGates struct {
	gates stage.Gates
	err   error
	setup bool
}

func (f *fakeGates) Gates(ctx context.Context, account common.Address, clientSetup bool) (stage.Gates, error) {
	f.setup = clientSetup
	g := f.gates
	g.ClientSetup = clientSetup
	return g, f.err
}

type fakeTxs struct{ from common.Address }

func (f *fakeTxs) RecentTxs(from common.Address, limit int) ([]chain.TxRecord, error) {
	f.from = from
	return []chain.TxRecord{{Hash: "0x01", Status: chain.TxConfirmed}}, nil
}

func newServer(t *testing.T, gates GateReader) *Server {
	t.Helper()
	b := chaintest.NewBackend(player)
	raw, err := contracts.ABI("Game")
	if err != nil {
		t.Fatalf("ABI: %v", err)
	}
	b.Register(gameAddr, raw).
		Return("basicGetter", big.NewInt(7)).
		Return("getRegisteredPlayers", []common.Address{player})
	reg := &contracts.Registry{
		Network: chain.NetworkSpec{ChainID: 17069, Name: "garnet", Contracts: map[string]string{"Game": gameAddr.Hex()}},
		Caller:  b,
	}
	return NewServer(Deps{Contracts: reg, Gates: gates, Txs: &fakeTxs{}})
}

func get(t *testing.T, s *Server, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w.Code
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil)
	var body map[string]any
	if code := get(t, s, "/health", &body); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if body["status"] != "healthy" || body["chain_id"] != float64(17069) {
		t.Fatalf("body=%v", body)
	}
}

func TestContracts(t *testing.T) {
	s := newServer(t, nil)
	var list []contractInfo
	if code := get(t, s, "/v1/contracts", &list); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if len(list) != 1 || list[0].Name != "Game" || list[0].Address != gameAddr.Hex() {
		t.Fatalf("contracts=%+v", list)
	}
}

func TestFunctions(t *testing.T) {
	s := newServer(t, nil)
	var cat catalogBody
	if code := get(t, s, "/v1/contracts/Game/functions", &cat); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	for _, w := range cat.Writes {
		if w.Name == "onAfterCallSystem" {
			t.Fatalf("hook callback listed as write")
		}
	}
	found := false
	for _, v := range cat.Variables {
		if v.Name == "getRegisteredPlayers" {
			found = true
		}
	}
	if !found {
		t.Fatalf("getRegisteredPlayers missing from variables: %+v", cat.Variables)
	}
	if code := get(t, s, "/v1/contracts/Nope/functions", nil); code != http.StatusNotFound {
		t.Fatalf("unknown contract code=%d", code)
	}
}

func TestRead(t *testing.T) {
	s := newServer(t, nil)
	var body readBody
	if code := get(t, s, "/v1/contracts/Game/read/basicGetter", &body); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if body.Kind != "scalar" || body.Text != "7" || string(body.Value) != `"7"` {
		t.Fatalf("body=%+v value=%s", body, body.Value)
	}

	if code := get(t, s, "/v1/contracts/Game/read/getRegisteredPlayers", &body); code != http.StatusOK {
		t.Fatalf("players code=%d", code)
	}
	if body.Kind != "list" {
		t.Fatalf("players kind=%s", body.Kind)
	}

	cases := []struct {
		path string
		code int
	}{
		{"/v1/contracts/Game/read/nope", http.StatusNotFound},
		{"/v1/contracts/Game/read/onAfterCallSystem", http.StatusBadRequest},
		{"/v1/contracts/Game/read/supportsInterface?arg=0x01", http.StatusBadRequest},
		{"/v1/contracts/BuyChest/read/x", http.StatusNotFound},
	}
	for _, tc := range cases {
		if code := get(t, s, tc.path, nil); code != tc.code {
			t.Fatalf("%s: code=%d want %d", tc.path, code, tc.code)
		}
	}
}

func TestStage(t *testing.T) {
	g := &fakeGates{gates: stage.Gates{WalletConnected: true, BiomesRegistered: true}}
	s := newServer(t, g)
	var body stageBody
	if code := get(t, s, "/v1/stage/"+player.Hex(), &body); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if body.Stage != stage.RegisterExperience {
		t.Fatalf("stage=%s", body.Stage)
	}

	g.gates.ExperienceRegistered = true
	if code := get(t, s, "/v1/stage/"+player.Hex()+"?client_setup=true", &body); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if !g.setup || body.Stage != stage.Experience {
		t.Fatalf("stage=%s setup=%v", body.Stage, g.setup)
	}

	if code := get(t, s, "/v1/stage/not-an-address", nil); code != http.StatusBadRequest {
		t.Fatalf("bad account code=%d", code)
	}
	g.err = errors.New("rpc down")
	if code := get(t, s, "/v1/stage/"+player.Hex(), nil); code != http.StatusBadGateway {
		t.Fatalf("gate error code=%d", code)
	}
}

func TestStage_Unconfigured(t *testing.T) {
	s := newServer(t, nil)
	if code := get(t, s, "/v1/stage/"+player.Hex(), nil); code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d", code)
	}
}

func TestTxs(t *testing.T) {
	s := newServer(t, nil)
	var txs []chain.TxRecord
	if code := get(t, s, "/v1/txs?from="+player.Hex(), &txs); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if len(txs) != 1 || txs[0].Hash != "0x01" {
		t.Fatalf("txs=%+v", txs)
	}
	if s.deps.Txs.(*fakeTxs).from != player {
		t.Fatalf("from filter not passed")
	}
	if code := get(t, s, "/v1/txs?from=zzz", nil); code != http.StatusBadRequest {
		t.Fatalf("bad from code=%d", code)
	}
}
