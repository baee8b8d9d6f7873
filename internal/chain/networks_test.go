package chain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadNetworks_RepoConfig(t *testing.T) {
	cfg, err := LoadNetworks(filepath.Join("..", "..", "configs", "networks.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultChainID != 690 {
		t.Fatalf("default chain: %d", cfg.DefaultChainID)
	}
	cases := map[uint64]string{
		690:   "0xf75b1b7bdb6932e487c4aa8d210f4a682abeacf0",
		17069: "0x641554ed9d8a6c2c362e6c3fb2835ec2ca4da95c",
	}
	for id, want := range cases {
		got, err := cfg.ResolveWorldAddress(id)
		if err != nil {
			t.Fatalf("chain %d: %v", id, err)
		}
		if got != common.HexToAddress(want) {
			t.Fatalf("chain %d: got %s", id, got.Hex())
		}
	}
	n, ok := cfg.Network(17069)
	if !ok {
		t.Fatalf("garnet missing")
	}
	if _, ok := n.ContractAddress("Game"); !ok {
		t.Fatalf("garnet Game contract missing")
	}
	fee, tip := n.Fees()
	if fee == nil || fee.Int64() != 10_000_000 || tip == nil || tip.Int64() != 1_000_000 {
		t.Fatalf("fees: %v %v", fee, tip)
	}
}

func TestResolveWorldAddress_WorldsFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "worlds.json"), []byte(`{"31337":{"address":"0x00000000000000000000000000000000000000aa"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	yml := "networks:\n  - chain_id: 31337\n    rpc_url: http://127.0.0.1:8545\n    worlds_file: worlds.json\n"
	path := filepath.Join(dir, "networks.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadNetworks(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultChainID != 31337 {
		t.Fatalf("default chain: %d", cfg.DefaultChainID)
	}
	got, err := cfg.ResolveWorldAddress(31337)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != common.HexToAddress("0xaa") {
		t.Fatalf("got %s", got.Hex())
	}
}

func TestResolveWorldAddress_Unknown(t *testing.T) {
	cfg := defaults()
	cfg.Networks[0].WorldsFile = ""
	cfg.Normalize()
	if _, err := cfg.ResolveWorldAddress(1); !errors.Is(err, ErrWorldNotFound) {
		t.Fatalf("unknown chain: %v", err)
	}
	if _, err := cfg.ResolveWorldAddress(31337); !errors.Is(err, ErrWorldNotFound) {
		t.Fatalf("no address: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"no rpc", Config{DefaultChainID: 1, Networks: []NetworkSpec{{ChainID: 1}}}},
		{"dup", Config{DefaultChainID: 1, Networks: []NetworkSpec{{ChainID: 1, RPCURL: "x"}, {ChainID: 1, RPCURL: "y"}}}},
		{"bad world", Config{DefaultChainID: 1, Networks: []NetworkSpec{{ChainID: 1, RPCURL: "x", WorldAddress: "0x12"}}}},
		{"bad fee", Config{DefaultChainID: 1, Networks: []NetworkSpec{{ChainID: 1, RPCURL: "x", MaxFeeGwei: "abc"}}}},
		{"default missing", Config{DefaultChainID: 2, Networks: []NetworkSpec{{ChainID: 1, RPCURL: "x"}}}},
	}
	for _, tc := range cases {
		if err := tc.cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestParseGwei(t *testing.T) {
	v, err := parseGwei("1.5")
	if err != nil || v.Int64() != 1_500_000_000 {
		t.Fatalf("1.5: %v %v", v, err)
	}
	if _, err := parseGwei("0.0000000001"); err == nil {
		t.Fatalf("expected sub-wei error")
	}
	if v, err := parseGwei(""); v != nil || err != nil {
		t.Fatalf("empty: %v %v", v, err)
	}
}
