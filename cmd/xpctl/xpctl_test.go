package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/chain/chaintest"
	"biomesxp.io/internal/contracts"
	"biomesxp.io/internal/game"
	"biomesxp.io/internal/voxel"
)

func TestFilterTxs(t *testing.T) {
	a := "0x00000000000000000000000000000000000000a1"
	b := "0x00000000000000000000000000000000000000b2"
	recs := []chain.TxRecord{
		{From: a, Hash: "0x01"},
		{From: b, Hash: "0x02"},
		{From: a, Hash: "0x03"},
		{From: a, Hash: "0x04"},
	}
	got := filterTxs(recs, common.HexToAddress(a), 2)
	if len(got) != 2 || got[0].Hash != "0x04" || got[1].Hash != "0x03" {
		t.Fatalf("filtered = %+v", got)
	}
	if all := filterTxs(recs, common.Address{}, 0); len(all) != 4 || all[0].Hash != "0x04" {
		t.Fatalf("unfiltered = %+v", all)
	}
}

func TestLoadBlocks_CheckPlaced(t *testing.T) {
	dump := `[{"x":10,"y":5,"z":10,"objectTypeId":35},{"x":10,"y":6,"z":10,"objectTypeId":35}]`
	path := filepath.Join(t.TempDir(), "blocks.json")
	if err := os.WriteFile(path, []byte(dump), 0o644); err != nil {
		t.Fatal(err)
	}
	get, err := loadBlocks(path)
	if err != nil {
		t.Fatalf("loadBlocks: %v", err)
	}
	b := voxel.Build{
		ObjectTypeIDs:     []uint8{35, 35},
		RelativePositions: []voxel.VoxelCoord{{X: 0, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
	}
	if !voxel.CheckPlaced(get, b, voxel.VoxelCoord{X: 10, Y: 5, Z: 10}, 0) {
		t.Fatalf("expected build placed")
	}
	if voxel.CheckPlaced(get, b, voxel.VoxelCoord{X: 11, Y: 5, Z: 10}, 0) {
		t.Fatalf("expected build missing at shifted base")
	}
	if get(voxel.VoxelCoord{}) != 0 {
		t.Fatalf("empty coordinate should read as air")
	}
}

func TestSignature(t *testing.T) {
	got := signature([]abiform.Param{
		{Name: "objectTypeId", Type: "uint8"},
		{Name: "base", Type: "tuple", InternalType: "struct VoxelCoord"},
		{Type: "address"},
	})
	if want := "(uint8 objectTypeId, struct VoxelCoord base, address)"; got != want {
		t.Fatalf("signature = %q, want %q", got, want)
	}
}

func TestFillForm_Named(t *testing.T) {
	fn := abiform.Function{
		Entry: abiform.Entry{
			Type: "function",
			Name: "withdraw",
			Inputs: []abiform.Param{
				{Name: "objectTypeId", Type: "uint8", InternalType: "uint8"},
				{Name: "numToWithdraw", Type: "uint16", InternalType: "uint16"},
			},
			StateMutability: "nonpayable",
		},
		Method: "withdraw",
	}
	form, err := fillForm(fn, []string{"5"}, []string{"numToWithdraw=2"}, "")
	if err != nil {
		t.Fatalf("fillForm: %v", err)
	}
	args, err := form.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	if args[0] != uint8(5) || args[1] != uint16(2) {
		t.Fatalf("args = %#v", args)
	}

	// Named values win over positional ones.
	form, _ = fillForm(fn, []string{"5", "9"}, []string{"objectTypeId=07"}, "")
	if args, _ := form.Args(); args[0] != uint8(7) || args[1] != uint16(9) {
		t.Fatalf("override args = %#v", args)
	}

	for _, bad := range []string{"numToWithdraw", "=3", "nope=1"} {
		if _, err := fillForm(fn, nil, []string{bad}, ""); err == nil {
			t.Fatalf("--set %q: expected error", bad)
		}
	}
}

func TestParseChestAndObjectType(t *testing.T) {
	id := "0x" + strings.Repeat("0", 62) + "09"
	chest, err := parseChest(id)
	if err != nil || chest[31] != 9 {
		t.Fatalf("parseChest = %x, %v", chest, err)
	}
	for _, bad := range []string{"0x09", "09", "0x" + strings.Repeat("zz", 32)} {
		if _, err := parseChest(bad); err == nil {
			t.Fatalf("parseChest(%q): expected error", bad)
		}
	}
	if n, err := parseObjectType("035"); err != nil || n != 35 {
		t.Fatalf("parseObjectType = %d, %v", n, err)
	}
	for _, bad := range []string{"256", "-1", "0x10", ""} {
		if _, err := parseObjectType(bad); err == nil {
			t.Fatalf("parseObjectType(%q): expected error", bad)
		}
	}
}

func TestOpenShop(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	b := chaintest.NewBackend(from)
	tx := chain.NewTransactor(b, 31337, nil)
	bind := func(name string) *chain.Contract {
		raw, err := contracts.ABI(name)
		if err != nil {
			t.Fatal(err)
		}
		c, err := chain.NewContract(name, common.HexToAddress("0xb0"), raw, b)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}
	if _, err := openShop(bind("BuyChest"), tx); err != nil {
		t.Fatalf("buy chest: %v", err)
	}
	if _, err := openShop(bind("SellChest"), tx); err != nil {
		t.Fatalf("sell chest: %v", err)
	}
	if _, err := openShop(bind("Experience"), tx); !errors.Is(err, game.ErrMissingFunctions) {
		t.Fatalf("experience: %v", err)
	}
}
