package game_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/chain/chaintest"
	"biomesxp.io/internal/contracts"
	"biomesxp.io/internal/game"
)

type shopData struct {
	ObjectTypeId uint8
	Price        *big.Int
}

type fullShopData struct {
	ChestEntityId [32]byte
	ShopData      shopData
	Balance       *big.Int
	IsSetup       bool
}

func TestBuyChest(t *testing.T) {
	b := chaintest.NewBackend(player)
	addr := common.HexToAddress("0xb0")
	raw, err := contracts.ABI("BuyChest")
	if err != nil {
		t.Fatal(err)
	}
	c, err := chain.NewContract("BuyChest", addr, raw, b)
	if err != nil {
		t.Fatal(err)
	}
	chest := [32]byte{31: 9}
	stub := b.Register(addr, raw).Return("getOwnedChests", [][32]byte{chest})
	byPlayer, ok := c.Overload("getFullShopData", "address")
	if !ok {
		t.Fatalf("no getFullShopData(address)")
	}
	stub.Return(byPlayer, []fullShopData{{chest, shopData{17, big.NewInt(100)}, big.NewInt(1000), true}})

	tx := chain.NewTransactor(b, 31337, nil)
	shop, err := game.NewBuyChest(c, tx)
	if err != nil {
		t.Fatalf("buy chest: %v", err)
	}
	ctx := context.Background()
	if _, err := shop.Setup(ctx, chest, 17, big.NewInt(100), big.NewInt(1000)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if s := b.SentTo("setupBuyChest"); len(s) != 1 || s[0].Value.Int64() != 1000 {
		t.Fatalf("setup sent %+v", s)
	}
	if _, err := shop.Refill(ctx, chest, 17, big.NewInt(50)); err != nil {
		t.Fatalf("refill: %v", err)
	}
	if _, err := shop.ChangePrice(ctx, chest, 17, big.NewInt(120)); err != nil {
		t.Fatalf("price: %v", err)
	}
	owned, err := shop.OwnedChests(ctx, player)
	if err != nil || len(owned) != 1 || owned[0] != chest {
		t.Fatalf("owned %v %v", owned, err)
	}
	shops, err := shop.Shops(ctx, player)
	if err != nil {
		t.Fatalf("shops: %v", err)
	}
	if len(shops) != 1 || shops[0].ShopData.ObjectTypeID != 17 || shops[0].Balance.Int64() != 1000 || !shops[0].IsSetup {
		t.Fatalf("shops %+v", shops)
	}
}

func TestSellChest_NoBuyOnlyFunctions(t *testing.T) {
	b := chaintest.NewBackend(player)
	raw, _ := contracts.ABI("SellChest")
	c, err := chain.NewContract("SellChest", common.HexToAddress("0xb1"), raw, b)
	if err != nil {
		t.Fatal(err)
	}
	shop, err := game.NewSellChest(c, chain.NewTransactor(b, 1, nil))
	if err != nil {
		t.Fatalf("sell chest: %v", err)
	}
	if _, err := shop.Refill(context.Background(), [32]byte{}, 1, big.NewInt(1)); !errors.Is(err, game.ErrMissingFunctions) {
		t.Fatalf("refill on sell chest: %v", err)
	}
	if _, err := shop.Setup(context.Background(), [32]byte{}, 1, big.NewInt(1), big.NewInt(5)); err == nil {
		t.Fatalf("sell chest accepted a deposit")
	}
}

const payABI = `[{"type":"function","name":"buy","stateMutability":"nonpayable","inputs":[],"outputs":[]}]`

func TestPayWithToken(t *testing.T) {
	b := chaintest.NewBackend(player)
	tokenAddr := common.HexToAddress("0xe2")
	shopAddr := common.HexToAddress("0xe3")
	erc20, _ := contracts.ABI(contracts.ERC20)
	allowance := new(big.Int)
	b.Register(tokenAddr, erc20).
		On("allowance", func(chaintest.Msg, []any) ([]any, error) { return []any{new(big.Int).Set(allowance)}, nil }).
		On("approve", func(_ chaintest.Msg, args []any) ([]any, error) {
			allowance.Set(args[1].(*big.Int))
			return []any{true}, nil
		}).
		Return("name", "Gold").
		Return("symbol", "GLD")
	b.Register(shopAddr, []byte(payABI))
	target, err := chain.NewContract("Shop", shopAddr, []byte(payABI), b)
	if err != nil {
		t.Fatal(err)
	}
	token, err := game.NewToken(tokenAddr, b)
	if err != nil {
		t.Fatal(err)
	}
	name, symbol, err := token.Info(context.Background())
	if err != nil || name != "Gold" || symbol != "GLD" {
		t.Fatalf("info %q %q %v", name, symbol, err)
	}
	tx := chain.NewTransactor(b, 1, nil)

	step, err := game.PayWithToken(context.Background(), tx, token, target, "buy", "2", nil)
	if err != nil || step != game.PayApproved {
		t.Fatalf("first pay: %v %v", step, err)
	}
	if allowance.String() != "2000000000000000000" {
		t.Fatalf("allowance %s", allowance)
	}
	step, err = game.PayWithToken(context.Background(), tx, token, target, "buy", "2", nil)
	if err != nil || step != game.PaySent {
		t.Fatalf("second pay: %v %v", step, err)
	}
	if len(b.SentTo("buy")) != 1 {
		t.Fatalf("buy not sent")
	}
}
