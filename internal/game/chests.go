package game

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/chain"
)

type ShopData struct {
	ObjectTypeID uint8
	Price        *big.Int
}

// FullShopData mirrors the chest contracts' getFullShopData tuple.
type FullShopData struct {
	ChestEntityID [32]byte
	ShopData      ShopData
	Balance       *big.Int
	IsSetup       bool
}

var (
	buyChestFunctions = []string{
		"setupBuyChest", "changeBuyPrice", "refillBuyChestBalance",
		"withdrawBuyChestBalance", "destroyBuyChest", "getOwnedChests", "getFullShopData",
	}
	sellChestFunctions = []string{"setupSellChest", "destroySellChest", "getFullShopData"}
)

// Shop is a chest that trades one object type for ether.
type Shop struct {
	c    *chain.Contract
	tx   *chain.Transactor
	kind string
}

// NewBuyChest binds a shop that pays players for items.
func NewBuyChest(c *chain.Contract, tx *chain.Transactor) (*Shop, error) {
	if err := require(c, buyChestFunctions...); err != nil {
		return nil, err
	}
	return &Shop{c: c, tx: tx, kind: "Buy"}, nil
}

// NewSellChest binds a shop that sells items to players.
func NewSellChest(c *chain.Contract, tx *chain.Transactor) (*Shop, error) {
	if err := require(c, sellChestFunctions...); err != nil {
		return nil, err
	}
	return &Shop{c: c, tx: tx, kind: "Sell"}, nil
}

// Setup opens the shop. Buy chests are funded with deposit.
func (s *Shop) Setup(ctx context.Context, chest [32]byte, objectTypeID uint8, price, deposit *big.Int) (*types.Receipt, error) {
	opts := chain.WriteOptions{}
	if s.kind == "Buy" {
		opts.Value = deposit
	} else if deposit != nil && deposit.Sign() > 0 {
		return nil, fmt.Errorf("sell chests take no deposit")
	}
	return s.tx.Write(ctx, s.c, "setup"+s.kind+"Chest", opts, chest, objectTypeID, price)
}

func (s *Shop) Destroy(ctx context.Context, chest [32]byte, objectTypeID uint8) (*types.Receipt, error) {
	return s.tx.Write(ctx, s.c, "destroy"+s.kind+"Chest", chain.WriteOptions{}, chest, objectTypeID)
}

func (s *Shop) ChangePrice(ctx context.Context, chest [32]byte, objectTypeID uint8, price *big.Int) (*types.Receipt, error) {
	if err := require(s.c, "changeBuyPrice"); err != nil {
		return nil, err
	}
	return s.tx.Write(ctx, s.c, "changeBuyPrice", chain.WriteOptions{}, chest, objectTypeID, price)
}

func (s *Shop) Refill(ctx context.Context, chest [32]byte, objectTypeID uint8, value *big.Int) (*types.Receipt, error) {
	if err := require(s.c, "refillBuyChestBalance"); err != nil {
		return nil, err
	}
	return s.tx.Write(ctx, s.c, "refillBuyChestBalance", chain.WriteOptions{Value: value}, chest, objectTypeID)
}

func (s *Shop) WithdrawBalance(ctx context.Context, chest [32]byte, amount *big.Int) (*types.Receipt, error) {
	if err := require(s.c, "withdrawBuyChestBalance"); err != nil {
		return nil, err
	}
	return s.tx.Write(ctx, s.c, "withdrawBuyChestBalance", chain.WriteOptions{}, chest, amount)
}

func (s *Shop) OwnedChests(ctx context.Context, player common.Address) ([][32]byte, error) {
	if err := require(s.c, "getOwnedChests"); err != nil {
		return nil, err
	}
	var out [][32]byte
	if err := s.c.CallInto(ctx, &out, "getOwnedChests", player); err != nil {
		return nil, err
	}
	return out, nil
}

// Shops lists every shop a player runs.
func (s *Shop) Shops(ctx context.Context, player common.Address) ([]FullShopData, error) {
	method, ok := s.c.Overload("getFullShopData", "address")
	if !ok {
		return nil, fmt.Errorf("%s: %w: getFullShopData(address)", s.c.Name, ErrMissingFunctions)
	}
	var out []FullShopData
	if err := s.c.CallInto(ctx, &out, method, player); err != nil {
		return nil, err
	}
	return out, nil
}
