package game

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/contracts"
)

// Token is an ERC20 used to pay experience contracts.
type Token struct {
	c *chain.Contract
}

func NewToken(addr common.Address, caller chain.Caller) (*Token, error) {
	raw, err := contracts.ABI(contracts.ERC20)
	if err != nil {
		return nil, err
	}
	c, err := chain.NewContract(contracts.ERC20, addr, raw, caller)
	if err != nil {
		return nil, err
	}
	return &Token{c: c}, nil
}

func (t *Token) Address() common.Address { return t.c.Address }

func (t *Token) Info(ctx context.Context) (name, symbol string, err error) {
	if err = t.c.CallInto(ctx, &name, "name"); err != nil {
		return "", "", err
	}
	if err = t.c.CallInto(ctx, &symbol, "symbol"); err != nil {
		return "", "", err
	}
	return name, symbol, nil
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var out *big.Int
	if err := t.c.CallInto(ctx, &out, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return out, nil
}

type PayStep int

const (
	// PayApproved means the allowance was too low and approve was sent; pay
	// again to call the target.
	PayApproved PayStep = iota + 1
	PaySent
)

func (s PayStep) String() string {
	switch s {
	case PayApproved:
		return "approved"
	case PaySent:
		return "sent"
	}
	return "none"
}

// PayWithToken calls method on target once target may spend amount (in
// whole tokens, 18 decimals) of the payer's balance, approving first
// otherwise.
func PayWithToken(ctx context.Context, tx *chain.Transactor, token *Token, target *chain.Contract, method, amount string, onConfirmed func(*types.Receipt)) (PayStep, error) {
	wei, err := abiform.ParseEther(amount)
	if err != nil {
		return 0, err
	}
	allowance, err := token.Allowance(ctx, tx.From(), target.Address)
	if err != nil {
		return 0, err
	}
	opts := chain.WriteOptions{OnConfirmed: onConfirmed}
	if allowance.Cmp(wei) >= 0 {
		if _, err := tx.Write(ctx, target, method, opts); err != nil {
			return 0, err
		}
		return PaySent, nil
	}
	if _, err := tx.Write(ctx, token.c, "approve", opts, target.Address, wei); err != nil {
		return 0, err
	}
	return PayApproved, nil
}
