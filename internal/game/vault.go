package game

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/chain"
)

var vaultFunctions = []string{"withdraw", "withdrawTool", "getNumItemsInVaultChest"}

// Vault keeps a player's items in the experience's chest.
type Vault struct {
	c  *chain.Contract
	tx *chain.Transactor
}

func NewVault(c *chain.Contract, tx *chain.Transactor) (*Vault, error) {
	if err := require(c, vaultFunctions...); err != nil {
		return nil, err
	}
	return &Vault{c: c, tx: tx}, nil
}

// NumItems returns the vault's item count as a display value.
func (v *Vault) NumItems(ctx context.Context) (any, error) {
	return v.c.Read(ctx, "getNumItemsInVaultChest")
}

// Withdraw and WithdrawTool take their inputs in ABI order as form strings.
func (v *Vault) Withdraw(ctx context.Context, inputs ...string) (*types.Receipt, error) {
	return v.submit(ctx, "withdraw", inputs)
}

func (v *Vault) WithdrawTool(ctx context.Context, inputs ...string) (*types.Receipt, error) {
	return v.submit(ctx, "withdrawTool", inputs)
}

func (v *Vault) submit(ctx context.Context, method string, inputs []string) (*types.Receipt, error) {
	f, err := v.c.NewForm(method)
	if err != nil {
		return nil, err
	}
	for i, s := range inputs {
		if err := f.SetInput(i, s); err != nil {
			return nil, err
		}
	}
	return v.tx.WriteForm(ctx, v.c, f, chain.WriteOptions{})
}
