package biomes

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Delegation is an unlimited delegation from the signing account to Delegatee.
type Delegation struct {
	World     *World
	Delegatee common.Address
}

func (d Delegation) Registered(ctx context.Context, delegator common.Address) (bool, error) {
	var id [32]byte
	if err := d.World.contract.CallInto(ctx, &id, "getUserDelegation", delegator, d.Delegatee); err != nil {
		return false, err
	}
	return ResourceID(id) == UnlimitedDelegation, nil
}

func (d Delegation) Register(ctx context.Context, onConfirmed func(*types.Receipt)) (*types.Receipt, error) {
	initCallData := make([]byte, 32)
	return d.World.write(ctx, "registerDelegation", onConfirmed, d.Delegatee, [32]byte(UnlimitedDelegation), initCallData)
}

func (d Delegation) Unregister(ctx context.Context, onConfirmed func(*types.Receipt)) (*types.Receipt, error) {
	return d.World.write(ctx, "unregisterDelegation", onConfirmed, d.Delegatee)
}
