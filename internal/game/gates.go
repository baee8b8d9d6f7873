package game

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"biomesxp.io/internal/biomes"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/stage"
)

// RegistrationFee is what registerPlayer is paid with, 0.0015 ether.
var RegistrationFee = mustWei("1500000000000000")

// delegatorGetters name the functions an experience exposes its delegator
// through.
var delegatorGetters = []string{"guardAddress", "delegatorAddress"}

// Registration checks an account against the world and the experience
// contracts.
type Registration struct {
	Hooks      biomes.Hooks
	Delegation biomes.Delegation
	// Experience is the hook contract.
	Experience *chain.Contract
	// Game holds the player list; nil counts every account as registered.
	Game *chain.Contract
}

// ExperienceContracts are the names an experience's hook contract is
// deployed under, in lookup order.
var ExperienceContracts = []string{"Experience", "Game"}

// NewRegistration hooks the default systems before and after each call,
// with experience as the hook, the delegatee and the player list.
func NewRegistration(world *biomes.World, experience *chain.Contract) Registration {
	return Registration{
		Hooks: biomes.Hooks{
			World:   world,
			Hook:    experience.Address,
			Systems: biomes.DefaultHookSystems,
			Bitmap:  biomes.BeforeAndAfterCallSystem,
		},
		Delegation: biomes.Delegation{World: world, Delegatee: experience.Address},
		Experience: experience,
		Game:       experience,
	}
}

// Follow keeps m's gates current for its account, reading them now and
// then every interval until ctx ends. The client setup gate stays as m has
// it. Read errors go to onErr and polling continues.
func (r Registration) Follow(ctx context.Context, m *stage.Machine, interval time.Duration, onErr func(error)) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if acct := m.Account(); common.IsHexAddress(acct) {
			g, err := r.Gates(ctx, common.HexToAddress(acct), m.Gates().ClientSetup)
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				if onErr != nil {
					onErr(err)
				}
			default:
				m.SetGates(g)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Gates reads the chain-derived gates for account. ClientSetup is a user
// acknowledgement and is passed through.
func (r Registration) Gates(ctx context.Context, account common.Address, clientSetup bool) (stage.Gates, error) {
	g := stage.Gates{WalletConnected: account != (common.Address{}), ClientSetup: clientSetup}
	if !g.WalletConnected {
		return g, nil
	}
	var hooksOK, delegationOK, playerOK bool
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ok, err := r.Hooks.Registered(ctx, account)
		hooksOK = ok
		return err
	})
	eg.Go(func() error {
		ok, err := r.DelegationSatisfied(ctx, account)
		delegationOK = ok
		return err
	})
	eg.Go(func() error {
		ok, err := PlayerRegistered(ctx, r.Game, account)
		playerOK = ok
		return err
	})
	if err := eg.Wait(); err != nil {
		return g, err
	}
	g.BiomesRegistered = hooksOK && delegationOK
	g.ExperienceRegistered = playerOK
	return g, nil
}

// DelegationRequired reports whether account is the experience's delegator
// and so must delegate to it.
func (r Registration) DelegationRequired(ctx context.Context, account common.Address) (bool, error) {
	if r.Experience == nil {
		return false, nil
	}
	for _, fn := range delegatorGetters {
		if !r.Experience.Form.Has(fn) {
			continue
		}
		var delegator common.Address
		if err := r.Experience.CallInto(ctx, &delegator, fn); err != nil {
			return false, err
		}
		return delegator == account, nil
	}
	return false, nil
}

func (r Registration) DelegationSatisfied(ctx context.Context, account common.Address) (bool, error) {
	required, err := r.DelegationRequired(ctx, account)
	if err != nil {
		return false, err
	}
	if !required {
		return true, nil
	}
	return r.Delegation.Registered(ctx, account)
}

// PlayerRegistered looks for account in getRegisteredPlayers. Contracts
// without registerPlayer have nothing to register for.
func PlayerRegistered(ctx context.Context, c *chain.Contract, account common.Address) (bool, error) {
	if c == nil || !c.Form.Has("registerPlayer") {
		return true, nil
	}
	if err := require(c, "getRegisteredPlayers"); err != nil {
		return false, err
	}
	var players []common.Address
	if err := c.CallInto(ctx, &players, "getRegisteredPlayers"); err != nil {
		return false, err
	}
	for _, p := range players {
		if p == account {
			return true, nil
		}
	}
	return false, nil
}

// RegisterPlayer pays the registration fee. A nil value pays the default.
func RegisterPlayer(ctx context.Context, tx *chain.Transactor, c *chain.Contract, opts chain.WriteOptions) error {
	if err := require(c, "registerPlayer"); err != nil {
		return err
	}
	if opts.Value == nil {
		opts.Value = RegistrationFee
	}
	if _, err := tx.Write(ctx, c, "registerPlayer", opts); err != nil {
		return fmt.Errorf("register player: %w", err)
	}
	return nil
}
