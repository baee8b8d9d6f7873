package game

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/display"
	"biomesxp.io/internal/voxel"
)

var matchFunctions = []string{
	"claimRewardPool",
	"isGameStarted",
	"gameEndBlock",
	"getRegisteredPlayerEntityIds",
	"getKillsLeaderboard",
	"getRewardPool",
}

type Head interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Match is the status board of a deathmatch game contract.
type Match struct {
	c    *chain.Contract
	head Head
	tx   *chain.Transactor
}

func NewMatch(c *chain.Contract, head Head, tx *chain.Transactor) (*Match, error) {
	if err := require(c, matchFunctions...); err != nil {
		return nil, err
	}
	return &Match{c: c, head: head, tx: tx}, nil
}

// Status is one read of the board. BlocksRemaining is EndBlock minus the
// head and goes negative once the game is over.
type Status struct {
	Started         bool                     `json:"started"`
	EndBlock        *big.Int                 `json:"end_block,omitempty"`
	BlocksRemaining *big.Int                 `json:"blocks_remaining"`
	Players         []string                 `json:"players"`
	Leaderboard     []voxel.LeaderboardEntry `json:"leaderboard"`
	RewardPool      *big.Int                 `json:"reward_pool"`
}

func (m *Match) Status(ctx context.Context) (Status, error) {
	var st Status
	started, err := m.c.Read(ctx, "isGameStarted")
	if err != nil {
		return st, err
	}
	st.Started, _ = started.(bool)

	st.BlocksRemaining = new(big.Int)
	end, err := m.c.Read(ctx, "gameEndBlock")
	if err != nil {
		return st, err
	}
	if n, ok := bigOf(end); ok {
		st.EndBlock = n
		head, err := m.head.BlockNumber(ctx)
		if err != nil {
			return st, err
		}
		st.BlocksRemaining.Sub(n, new(big.Int).SetUint64(head))
	}

	players, err := m.c.Read(ctx, "getRegisteredPlayerEntityIds")
	if err != nil {
		return st, err
	}
	st.Players = display.Classify(players).Entities

	board, err := m.c.Read(ctx, "getKillsLeaderboard")
	if err != nil {
		return st, err
	}
	st.Leaderboard = display.Classify(board).Leaderboard

	pool, err := m.c.Read(ctx, "getRewardPool")
	if err != nil {
		return st, err
	}
	st.RewardPool, _ = bigOf(pool)
	return st, nil
}

func (m *Match) ClaimRewardPool(ctx context.Context, onConfirmed func(*types.Receipt)) (*types.Receipt, error) {
	return m.tx.Write(ctx, m.c, "claimRewardPool", chain.WriteOptions{OnConfirmed: onConfirmed})
}
