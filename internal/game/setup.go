package game

import (
	"context"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/display"
)

// SetupBundle is what a player pastes into the Biomes client: the match
// area, the avatars to hunt and the blueprint to build. Empty fields mean
// the contract has no such getter.
type SetupBundle struct {
	MatchArea string `json:"match_area,omitempty"`
	Players   string `json:"players,omitempty"`
	Build     string `json:"build,omitempty"`
}

func Setup(ctx context.Context, c *chain.Contract) (SetupBundle, error) {
	var b SetupBundle
	for _, item := range []struct {
		fn  string
		dst *string
	}{
		{"getMatchArea", &b.MatchArea},
		{"getRegisteredPlayerEntityIds", &b.Players},
		{"getBuild", &b.Build},
	} {
		if !c.Form.Has(item.fn) {
			continue
		}
		v, err := c.Read(ctx, item.fn)
		if err != nil {
			return b, err
		}
		*item.dst = display.JSON(v, 2)
	}
	return b, nil
}
