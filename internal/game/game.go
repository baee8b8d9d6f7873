// Package game drives the experience screens: registration gates, the
// match status board, the vault, build trends, chest shops and the client
// setup bundle. Each flow requires a set of functions on its contract.
package game

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"biomesxp.io/internal/chain"
)

var ErrMissingFunctions = errors.New("missing required functions")

func require(c *chain.Contract, names ...string) error {
	if missing := c.Form.Missing(names...); len(missing) > 0 {
		return fmt.Errorf("%s: %w: %s", c.Name, ErrMissingFunctions, strings.Join(missing, ", "))
	}
	return nil
}

// bigOf reads an integer from a display value tree.
func bigOf(v any) (*big.Int, bool) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, false
		}
		return new(big.Int).Set(x), true
	case int64:
		return big.NewInt(x), true
	}
	return nil, false
}

func mustWei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("game: bad wei constant " + s)
	}
	return v
}
