package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/display"
	"biomesxp.io/internal/voxel"
)

var (
	ErrNoTrendList   = errors.New("contract has no trend list")
	ErrTrendNotFound = errors.New("trend not found")
)

// Trends publishes builds others pay to copy.
type Trends struct {
	c  *chain.Contract
	tx *chain.Transactor
	// list is the view returning the trend entries, empty when the
	// contract has none.
	list string
	// Fee caps for submissions, nil for node defaults.
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

func NewTrends(c *chain.Contract, tx *chain.Transactor) (*Trends, error) {
	if err := require(c, "create", "submitBuilding"); err != nil {
		return nil, err
	}
	return &Trends{c: c, tx: tx, list: trendList(c.Form)}, nil
}

// trendList finds the view that takes no inputs and returns a single
// tuple[] carrying id and price.
func trendList(a abiform.ABI) string {
	for _, f := range a.Functions {
		if !f.IsView() || len(f.Inputs) != 0 || len(f.Outputs) != 1 {
			continue
		}
		out := f.Outputs[0]
		if out.Type != "tuple[]" {
			continue
		}
		fields := map[string]bool{}
		for _, c := range out.Components {
			fields[c.Name] = true
		}
		if fields["id"] && fields["price"] && fields["blueprint"] {
			return f.Method
		}
	}
	return ""
}

// BuildPrice reads an ether amount for a trend price. Empty input is an
// error, not a free build.
func BuildPrice(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("price required")
	}
	v, err := abiform.ParseEther(s)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Entries reads every trend from the contract.
func (t *Trends) Entries(ctx context.Context) ([]voxel.ListEntry, error) {
	if t.list == "" {
		return nil, fmt.Errorf("%s: %w", t.c.Name, ErrNoTrendList)
	}
	v, err := t.c.Read(ctx, t.list)
	if err != nil {
		return nil, err
	}
	list, ok := display.ListEntries(v)
	if !ok {
		return nil, fmt.Errorf("%s.%s: unexpected result shape", t.c.Name, t.list)
	}
	return list, nil
}

// Entry finds one trend by id.
func (t *Trends) Entry(ctx context.Context, id *big.Int) (voxel.ListEntry, error) {
	list, err := t.Entries(ctx)
	if err != nil {
		return voxel.ListEntry{}, err
	}
	for _, e := range list {
		if e.ID.Cmp(id) == 0 {
			return e, nil
		}
	}
	return voxel.ListEntry{}, fmt.Errorf("%s: %w: %s", t.c.Name, ErrTrendNotFound, id)
}

// Create publishes an exported build as a new trend.
func (t *Trends) Create(ctx context.Context, buildJSON []byte, price *big.Int, name string) (*types.Receipt, error) {
	b, err := voxel.ParseBuildJSON(buildJSON)
	if err != nil {
		return nil, err
	}
	f, err := t.c.NewForm("create")
	if err != nil {
		return nil, err
	}
	text, err := voxel.MarshalBuild(b)
	if err != nil {
		return nil, err
	}
	if err := f.Import(abiform.ImportBuild, text); err != nil {
		return nil, err
	}
	if err := f.SetInput(2, price.String()); err != nil {
		return nil, err
	}
	if err := f.SetInput(3, name); err != nil {
		return nil, err
	}
	return t.tx.WriteForm(ctx, t.c, f, chain.WriteOptions{})
}

// Submit claims a placed build, paying the entry's price. A nil base
// submits at the origin.
func (t *Trends) Submit(ctx context.Context, e voxel.ListEntry, base *voxel.VoxelCoord) (*types.Receipt, error) {
	if e.ID == nil || e.Price == nil || e.Price.Sign() < 0 {
		return nil, fmt.Errorf("%s: trend needs an id and a price", t.c.Name)
	}
	f, err := t.c.NewForm("submitBuilding")
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = &voxel.VoxelCoord{}
	}
	coord, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	if err := f.SetInput(0, e.ID.String()); err != nil {
		return nil, err
	}
	if err := f.SetInput(1, string(coord)); err != nil {
		return nil, err
	}
	return t.tx.WriteForm(ctx, t.c, f, chain.WriteOptions{
		Value:     e.Price,
		GasFeeCap: t.GasFeeCap,
		GasTipCap: t.GasTipCap,
	})
}
