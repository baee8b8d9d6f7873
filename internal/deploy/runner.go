package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
)

// Deployer sends contract creations. chain.Client implements it.
type Deployer interface {
	From() common.Address
	Deploy(ctx context.Context, parsed abi.ABI, bytecode []byte, args ...any) (common.Address, *types.Receipt, error)
}

// Deployment is a contract created by a run.
type Deployment struct {
	ChainID  uint64          `json:"chain_id"`
	Name     string          `json:"name"`
	Address  common.Address  `json:"address"`
	Deployer common.Address  `json:"deployer"`
	TxHash   common.Hash     `json:"tx_hash"`
	Block    uint64          `json:"block"`
	ABI      json.RawMessage `json:"abi"`
	Time     time.Time       `json:"time"`
}

// Recorder stores deployments so later runs and readers can find them.
type Recorder interface {
	RecordDeployment(d Deployment) error
}

type Runner struct {
	Deployer Deployer
	Caller   chain.Caller
	// Tx sends post-deploy calls; nil fails any step that has calls.
	Tx      *chain.Transactor
	ChainID uint64
	// World overrides the network's configured world.
	World    common.Address
	Networks chain.Config
	// Lookup resolves {{contract:Name}} for contracts not deployed in
	// this run.
	Lookup    func(name string) (common.Address, error)
	Recorders []Recorder
	Logger    *log.Logger
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

func (r *Runner) world() (common.Address, error) {
	if r.World != (common.Address{}) {
		return r.World, nil
	}
	return r.Networks.ResolveWorldAddress(r.ChainID)
}

// Run deploys the plan steps selected by tags, in order.
func (r *Runner) Run(ctx context.Context, plan Plan, tags []string) ([]Deployment, error) {
	steps := plan.Select(tags)
	if len(steps) == 0 {
		return nil, fmt.Errorf("no contracts match tags %v", tags)
	}
	world, err := r.world()
	if err != nil {
		return nil, err
	}
	r.logger().Printf("using biomes world %s on chain %d", world.Hex(), r.ChainID)

	tpl := &templates{
		world:    world,
		deployer: r.Deployer.From(),
		deployed: map[string]common.Address{},
		lookup:   r.Lookup,
	}
	var out []Deployment
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		d, err := r.step(ctx, s, tpl)
		if err != nil {
			return out, fmt.Errorf("%s: %w", s.Name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *Runner) step(ctx context.Context, s Step, tpl *templates) (Deployment, error) {
	art, err := LoadArtifact(s.Artifact)
	if err != nil {
		return Deployment{}, err
	}
	parsed, err := abi.JSON(bytes.NewReader(art.ABI))
	if err != nil {
		return Deployment{}, fmt.Errorf("abi: %w", err)
	}
	form, err := abiform.ParseABI(art.ABI)
	if err != nil {
		return Deployment{}, err
	}
	ctor, _ := form.Constructor()
	args, err := tpl.encodeArgs(ctor.Inputs, s.Args)
	if err != nil {
		return Deployment{}, fmt.Errorf("constructor: %w", err)
	}

	addr, rcpt, err := r.Deployer.Deploy(ctx, parsed, art.Bytecode, args...)
	if err != nil {
		return Deployment{}, fmt.Errorf("deploy: %s", chain.ParseError(err))
	}
	d := Deployment{
		ChainID:  r.ChainID,
		Name:     s.Name,
		Address:  addr,
		Deployer: tpl.deployer,
		ABI:      art.ABI,
		Time:     time.Now().UTC(),
	}
	if rcpt != nil {
		d.TxHash = rcpt.TxHash
		if rcpt.BlockNumber != nil {
			d.Block = rcpt.BlockNumber.Uint64()
		}
	}
	tpl.deployed[s.Name] = addr
	r.logger().Printf("deployed %s at %s (block %d)", s.Name, addr.Hex(), d.Block)
	for _, rec := range r.Recorders {
		if err := rec.RecordDeployment(d); err != nil {
			r.logger().Printf("record %s: %v", s.Name, err)
		}
	}

	c, err := chain.NewContract(s.Name, addr, art.ABI, r.Caller)
	if err != nil {
		return d, err
	}
	for _, call := range s.Calls {
		if err := r.call(ctx, c, call, tpl); err != nil {
			return d, fmt.Errorf("%s: %w", call.Function, err)
		}
	}
	if c.Form.Has("biomeWorldAddress") {
		var got common.Address
		if err := c.CallInto(ctx, &got, "biomeWorldAddress"); err != nil {
			r.logger().Printf("%s: read biomeWorldAddress: %v", s.Name, err)
		} else {
			r.logger().Printf("%s biome world address: %s", s.Name, got.Hex())
		}
	}
	return d, nil
}

func (r *Runner) call(ctx context.Context, c *chain.Contract, call Call, tpl *templates) error {
	if r.Tx == nil {
		return chain.ErrNoSigner
	}
	fn, ok := c.Form.Function(call.Function)
	if !ok {
		return fmt.Errorf("not in %s abi", c.Name)
	}
	args, err := tpl.encodeArgs(fn.Inputs, call.Args)
	if err != nil {
		return err
	}
	value, err := abiform.ParseEther(call.Value)
	if err != nil {
		return err
	}
	opts := chain.WriteOptions{}
	if value.Sign() > 0 {
		opts.Value = value
	}
	_, err = r.Tx.Write(ctx, c, fn.Method, opts, args...)
	return err
}
