// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/chain"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Env holds endpoints and secrets shared by xpd and xpctl. Flags override
// the file paths.
type Env struct {
	RPCURL       string  `env:"XP_RPC_URL"`
	PrivateKey   string  `env:"XP_PRIVATE_KEY"`
	ChainID      uint64  `env:"XP_CHAIN_ID"`
	NetworksFile string  `env:"XP_NETWORKS"      envDefault:"configs/networks.yaml"`
	DeployPlan   string  `env:"XP_DEPLOY_PLAN"   envDefault:"configs/deploy.yaml"`
	DataDir      string  `env:"XP_DATA_DIR"      envDefault:"data"`
	WorldAddress string  `env:"XP_WORLD_ADDRESS"`
	ReadRate     float64 `env:"XP_READ_RATE"     envDefault:"20"`
	ReadBurst    int     `env:"XP_READ_BURST"    envDefault:"10"`
}

func Load() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return e, err
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return e, err
	}
	return e, nil
}

func (e *Env) Normalize() {
	e.RPCURL = strings.TrimSpace(e.RPCURL)
	e.PrivateKey = strings.TrimPrefix(strings.TrimSpace(e.PrivateKey), "0x")
	e.WorldAddress = strings.TrimSpace(e.WorldAddress)
	if e.ReadBurst <= 0 {
		e.ReadBurst = 1
	}
}

func (e Env) Validate() error {
	if e.PrivateKey != "" && len(e.PrivateKey) != 64 {
		return fmt.Errorf("XP_PRIVATE_KEY: want 32 hex bytes")
	}
	if e.WorldAddress != "" && !common.IsHexAddress(e.WorldAddress) {
		return fmt.Errorf("XP_WORLD_ADDRESS: bad address %q", e.WorldAddress)
	}
	if e.ReadRate <= 0 {
		return fmt.Errorf("XP_READ_RATE must be > 0")
	}
	return nil
}

// Network picks the network to talk to: XP_CHAIN_ID, else the file's
// default. XP_RPC_URL and XP_WORLD_ADDRESS override the file. A chain missing
// from the file is usable when XP_RPC_URL is set.
func (e Env) Network(cfg chain.Config) (chain.NetworkSpec, error) {
	id := e.ChainID
	if id == 0 {
		id = cfg.DefaultChainID
	}
	n, ok := cfg.Network(id)
	if !ok {
		if e.RPCURL == "" {
			return n, fmt.Errorf("chain %d is not configured and XP_RPC_URL is empty", id)
		}
		n = chain.NetworkSpec{ChainID: id, Name: "chain-" + strconv.FormatUint(id, 10)}
	}
	if e.RPCURL != "" {
		n.RPCURL = e.RPCURL
	}
	if e.WorldAddress != "" {
		n.WorldAddress = e.WorldAddress
	}
	return n, nil
}

// World resolves the Biomes world for chainID, honouring XP_WORLD_ADDRESS.
func (e Env) World(cfg chain.Config, chainID uint64) (common.Address, error) {
	if e.WorldAddress != "" {
		return common.HexToAddress(e.WorldAddress), nil
	}
	return cfg.ResolveWorldAddress(chainID)
}
