package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ErrWorldNotFound means no Biomes world address is known for a chain.
var ErrWorldNotFound = errors.New("biomes world address not found for this chain")

type Config struct {
	DefaultChainID uint64        `yaml:"default_chain_id"`
	Networks       []NetworkSpec `yaml:"networks"`

	// dir resolves relative worlds_file paths.
	dir string
}

type NetworkSpec struct {
	ChainID      uint64 `yaml:"chain_id"`
	Name         string `yaml:"name"`
	RPCURL       string `yaml:"rpc_url"`
	ExplorerURL  string `yaml:"explorer_url,omitempty"`
	WorldAddress string `yaml:"world_address,omitempty"`
	// WorldsFile is a local worlds.json ({"<chainId>": {"address": "0x.."}})
	// written by a development world deploy.
	WorldsFile string            `yaml:"worlds_file,omitempty"`
	Contracts  map[string]string `yaml:"contracts,omitempty"`

	MaxFeeGwei         string `yaml:"max_fee_gwei,omitempty"`
	MaxPriorityFeeGwei string `yaml:"max_priority_fee_gwei,omitempty"`
}

func LoadNetworks(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("networks.yaml: %w", err)
	}
	cfg.dir = filepath.Dir(path)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("networks.yaml: %w", err)
	}
	return cfg, nil
}

// defaults only knows the local development chain; live world addresses
// come from a networks file.
func defaults() Config {
	return Config{
		DefaultChainID: 31337,
		Networks: []NetworkSpec{
			{
				ChainID:    31337,
				Name:       "foundry",
				RPCURL:     "http://127.0.0.1:8545",
				WorldsFile: "worlds.json",
			},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Networks {
		n := &c.Networks[i]
		n.Name = strings.TrimSpace(n.Name)
		if n.Name == "" {
			n.Name = "chain-" + strconv.FormatUint(n.ChainID, 10)
		}
		n.RPCURL = strings.TrimSpace(n.RPCURL)
		n.ExplorerURL = strings.TrimRight(strings.TrimSpace(n.ExplorerURL), "/")
		n.WorldAddress = strings.TrimSpace(n.WorldAddress)
		n.WorldsFile = strings.TrimSpace(n.WorldsFile)
		if n.WorldsFile != "" && c.dir != "" && !filepath.IsAbs(n.WorldsFile) {
			n.WorldsFile = filepath.Join(c.dir, n.WorldsFile)
		}
	}
	sort.SliceStable(c.Networks, func(i, j int) bool { return c.Networks[i].ChainID < c.Networks[j].ChainID })
	if c.DefaultChainID == 0 && len(c.Networks) > 0 {
		c.DefaultChainID = c.Networks[0].ChainID
	}
}

func (c Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("no networks configured")
	}
	seen := map[uint64]bool{}
	for _, n := range c.Networks {
		if n.ChainID == 0 {
			return fmt.Errorf("network %q: missing chain_id", n.Name)
		}
		if seen[n.ChainID] {
			return fmt.Errorf("duplicate chain_id: %d", n.ChainID)
		}
		seen[n.ChainID] = true
		if n.RPCURL == "" {
			return fmt.Errorf("network %q: missing rpc_url", n.Name)
		}
		if n.WorldAddress != "" && !common.IsHexAddress(n.WorldAddress) {
			return fmt.Errorf("network %q: bad world_address %q", n.Name, n.WorldAddress)
		}
		for name, addr := range n.Contracts {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("network %q: contract %s: bad address %q", n.Name, name, addr)
			}
		}
		if _, err := parseGwei(n.MaxFeeGwei); err != nil {
			return fmt.Errorf("network %q: max_fee_gwei: %w", n.Name, err)
		}
		if _, err := parseGwei(n.MaxPriorityFeeGwei); err != nil {
			return fmt.Errorf("network %q: max_priority_fee_gwei: %w", n.Name, err)
		}
	}
	if !seen[c.DefaultChainID] {
		return fmt.Errorf("default_chain_id %d is not configured", c.DefaultChainID)
	}
	return nil
}

func (c Config) Network(chainID uint64) (NetworkSpec, bool) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return NetworkSpec{}, false
}

// ResolveWorldAddress picks the Biomes world for chainID: the configured
// address, else the network's worlds file.
func (c Config) ResolveWorldAddress(chainID uint64) (common.Address, error) {
	n, ok := c.Network(chainID)
	if !ok {
		return common.Address{}, fmt.Errorf("chain %d: %w", chainID, ErrWorldNotFound)
	}
	if n.WorldAddress != "" {
		return common.HexToAddress(n.WorldAddress), nil
	}
	if n.WorldsFile != "" {
		return ReadWorldsFile(n.WorldsFile, chainID)
	}
	return common.Address{}, fmt.Errorf("chain %d: %w", chainID, ErrWorldNotFound)
}

// ContractAddress returns a deployed contract recorded in the networks file.
func (n NetworkSpec) ContractAddress(name string) (common.Address, bool) {
	a, ok := n.Contracts[name]
	if !ok {
		return common.Address{}, false
	}
	return common.HexToAddress(a), true
}

// Fees returns the configured EIP-1559 caps, nil when unset.
func (n NetworkSpec) Fees() (feeCap, tipCap *big.Int) {
	feeCap, _ = parseGwei(n.MaxFeeGwei)
	tipCap, _ = parseGwei(n.MaxPriorityFeeGwei)
	return feeCap, tipCap
}

func ReadWorldsFile(path string, chainID uint64) (common.Address, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, fmt.Errorf("worlds file: %w", err)
	}
	var worlds map[string]struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(b, &worlds); err != nil {
		return common.Address{}, fmt.Errorf("worlds file %s: %w", path, err)
	}
	w, ok := worlds[strconv.FormatUint(chainID, 10)]
	if !ok || !common.IsHexAddress(w.Address) {
		return common.Address{}, fmt.Errorf("chain %d: %w", chainID, ErrWorldNotFound)
	}
	return common.HexToAddress(w.Address), nil
}

var gwei = big.NewRat(1e9, 1)

func parseGwei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() < 0 {
		return nil, fmt.Errorf("bad gwei amount %q", s)
	}
	r.Mul(r, gwei)
	if !r.IsInt() {
		return nil, fmt.Errorf("gwei amount %q is below 1 wei", s)
	}
	return new(big.Int).Set(r.Num()), nil
}
