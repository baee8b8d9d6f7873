// Package contracts holds the ABIs of the experience contracts and resolves
// where they are deployed on a chain.
package contracts

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
)

//go:embed abi/*.json
var abiFS embed.FS

const ERC20 = "ERC20"

var ErrUnknownContract = errors.New("unknown contract")

// ABI returns the embedded ABI JSON for a contract name.
func ABI(name string) ([]byte, error) {
	b, err := abiFS.ReadFile(path.Join("abi", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownContract)
	}
	return b, nil
}

// Names lists the embedded contract ABIs.
func Names() []string {
	entries, _ := fs.ReadDir(abiFS, "abi")
	var out []string
	for _, e := range entries {
		n := strings.TrimSuffix(e.Name(), ".json")
		if n == "inherited" {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Inherited maps a contract's functions to the source they are inherited
// from.
func Inherited(name string) map[string]string {
	b, err := abiFS.ReadFile("abi/inherited.json")
	if err != nil {
		return nil
	}
	var all map[string]map[string]string
	if err := json.Unmarshal(b, &all); err != nil {
		return nil
	}
	return all[name]
}

// Catalog groups a contract's functions for display.
func Catalog(name string) (abiform.Catalog, error) {
	raw, err := ABI(name)
	if err != nil {
		return abiform.Catalog{}, err
	}
	a, err := abiform.ParseABI(raw)
	if err != nil {
		return abiform.Catalog{}, err
	}
	return abiform.NewCatalog(a, Inherited(name)), nil
}

// AddressBook records deployments made by this tool.
type AddressBook interface {
	Lookup(chainID uint64, name string) (common.Address, bool, error)
}

// Registry resolves contract addresses on one chain: recorded deployments
// first, then the network config.
type Registry struct {
	Network chain.NetworkSpec
	Book    AddressBook
	Caller  chain.Caller
}

func (r *Registry) Address(name string) (common.Address, error) {
	if r.Book != nil {
		addr, ok, err := r.Book.Lookup(r.Network.ChainID, name)
		if err != nil {
			return common.Address{}, err
		}
		if ok {
			return addr, nil
		}
	}
	if addr, ok := r.Network.ContractAddress(name); ok {
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("%s on chain %d: %w", name, r.Network.ChainID, ErrUnknownContract)
}

// Contract binds name at its resolved address.
func (r *Registry) Contract(name string) (*chain.Contract, error) {
	addr, err := r.Address(name)
	if err != nil {
		return nil, err
	}
	return r.At(name, addr)
}

// At binds the named ABI to an explicit address.
func (r *Registry) At(name string, addr common.Address) (*chain.Contract, error) {
	raw, err := ABI(name)
	if err != nil {
		return nil, err
	}
	return chain.NewContract(name, addr, raw, r.Caller)
}

// Deployed lists embedded contracts that have an address on this chain.
func (r *Registry) Deployed() []string {
	var out []string
	for _, n := range Names() {
		if n == ERC20 {
			continue
		}
		if _, err := r.Address(n); err == nil {
			out = append(out, n)
		}
	}
	return out
}
