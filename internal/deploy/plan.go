// Package deploy runs YAML deployment plans: contracts created in order
// against the Biomes world of the target chain, followed by their setup
// calls.
package deploy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"
)

// Plan is an ordered list of contracts to deploy.
type Plan struct {
	Contracts []Step `yaml:"contracts"`
}

// Step deploys one contract. Args follow the constructor inputs; strings
// may hold {{world}}, {{deployer}} or {{contract:Name}} templates and maps
// or lists are passed as JSON.
type Step struct {
	Name     string   `yaml:"name"`
	Artifact string   `yaml:"artifact"`
	Tags     []string `yaml:"tags,omitempty"`
	Args     []any    `yaml:"args,omitempty"`
	Calls    []Call   `yaml:"calls,omitempty"`
}

// Call is a write sent to the contract right after it is deployed.
type Call struct {
	Function string `yaml:"function"`
	Args     []any  `yaml:"args,omitempty"`
	// Value is an ether amount sent with the call.
	Value string `yaml:"value,omitempty"`
}

func LoadPlan(path string) (Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, err
	}
	var p Plan
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Plan{}, fmt.Errorf("deploy.yaml: %w", err)
	}
	p.Normalize(filepath.Dir(path))
	if err := p.Validate(); err != nil {
		return Plan{}, fmt.Errorf("deploy.yaml: %w", err)
	}
	return p, nil
}

// Normalize resolves artifact paths against dir and tags every step with
// its own name.
func (p *Plan) Normalize(dir string) {
	for i := range p.Contracts {
		s := &p.Contracts[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Artifact != "" && !filepath.IsAbs(s.Artifact) && dir != "" {
			s.Artifact = filepath.Join(dir, s.Artifact)
		}
		if !hasTag(s.Tags, s.Name) {
			s.Tags = append(s.Tags, s.Name)
		}
	}
}

func (p Plan) Validate() error {
	if len(p.Contracts) == 0 {
		return errors.New("no contracts")
	}
	seen := map[string]bool{}
	for i, s := range p.Contracts {
		if s.Name == "" {
			return fmt.Errorf("contracts[%d]: missing name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate contract %q", s.Name)
		}
		seen[s.Name] = true
		if s.Artifact == "" {
			return fmt.Errorf("%s: missing artifact", s.Name)
		}
		for j, c := range s.Calls {
			if c.Function == "" {
				return fmt.Errorf("%s: calls[%d]: missing function", s.Name, j)
			}
		}
	}
	return nil
}

// Select returns the steps carrying any of tags, in plan order. No tags
// selects everything.
func (p Plan) Select(tags []string) []Step {
	if len(tags) == 0 {
		return append([]Step(nil), p.Contracts...)
	}
	var out []Step
	for _, s := range p.Contracts {
		for _, t := range tags {
			if hasTag(s.Tags, t) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Artifact is a compiled contract: hardhat ({"abi","bytecode":"0x.."}) or
// foundry ({"abi","bytecode":{"object":"0x.."}}) output.
type Artifact struct {
	ABI      json.RawMessage
	Bytecode []byte
}

func LoadArtifact(path string) (Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}
	var raw struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode json.RawMessage `json:"bytecode"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Artifact{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(bytes.TrimSpace(raw.ABI)) == 0 {
		return Artifact{}, fmt.Errorf("%s: missing abi", path)
	}
	code, err := bytecode(raw.Bytecode)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s: %w", path, err)
	}
	return Artifact{ABI: raw.ABI, Bytecode: code}, nil
}

func bytecode(raw json.RawMessage) ([]byte, error) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("bytecode: %w", err)
		}
		hex = obj.Object
	}
	hex = strings.TrimSpace(hex)
	if !strings.HasPrefix(hex, "0x") {
		hex = "0x" + hex
	}
	if hex == "0x" {
		return nil, errors.New("empty bytecode")
	}
	code, err := hexutil.Decode(hex)
	if err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	return code, nil
}
