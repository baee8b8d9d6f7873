// Package stage gates which experience screen a player sees from the
// registration state read off chain.
package stage

import (
	"fmt"
	"strings"
	"sync"
)

type Stage int

const (
	ConnectWallet Stage = iota
	RegisterBiomes
	RegisterExperience
	SetupBiomesClient
	Experience
)

var stageNames = [...]string{
	ConnectWallet:      "CONNECT_WALLET",
	RegisterBiomes:     "REGISTER_BIOMES",
	RegisterExperience: "REGISTER_EXPERIENCE",
	SetupBiomesClient:  "SETUP_BIOMES_CLIENT",
	Experience:         "EXPERIENCE",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	v, ok := Parse(string(b))
	if !ok {
		return fmt.Errorf("unknown stage %q", b)
	}
	*s = v
	return nil
}

func Parse(name string) (Stage, bool) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), true
		}
	}
	return ConnectWallet, false
}

// Gates are the registration checks, in the order they must pass.
type Gates struct {
	WalletConnected      bool `json:"wallet_connected"`
	BiomesRegistered     bool `json:"biomes_registered"`
	ExperienceRegistered bool `json:"experience_registered"`
	ClientSetup          bool `json:"client_setup"`
}

// Resolve returns the screen for g: the first gate that has not passed.
func Resolve(g Gates) Stage {
	switch {
	case !g.WalletConnected:
		return ConnectWallet
	case !g.BiomesRegistered:
		return RegisterBiomes
	case !g.ExperienceRegistered:
		return RegisterExperience
	case !g.ClientSetup:
		return SetupBiomesClient
	default:
		return Experience
	}
}

// Machine holds the gates for one account and notifies listeners when the
// resolved stage changes.
type Machine struct {
	mu        sync.Mutex
	account   string
	gates     Gates
	stage     Stage
	listeners []func(Stage)
}

func NewMachine(account string, g Gates) *Machine {
	g.WalletConnected = g.WalletConnected || account != ""
	return &Machine{account: account, gates: g, stage: Resolve(g)}
}

func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

func (m *Machine) Gates() Gates {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gates
}

func (m *Machine) Account() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

// OnChange registers fn to run after every stage transition.
func (m *Machine) OnChange(fn func(Stage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Machine) SetBiomesRegistered(v bool) Stage {
	return m.update(func(g *Gates) { g.BiomesRegistered = v })
}

func (m *Machine) SetExperienceRegistered(v bool) Stage {
	return m.update(func(g *Gates) { g.ExperienceRegistered = v })
}

func (m *Machine) SetClientSetup(v bool) Stage {
	return m.update(func(g *Gates) { g.ClientSetup = v })
}

// SetGates replaces the chain-derived gates. The wallet gate follows the
// current account.
func (m *Machine) SetGates(next Gates) Stage {
	return m.update(func(g *Gates) {
		connected := g.WalletConnected
		*g = next
		g.WalletConnected = connected
	})
}

// ChangeAccount switches to another account (empty disconnects). All
// chain-derived gates reset until they are read again.
func (m *Machine) ChangeAccount(account string) Stage {
	return m.update(func(g *Gates) {
		m.account = account
		*g = Gates{WalletConnected: account != ""}
	})
}

func (m *Machine) update(fn func(*Gates)) Stage {
	m.mu.Lock()
	fn(&m.gates)
	prev := m.stage
	m.stage = Resolve(m.gates)
	cur := m.stage
	var listeners []func(Stage)
	if cur != prev {
		listeners = append(listeners, m.listeners...)
	}
	m.mu.Unlock()
	for _, l := range listeners {
		l(cur)
	}
	return cur
}
