package stage

import "testing"

func TestResolve_FirstFailingGateWins(t *testing.T) {
	cases := []struct {
		g    Gates
		want Stage
	}{
		{Gates{}, ConnectWallet},
		{Gates{BiomesRegistered: true, ExperienceRegistered: true, ClientSetup: true}, ConnectWallet},
		{Gates{WalletConnected: true}, RegisterBiomes},
		{Gates{WalletConnected: true, ExperienceRegistered: true, ClientSetup: true}, RegisterBiomes},
		{Gates{WalletConnected: true, BiomesRegistered: true}, RegisterExperience},
		{Gates{WalletConnected: true, BiomesRegistered: true, ClientSetup: true}, RegisterExperience},
		{Gates{WalletConnected: true, BiomesRegistered: true, ExperienceRegistered: true}, SetupBiomesClient},
		{Gates{WalletConnected: true, BiomesRegistered: true, ExperienceRegistered: true, ClientSetup: true}, Experience},
	}
	for _, c := range cases {
		if got := Resolve(c.g); got != c.want {
			t.Fatalf("Resolve(%+v)=%s want %s", c.g, got, c.want)
		}
	}
}

func TestResolve_BiomesUnregisteredAlwaysGates(t *testing.T) {
	for mask := 0; mask < 4; mask++ {
		g := Gates{
			WalletConnected:      true,
			ExperienceRegistered: mask&1 != 0,
			ClientSetup:          mask&2 != 0,
		}
		if got := Resolve(g); got != RegisterBiomes {
			t.Fatalf("Resolve(%+v)=%s", g, got)
		}
	}
}

func TestMachine_Transitions(t *testing.T) {
	m := NewMachine("0xabc", Gates{})
	if m.Stage() != RegisterBiomes {
		t.Fatalf("stage=%s", m.Stage())
	}
	var seen []Stage
	m.OnChange(func(s Stage) { seen = append(seen, s) })

	m.SetBiomesRegistered(true)
	m.SetExperienceRegistered(true)
	m.SetExperienceRegistered(true)
	if got := m.SetClientSetup(true); got != Experience {
		t.Fatalf("stage=%s", got)
	}
	want := []Stage{RegisterExperience, SetupBiomesClient, Experience}
	if len(seen) != len(want) {
		t.Fatalf("seen=%v want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen=%v want %v", seen, want)
		}
	}

	if got := m.ChangeAccount("0xdef"); got != RegisterBiomes {
		t.Fatalf("after account change stage=%s", got)
	}
	if got := m.ChangeAccount(""); got != ConnectWallet {
		t.Fatalf("after disconnect stage=%s", got)
	}
	if got := m.SetGates(Gates{BiomesRegistered: true, ExperienceRegistered: true, ClientSetup: true}); got != ConnectWallet {
		t.Fatalf("gates must not connect a wallet, stage=%s", got)
	}
}

func TestParse(t *testing.T) {
	for s := ConnectWallet; s <= Experience; s++ {
		got, ok := Parse(s.String())
		if !ok || got != s {
			t.Fatalf("Parse(%s)=%s,%v", s, got, ok)
		}
	}
	if _, ok := Parse("PLAY"); ok {
		t.Fatalf("expected unknown stage rejected")
	}
}
