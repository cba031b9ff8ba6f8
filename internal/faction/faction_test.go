package faction

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTraitVectorClamped(t *testing.T) {
	v := TraitVector{TraitAmbition: 14, TraitIntegrity: -3}
	if got := v.Value(TraitAmbition); got != 10 {
		t.Fatalf("Value(ambition) = %d, want 10", got)
	}
	if got := v.Value(TraitIntegrity); got != 0 {
		t.Fatalf("Value(integrity) = %d, want 0", got)
	}
	if got := v.Value(TraitDiscipline); got != 0 {
		t.Fatalf("missing trait = %d, want 0", got)
	}
	if got := v.Normalized(TraitAmbition); got != 1.0 {
		t.Fatalf("Normalized(ambition) = %v, want 1", got)
	}
}

func TestTraitVectorCloneIndependent(t *testing.T) {
	v := TraitVector{TraitAmbition: 5}
	c := v.Clone()
	c[TraitAmbition] = 9
	if v[TraitAmbition] != 5 {
		t.Fatalf("clone mutated original: %d", v[TraitAmbition])
	}
}

func TestStaticProviderLookup(t *testing.T) {
	p := NewStaticProvider(Snapshot{ID: "ashfall", Name: "Ashfall Pact", Traits: TraitVector{TraitAmbition: 5}})

	s, err := p.Faction("ashfall")
	if err != nil {
		t.Fatalf("Faction: %v", err)
	}
	if s.Name != "Ashfall Pact" {
		t.Fatalf("name = %q", s.Name)
	}
	if _, err := p.Faction("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := p.HiddenAttributes("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// Hidden attributes are a copy; callers can't reach the roster.
	traits, err := p.HiddenAttributes("ashfall")
	if err != nil {
		t.Fatalf("HiddenAttributes: %v", err)
	}
	traits[TraitAmbition] = 10
	again, _ := p.HiddenAttributes("ashfall")
	if again[TraitAmbition] != 5 {
		t.Fatalf("provider traits mutated through caller copy")
	}
}

func TestStaticProviderStatus(t *testing.T) {
	p := NewStaticProvider(
		Snapshot{ID: "ashfall", Hostiles: []ID{"vexmark"}},
		Snapshot{ID: "vexmark", Hostiles: []ID{"ashfall"}},
		Snapshot{ID: "dawnspire", Hostiles: []ID{"vexmark"}},
		Snapshot{ID: "meridian"},
	)

	cases := []struct {
		a, b ID
		want DiplomaticStatus
	}{
		{"ashfall", "vexmark", StatusAtWar},
		{"dawnspire", "vexmark", StatusHostile},
		{"vexmark", "dawnspire", StatusHostile},
		{"ashfall", "meridian", StatusNeutral},
	}
	for _, tc := range cases {
		got, err := p.Status(tc.a, tc.b)
		if err != nil {
			t.Fatalf("Status(%s,%s): %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Fatalf("Status(%s,%s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
	if _, err := p.Status("ashfall", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStaticProviderIDsSorted(t *testing.T) {
	p := NewStaticProvider(
		Snapshot{ID: "vexmark"},
		Snapshot{ID: "ashfall"},
		Snapshot{ID: "dawnspire"},
	)
	want := []ID{"ashfall", "dawnspire", "vexmark"}
	if diff := cmp.Diff(want, p.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestRosterFromYAML(t *testing.T) {
	data := []byte(`
factions:
  - id: ashfall
    name: Ashfall Pact
    traits:
      pragmatism: 7
      integrity: 9
    hostiles: [vexmark]
  - id: vexmark
    name: Vexmark Dominion
    traits:
      ambition: 9
`)
	p, err := RosterFromYAML(data)
	if err != nil {
		t.Fatalf("RosterFromYAML: %v", err)
	}
	s, err := p.Faction("ashfall")
	if err != nil {
		t.Fatalf("Faction: %v", err)
	}
	if s.Traits.Value(TraitIntegrity) != 9 || len(s.Hostiles) != 1 {
		t.Fatalf("parsed snapshot: %+v", s)
	}
}

func TestRosterFromYAMLInvalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not yaml", ":\t:"},
		{"empty roster", "factions: []"},
		{"missing id", "factions:\n  - name: Nameless"},
		{"duplicate id", "factions:\n  - id: ashfall\n  - id: ashfall"},
		{"trait out of range", "factions:\n  - id: ashfall\n    traits:\n      ambition: 11"},
	}
	for _, tc := range cases {
		if _, err := RosterFromYAML([]byte(tc.data)); err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
	}
}
