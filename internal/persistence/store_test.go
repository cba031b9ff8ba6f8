package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/talgya/statecraft/internal/diplomacy"
	"github.com/talgya/statecraft/internal/faction"
	"github.com/talgya/statecraft/internal/trust"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "diplomacy.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInteractionRoundTrip(t *testing.T) {
	st := openTestStore(t)

	rec := trust.Interaction{
		ID:               "int-1",
		At:               time.Date(2026, 4, 2, 15, 30, 0, 0, time.UTC),
		Kind:             trust.KindBetrayal,
		Initiator:        "vexmark",
		Target:           "ashfall",
		Description:      "broke the river accord",
		TrustImpact:      -0.9,
		ReputationImpact: -0.5,
		TensionImpact:    1,
		Severity:         0.8,
		Consequences:     []string{"trade embargo", "border closure"},
	}
	if err := st.StoreInteraction(rec); err != nil {
		t.Fatalf("StoreInteraction: %v", err)
	}

	// Order of the pair must not matter on read.
	got, err := st.Interactions("ashfall", "vexmark")
	if err != nil {
		t.Fatalf("Interactions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("interactions = %d, want 1", len(got))
	}
	if diff := cmp.Diff(rec, got[0]); diff != "" {
		t.Fatalf("interaction mismatch (-want +got):\n%s", diff)
	}
}

func TestInteractionsOrderedByTime(t *testing.T) {
	st := openTestStore(t)

	base := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		rec := trust.Interaction{
			ID:        string(rune('a' + i)),
			At:        base.Add(offset),
			Kind:      trust.KindBorderIncident,
			Initiator: "ashfall",
			Target:    "vexmark",
		}
		if err := st.StoreInteraction(rec); err != nil {
			t.Fatalf("StoreInteraction: %v", err)
		}
	}

	got, err := st.Interactions("ashfall", "vexmark")
	if err != nil {
		t.Fatalf("Interactions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("interactions = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].At.Before(got[i-1].At) {
			t.Fatalf("history out of order at %d: %v before %v", i, got[i].At, got[i-1].At)
		}
	}
}

func TestEvolutionRoundTrip(t *testing.T) {
	st := openTestStore(t)

	if ev, err := st.Evolution("ashfall", "vexmark"); err != nil || ev != nil {
		t.Fatalf("absent pair = (%v, %v), want (nil, nil)", ev, err)
	}

	now := time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC)
	want := trust.Evolution{
		FactionA:              "ashfall",
		FactionB:              "vexmark",
		ATrustB:               0.3,
		BTrustA:               0.45,
		Volatility:            0.02,
		PeakTrust:             0.58,
		LowTrust:              0.3,
		BaselineCompatibility: 0.41,
		UpdatedAt:             now,
		History: []trust.Sample{
			{At: now.Add(-time.Hour), ATrustB: 0.5, BTrustA: 0.5},
			{At: now, ATrustB: 0.3, BTrustA: 0.45},
		},
	}
	if err := st.StoreEvolution(want); err != nil {
		t.Fatalf("StoreEvolution: %v", err)
	}

	got, err := st.Evolution("vexmark", "ashfall")
	if err != nil {
		t.Fatalf("Evolution: %v", err)
	}
	if got == nil {
		t.Fatalf("stored evolution not found")
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("evolution mismatch (-want +got):\n%s", diff)
	}

	// A second store replaces the row.
	want.ATrustB = 0.1
	if err := st.StoreEvolution(want); err != nil {
		t.Fatalf("StoreEvolution again: %v", err)
	}
	got, err = st.Evolution("ashfall", "vexmark")
	if err != nil {
		t.Fatalf("Evolution: %v", err)
	}
	if got.ATrustB != 0.1 {
		t.Fatalf("a_trusts_b = %v, want 0.1", got.ATrustB)
	}
}

func TestSessionsFullReplace(t *testing.T) {
	st := openTestStore(t)

	now := time.Date(2026, 4, 4, 10, 0, 0, 0, time.UTC)
	first := diplomacy.Session{
		ID:                 "neg-1",
		Initiator:          "ashfall",
		Participants:       []faction.ID{"ashfall", "dawnspire"},
		Type:               diplomacy.AllianceMilitary,
		Phase:              diplomacy.PhaseProposal,
		Terms:              diplomacy.DefaultTerms(diplomacy.AllianceMilitary),
		Positions:          map[faction.ID]diplomacy.Position{},
		MaxRounds:          20,
		Deadline:           now.Add(30 * 24 * time.Hour),
		ConsensusThreshold: 0.75,
		SuccessProbability: 0.6,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	second := first
	second.ID = "neg-2"
	second.UpdatedAt = now.Add(time.Hour)

	if err := st.SaveSessions([]diplomacy.Session{first, second}); err != nil {
		t.Fatalf("SaveSessions: %v", err)
	}
	got, err := st.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("sessions = %d, want 2", len(got))
	}
	if got[0].ID != "neg-1" || got[1].ID != "neg-2" {
		t.Fatalf("session order = %s, %s", got[0].ID, got[1].ID)
	}
	if diff := cmp.Diff(first.Terms, got[0].Terms); diff != "" {
		t.Fatalf("terms mismatch (-want +got):\n%s", diff)
	}

	// The next save replaces the whole table.
	second.Phase = diplomacy.PhaseCompleted
	if err := st.SaveSessions([]diplomacy.Session{second}); err != nil {
		t.Fatalf("SaveSessions replace: %v", err)
	}
	got, err = st.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "neg-2" || got[0].Phase != diplomacy.PhaseCompleted {
		t.Fatalf("replace left %+v", got)
	}
}
