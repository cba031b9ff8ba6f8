package trust

import (
	"errors"
	"testing"
	"time"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/faction"
)

var analyzerEpoch = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func testAnalyzer(store RelationshipStore) *Analyzer {
	a := NewAnalyzer(store, nil)
	a.Now = func() time.Time { return analyzerEpoch }
	return a
}

func storedEvolution(t *testing.T, store RelationshipStore, ev Evolution) {
	t.Helper()
	if err := store.StoreEvolution(ev); err != nil {
		t.Fatalf("StoreEvolution: %v", err)
	}
}

func TestSummarizeImprovingPair(t *testing.T) {
	store := NewMemoryStore()
	storedEvolution(t, store, Evolution{
		FactionA: "aral", FactionB: "boral",
		ATrustB: 0.6, BTrustA: 0.6,
		Volatility:            0.05,
		BaselineCompatibility: 0.8,
		History: []Sample{
			{At: analyzerEpoch.Add(-10 * 24 * time.Hour), ATrustB: 0.4, BTrustA: 0.4},
			{At: analyzerEpoch.Add(-5 * 24 * time.Hour), ATrustB: 0.5, BTrustA: 0.5},
			{At: analyzerEpoch, ATrustB: 0.6, BTrustA: 0.6},
		},
	})
	a := testAnalyzer(store)

	s, err := a.Summarize("boral", "aral")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.FactionA != "aral" || s.FactionB != "boral" {
		t.Fatalf("pair not canonical: %s/%s", s.FactionA, s.FactionB)
	}
	if s.Trend != TrendRapidlyImproving {
		t.Fatalf("trend = %s, want %s", s.Trend, TrendRapidlyImproving)
	}
	if s.Predicted != TrendRapidlyImproving {
		t.Fatalf("predicted = %s, want %s", s.Predicted, TrendRapidlyImproving)
	}
	if s.Category != CategoryModerateTrust {
		t.Fatalf("category = %s, want %s", s.Category, CategoryModerateTrust)
	}
	// 0.5*0.6 + 0.4*0.8 - 0.4*0.05.
	near(t, "alliance probability", s.AllianceProbability, 0.6)
	// No trust deficit: 0.4*0.05 + 0.3*(1-0.8).
	near(t, "conflict probability", s.ConflictProbability, 0.08)
	near(t, "stability", s.StabilityScore, 0.57)
}

func TestSummarizeReportsDiplomaticStatus(t *testing.T) {
	store := NewMemoryStore()
	storedEvolution(t, store, Evolution{
		FactionA: "aral", FactionB: "boral",
		ATrustB: 0.2, BTrustA: 0.2,
		History: []Sample{{At: analyzerEpoch, ATrustB: 0.2, BTrustA: 0.2}},
	})
	a := testAnalyzer(store)
	a.Status = faction.NewStaticProvider(
		faction.Snapshot{ID: "aral", Hostiles: []faction.ID{"boral"}},
		faction.Snapshot{ID: "boral", Hostiles: []faction.ID{"aral"}},
	)

	s, err := a.Summarize("aral", "boral")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Status != faction.StatusAtWar {
		t.Fatalf("status = %s, want %s", s.Status, faction.StatusAtWar)
	}
}

func TestSummarizeNoRelationship(t *testing.T) {
	a := testAnalyzer(NewMemoryStore())
	if _, err := a.Summarize("aral", "boral"); !errors.Is(err, ErrNoRelationship) {
		t.Fatalf("err = %v, want ErrNoRelationship", err)
	}
}

func TestClassifyTrendWindowed(t *testing.T) {
	store := NewMemoryStore()
	// Trust stood at 0.9 when the window opened and was 0.55 by the end;
	// the pre-window sample carries forward as the start value.
	storedEvolution(t, store, Evolution{
		FactionA: "aral", FactionB: "boral",
		ATrustB: 0.55, BTrustA: 0.55,
		History: []Sample{
			{At: analyzerEpoch.Add(-100 * 24 * time.Hour), ATrustB: 0.9, BTrustA: 0.9},
			{At: analyzerEpoch.Add(-10 * 24 * time.Hour), ATrustB: 0.5, BTrustA: 0.5},
			{At: analyzerEpoch, ATrustB: 0.55, BTrustA: 0.55},
		},
	})
	a := testAnalyzer(store)

	s, err := a.Summarize("aral", "boral")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Trend != TrendRapidlyDeclining {
		t.Fatalf("trend = %s, want %s", s.Trend, TrendRapidlyDeclining)
	}
}

func TestClassifyTrendDormantPairIsStable(t *testing.T) {
	store := NewMemoryStore()
	// Every sample predates the window: the trust value has not moved
	// inside it, however far it traveled before.
	storedEvolution(t, store, Evolution{
		FactionA: "aral", FactionB: "boral",
		ATrustB: 0.5, BTrustA: 0.5,
		History: []Sample{
			{At: analyzerEpoch.Add(-200 * 24 * time.Hour), ATrustB: 0.9, BTrustA: 0.9},
			{At: analyzerEpoch.Add(-100 * 24 * time.Hour), ATrustB: 0.5, BTrustA: 0.5},
		},
	})
	a := testAnalyzer(store)

	s, err := a.Summarize("aral", "boral")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Trend != TrendStable {
		t.Fatalf("trend = %s, want %s", s.Trend, TrendStable)
	}
}

func TestClassifyTrendVolatilityOverrides(t *testing.T) {
	store := NewMemoryStore()
	storedEvolution(t, store, Evolution{
		FactionA: "aral", FactionB: "boral",
		ATrustB: 0.7, BTrustA: 0.7,
		Volatility: 0.25,
		History: []Sample{
			{At: analyzerEpoch.Add(-time.Hour), ATrustB: 0.3, BTrustA: 0.3},
			{At: analyzerEpoch, ATrustB: 0.7, BTrustA: 0.7},
		},
	})
	a := testAnalyzer(store)

	s, err := a.Summarize("aral", "boral")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Trend != TrendVolatile {
		t.Fatalf("trend = %s, want %s", s.Trend, TrendVolatile)
	}
}

func TestPredictTrajectory(t *testing.T) {
	rc := config.Default().Relationship
	cases := []struct {
		name    string
		current Trend
		compat  float64
		want    Trend
	}{
		{"compatible pair recovers from rapid decline", TrendRapidlyDeclining, 0.9, TrendDeclining},
		{"compatible pair steadies a decline", TrendDeclining, 0.9, TrendStable},
		{"incompatible pair loses rapid momentum", TrendRapidlyImproving, 0.1, TrendImproving},
		{"incompatible pair stalls an improvement", TrendImproving, 0.1, TrendStable},
		{"middling compatibility changes nothing", TrendDeclining, 0.5, TrendDeclining},
		{"stable stays stable", TrendStable, 0.9, TrendStable},
	}
	for _, tc := range cases {
		if got := predictTrajectory(tc.current, tc.compat, rc); got != tc.want {
			t.Fatalf("%s: predicted %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestTurningPointsSignificantOnly(t *testing.T) {
	store := NewMemoryStore()
	storedEvolution(t, store, Evolution{
		FactionA: "aral", FactionB: "boral",
		ATrustB: 0.4, BTrustA: 0.4,
		History: []Sample{{At: analyzerEpoch, ATrustB: 0.4, BTrustA: 0.4}},
	})
	impacts := []float64{0.1, -0.9, 0.35, -0.2, 0.5, -0.4, 0.6, -0.45, 0.32}
	for i, impact := range impacts {
		err := store.StoreInteraction(Interaction{
			ID:          string(rune('a' + i)),
			At:          analyzerEpoch.Add(time.Duration(i) * time.Hour),
			Kind:        KindBorderIncident,
			Initiator:   "aral",
			Target:      "boral",
			TrustImpact: impact,
		})
		if err != nil {
			t.Fatalf("StoreInteraction: %v", err)
		}
	}
	a := testAnalyzer(store)

	s, err := a.Summarize("aral", "boral")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(s.TurningPoints) != 5 {
		t.Fatalf("turning points = %d, want 5", len(s.TurningPoints))
	}
	// Ordered by impact magnitude, most significant first.
	wantOrder := []float64{-0.9, 0.6, 0.5, -0.45, -0.4}
	for i, want := range wantOrder {
		if got := s.TurningPoints[i].TrustImpact; got != want {
			t.Fatalf("turning point %d impact = %v, want %v", i, got, want)
		}
	}
}
