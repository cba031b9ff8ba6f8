package trust

import (
	"testing"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/faction"
)

func networkRoster(ids ...faction.ID) *faction.StaticProvider {
	snaps := make([]faction.Snapshot, len(ids))
	for i, id := range ids {
		snaps[i] = faction.Snapshot{ID: id}
	}
	return faction.NewStaticProvider(snaps...)
}

func TestAnalyzeMixedNetwork(t *testing.T) {
	store := NewMemoryStore()
	storedEvolution(t, store, Evolution{FactionA: "aral", FactionB: "boral", ATrustB: 0.8, BTrustA: 0.8})
	storedEvolution(t, store, Evolution{FactionA: "aral", FactionB: "coral", ATrustB: 0.2, BTrustA: 0.2})
	// boral/coral have no history and count as neutral.

	n := NewNetworkAnalyzer(store, networkRoster("aral", "boral", "coral"), nil)
	report, err := n.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.PairsTracked != 2 {
		t.Fatalf("pairs tracked = %d, want 2", report.PairsTracked)
	}
	if len(report.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(report.Clusters))
	}
	if report.Clusters[0].Members != [2]faction.ID{"aral", "boral"} {
		t.Fatalf("cluster members = %v", report.Clusters[0].Members)
	}
	if len(report.Hotspots) != 1 {
		t.Fatalf("hotspots = %d, want 1", len(report.Hotspots))
	}
	hs := report.Hotspots[0]
	if hs.FactionA != "aral" || hs.FactionB != "coral" || hs.Severity != "moderate" {
		t.Fatalf("hotspot = %+v", hs)
	}

	// Pair means: aral/boral 0.8, aral/coral 0.2, boral/coral neutral 0.5.
	if len(report.Influence) != 3 {
		t.Fatalf("influence entries = %d, want 3", len(report.Influence))
	}
	wantOrder := []faction.ID{"boral", "aral", "coral"}
	wantAvg := []float64{0.65, 0.5, 0.35}
	for i, inf := range report.Influence {
		if inf.Faction != wantOrder[i] {
			t.Fatalf("influence rank %d = %s, want %s", i, inf.Faction, wantOrder[i])
		}
		near(t, "avg trust of "+string(inf.Faction), inf.AvgTrust, wantAvg[i])
		if inf.Pairs != 2 {
			t.Fatalf("pairs for %s = %d, want 2", inf.Faction, inf.Pairs)
		}
	}

	// Network mean 0.5, variance 0.06; one of three pairs below 0.3.
	near(t, "stability", report.StabilityScore, 0.47)
	near(t, "conflict risk", report.ConflictRisk, 1.0/3.0)
}

func TestAnalyzeHighTension(t *testing.T) {
	store := NewMemoryStore()
	storedEvolution(t, store, Evolution{FactionA: "aral", FactionB: "boral", ATrustB: 0.05, BTrustA: 0.05})

	n := NewNetworkAnalyzer(store, networkRoster("aral", "boral"), nil)
	report, err := n.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Hotspots) != 1 || report.Hotspots[0].Severity != "high" {
		t.Fatalf("hotspots = %+v, want one high-severity entry", report.Hotspots)
	}
	near(t, "conflict risk", report.ConflictRisk, 1)
}

func TestAnalyzeConflictRiskFollowsCalibration(t *testing.T) {
	store := NewMemoryStore()
	storedEvolution(t, store, Evolution{FactionA: "aral", FactionB: "boral", ATrustB: 0.35, BTrustA: 0.35})

	cal := config.Default()
	cal.Network.HotspotThreshold = 0.4
	n := NewNetworkAnalyzer(store, networkRoster("aral", "boral"), cal)
	report, err := n.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// A 0.35 pair sits under the raised threshold for both the hotspot
	// flag and the conflict-risk count.
	if len(report.Hotspots) != 1 {
		t.Fatalf("hotspots = %d, want 1", len(report.Hotspots))
	}
	near(t, "conflict risk", report.ConflictRisk, 1)
}

func TestAnalyzeUntrackedNetworkIsNeutral(t *testing.T) {
	n := NewNetworkAnalyzer(NewMemoryStore(), networkRoster("aral", "boral", "coral"), nil)
	report, err := n.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.PairsTracked != 0 || len(report.Clusters) != 0 || len(report.Hotspots) != 0 {
		t.Fatalf("untracked network reported structure: %+v", report)
	}
	near(t, "stability", report.StabilityScore, 0.5)
	near(t, "conflict risk", report.ConflictRisk, 0)
	for _, inf := range report.Influence {
		near(t, "neutral influence", inf.AvgTrust, 0.5)
	}
}
