package trust

import (
	"sort"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/faction"
)

// Cluster is a pair of factions bound by mutual high trust. Clusters are
// reported pairwise; overlapping pairs are not merged into larger groups.
type Cluster struct {
	Members   [2]faction.ID `json:"members"`
	MeanTrust float64       `json:"mean_trust"`
}

// Hotspot is a low-trust pair flagged as a potential flashpoint.
type Hotspot struct {
	FactionA  faction.ID `json:"faction_a"`
	FactionB  faction.ID `json:"faction_b"`
	MeanTrust float64    `json:"mean_trust"`
	Severity  string     `json:"severity"` // "high" or "moderate"
}

// Influence ranks one faction by how much the rest of the network trusts it.
type Influence struct {
	Faction  faction.ID `json:"faction"`
	AvgTrust float64    `json:"avg_trust"`
	Pairs    int        `json:"pairs"`
}

// NetworkReport is the network-wide view over every tracked faction pair.
type NetworkReport struct {
	Factions     []faction.ID `json:"factions"`
	PairsTracked int          `json:"pairs_tracked"`

	Clusters  []Cluster   `json:"clusters,omitempty"`
	Hotspots  []Hotspot   `json:"hotspots,omitempty"`
	Influence []Influence `json:"influence"`

	StabilityScore float64 `json:"stability_score"`
	ConflictRisk   float64 `json:"conflict_risk"`
}

// NetworkAnalyzer computes network-level structure over a faction roster.
type NetworkAnalyzer struct {
	Store    RelationshipStore
	Provider interface {
		IDs() []faction.ID
	}
	Cal *config.Calibration
}

// NewNetworkAnalyzer wires a network analyzer over a roster provider.
func NewNetworkAnalyzer(store RelationshipStore, provider interface{ IDs() []faction.ID }, cal *config.Calibration) *NetworkAnalyzer {
	if cal == nil {
		cal = config.Default()
	}
	return &NetworkAnalyzer{Store: store, Provider: provider, Cal: cal}
}

// Analyze walks every unordered faction pair in the roster. Pairs with no
// recorded history count as neutral (0.5) and are excluded from the tracked
// pair count, clusters, and hotspots.
func (n *NetworkAnalyzer) Analyze() (NetworkReport, error) {
	ids := n.Provider.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nc := n.Cal.Network
	report := NetworkReport{Factions: ids}

	sums := make(map[faction.ID]float64, len(ids))
	counts := make(map[faction.ID]int, len(ids))

	var trusts []float64
	lowPairs := 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			ev, err := n.Store.Evolution(a, b)
			if err != nil {
				return NetworkReport{}, err
			}
			mean := nc.NeutralTrust
			if ev != nil {
				mean = ev.MeanTrust()
				report.PairsTracked++

				if mean >= nc.ClusterThreshold {
					report.Clusters = append(report.Clusters, Cluster{
						Members:   [2]faction.ID{a, b},
						MeanTrust: mean,
					})
				}
				if mean <= nc.HotspotThreshold {
					severity := "moderate"
					if mean < nc.HighTensionThreshold {
						severity = "high"
					}
					report.Hotspots = append(report.Hotspots, Hotspot{
						FactionA:  a,
						FactionB:  b,
						MeanTrust: mean,
						Severity:  severity,
					})
				}
			}
			trusts = append(trusts, mean)
			if mean < nc.HotspotThreshold {
				lowPairs++
			}
			sums[a] += mean
			sums[b] += mean
			counts[a]++
			counts[b]++
		}
	}

	report.Influence = make([]Influence, 0, len(ids))
	for _, id := range ids {
		avg := nc.NeutralTrust
		if counts[id] > 0 {
			avg = sums[id] / float64(counts[id])
		}
		report.Influence = append(report.Influence, Influence{Faction: id, AvgTrust: avg, Pairs: counts[id]})
	}
	sort.SliceStable(report.Influence, func(i, j int) bool {
		if report.Influence[i].AvgTrust != report.Influence[j].AvgTrust {
			return report.Influence[i].AvgTrust > report.Influence[j].AvgTrust
		}
		return report.Influence[i].Faction < report.Influence[j].Faction
	})

	report.StabilityScore, report.ConflictRisk = networkScores(trusts, lowPairs)
	return report, nil
}

// networkScores derives the aggregate stability and conflict metrics from
// the per-pair mean trust values. Stability is the network mean discounted
// by its variance; conflict risk is the fraction of low-trust pairs.
func networkScores(trusts []float64, lowPairs int) (stability, risk float64) {
	if len(trusts) == 0 {
		return 0.5, 0
	}
	mean := 0.0
	for _, v := range trusts {
		mean += v
	}
	mean /= float64(len(trusts))
	variance := 0.0
	for _, v := range trusts {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(trusts))

	stability = clamp01(mean * (1 - variance))
	risk = float64(lowPairs) / float64(len(trusts))
	return stability, risk
}
