// Compatibility scoring — weighted trait closeness plus external threat.
package diplomacy

import (
	"math"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/entropy"
	"github.com/talgya/statecraft/internal/faction"
)

// TraitScores breaks a compatibility score into its per-trait components.
type TraitScores struct {
	Integrity  float64 `json:"integrity"`
	Pragmatism float64 `json:"pragmatism"`
	Discipline float64 `json:"discipline"`
	Ambition   float64 `json:"ambition"`
}

// Assessment is the result of evaluating one faction pair.
type Assessment struct {
	FactionA      faction.ID  `json:"faction_a"`
	FactionB      faction.ID  `json:"faction_b"`
	Compatibility float64     `json:"compatibility"`
	ThreatLevel   float64     `json:"threat_level"`
	Compatible    bool        `json:"compatible"`
	TraitScores   TraitScores `json:"trait_scores"`
	SharedEnemies int         `json:"shared_enemies"`
}

// CompatibilityEngine scores how well two factions' hidden traits suit
// cooperation, and how much external pressure pushes them together.
type CompatibilityEngine struct {
	Provider faction.AttributeProvider
	Rand     entropy.Source
	Cal      *config.Calibration
}

// NewCompatibilityEngine wires a compatibility engine. A nil calibration
// falls back to defaults; a nil source falls back to crypto randomness.
func NewCompatibilityEngine(p faction.AttributeProvider, src entropy.Source, cal *config.Calibration) *CompatibilityEngine {
	if cal == nil {
		cal = config.Default()
	}
	if src == nil {
		src = entropy.Crypto()
	}
	return &CompatibilityEngine{Provider: p, Rand: src, Cal: cal}
}

// Evaluate computes the symmetric compatibility score and the threat level
// for a pair of factions. Either faction failing to resolve returns
// faction.ErrNotFound with no partial result.
func (e *CompatibilityEngine) Evaluate(a, b faction.ID) (Assessment, error) {
	snapA, err := e.Provider.Faction(a)
	if err != nil {
		return Assessment{}, err
	}
	snapB, err := e.Provider.Faction(b)
	if err != nil {
		return Assessment{}, err
	}
	traitsA, err := e.Provider.HiddenAttributes(a)
	if err != nil {
		return Assessment{}, err
	}
	traitsB, err := e.Provider.HiddenAttributes(b)
	if err != nil {
		return Assessment{}, err
	}

	cc := e.Cal.Compatibility
	scores := TraitScores{
		Integrity:  closeness(traitsA, traitsB, faction.TraitIntegrity),
		Pragmatism: closeness(traitsA, traitsB, faction.TraitPragmatism),
		Discipline: closeness(traitsA, traitsB, faction.TraitDiscipline),
		Ambition:   ambitionScore(traitsA, traitsB, cc),
	}

	compat := clamp01(scores.Integrity*cc.IntegrityWeight +
		scores.Pragmatism*cc.PragmatismWeight +
		scores.Discipline*cc.DisciplineWeight +
		scores.Ambition*cc.AmbitionWeight)

	shared := sharedEnemies(snapA, snapB)
	threat := clamp01(float64(shared)*cc.ThreatPerSharedEnemy + e.Rand.Float64()*cc.ThreatNoiseBound)

	return Assessment{
		FactionA:      a,
		FactionB:      b,
		Compatibility: compat,
		ThreatLevel:   threat,
		Compatible:    compat >= cc.CompatibleThreshold,
		TraitScores:   scores,
		SharedEnemies: shared,
	}, nil
}

// closeness is 1 minus the normalized trait distance.
func closeness(a, b faction.TraitVector, t faction.Trait) float64 {
	return 1 - math.Abs(a.Normalized(t)-b.Normalized(t))
}

// ambitionScore treats ambition specially: a gap beyond the divergence
// threshold is complementary (one leads, one follows) rather than a
// mismatch.
func ambitionScore(a, b faction.TraitVector, cc config.CompatibilityCal) float64 {
	gap := math.Abs(a.Normalized(faction.TraitAmbition) - b.Normalized(faction.TraitAmbition))
	if gap > cc.AmbitionDivergence {
		return cc.AmbitionComplementBonus
	}
	return 1 - gap
}

// sharedEnemies counts factions hostile to both sides.
func sharedEnemies(a, b faction.Snapshot) int {
	if len(a.Hostiles) == 0 || len(b.Hostiles) == 0 {
		return 0
	}
	hostile := make(map[faction.ID]bool, len(a.Hostiles))
	for _, h := range a.Hostiles {
		hostile[h] = true
	}
	count := 0
	for _, h := range b.Hostiles {
		if hostile[h] {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
