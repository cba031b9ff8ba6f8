// Betrayal risk — trait-derived base risk plus external-factor modifiers.
package diplomacy

import (
	"math"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/faction"
)

// ExternalFactors are situational pressures acting on a potential betrayer.
type ExternalFactors struct {
	UnderPressure     bool `json:"under_pressure"`
	RecentDefeats     int  `json:"recent_defeats"`
	ResourceShortage  bool `json:"resource_shortage"`
	BetterOpportunity bool `json:"better_opportunity"`
}

// BetrayalReason classifies the primary motivation behind a likely betrayal.
type BetrayalReason string

const (
	ReasonAmbition    BetrayalReason = "ambition"
	ReasonOpportunity BetrayalReason = "opportunity"
	ReasonPressure    BetrayalReason = "pressure"
	ReasonIdeology    BetrayalReason = "ideology"
)

// RiskTier is a qualitative band over the betrayal probability.
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// BetrayalAssessment is the result of evaluating one alliance member.
type BetrayalAssessment struct {
	Faction     faction.ID             `json:"faction"`
	Probability float64                `json:"probability"`
	Reason      BetrayalReason         `json:"reason"`
	Tier        RiskTier               `json:"tier"`
	TrustDamage map[faction.ID]float64 `json:"trust_damage,omitempty"`
	Factors     ExternalFactors        `json:"factors"`
}

// Per-trait risk modifier tables keyed by raw trait value 0–10. Each table
// is monotonic: higher ambition or impulsivity never lowers risk, higher
// integrity never raises it.
var (
	ambitionRiskSteps    = [11]float64{-0.02, -0.02, -0.01, 0, 0, 0.02, 0.04, 0.06, 0.09, 0.12, 0.15}
	impulsivityRiskSteps = [11]float64{-0.02, -0.01, 0, 0, 0.01, 0.02, 0.04, 0.06, 0.10, 0.12, 0.14}
	integrityRiskSteps   = [11]float64{0.14, 0.12, 0.10, 0.07, 0.05, 0.02, 0, -0.02, -0.04, -0.06, -0.08}
	pragmatismRiskSteps  = [11]float64{0, 0, 0, 0, 0, 0.01, 0.01, 0.02, 0.02, 0.03, 0.03}
)

// Motivation rule thresholds.
const (
	ambitionDrivenFloor    = 7 // ambition at/above this with low integrity reads as ambition-driven
	lowIntegrityCeiling    = 4
	opportunisticPragFloor = 7
	repeatedDefeatsFloor   = 2 // defeats below this don't register as a pattern
)

// BetrayalRiskEngine estimates how likely a faction is to betray an
// existing alliance.
type BetrayalRiskEngine struct {
	Provider faction.AttributeProvider
	Cal      *config.Calibration
}

// NewBetrayalRiskEngine wires a betrayal risk engine.
func NewBetrayalRiskEngine(p faction.AttributeProvider, cal *config.Calibration) *BetrayalRiskEngine {
	if cal == nil {
		cal = config.Default()
	}
	return &BetrayalRiskEngine{Provider: p, Cal: cal}
}

// Assess computes the betrayal probability for id inside an alliance with
// the given other members. The probability is capped: betrayal is never
// modeled as a certainty.
func (e *BetrayalRiskEngine) Assess(id faction.ID, allies []faction.ID, f ExternalFactors) (BetrayalAssessment, error) {
	traits, err := e.Provider.HiddenAttributes(id)
	if err != nil {
		return BetrayalAssessment{}, err
	}

	bc := e.Cal.Betrayal
	risk := bc.BaseRisk
	risk += ambitionRiskSteps[traits.Value(faction.TraitAmbition)]
	risk += impulsivityRiskSteps[traits.Value(faction.TraitImpulsivity)]
	risk += integrityRiskSteps[traits.Value(faction.TraitIntegrity)]
	risk += pragmatismRiskSteps[traits.Value(faction.TraitPragmatism)]

	if f.UnderPressure {
		risk += bc.PressureIncrement
	}
	if f.RecentDefeats >= repeatedDefeatsFloor {
		risk += bc.DefeatIncrement
	}
	if f.ResourceShortage {
		risk += bc.ShortageIncrement
	}
	if f.BetterOpportunity {
		risk += bc.OpportunityIncrement
	}

	// The step tables and increments are calibrated in hundredths; shed the
	// accumulated float drift before banding.
	risk = math.Round(risk*1e4) / 1e4
	if risk > bc.RiskCap {
		risk = bc.RiskCap
	}
	if risk < 0 {
		risk = 0
	}

	damage := make(map[faction.ID]float64, len(allies))
	for _, ally := range allies {
		if ally == id {
			continue
		}
		// Expected damage: probability times the full per-event trust step
		// a betrayal would inflict on the betrayed side.
		damage[ally] = clamp01(risk * e.Cal.Trust.MaxDeltaPerEvent)
	}

	return BetrayalAssessment{
		Faction:     id,
		Probability: risk,
		Reason:      classifyReason(traits, f),
		Tier:        e.tier(risk),
		TrustDamage: damage,
		Factors:     f,
	}, nil
}

// classifyReason applies the motivation priority rule.
func classifyReason(traits faction.TraitVector, f ExternalFactors) BetrayalReason {
	switch {
	case traits.Value(faction.TraitAmbition) >= ambitionDrivenFloor &&
		traits.Value(faction.TraitIntegrity) <= lowIntegrityCeiling:
		return ReasonAmbition
	case f.UnderPressure:
		return ReasonPressure
	case traits.Value(faction.TraitPragmatism) >= opportunisticPragFloor:
		return ReasonOpportunity
	default:
		return ReasonIdeology
	}
}

func (e *BetrayalRiskEngine) tier(risk float64) RiskTier {
	switch {
	case risk < e.Cal.Betrayal.LowTierCeiling:
		return TierLow
	case risk < e.Cal.Betrayal.MediumTierCeiling:
		return TierMedium
	default:
		return TierHigh
	}
}
