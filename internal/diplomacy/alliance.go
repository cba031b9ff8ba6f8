// Alliance formation — willingness scoring, category recommendation, and
// term templates.
package diplomacy

import (
	"fmt"
	"math"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/faction"
)

// AllianceType categorizes the nature of a proposed alliance.
type AllianceType string

const (
	AllianceMilitary   AllianceType = "military"
	AllianceEconomic   AllianceType = "economic"
	AllianceDiplomatic AllianceType = "diplomatic"
	AllianceFull       AllianceType = "full"
)

// Valid reports whether t is a known alliance type.
func (t AllianceType) Valid() bool {
	switch t {
	case AllianceMilitary, AllianceEconomic, AllianceDiplomatic, AllianceFull:
		return true
	}
	return false
}

// MilitaryTerms groups the military clauses of an alliance.
type MilitaryTerms struct {
	MutualDefense      bool `json:"mutual_defense" yaml:"mutual_defense"`
	SharedIntelligence bool `json:"shared_intelligence" yaml:"shared_intelligence"`
	JointOperations    bool `json:"joint_operations" yaml:"joint_operations"`
	TroopCommitment    int  `json:"troop_commitment" yaml:"troop_commitment"`
}

// EconomicTerms groups the economic clauses.
type EconomicTerms struct {
	TradePreference      bool    `json:"trade_preference" yaml:"trade_preference"`
	SharedInfrastructure bool    `json:"shared_infrastructure" yaml:"shared_infrastructure"`
	ResourceSharing      bool    `json:"resource_sharing" yaml:"resource_sharing"`
	TariffReduction      float64 `json:"tariff_reduction" yaml:"tariff_reduction"`
}

// DiplomaticTerms groups the diplomatic clauses.
type DiplomaticTerms struct {
	Coordination     bool `json:"coordination" yaml:"coordination"`
	CulturalExchange bool `json:"cultural_exchange" yaml:"cultural_exchange"`
	SharedEmbassies  bool `json:"shared_embassies" yaml:"shared_embassies"`
}

// TerritorialTerms groups the territorial clauses.
type TerritorialTerms struct {
	BorderGuarantee bool `json:"border_guarantee" yaml:"border_guarantee"`
	TransitRights   bool `json:"transit_rights" yaml:"transit_rights"`
}

// AllianceTerms is the full term bundle under negotiation. Terms are value
// snapshots: a round that changes terms replaces the whole bundle rather
// than mutating it in place.
type AllianceTerms struct {
	Military    MilitaryTerms    `json:"military" yaml:"military"`
	Economic    EconomicTerms    `json:"economic" yaml:"economic"`
	Diplomatic  DiplomaticTerms  `json:"diplomatic" yaml:"diplomatic"`
	Territorial TerritorialTerms `json:"territorial" yaml:"territorial"`

	DurationDays       int      `json:"duration_days" yaml:"duration_days"`
	AutoRenew          bool     `json:"auto_renew" yaml:"auto_renew"`
	ExitClauses        []string `json:"exit_clauses" yaml:"exit_clauses"`
	ActivationTriggers []string `json:"activation_triggers,omitempty" yaml:"activation_triggers,omitempty"`
	SuspensionTriggers []string `json:"suspension_triggers,omitempty" yaml:"suspension_triggers,omitempty"`
}

// Clone returns an independent copy of the terms.
func (t AllianceTerms) Clone() AllianceTerms {
	out := t
	out.ExitClauses = append([]string(nil), t.ExitClauses...)
	out.ActivationTriggers = append([]string(nil), t.ActivationTriggers...)
	out.SuspensionTriggers = append([]string(nil), t.SuspensionTriggers...)
	return out
}

// TermOverrides carries explicit term proposals. Nil fields leave the
// current value untouched, so invalid or unknown keys are impossible.
type TermOverrides struct {
	MutualDefense        *bool    `json:"mutual_defense,omitempty" yaml:"mutual_defense,omitempty"`
	SharedIntelligence   *bool    `json:"shared_intelligence,omitempty" yaml:"shared_intelligence,omitempty"`
	JointOperations      *bool    `json:"joint_operations,omitempty" yaml:"joint_operations,omitempty"`
	TroopCommitment      *int     `json:"troop_commitment,omitempty" yaml:"troop_commitment,omitempty"`
	TradePreference      *bool    `json:"trade_preference,omitempty" yaml:"trade_preference,omitempty"`
	SharedInfrastructure *bool    `json:"shared_infrastructure,omitempty" yaml:"shared_infrastructure,omitempty"`
	ResourceSharing      *bool    `json:"resource_sharing,omitempty" yaml:"resource_sharing,omitempty"`
	TariffReduction      *float64 `json:"tariff_reduction,omitempty" yaml:"tariff_reduction,omitempty"`
	Coordination         *bool    `json:"coordination,omitempty" yaml:"coordination,omitempty"`
	CulturalExchange     *bool    `json:"cultural_exchange,omitempty" yaml:"cultural_exchange,omitempty"`
	SharedEmbassies      *bool    `json:"shared_embassies,omitempty" yaml:"shared_embassies,omitempty"`
	BorderGuarantee      *bool    `json:"border_guarantee,omitempty" yaml:"border_guarantee,omitempty"`
	TransitRights        *bool    `json:"transit_rights,omitempty" yaml:"transit_rights,omitempty"`
	DurationDays         *int     `json:"duration_days,omitempty" yaml:"duration_days,omitempty"`
	AutoRenew            *bool    `json:"auto_renew,omitempty" yaml:"auto_renew,omitempty"`
}

// Validate rejects out-of-range scalar overrides.
func (o *TermOverrides) Validate() error {
	if o == nil {
		return nil
	}
	if o.TroopCommitment != nil && *o.TroopCommitment < 0 {
		return fmt.Errorf("%w: troop commitment must be non-negative", ErrValidation)
	}
	if o.TariffReduction != nil && (*o.TariffReduction < 0 || *o.TariffReduction > 1) {
		return fmt.Errorf("%w: tariff reduction must be in [0,1]", ErrValidation)
	}
	if o.DurationDays != nil && *o.DurationDays < 1 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	return nil
}

// Apply overlays the overrides on a copy of the terms and returns it.
func (o *TermOverrides) Apply(t AllianceTerms) AllianceTerms {
	out := t.Clone()
	if o == nil {
		return out
	}
	if o.MutualDefense != nil {
		out.Military.MutualDefense = *o.MutualDefense
	}
	if o.SharedIntelligence != nil {
		out.Military.SharedIntelligence = *o.SharedIntelligence
	}
	if o.JointOperations != nil {
		out.Military.JointOperations = *o.JointOperations
	}
	if o.TroopCommitment != nil {
		out.Military.TroopCommitment = *o.TroopCommitment
	}
	if o.TradePreference != nil {
		out.Economic.TradePreference = *o.TradePreference
	}
	if o.SharedInfrastructure != nil {
		out.Economic.SharedInfrastructure = *o.SharedInfrastructure
	}
	if o.ResourceSharing != nil {
		out.Economic.ResourceSharing = *o.ResourceSharing
	}
	if o.TariffReduction != nil {
		out.Economic.TariffReduction = *o.TariffReduction
	}
	if o.Coordination != nil {
		out.Diplomatic.Coordination = *o.Coordination
	}
	if o.CulturalExchange != nil {
		out.Diplomatic.CulturalExchange = *o.CulturalExchange
	}
	if o.SharedEmbassies != nil {
		out.Diplomatic.SharedEmbassies = *o.SharedEmbassies
	}
	if o.BorderGuarantee != nil {
		out.Territorial.BorderGuarantee = *o.BorderGuarantee
	}
	if o.TransitRights != nil {
		out.Territorial.TransitRights = *o.TransitRights
	}
	if o.DurationDays != nil {
		out.DurationDays = *o.DurationDays
	}
	if o.AutoRenew != nil {
		out.AutoRenew = *o.AutoRenew
	}
	return out
}

// DefaultTerms builds the initial term template for an alliance type.
func DefaultTerms(t AllianceType) AllianceTerms {
	terms := AllianceTerms{
		DurationDays: 365,
		ExitClauses:  []string{"mutual consent", "material breach"},
	}
	switch t {
	case AllianceMilitary:
		terms.Military.MutualDefense = true
		terms.Military.SharedIntelligence = true
	case AllianceEconomic:
		terms.Economic.TradePreference = true
		terms.Economic.SharedInfrastructure = true
	case AllianceDiplomatic:
		terms.Diplomatic.Coordination = true
		terms.Diplomatic.CulturalExchange = true
	case AllianceFull:
		terms.Military.MutualDefense = true
		terms.Military.SharedIntelligence = true
		terms.Economic.TradePreference = true
		terms.Economic.SharedInfrastructure = true
		terms.Diplomatic.Coordination = true
		terms.Diplomatic.CulturalExchange = true
	}
	return terms
}

// Opportunity is the alliance-opportunity evaluation for one pair.
type Opportunity struct {
	Assessment Assessment `json:"assessment"`

	WillingnessA float64 `json:"willingness_a"`
	WillingnessB float64 `json:"willingness_b"`

	Recommended           []AllianceType `json:"recommended"`
	Risks                 []string       `json:"risks"`
	Benefits              []string       `json:"benefits"`
	EstimatedDurationDays int            `json:"estimated_duration_days"`
}

// FormationEngine combines compatibility and threat into alliance
// willingness and recommendations.
type FormationEngine struct {
	Compat   *CompatibilityEngine
	Provider faction.AttributeProvider
	Cal      *config.Calibration
}

// NewFormationEngine wires a formation engine around a compatibility engine.
func NewFormationEngine(compat *CompatibilityEngine, cal *config.Calibration) *FormationEngine {
	if cal == nil {
		cal = config.Default()
	}
	return &FormationEngine{Compat: compat, Provider: compat.Provider, Cal: cal}
}

// EvaluateOpportunity scores whether two factions should ally.
func (e *FormationEngine) EvaluateOpportunity(a, b faction.ID) (Opportunity, error) {
	assessment, err := e.Compat.Evaluate(a, b)
	if err != nil {
		return Opportunity{}, err
	}
	traitsA, err := e.Provider.HiddenAttributes(a)
	if err != nil {
		return Opportunity{}, err
	}
	traitsB, err := e.Provider.HiddenAttributes(b)
	if err != nil {
		return Opportunity{}, err
	}

	opp := Opportunity{
		Assessment:   assessment,
		WillingnessA: willingness(assessment, traitsA),
		WillingnessB: willingness(assessment, traitsB),
	}
	opp.Recommended = e.recommend(assessment, traitsA, traitsB)
	opp.Risks, opp.Benefits = riskBenefit(assessment, traitsA, traitsB)
	opp.EstimatedDurationDays = estimateDuration(assessment, traitsA, traitsB)
	return opp, nil
}

// willingness blends pair compatibility, external threat, and the
// faction's own appetite for entanglement.
func willingness(a Assessment, traits faction.TraitVector) float64 {
	return clamp01(0.4*a.Compatibility +
		0.3*a.ThreatLevel +
		0.15*traits.Normalized(faction.TraitPragmatism) +
		0.15*traits.Normalized(faction.TraitAmbition))
}

func (e *FormationEngine) recommend(a Assessment, ta, tb faction.TraitVector) []AllianceType {
	var out []AllianceType
	if a.Compatibility >= 0.8 && a.ThreatLevel >= 0.5 {
		out = append(out, AllianceFull)
	}
	if a.ThreatLevel >= 0.4 {
		out = append(out, AllianceMilitary)
	}
	pragMean := (ta.Normalized(faction.TraitPragmatism) + tb.Normalized(faction.TraitPragmatism)) / 2
	if pragMean >= 0.6 {
		out = append(out, AllianceEconomic)
	}
	if a.Compatibility >= 0.6 {
		out = append(out, AllianceDiplomatic)
	}
	if len(out) == 0 {
		out = append(out, AllianceDiplomatic)
	}
	return out
}

func riskBenefit(a Assessment, ta, tb faction.TraitVector) (risks, benefits []string) {
	ambitionGap := math.Abs(ta.Normalized(faction.TraitAmbition) - tb.Normalized(faction.TraitAmbition))
	if ambitionGap > 0.3 {
		benefits = append(benefits, "complementary ambition: clear senior and junior partner")
	} else if ta.Value(faction.TraitAmbition) >= 7 && tb.Value(faction.TraitAmbition) >= 7 {
		risks = append(risks, "both factions contend for leadership of the alliance")
	}
	if ta.Value(faction.TraitImpulsivity) >= 7 || tb.Value(faction.TraitImpulsivity) >= 7 {
		risks = append(risks, "impulsive partner may act without consultation")
	}
	if ta.Value(faction.TraitIntegrity) <= 3 || tb.Value(faction.TraitIntegrity) <= 3 {
		risks = append(risks, "low integrity raises treaty violation risk")
	}
	if ta.Value(faction.TraitIntegrity) >= 7 && tb.Value(faction.TraitIntegrity) >= 7 {
		benefits = append(benefits, "both partners reliably honor treaty terms")
	}
	if a.SharedEnemies > 0 {
		benefits = append(benefits, fmt.Sprintf("common defense against %d shared enemies", a.SharedEnemies))
	}
	if a.Compatibility >= 0.7 {
		benefits = append(benefits, "strong trait alignment supports long-term cooperation")
	}
	if a.Compatibility < 0.4 {
		risks = append(risks, "weak trait alignment strains day-to-day coordination")
	}
	return risks, benefits
}

// estimateDuration projects how long an alliance would hold, in days.
// Compatible, disciplined pairs hold longer.
func estimateDuration(a Assessment, ta, tb faction.TraitVector) int {
	discMean := (ta.Normalized(faction.TraitDiscipline) + tb.Normalized(faction.TraitDiscipline)) / 2
	days := 180 * (0.5 + a.Compatibility) * (0.5 + discMean)
	return int(math.Round(days))
}
