// Package config holds the calibration values for the diplomacy engine.
// Every numeric constant in the scoring formulas lives here as a named
// field so behavior can be tuned from a yaml file without code changes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Calibration models diplomat.yml.
type Calibration struct {
	Compatibility CompatibilityCal `yaml:"compatibility"`
	Betrayal      BetrayalCal      `yaml:"betrayal"`
	Negotiation   NegotiationCal   `yaml:"negotiation"`
	Trust         TrustCal         `yaml:"trust"`
	Relationship  RelationshipCal  `yaml:"relationship"`
	Network       NetworkCal       `yaml:"network"`
}

// CompatibilityCal governs pairwise trait scoring and threat estimation.
type CompatibilityCal struct {
	IntegrityWeight         float64 `yaml:"integrity_weight"`
	PragmatismWeight        float64 `yaml:"pragmatism_weight"`
	DisciplineWeight        float64 `yaml:"discipline_weight"`
	AmbitionWeight          float64 `yaml:"ambition_weight"`
	AmbitionDivergence      float64 `yaml:"ambition_divergence"`       // gap beyond which ambition difference helps
	AmbitionComplementBonus float64 `yaml:"ambition_complement_bonus"` // sub-score awarded for a complementary gap
	CompatibleThreshold     float64 `yaml:"compatible_threshold"`
	ThreatPerSharedEnemy    float64 `yaml:"threat_per_shared_enemy"`
	ThreatNoiseBound        float64 `yaml:"threat_noise_bound"`
}

// BetrayalCal governs the betrayal probability model.
type BetrayalCal struct {
	BaseRisk             float64 `yaml:"base_risk"`
	PressureIncrement    float64 `yaml:"pressure_increment"`
	DefeatIncrement      float64 `yaml:"defeat_increment"`
	ShortageIncrement    float64 `yaml:"shortage_increment"`
	OpportunityIncrement float64 `yaml:"opportunity_increment"`
	RiskCap              float64 `yaml:"risk_cap"`
	LowTierCeiling       float64 `yaml:"low_tier_ceiling"`
	MediumTierCeiling    float64 `yaml:"medium_tier_ceiling"`
}

// NegotiationCal governs session lifecycle bounds.
type NegotiationCal struct {
	MinParticipants    int     `yaml:"min_participants"`
	MaxParticipants    int     `yaml:"max_participants"`
	DeadlineDays       int     `yaml:"deadline_days"`
	MaxRounds          int     `yaml:"max_rounds"`
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
}

// TrustCal governs ledger updates.
type TrustCal struct {
	MaxDeltaPerEvent float64 `yaml:"max_delta_per_event"`
	BaselinePull     float64 `yaml:"baseline_pull"` // how far baseline compatibility shifts the 0.5 seed
	VolatilityWindow int     `yaml:"volatility_window"`
}

// RelationshipCal governs trend analysis.
type RelationshipCal struct {
	TrendWindowDays       int     `yaml:"trend_window_days"`
	RapidTrendThreshold   float64 `yaml:"rapid_trend_threshold"`
	SlowTrendThreshold    float64 `yaml:"slow_trend_threshold"`
	VolatilityThreshold   float64 `yaml:"volatility_threshold"`
	SignificanceThreshold float64 `yaml:"significance_threshold"`
	HighCompatibility     float64 `yaml:"high_compatibility"`
	LowCompatibility      float64 `yaml:"low_compatibility"`
	TurningPointLimit     int     `yaml:"turning_point_limit"`
}

// NetworkCal governs graph-level analysis.
type NetworkCal struct {
	ClusterThreshold     float64 `yaml:"cluster_threshold"`
	HotspotThreshold     float64 `yaml:"hotspot_threshold"`
	HighTensionThreshold float64 `yaml:"high_tension_threshold"`
	NeutralTrust         float64 `yaml:"neutral_trust"`
}

// Default returns the calibration matching the reference behavior.
func Default() *Calibration {
	return &Calibration{
		Compatibility: CompatibilityCal{
			IntegrityWeight:         0.35,
			PragmatismWeight:        0.25,
			DisciplineWeight:        0.25,
			AmbitionWeight:          0.15,
			AmbitionDivergence:      0.3,
			AmbitionComplementBonus: 0.8,
			CompatibleThreshold:     0.5,
			ThreatPerSharedEnemy:    0.2,
			ThreatNoiseBound:        0.25,
		},
		Betrayal: BetrayalCal{
			BaseRisk:             0.05,
			PressureIncrement:    0.15,
			DefeatIncrement:      0.10,
			ShortageIncrement:    0.08,
			OpportunityIncrement: 0.12,
			RiskCap:              0.8,
			LowTierCeiling:       0.3,
			MediumTierCeiling:    0.6,
		},
		Negotiation: NegotiationCal{
			MinParticipants:    2,
			MaxParticipants:    8,
			DeadlineDays:       30,
			MaxRounds:          20,
			ConsensusThreshold: 0.75,
		},
		Trust: TrustCal{
			MaxDeltaPerEvent: 0.2,
			BaselinePull:     0.2,
			VolatilityWindow: 5,
		},
		Relationship: RelationshipCal{
			TrendWindowDays:       90,
			RapidTrendThreshold:   0.15,
			SlowTrendThreshold:    0.05,
			VolatilityThreshold:   0.2,
			SignificanceThreshold: 0.3,
			HighCompatibility:     0.7,
			LowCompatibility:      0.3,
			TurningPointLimit:     5,
		},
		Network: NetworkCal{
			ClusterThreshold:     0.7,
			HotspotThreshold:     0.3,
			HighTensionThreshold: 0.1,
			NeutralTrust:         0.5,
		},
	}
}

// Validate ensures the calibration is internally coherent.
func (c *Calibration) Validate() error {
	weights := c.Compatibility.IntegrityWeight + c.Compatibility.PragmatismWeight +
		c.Compatibility.DisciplineWeight + c.Compatibility.AmbitionWeight
	if weights < 0.999 || weights > 1.001 {
		return fmt.Errorf("compatibility weights must sum to 1.0, got %.3f", weights)
	}
	for name, v := range map[string]float64{
		"compatibility.compatible_threshold": c.Compatibility.CompatibleThreshold,
		"compatibility.threat_noise_bound":   c.Compatibility.ThreatNoiseBound,
		"betrayal.base_risk":                 c.Betrayal.BaseRisk,
		"betrayal.risk_cap":                  c.Betrayal.RiskCap,
		"negotiation.consensus_threshold":    c.Negotiation.ConsensusThreshold,
		"trust.max_delta_per_event":          c.Trust.MaxDeltaPerEvent,
		"network.neutral_trust":              c.Network.NeutralTrust,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %.3f", name, v)
		}
	}
	if c.Betrayal.LowTierCeiling >= c.Betrayal.MediumTierCeiling {
		return fmt.Errorf("betrayal tier ceilings must be increasing")
	}
	if c.Negotiation.MinParticipants < 2 {
		return fmt.Errorf("negotiation.min_participants must be at least 2")
	}
	if c.Negotiation.MaxParticipants < c.Negotiation.MinParticipants {
		return fmt.Errorf("negotiation.max_participants below min_participants")
	}
	if c.Negotiation.MaxRounds < 1 {
		return fmt.Errorf("negotiation.max_rounds must be positive")
	}
	if c.Trust.VolatilityWindow < 2 {
		return fmt.Errorf("trust.volatility_window must be at least 2")
	}
	if c.Relationship.TrendWindowDays < 1 {
		return fmt.Errorf("relationship.trend_window_days must be positive")
	}
	if c.Relationship.TurningPointLimit < 1 {
		return fmt.Errorf("relationship.turning_point_limit must be positive")
	}
	return nil
}

// FromYAML parses and validates calibration from raw yaml bytes.
// Absent fields keep their default values.
func FromYAML(data []byte) (*Calibration, error) {
	cal := Default()
	if err := yaml.Unmarshal(data, cal); err != nil {
		return nil, fmt.Errorf("invalid calibration yaml: %w", err)
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

// FromFile reads yaml calibration from the given path.
func FromFile(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns Default() when the file does not exist.
func LoadOptional(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}
