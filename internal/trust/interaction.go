// Package trust stores and evolves pairwise faction trust from a stream of
// diplomatic interactions, and derives relationship- and network-level
// analysis from it.
package trust

import (
	"errors"
	"time"

	"github.com/talgya/statecraft/internal/faction"
)

// Kind is a closed enumeration of diplomatic interaction types.
type Kind string

const (
	KindAllianceProposal   Kind = "alliance_proposal"
	KindAllianceAcceptance Kind = "alliance_acceptance"
	KindAllianceRejection  Kind = "alliance_rejection"
	KindTreatySigned       Kind = "treaty_signed"
	KindTreatyViolated     Kind = "treaty_violated"
	KindTradeAgreement     Kind = "trade_agreement"
	KindMilitarySupport    Kind = "military_support"
	KindBetrayal           Kind = "betrayal"
	KindDiplomaticInsult   Kind = "diplomatic_insult"
	KindTerritorialDispute Kind = "territorial_dispute"
	KindResourceConflict   Kind = "resource_conflict"
	KindCulturalExchange   Kind = "cultural_exchange"
	KindHumanitarianAid    Kind = "humanitarian_aid"
	KindEspionageDetected  Kind = "espionage_detected"
	KindBorderIncident     Kind = "border_incident"
	KindSuccessionSupport  Kind = "succession_support"
	KindMediationAttempt   Kind = "mediation_attempt"
)

// tensionMultipliers maps each kind to its fixed tension factor. Positive
// multipliers raise tension, negative ones defuse it.
var tensionMultipliers = map[Kind]float64{
	KindAllianceProposal:   -0.3,
	KindAllianceAcceptance: -0.6,
	KindAllianceRejection:  0.5,
	KindTreatySigned:       -1.0,
	KindTreatyViolated:     1.8,
	KindTradeAgreement:     -0.5,
	KindMilitarySupport:    -0.8,
	KindBetrayal:           2.0,
	KindDiplomaticInsult:   0.7,
	KindTerritorialDispute: 1.2,
	KindResourceConflict:   1.0,
	KindCulturalExchange:   -0.4,
	KindHumanitarianAid:    -0.6,
	KindEspionageDetected:  1.5,
	KindBorderIncident:     0.9,
	KindSuccessionSupport:  -0.5,
	KindMediationAttempt:   -0.7,
}

// Valid reports whether k is a known interaction kind.
func (k Kind) Valid() bool {
	_, ok := tensionMultipliers[k]
	return ok
}

// TensionMultiplier returns the kind's fixed tension factor.
func (k Kind) TensionMultiplier() float64 {
	return tensionMultipliers[k]
}

// Interaction is one diplomatic event between two factions. Immutable once
// recorded; history per pair is append-only.
type Interaction struct {
	ID          string     `json:"id" db:"id"`
	At          time.Time  `json:"at" db:"at"`
	Kind        Kind       `json:"kind" db:"kind"`
	Initiator   faction.ID `json:"initiator" db:"initiator"`
	Target      faction.ID `json:"target" db:"target"`
	Description string     `json:"description,omitempty" db:"description"`

	TrustImpact      float64  `json:"trust_impact" db:"trust_impact"`
	ReputationImpact float64  `json:"reputation_impact" db:"reputation_impact"`
	TensionImpact    float64  `json:"tension_impact" db:"tension_impact"`
	Severity         float64  `json:"severity" db:"severity"`
	Consequences     []string `json:"consequences,omitempty" db:"-"`
}

// ErrValidation marks a structurally invalid interaction.
var ErrValidation = errors.New("invalid interaction")

// Validate checks the interaction's scalar ranges and enum fields.
func (r Interaction) Validate() error {
	if !r.Kind.Valid() {
		return errValidationf("unknown interaction kind %q", string(r.Kind))
	}
	if r.Initiator == "" || r.Target == "" {
		return errValidationf("initiator and target are required")
	}
	if r.Initiator == r.Target {
		return errValidationf("initiator and target must differ")
	}
	if r.TrustImpact < -1 || r.TrustImpact > 1 {
		return errValidationf("trust impact must be in [-1,1]")
	}
	if r.ReputationImpact < -1 || r.ReputationImpact > 1 {
		return errValidationf("reputation impact must be in [-1,1]")
	}
	if r.Severity < 0 || r.Severity > 1 {
		return errValidationf("severity must be in [0,1]")
	}
	return nil
}

// deriveTension computes the tension impact from the trust impact magnitude
// and the kind's fixed multiplier, clamped to [-1,1].
func (r Interaction) deriveTension() float64 {
	t := abs(r.TrustImpact) * r.Kind.TensionMultiplier()
	if t > 1 {
		return 1
	}
	if t < -1 {
		return -1
	}
	return t
}
