// Negotiation session data model — phases, stances, positions, events.
package diplomacy

import (
	"time"

	"github.com/talgya/statecraft/internal/faction"
)

// Phase is a negotiation lifecycle stage.
type Phase string

const (
	PhaseProposal        Phase = "proposal"
	PhaseCounterProposal Phase = "counter_proposal"
	PhaseTermsDiscussion Phase = "terms_discussion"
	PhaseFinalReview     Phase = "final_review"
	PhaseRatification    Phase = "ratification"
	PhaseCompleted       Phase = "completed"
	PhaseRejected        Phase = "rejected"
	PhaseExpired         Phase = "expired"
)

// Terminal reports whether the phase accepts no further actions.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseRejected || p == PhaseExpired
}

// nextPhase returns the following working stage in the linear progression.
func (p Phase) nextPhase() Phase {
	switch p {
	case PhaseProposal:
		return PhaseCounterProposal
	case PhaseCounterProposal:
		return PhaseTermsDiscussion
	case PhaseTermsDiscussion:
		return PhaseFinalReview
	case PhaseFinalReview:
		return PhaseRatification
	default:
		return p
	}
}

// canTransition declares the legal phase edges. Every transition the engine
// performs passes through this guard.
func canTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseRejected || to == PhaseExpired {
		return true
	}
	if to == from.nextPhase() {
		return true
	}
	// Consensus can pull a session straight to ratification.
	if to == PhaseRatification {
		return true
	}
	// Completion only out of ratification.
	if to == PhaseCompleted {
		return from == PhaseRatification
	}
	return false
}

// Stance is a faction's categorical disposition toward one negotiation,
// derived from its traits and the alliance type.
type Stance string

const (
	StanceEager      Stance = "eager"
	StanceInterested Stance = "interested"
	StanceCautious   Stance = "cautious"
	StanceReluctant  Stance = "reluctant"
	StanceHostile    Stance = "hostile"
)

// Score returns the stance's contribution to success probability.
func (s Stance) Score() float64 {
	switch s {
	case StanceEager:
		return 1.0
	case StanceInterested:
		return 0.8
	case StanceCautious:
		return 0.5
	case StanceReluctant:
		return 0.2
	default:
		return 0.0
	}
}

// Accepting reports whether the stance counts toward consensus.
func (s Stance) Accepting() bool {
	return s == StanceEager || s == StanceInterested
}

// deriveStance classifies a faction's disposition from traits and the
// alliance type on the table. Economic proposals lower the pragmatism bar:
// trade pacts appeal to moderately pragmatic factions too.
func deriveStance(traits faction.TraitVector, t AllianceType) Stance {
	ambition := traits.Value(faction.TraitAmbition)
	pragmatism := traits.Value(faction.TraitPragmatism)

	interestedFloor := 7
	if t == AllianceEconomic {
		interestedFloor = 6
	}
	switch {
	case ambition >= 7 && pragmatism >= 6:
		return StanceEager
	case pragmatism >= interestedFloor:
		return StanceInterested
	case pragmatism >= 4:
		return StanceCautious
	case ambition <= 3:
		return StanceReluctant
	default:
		return StanceHostile
	}
}

// Action is a negotiation move by one participant.
type Action string

const (
	ActionAccept              Action = "accept"
	ActionCounter             Action = "counter"
	ActionRequestDetails      Action = "request_details"
	ActionConditionalInterest Action = "conditional_interest"
	ActionReject              Action = "reject"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAccept, ActionCounter, ActionRequestDetails, ActionConditionalInterest, ActionReject:
		return true
	}
	return false
}

// defaultResponse is the auto-response a stance produces before the
// faction has acted for itself.
func (s Stance) defaultResponse() Action {
	switch s {
	case StanceEager:
		return ActionAccept
	case StanceInterested:
		return ActionCounter
	case StanceCautious:
		return ActionRequestDetails
	case StanceReluctant:
		return ActionConditionalInterest
	default:
		return ActionReject
	}
}

// ActionParams carries optional payload for an action.
type ActionParams struct {
	Terms *TermOverrides `json:"terms,omitempty"`
	Note  string         `json:"note,omitempty"`
}

// DealBreaker is a term condition a faction will not negotiate past.
type DealBreaker string

const (
	DealBreakerNoAutoRenew        DealBreaker = "no_auto_renew"
	DealBreakerNoTroopCommitment  DealBreaker = "no_troop_commitment"
	DealBreakerRequireExitClause  DealBreaker = "require_exit_clause"
	DealBreakerNoBorderConcession DealBreaker = "no_border_concession"
)

// ViolatedBy reports whether the current terms cross the deal-breaker.
func (d DealBreaker) ViolatedBy(t AllianceTerms) bool {
	switch d {
	case DealBreakerNoAutoRenew:
		return t.AutoRenew
	case DealBreakerNoTroopCommitment:
		return t.Military.TroopCommitment > 0
	case DealBreakerRequireExitClause:
		return len(t.ExitClauses) == 0
	case DealBreakerNoBorderConcession:
		return t.Territorial.BorderGuarantee
	}
	return false
}

// deriveDealBreakers maps trait extremes to hard limits.
func deriveDealBreakers(traits faction.TraitVector) []DealBreaker {
	var out []DealBreaker
	if traits.Value(faction.TraitImpulsivity) <= 2 {
		out = append(out, DealBreakerNoAutoRenew)
	}
	if traits.Value(faction.TraitAmbition) <= 3 {
		out = append(out, DealBreakerNoTroopCommitment)
	}
	if traits.Value(faction.TraitIntegrity) >= 8 {
		out = append(out, DealBreakerRequireExitClause)
	}
	if traits.Value(faction.TraitDiscipline) >= 8 {
		out = append(out, DealBreakerNoBorderConcession)
	}
	return out
}

// Position is one faction's view inside a negotiation.
type Position struct {
	FactionID        faction.ID    `json:"faction_id"`
	Stance           Stance        `json:"stance"`
	Priorities       []string      `json:"priorities,omitempty"`
	DealBreakers     []DealBreaker `json:"deal_breakers,omitempty"`
	TrustRequirement float64       `json:"trust_requirement"`
	MinBenefit       float64       `json:"min_benefit"`
	Flexibility      float64       `json:"flexibility"`
	LastResponse     Action        `json:"last_response"`
}

// violated reports whether any of the position's deal-breakers are crossed
// by the given terms.
func (p Position) violated(t AllianceTerms) bool {
	for _, d := range p.DealBreakers {
		if d.ViolatedBy(t) {
			return true
		}
	}
	return false
}

func (p Position) clone() Position {
	out := p
	out.Priorities = append([]string(nil), p.Priorities...)
	out.DealBreakers = append([]DealBreaker(nil), p.DealBreakers...)
	return out
}

// derivePosition builds a faction's opening position from its traits.
func derivePosition(id faction.ID, traits faction.TraitVector, t AllianceType) Position {
	stance := deriveStance(traits, t)
	pos := Position{
		FactionID:        id,
		Stance:           stance,
		DealBreakers:     deriveDealBreakers(traits),
		TrustRequirement: clamp01(0.3 + traits.Normalized(faction.TraitIntegrity)*0.5),
		MinBenefit:       clamp01(0.2 + traits.Normalized(faction.TraitPragmatism)*0.4),
		Flexibility:      clamp01((traits.Normalized(faction.TraitPragmatism) + 1 - traits.Normalized(faction.TraitDiscipline)) / 2),
		LastResponse:     stance.defaultResponse(),
	}
	if traits.Value(faction.TraitAmbition) >= 7 {
		pos.Priorities = append(pos.Priorities, "leadership of joint operations")
	}
	if traits.Value(faction.TraitPragmatism) >= 7 {
		pos.Priorities = append(pos.Priorities, "trade preference")
	}
	if traits.Value(faction.TraitDiscipline) >= 7 {
		pos.Priorities = append(pos.Priorities, "clear activation triggers")
	}
	return pos
}

// Event is one entry in a session's append-only log.
type Event struct {
	ID      string     `json:"id"`
	At      time.Time  `json:"at"`
	Faction faction.ID `json:"faction"`
	Action  Action     `json:"action"`
	Phase   Phase      `json:"phase"`
	Note    string     `json:"note,omitempty"`
}

// Session is one multi-party negotiation. Sessions are mutated only through
// the negotiation engine; callers receive copies.
type Session struct {
	ID           string                  `json:"id"`
	Initiator    faction.ID              `json:"initiator"`
	Participants []faction.ID            `json:"participants"`
	Type         AllianceType            `json:"type"`
	Phase        Phase                   `json:"phase"`
	Terms        AllianceTerms           `json:"terms"`
	Positions    map[faction.ID]Position `json:"positions"`
	Events       []Event                 `json:"events"`

	RoundsCompleted    int       `json:"rounds_completed"`
	MaxRounds          int       `json:"max_rounds"`
	Deadline           time.Time `json:"deadline"`
	ConsensusThreshold float64   `json:"consensus_threshold"`

	SuccessProbability float64   `json:"success_probability"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// clone returns a deep copy safe to hand to callers.
func (s *Session) clone() Session {
	out := *s
	out.Participants = append([]faction.ID(nil), s.Participants...)
	out.Terms = s.Terms.Clone()
	out.Positions = make(map[faction.ID]Position, len(s.Positions))
	for id, p := range s.Positions {
		out.Positions[id] = p.clone()
	}
	out.Events = append([]Event(nil), s.Events...)
	return out
}

// isParticipant reports whether id takes part in the session.
func (s *Session) isParticipant(id faction.ID) bool {
	for _, p := range s.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// successProbability is the mean stance score across participants.
func (s *Session) successProbability() float64 {
	if len(s.Participants) == 0 {
		return 0
	}
	total := 0.0
	for _, p := range s.Positions {
		total += p.Stance.Score()
	}
	return total / float64(len(s.Participants))
}

// acceptingFraction is the share of participants with an accepting stance
// and no outstanding deal-breaker violation.
func (s *Session) acceptingFraction() float64 {
	if len(s.Participants) == 0 {
		return 0
	}
	count := 0
	for _, p := range s.Positions {
		if p.Stance.Accepting() && !p.violated(s.Terms) {
			count++
		}
	}
	return float64(count) / float64(len(s.Participants))
}

// SessionSummary is the listing projection of a session.
type SessionSummary struct {
	ID                 string       `json:"id"`
	Initiator          faction.ID   `json:"initiator"`
	Participants       []faction.ID `json:"participants"`
	Type               AllianceType `json:"type"`
	Phase              Phase        `json:"phase"`
	RoundsCompleted    int          `json:"rounds_completed"`
	SuccessProbability float64      `json:"success_probability"`
	Deadline           time.Time    `json:"deadline"`
}

func (s *Session) summary() SessionSummary {
	return SessionSummary{
		ID:                 s.ID,
		Initiator:          s.Initiator,
		Participants:       append([]faction.ID(nil), s.Participants...),
		Type:               s.Type,
		Phase:              s.Phase,
		RoundsCompleted:    s.RoundsCompleted,
		SuccessProbability: s.SuccessProbability,
		Deadline:           s.Deadline,
	}
}
