// Negotiation engine — multi-party session lifecycle and round processing.
package diplomacy

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/faction"
)

// ActionResult reports the outcome of one Advance call.
type ActionResult struct {
	Session            Session `json:"session"`
	Applied            Action  `json:"applied"`
	PhaseChanged       bool    `json:"phase_changed"`
	SuccessProbability float64 `json:"success_probability"`
}

// NegotiationEngine owns the active negotiation sessions. Mutations on one
// session are serialized behind the engine lock; reads return deep copies
// so callers never observe a torn session.
type NegotiationEngine struct {
	Provider faction.AttributeProvider
	Cal      *config.Calibration
	Now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewNegotiationEngine wires a negotiation engine.
func NewNegotiationEngine(p faction.AttributeProvider, cal *config.Calibration) *NegotiationEngine {
	if cal == nil {
		cal = config.Default()
	}
	return &NegotiationEngine{
		Provider: p,
		Cal:      cal,
		Now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (e *NegotiationEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Initiate opens a new negotiation between the initiator and its targets.
// Every participant must resolve via the attribute provider; participant
// count is validated against the configured bounds.
func (e *NegotiationEngine) Initiate(initiator faction.ID, targets []faction.ID, t AllianceType, overrides *TermOverrides) (Session, error) {
	if !t.Valid() {
		return Session{}, fmt.Errorf("%w: unknown alliance type %q", ErrValidation, t)
	}
	if err := overrides.Validate(); err != nil {
		return Session{}, err
	}

	participants := make([]faction.ID, 0, len(targets)+1)
	participants = append(participants, initiator)
	for _, id := range targets {
		if id == initiator || containsID(participants, id) {
			return Session{}, fmt.Errorf("%w: duplicate participant %s", ErrValidation, id)
		}
		participants = append(participants, id)
	}

	nc := e.Cal.Negotiation
	if len(participants) < nc.MinParticipants {
		return Session{}, fmt.Errorf("%w: have %d, need at least %d", ErrInsufficientParticipants, len(participants), nc.MinParticipants)
	}
	if len(participants) > nc.MaxParticipants {
		return Session{}, fmt.Errorf("%w: have %d, cap is %d", ErrTooManyParticipants, len(participants), nc.MaxParticipants)
	}

	positions := make(map[faction.ID]Position, len(participants))
	for _, id := range participants {
		traits, err := e.Provider.HiddenAttributes(id)
		if err != nil {
			return Session{}, err
		}
		positions[id] = derivePosition(id, traits, t)
	}

	now := e.now()
	s := &Session{
		ID:                 uuid.New().String(),
		Initiator:          initiator,
		Participants:       participants,
		Type:               t,
		Phase:              PhaseProposal,
		Terms:              overrides.Apply(DefaultTerms(t)),
		Positions:          positions,
		MaxRounds:          nc.MaxRounds,
		Deadline:           now.Add(time.Duration(nc.DeadlineDays) * 24 * time.Hour),
		ConsensusThreshold: nc.ConsensusThreshold,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// Each participant opens with its stance-derived auto-response.
	for _, id := range participants {
		s.Events = append(s.Events, Event{
			ID:      uuid.New().String(),
			At:      now,
			Faction: id,
			Action:  positions[id].LastResponse,
			Phase:   PhaseProposal,
			Note:    "opening response",
		})
	}
	s.SuccessProbability = s.successProbability()

	e.mu.Lock()
	e.sessions[s.ID] = s
	e.mu.Unlock()

	return s.clone(), nil
}

// Advance processes one action by one participant. Expiry is evaluated
// lazily here: a session past its deadline transitions to Expired before
// the action is considered, and the action is then refused.
func (e *NegotiationEngine) Advance(sessionID string, actor faction.ID, action Action, params ActionParams) (ActionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return ActionResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	now := e.now()
	if !s.Phase.Terminal() && now.After(s.Deadline) {
		e.transition(s, PhaseExpired, now)
	}
	if s.Phase.Terminal() {
		return ActionResult{}, fmt.Errorf("%w: session %s is %s", ErrSessionClosed, sessionID, s.Phase)
	}
	if !s.isParticipant(actor) {
		return ActionResult{}, fmt.Errorf("%w: %s", ErrNotAParticipant, actor)
	}
	if !action.Valid() {
		return ActionResult{}, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}
	if err := e.validateAction(action, params); err != nil {
		return ActionResult{}, err
	}

	// Validation is complete; everything below mutates the session as a
	// single unit.
	before := s.Phase
	e.applyAction(s, actor, action, params, now)

	s.Events = append(s.Events, Event{
		ID:      uuid.New().String(),
		At:      now,
		Faction: actor,
		Action:  action,
		Phase:   s.Phase,
		Note:    params.Note,
	})
	if s.RoundsCompleted < s.MaxRounds {
		s.RoundsCompleted++
	}
	s.UpdatedAt = now

	e.evaluatePhase(s, now)
	s.SuccessProbability = s.successProbability()

	return ActionResult{
		Session:            s.clone(),
		Applied:            action,
		PhaseChanged:       s.Phase != before,
		SuccessProbability: s.SuccessProbability,
	}, nil
}

// validateAction rejects structurally invalid action payloads before any
// session state changes.
func (e *NegotiationEngine) validateAction(action Action, params ActionParams) error {
	if action == ActionCounter {
		if params.Terms == nil {
			return fmt.Errorf("%w: counter requires proposed terms", ErrValidation)
		}
		return params.Terms.Validate()
	}
	if params.Terms != nil {
		return fmt.Errorf("%w: only counter carries term proposals", ErrValidation)
	}
	return nil
}

// applyAction updates the acting faction's position and, for counters, the
// term bundle on the table.
func (e *NegotiationEngine) applyAction(s *Session, actor faction.ID, action Action, params ActionParams, now time.Time) {
	pos := s.Positions[actor]
	pos.LastResponse = action

	switch action {
	case ActionAccept:
		if pos.Stance.Accepting() {
			pos.Stance = StanceEager
		} else {
			pos.Stance = StanceInterested
		}
	case ActionCounter:
		s.Terms = params.Terms.Apply(s.Terms)
	case ActionConditionalInterest:
		if pos.Stance == StanceReluctant || pos.Stance == StanceHostile {
			pos.Stance = StanceCautious
		}
	case ActionReject:
		pos.Stance = StanceHostile
	case ActionRequestDetails:
		// No stance movement; the request itself is logged.
	}
	s.Positions[actor] = pos
}

// evaluatePhase applies the transition rules after an action lands.
func (e *NegotiationEngine) evaluatePhase(s *Session, now time.Time) {
	// Any deal-breaker crossed by the current terms kills the deal.
	for _, p := range s.Positions {
		if p.violated(s.Terms) {
			e.transition(s, PhaseRejected, now)
			return
		}
	}

	if s.acceptingFraction() >= s.ConsensusThreshold {
		if s.Phase == PhaseRatification {
			e.transition(s, PhaseCompleted, now)
		} else {
			e.transition(s, PhaseRatification, now)
		}
		return
	}

	if s.RoundsCompleted >= s.MaxRounds {
		e.transition(s, PhaseExpired, now)
		return
	}

	// Without consensus the session walks the working stages: a counter
	// moves the proposal into counter-proposal; once every participant has
	// responded discussion opens; prolonged discussion reaches review.
	switch s.Phase {
	case PhaseProposal:
		if s.lastActionWas(ActionCounter) {
			e.transition(s, PhaseCounterProposal, now)
		}
	case PhaseCounterProposal:
		e.transition(s, PhaseTermsDiscussion, now)
	case PhaseTermsDiscussion:
		if s.RoundsCompleted >= 2*len(s.Participants) {
			e.transition(s, PhaseFinalReview, now)
		}
	case PhaseRatification:
		// Consensus lost after reaching ratification: fall back to review
		// is not allowed; the session stays here until consensus returns,
		// the deadline passes, or a deal-breaker lands.
	}
}

func (s *Session) lastActionWas(a Action) bool {
	if len(s.Events) == 0 {
		return false
	}
	return s.Events[len(s.Events)-1].Action == a
}

// transition moves the session to a new phase through the legal edge set.
func (e *NegotiationEngine) transition(s *Session, to Phase, now time.Time) {
	if !canTransition(s.Phase, to) {
		return
	}
	s.Phase = to
	s.UpdatedAt = now
}

// Status returns a read-only snapshot of a session. A session past its
// deadline reports Expired even though no background process fired; the
// stored session is not mutated, so Status stays safe to call concurrently
// with writers.
func (e *NegotiationEngine) Status(sessionID string) (Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	snap := s.clone()
	if !snap.Phase.Terminal() && e.now().After(snap.Deadline) {
		snap.Phase = PhaseExpired
	}
	return snap, nil
}

// ListActive returns summaries of non-terminal sessions, optionally
// filtered to one participant. Sessions past their deadline are omitted.
func (e *NegotiationEngine) ListActive(id faction.ID) []SessionSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	var out []SessionSummary
	for _, s := range e.sessions {
		if s.Phase.Terminal() || now.After(s.Deadline) {
			continue
		}
		if id != "" && !s.isParticipant(id) {
			continue
		}
		out = append(out, s.summary())
	}
	return out
}

// Restore loads previously persisted sessions into the arena. Used at
// startup; existing sessions with the same id are replaced.
func (e *NegotiationEngine) Restore(sessions []Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range sessions {
		s := sessions[i].clone()
		e.sessions[s.ID] = &s
	}
}

// Sessions returns snapshots of every session, terminal included. Used for
// persistence.
func (e *NegotiationEngine) Sessions() []Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s.clone())
	}
	return out
}

func containsID(ids []faction.ID, id faction.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
