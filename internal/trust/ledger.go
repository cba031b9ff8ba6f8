// Trust ledger — bidirectional trust evolution per faction pair.
package trust

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/faction"
)

// PairKey identifies an unordered faction pair. (A,B) and (B,A) resolve to
// the same key.
type PairKey string

// KeyFor returns the canonical key and the pair in canonical order.
func KeyFor(a, b faction.ID) (PairKey, faction.ID, faction.ID) {
	if b < a {
		a, b = b, a
	}
	return PairKey(string(a) + "|" + string(b)), a, b
}

// Sample is one point in a pair's trust history.
type Sample struct {
	At      time.Time `json:"at"`
	ATrustB float64   `json:"a_trusts_b"`
	BTrustA float64   `json:"b_trusts_a"`
}

// Category is a qualitative band over the mean of both trust directions.
type Category string

const (
	CategoryAbsoluteTrust Category = "absolute_trust"
	CategoryHighTrust     Category = "high_trust"
	CategoryModerateTrust Category = "moderate_trust"
	CategoryLowTrust      Category = "low_trust"
	CategoryDistrust      Category = "distrust"
	CategoryDeepMistrust  Category = "deep_mistrust"
)

// Evolution is the bidirectional trust relationship between exactly two
// factions, with FactionA < FactionB in canonical order. Created lazily on
// first interaction, updated on every subsequent one, never deleted.
type Evolution struct {
	FactionA faction.ID `json:"faction_a"`
	FactionB faction.ID `json:"faction_b"`

	ATrustB float64 `json:"a_trusts_b"`
	BTrustA float64 `json:"b_trusts_a"`

	History    []Sample `json:"history"`
	Volatility float64  `json:"volatility"`
	PeakTrust  float64  `json:"peak_trust"`
	LowTrust   float64  `json:"low_trust"`

	BaselineCompatibility float64   `json:"baseline_compatibility"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Key returns the pair's canonical key.
func (ev Evolution) Key() PairKey {
	k, _, _ := KeyFor(ev.FactionA, ev.FactionB)
	return k
}

// MeanTrust is the average of both trust directions.
func (ev Evolution) MeanTrust() float64 {
	return (ev.ATrustB + ev.BTrustA) / 2
}

// TrustToward returns how much `of` trusts the other faction in the pair.
func (ev Evolution) TrustToward(of faction.ID) float64 {
	if of == ev.FactionA {
		return ev.ATrustB
	}
	return ev.BTrustA
}

// Category classifies the current mean trust.
func (ev Evolution) Category() Category {
	mean := ev.MeanTrust()
	switch {
	case mean >= 0.9:
		return CategoryAbsoluteTrust
	case mean >= 0.7:
		return CategoryHighTrust
	case mean >= 0.5:
		return CategoryModerateTrust
	case mean >= 0.3:
		return CategoryLowTrust
	case mean >= 0.1:
		return CategoryDistrust
	default:
		return CategoryDeepMistrust
	}
}

// Clone returns an independent copy of the evolution.
func (ev Evolution) Clone() Evolution {
	out := ev
	out.History = append([]Sample(nil), ev.History...)
	return out
}

// RelationshipStore persists interactions and trust evolutions. A missing
// evolution is reported as (nil, nil), never as an error.
type RelationshipStore interface {
	StoreInteraction(rec Interaction) error
	Interactions(a, b faction.ID) ([]Interaction, error)
	StoreEvolution(ev Evolution) error
	Evolution(a, b faction.ID) (*Evolution, error)
}

// BaselineFunc supplies the baseline compatibility used to seed a new
// pair's trust. Typically backed by the compatibility engine.
type BaselineFunc func(a, b faction.ID) (float64, error)

// Ledger evolves pairwise trust from interaction records. Updates on one
// pair are serialized behind a per-pair lock: RecordInteraction is a
// read-modify-write against the store, and concurrent callers (the HTTP
// server) would otherwise lose events.
type Ledger struct {
	Store    RelationshipStore
	Baseline BaselineFunc
	Cal      *config.Calibration
	Now      func() time.Time

	mu    sync.Mutex
	locks map[PairKey]*sync.Mutex
}

// NewLedger wires a trust ledger.
func NewLedger(store RelationshipStore, baseline BaselineFunc, cal *config.Calibration) *Ledger {
	if cal == nil {
		cal = config.Default()
	}
	return &Ledger{
		Store:    store,
		Baseline: baseline,
		Cal:      cal,
		Now:      time.Now,
		locks:    make(map[PairKey]*sync.Mutex),
	}
}

// pairLock returns the mutex serializing writes to one canonical pair.
func (l *Ledger) pairLock(key PairKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[PairKey]*sync.Mutex)
	}
	lk, ok := l.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[key] = lk
	}
	return lk
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Initialize seeds a trust evolution for a pair. Compatible pairs start
// slightly above neutral, incompatible ones slightly below. Returns the
// existing evolution unchanged when one is already stored.
func (l *Ledger) Initialize(a, b faction.ID) (Evolution, error) {
	key, ca, cb := KeyFor(a, b)
	lk := l.pairLock(key)
	lk.Lock()
	defer lk.Unlock()
	return l.initializeLocked(ca, cb)
}

// initializeLocked is Initialize without the pair lock; the caller holds it.
func (l *Ledger) initializeLocked(ca, cb faction.ID) (Evolution, error) {
	existing, err := l.Store.Evolution(ca, cb)
	if err != nil {
		return Evolution{}, err
	}
	if existing != nil {
		return existing.Clone(), nil
	}

	baseline := 0.5
	if l.Baseline != nil {
		baseline, err = l.Baseline(ca, cb)
		if err != nil {
			return Evolution{}, err
		}
	}
	seed := clamp01(0.5 + (baseline-0.5)*l.Cal.Trust.BaselinePull)
	now := l.now()
	ev := Evolution{
		FactionA:              ca,
		FactionB:              cb,
		ATrustB:               seed,
		BTrustA:               seed,
		PeakTrust:             seed,
		LowTrust:              seed,
		BaselineCompatibility: baseline,
		UpdatedAt:             now,
		History:               []Sample{{At: now, ATrustB: seed, BTrustA: seed}},
	}
	if err := l.Store.StoreEvolution(ev); err != nil {
		return Evolution{}, err
	}
	return ev.Clone(), nil
}

// RecordInteraction applies one interaction to the pair's trust. The trust
// delta is bounded per event and applied asymmetrically: the target of the
// action updates its trust in the initiator by the full delta, while the
// initiator's trust in the target moves by half (reciprocal spill-over).
func (l *Ledger) RecordInteraction(rec Interaction) (Evolution, error) {
	if err := rec.Validate(); err != nil {
		return Evolution{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.At.IsZero() {
		rec.At = l.now()
	}
	rec.TensionImpact = rec.deriveTension()

	key, ca, cb := KeyFor(rec.Initiator, rec.Target)
	lk := l.pairLock(key)
	lk.Lock()
	defer lk.Unlock()

	ev, err := l.initializeLocked(ca, cb)
	if err != nil {
		return Evolution{}, err
	}

	delta := abs(rec.TrustImpact)
	if delta > l.Cal.Trust.MaxDeltaPerEvent {
		delta = l.Cal.Trust.MaxDeltaPerEvent
	}
	if rec.TrustImpact < 0 {
		delta = -delta
	}

	// Full delta for the wronged (or favored) side, half for the actor.
	if rec.Target == ev.FactionA {
		ev.ATrustB = clamp01(ev.ATrustB + delta)
		ev.BTrustA = clamp01(ev.BTrustA + delta/2)
	} else {
		ev.BTrustA = clamp01(ev.BTrustA + delta)
		ev.ATrustB = clamp01(ev.ATrustB + delta/2)
	}

	high := ev.ATrustB
	if ev.BTrustA > high {
		high = ev.BTrustA
	}
	low := ev.ATrustB
	if ev.BTrustA < low {
		low = ev.BTrustA
	}
	if high > ev.PeakTrust {
		ev.PeakTrust = high
	}
	if low < ev.LowTrust {
		ev.LowTrust = low
	}

	ev.History = append(ev.History, Sample{At: rec.At, ATrustB: ev.ATrustB, BTrustA: ev.BTrustA})
	ev.Volatility = volatility(ev.History, l.Cal.Trust.VolatilityWindow)
	ev.UpdatedAt = rec.At

	if err := l.Store.StoreInteraction(rec); err != nil {
		return Evolution{}, err
	}
	if err := l.Store.StoreEvolution(ev); err != nil {
		return Evolution{}, err
	}
	return ev.Clone(), nil
}

// Evolution returns the stored evolution for a pair, or (nil, nil).
func (l *Ledger) Evolution(a, b faction.ID) (*Evolution, error) {
	_, ca, cb := KeyFor(a, b)
	ev, err := l.Store.Evolution(ca, cb)
	if err != nil || ev == nil {
		return nil, err
	}
	out := ev.Clone()
	return &out, nil
}

// volatility is the variance of the max-of-both-directions trust over the
// most recent window samples, once enough samples exist.
func volatility(history []Sample, window int) float64 {
	if len(history) < window {
		return 0
	}
	recent := history[len(history)-window:]
	values := make([]float64, len(recent))
	mean := 0.0
	for i, s := range recent {
		v := s.ATrustB
		if s.BTrustA > v {
			v = s.BTrustA
		}
		values[i] = v
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return variance / float64(len(values))
}

func errValidationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
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
