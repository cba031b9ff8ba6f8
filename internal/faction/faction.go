// Package faction provides the faction data model and the provider
// interfaces the diplomacy engine depends on.
package faction

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ID is a unique identifier for a faction.
type ID string

// Trait is a hidden 0–10 personality dimension driving all scoring.
// Traits are never shown to end users.
type Trait string

const (
	TraitPragmatism  Trait = "pragmatism"
	TraitIntegrity   Trait = "integrity"
	TraitAmbition    Trait = "ambition"
	TraitImpulsivity Trait = "impulsivity"
	TraitDiscipline  Trait = "discipline"
)

// Traits lists every known trait in a stable order.
var Traits = []Trait{
	TraitPragmatism,
	TraitIntegrity,
	TraitAmbition,
	TraitImpulsivity,
	TraitDiscipline,
}

// TraitVector maps traits to integer values 0–10. Missing traits read as 0.
type TraitVector map[Trait]int

// Value returns the raw 0–10 value for a trait, clamped to range.
func (v TraitVector) Value(t Trait) int {
	val := v[t]
	if val < 0 {
		return 0
	}
	if val > 10 {
		return 10
	}
	return val
}

// Normalized returns the trait value scaled to [0,1].
func (v TraitVector) Normalized(t Trait) float64 {
	return float64(v.Value(t)) / 10.0
}

// Clone returns an independent copy of the vector.
func (v TraitVector) Clone() TraitVector {
	out := make(TraitVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Snapshot is the read-only public record of a faction supplied per call.
// The engine never mutates a snapshot.
type Snapshot struct {
	ID       ID          `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Traits   TraitVector `json:"traits" yaml:"traits"`
	Hostiles []ID        `json:"hostiles,omitempty" yaml:"hostiles,omitempty"`
}

// DiplomaticStatus is the coarse public relationship between two factions.
// Used only for reporting, never for core scoring.
type DiplomaticStatus string

const (
	StatusNeutral DiplomaticStatus = "neutral"
	StatusAllied  DiplomaticStatus = "allied"
	StatusTruce   DiplomaticStatus = "truce"
	StatusHostile DiplomaticStatus = "hostile"
	StatusAtWar   DiplomaticStatus = "at_war"
)

// ErrNotFound is returned when a faction id does not resolve.
var ErrNotFound = errors.New("faction not found")

// AttributeProvider resolves faction records and hidden trait vectors.
// Implemented by whatever persistence layer hosts the engine.
type AttributeProvider interface {
	Faction(id ID) (Snapshot, error)
	HiddenAttributes(id ID) (TraitVector, error)
}

// StatusProvider reports the public diplomatic status between two factions.
type StatusProvider interface {
	Status(a, b ID) (DiplomaticStatus, error)
}

// StaticProvider is an in-memory AttributeProvider backed by a fixed roster.
type StaticProvider struct {
	mu   sync.RWMutex
	byID map[ID]Snapshot
}

// NewStaticProvider builds a provider from the given snapshots.
func NewStaticProvider(snaps ...Snapshot) *StaticProvider {
	p := &StaticProvider{byID: make(map[ID]Snapshot, len(snaps))}
	for _, s := range snaps {
		p.byID[s.ID] = s
	}
	return p
}

// Add registers or replaces a faction snapshot.
func (p *StaticProvider) Add(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[s.ID] = s
}

// Faction returns the snapshot for id, or ErrNotFound.
func (p *StaticProvider) Faction(id ID) (Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byID[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// HiddenAttributes returns the trait vector for id, or ErrNotFound.
func (p *StaticProvider) HiddenAttributes(id ID) (TraitVector, error) {
	s, err := p.Faction(id)
	if err != nil {
		return nil, err
	}
	return s.Traits.Clone(), nil
}

// Status derives the public diplomatic status from the roster's hostility
// lists: mutual hostility reads as war, one-sided as hostile, anything else
// as neutral. Alliances and truces are negotiated state, not roster state,
// so they never originate here.
func (p *StaticProvider) Status(a, b ID) (DiplomaticStatus, error) {
	snapA, err := p.Faction(a)
	if err != nil {
		return "", err
	}
	snapB, err := p.Faction(b)
	if err != nil {
		return "", err
	}
	abHostile := containsID(snapA.Hostiles, b)
	baHostile := containsID(snapB.Hostiles, a)
	switch {
	case abHostile && baHostile:
		return StatusAtWar, nil
	case abHostile || baHostile:
		return StatusHostile, nil
	default:
		return StatusNeutral, nil
	}
}

func containsID(ids []ID, id ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// IDs returns all registered faction ids in sorted order.
func (p *StaticProvider) IDs() []ID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]ID, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
