package trust

import (
	"sort"
	"sync"

	"github.com/talgya/statecraft/internal/faction"
)

// MemoryStore is an in-memory RelationshipStore. Used in tests and when
// the engine runs without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	interactions map[PairKey][]Interaction
	evolutions   map[PairKey]Evolution
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		interactions: make(map[PairKey][]Interaction),
		evolutions:   make(map[PairKey]Evolution),
	}
}

// StoreInteraction appends an interaction to the pair's history.
func (m *MemoryStore) StoreInteraction(rec Interaction) error {
	key, _, _ := KeyFor(rec.Initiator, rec.Target)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions[key] = append(m.interactions[key], rec)
	return nil
}

// Interactions returns the pair's history ordered by timestamp.
func (m *MemoryStore) Interactions(a, b faction.ID) ([]Interaction, error) {
	key, _, _ := KeyFor(a, b)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Interaction(nil), m.interactions[key]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// StoreEvolution inserts or replaces the pair's evolution.
func (m *MemoryStore) StoreEvolution(ev Evolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evolutions[ev.Key()] = ev.Clone()
	return nil
}

// Evolution returns the pair's evolution, or (nil, nil) when absent.
func (m *MemoryStore) Evolution(a, b faction.ID) (*Evolution, error) {
	key, _, _ := KeyFor(a, b)
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.evolutions[key]
	if !ok {
		return nil, nil
	}
	out := ev.Clone()
	return &out, nil
}
