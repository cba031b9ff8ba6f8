// Package entropy provides injectable randomness for stochastic scoring.
// Engines take a Source rather than calling an ambient generator so that
// identical inputs are reproducible under a seeded source.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source yields floats in [0, 1). Implementations must be safe for
// concurrent use.
type Source interface {
	Float64() float64
}

// Seeded returns a deterministic Source. Two sources built from the same
// seed produce identical streams.
func Seeded(seed int64) Source {
	return &seeded{rng: mrand.New(mrand.NewSource(seed))}
}

type seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

func (s *seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Crypto returns a non-deterministic Source backed by crypto/rand.
// Used when no reproducibility is required.
func Crypto() Source {
	return cryptoSource{}
}

type cryptoSource struct{}

func (cryptoSource) Float64() float64 {
	return cryptoRandFloat()
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Fixed returns a Source that always yields v. Test helper.
func Fixed(v float64) Source {
	return fixed(v)
}

type fixed float64

func (f fixed) Float64() float64 { return float64(f) }
