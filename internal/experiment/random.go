package experiment

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RandomSource draws uniform integers in [0, n).
// Implementations must be safe for concurrent use.
type RandomSource interface {
	IntN(n int) int
}

// lockedRand guards a PCG generator; *rand.Rand is not safe for concurrent use.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

// NewRandomSource returns a PCG-backed source seeded from the wall clock.
func NewRandomSource() RandomSource {
	seed := uint64(time.Now().UnixNano())
	return NewSeededSource(seed, seed>>1|1)
}

// NewSeededSource returns a reproducible source. Tests use it to pin the
// sequence of tokens handed to new visitors.
func NewSeededSource(seed1, seed2 uint64) RandomSource {
	return &lockedRand{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// FixedSource always returns the same value (clamped to [0,n)). Useful in tests
// that need a specific token for a new visitor.
type FixedSource int

func (f FixedSource) IntN(n int) int {
	v := int(f)
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
