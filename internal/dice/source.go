package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Source is the randomness provider for dice rolls.
type Source interface {
	// IntN returns a random int in [0, n). n is always positive.
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// DefaultSource draws from the math/rand/v2 top-level generator.
// Unlike the sources returned by NewSource, it is safe for concurrent use.
var DefaultSource Source = globalSource{}

// NewSource returns a deterministic source for the given seed.
// The returned source must not be shared between goroutines.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRandomSource returns a source seeded from crypto/rand.
func NewRandomSource() (*rand.Rand, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSource(seed), nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
