package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Source is a goroutine-safe uniform integer source for winner draws.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource seeds a ChaCha8 generator from the operating system.
func NewSource() *Source {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:8], rand.Uint64())
		binary.LittleEndian.PutUint64(seed[8:16], rand.Uint64())
	}
	return &Source{rng: rand.New(rand.NewChaCha8(seed))}
}

// NewSeeded returns a deterministic source for reproducible draws.
func NewSeeded(seed1 uint64, seed2 uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
