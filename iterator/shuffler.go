package iterator

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// ShufflerState is an opaque, serializable snapshot of a shuffler's generator
// state. It round-trips through JSON as a base64 string, so checkpoint
// records stay plain data.
type ShufflerState []byte

// RandomShuffler is a seedable permutation generator whose internal state can
// be captured and restored. Every iterator in this package draws all of its
// randomness from an injected RandomShuffler; nothing reads a process-global
// source, so a restored state replays an epoch's draws exactly.
type RandomShuffler struct {
	pcg *rand.PCG
	rng *rand.Rand
}

// NewShuffler returns a shuffler seeded from seed. The same seed always
// produces the same draw sequence.
func NewShuffler(seed uint64) *RandomShuffler {
	// The second PCG word is a fixed stream selector so a single uint64 seed
	// fully determines the generator.
	pcg := rand.NewPCG(seed, 0x9e3779b97f4a7c15)
	return &RandomShuffler{pcg: pcg, rng: rand.New(pcg)}
}

// State captures the generator state as of the last draw.
func (s *RandomShuffler) State() ShufflerState {
	b, err := s.pcg.MarshalBinary()
	if err != nil {
		// rand.PCG marshaling never fails.
		return nil
	}
	st := make(ShufflerState, len(b))
	copy(st, b)
	return st
}

// Restore resets the generator to a previously captured snapshot.
func (s *RandomShuffler) Restore(st ShufflerState) error {
	if len(st) == 0 {
		return errors.New("shuffler state is empty")
	}
	if err := s.pcg.UnmarshalBinary(st); err != nil {
		return errors.Wrap(err, "restore shuffler state")
	}
	return nil
}

// Perm returns a random permutation of [0, n).
func (s *RandomShuffler) Perm(n int) []int {
	return s.rng.Perm(n)
}

// Float64 returns a uniform draw in [0, 1).
func (s *RandomShuffler) Float64() float64 {
	return s.rng.Float64()
}

// NormFloat64 returns a standard normal draw.
func (s *RandomShuffler) NormFloat64() float64 {
	return s.rng.NormFloat64()
}
