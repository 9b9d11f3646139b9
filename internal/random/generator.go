// Package random implements the per-device pseudo-random generator used by
// stochastic tensor operations (dropout masks, random initialisation).
//
// The generator state can be captured and reinstalled as an opaque State.
// Replaying a captured state reproduces exactly the same stream of values,
// which is what activation recomputation relies on.
package random

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// StateSize is the size in bytes of a serialized generator state.
const StateSize = 16

// State is an immutable snapshot of a Generator.
type State []byte

// Generator is a seedable PCG generator with snapshot/restore support.
//
// A Generator is not safe for concurrent use: one device has one generator and
// it is driven by the goroutine executing the training step.
type Generator struct {
	src *rand.PCGSource
	rng *rand.Rand
}

// New creates a generator seeded with seed.
func New(seed uint64) *Generator {
	src := &rand.PCGSource{}
	src.Seed(seed)
	return &Generator{
		src: src,
		rng: rand.New(src),
	}
}

// Seed resets the generator to the deterministic state derived from seed.
func (g *Generator) Seed(seed uint64) {
	g.rng.Seed(seed)
}

// State captures the current generator state in a newly allocated snapshot.
func (g *Generator) State() State {
	data, err := g.src.MarshalBinary()
	if err != nil {
		// PCGSource never fails to marshal.
		panic(fmt.Sprintf("random: failed to capture generator state: %v", err))
	}
	return State(data)
}

// SetState installs a previously captured state.
func (g *Generator) SetState(s State) error {
	if len(s) != StateSize {
		return fmt.Errorf("random: invalid state size %d (want %d)", len(s), StateSize)
	}
	return g.src.UnmarshalBinary(s)
}

// Uint64 returns a pseudo-random 64-bit value.
func (g *Generator) Uint64() uint64 {
	return g.rng.Uint64()
}

// Float64 returns a pseudo-random number in [0.0, 1.0).
func (g *Generator) Float64() float64 {
	return g.rng.Float64()
}

// NormFloat64 returns a normally distributed number (mean 0, stddev 1).
func (g *Generator) NormFloat64() float64 {
	return g.rng.NormFloat64()
}
