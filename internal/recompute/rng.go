package recompute

import (
	"github.com/pkg/errors"

	"github.com/born-ml/remat/internal/random"
)

// WithRNGState runs fn with state installed in gen, then restores the state
// gen had before the call. Restoration happens on every exit path, including
// a panic in fn.
//
// The swap is not a lock: two callers sharing gen at the same time corrupt
// each other's replay.
func WithRNGState(gen *random.Generator, state random.State, fn func()) error {
	orig := gen.State()
	if err := gen.SetState(state); err != nil {
		return errors.Wrap(err, "install rng state")
	}
	defer func() {
		if err := gen.SetState(orig); err != nil {
			panic(err)
		}
	}()
	fn()
	return nil
}
