package nn

import (
	"fmt"

	"github.com/born-ml/remat/internal/tensor"
)

// Dropout zeroes each element with probability p during training and scales
// the survivors by 1/(1-p). The mask is drawn from the backend's device
// generator, so a recomputed block replays the same mask when the generator
// state is preserved.
type Dropout struct {
	stateless
	p        float64
	training bool
}

// NewDropout creates a Dropout module in training mode.
func NewDropout(p float64) *Dropout {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability %v out of range [0, 1)", p))
	}
	return &Dropout{p: p, training: true}
}

// SetTraining enables or disables dropout.
func (d *Dropout) SetTraining(training bool) {
	d.training = training
}

// Training reports whether dropout is active.
func (d *Dropout) Training() bool {
	return d.training
}

// Forward applies dropout in training mode and is the identity otherwise.
func (d *Dropout) Forward(input *tensor.Tensor) *tensor.Tensor {
	if !d.training || d.p == 0 {
		return input
	}
	mask := tensor.Bernoulli(input.Shape(), input.DType(), 1-d.p, input.Backend())
	return input.Mul(mask).MulScalar(1 / (1 - d.p))
}
