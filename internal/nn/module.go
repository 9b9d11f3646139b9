// Package nn provides neural network building blocks on top of the tensor
// and autodiff packages.
package nn

import (
	"fmt"

	"github.com/born-ml/remat/internal/tensor"
)

// Module is the base interface for all neural network layers.
//
// Forward panics on shape misuse and on failures of checkpointed blocks;
// training loops recover those as errors.
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of the module.
	Parameters() []*Parameter

	// StateDict returns the module's parameters keyed by name.
	StateDict() map[string]*tensor.RawTensor
}

// Trainable is implemented by modules that behave differently in training
// and evaluation (e.g. Dropout).
type Trainable interface {
	SetTraining(training bool)
}

// SetTraining switches m and every module it contains into training or
// evaluation mode.
func SetTraining(m Module, training bool) {
	if t, ok := m.(Trainable); ok {
		t.SetTraining(training)
	}
}

// LoadStateDict copies the tensors in state into m's parameters. Every
// parameter must be present with a matching shape and dtype; extra entries
// are an error.
func LoadStateDict(m Module, state map[string]*tensor.RawTensor) error {
	target := m.StateDict()
	for name := range state {
		if _, ok := target[name]; !ok {
			return fmt.Errorf("load state dict: unexpected key %q", name)
		}
	}
	for name, dst := range target {
		src, ok := state[name]
		if !ok {
			return fmt.Errorf("load state dict: missing key %q", name)
		}
		if !src.Shape().Equal(dst.Shape()) || src.DType() != dst.DType() {
			return fmt.Errorf("load state dict: %q is %s%v, expected %s%v",
				name, src.DType(), src.Shape(), dst.DType(), dst.Shape())
		}
		copy(dst.Data(), src.Data())
	}
	return nil
}
