// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/remat/internal/nn"
	"github.com/born-ml/remat/tensor"
)

// Module is the base interface for all neural network components.
type Module = nn.Module

// Trainable is implemented by modules that behave differently in training
// and evaluation.
type Trainable = nn.Trainable

// Parameter represents a trainable parameter in a neural network.
type Parameter = nn.Parameter

// NewParameter creates a parameter and marks t as requiring gradients.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// SetTraining switches m into training or evaluation mode.
func SetTraining(m Module, training bool) {
	nn.SetTraining(m, training)
}

// LoadStateDict copies state into m's parameters.
func LoadStateDict(m Module, state map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict(m, state)
}

// ZeroGrads clears the gradients of params.
func ZeroGrads(params []*Parameter) {
	nn.ZeroGrads(params)
}
