// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/remat/internal/nn"
	"github.com/born-ml/remat/recompute"
	"github.com/born-ml/remat/tensor"
)

// Linear represents a fully connected layer.
type Linear = nn.Linear

// NewLinear creates a linear layer with Xavier-initialized weights.
func NewLinear(inFeatures, outFeatures int, dtype tensor.DataType, backend tensor.Backend) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, dtype, backend)
}

// ReLU applies max(0, x).
type ReLU = nn.ReLU

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// Tanh applies the hyperbolic tangent.
type Tanh = nn.Tanh

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh {
	return nn.NewTanh()
}

// Dropout zeroes elements with probability p during training.
type Dropout = nn.Dropout

// NewDropout creates a Dropout module in training mode.
func NewDropout(p float64) *Dropout {
	return nn.NewDropout(p)
}

// Sequential chains modules.
type Sequential = nn.Sequential

// NewSequential creates a Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// MSELoss is the mean squared error loss.
type MSELoss = nn.MSELoss

// NewMSELoss creates an MSE loss.
func NewMSELoss() *MSELoss {
	return nn.NewMSELoss()
}

// Checkpoint recomputes the wrapped module's activations during backward.
type Checkpoint = nn.Checkpoint

// NewCheckpoint wraps module in a recomputed block.
func NewCheckpoint(module Module, opts ...recompute.Option) *Checkpoint {
	return nn.NewCheckpoint(module, opts...)
}

// CheckpointSequential splits modules into segments and recomputes every
// segment except the last.
func CheckpointSequential(segments int, modules []Module, opts ...recompute.Option) (*Sequential, error) {
	return nn.CheckpointSequential(segments, modules, opts...)
}
