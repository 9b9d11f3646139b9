// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// New wraps any backend with a decorator that records operations on a
// gradient tape. Backward walks the tape and fills the gradient accumulators
// of leaf tensors.
//
//	backend := autodiff.New(cpu.New())
//	x := tensor.Ones(tensor.Shape{2, 3}, tensor.Float64, backend).RequireGrad()
//	y := x.Mul(x).Sum()
//	if err := autodiff.Backward(backend, []*tensor.Tensor{y}, nil); err != nil {
//	    return err
//	}
//	fmt.Println(x.Grad().Values()) // 2x
//
// Custom differentiable operations implement Function and run through Apply.
package autodiff

import (
	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/tensor"
)

// Engine is a backend that records operations for differentiation.
type Engine = autodiff.Engine

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend. It starts
// recording.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new, non-recording gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// Backward accumulates the gradients of outputs into every leaf tensor that
// requires gradients. A nil grads slice or nil entry means ones.
func Backward(engine Engine, outputs, grads []*tensor.Tensor) error {
	return autodiff.Backward(engine, outputs, grads)
}

// Function is a custom differentiable operation.
type Function = autodiff.Function

// FunctionContext carries state from Function.Forward to Function.Backward.
type FunctionContext = autodiff.FunctionContext

// Apply runs fn and records it as a single graph node.
func Apply(engine Engine, fn Function, args ...any) ([]*tensor.Tensor, error) {
	return autodiff.Apply(engine, fn, args...)
}

// Errors returned by Backward and Apply.
var (
	ErrNoGraph         = autodiff.ErrNoGraph
	ErrGradientShape   = autodiff.ErrGradientShape
	ErrContextConsumed = autodiff.ErrContextConsumed
	ErrBackwardArity   = autodiff.ErrBackwardArity
)
