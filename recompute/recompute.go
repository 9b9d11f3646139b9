// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package recompute trades compute for memory during training.
//
// Run executes a block of tensor operations without keeping its
// intermediate activations. The block appears in the graph as a single node
// that replays the block during the backward pass and propagates gradients
// through the replayed copy. With RNG preservation on (the default), the
// replay restores the device generator so random operations such as dropout
// draw the same values as the forward pass.
//
//	engine := autodiff.New(backend)
//	outs, err := recompute.Run(engine, func(args ...any) ([]*tensor.Tensor, error) {
//	    x := args[0].(*tensor.Tensor)
//	    return []*tensor.Tensor{block.Forward(x)}, nil
//	}, []any{x})
package recompute

import (
	"github.com/born-ml/remat/autodiff"
	"github.com/born-ml/remat/internal/recompute"
	"github.com/born-ml/remat/tensor"
)

// RunFunc is the block to run. Non-tensor arguments are passed through
// unchanged.
type RunFunc = recompute.RunFunc

// Option configures Run.
type Option = recompute.Option

// KeyPreserveRNGState is the only keyword accepted by RunWithKwargs.
const KeyPreserveRNGState = recompute.KeyPreserveRNGState

// WithPreserveRNGState sets whether the device generator state is captured
// before the forward pass and restored for the replay. Defaults to true,
// which requires an accelerator device.
func WithPreserveRNGState(preserve bool) Option {
	return recompute.WithPreserveRNGState(preserve)
}

// PreservesRNGState reports whether opts leave RNG state preservation on.
func PreservesRNGState(opts ...Option) bool {
	return recompute.PreservesRNGState(opts...)
}

// Run executes fn(args...) as a recomputed block.
func Run(engine autodiff.Engine, fn RunFunc, args []any, opts ...Option) ([]*tensor.Tensor, error) {
	return recompute.Run(engine, fn, args, opts...)
}

// RunWithKwargs is Run with options given as named values.
func RunWithKwargs(engine autodiff.Engine, fn RunFunc, args []any, kwargs map[string]any) ([]*tensor.Tensor, error) {
	return recompute.RunWithKwargs(engine, fn, args, kwargs)
}

// ParseKwargs converts named options into Options.
func ParseKwargs(kwargs map[string]any) ([]Option, error) {
	return recompute.ParseKwargs(kwargs)
}

// DetachAll returns args with every tensor replaced by a detached copy that
// keeps its requires-grad flag.
func DetachAll(args []any) []any {
	return recompute.DetachAll(args)
}

// Errors returned by Run and by the backward pass through a recomputed block.
var (
	ErrUnsupportedDevice     = recompute.ErrUnsupportedDevice
	ErrShapeMismatch         = recompute.ErrShapeMismatch
	ErrNoGradientRequired    = recompute.ErrNoGradientRequired
	ErrGradientCountMismatch = recompute.ErrGradientCountMismatch
	ErrInvalidArgument       = recompute.ErrInvalidArgument
)
