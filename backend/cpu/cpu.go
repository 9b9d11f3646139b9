// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/remat/internal/backend/cpu"
	"github.com/born-ml/remat/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option = internalcpu.Option

// DefaultSeed seeds the generator when WithSeed is not given.
const DefaultSeed = internalcpu.DefaultSeed

// WithSeed seeds the backend's generator.
func WithSeed(seed uint64) Option {
	return internalcpu.WithSeed(seed)
}

// New creates a new CPU backend.
//
//	backend := cpu.New(cpu.WithSeed(42))
//	x := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32, backend)
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}
