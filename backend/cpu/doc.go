// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
//   - Pure Go implementation (no CGO)
//   - Float32 and Float64 support
//   - NumPy-compatible broadcasting
//   - Row-parallel matrix multiplication
//
// Every operation allocates its result, so tensors saved for a backward
// pass are never overwritten by later operations.
//
// # Basic Usage
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32, backend)
//	y := tensor.Ones(tensor.Shape{2, 3}, tensor.Float32, backend)
//	z := x.Add(y)
//
// # Randomness
//
// The backend owns one generator, seeded with WithSeed. The CPU is not an
// accelerator device, so recomputed blocks on this backend must be run with
// recompute.WithPreserveRNGState(false).
//
// # Thread Safety
//
// Operations without randomness may run concurrently. Random draws mutate
// the generator and must not.
package cpu
