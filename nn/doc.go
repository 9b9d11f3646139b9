// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network modules.
//
// Layers hold their parameters as tensors that require gradients. Any
// module can be wrapped in a Checkpoint so that its activations are
// recomputed in the backward pass instead of being kept:
//
//	engine := autodiff.New(cpu.New())
//	model := nn.NewSequential(
//	    nn.NewCheckpoint(nn.NewSequential(
//	        nn.NewLinear(784, 256, tensor.Float32, engine),
//	        nn.NewReLU(),
//	    ), recompute.WithPreserveRNGState(false)),
//	    nn.NewLinear(256, 10, tensor.Float32, engine),
//	)
//
// CheckpointSequential builds the same structure from a flat module list.
package nn
