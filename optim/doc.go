// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// Optimizers read the gradient accumulators that autodiff.Backward fills,
// so a step needs no gradient map:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//	for range steps {
//	    optimizer.ZeroGrad()
//	    loss := lossFn.Forward(model.Forward(x), y)
//	    if err := autodiff.Backward(engine, []*tensor.Tensor{loss}, nil); err != nil {
//	        return err
//	    }
//	    optimizer.Step()
//	    engine.Tape().Clear()
//	}
package optim
