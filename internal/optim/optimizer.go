// Package optim implements optimization algorithms for training neural networks.
//
// Optimizers read the gradient accumulators filled by autodiff.Backward, so a
// training step is:
//
//	optimizer.ZeroGrad()
//	loss := lossFn.Forward(model.Forward(x), y)
//	if err := autodiff.Backward(engine, []*tensor.Tensor{loss}, nil); err != nil {
//	    return err
//	}
//	optimizer.Step()
//
// Updates are written straight into parameter storage and are never recorded.
package optim

import (
	"fmt"

	"github.com/born-ml/remat/internal/nn"
	"github.com/born-ml/remat/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// values returns the parameter's data and gradient as float64 copies, or
// ok=false if the parameter did not take part in the last backward pass.
func values(param *nn.Parameter) (data, grad []float64, ok bool) {
	g := param.Grad()
	if g == nil {
		return nil, nil, false
	}
	return param.Tensor().Values(), g.Values(), true
}

// store writes vals back into the parameter's storage.
func store(param *nn.Parameter, vals []float64) {
	raw := param.Tensor().Raw()
	switch raw.DType() {
	case tensor.Float32:
		data := raw.AsFloat32()
		for i, v := range vals {
			data[i] = float32(v)
		}
	case tensor.Float64:
		copy(raw.AsFloat64(), vals)
	default:
		panic(fmt.Sprintf("optim: unsupported parameter dtype %s", raw.DType()))
	}
}

func zeroGrads(params []*nn.Parameter) {
	nn.ZeroGrads(params)
}

// stateKey names per-parameter optimizer buffers in a state dict.
func stateKey(buffer string, index int) string {
	return fmt.Sprintf("%s.%d", buffer, index)
}

// loadBuffer restores one buffer from a state dict, validating its size.
func loadBuffer(state map[string][]float64, buffer string, index int, param *nn.Parameter) ([]float64, bool, error) {
	vals, ok := state[stateKey(buffer, index)]
	if !ok {
		return nil, false, nil
	}
	if want := param.Tensor().NumElements(); len(vals) != want {
		return nil, false, fmt.Errorf("%s shape mismatch for parameter %d: expected %d elements, got %d",
			buffer, index, want, len(vals))
	}
	return append([]float64(nil), vals...), true, nil
}
