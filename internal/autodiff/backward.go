package autodiff

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/born-ml/remat/internal/tensor"
)

// Backward computes gradients of outputs with respect to every leaf tensor
// that requires gradients and took part in recording them, accumulating into
// each leaf's Grad.
//
// grads supplies the gradient of each output; a nil slice or nil entry means
// ones. Every output must require gradients.
//
// Errors raised inside the backward functions of custom operations are
// returned; the tape is left intact so the caller decides when to Clear it.
//
//	loss := model.Forward(x).Sub(y).Mul(...).Mean()
//	if err := autodiff.Backward(backend, []*tensor.Tensor{loss}, nil); err != nil {
//	    return err
//	}
func Backward(engine Engine, outputs, grads []*tensor.Tensor) error {
	if grads != nil && len(grads) != len(outputs) {
		return errors.Wrapf(ErrBackwardArity, "got %d gradients for %d outputs", len(grads), len(outputs))
	}

	roots := make(map[*tensor.RawTensor]*tensor.RawTensor, len(outputs))
	var rootLeaves []*tensor.Tensor
	for i, out := range outputs {
		if !out.RequiresGrad() {
			return errors.Wrapf(ErrNoGraph, "element %d of outputs", i)
		}
		seed, err := seedGradient(out, grads, i)
		if err != nil {
			return err
		}
		if existing, ok := roots[out.Raw()]; ok {
			engine.NoGrad(func() { roots[out.Raw()] = engine.Add(existing, seed) })
		} else {
			roots[out.Raw()] = seed
		}
		if out.IsLeaf() {
			rootLeaves = append(rootLeaves, out)
		}
	}

	tape := engine.Tape()
	var computed map[*tensor.RawTensor]*tensor.RawTensor
	err := exceptions.TryCatch[error](func() {
		computed = tape.BackwardFrom(roots, engine)
	})
	if err != nil {
		return err
	}

	seen := make(map[*tensor.RawTensor]bool)
	accumulate := func(leaf *tensor.Tensor) {
		if seen[leaf.Raw()] {
			return
		}
		seen[leaf.Raw()] = true
		if g, ok := computed[leaf.Raw()]; ok {
			leaf.AccumulateGrad(g)
		}
	}
	engine.NoGrad(func() {
		for _, leaf := range tape.Watched() {
			accumulate(leaf)
		}
		for _, leaf := range rootLeaves {
			accumulate(leaf)
		}
	})
	return nil
}

func seedGradient(out *tensor.Tensor, grads []*tensor.Tensor, i int) (*tensor.RawTensor, error) {
	if grads == nil || grads[i] == nil {
		return tensor.Ones(out.Shape(), out.DType(), out.Backend()).Raw(), nil
	}
	g := grads[i]
	if !g.Shape().Equal(out.Shape()) {
		return nil, errors.Wrapf(ErrGradientShape, "gradient %d has shape %v, output has shape %v", i, g.Shape(), out.Shape())
	}
	return g.Raw(), nil
}
