package recompute

import (
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/random"
	"github.com/born-ml/remat/internal/tensor"
)

// RunFunc is a recomputable block. It is called once in the forward pass
// and once more when gradients are needed, with the same arguments, so it
// must not depend on state that changes in between (other than the device
// generator, which can be replayed).
type RunFunc func(args ...any) ([]*tensor.Tensor, error)

// function is the recompute operator. A value serves exactly one forward
// and one backward pass.
type function struct {
	run              RunFunc
	preserveRNGState bool
	forwardRNGState  random.State

	inputs        []any // non-tensor arguments; nil at tensor slots
	tensorIndices []int
}

func newFunction(run RunFunc, preserveRNGState bool) *function {
	return &function{run: run, preserveRNGState: preserveRNGState}
}

// Forward runs the block without recording and keeps only what the replay
// needs. Apply has already disabled recording.
func (f *function) Forward(ctx *autodiff.FunctionContext, args ...any) ([]*tensor.Tensor, error) {
	if !anyRequiresGrad(args) {
		klog.Warning("[Recompute]: None of the inputs to current recompute block need grad, " +
			"therefore there is NO need to recompute this block in backward !")
	}

	f.inputs = make([]any, len(args))
	f.tensorIndices = f.tensorIndices[:0]
	var tensors []*tensor.Tensor
	for i, arg := range args {
		if t, ok := arg.(*tensor.Tensor); ok && t != nil {
			tensors = append(tensors, t)
			f.tensorIndices = append(f.tensorIndices, i)
			continue
		}
		f.inputs[i] = arg
	}
	ctx.SaveForBackward(tensors...)

	if f.preserveRNGState {
		engine := ctx.Engine()
		if device := engine.Device(); !device.IsAccelerator() {
			return nil, errors.Wrapf(ErrUnsupportedDevice, "current device: %s", device)
		}
		f.forwardRNGState = engine.Generator().State()
	}

	return f.run(args...)
}

// Backward replays the block on detached inputs with recording enabled on a
// private tape, then backpropagates the incoming gradients through the
// rebuilt graph. It returns one gradient per tensor argument, in argument
// order.
func (f *function) Backward(ctx *autodiff.FunctionContext, grads ...*tensor.Tensor) ([]*tensor.Tensor, error) {
	engine := ctx.Engine()

	inputs := slices.Clone(f.inputs)
	saved := ctx.SavedTensors()
	if len(saved) != len(f.tensorIndices) {
		return nil, errors.Errorf("recompute: %d saved tensors for %d tensor arguments", len(saved), len(f.tensorIndices))
	}
	for i, idx := range f.tensorIndices {
		inputs[idx] = saved[i]
	}
	klog.V(2).Infof("recompute: replaying block with %d arguments (%d tensors)", len(inputs), len(saved))

	var detached []any
	var err error
	engine.WithTape(autodiff.NewGradientTape(), func() {
		engine.EnableGrad(func() {
			var outputs []*tensor.Tensor
			replay := func() {
				detached = DetachAll(inputs)
				outputs, err = f.run(detached...)
			}
			if f.preserveRNGState {
				if rngErr := WithRNGState(engine.Generator(), f.forwardRNGState, replay); rngErr != nil {
					err = rngErr
				}
			} else {
				replay()
			}
			if err != nil {
				return
			}

			var roots, rootGrads []*tensor.Tensor
			roots, rootGrads, err = selectOutputs(outputs, grads)
			if err != nil {
				return
			}
			err = autodiff.Backward(engine, roots, rootGrads)
		})
	})
	if err != nil {
		return nil, err
	}

	result := make([]*tensor.Tensor, 0, len(f.tensorIndices))
	for _, idx := range f.tensorIndices {
		result = append(result, detached[idx].(*tensor.Tensor).Grad())
	}
	return result, nil
}

// selectOutputs pairs each replayed output that requires grad with its
// incoming gradient, dropping nil gradients.
func selectOutputs(outputs, grads []*tensor.Tensor) (roots, rootGrads []*tensor.Tensor, err error) {
	if len(outputs) != len(grads) {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "recomputed %d outputs, received %d gradients", len(outputs), len(grads))
	}
	for i, out := range outputs {
		if out == nil || !out.RequiresGrad() {
			continue
		}
		roots = append(roots, out)
		if grads[i] != nil {
			rootGrads = append(rootGrads, grads[i])
		}
	}
	if len(roots) == 0 {
		return nil, nil, errors.WithStack(ErrNoGradientRequired)
	}
	if len(roots) != len(rootGrads) {
		return nil, nil, errors.Wrapf(ErrGradientCountMismatch,
			"number of forward outputs is [%d], but the backward got [%d] inputs", len(roots), len(rootGrads))
	}
	return roots, rootGrads, nil
}
