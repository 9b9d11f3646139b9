package nn

import (
	"fmt"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/recompute"
	"github.com/born-ml/remat/internal/tensor"
)

// Checkpoint wraps a module so that its activations are recomputed during
// the backward pass instead of being kept from the forward pass.
//
// The wrapped module's parameters still receive gradients: they are
// consumed while the block is replayed. A block only enters the graph when
// its input requires gradients, so an input that does not (typically the
// data batch) is replaced by a detached alias that does whenever the module
// has parameters.
//
//	block := nn.NewCheckpoint(nn.NewSequential(linear, nn.NewTanh()),
//	    recompute.WithPreserveRNGState(false))
type Checkpoint struct {
	module Module
	opts   []recompute.Option
}

// NewCheckpoint wraps module. opts are passed to recompute.Run on every call.
func NewCheckpoint(module Module, opts ...recompute.Option) *Checkpoint {
	return &Checkpoint{module: module, opts: opts}
}

// Forward runs the wrapped module as a recomputed block. On a backend that
// does not record gradients the module runs directly.
//
// Errors from the recompute operator panic; they are usage errors that abort
// the training step.
func (c *Checkpoint) Forward(input *tensor.Tensor) *tensor.Tensor {
	engine, ok := input.Backend().(autodiff.Engine)
	if !ok {
		return c.module.Forward(input)
	}
	if !input.RequiresGrad() && engine.GradEnabled() && len(c.module.Parameters()) > 0 {
		input = input.Detach().RequireGrad()
	}
	outs, err := recompute.Run(engine, func(args ...any) ([]*tensor.Tensor, error) {
		return []*tensor.Tensor{c.module.Forward(args[0].(*tensor.Tensor))}, nil
	}, []any{input}, c.opts...)
	if err != nil {
		panic(err)
	}
	return outs[0]
}

// Module returns the wrapped module.
func (c *Checkpoint) Module() Module {
	return c.module
}

// Parameters returns the wrapped module's parameters.
func (c *Checkpoint) Parameters() []*Parameter {
	return c.module.Parameters()
}

// StateDict returns the wrapped module's state dict unchanged, so wrapping
// does not alter parameter names.
func (c *Checkpoint) StateDict() map[string]*tensor.RawTensor {
	return c.module.StateDict()
}

// SetTraining propagates the mode to the wrapped module.
func (c *Checkpoint) SetTraining(training bool) {
	SetTraining(c.module, training)
}

// CheckpointSequential splits modules into segments of consecutive modules
// and checkpoints every segment except the last, which runs normally since
// its activations are needed right away by the backward pass.
//
// segments must be in [1, len(modules)].
func CheckpointSequential(segments int, modules []Module, opts ...recompute.Option) (*Sequential, error) {
	if segments < 1 || segments > len(modules) {
		return nil, fmt.Errorf("checkpoint sequential: segments must be in [1, %d], got %d", len(modules), segments)
	}
	size := (len(modules) + segments - 1) / segments
	out := NewSequential()
	for start := 0; start < len(modules); start += size {
		end := min(start+size, len(modules))
		segment := NewSequential(modules[start:end]...)
		if end == len(modules) {
			for _, m := range segment.modules {
				out.Add(m)
			}
			continue
		}
		out.Add(NewCheckpoint(segment, opts...))
	}
	return out, nil
}
