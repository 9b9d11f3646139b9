// Package recompute implements activation recomputation (gradient
// checkpointing).
//
// Run executes a block without recording its intermediate activations and
// registers it on the tape as a single node. When the backward pass reaches
// that node, the block is executed again with recording enabled on a private
// tape and the incoming gradients are propagated through the rebuilt graph.
// Memory for the block's activations is traded for a second forward pass.
//
//	outs, err := recompute.Run(backend, func(args ...any) ([]*tensor.Tensor, error) {
//	    x := args[0].(*tensor.Tensor)
//	    return []*tensor.Tensor{block.Forward(x)}, nil
//	}, []any{x})
//
// With RNG preservation (the default) the device generator state at forward
// time is replayed, so stochastic operations such as dropout produce the same
// values twice. Replay is only supported on accelerator devices, one process
// per device; the generator swap is not safe for concurrent use.
package recompute

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/tensor"
)

// KeyPreserveRNGState is the only keyword accepted by RunWithKwargs.
const KeyPreserveRNGState = "preserve_rng_state"

type options struct {
	preserveRNGState bool
}

func defaultOptions() options {
	return options{preserveRNGState: true}
}

// Option configures Run.
type Option func(*options)

// WithPreserveRNGState controls whether the device generator state is
// captured in the forward pass and replayed in the backward pass.
// Defaults to true.
func WithPreserveRNGState(preserve bool) Option {
	return func(o *options) {
		o.preserveRNGState = preserve
	}
}

// Run calls fn(args...) as a recomputed block on engine and returns exactly
// what fn returns. args may mix tensors and arbitrary values; only tensors
// receive gradients.
func Run(engine autodiff.Engine, fn RunFunc, args []any, opts ...Option) ([]*tensor.Tensor, error) {
	if fn == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil function")
	}
	o := resolve(opts)
	return autodiff.Apply(engine, newFunction(fn, o.preserveRNGState), args...)
}

func resolve(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PreservesRNGState reports whether a block run with opts replays the
// device generator state.
func PreservesRNGState(opts ...Option) bool {
	return resolve(opts).preserveRNGState
}

// RunWithKwargs is Run with options given as named values, as read from a
// config file. Only "preserve_rng_state" (bool) is accepted.
func RunWithKwargs(engine autodiff.Engine, fn RunFunc, args []any, kwargs map[string]any) ([]*tensor.Tensor, error) {
	opts, err := ParseKwargs(kwargs)
	if err != nil {
		return nil, err
	}
	return Run(engine, fn, args, opts...)
}

// ParseKwargs converts named options into Options. Unknown keys are
// rejected with ErrInvalidArgument naming every one of them.
func ParseKwargs(kwargs map[string]any) ([]Option, error) {
	var opts []Option
	var unexpected []string
	for key, value := range kwargs {
		if key != KeyPreserveRNGState {
			unexpected = append(unexpected, key)
			continue
		}
		preserve, ok := value.(bool)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidArgument, "%s must be a bool, got %T", key, value)
		}
		opts = append(opts, WithPreserveRNGState(preserve))
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, errors.Wrap(ErrInvalidArgument, fmt.Sprintf("Unexpected keyword arguments: %s", strings.Join(unexpected, ",")))
	}
	return opts, nil
}
