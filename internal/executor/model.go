package executor

import (
	"github.com/pkg/errors"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/nn"
	"github.com/born-ml/remat/internal/recompute"
	"github.com/born-ml/remat/internal/tensor"
)

// ErrDropoutWithoutReplay is returned by BuildMLP for a model that would
// recompute dropout without replaying the generator: the replay would draw a
// different mask than the forward pass used.
var ErrDropoutWithoutReplay = errors.New("dropout in recomputed segments requires RNG state preservation")

// ModelConfig describes the MLP built by BuildMLP.
type ModelConfig struct {
	Hidden  []int
	Dropout float64

	// Segments > 0 groups the hidden blocks into that many segments and
	// recomputes every segment except the last during backward.
	Segments int
}

// BuildMLP builds a float64 MLP of Linear+Tanh(+Dropout) blocks followed by
// a Linear head.
//
// RNG preservation defaults to whether the engine's device has its own
// generator; opts are applied after that default and may override it.
// Dropout combined with segments is rejected unless the resolved options
// preserve RNG state.
func BuildMLP(engine autodiff.Engine, in, out int, cfg ModelConfig, opts ...recompute.Option) (*nn.Sequential, error) {
	var modules []nn.Module
	width := in
	for _, h := range cfg.Hidden {
		modules = append(modules, nn.NewLinear(width, h, tensor.Float64, engine), nn.NewTanh())
		if cfg.Dropout > 0 {
			modules = append(modules, nn.NewDropout(cfg.Dropout))
		}
		width = h
	}
	modules = append(modules, nn.NewLinear(width, out, tensor.Float64, engine))

	if cfg.Segments == 0 {
		return nn.NewSequential(modules...), nil
	}
	opts = append([]recompute.Option{recompute.WithPreserveRNGState(engine.Device().IsAccelerator())}, opts...)
	if cfg.Dropout > 0 && !recompute.PreservesRNGState(opts...) {
		return nil, errors.Wrapf(ErrDropoutWithoutReplay, "dropout %v with %d segments on %s", cfg.Dropout, cfg.Segments, engine.Device())
	}
	return nn.CheckpointSequential(min(cfg.Segments, len(modules)), modules, opts...)
}
