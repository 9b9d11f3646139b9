package autodiff

import "github.com/pkg/errors"

var (
	// ErrNoGraph is returned when backward is requested for a tensor that
	// does not require gradients.
	ErrNoGraph = errors.New("tensor does not require grad and has no recorded history")

	// ErrGradientShape is returned when a supplied or computed gradient does
	// not match the shape of the tensor it belongs to.
	ErrGradientShape = errors.New("gradient shape mismatch")

	// ErrContextConsumed is returned when the backward pass of a custom
	// function runs a second time.
	ErrContextConsumed = errors.New("function context already consumed by a backward pass")

	// ErrBackwardArity is returned when a custom function's backward returns
	// the wrong number of gradients.
	ErrBackwardArity = errors.New("backward returned wrong number of gradients")
)
