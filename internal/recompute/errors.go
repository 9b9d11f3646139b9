package recompute

import "github.com/pkg/errors"

// Fatal usage errors. None of them is retried; they abort the training step.
var (
	// ErrUnsupportedDevice is returned when RNG preservation is requested on
	// a device without its own generator.
	ErrUnsupportedDevice = errors.New("recompute with RNG preservation is not supported on this device")

	// ErrShapeMismatch is returned when the replay produces a different
	// number of outputs than gradients received.
	ErrShapeMismatch = errors.New("recomputed output count does not match gradient count")

	// ErrNoGradientRequired is returned when no replayed output requires grad.
	ErrNoGradientRequired = errors.New("none of the outputs requires grad, this recompute is not necessary")

	// ErrGradientCountMismatch is returned when the outputs selected for the
	// local backward pass and their gradients differ in number.
	ErrGradientCountMismatch = errors.New("output and gradient counts differ")

	// ErrInvalidArgument is returned for unexpected keyword arguments.
	ErrInvalidArgument = errors.New("unexpected keyword arguments")
)
