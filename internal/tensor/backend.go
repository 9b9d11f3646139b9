package tensor

import "github.com/born-ml/remat/internal/random"

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Every operation returns a freshly allocated RawTensor (or a fresh view of
// its input); results never reuse the pointer identity of an operand.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor

	// Scalar operations
	MulScalar(x *RawTensor, scalar float64) *RawTensor
	AddScalar(x *RawTensor, scalar float64) *RawTensor

	// Element-wise math
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor

	// Reductions
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Metadata
	Name() string
	Device() Device

	// Generator returns the random generator of the backend's device.
	Generator() *random.Generator
}

// GradTracker is implemented by backends that record operations for
// reverse-mode differentiation (the autodiff decorator).
//
// Tensor methods use it to propagate the requires-grad flag and to register
// leaf tensors whose gradient accumulator must be filled by backward.
type GradTracker interface {
	// GradEnabled reports whether operations are currently being recorded.
	GradEnabled() bool

	// Watch registers a leaf tensor that participates in a recorded operation.
	Watch(t *Tensor)
}
