// Package autodiff implements reverse-mode automatic differentiation using
// the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and records every
// operation on a GradientTape while grad mode is enabled.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: records operations and the leaf tensors they consume
//   - Operation interface: each op implements its own backward pass
//   - Function: user-defined operations with custom forward and backward
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	x, _ := tensor.FromFloat32([]float32{2}, tensor.Shape{1}, backend)
//	x.RequireGrad()
//	y := x.Mul(x)
//	_ = autodiff.Backward(backend, []*tensor.Tensor{y}, nil)
//	fmt.Println(x.Grad().Values()) // dy/dx = 2x = [4]
package autodiff

import (
	"github.com/born-ml/remat/internal/autodiff/ops"
	"github.com/born-ml/remat/internal/random"
	"github.com/born-ml/remat/internal/tensor"
)

// Engine is a backend that records operations for differentiation.
//
// AutodiffBackend implements it; custom functions and checkpointing are
// written against this interface.
type Engine interface {
	tensor.Backend
	tensor.GradTracker

	// Tape returns the tape operations are currently recorded on.
	Tape() *GradientTape

	// NoGrad runs fn with recording disabled.
	NoGrad(fn func())

	// EnableGrad runs fn with recording enabled.
	EnableGrad(fn func())

	// WithTape runs fn with tape as the current tape.
	WithTape(tape *GradientTape, fn func())
}

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// AutodiffBackend is not safe for concurrent use: grad mode and the current
// tape are per-backend state.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend (CPU, GPU, etc.)
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
// The tape starts recording.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	tape := NewGradientTape()
	tape.StartRecording()
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  tape,
	}
}

// Tape returns the current gradient tape.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Generator returns the random generator of the wrapped backend's device.
func (b *AutodiffBackend[B]) Generator() *random.Generator {
	return b.inner.Generator()
}

// GradEnabled reports whether operations are currently recorded.
func (b *AutodiffBackend[B]) GradEnabled() bool {
	return b.tape.IsRecording()
}

// Watch registers a leaf tensor on the current tape.
func (b *AutodiffBackend[B]) Watch(t *tensor.Tensor) {
	b.tape.Watch(t)
}

// NoGrad executes fn with gradient recording disabled.
// The previous recording state is restored even if fn panics.
//
//	backend.NoGrad(func() {
//	    predictions := model.Forward(input) // not recorded
//	})
func (b *AutodiffBackend[B]) NoGrad(fn func()) {
	b.withRecording(false, fn)
}

// EnableGrad executes fn with gradient recording enabled.
func (b *AutodiffBackend[B]) EnableGrad(fn func()) {
	b.withRecording(true, fn)
}

func (b *AutodiffBackend[B]) withRecording(on bool, fn func()) {
	tape := b.tape
	was := tape.IsRecording()
	tape.recording = on
	defer func() { tape.recording = was }()
	fn()
}

// WithTape executes fn with tape as the current tape, then restores the
// previous one. Operations inside fn are recorded on tape only.
func (b *AutodiffBackend[B]) WithTape(tape *GradientTape, fn func()) {
	prev := b.tape
	b.tape = tape
	defer func() { b.tape = prev }()
	fn()
}

func (b *AutodiffBackend[B]) record(op ops.Operation) {
	if b.tape.IsRecording() {
		b.tape.Record(op)
	}
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.record(ops.NewMulOp(a, c, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.record(ops.NewDivOp(a, c, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.record(ops.NewMatMulOp(a, c, result))
	return result
}

// Reshape reshapes t and records the operation.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose permutes the dimensions of t and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	result := b.inner.Transpose(t, axes...)
	b.record(ops.NewTransposeOp(t, result, axes))
	return result
}

// Expand broadcasts x to shape and records the operation.
func (b *AutodiffBackend[B]) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Expand(x, shape)
	b.record(ops.NewExpandOp(x, result))
	return result
}

// MulScalar multiplies x by a constant and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := b.inner.MulScalar(x, scalar)
	b.record(ops.NewMulScalarOp(x, result, scalar))
	return result
}

// AddScalar adds a constant to x and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := b.inner.AddScalar(x, scalar)
	b.record(ops.NewAddScalarOp(x, result))
	return result
}

// Exp computes e^x and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Exp(x)
	b.record(ops.NewExpOp(x, result))
	return result
}

// Log computes ln(x) and records the operation.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Log(x)
	b.record(ops.NewLogOp(x, result))
	return result
}

// Tanh computes tanh(x) and records the operation.
func (b *AutodiffBackend[B]) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Tanh(x)
	b.record(ops.NewTanhOp(x, result))
	return result
}

// ReLU computes max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.record(ops.NewReLUOp(x, result))
	return result
}

// Sum reduces x to a scalar and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	b.record(ops.NewSumOp(x, result))
	return result
}

// SumDim sums x along dim and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.SumDim(x, dim, keepDim)
	b.record(ops.NewSumDimOp(x, result, dim, keepDim))
	return result
}
