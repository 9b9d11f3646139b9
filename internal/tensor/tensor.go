package tensor

import "fmt"

// Tensor is the graph-facing tensor handle.
//
// A Tensor pairs storage (RawTensor) with a backend and the autograd state:
// whether it requires gradients, whether it is a leaf (not produced by a
// recorded operation), and its gradient accumulator.
//
//	backend := autodiff.New(cpu.New())
//	x := tensor.Ones(tensor.Shape{2, 2}, tensor.Float32, backend).RequireGrad()
//	y := x.Mul(x) // recorded when the tape is recording
type Tensor struct {
	raw          *RawTensor
	backend      Backend
	grad         *Tensor
	requiresGrad bool
	leaf         bool
}

// New creates a leaf Tensor from a RawTensor and backend.
// The tensor does not require gradients.
func New(raw *RawTensor, b Backend) *Tensor {
	return &Tensor{
		raw:     raw,
		backend: b,
		leaf:    true,
	}
}

// NewNode creates a non-leaf Tensor produced by a recorded operation.
// Autograd extensions (custom functions) use it to own their outputs.
func NewNode(raw *RawTensor, b Backend) *Tensor {
	return &Tensor{
		raw:          raw,
		backend:      b,
		requiresGrad: true,
		leaf:         false,
	}
}

// IsTensor reports whether v is a *Tensor.
func IsTensor(v any) bool {
	t, ok := v.(*Tensor)
	return ok && t != nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.raw.DType()
}

// Device returns the tensor's compute device.
func (t *Tensor) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor) Backend() Backend {
	return t.backend
}

// RequireGrad marks this tensor for gradient computation and returns it.
func (t *Tensor) RequireGrad() *Tensor {
	t.requiresGrad = true
	return t
}

// RequiresGrad returns true if this tensor requires gradient computation.
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// SetRequiresGrad sets the gradient-tracking flag.
func (t *Tensor) SetRequiresGrad(requiresGrad bool) {
	t.requiresGrad = requiresGrad
}

// IsLeaf reports whether the tensor was not produced by a recorded operation.
func (t *Tensor) IsLeaf() bool {
	return t.leaf
}

// Grad returns the accumulated gradient, or nil if none was computed.
func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// SetGrad replaces the gradient accumulator.
func (t *Tensor) SetGrad(grad *Tensor) {
	t.grad = grad
}

// ZeroGrad clears the gradient accumulator.
func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

// AccumulateGrad adds g into the gradient accumulator.
func (t *Tensor) AccumulateGrad(g *RawTensor) {
	if !g.Shape().Equal(t.Shape()) {
		panic(fmt.Sprintf("accumulate grad: gradient shape %v does not match tensor shape %v", g.Shape(), t.Shape()))
	}
	if t.grad == nil {
		t.grad = New(g, t.backend)
		return
	}
	t.grad = New(t.backend.Add(t.grad.raw, g), t.backend)
}

// Detach returns a leaf tensor that shares the same storage but has no
// history in the autograd graph.
//
// The detached tensor is a distinct graph node and does not require
// gradients; callers that need the flag copy it explicitly.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		raw:     t.raw.Clone(),
		backend: t.backend,
		leaf:    true,
	}
}

// Float32s returns a zero-copy view of float32 data.
func (t *Tensor) Float32s() []float32 {
	return t.raw.AsFloat32()
}

// Float64s returns a zero-copy view of float64 data.
func (t *Tensor) Float64s() []float64 {
	return t.raw.AsFloat64()
}

// Values returns the data converted to float64 (a copy).
func (t *Tensor) Values() []float64 {
	return t.raw.Float64s()
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() float64 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", t.Shape()))
	}
	return t.raw.Float64s()[0]
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}

// derive wraps the result of a backend operation applied to inputs.
//
// When the backend is recording and any input requires gradients, the result
// is a non-leaf that requires gradients, and leaf inputs are registered with
// the tracker so backward can fill their accumulators.
func (t *Tensor) derive(raw *RawTensor, inputs ...*Tensor) *Tensor {
	out := New(raw, t.backend)
	tracker, ok := t.backend.(GradTracker)
	if !ok || !tracker.GradEnabled() {
		return out
	}
	for _, in := range inputs {
		if !in.requiresGrad {
			continue
		}
		out.requiresGrad = true
		out.leaf = false
		if in.leaf {
			tracker.Watch(in)
		}
	}
	return out
}
