// Package ops defines the differentiable operations recorded on the gradient
// tape.
//
// Each operation keeps its inputs and output from the forward pass and
// computes input gradients during the backward pass. Backward methods only
// call backend primitives, so they run on any backend.
package ops

import "github.com/born-ml/remat/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns one gradient per input; a nil entry means no gradient flows.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// MultiOutputOperation represents an operation that produces multiple outputs.
//
// The tape collects gradients for ALL outputs (zero-filling outputs that
// received none) before calling BackwardMulti.
type MultiOutputOperation interface {
	Operation

	// Outputs returns all output tensors produced by this operation.
	Outputs() []*tensor.RawTensor

	// BackwardMulti computes gradients for inputs given gradients for ALL outputs.
	BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}

type unary struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns [x].
func (op *unary) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the operation result.
func (op *unary) Output() *tensor.RawTensor {
	return op.output
}

type binary struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
}

// Inputs returns [a, b].
func (op *binary) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the operation result.
func (op *binary) Output() *tensor.RawTensor {
	return op.output
}
