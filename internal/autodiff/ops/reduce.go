package ops

import "github.com/born-ml/remat/internal/tensor"

// SumOp represents a full reduction to a scalar.
// Every input element receives the output gradient.
type SumOp struct{ unary }

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{unary{input: input, output: output}}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if len(grad.Shape()) != 0 {
		grad = backend.Reshape(grad, tensor.Shape{})
	}
	return []*tensor.RawTensor{backend.Expand(grad, op.input.Shape())}
}

// SumDimOp represents sum(x, dim).
type SumDimOp struct {
	unary
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp. Negative dims count from the end.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	if dim < 0 {
		dim += len(input.Shape())
	}
	return &SumDimOp{unary: unary{input: input, output: output}, dim: dim, keepDim: keepDim}
}

// Backward restores the reduced dimension and broadcasts along it.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		kept := op.input.Shape().Clone()
		kept[op.dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	return []*tensor.RawTensor{backend.Expand(grad, op.input.Shape())}
}
