package cpu

import (
	"fmt"

	"github.com/born-ml/remat/internal/tensor"
)

// Reshape returns a view of t with a new shape. One dimension may be -1 and
// is inferred from the element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	shape, err := inferShape(newShape, t.NumElements())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return t.View(shape)
}

func inferShape(shape tensor.Shape, total int) (tensor.Shape, error) {
	out := shape.Clone()
	inferred := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1:
			if inferred >= 0 {
				return nil, fmt.Errorf("more than one inferred dimension in %v", shape)
			}
			inferred = i
		case d <= 0:
			return nil, fmt.Errorf("invalid dimension %d in %v", d, shape)
		default:
			known *= d
		}
	}
	if inferred >= 0 {
		if total%known != 0 {
			return nil, fmt.Errorf("cannot infer dimension of %v for %d elements", shape, total)
		}
		out[inferred] = total / known
	}
	if out.NumElements() != total {
		return nil, fmt.Errorf("cannot reshape %d elements into %v", total, shape)
	}
	return out, nil
}

// Transpose permutes the dimensions of t. With no axes, all dimensions are
// reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: got %d axes for rank %d tensor", len(axes), rank))
	}
	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}
	checkFloat("transpose", t.DType())

	result := cpu.newResult("transpose", outShape, t.DType())
	inStrides := t.Strides()
	switch t.DType() {
	case tensor.Float32:
		permute(result.AsFloat32(), t.AsFloat32(), outShape, inStrides, axes)
	case tensor.Float64:
		permute(result.AsFloat64(), t.AsFloat64(), outShape, inStrides, axes)
	}
	return result
}

func permute[T float](out, in []T, outShape tensor.Shape, inStrides, axes []int) {
	for flat := range out {
		rem := flat
		src := 0
		for d := len(outShape) - 1; d >= 0; d-- {
			coord := rem % outShape[d]
			rem /= outShape[d]
			src += coord * inStrides[axes[d]]
		}
		out[flat] = in[src]
	}
}

// Expand broadcasts x to shape following NumPy rules. The result is a fresh
// tensor, not a stride-0 view.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !outShape.Equal(shape) {
		panic(fmt.Sprintf("expand: cannot expand %v to %v", x.Shape(), shape))
	}
	checkFloat("expand", x.DType())

	result := cpu.newResult("expand", shape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		expandInto(result.AsFloat32(), x.AsFloat32(), shape, x.Shape())
	case tensor.Float64:
		expandInto(result.AsFloat64(), x.AsFloat64(), shape, x.Shape())
	}
	return result
}

func expandInto[T float](out, in []T, outShape, inShape tensor.Shape) {
	for i := range out {
		out[i] = in[tensor.BroadcastIndex(i, outShape, inShape)]
	}
}
