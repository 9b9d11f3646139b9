package cpu

import (
	"fmt"

	"github.com/born-ml/remat/internal/tensor"
)

// Sum reduces all elements to a scalar tensor (shape []).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	checkFloat("sum", x.DType())
	result := cpu.newResult("sum", tensor.Shape{}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sum(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sum(x.AsFloat64())
	}
	return result
}

func sum[T float](data []T) T {
	var acc T
	for _, v := range data {
		acc += v
	}
	return acc
}

// SumDim sums along dim. Negative dims count from the end.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("sum_dim: dim %d out of range for shape %v", dim, shape))
	}
	checkFloat("sum_dim", x.DType())

	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < rank; i++ {
		inner *= shape[i]
	}

	outShape := make(tensor.Shape, 0, rank)
	for i, d := range shape {
		switch {
		case i != dim:
			outShape = append(outShape, d)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}

	result := cpu.newResult("sum_dim", outShape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		sumAlong(result.AsFloat32(), x.AsFloat32(), outer, shape[dim], inner)
	case tensor.Float64:
		sumAlong(result.AsFloat64(), x.AsFloat64(), outer, shape[dim], inner)
	}
	return result
}

func sumAlong[T float](out, in []T, outer, size, inner int) {
	for o := 0; o < outer; o++ {
		for d := 0; d < size; d++ {
			base := (o*size + d) * inner
			dst := out[o*inner : (o+1)*inner]
			for i := range dst {
				dst[i] += in[base+i]
			}
		}
	}
}
