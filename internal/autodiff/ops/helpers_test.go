package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/remat/internal/backend/cpu"
	"github.com/born-ml/remat/internal/tensor"
)

func raw(t *testing.T, data []float64, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat64(), data)
	return r
}

func TestReduceBroadcast(t *testing.T) {
	backend := cpu.New()
	grad := raw(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	tests := []struct {
		name   string
		target tensor.Shape
		want   []float64
	}{
		{"same shape", tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6}},
		{"scalar", tensor.Shape{}, []float64{21}},
		{"leading dim", tensor.Shape{3}, []float64{5, 7, 9}},
		{"keep rows", tensor.Shape{2, 1}, []float64{6, 15}},
		{"keep cols", tensor.Shape{1, 3}, []float64{5, 7, 9}},
		{"all ones", tensor.Shape{1, 1}, []float64{21}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := reduceBroadcast(grad, tt.target, backend)
			assert.Equal(t, tt.target, out.Shape())
			assert.Equal(t, tt.want, out.AsFloat64())
		})
	}
}

func TestStepMask(t *testing.T) {
	mask := stepMask(raw(t, []float64{-1, 0, 0.5}, 3))
	assert.Equal(t, []float64{0, 0, 1}, mask.AsFloat64())
}

func TestTransposeOp_InversePermutation(t *testing.T) {
	backend := cpu.New()
	data := make([]float64, 24)
	for i := range data {
		data[i] = float64(i)
	}
	x := raw(t, data, 2, 3, 4)
	y := backend.Transpose(x, 2, 0, 1)
	op := NewTransposeOp(x, y, []int{2, 0, 1})

	grads := op.Backward(y, backend)

	assert.Equal(t, x.Shape(), grads[0].Shape())
	assert.Equal(t, data, grads[0].AsFloat64())
}

func TestSumDimOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	y := backend.SumDim(x, -1, false)
	op := NewSumDimOp(x, y, -1, false)

	grads := op.Backward(raw(t, []float64{10, 20}, 2), backend)

	assert.Equal(t, []float64{10, 10, 10, 20, 20, 20}, grads[0].AsFloat64())
}

func TestSumOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float64{1, 2, 3}, 3)
	y := backend.Sum(x)

	grads := NewSumOp(x, y).Backward(raw(t, []float64{2}), backend)

	assert.Equal(t, []float64{2, 2, 2}, grads[0].AsFloat64())
}
