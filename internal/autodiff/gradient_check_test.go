package autodiff_test

import (
	"testing"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/tensor"
	"github.com/stretchr/testify/require"
)

// checkGradient compares the analytic gradient of sum(f(x)) with central
// differences.
func checkGradient(t *testing.T, name string, shape tensor.Shape, x0 []float64, f func(x *tensor.Tensor) *tensor.Tensor) {
	t.Helper()
	const eps = 1e-6
	backend := newBackend()

	x, err := tensor.FromFloat64(x0, shape, backend)
	require.NoError(t, err)
	x.RequireGrad()
	require.NoError(t, autodiff.Backward(backend, []*tensor.Tensor{f(x).Sum()}, nil), name)
	analytic := x.Grad().Values()

	eval := func(data []float64) float64 {
		var out float64
		backend.NoGrad(func() {
			xt, err := tensor.FromFloat64(data, shape, backend)
			require.NoError(t, err)
			out = f(xt).Sum().Item()
		})
		return out
	}

	for i := range x0 {
		plus := append([]float64(nil), x0...)
		minus := append([]float64(nil), x0...)
		plus[i] += eps
		minus[i] -= eps
		numeric := (eval(plus) - eval(minus)) / (2 * eps)
		require.InDelta(t, numeric, analytic[i], 1e-5, "%s: d/dx[%d]", name, i)
	}
}

func TestGradientCheck_Elementwise(t *testing.T) {
	x0 := []float64{0.5, -1.2, 2.0, 0.3, -0.7, 1.1}
	shape := tensor.Shape{2, 3}
	backend := newBackend()
	c, err := tensor.FromFloat64([]float64{1.5, -0.5, 2.5}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	cases := map[string]func(x *tensor.Tensor) *tensor.Tensor{
		"square":     func(x *tensor.Tensor) *tensor.Tensor { return x.Mul(x) },
		"tanh":       func(x *tensor.Tensor) *tensor.Tensor { return x.Tanh() },
		"exp":        func(x *tensor.Tensor) *tensor.Tensor { return x.Exp() },
		"log_of_exp": func(x *tensor.Tensor) *tensor.Tensor { return x.Exp().AddScalar(1).Log() },
		"div":        func(x *tensor.Tensor) *tensor.Tensor { return x.Div(x.Mul(x).AddScalar(1)) },
		"broadcast":  func(x *tensor.Tensor) *tensor.Tensor { return x.Mul(c).Sub(c) },
		"sum_dim":    func(x *tensor.Tensor) *tensor.Tensor { return x.SumDim(1, false).Mul(x.SumDim(1, false)) },
		"transpose":  func(x *tensor.Tensor) *tensor.Tensor { return x.T().Mul(x.T().Tanh()) },
		"reshape":    func(x *tensor.Tensor) *tensor.Tensor { return x.Reshape(3, 2).Exp() },
		"mean":       func(x *tensor.Tensor) *tensor.Tensor { return x.Mul(x).Mean() },
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			checkGradient(t, name, shape, x0, f)
		})
	}
}

func TestGradientCheck_MatMul(t *testing.T) {
	backend := newBackend()
	w, err := tensor.FromFloat64([]float64{0.2, -0.4, 0.6, 0.1, 0.3, -0.5}, tensor.Shape{3, 2}, backend)
	require.NoError(t, err)

	checkGradient(t, "matmul", tensor.Shape{2, 3}, []float64{1, 2, -1, 0.5, -0.3, 0.8},
		func(x *tensor.Tensor) *tensor.Tensor {
			return x.MatMul(w).Tanh()
		})
}

func TestGradientCheck_TwoLayerNetwork(t *testing.T) {
	backend := newBackend()
	w1, err := tensor.FromFloat64([]float64{0.5, -0.2, 0.1, 0.4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	w2, err := tensor.FromFloat64([]float64{0.3, -0.7}, tensor.Shape{2, 1}, backend)
	require.NoError(t, err)

	checkGradient(t, "mlp", tensor.Shape{3, 2}, []float64{1, 2, -0.5, 0.7, 0.2, -1.3},
		func(x *tensor.Tensor) *tensor.Tensor {
			h := x.MatMul(w1).Tanh()
			return h.MatMul(w2).Mul(h.MatMul(w2))
		})
}
