package tensor

// Add performs element-wise addition with broadcasting.
//
//	a := tensor.Ones(Shape{3, 1}, Float32, backend)
//	b := tensor.Ones(Shape{3, 5}, Float32, backend)
//	c := a.Add(b) // Shape: [3, 5] (broadcasted)
func (t *Tensor) Add(other *Tensor) *Tensor {
	return t.derive(t.backend.Add(t.raw, other.raw), t, other)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return t.derive(t.backend.Sub(t.raw, other.raw), t, other)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return t.derive(t.backend.Mul(t.raw, other.raw), t, other)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor) Div(other *Tensor) *Tensor {
	return t.derive(t.backend.Div(t.raw, other.raw), t, other)
}

// MatMul performs matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor) MatMul(other *Tensor) *Tensor {
	return t.derive(t.backend.MatMul(t.raw, other.raw), t, other)
}

// MulScalar multiplies every element by s.
func (t *Tensor) MulScalar(s float64) *Tensor {
	return t.derive(t.backend.MulScalar(t.raw, s), t)
}

// AddScalar adds s to every element.
func (t *Tensor) AddScalar(s float64) *Tensor {
	return t.derive(t.backend.AddScalar(t.raw, s), t)
}

// Exp computes the element-wise exponential.
func (t *Tensor) Exp() *Tensor {
	return t.derive(t.backend.Exp(t.raw), t)
}

// Log computes the element-wise natural logarithm.
func (t *Tensor) Log() *Tensor {
	return t.derive(t.backend.Log(t.raw), t)
}

// Tanh applies the hyperbolic tangent.
func (t *Tensor) Tanh() *Tensor {
	return t.derive(t.backend.Tanh(t.raw), t)
}

// ReLU applies max(0, x).
func (t *Tensor) ReLU() *Tensor {
	return t.derive(t.backend.ReLU(t.raw), t)
}

// Sum reduces all elements to a scalar.
func (t *Tensor) Sum() *Tensor {
	return t.derive(t.backend.Sum(t.raw), t)
}

// SumDim sums along dim.
func (t *Tensor) SumDim(dim int, keepDim bool) *Tensor {
	return t.derive(t.backend.SumDim(t.raw, dim, keepDim), t)
}

// Mean reduces all elements to their arithmetic mean.
func (t *Tensor) Mean() *Tensor {
	return t.Sum().MulScalar(1 / float64(t.NumElements()))
}

// Reshape returns a tensor with the same data but a different shape.
func (t *Tensor) Reshape(newShape ...int) *Tensor {
	return t.derive(t.backend.Reshape(t.raw, Shape(newShape)), t)
}

// Transpose permutes the dimensions. With no axes, all dimensions are reversed.
func (t *Tensor) Transpose(axes ...int) *Tensor {
	return t.derive(t.backend.Transpose(t.raw, axes...), t)
}

// T is a shortcut for 2D transpose. Panics if the tensor is not 2D.
func (t *Tensor) T() *Tensor {
	if len(t.Shape()) != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}
