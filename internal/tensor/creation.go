package tensor

import (
	"fmt"
	"math"
)

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType, b Backend) *Tensor {
	return New(MustNewRaw(shape, dtype, b.Device()), b)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, b Backend) *Tensor {
	return Full(shape, dtype, 1, b)
}

// Full creates a tensor filled with value.
func Full(shape Shape, dtype DataType, value float64, b Backend) *Tensor {
	t := Zeros(shape, dtype, b)
	t.raw.Fill(value)
	return t
}

// FromFloat32 creates a float32 tensor from a Go slice. The slice is copied.
func FromFloat32(data []float32, shape Shape, b Backend) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, Float32, b.Device())
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat32(), data)
	return New(raw, b), nil
}

// FromFloat64 creates a float64 tensor from a Go slice. The slice is copied.
func FromFloat64(data []float64, shape Shape, b Backend) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, Float64, b.Device())
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat64(), data)
	return New(raw, b), nil
}

// Randn creates a tensor with values drawn from N(0, 1) using the backend's
// device generator.
func Randn(shape Shape, dtype DataType, b Backend) *Tensor {
	t := Zeros(shape, dtype, b)
	gen := b.Generator()
	switch dtype {
	case Float32:
		data := t.raw.AsFloat32()
		for i := range data {
			data[i] = float32(gen.NormFloat64())
		}
	case Float64:
		data := t.raw.AsFloat64()
		for i := range data {
			data[i] = gen.NormFloat64()
		}
	}
	return t
}

// Uniform creates a tensor with values drawn from U(low, high) using the
// backend's device generator.
func Uniform(shape Shape, dtype DataType, low, high float64, b Backend) *Tensor {
	t := Zeros(shape, dtype, b)
	gen := b.Generator()
	switch dtype {
	case Float32:
		data := t.raw.AsFloat32()
		for i := range data {
			data[i] = float32(low + (high-low)*gen.Float64())
		}
	case Float64:
		data := t.raw.AsFloat64()
		for i := range data {
			data[i] = low + (high-low)*gen.Float64()
		}
	}
	return t
}

// Bernoulli creates a 0/1 mask where each element is 1 with probability p,
// drawn from the backend's device generator.
func Bernoulli(shape Shape, dtype DataType, p float64, b Backend) *Tensor {
	if p < 0 || p > 1 || math.IsNaN(p) {
		panic(fmt.Sprintf("bernoulli: probability %v out of range [0, 1]", p))
	}
	t := Zeros(shape, dtype, b)
	gen := b.Generator()
	switch dtype {
	case Float32:
		data := t.raw.AsFloat32()
		for i := range data {
			if gen.Float64() < p {
				data[i] = 1
			}
		}
	case Float64:
		data := t.raw.AsFloat64()
		for i := range data {
			if gen.Float64() < p {
				data[i] = 1
			}
		}
	}
	return t
}
