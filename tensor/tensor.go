// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API.
//
// A Tensor pairs storage with a backend and autograd state. Operations are
// methods on Tensor and run on the tensor's backend; wrapping the backend
// with autodiff.New makes them recordable.
//
//	backend := autodiff.New(cpu.New())
//	x := tensor.Ones(tensor.Shape{2, 3}, tensor.Float32, backend).RequireGrad()
//	y := x.Mul(x).Sum()
package tensor

import (
	"github.com/born-ml/remat/internal/tensor"
)

// Tensor is the graph-facing tensor handle.
type Tensor = tensor.Tensor

// RawTensor is the low-level storage of a Tensor.
type RawTensor = tensor.RawTensor

// Backend is the compute interface every backend implements.
type Backend = tensor.Backend

// GradTracker is implemented by backends that record operations.
type GradTracker = tensor.GradTracker

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	CUDA   Device = tensor.CUDA
	Vulkan Device = tensor.Vulkan
	Metal  Device = tensor.Metal
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// New creates a leaf tensor that does not require gradients.
func New(raw *RawTensor, b Backend) *Tensor {
	return tensor.New(raw, b)
}

// NewRaw creates a zero-filled RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType, b Backend) *Tensor {
	return tensor.Zeros(shape, dtype, b)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, b Backend) *Tensor {
	return tensor.Ones(shape, dtype, b)
}

// Full creates a tensor filled with value.
func Full(shape Shape, dtype DataType, value float64, b Backend) *Tensor {
	return tensor.Full(shape, dtype, value, b)
}

// FromFloat32 creates a float32 tensor from a copy of data.
func FromFloat32(data []float32, shape Shape, b Backend) (*Tensor, error) {
	return tensor.FromFloat32(data, shape, b)
}

// FromFloat64 creates a float64 tensor from a copy of data.
func FromFloat64(data []float64, shape Shape, b Backend) (*Tensor, error) {
	return tensor.FromFloat64(data, shape, b)
}

// Randn draws from N(0, 1) using the backend's device generator.
func Randn(shape Shape, dtype DataType, b Backend) *Tensor {
	return tensor.Randn(shape, dtype, b)
}

// Uniform draws from U(low, high) using the backend's device generator.
func Uniform(shape Shape, dtype DataType, low, high float64, b Backend) *Tensor {
	return tensor.Uniform(shape, dtype, low, high, b)
}

// Bernoulli draws a 0/1 mask with P(1) = p using the backend's device generator.
func Bernoulli(shape Shape, dtype DataType, p float64, b Backend) *Tensor {
	return tensor.Bernoulli(shape, dtype, p, b)
}
