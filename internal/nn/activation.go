package nn

import "github.com/born-ml/remat/internal/tensor"

type stateless struct{}

// Parameters returns nil; the module has no trainable parameters.
func (stateless) Parameters() []*Parameter { return nil }

// StateDict returns an empty map.
func (stateless) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// ReLU applies f(x) = max(0, x) element-wise.
type ReLU struct{ stateless }

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU { return &ReLU{} }

// Forward applies ReLU activation.
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	return input.ReLU()
}

// Tanh applies the hyperbolic tangent element-wise.
type Tanh struct{ stateless }

// NewTanh creates a new Tanh activation module.
func NewTanh() *Tanh { return &Tanh{} }

// Forward applies Tanh activation.
func (t *Tanh) Forward(input *tensor.Tensor) *tensor.Tensor {
	return input.Tanh()
}
