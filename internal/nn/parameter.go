package nn

import "github.com/born-ml/remat/internal/tensor"

// Parameter is a named trainable tensor. The tensor always requires
// gradients; its accumulator is the parameter's gradient.
type Parameter struct {
	name   string
	tensor *tensor.Tensor
}

// NewParameter wraps t as a trainable parameter and marks it as requiring
// gradients.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	t.RequireGrad()
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the accumulated gradient, or nil before the first backward pass.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.tensor.Grad()
}

// ZeroGrad clears the gradient.
func (p *Parameter) ZeroGrad() {
	p.tensor.ZeroGrad()
}

// ZeroGrads clears the gradients of every parameter.
func ZeroGrads(params []*Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
