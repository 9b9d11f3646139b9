package nn

import (
	"fmt"

	"github.com/born-ml/remat/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ W^T + b.
//
//	layer := nn.NewLinear(784, 128, tensor.Float32, backend)
//	output := layer.Forward(input) // [batch, 784] -> [batch, 128]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
}

// NewLinear creates a Linear layer with Xavier-initialized weights and zero bias.
func NewLinear(inFeatures, outFeatures int, dtype tensor.DataType, backend tensor.Backend) *Linear {
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, dtype, backend)
	bias := tensor.Zeros(tensor.Shape{outFeatures}, dtype, backend)
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
	}
}

// Forward computes x @ W^T + b for a [batch, in_features] input.
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	output := input.MatMul(l.weight.Tensor().T())
	return output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter [out_features, in_features].
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter [out_features].
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// StateDict returns {"weight", "bias"}.
func (l *Linear) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}
