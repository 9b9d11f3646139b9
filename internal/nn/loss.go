package nn

import "github.com/born-ml/remat/internal/tensor"

// MSELoss computes Mean Squared Error loss: mean((predictions - targets)²).
//
//	mse := nn.NewMSELoss()
//	loss := mse.Forward(model.Forward(input), targets)
type MSELoss struct{}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

// Forward returns the scalar loss. Shapes of predictions and targets must match.
func (m *MSELoss) Forward(predictions, targets *tensor.Tensor) *tensor.Tensor {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}
	diff := predictions.Sub(targets)
	return diff.Mul(diff).Mean()
}
