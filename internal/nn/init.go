package nn

import (
	"math"

	"github.com/born-ml/remat/internal/tensor"
)

// Xavier initializes a tensor with Xavier/Glorot uniform initialization,
// drawing from the backend's generator.
//
// Values are sampled from U(-bound, bound) with
// bound = sqrt(6 / (fan_in + fan_out)).
func Xavier(fanIn, fanOut int, shape tensor.Shape, dtype tensor.DataType, backend tensor.Backend) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Uniform(shape, dtype, -bound, bound, backend)
}
