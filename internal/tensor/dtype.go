// Package tensor provides the core tensor types of the recomputation runtime:
// reference-counted storage (RawTensor), the graph-facing Tensor handle and
// the Backend interface implemented by compute devices.
package tensor

import "fmt"

// DataType is the element type of a tensor. Only floating point types exist;
// gradients are defined for all of them.
type DataType int

// Element types.
const (
	Float32 DataType = iota
	Float64
)

var dtypeInfo = [...]struct {
	name string
	size int
}{
	Float32: {"float32", 4},
	Float64: {"float64", 8},
}

func (dt DataType) valid() bool {
	return dt >= 0 && int(dt) < len(dtypeInfo)
}

// Size is the width of one element in bytes. It panics on an unknown type.
func (dt DataType) Size() int {
	if !dt.valid() {
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
	return dtypeInfo[dt].size
}

func (dt DataType) String() string {
	if !dt.valid() {
		return "unknown"
	}
	return dtypeInfo[dt].name
}
