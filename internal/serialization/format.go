package serialization

import (
	"time"

	"github.com/born-ml/remat/internal/tensor"
)

// Format constants.
const (
	MagicBytes       = "BORN"
	FormatVersion    = 2
	HeaderAlignment  = 64
	FixedHeaderSize  = 64
	ChecksumSize     = 32
	ChecksumOffset   = 0x20
	headerSizeOffset = 0x10
	dataSizeOffset   = 0x18
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
)

// Flags for the .born format.
const (
	FlagHasTrainingState uint32 = 1 << 1
	FlagHasMetadata      uint32 = 1 << 2
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Version       string            `json:"version"`
	ModelType     string            `json:"model_type"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
	Training      *TrainingState    `json:"training,omitempty"`
}

// TrainingState records where a training run stood when its parameters were
// saved.
type TrainingState struct {
	RunID         string         `json:"run_id"`
	Epoch         int            `json:"epoch"`
	Step          int64          `json:"step"`
	Loss          float64        `json:"loss"`
	OptimizerType string         `json:"optimizer_type"`
	Recompute     map[string]any `json:"recompute,omitempty"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from start of tensor data
	Size   int64  `json:"size"`
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	default:
		return 0, false
	}
}

func padding(pos int64) int64 {
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}
