package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Limits enforced when reading headers.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidateTensorName rejects names that are too long or could be used for
// path traversal.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Kind: "invalid_name", Details: "empty tensor name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Kind:    "name_too_long",
			Name:    name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Kind: "invalid_name", Name: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\\x00"):
		return &ValidationError{Kind: "invalid_name", Name: name, Details: "contains path separator or null byte"}
	}
	return nil
}

// ValidateTensorOffsets checks that every tensor lies inside the data section
// and that no two tensors overlap.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	sorted := append([]TensorMeta(nil), tensors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Kind:    "negative_offset",
				Name:    t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Kind:    "out_of_bounds",
				Name:    t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i+1 < len(sorted) && t.Offset+t.Size > sorted[i+1].Offset {
			next := sorted[i+1]
			return &ValidationError{
				Kind:  "offset_overlap",
				Name:  t.Name,
				Other: next.Name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
					t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
			}
		}
	}
	return nil
}

// ValidateHeader validates tensor count, names, and offsets.
func ValidateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Kind:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if _, ok := stringToDtype(t.DType); !ok {
			return &ValidationError{Kind: "unsupported_dtype", Name: t.Name, Details: t.DType}
		}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
