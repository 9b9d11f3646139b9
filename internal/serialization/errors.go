package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinels returned (wrapped) by Read and OpenFile.
var (
	ErrChecksumMismatch   = errors.New("data section checksum mismatch")
	ErrHeaderTooLarge     = errors.New("header larger than allowed")
	ErrInvalidMagic       = errors.New("not a .born file")
	ErrUnsupportedVersion = errors.New("unsupported .born format version")
	ErrTensorNotFound     = errors.New("no such tensor")
)

// ValidationError describes a header that is well-formed JSON but
// inconsistent: a bad tensor name, an offset outside the data section, two
// tensors overlapping.
type ValidationError struct {
	Kind    string // machine-readable, e.g. "offset_overlap"
	Name    string
	Other   string // second tensor of an overlap
	Details string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Other != "":
		return fmt.Sprintf("%s: %q overlaps %q: %s", e.Kind, e.Name, e.Other, e.Details)
	case e.Name != "":
		return fmt.Sprintf("%s: %q: %s", e.Kind, e.Name, e.Details)
	default:
		return e.Kind + ": " + e.Details
	}
}
