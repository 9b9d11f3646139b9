package autodiff

import (
	"github.com/born-ml/remat/internal/autodiff/ops"
	"github.com/born-ml/remat/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Besides operations, the tape remembers which leaf tensors requiring
// gradients were consumed while recording, so a backward pass can fill their
// accumulators.
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	grads := tape.BackwardFrom(roots, backend)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool            // Whether tape is currently recording

	watched map[*tensor.RawTensor]*tensor.Tensor
	order   []*tensor.Tensor
}

// NewGradientTape creates a new gradient tape that is not recording.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
		watched:    make(map[*tensor.RawTensor]*tensor.Tensor),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Watch registers a leaf tensor requiring gradients. Registering the same
// tensor twice is a no-op.
func (t *GradientTape) Watch(leaf *tensor.Tensor) {
	if !t.recording || !leaf.RequiresGrad() {
		return
	}
	if _, ok := t.watched[leaf.Raw()]; ok {
		return
	}
	t.watched[leaf.Raw()] = leaf
	t.order = append(t.order, leaf)
}

// Watched returns the registered leaves in registration order.
func (t *GradientTape) Watched() []*tensor.Tensor {
	return t.order
}

// Clear resets the tape, removing all recorded operations and watched
// leaves. Recording state is preserved.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
	clear(t.watched)
	t.order = t.order[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// RetainedBytes returns the total size of the op outputs held by the tape.
// It approximates the activation memory kept alive for the backward pass.
func (t *GradientTape) RetainedBytes() int64 {
	var total int64
	for _, op := range t.operations {
		if multi, ok := op.(ops.MultiOutputOperation); ok {
			for _, out := range multi.Outputs() {
				total += int64(out.ByteSize())
			}
			continue
		}
		total += int64(op.Output().ByteSize())
	}
	return total
}

// BackwardFrom computes gradients by walking the tape in reverse, starting
// from the seed gradients in roots (keyed by output tensor).
//
// Algorithm:
//  1. Start with the seed gradients
//  2. Walk operations in reverse order
//  3. For each operation, compute input gradients using chain rule
//  4. Accumulate gradients when the same tensor is used multiple times
//
// Recording is suspended for the duration of the walk. Returns a map from
// RawTensor to its accumulated gradient.
func (t *GradientTape) BackwardFrom(roots map[*tensor.RawTensor]*tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor, len(roots))
	for raw, g := range roots {
		grads[raw] = g
	}
	if len(t.operations) == 0 {
		return grads
	}

	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		inputGrads := t.computeInputGrads(op, grads, backend)
		if inputGrads == nil {
			continue
		}
		t.accumulateGrads(op, inputGrads, grads, backend)
	}

	return grads
}

// computeInputGrads computes gradients for an operation's inputs.
// Returns nil if no gradient flows to this operation.
func (t *GradientTape) computeInputGrads(
	op ops.Operation,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) []*tensor.RawTensor {
	if multiOp, isMulti := op.(ops.MultiOutputOperation); isMulti {
		return t.computeMultiOutputGrads(multiOp, grads, backend)
	}
	outputGrad, hasGrad := grads[op.Output()]
	if !hasGrad {
		return nil
	}
	return op.Backward(outputGrad, backend)
}

// computeMultiOutputGrads collects gradients for all outputs, zero-filling
// outputs that received none.
func (t *GradientTape) computeMultiOutputGrads(
	multiOp ops.MultiOutputOperation,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) []*tensor.RawTensor {
	outputs := multiOp.Outputs()
	outputGrads := make([]*tensor.RawTensor, len(outputs))
	hasAnyGrad := false
	for j, out := range outputs {
		if grad, exists := grads[out]; exists {
			outputGrads[j] = grad
			hasAnyGrad = true
		}
	}
	if !hasAnyGrad {
		return nil
	}
	for j, out := range outputs {
		if outputGrads[j] == nil {
			outputGrads[j] = tensor.MustNewRaw(out.Shape(), out.DType(), out.Device())
		}
	}
	return multiOp.BackwardMulti(outputGrads, backend)
}

// accumulateGrads accumulates gradients for each input tensor.
func (t *GradientTape) accumulateGrads(
	op ops.Operation,
	inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for j, input := range op.Inputs() {
		if j >= len(inputGrads) {
			break
		}
		inputGrad := inputGrads[j]
		if inputGrad == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrad)
		} else {
			grads[input] = inputGrad
		}
	}
}
