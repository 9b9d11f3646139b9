package recompute

import "github.com/born-ml/remat/internal/tensor"

// DetachAll returns args with every tensor replaced by a detached alias that
// keeps the original requires-grad flag. Other values pass through. The
// input slice is not modified.
func DetachAll(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		t, ok := arg.(*tensor.Tensor)
		if !ok || t == nil {
			out[i] = arg
			continue
		}
		d := t.Detach()
		d.SetRequiresGrad(t.RequiresGrad())
		out[i] = d
	}
	return out
}

func anyRequiresGrad(args []any) bool {
	for _, arg := range args {
		if t, ok := arg.(*tensor.Tensor); ok && t != nil && t.RequiresGrad() {
			return true
		}
	}
	return false
}
