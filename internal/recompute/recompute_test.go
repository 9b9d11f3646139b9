package recompute

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/backend/cpu"
	"github.com/born-ml/remat/internal/tensor"
)

// acceleratorBackend is a CPU backend that reports a GPU-class device, so
// generator replay can be exercised without a GPU.
type acceleratorBackend struct {
	*cpu.CPUBackend
}

func (acceleratorBackend) Device() tensor.Device { return tensor.CUDA }

func newCPUEngine() *autodiff.AutodiffBackend[*cpu.CPUBackend] {
	return autodiff.New(cpu.New(cpu.WithSeed(42)))
}

func newAcceleratorEngine() *autodiff.AutodiffBackend[acceleratorBackend] {
	return autodiff.New(acceleratorBackend{cpu.New(cpu.WithSeed(42))})
}

func fromValues(t *testing.T, b tensor.Backend, shape tensor.Shape, data ...float64) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromFloat64(data, shape, b)
	require.NoError(t, err)
	return x
}

func captureKlog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	klog.LogToStderr(false)
	klog.SetOutput(&buf)
	t.Cleanup(func() {
		klog.Flush()
		klog.SetOutput(os.Stderr)
		klog.LogToStderr(true)
	})
	return &buf
}

// mlpBlock computes tanh(x @ w + bias) * x @ w, with bias captured from the
// enclosing scope rather than passed as an argument.
func mlpBlock(bias *tensor.Tensor) RunFunc {
	return func(args ...any) ([]*tensor.Tensor, error) {
		x := args[0].(*tensor.Tensor)
		w := args[1].(*tensor.Tensor)
		h := x.MatMul(w)
		return []*tensor.Tensor{h.Add(bias).Tanh().Mul(h)}, nil
	}
}

func TestRun_GradientEquivalence(t *testing.T) {
	type result struct{ x, w, bias []float64 }
	compute := func(checkpoint bool) result {
		engine := newCPUEngine()
		x := fromValues(t, engine, tensor.Shape{2, 3}, 0.5, -1, 2, 0.1, 0.7, -0.3).RequireGrad()
		w := fromValues(t, engine, tensor.Shape{3, 2}, 0.2, -0.4, 0.6, 0.1, 0.3, -0.5).RequireGrad()
		bias := fromValues(t, engine, tensor.Shape{2}, 0.1, -0.2).RequireGrad()
		g := fromValues(t, engine, tensor.Shape{2, 2}, 1, -2, 0.5, 3)

		block := mlpBlock(bias)
		var outs []*tensor.Tensor
		var err error
		if checkpoint {
			outs, err = Run(engine, block, []any{x, w}, WithPreserveRNGState(false))
		} else {
			outs, err = block(x, w)
		}
		require.NoError(t, err)
		require.NoError(t, autodiff.Backward(engine, outs, []*tensor.Tensor{g}))
		return result{x.Grad().Values(), w.Grad().Values(), bias.Grad().Values()}
	}

	direct := compute(false)
	recomputed := compute(true)

	assert.InDeltaSlice(t, direct.x, recomputed.x, 1e-12)
	assert.InDeltaSlice(t, direct.w, recomputed.w, 1e-12)
	assert.InDeltaSlice(t, direct.bias, recomputed.bias, 1e-12)
}

func TestRun_DoesNotRecordBlockInternals(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{4}, 1, 2, 3, 4).RequireGrad()
	block := func(args ...any) ([]*tensor.Tensor, error) {
		v := args[0].(*tensor.Tensor)
		return []*tensor.Tensor{v.Exp().Mul(v).Tanh().AddScalar(1)}, nil
	}

	outs, err := Run(engine, block, []any{x}, WithPreserveRNGState(false))
	require.NoError(t, err)

	assert.Equal(t, 1, engine.Tape().NumOps())
	assert.Equal(t, int64(outs[0].Raw().ByteSize()), engine.Tape().RetainedBytes())

	engine.Tape().Clear()
	_, err = block(x)
	require.NoError(t, err)
	assert.Equal(t, 4, engine.Tape().NumOps())
}

func dropout(x *tensor.Tensor, p float64) (*tensor.Tensor, *tensor.Tensor) {
	mask := tensor.Bernoulli(x.Shape(), x.DType(), 1-p, x.Backend())
	return x.Mul(mask).MulScalar(1 / (1 - p)), mask
}

func TestRun_RNGReproducibility(t *testing.T) {
	engine := newAcceleratorEngine()
	gen := engine.Generator()
	x := fromValues(t, engine, tensor.Shape{16}, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16).RequireGrad()

	var masks [][]float64
	block := func(args ...any) ([]*tensor.Tensor, error) {
		out, mask := dropout(args[0].(*tensor.Tensor), 0.5)
		masks = append(masks, mask.Values())
		return []*tensor.Tensor{out}, nil
	}

	outs, err := Run(engine, block, []any{x})
	require.NoError(t, err)
	afterForward := gen.State()

	// Ambient randomness between forward and backward.
	gen.Uint64()
	beforeBackward := gen.State()

	require.NoError(t, autodiff.Backward(engine, []*tensor.Tensor{outs[0].Sum()}, nil))

	require.Len(t, masks, 2)
	assert.Equal(t, masks[0], masks[1], "replay draws the same mask")
	assert.Equal(t, beforeBackward, gen.State(), "ambient state restored after backward")
	assert.NotEqual(t, afterForward, beforeBackward)

	want := make([]float64, len(masks[0]))
	for i, m := range masks[0] {
		want[i] = 2 * m
	}
	assert.Equal(t, want, x.Grad().Values())
}

func TestRun_WithoutRNGPreservationDrawsFreshValues(t *testing.T) {
	engine := newAcceleratorEngine()
	x := fromValues(t, engine, tensor.Shape{64}, make([]float64, 64)...).RequireGrad()

	var masks [][]float64
	block := func(args ...any) ([]*tensor.Tensor, error) {
		out, mask := dropout(args[0].(*tensor.Tensor), 0.5)
		masks = append(masks, mask.Values())
		return []*tensor.Tensor{out}, nil
	}

	outs, err := Run(engine, block, []any{x}, WithPreserveRNGState(false))
	require.NoError(t, err)
	require.NoError(t, autodiff.Backward(engine, outs, nil))

	require.Len(t, masks, 2)
	assert.NotEqual(t, masks[0], masks[1])
}

func TestRun_UnsupportedDevice(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	calls := 0
	block := func(args ...any) ([]*tensor.Tensor, error) {
		calls++
		return []*tensor.Tensor{args[0].(*tensor.Tensor)}, nil
	}

	_, err := Run(engine, block, []any{x})

	require.ErrorIs(t, err, ErrUnsupportedDevice)
	assert.Contains(t, err.Error(), "CPU")
	assert.Zero(t, calls, "fails before running the block")
	assert.Zero(t, engine.Tape().NumOps())
}

func TestDetachAll(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	y := x.MulScalar(2)
	z := fromValues(t, engine, tensor.Shape{1}, 5)
	args := []any{x, 3, y, "s", z}

	out := DetachAll(args)

	require.Len(t, out, len(args))
	assert.Equal(t, 3, out[1])
	assert.Equal(t, "s", out[3])
	for _, i := range []int{0, 2, 4} {
		orig := args[i].(*tensor.Tensor)
		d := out[i].(*tensor.Tensor)
		assert.NotSame(t, orig, d)
		assert.NotSame(t, orig.Raw(), d.Raw())
		assert.True(t, d.Raw().SharesStorage(orig.Raw()))
		assert.True(t, d.IsLeaf())
		assert.Equal(t, orig.RequiresGrad(), d.RequiresGrad(), "arg %d", i)
	}
	assert.Same(t, x, args[0], "input slice untouched")
}

func TestPreservesRNGState(t *testing.T) {
	assert.True(t, PreservesRNGState())
	assert.False(t, PreservesRNGState(WithPreserveRNGState(false)))
	assert.True(t, PreservesRNGState(WithPreserveRNGState(false), WithPreserveRNGState(true)))
}

func TestRun_NonTensorPassThrough(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	type opts struct{ scale float64 }
	cfg := &opts{scale: 3}

	var seen [][]any
	block := func(args ...any) ([]*tensor.Tensor, error) {
		seen = append(seen, []any{args[0], args[2], args[3]})
		return []*tensor.Tensor{args[1].(*tensor.Tensor).MulScalar(args[3].(*opts).scale)}, nil
	}

	outs, err := Run(engine, block, []any{"label", x, nil, cfg}, WithPreserveRNGState(false))
	require.NoError(t, err)
	require.NoError(t, autodiff.Backward(engine, outs, nil))

	require.Len(t, seen, 2)
	for _, call := range seen {
		assert.Equal(t, "label", call[0])
		assert.Nil(t, call[1])
		assert.Same(t, cfg, call[2])
	}
	assert.Equal(t, []float64{3, 3}, x.Grad().Values())
}

func TestRun_OrderPreservation(t *testing.T) {
	engine := newCPUEngine()
	a := fromValues(t, engine, tensor.Shape{2}, 1, 1).RequireGrad()
	b := fromValues(t, engine, tensor.Shape{3}, 1, 1, 1).RequireGrad()
	c := fromValues(t, engine, tensor.Shape{1}, 1).RequireGrad()

	block := func(args ...any) ([]*tensor.Tensor, error) {
		ta := args[1].(*tensor.Tensor).MulScalar(args[0].(float64))
		tb := args[3].(*tensor.Tensor).MulScalar(2)
		tc := args[5].(*tensor.Tensor).MulScalar(args[4].(float64))
		return []*tensor.Tensor{ta.Sum().Add(tb.Sum()).Add(tc.Sum())}, nil
	}

	outs, err := Run(engine, block, []any{1.0, a, "skip", b, 3.0, c}, WithPreserveRNGState(false))
	require.NoError(t, err)
	require.NoError(t, autodiff.Backward(engine, outs, nil))

	assert.Equal(t, []float64{1, 1}, a.Grad().Values())
	assert.Equal(t, []float64{2, 2, 2}, b.Grad().Values())
	assert.Equal(t, []float64{3}, c.Grad().Values())
}

func TestRun_ScalarConstantArgument(t *testing.T) {
	engine := newCPUEngine()
	a := fromValues(t, engine, tensor.Shape{3}, 1, 2, 3).RequireGrad()
	const b = 2.5
	block := func(args ...any) ([]*tensor.Tensor, error) {
		return []*tensor.Tensor{args[0].(*tensor.Tensor).MulScalar(args[1].(float64))}, nil
	}

	// Drive the operator directly to inspect the saved set.
	fn := newFunction(block, false)
	ctx := autodiff.NewFunctionContext(engine)
	var outs []*tensor.Tensor
	var err error
	engine.NoGrad(func() { outs, err = fn.Forward(ctx, a, b) })
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 5, 7.5}, outs[0].Values())
	require.Len(t, ctx.SavedTensors(), 1)
	assert.Same(t, a, ctx.SavedTensors()[0])

	grads, err := fn.Backward(ctx, tensor.Ones(tensor.Shape{3}, tensor.Float64, engine))
	require.NoError(t, err)
	require.Len(t, grads, 1)
	assert.Equal(t, []float64{b, b, b}, grads[0].Values())
}

func TestBackward_ShapeMismatch(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	block := func(args ...any) ([]*tensor.Tensor, error) {
		v := args[0].(*tensor.Tensor)
		return []*tensor.Tensor{v.MulScalar(2), v.Mul(v)}, nil
	}

	fn := newFunction(block, false)
	ctx := autodiff.NewFunctionContext(engine)
	_, err := fn.Forward(ctx, x)
	require.NoError(t, err)

	_, err = fn.Backward(ctx, tensor.Ones(tensor.Shape{2}, tensor.Float64, engine))
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "recomputed 2 outputs, received 1 gradients")
}

func TestBackward_GradientCountMismatch(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	block := func(args ...any) ([]*tensor.Tensor, error) {
		v := args[0].(*tensor.Tensor)
		return []*tensor.Tensor{v.MulScalar(2), v.Mul(v)}, nil
	}

	fn := newFunction(block, false)
	ctx := autodiff.NewFunctionContext(engine)
	_, err := fn.Forward(ctx, x)
	require.NoError(t, err)

	_, err = fn.Backward(ctx, tensor.Ones(tensor.Shape{2}, tensor.Float64, engine), nil)
	require.ErrorIs(t, err, ErrGradientCountMismatch)
	assert.Contains(t, err.Error(), "[2]")
	assert.Contains(t, err.Error(), "[1]")
}

func TestBackward_NilGradientForOutputWithoutGrad(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	block := func(args ...any) ([]*tensor.Tensor, error) {
		v := args[0].(*tensor.Tensor)
		constant := tensor.Ones(tensor.Shape{2}, tensor.Float64, v.Backend())
		return []*tensor.Tensor{constant, v.MulScalar(4)}, nil
	}

	fn := newFunction(block, false)
	ctx := autodiff.NewFunctionContext(engine)
	_, err := fn.Forward(ctx, x)
	require.NoError(t, err)

	grads, err := fn.Backward(ctx, nil, tensor.Ones(tensor.Shape{2}, tensor.Float64, engine))
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4}, grads[0].Values())
}

func TestRun_NoGradientRequired(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	block := func(args ...any) ([]*tensor.Tensor, error) {
		v := args[0].(*tensor.Tensor)
		return []*tensor.Tensor{tensor.Full(v.Shape(), v.DType(), 7, v.Backend())}, nil
	}

	outs, err := Run(engine, block, []any{x}, WithPreserveRNGState(false))
	require.NoError(t, err)

	err = autodiff.Backward(engine, outs, nil)
	assert.ErrorIs(t, err, ErrNoGradientRequired)
}

func TestRun_AdvisoryWhenNoInputRequiresGrad(t *testing.T) {
	buf := captureKlog(t)
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2)
	block := func(args ...any) ([]*tensor.Tensor, error) {
		return []*tensor.Tensor{args[0].(*tensor.Tensor).MulScalar(3)}, nil
	}

	outs, err := Run(engine, block, []any{x}, WithPreserveRNGState(false))
	require.NoError(t, err)
	klog.Flush()

	assert.Equal(t, []float64{3, 6}, outs[0].Values())
	assert.False(t, outs[0].RequiresGrad())
	assert.Contains(t, buf.String(), "None of the inputs to current recompute block need grad")
}

func TestRun_ContextConsumedTwice(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	block := func(args ...any) ([]*tensor.Tensor, error) {
		return []*tensor.Tensor{args[0].(*tensor.Tensor).Tanh()}, nil
	}

	outs, err := Run(engine, block, []any{x}, WithPreserveRNGState(false))
	require.NoError(t, err)
	loss := outs[0].Sum()

	require.NoError(t, autodiff.Backward(engine, []*tensor.Tensor{loss}, nil))
	err = autodiff.Backward(engine, []*tensor.Tensor{loss}, nil)
	assert.ErrorIs(t, err, autodiff.ErrContextConsumed)
}

func TestRun_Nested(t *testing.T) {
	inner := func(args ...any) ([]*tensor.Tensor, error) {
		return []*tensor.Tensor{args[0].(*tensor.Tensor).Tanh().Mul(args[0].(*tensor.Tensor))}, nil
	}
	compute := func(nested bool) []float64 {
		engine := newCPUEngine()
		x := fromValues(t, engine, tensor.Shape{3}, 0.3, -0.8, 1.5).RequireGrad()
		outer := func(args ...any) ([]*tensor.Tensor, error) {
			v := args[0].(*tensor.Tensor).MulScalar(2)
			if nested {
				outs, err := Run(engine, inner, []any{v}, WithPreserveRNGState(false))
				if err != nil {
					return nil, err
				}
				return []*tensor.Tensor{outs[0].Exp()}, nil
			}
			outs, _ := inner(v)
			return []*tensor.Tensor{outs[0].Exp()}, nil
		}
		var outs []*tensor.Tensor
		var err error
		if nested {
			outs, err = Run(engine, outer, []any{x}, WithPreserveRNGState(false))
		} else {
			outs, err = outer(x)
		}
		require.NoError(t, err)
		require.NoError(t, autodiff.Backward(engine, []*tensor.Tensor{outs[0].Sum()}, nil))
		return x.Grad().Values()
	}

	assert.InDeltaSlice(t, compute(false), compute(true), 1e-12)
}

func TestRun_MultipleOutputsOneUnused(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	block := func(args ...any) ([]*tensor.Tensor, error) {
		v := args[0].(*tensor.Tensor)
		return []*tensor.Tensor{v.MulScalar(2), v.Mul(v)}, nil
	}

	outs, err := Run(engine, block, []any{x}, WithPreserveRNGState(false))
	require.NoError(t, err)
	require.Len(t, outs, 2)

	// Only the second output reaches the loss; the first receives zeros.
	require.NoError(t, autodiff.Backward(engine, []*tensor.Tensor{outs[1].Sum()}, nil))
	assert.Equal(t, []float64{2, 4}, x.Grad().Values())
}

func TestRunWithKwargs(t *testing.T) {
	engine := newCPUEngine()
	x := fromValues(t, engine, tensor.Shape{2}, 1, 2).RequireGrad()
	block := func(args ...any) ([]*tensor.Tensor, error) {
		return []*tensor.Tensor{args[0].(*tensor.Tensor).MulScalar(2)}, nil
	}

	outs, err := RunWithKwargs(engine, block, []any{x}, map[string]any{KeyPreserveRNGState: false})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, outs[0].Values())

	// Default preserves RNG state, which the CPU cannot do.
	_, err = RunWithKwargs(engine, block, []any{x}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedDevice)
}

func TestRunWithKwargs_Invalid(t *testing.T) {
	engine := newCPUEngine()
	block := func(args ...any) ([]*tensor.Tensor, error) { return nil, nil }

	_, err := RunWithKwargs(engine, block, nil, map[string]any{"use_reentrant": true, "debug": 1, KeyPreserveRNGState: false})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "Unexpected keyword arguments: debug,use_reentrant")

	_, err = RunWithKwargs(engine, block, nil, map[string]any{KeyPreserveRNGState: "yes"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Run(engine, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
