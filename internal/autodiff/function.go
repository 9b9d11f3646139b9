package autodiff

import (
	"github.com/pkg/errors"

	"github.com/born-ml/remat/internal/tensor"
)

// Function is a differentiable operation with a user-defined backward pass.
//
// Forward receives the raw call arguments, which may mix tensors and
// arbitrary values, and runs with recording disabled. Backward receives one
// gradient per forward output and returns one gradient per tensor argument,
// in argument order; a nil entry means no gradient for that input.
//
// A Function value may keep per-call state, in which case a fresh value
// must be passed to every Apply.
type Function interface {
	Forward(ctx *FunctionContext, args ...any) ([]*tensor.Tensor, error)
	Backward(ctx *FunctionContext, grads ...*tensor.Tensor) ([]*tensor.Tensor, error)
}

// FunctionContext carries state from a Function's forward pass to its
// backward pass.
type FunctionContext struct {
	engine         Engine
	saved          []*tensor.Tensor
	needsInputGrad []bool
	consumed       bool
}

// NewFunctionContext creates an empty context bound to engine. Apply creates
// one per call; it is exported for driving a Function directly.
func NewFunctionContext(engine Engine) *FunctionContext {
	return &FunctionContext{engine: engine}
}

// Engine returns the backend the function was applied on.
func (ctx *FunctionContext) Engine() Engine {
	return ctx.engine
}

// SaveForBackward stores tensors for use in the backward pass.
func (ctx *FunctionContext) SaveForBackward(ts ...*tensor.Tensor) {
	ctx.saved = append(ctx.saved, ts...)
}

// SavedTensors returns the tensors stored by SaveForBackward, in order.
func (ctx *FunctionContext) SavedTensors() []*tensor.Tensor {
	return ctx.saved
}

// NeedsInputGrad reports whether argument i is a tensor requiring gradients.
func (ctx *FunctionContext) NeedsInputGrad(i int) bool {
	return i >= 0 && i < len(ctx.needsInputGrad) && ctx.needsInputGrad[i]
}

// Apply runs fn on args and, when recording and any tensor argument
// requires gradients, records it on the engine's tape as a single node.
//
// The returned tensors are new graph nodes: even an output that aliases an
// input's storage has its own identity.
func Apply(engine Engine, fn Function, args ...any) ([]*tensor.Tensor, error) {
	ctx := NewFunctionContext(engine)
	ctx.needsInputGrad = make([]bool, len(args))

	anyGrad := false
	var inputs []*tensor.Tensor
	var argIndex []int
	for i, arg := range args {
		t, ok := arg.(*tensor.Tensor)
		if !ok || t == nil {
			continue
		}
		inputs = append(inputs, t)
		argIndex = append(argIndex, i)
		if t.RequiresGrad() {
			ctx.needsInputGrad[i] = true
			anyGrad = true
		}
	}
	record := anyGrad && engine.GradEnabled()

	var outputs []*tensor.Tensor
	var err error
	engine.NoGrad(func() {
		outputs, err = fn.Forward(ctx, args...)
	})
	if err != nil {
		return nil, err
	}
	for i, out := range outputs {
		if out == nil {
			return nil, errors.Errorf("forward returned nil output %d", i)
		}
	}
	if !record || len(outputs) == 0 {
		return outputs, nil
	}

	op := &functionOp{
		fn:       fn,
		ctx:      ctx,
		argIndex: argIndex,
	}
	for _, in := range inputs {
		op.inputs = append(op.inputs, in.Raw())
		if in.RequiresGrad() && in.IsLeaf() {
			engine.Watch(in)
		}
	}
	nodes := make([]*tensor.Tensor, len(outputs))
	for i, out := range outputs {
		nodes[i] = tensor.NewNode(out.Raw().Clone(), engine)
		op.outputs = append(op.outputs, nodes[i].Raw())
	}
	engine.Tape().Record(op)
	return nodes, nil
}

// functionOp is the tape node of an applied Function.
type functionOp struct {
	fn       Function
	ctx      *FunctionContext
	inputs   []*tensor.RawTensor // tensor arguments, in argument order
	argIndex []int               // argument position of each input
	outputs  []*tensor.RawTensor
}

func (op *functionOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

func (op *functionOp) Output() *tensor.RawTensor {
	return op.outputs[0]
}

func (op *functionOp) Outputs() []*tensor.RawTensor {
	return op.outputs
}

func (op *functionOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return op.BackwardMulti([]*tensor.RawTensor{outputGrad}, backend)
}

// BackwardMulti runs the function's backward pass once. Failures panic with
// an error, which Backward turns back into a returned error.
func (op *functionOp) BackwardMulti(outputGrads []*tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	ctx := op.ctx
	if ctx.consumed {
		panic(errors.WithStack(ErrContextConsumed))
	}
	ctx.consumed = true

	grads := make([]*tensor.Tensor, len(outputGrads))
	for i, g := range outputGrads {
		if g != nil {
			grads[i] = tensor.New(g, ctx.engine)
		}
	}

	argGrads, err := op.fn.Backward(ctx, grads...)
	ctx.saved = nil
	if err != nil {
		panic(err)
	}
	if len(argGrads) != len(op.inputs) {
		panic(errors.Wrapf(ErrBackwardArity, "expected %d gradients (one per tensor argument), got %d", len(op.inputs), len(argGrads)))
	}

	inputGrads := make([]*tensor.RawTensor, len(op.inputs))
	for j, in := range op.inputs {
		g := argGrads[j]
		if g == nil {
			continue
		}
		if !g.Shape().Equal(in.Shape()) {
			panic(errors.Wrapf(ErrGradientShape, "gradient for argument %d has shape %v, argument has shape %v",
				op.argIndex[j], g.Shape(), in.Shape()))
		}
		inputGrads[j] = g.Raw()
	}
	return inputGrads
}
