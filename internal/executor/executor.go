// Package executor trains a model over a list of local sample files.
//
// Files are read by a pool of goroutines; a single trainer consumes the
// samples in batches, so every tape and recompute call runs on one
// goroutine.
package executor

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/nn"
	"github.com/born-ml/remat/internal/optim"
	"github.com/born-ml/remat/internal/tensor"
)

// Result summarizes a finished run.
type Result struct {
	RunID   string
	Steps   int
	Epochs  int
	Loss    float64 // last step
	Metrics map[string][]float64
}

// StepInfo is passed to the step hook after every optimizer step.
type StepInfo struct {
	Epoch         int
	Step          int
	Loss          float64
	RetainedBytes int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithStepHook registers fn to be called after every step.
func WithStepHook(fn func(StepInfo)) Option {
	return func(e *Executor) { e.onStep = fn }
}

// Executor runs training steps for one model.
type Executor struct {
	engine    autodiff.Engine
	model     nn.Module
	optimizer optim.Optimizer
	lossFn    *nn.MSELoss
	cfg       Config
	onStep    func(StepInfo)
}

// New creates an Executor. Only CPU engines are supported.
func New(engine autodiff.Engine, model nn.Module, optimizer optim.Optimizer, cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if device := engine.Device(); device != tensor.CPU {
		return nil, errors.Errorf("executor: only supports CPU device, got %s", device)
	}
	e := &Executor{
		engine:    engine,
		model:     model,
		optimizer: optimizer,
		lossFn:    nn.NewMSELoss(),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run trains for cfg.Epochs passes over the file list.
func (e *Executor) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:   uuid.NewString(),
		Metrics: make(map[string][]float64, len(e.cfg.Fetch)),
	}
	klog.Infof("run %s: %d files, %d readers, %d epochs", res.RunID, len(e.cfg.FileList), e.cfg.ThreadNum, e.cfg.Epochs)

	nn.SetTraining(e.model, true)
	defer nn.SetTraining(e.model, false)
	for epoch := range e.cfg.Epochs {
		if err := e.runEpoch(ctx, epoch, res); err != nil {
			return nil, errors.WithMessagef(err, "run %s: epoch %d", res.RunID, epoch)
		}
		res.Epochs++
	}
	return res, nil
}

func (e *Executor) runEpoch(ctx context.Context, epoch int, res *Result) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	samples, wait := readSamples(ctx, e.cfg.FileList, e.cfg.ThreadNum)

	var stepErr error
	batch := make([]Sample, 0, e.cfg.BatchSize)
	for s := range samples {
		if stepErr != nil {
			continue // drain until the readers stop
		}
		batch = append(batch, s)
		if len(batch) < e.cfg.BatchSize {
			continue
		}
		if stepErr = e.step(epoch, batch, res); stepErr != nil {
			cancel()
		}
		batch = batch[:0]
	}
	if stepErr != nil {
		return stepErr
	}
	if err := wait(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return e.step(epoch, batch, res)
	}
	return nil
}

func (e *Executor) step(epoch int, batch []Sample, res *Result) error {
	x, y, err := e.tensors(batch)
	if err != nil {
		return errors.WithMessagef(err, "step %d", res.Steps)
	}

	var loss float64
	var retained int64
	err = exceptions.TryCatch[error](func() {
		e.optimizer.ZeroGrad()
		out := e.lossFn.Forward(e.model.Forward(x), y)
		retained = e.engine.Tape().RetainedBytes()
		if err := autodiff.Backward(e.engine, []*tensor.Tensor{out}, nil); err != nil {
			panic(err)
		}
		e.optimizer.Step()
		loss = out.Item()
	})
	e.engine.Tape().Clear()
	if err != nil {
		return errors.WithMessagef(err, "step %d", res.Steps)
	}

	res.Steps++
	res.Loss = loss
	for _, name := range e.cfg.Fetch {
		switch name {
		case FetchLoss:
			res.Metrics[name] = append(res.Metrics[name], loss)
		case FetchRetainedBytes:
			res.Metrics[name] = append(res.Metrics[name], float64(retained))
		case FetchSteps:
			res.Metrics[name] = append(res.Metrics[name], float64(res.Steps))
		}
	}
	if e.cfg.Debug {
		klog.Infof("epoch %d step %d: loss=%.6g retained=%s", epoch, res.Steps, loss, humanize.IBytes(uint64(retained)))
	} else {
		klog.V(2).Infof("epoch %d step %d: loss=%.6g", epoch, res.Steps, loss)
	}
	if e.onStep != nil {
		e.onStep(StepInfo{Epoch: epoch, Step: res.Steps, Loss: loss, RetainedBytes: retained})
	}
	return nil
}

// tensors packs a batch into [batch, in] and [batch, out] float64 tensors.
func (e *Executor) tensors(batch []Sample) (x, y *tensor.Tensor, err error) {
	xs := make([]float64, 0, len(batch)*e.cfg.InputDim)
	ys := make([]float64, 0, len(batch)*e.cfg.OutputDim)
	for i, s := range batch {
		if len(s.X) != e.cfg.InputDim || len(s.Y) != e.cfg.OutputDim {
			return nil, nil, errors.Errorf("sample %d has %d features and %d targets, expected %d and %d",
				i, len(s.X), len(s.Y), e.cfg.InputDim, e.cfg.OutputDim)
		}
		xs = append(xs, s.X...)
		ys = append(ys, s.Y...)
	}
	if x, err = tensor.FromFloat64(xs, tensor.Shape{len(batch), e.cfg.InputDim}, e.engine); err != nil {
		return nil, nil, err
	}
	if y, err = tensor.FromFloat64(ys, tensor.Shape{len(batch), e.cfg.OutputDim}, e.engine); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
