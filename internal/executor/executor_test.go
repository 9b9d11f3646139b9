package executor_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/backend/cpu"
	"github.com/born-ml/remat/internal/executor"
	"github.com/born-ml/remat/internal/nn"
	"github.com/born-ml/remat/internal/optim"
	"github.com/born-ml/remat/internal/recompute"
	"github.com/born-ml/remat/internal/serialization"
	"github.com/born-ml/remat/internal/tensor"
)

type acceleratorBackend struct {
	*cpu.CPUBackend
}

func (acceleratorBackend) Device() tensor.Device { return tensor.CUDA }

// writeSamples writes n samples of y = 0.5*x0 - x1 split over files.
func writeSamples(t *testing.T, files, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, files)
	lines := make([][]string, files)
	for i := range n {
		x0 := float64(i%7)/7 - 0.5
		x1 := float64(i%5)/5 - 0.4
		lines[i%files] = append(lines[i%files], fmt.Sprintf("%g,%g;%g", x0, x1, 0.5*x0-x1))
	}
	for i := range files {
		paths[i] = filepath.Join(dir, fmt.Sprintf("part-%d.txt", i))
		content := "# x0,x1;y\n" + strings.Join(lines[i], "\n") + "\n"
		require.NoError(t, os.WriteFile(paths[i], []byte(content), 0o600))
	}
	return paths
}

func baseConfig(paths []string) executor.Config {
	return executor.Config{
		FileList:  paths,
		ThreadNum: 2,
		Fetch:     []string{executor.FetchLoss, executor.FetchRetainedBytes, executor.FetchSteps},
		Epochs:    6,
		BatchSize: 8,
		InputDim:  2,
		OutputDim: 1,
	}
}

func train(t *testing.T, cfg executor.Config, model executor.ModelConfig, opts ...recompute.Option) (*executor.Result, nn.Module, error) {
	t.Helper()
	engine := autodiff.New(cpu.New(cpu.WithSeed(3)))
	m, err := executor.BuildMLP(engine, cfg.InputDim, cfg.OutputDim, model, opts...)
	require.NoError(t, err)
	sgd := optim.NewSGD(m.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.5})
	exec, err := executor.New(engine, m, sgd, cfg)
	require.NoError(t, err)
	res, err := exec.Run(context.Background())
	return res, m, err
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func TestExecutor_Run(t *testing.T) {
	cfg := baseConfig(writeSamples(t, 3, 64))

	res, _, err := train(t, cfg, executor.ModelConfig{Hidden: []int{8, 8}, Segments: 2})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 6*8, res.Steps)
	assert.Equal(t, 6, res.Epochs)
	require.Len(t, res.Metrics[executor.FetchLoss], res.Steps)
	assert.Equal(t, float64(res.Steps), res.Metrics[executor.FetchSteps][res.Steps-1])

	losses := res.Metrics[executor.FetchLoss]
	assert.Less(t, mean(losses[len(losses)-8:]), mean(losses[:8]))
}

func TestExecutor_PartialBatch(t *testing.T) {
	cfg := baseConfig(writeSamples(t, 2, 20))
	cfg.Epochs = 1
	cfg.Fetch = []string{executor.FetchSteps}

	res, _, err := train(t, cfg, executor.ModelConfig{Hidden: []int{4}})
	require.NoError(t, err)

	// 8 + 8 + 4
	assert.Equal(t, 3, res.Steps)
	assert.Len(t, res.Metrics, 1)
}

func TestExecutor_RecomputeRetainsLess(t *testing.T) {
	cfg := baseConfig(writeSamples(t, 1, 16))
	cfg.Epochs = 1
	model := executor.ModelConfig{Hidden: []int{16, 16, 16}}

	plain, _, err := train(t, cfg, model)
	require.NoError(t, err)
	model.Segments = 2
	ckpt, _, err := train(t, cfg, model)
	require.NoError(t, err)

	assert.Less(t,
		ckpt.Metrics[executor.FetchRetainedBytes][0],
		plain.Metrics[executor.FetchRetainedBytes][0])
}

func TestExecutor_PreserveRNGOnCPU(t *testing.T) {
	cfg := baseConfig(writeSamples(t, 1, 16))

	_, _, err := train(t, cfg, executor.ModelConfig{Hidden: []int{4, 4}, Segments: 2},
		recompute.WithPreserveRNGState(true))

	require.Error(t, err)
	assert.ErrorIs(t, err, recompute.ErrUnsupportedDevice)
}

func TestExecutor_FailedRunLeavesEvalMode(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1,2;3\n1,x;3\n"), 0o600))

	_, model, err := train(t, baseConfig([]string{bad}), executor.ModelConfig{Hidden: []int{4}, Dropout: 0.5})
	require.Error(t, err)

	dropout, ok := model.(*nn.Sequential).Module(2).(*nn.Dropout)
	require.True(t, ok)
	assert.False(t, dropout.Training())
}

func TestExecutor_BadInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1,2;3\n1,x;3\n"), 0o600))
	cfg := baseConfig([]string{bad})

	_, _, err := train(t, cfg, executor.ModelConfig{Hidden: []int{4}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.txt:2")

	wide := filepath.Join(dir, "wide.txt")
	require.NoError(t, os.WriteFile(wide, []byte("1,2,3;3\n"), 0o600))
	cfg = baseConfig([]string{wide})
	_, _, err = train(t, cfg, executor.ModelConfig{Hidden: []int{4}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 features")

	cfg = baseConfig([]string{filepath.Join(dir, "absent.txt")})
	_, _, err = train(t, cfg, executor.ModelConfig{Hidden: []int{4}})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := baseConfig([]string{"a.txt"})
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*executor.Config)
	}{
		{"empty file list", func(c *executor.Config) { c.FileList = nil }},
		{"zero threads", func(c *executor.Config) { c.ThreadNum = 0 }},
		{"unknown fetch", func(c *executor.Config) { c.Fetch = []string{"accuracy"} }},
		{"zero epochs", func(c *executor.Config) { c.Epochs = 0 }},
		{"zero batch", func(c *executor.Config) { c.BatchSize = 0 }},
		{"zero width", func(c *executor.Config) { c.InputDim = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNew_OnlyCPU(t *testing.T) {
	engine := autodiff.New(acceleratorBackend{cpu.New()})
	model, err := executor.BuildMLP(engine, 2, 1, executor.ModelConfig{Hidden: []int{4}})
	require.NoError(t, err)

	_, err = executor.New(engine, model, optim.NewSGD(model.Parameters(), optim.SGDConfig{}), baseConfig([]string{"a.txt"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only supports CPU device")
}

func TestParseLine(t *testing.T) {
	s, err := executor.ParseLine("1, 2.5,-3;4")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, s.X)
	assert.Equal(t, []float64{4}, s.Y)

	for _, line := range []string{"1,2,3", "1,a;2", "1;", ";1"} {
		_, err := executor.ParseLine(line)
		assert.Error(t, err, line)
	}
}

func TestBuildMLP(t *testing.T) {
	engine := autodiff.New(cpu.New())

	plain, err := executor.BuildMLP(engine, 3, 2, executor.ModelConfig{Hidden: []int{4, 4}, Dropout: 0.2})
	require.NoError(t, err)
	// (linear, tanh, dropout) x 2 + head
	assert.Equal(t, 7, plain.Len())

	ckpt, err := executor.BuildMLP(engine, 3, 2, executor.ModelConfig{Hidden: []int{4, 4}, Segments: 10})
	require.NoError(t, err)
	assert.IsType(t, &nn.Checkpoint{}, ckpt.Module(0))
	assert.Len(t, ckpt.Parameters(), 6)
}

func TestBuildMLP_DropoutNeedsReplay(t *testing.T) {
	engine := autodiff.New(cpu.New())
	cfg := executor.ModelConfig{Hidden: []int{8, 8}, Dropout: 0.5, Segments: 2}

	_, err := executor.BuildMLP(engine, 3, 1, cfg)
	assert.ErrorIs(t, err, executor.ErrDropoutWithoutReplay)

	_, err = executor.BuildMLP(engine, 3, 1, cfg, recompute.WithPreserveRNGState(false))
	assert.ErrorIs(t, err, executor.ErrDropoutWithoutReplay)

	// Explicit replay is accepted here and rejected by the device at the first step.
	_, err = executor.BuildMLP(engine, 3, 1, cfg, recompute.WithPreserveRNGState(true))
	assert.NoError(t, err)

	cfg.Segments = 0
	_, err = executor.BuildMLP(engine, 3, 1, cfg)
	assert.NoError(t, err)
}

func TestSave(t *testing.T) {
	cfg := baseConfig(writeSamples(t, 1, 16))
	cfg.Epochs = 1
	modelCfg := executor.ModelConfig{Hidden: []int{4}, Segments: 1}
	kwargs := map[string]any{recompute.KeyPreserveRNGState: false}

	res, model, err := train(t, cfg, modelCfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.born")
	require.NoError(t, executor.Save(path, model, res, modelCfg, kwargs))

	f, err := serialization.OpenFile(path)
	require.NoError(t, err)
	require.True(t, f.HasTrainingState())
	assert.Equal(t, res.RunID, f.Header().Training.RunID)
	assert.Equal(t, int64(res.Steps), f.Header().Training.Step)
	assert.Equal(t, false, f.Header().Training.Recompute[recompute.KeyPreserveRNGState])

	state, err := f.StateDict(tensor.CPU)
	require.NoError(t, err)
	engine := autodiff.New(cpu.New(cpu.WithSeed(99)))
	restored, err := executor.BuildMLP(engine, 2, 1, modelCfg)
	require.NoError(t, err)
	require.NoError(t, nn.LoadStateDict(restored, state))

	x, err := tensor.FromFloat64([]float64{0.1, -0.2}, tensor.Shape{1, 2}, engine)
	require.NoError(t, err)
	var want, got []float64
	engine.NoGrad(func() {
		want = model.Forward(x).Values()
		got = restored.Forward(x).Values()
	})
	assert.Equal(t, want, got)
}

func TestProbeDims(t *testing.T) {
	paths := writeSamples(t, 1, 4)
	in, out, err := executor.ProbeDims(paths[0])
	require.NoError(t, err)
	assert.Equal(t, 2, in)
	assert.Equal(t, 1, out)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n\n"), 0o600))
	_, _, err = executor.ProbeDims(empty)
	assert.Error(t, err)
}
