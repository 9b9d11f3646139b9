package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/remat/internal/config"
	"github.com/born-ml/remat/internal/serialization"
)

// parseTrainFlags runs the train command's flag parsing with args and
// returns the resulting config.
func parseTrainFlags(t *testing.T, base config.Config, args ...string) config.Config {
	t.Helper()
	cmd := trainCmd()
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		applyTrainFlags(c, &base)
		return nil
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"train"}, args...)))
	return base
}

func TestApplyTrainFlags(t *testing.T) {
	threads := 8
	base := config.Config{ThreadNum: &threads, Model: config.Model{Hidden: []int{16}}}

	cfg := parseTrainFlags(t, base, "--file", "a.txt", "--file", "b.txt", "--epochs", "3", "--preserve-rng-state=false")

	assert.Equal(t, []string{"a.txt", "b.txt"}, cfg.FileList)
	assert.Equal(t, 8, *cfg.ThreadNum, "config value kept when flag not set")
	assert.Equal(t, 3, *cfg.Epochs)
	assert.Equal(t, 32, *cfg.BatchSize)
	assert.Equal(t, []int{16}, cfg.Model.Hidden)
	assert.Equal(t, false, cfg.Recompute["preserve_rng_state"])

	cfg = parseTrainFlags(t, base, "--threads", "2")
	assert.Equal(t, 2, *cfg.ThreadNum)
	assert.Nil(t, cfg.Recompute)
}

func TestTrain(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "samples.txt")
	require.NoError(t, os.WriteFile(data, []byte("0.1,0.2;0.3\n0.4,-0.1;0.2\n-0.3,0.5;-0.1\n"), 0o600))
	output := filepath.Join(dir, "model.born")

	cfg := parseTrainFlags(t, config.Config{},
		"--file", data, "--batch-size", "2", "--segments", "1", "--output", output, "--fetch", "loss")
	require.NoError(t, train(context.Background(), cfg, false))

	f, err := serialization.OpenFile(output)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.Header().Training.Step)
	assert.Len(t, f.TensorNames(), 6)
}

func TestTrain_NoFiles(t *testing.T) {
	cfg := parseTrainFlags(t, config.Config{})
	assert.Error(t, train(context.Background(), cfg, false))
}
