package executor

import (
	"slices"

	"github.com/pkg/errors"
)

// Names accepted in Config.Fetch.
const (
	FetchLoss          = "loss"
	FetchRetainedBytes = "retained_bytes"
	FetchSteps         = "steps"
)

var knownFetches = []string{FetchLoss, FetchRetainedBytes, FetchSteps}

// Config controls a training run.
type Config struct {
	// FileList holds the sample files. Each line is "x1,...,xn;y1,...,ym".
	FileList []string

	// ThreadNum is the number of concurrent file readers.
	ThreadNum int

	// Fetch names the per-step metrics recorded in Result.Metrics.
	Fetch []string

	// Debug logs every fetched metric after each step.
	Debug bool

	Epochs    int
	BatchSize int

	// InputDim and OutputDim are the widths every sample must have.
	InputDim  int
	OutputDim int
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if len(c.FileList) == 0 {
		return errors.New("executor: file list is empty")
	}
	if c.ThreadNum <= 0 {
		return errors.Errorf("executor: thread num must be positive, got %d", c.ThreadNum)
	}
	for _, name := range c.Fetch {
		if !slices.Contains(knownFetches, name) {
			return errors.Errorf("executor: unknown fetch %q, expected one of %v", name, knownFetches)
		}
	}
	if c.Epochs <= 0 {
		return errors.Errorf("executor: epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("executor: batch size must be positive, got %d", c.BatchSize)
	}
	if c.InputDim <= 0 || c.OutputDim <= 0 {
		return errors.Errorf("executor: sample widths must be positive, got %d and %d", c.InputDim, c.OutputDim)
	}
	return nil
}
