package executor

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/born-ml/remat/internal/nn"
	"github.com/born-ml/remat/internal/serialization"
)

// Save writes the model's parameters and the run's training state to path
// in .born format.
func Save(path string, model nn.Module, res *Result, cfg ModelConfig, recompute map[string]any) error {
	header := serialization.Header{
		ModelType: "MLP",
		Metadata: map[string]string{
			"segments": strconv.Itoa(cfg.Segments),
			"dropout":  strconv.FormatFloat(cfg.Dropout, 'g', -1, 64),
		},
		Training: &serialization.TrainingState{
			RunID:         res.RunID,
			Epoch:         res.Epochs,
			Step:          int64(res.Steps),
			Loss:          res.Loss,
			OptimizerType: "SGD",
			Recompute:     recompute,
		},
	}
	return errors.Wrap(serialization.SaveFile(path, model.StateDict(), header), "executor: saving model")
}
