package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/remat/internal/autodiff"
	"github.com/born-ml/remat/internal/backend/cpu"
	"github.com/born-ml/remat/internal/config"
	"github.com/born-ml/remat/internal/executor"
	"github.com/born-ml/remat/internal/optim"
	"github.com/born-ml/remat/internal/recompute"
)

func trainCmd() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Train an MLP over local sample files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML training config"},
			&cli.StringSliceFlag{Name: "file", Aliases: []string{"f"}, Usage: "sample file (repeatable)"},
			&cli.Int64Flag{Name: "threads", Usage: "concurrent file readers", Value: 1},
			&cli.StringSliceFlag{Name: "fetch", Usage: "metrics to record (loss, retained_bytes, steps)"},
			&cli.Int64Flag{Name: "epochs", Value: 1},
			&cli.Int64Flag{Name: "batch-size", Value: 32},
			&cli.Int64Flag{Name: "segments", Usage: "recomputed segments, 0 disables recomputation"},
			&cli.Float64Flag{Name: "lr", Usage: "SGD learning rate", Value: 0.01},
			&cli.Float64Flag{Name: "momentum", Usage: "SGD momentum"},
			&cli.Int64Flag{Name: "seed", Value: int64(cpu.DefaultSeed)},
			&cli.BoolFlag{Name: "preserve-rng-state", Usage: "restore the generator when replaying segments"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write trained parameters to this .born file"},
			&cli.BoolFlag{Name: "debug", Usage: "log fetched metrics after every step"},
			&cli.BoolFlag{Name: "no-progress", Usage: "disable the progress bar"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var cfg config.Config
			if path := cmd.String("config"); path != "" {
				var err error
				if cfg, err = config.Load(path); err != nil {
					return err
				}
			}
			applyTrainFlags(cmd, &cfg)
			return train(ctx, cfg, !cmd.Bool("no-progress"))
		},
	}
}

// applyTrainFlags fills cfg from flags. Explicitly set flags win; defaults
// only fill fields the config file left unset.
func applyTrainFlags(cmd *cli.Command, cfg *config.Config) {
	intFlag := func(name string, dst **int) {
		if cmd.IsSet(name) || *dst == nil {
			v := int(cmd.Int64(name))
			*dst = &v
		}
	}
	if cmd.IsSet("file") {
		cfg.FileList = cmd.StringSlice("file")
	}
	if cmd.IsSet("fetch") {
		cfg.Fetch = cmd.StringSlice("fetch")
	}
	intFlag("threads", &cfg.ThreadNum)
	intFlag("epochs", &cfg.Epochs)
	intFlag("batch-size", &cfg.BatchSize)
	if cmd.IsSet("segments") {
		cfg.Model.Segments = int(cmd.Int64("segments"))
	}
	if cmd.IsSet("lr") || cfg.Optimizer.LR == nil {
		lr := cmd.Float("lr")
		cfg.Optimizer.LR = &lr
	}
	if cmd.IsSet("momentum") {
		cfg.Optimizer.Momentum = cmd.Float("momentum")
	}
	if cmd.IsSet("seed") || cfg.Seed == nil {
		seed := uint64(cmd.Int64("seed"))
		cfg.Seed = &seed
	}
	if cmd.IsSet("preserve-rng-state") {
		if cfg.Recompute == nil {
			cfg.Recompute = make(map[string]any)
		}
		cfg.Recompute[recompute.KeyPreserveRNGState] = cmd.Bool("preserve-rng-state")
	}
	if cmd.IsSet("output") {
		cfg.Output = cmd.String("output")
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if len(cfg.Model.Hidden) == 0 {
		cfg.Model.Hidden = []int{64, 64}
	}
}

func train(ctx context.Context, cfg config.Config, progress bool) error {
	if len(cfg.FileList) == 0 {
		return errors.New("train: no sample files, pass --file or set file_list")
	}
	opts, err := cfg.RecomputeOptions()
	if err != nil {
		return err
	}
	in, out, err := executor.ProbeDims(cfg.FileList[0])
	if err != nil {
		return err
	}

	engine := autodiff.New(cpu.New(cpu.WithSeed(*cfg.Seed)))
	modelCfg := executor.ModelConfig{
		Hidden:   cfg.Model.Hidden,
		Dropout:  cfg.Model.Dropout,
		Segments: cfg.Model.Segments,
	}
	model, err := executor.BuildMLP(engine, in, out, modelCfg, opts...)
	if err != nil {
		return err
	}
	sgd := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: *cfg.Optimizer.LR, Momentum: cfg.Optimizer.Momentum})

	var execOpts []executor.Option
	if progress {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("training"),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("steps"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		)
		defer func() { _ = bar.Finish() }()
		execOpts = append(execOpts, executor.WithStepHook(func(s executor.StepInfo) {
			bar.Describe(fmt.Sprintf("epoch %d loss %.4g retained %s", s.Epoch, s.Loss, humanize.IBytes(uint64(s.RetainedBytes))))
			_ = bar.Add(1)
		}))
	}

	exec, err := executor.New(engine, model, sgd, executor.Config{
		FileList:  cfg.FileList,
		ThreadNum: *cfg.ThreadNum,
		Fetch:     cfg.Fetch,
		Debug:     cfg.Debug,
		Epochs:    *cfg.Epochs,
		BatchSize: *cfg.BatchSize,
		InputDim:  in,
		OutputDim: out,
	}, execOpts...)
	if err != nil {
		return err
	}
	res, err := exec.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\nrun %s: %s steps over %d epochs, final loss %.6g\n",
		res.RunID, humanize.Comma(int64(res.Steps)), res.Epochs, res.Loss)
	for _, name := range cfg.Fetch {
		if vals := res.Metrics[name]; len(vals) > 0 {
			fmt.Printf("  %s: last %.6g\n", name, vals[len(vals)-1])
		}
	}
	if cfg.Output != "" {
		if err := executor.Save(cfg.Output, model, res, modelCfg, cfg.Recompute); err != nil {
			return err
		}
		fmt.Printf("saved parameters to %s\n", cfg.Output)
	}
	return nil
}
