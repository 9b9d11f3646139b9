// Package config loads the YAML training configuration used by cmd/remat.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/remat/internal/recompute"
)

// Config is the training configuration file. Optional scalars are pointers
// so "not set" can be told apart from zero and command-line flags can fill
// them in.
type Config struct {
	FileList  []string `yaml:"file_list"`
	ThreadNum *int     `yaml:"thread_num"`
	Fetch     []string `yaml:"fetch"`
	Debug     bool     `yaml:"debug"`
	Epochs    *int     `yaml:"epochs"`
	BatchSize *int     `yaml:"batch_size"`
	Seed      *uint64  `yaml:"seed"`
	Output    string   `yaml:"output"`

	Model     Model     `yaml:"model"`
	Optimizer Optimizer `yaml:"optimizer"`

	// Recompute is passed verbatim to the recompute keyword parser, so an
	// unknown key is reported the same way a bad call would be.
	Recompute map[string]any `yaml:"recompute"`
}

// Model describes the MLP trained by the executor.
type Model struct {
	Hidden   []int   `yaml:"hidden"`
	Dropout  float64 `yaml:"dropout"`
	Segments int     `yaml:"segments"`
}

// Optimizer configures SGD.
type Optimizer struct {
	LR       *float64 `yaml:"lr"`
	Momentum float64  `yaml:"momentum"`
}

// Load reads the configuration file at path. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.WithMessagef(err, "config %q", path)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration document. An empty document yields the
// zero Config.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decoding yaml")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for _, h := range c.Model.Hidden {
		if h <= 0 {
			return errors.Errorf("model.hidden: layer width must be positive, got %d", h)
		}
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		return errors.Errorf("model.dropout must be in [0, 1), got %v", c.Model.Dropout)
	}
	if c.Model.Segments < 0 {
		return errors.Errorf("model.segments must not be negative, got %d", c.Model.Segments)
	}
	opts, err := c.RecomputeOptions()
	if err != nil {
		return errors.WithMessage(err, "recompute")
	}
	if c.Model.Dropout > 0 && c.Model.Segments > 0 && len(opts) > 0 && !recompute.PreservesRNGState(opts...) {
		return errors.New("model.dropout with model.segments needs recompute.preserve_rng_state, the replayed masks would differ")
	}
	return nil
}

// RecomputeOptions converts the recompute section into call options.
func (c Config) RecomputeOptions() ([]recompute.Option, error) {
	if len(c.Recompute) == 0 {
		return nil, nil
	}
	return recompute.ParseKwargs(c.Recompute)
}
