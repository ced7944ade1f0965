// Package config loads sampler run settings from YAML with environment
// overrides.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/neurlang/flowmc/local"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Sampler SamplerConfig `yaml:"sampler"`
	Flow    FlowConfig    `yaml:"flow"`
	Local   LocalConfig   `yaml:"local"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
}

type SamplerConfig struct {
	Target          string  `yaml:"target"`
	Seed            uint64  `yaml:"seed"`
	NDim            int     `yaml:"n_dim"`
	NChains         int     `yaml:"n_chains"`
	NLoopTraining   int     `yaml:"n_loop_training"`
	NLoopProduction int     `yaml:"n_loop_production"`
	NLocalSteps     int     `yaml:"n_local_steps"`
	NGlobalSteps    int     `yaml:"n_global_steps"`
	UseGlobal       bool    `yaml:"use_global"`
	KeepQuantile    float64 `yaml:"keep_quantile"`
	MaxSamples      int     `yaml:"max_samples"`
}

type FlowConfig struct {
	NEpochs      int     `yaml:"n_epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Momentum     float64 `yaml:"momentum"`
	Resume       string  `yaml:"resume"` // checkpoint to start from
}

type LocalConfig struct {
	Kind            string  `yaml:"kind"` // randomwalk, mala or hmc
	StepSize        float64 `yaml:"step_size"`
	LeapfrogSteps   int     `yaml:"leapfrog_steps"`
	Autotune        bool    `yaml:"autotune"`
	AutotuneMaxIter int     `yaml:"autotune_max_iter"`
}

type OutputConfig struct {
	Checkpoint string `yaml:"checkpoint"`
	SQLite     string `yaml:"sqlite"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the stock settings.
func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			Target:          "gaussian",
			Seed:            0,
			NDim:            2,
			NChains:         5,
			NLoopTraining:   2,
			NLoopProduction: 2,
			NLocalSteps:     5,
			NGlobalSteps:    5,
			UseGlobal:       true,
			KeepQuantile:    0,
			MaxSamples:      10000,
		},
		Flow: FlowConfig{
			NEpochs:      5,
			BatchSize:    10,
			LearningRate: 0.01,
			Momentum:     0.9,
		},
		Local: LocalConfig{
			Kind:            "randomwalk",
			StepSize:        0.1,
			LeapfrogSteps:   10,
			AutotuneMaxIter: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults, applies FLOWMC_* environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "config: read")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Sampler.Target = getEnv("FLOWMC_TARGET", c.Sampler.Target)
	c.Sampler.Seed = uint64(getEnvInt("FLOWMC_SEED", int(c.Sampler.Seed)))
	c.Sampler.NDim = getEnvInt("FLOWMC_N_DIM", c.Sampler.NDim)
	c.Sampler.NChains = getEnvInt("FLOWMC_N_CHAINS", c.Sampler.NChains)
	c.Sampler.UseGlobal = getEnvBool("FLOWMC_USE_GLOBAL", c.Sampler.UseGlobal)
	c.Sampler.KeepQuantile = getEnvFloat("FLOWMC_KEEP_QUANTILE", c.Sampler.KeepQuantile)
	c.Flow.Resume = getEnv("FLOWMC_RESUME", c.Flow.Resume)
	c.Local.Kind = getEnv("FLOWMC_LOCAL_KIND", c.Local.Kind)
	c.Local.StepSize = getEnvFloat("FLOWMC_STEP_SIZE", c.Local.StepSize)
	c.Output.Checkpoint = getEnv("FLOWMC_CHECKPOINT", c.Output.Checkpoint)
	c.Output.SQLite = getEnv("FLOWMC_SQLITE", c.Output.SQLite)
	c.Log.Level = getEnv("FLOWMC_LOG_LEVEL", c.Log.Level)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}
	s := c.Sampler
	check(s.NDim >= 1, "sampler.n_dim must be positive")
	check(s.NChains >= 1, "sampler.n_chains must be positive")
	check(s.NLoopTraining >= 0, "sampler.n_loop_training must not be negative")
	check(s.NLoopProduction >= 0, "sampler.n_loop_production must not be negative")
	check(s.NLocalSteps >= 1, "sampler.n_local_steps must be positive")
	check(s.KeepQuantile >= 0 && s.KeepQuantile < 1, "sampler.keep_quantile must be in [0, 1)")
	if s.UseGlobal {
		check(s.NGlobalSteps >= 1, "sampler.n_global_steps must be positive")
		check(s.MaxSamples >= s.NChains, "sampler.max_samples must be at least n_chains")
		check(c.Flow.NEpochs >= 1, "flow.n_epochs must be positive")
		check(c.Flow.BatchSize >= 1, "flow.batch_size must be positive")
		check(c.Flow.LearningRate > 0, "flow.learning_rate must be positive")
		check(c.Flow.Momentum >= 0 && c.Flow.Momentum < 1, "flow.momentum must be in [0, 1)")
	}
	check(c.Local.StepSize > 0, "local.step_size must be positive")
	if _, err := c.Local.Factory(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Local.Kind == "hmc" {
		check(c.Local.LeapfrogSteps >= 1, "local.leapfrog_steps must be positive")
	}
	check(c.Local.AutotuneMaxIter >= 0, "local.autotune_max_iter must not be negative")
	if _, err := c.Log.SlogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Factory maps Kind to a local sampler factory.
func (c LocalConfig) Factory() (local.Factory, error) {
	switch c.Kind {
	case "randomwalk", "":
		return local.RandomWalkFactory, nil
	case "mala":
		return local.MALAFactory, nil
	case "hmc":
		return local.HMCFactory, nil
	}
	return nil, errors.Errorf("local.kind %q is not one of randomwalk, mala, hmc", c.Kind)
}

// Params converts the local settings to sampler parameters.
func (c LocalConfig) Params() local.Params {
	return local.Params{StepSize: c.StepSize, LeapfrogSteps: c.LeapfrogSteps}
}

// SlogLevel parses Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return l, errors.Errorf("log.level %q is not a slog level", c.Level)
	}
	return l, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
