package sampler

import "log/slog"

import "github.com/pkg/errors"

import "github.com/neurlang/flowmc/flow"
import "github.com/neurlang/flowmc/local"
import "github.com/neurlang/flowmc/metrics"
import "github.com/neurlang/flowmc/rng"

// ErrConfiguration is returned for inconsistent dimensions or counts.
var ErrConfiguration = errors.New("sampler: invalid configuration")

// ErrFinished is returned when Sample is called on a finished Sampler.
var ErrFinished = errors.New("sampler: already sampled")

// DefaultAutotuneMaxIter bounds the autotune retries when unset.
const DefaultAutotuneMaxIter = 10

// Options configure a Sampler.
type Options struct {
	NDim int
	Keys rng.KeySet

	LocalFactory  local.Factory
	Gradient      local.Gradient // optional, required by gradient based samplers
	SamplerParams local.Params
	Likelihood    local.Likelihood

	// Flow must implement flow.Trainable when UseGlobal is set.
	Flow flow.Model
	// InitialVariables replace the variables returned by Flow.Init.
	InitialVariables *flow.Variables

	NLoopTraining   int
	NLoopProduction int
	NLocalSteps     int
	NGlobalSteps    int
	NChains         int

	NEpochs      int
	BatchSize    int
	LearningRate float64
	Momentum     float64
	MaxSamples   int
	KeepQuantile float64

	Autotune        local.Autotune // optional
	AutotuneMaxIter int            // DefaultAutotuneMaxIter when 0

	UseGlobal bool

	Logger  *slog.Logger     // discards when nil
	Metrics *metrics.Metrics // optional
}

func (o *Options) validate() error {
	switch {
	case o.NDim < 1:
		return errors.Wrapf(ErrConfiguration, "n_dim %d", o.NDim)
	case o.NChains < 1:
		return errors.Wrapf(ErrConfiguration, "n_chains %d", o.NChains)
	case len(o.Keys.Local) != o.NChains:
		return errors.Wrapf(ErrConfiguration, "%d local keys for %d chains", len(o.Keys.Local), o.NChains)
	case o.Likelihood == nil:
		return errors.Wrap(ErrConfiguration, "no likelihood")
	case o.LocalFactory == nil:
		return errors.Wrap(ErrConfiguration, "no local sampler factory")
	case o.Flow == nil:
		return errors.Wrap(ErrConfiguration, "no flow model")
	case o.Flow.Dim() != o.NDim:
		return errors.Wrapf(ErrConfiguration, "flow has %d dimensions, want %d", o.Flow.Dim(), o.NDim)
	case o.NLocalSteps < 1:
		return errors.Wrapf(ErrConfiguration, "n_local_steps %d", o.NLocalSteps)
	case o.NLoopTraining < 0 || o.NLoopProduction < 0:
		return errors.Wrapf(ErrConfiguration, "n_loop_training %d, n_loop_production %d", o.NLoopTraining, o.NLoopProduction)
	case !(o.KeepQuantile >= 0 && o.KeepQuantile < 1):
		return errors.Wrapf(ErrConfiguration, "keep_quantile %v not in [0, 1)", o.KeepQuantile)
	case o.AutotuneMaxIter < 0:
		return errors.Wrapf(ErrConfiguration, "autotune max_iter %d", o.AutotuneMaxIter)
	}
	if o.InitialVariables != nil && o.InitialVariables.Dim() != o.NDim {
		return errors.Wrapf(ErrConfiguration, "initial variables have %d dimensions, want %d", o.InitialVariables.Dim(), o.NDim)
	}
	if !o.UseGlobal {
		return nil
	}
	switch {
	case o.NGlobalSteps < 1:
		return errors.Wrapf(ErrConfiguration, "n_global_steps %d", o.NGlobalSteps)
	case o.NEpochs < 1:
		return errors.Wrapf(ErrConfiguration, "n_epochs %d", o.NEpochs)
	case o.BatchSize < 1:
		return errors.Wrapf(ErrConfiguration, "batch_size %d", o.BatchSize)
	case !(o.LearningRate > 0):
		return errors.Wrapf(ErrConfiguration, "learning_rate %v", o.LearningRate)
	case !(o.Momentum >= 0 && o.Momentum < 1):
		return errors.Wrapf(ErrConfiguration, "momentum %v not in [0, 1)", o.Momentum)
	case o.MaxSamples < o.NChains:
		return errors.Wrapf(ErrConfiguration, "max_samples %d below n_chains %d", o.MaxSamples, o.NChains)
	}
	if _, ok := o.Flow.(flow.Trainable); !ok {
		return errors.Wrap(ErrConfiguration, "global sampling needs a trainable flow")
	}
	return nil
}
