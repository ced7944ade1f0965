package local

import "log/slog"

import "github.com/neurlang/flowmc/rng"

// Autotune adjusts sampler parameters before sampling. It consumes keys and
// returns the carried ones together with the tuned parameters and sampler.
type Autotune interface {
	Tune(s Sampler, keys []rng.Key, nSteps int, initial [][]float64, p Params, maxIter int) (Params, Sampler, []rng.Key, error)
}

// AutotuneFunc adapts a function to the Autotune interface.
type AutotuneFunc func(s Sampler, keys []rng.Key, nSteps int, initial [][]float64, p Params, maxIter int) (Params, Sampler, []rng.Key, error)

// Tune calls f.
func (f AutotuneFunc) Tune(s Sampler, keys []rng.Key, nSteps int, initial [][]float64, p Params, maxIter int) (Params, Sampler, []rng.Key, error) {
	return f(s, keys, nSteps, initial, p, maxIter)
}

// StepSizeTuner scales the step size until the mean acceptance of a batch of
// nSteps steps from the initial positions lies in (Low, High). Every attempt
// starts again from the initial positions.
type StepSizeTuner struct {
	Low, High    float64 // acceptance window
	Shrink, Grow float64 // step size factors below and above the window
	Logger       *slog.Logger
}

// NewStepSizeTuner returns a tuner with the (0.3, 0.5) window.
func NewStepSizeTuner() *StepSizeTuner {
	return &StepSizeTuner{Low: 0.3, High: 0.5, Shrink: 0.8, Grow: 1.25}
}

// Tune runs the sampler at most maxIter+1 times.
func (t *StepSizeTuner) Tune(s Sampler, keys []rng.Key, nSteps int, initial [][]float64, p Params, maxIter int) (Params, Sampler, []rng.Key, error) {
	var logger = t.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for iter := 0; ; iter++ {
		res, err := s.Propose(keys, nSteps, initial, p)
		if err != nil {
			return p, s, keys, err
		}
		keys = res.Keys
		var rate = res.AcceptanceRate()
		logger.Debug("autotune", "iter", iter, "step_size", p.StepSize, "acceptance", rate)
		if rate > t.Low && rate < t.High {
			return p, s, keys, nil
		}
		if iter >= maxIter {
			logger.Info("maximal number of autotune iterations reached, keeping current parameters",
				"step_size", p.StepSize, "acceptance", rate)
			return p, s, keys, nil
		}
		if rate <= t.Low {
			p.StepSize *= t.Shrink
		} else {
			p.StepSize *= t.Grow
		}
	}
}
