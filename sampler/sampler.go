package sampler

import "log/slog"
import "math"
import "time"

import "github.com/pkg/errors"

import "github.com/neurlang/flowmc/flow"
import "github.com/neurlang/flowmc/global"
import "github.com/neurlang/flowmc/local"
import "github.com/neurlang/flowmc/metrics"
import "github.com/neurlang/flowmc/rng"
import "github.com/neurlang/flowmc/summary"
import "github.com/neurlang/flowmc/trainer"

// Sampler is the flow assisted ensemble sampler. It is not safe for
// concurrent use; the kernels it calls are parallel internally.
type Sampler struct {
	opts Options

	local    local.Sampler
	params   local.Params
	autotune local.Autotune

	model   flow.Model
	trainer *trainer.Trainer
	global  *global.Sampler
	logLik  global.LogLikelihoodVec
	state   flow.State

	localKeys []rng.Key
	flowKey   rng.Key

	summary   *summary.Summary
	phase     State
	positions [][]float64

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New validates opts, builds the local sampler and initializes the flow from
// opts.Keys.FlowInit.
func New(opts Options) (*Sampler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.AutotuneMaxIter == 0 {
		opts.AutotuneMaxIter = DefaultAutotuneMaxIter
	}
	var logger = opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ls, err := opts.LocalFactory(opts.Likelihood, opts.Gradient)
	if err != nil {
		return nil, errors.Wrap(err, "sampler: local sampler")
	}
	params, vars, err := opts.Flow.Init(opts.Keys.FlowInit, opts.NDim)
	if err != nil {
		return nil, errors.Wrap(err, "sampler: flow init")
	}
	if opts.InitialVariables != nil {
		vars = opts.InitialVariables.Clone()
	}

	var s = &Sampler{
		opts:      opts,
		local:     ls,
		params:    opts.SamplerParams,
		autotune:  opts.Autotune,
		model:     opts.Flow,
		global:    global.New(opts.Flow),
		logLik:    global.Vectorize(opts.Likelihood, 0),
		state:     flow.State{Params: params, Variables: vars},
		localKeys: append([]rng.Key(nil), opts.Keys.Local...),
		flowKey:   opts.Keys.Flow,
		logger:    logger,
		metrics:   opts.Metrics,
	}
	if t, ok := opts.Flow.(flow.Trainable); ok {
		s.trainer = trainer.New(t, opts.LearningRate, opts.Momentum)
	}

	var roundSteps = opts.NLocalSteps
	if opts.UseGlobal {
		roundSteps += opts.NGlobalSteps
	}
	var trainingSteps int
	if opts.UseGlobal {
		trainingSteps = opts.NLoopTraining * roundSteps
	}
	s.summary = summary.New(opts.NChains, opts.NDim, opts.NEpochs, trainingSteps, opts.NLoopProduction*roundSteps)
	return s, nil
}

// Sample runs local tuning, the training rounds when global sampling is
// enabled, then the production rounds, starting from initial, one position
// per chain. A Sampler samples once.
func (s *Sampler) Sample(initial [][]float64) error {
	if s.phase != LocalTuning {
		return ErrFinished
	}
	if len(initial) != s.opts.NChains {
		return errors.Wrapf(ErrConfiguration, "%d initial positions for %d chains", len(initial), s.opts.NChains)
	}
	for c, x := range initial {
		if len(x) != s.opts.NDim {
			return errors.Wrapf(ErrConfiguration, "initial position %d has %d dimensions, want %d", c, len(x), s.opts.NDim)
		}
	}

	if err := s.tuneLocal(initial); err != nil {
		return err
	}
	var positions = make([][]float64, len(initial))
	for c := range initial {
		positions[c] = append([]float64(nil), initial[c]...)
	}

	var err error
	if s.opts.UseGlobal {
		s.phase = GlobalTuning
		s.logger.Info("training normalizing flow", "rounds", s.opts.NLoopTraining)
		for i := 0; i < s.opts.NLoopTraining; i++ {
			if positions, err = s.samplingLoop(positions, true); err != nil {
				return err
			}
		}
	}

	s.phase = Production
	s.logger.Info("production run", "rounds", s.opts.NLoopProduction)
	for i := 0; i < s.opts.NLoopProduction; i++ {
		if positions, err = s.samplingLoop(positions, false); err != nil {
			return err
		}
	}
	s.positions = positions
	s.phase = Done
	return nil
}

func (s *Sampler) tuneLocal(initial [][]float64) error {
	if s.autotune == nil {
		s.logger.Info("no autotune found, use input sampler params", "step_size", s.params.StepSize)
		return nil
	}
	s.logger.Info("autotune found, start tuning", "max_iter", s.opts.AutotuneMaxIter)
	params, ls, keys, err := s.autotune.Tune(s.local, s.localKeys, s.opts.NLocalSteps, initial, s.params, s.opts.AutotuneMaxIter)
	if err != nil {
		return errors.Wrap(err, "sampler: local tuning")
	}
	if len(keys) != len(s.localKeys) {
		return errors.Wrapf(ErrConfiguration, "autotune returned %d keys for %d chains", len(keys), len(s.localKeys))
	}
	s.params, s.local, s.localKeys = params, ls, keys
	s.logger.Info("autotune done", "step_size", s.params.StepSize)
	return nil
}

// samplingLoop runs one round from positions and returns the last position
// of every chain.
func (s *Sampler) samplingLoop(positions [][]float64, training bool) ([][]float64, error) {
	var start = time.Now()
	res, err := s.local.Propose(s.localKeys, s.opts.NLocalSteps, positions, s.params)
	if err != nil {
		return nil, errors.Wrap(err, "sampler: local step")
	}
	s.localKeys = res.Keys

	var round = summary.Round{Positions: res.Positions, LogProb: res.LogProb, LocalAccs: res.Acceptance}
	var last = res.Last()
	var globalAcc = math.NaN()

	if s.opts.UseGlobal {
		if training {
			s.train(res)
		}
		var g global.Result
		s.flowKey, g = s.global.Propose(s.flowKey, s.opts.NGlobalSteps, s.state.Params, s.state.Variables, s.logLik, last)
		for c := range round.Positions {
			round.Positions[c] = append(round.Positions[c], g.Chain[c]...)
			round.LogProb[c] = append(round.LogProb[c], g.LogProbTarget[c]...)
			last[c] = g.Chain[c][len(g.Chain[c])-1]
		}
		round.GlobalAccs = g.Acceptance
		globalAcc = mean(g.Acceptance)
	}

	var phase = s.phase.String()
	s.summary.Phase(training).Append(round)
	s.metrics.ObserveRound(phase, time.Since(start), res.AcceptanceRate(), globalAcc)
	s.logger.Debug("round done", "phase", phase,
		"local_acceptance", res.AcceptanceRate(), "global_acceptance", globalAcc)
	return last, nil
}

// train refits the flow variables and parameters to the local history of
// the current round. It is the only place the flow state changes.
func (s *Sampler) train(res local.Result) {
	var retained = selectChains(chainMaxima(res.LogProb), s.opts.KeepQuantile)
	var pool = trainingPool(res.Positions, retained, s.opts.MaxSamples, s.opts.NChains)

	s.state.Variables = flow.Fit(pool)
	var standardized = s.state.Variables.StandardizeAll(pool)

	var losses []float64
	s.flowKey, s.state, losses = s.trainer.Train(s.flowKey, s.state, standardized, s.opts.NEpochs, s.opts.BatchSize)
	s.summary.Training.AppendLoss(losses)
	s.metrics.ObserveTraining(len(pool), losses)

	for epoch, l := range losses {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			s.logger.Warn("non-finite flow training loss", "epoch", epoch, "loss", l)
			break
		}
	}
	s.logger.Debug("flow trained", "retained_chains", len(retained), "pool", len(pool),
		"final_loss", losses[len(losses)-1])
}

func mean(rows [][]float64) float64 {
	var sum float64
	var n int
	for _, row := range rows {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Phase reports the current stage.
func (s *Sampler) Phase() State {
	return s.phase
}

// SamplerState returns the training or the production record.
func (s *Sampler) SamplerState(training bool) *summary.Phase {
	return s.summary.Phase(training)
}

// Summary returns both records.
func (s *Sampler) Summary() *summary.Summary {
	return s.summary
}

// SampleFlow draws n points from the current flow using the flow key stream.
func (s *Sampler) SampleFlow(n int) [][]float64 {
	var use rng.Key
	s.flowKey, use = s.flowKey.Split()
	return s.model.Sample(use, s.state.Params, s.state.Variables, n)
}

// Reset empties both records. Flow and local sampler state are kept.
func (s *Sampler) Reset() {
	s.summary.Reset()
}

// FlowState returns a copy of the current flow parameters and variables.
func (s *Sampler) FlowState() flow.State {
	return s.state.Clone()
}

// SetFlowState replaces the flow state, for example with a checkpoint.
func (s *Sampler) SetFlowState(state flow.State) error {
	if state.Variables.Dim() != s.opts.NDim || len(state.Params) != len(s.state.Params) {
		return errors.Wrapf(ErrConfiguration, "flow state with %d dimensions and %d parameters",
			state.Variables.Dim(), len(state.Params))
	}
	s.state = state.Clone()
	return nil
}

// SamplerParams returns the local sampler parameters, tuned after Sample.
func (s *Sampler) SamplerParams() local.Params {
	return s.params
}

// LastPositions returns the final position of every chain after Sample.
func (s *Sampler) LastPositions() [][]float64 {
	return s.positions
}
