package sampler

import (
	"bytes"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/flowmc/flow"
	"github.com/neurlang/flowmc/flow/affine"
	"github.com/neurlang/flowmc/local"
	"github.com/neurlang/flowmc/metrics"
	"github.com/neurlang/flowmc/rng"
)

func gaussian(x []float64) float64 {
	var s float64
	for _, v := range x {
		s -= 0.5 * v * v
	}
	return s
}

func options(seed uint64, nChains, nDim int) Options {
	return Options{
		NDim:            nDim,
		Keys:            rng.Initialize(seed, nChains),
		LocalFactory:    local.RandomWalkFactory,
		SamplerParams:   local.Params{StepSize: 1},
		Likelihood:      gaussian,
		Flow:            affine.New(nDim),
		NLoopTraining:   2,
		NLoopProduction: 3,
		NLocalSteps:     4,
		NGlobalSteps:    3,
		NChains:         nChains,
		NEpochs:         5,
		BatchSize:       4,
		LearningRate:    0.01,
		Momentum:        0.9,
		MaxSamples:      10000,
		UseGlobal:       true,
	}
}

// initial draws standard normal starting points from the init key.
func initial(keys rng.KeySet, nChains, nDim int) [][]float64 {
	var r = keys.Init.Rand()
	var out = make([][]float64, nChains)
	for c := range out {
		out[c] = make([]float64, nDim)
		for d := range out[c] {
			out[c][d] = r.NormFloat64()
		}
	}
	return out
}

func run(t *testing.T, opts Options) *Sampler {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.Sample(initial(opts.Keys, opts.NChains, opts.NDim)))
	return s
}

func TestNewRejectsConfiguration(t *testing.T) {
	for name, mutate := range map[string]func(o *Options){
		"zero dim":        func(o *Options) { o.NDim = 0 },
		"flow dim":        func(o *Options) { o.Flow = affine.New(3) },
		"key count":       func(o *Options) { o.NChains = 5 },
		"no likelihood":   func(o *Options) { o.Likelihood = nil },
		"no factory":      func(o *Options) { o.LocalFactory = nil },
		"no local steps":  func(o *Options) { o.NLocalSteps = 0 },
		"no global steps": func(o *Options) { o.NGlobalSteps = 0 },
		"quantile one":    func(o *Options) { o.KeepQuantile = 1 },
		"quantile nan":    func(o *Options) { o.KeepQuantile = math.NaN() },
		"negative loops":  func(o *Options) { o.NLoopProduction = -1 },
		"tiny pool":       func(o *Options) { o.MaxSamples = 3 },
		"batch size":      func(o *Options) { o.BatchSize = 0 },
		"variables dim": func(o *Options) {
			v := flow.NewVariables(1)
			o.InitialVariables = &v
		},
	} {
		t.Run(name, func(t *testing.T) {
			opts := options(1, 4, 2)
			mutate(&opts)
			_, err := New(opts)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestNewWrapsFactoryError(t *testing.T) {
	opts := options(1, 2, 2)
	opts.LocalFactory = local.MALAFactory
	_, err := New(opts)
	assert.ErrorIs(t, err, local.ErrGradientRequired)
}

func TestSampleRejectsInitialShape(t *testing.T) {
	opts := options(1, 3, 2)
	s, err := New(opts)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Sample(initial(opts.Keys, 2, 2)), ErrConfiguration)
	assert.ErrorIs(t, s.Sample([][]float64{{0, 0}, {0}, {0, 0}}), ErrConfiguration)
	assert.Equal(t, LocalTuning, s.Phase())
}

func TestShapes(t *testing.T) {
	opts := options(3, 3, 2)
	s := run(t, opts)
	assert.Equal(t, Done, s.Phase())

	tr := s.SamplerState(true)
	assert.Equal(t, [3]int{3, 2 * (4 + 3), 2}, tr.ChainsShape())
	assert.Equal(t, 2*4, tr.LocalSteps())
	assert.Equal(t, 2*3, tr.GlobalSteps())
	assert.Equal(t, [2]int{2, 5}, tr.LossShape())

	pr := s.SamplerState(false)
	assert.Equal(t, [3]int{3, 3 * (4 + 3), 2}, pr.ChainsShape())
	assert.Equal(t, 3*3, pr.GlobalSteps())
	assert.False(t, pr.HasLoss())
	assert.Equal(t, [2]int{0, 5}, pr.LossShape())

	assert.Len(t, s.LastPositions(), 3)
	assert.ErrorIs(t, s.Sample(initial(rng.Initialize(3, 3), 3, 2)), ErrFinished)
}

func TestAcceptanceBounds(t *testing.T) {
	s := run(t, options(4, 4, 2))
	for _, training := range []bool{true, false} {
		p := s.SamplerState(training)
		for _, accs := range [][][]float64{p.LocalAccs(), p.GlobalAccs()} {
			for _, chain := range accs {
				for _, a := range chain {
					assert.True(t, a == 0 || a == 1, "acceptance %v", a)
				}
			}
		}
		assert.GreaterOrEqual(t, p.LocalAcceptance(), 0.0)
		assert.LessOrEqual(t, p.GlobalAcceptance(), 1.0)
	}
}

func TestDeterminism(t *testing.T) {
	a := run(t, options(7, 4, 2))
	b := run(t, options(7, 4, 2))
	assert.Equal(t, a.SamplerState(true).Fingerprint(), b.SamplerState(true).Fingerprint())
	assert.Equal(t, a.SamplerState(false).Fingerprint(), b.SamplerState(false).Fingerprint())
	assert.Equal(t, a.SamplerState(true).LossVals(), b.SamplerState(true).LossVals())
	assert.Equal(t, a.FlowState().Params, b.FlowState().Params)

	c := run(t, options(8, 4, 2))
	assert.NotEqual(t, a.SamplerState(false).Fingerprint(), c.SamplerState(false).Fingerprint())
}

func TestWithoutGlobal(t *testing.T) {
	opts := options(5, 3, 2)
	opts.UseGlobal = false
	opts.Flow = affine.New(2)
	s, err := New(opts)
	require.NoError(t, err)
	before := s.FlowState()
	require.NoError(t, s.Sample(initial(opts.Keys, 3, 2)))

	assert.Equal(t, 0, s.SamplerState(true).Steps())
	assert.Equal(t, [2]int{0, 5}, s.SamplerState(true).LossShape())
	pr := s.SamplerState(false)
	assert.Equal(t, [3]int{3, 3 * 4, 2}, pr.ChainsShape())
	assert.Equal(t, 0, pr.GlobalSteps())
	assert.Equal(t, before.Params, s.FlowState().Params)
	assert.True(t, before.Variables.Equal(s.FlowState().Variables))
}

func TestReset(t *testing.T) {
	s := run(t, options(6, 2, 2))
	state := s.FlowState()
	s.Reset()
	once := [2]any{s.SamplerState(true).ChainsShape(), s.SamplerState(true).LossShape()}
	s.Reset()
	twice := [2]any{s.SamplerState(true).ChainsShape(), s.SamplerState(true).LossShape()}
	assert.Equal(t, once, twice)
	assert.Equal(t, [3]int{2, 0, 2}, s.SamplerState(false).ChainsShape())
	assert.Equal(t, [2]int{0, 5}, s.SamplerState(true).LossShape())
	assert.Equal(t, state.Params, s.FlowState().Params)
}

func TestSampleFlow(t *testing.T) {
	s := run(t, options(2, 2, 3))
	points := s.SampleFlow(7)
	require.Len(t, points, 7)
	for _, p := range points {
		assert.Len(t, p, 3)
	}
	assert.NotEqual(t, points, s.SampleFlow(7))
}

// recordingFlow remembers the variables of every density evaluation.
type recordingFlow struct {
	*affine.Flow
	mu   sync.Mutex
	seen []flow.Variables
}

func (r *recordingFlow) LogDensity(params flow.Params, vars flow.Variables, x []float64) float64 {
	r.mu.Lock()
	r.seen = append(r.seen, vars)
	r.mu.Unlock()
	return r.Flow.LogDensity(params, vars, x)
}

func TestNormalizationConsistency(t *testing.T) {
	rec := &recordingFlow{Flow: affine.New(2)}
	opts := options(9, 4, 2)
	opts.Flow = rec
	opts.NLoopTraining = 1
	opts.NLoopProduction = 0
	s := run(t, opts)

	// the pool is every local step of every chain, chain by chain
	tr := s.SamplerState(true)
	var pool [][]float64
	for c := 0; c < 4; c++ {
		for step := 0; step < opts.NLocalSteps; step++ {
			pool = append(pool, tr.At(c, step))
		}
	}
	fitted := flow.Fit(pool)
	assert.True(t, fitted.Equal(s.FlowState().Variables))

	require.NotEmpty(t, rec.seen)
	for _, v := range rec.seen {
		assert.True(t, fitted.Equal(v))
	}
}

func TestAutotuneAndLogging(t *testing.T) {
	var buf bytes.Buffer
	opts := options(10, 4, 2)
	opts.SamplerParams = local.Params{StepSize: 40}
	opts.Autotune = local.NewStepSizeTuner()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := run(t, opts)

	assert.Less(t, s.SamplerParams().StepSize, 40.0)
	out := buf.String()
	assert.Contains(t, out, "autotune found, start tuning")
	assert.Contains(t, out, "training normalizing flow")
	assert.Contains(t, out, "production run")
	assert.NotContains(t, out, "no autotune found")
}

func TestMetrics(t *testing.T) {
	opts := options(11, 2, 2)
	opts.Metrics = metrics.New(prometheus.NewRegistry())
	run(t, opts)
	assert.Equal(t, 2.0, testutil.ToFloat64(opts.Metrics.RoundsTotal.WithLabelValues("global_tuning")))
	assert.Equal(t, 3.0, testutil.ToFloat64(opts.Metrics.RoundsTotal.WithLabelValues("production")))
	assert.Equal(t, float64(2*4), testutil.ToFloat64(opts.Metrics.PoolSize))
}

func TestSetFlowState(t *testing.T) {
	s, err := New(options(12, 2, 2))
	require.NoError(t, err)
	state := s.FlowState()
	state.Params[0] = 3
	require.NoError(t, s.SetFlowState(state))
	assert.Equal(t, 3.0, s.FlowState().Params[0])

	other, _, err := affine.New(3).Init(rng.New(1), 3)
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetFlowState(flow.State{Params: other, Variables: flow.NewVariables(3)}), ErrConfiguration)
}

func TestGaussianEndToEnd(t *testing.T) {
	opts := options(2024, 5, 2)
	opts.NLocalSteps = 5
	opts.NGlobalSteps = 5
	opts.NLoopTraining = 1
	opts.NLoopProduction = 1
	opts.BatchSize = 10
	s := run(t, opts)

	pr := s.SamplerState(false)
	assert.Equal(t, [3]int{5, 10, 2}, pr.ChainsShape())
	// one effective draw per chain is the most conservative standard error
	se := 1 / math.Sqrt(float64(opts.NChains))
	for d, m := range pr.Mean() {
		assert.InDelta(t, 0, m, 3*se, "dimension %d", d)
	}
}

func TestTrainingPoolIsFilteredAndCapped(t *testing.T) {
	const nChains, nDim = 4, 2
	opts := options(14, nChains, nDim)
	opts.NLoopTraining = 1
	opts.NLoopProduction = 0
	opts.KeepQuantile = 0.5
	opts.MaxSamples = 4
	opts.Metrics = metrics.New(prometheus.NewRegistry())
	s := run(t, opts)

	tr := s.SamplerState(true)
	logProb := tr.LogProb()
	maxima := make([][]float64, nChains)
	for c := range maxima {
		maxima[c] = logProb[c][:opts.NLocalSteps]
	}
	retained := selectChains(chainMaxima(maxima), opts.KeepQuantile)
	require.Less(t, len(retained), nChains)

	// MaxSamples/NChains == 1, so only the last local step of each retained chain
	var pool [][]float64
	for _, c := range retained {
		pool = append(pool, tr.At(c, opts.NLocalSteps-1))
	}
	assert.Equal(t, float64(len(retained)), testutil.ToFloat64(opts.Metrics.PoolSize))
	assert.True(t, flow.Fit(pool).Equal(s.FlowState().Variables))
}

func TestZeroDensityChainIsNotTrainedOn(t *testing.T) {
	const nChains, nDim = 4, 2
	opts := options(15, nChains, nDim)
	opts.NLoopTraining = 1
	opts.NLoopProduction = 0
	opts.KeepQuantile = 0.25
	opts.SamplerParams = local.Params{StepSize: 0.1}
	opts.Metrics = metrics.New(prometheus.NewRegistry())
	opts.Likelihood = func(x []float64) float64 {
		if x[0] < -100 {
			return math.Inf(-1)
		}
		return gaussian(x)
	}
	s, err := New(opts)
	require.NoError(t, err)
	start := initial(opts.Keys, nChains, nDim)
	start[0] = []float64{-1000, 0}
	require.NoError(t, s.Sample(start))

	tr := s.SamplerState(true)
	for step := 0; step < opts.NLocalSteps; step++ {
		assert.Equal(t, math.Inf(-1), tr.LogProb()[0][step])
	}
	assert.Equal(t, float64((nChains-1)*opts.NLocalSteps), testutil.ToFloat64(opts.Metrics.PoolSize))
	assert.Greater(t, s.FlowState().Variables.Mean[0], -100.0)
}
