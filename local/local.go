package local

import "math"
import "math/rand/v2"

import "github.com/pkg/errors"

import "github.com/neurlang/flowmc/parallel"
import "github.com/neurlang/flowmc/rng"

// ErrGradientRequired is returned when a gradient based sampler gets no gradient.
var ErrGradientRequired = errors.New("local: sampler requires a gradient")

// ErrShape is returned when keys and positions disagree.
var ErrShape = errors.New("local: shape mismatch")

// Likelihood is the log density of the target, finite or -Inf.
type Likelihood func(x []float64) float64

// Gradient writes the gradient of the log density at x into grad.
type Gradient func(x, grad []float64)

// Params configure a local sampler.
type Params struct {
	StepSize      float64 // proposal scale
	LeapfrogSteps int     // HMC trajectory length
}

// Result is the output of one Propose call.
type Result struct {
	Keys       []rng.Key     // carried keys, one per chain
	Positions  [][][]float64 // [chain][step][dim]
	LogProb    [][]float64   // [chain][step]
	Acceptance [][]float64   // [chain][step], 0 or 1
}

// Sampler advances every chain by nSteps local steps.
type Sampler interface {
	Propose(keys []rng.Key, nSteps int, positions [][]float64, params Params) (Result, error)
}

// Factory binds a sampler to a likelihood and an optional gradient.
type Factory func(l Likelihood, g Gradient) (Sampler, error)

// Last returns the final position of every chain in r.
func (r Result) Last() [][]float64 {
	var out = make([][]float64, len(r.Positions))
	for c, chain := range r.Positions {
		out[c] = chain[len(chain)-1]
	}
	return out
}

// AcceptanceRate is the mean acceptance over all chains and steps.
func (r Result) AcceptanceRate() float64 {
	var sum float64
	var n int
	for _, chain := range r.Acceptance {
		for _, a := range chain {
			sum += a
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// stepper advances one chain by one step from x with log density lp. It
// returns the new state and whether the move was accepted. Implementations
// may keep per chain state, such as a cached gradient, in st.
type stepper interface {
	newChain(x []float64, lp float64) (st any)
	step(r *rand.Rand, st any, x []float64, lp float64, p Params) ([]float64, float64, bool)
}

// kernel is the shared chain driver of all local samplers.
type kernel struct {
	Likelihood Likelihood
	Gradient   Gradient

	// Threads is the number of goroutines, parallel.DefaultLimit() when 0.
	Threads int
}

func (k kernel) run(s stepper, keys []rng.Key, nSteps int, positions [][]float64, params Params) (Result, error) {
	if len(keys) != len(positions) {
		return Result{}, errors.Wrapf(ErrShape, "%d keys for %d chains", len(keys), len(positions))
	}
	if nSteps <= 0 {
		return Result{}, errors.Errorf("local: need a positive step count, got %d", nSteps)
	}
	var n = len(positions)
	var res = Result{
		Keys:       make([]rng.Key, n),
		Positions:  make([][][]float64, n),
		LogProb:    make([][]float64, n),
		Acceptance: make([][]float64, n),
	}
	var threads = k.Threads
	if threads <= 0 {
		threads = parallel.DefaultLimit()
	}
	parallel.ForEach(n, threads, func(c int) {
		var carry, r = keys[c].Next()
		var x = append([]float64(nil), positions[c]...)
		var lp = k.Likelihood(x)
		var st = s.newChain(x, lp)
		var chain = make([][]float64, nSteps)
		var logProb = make([]float64, nSteps)
		var acc = make([]float64, nSteps)
		for i := 0; i < nSteps; i++ {
			var ok bool
			x, lp, ok = s.step(r, st, x, lp, params)
			chain[i] = x
			logProb[i] = lp
			if ok {
				acc[i] = 1
			}
		}
		res.Keys[c] = carry
		res.Positions[c] = chain
		res.LogProb[c] = logProb
		res.Acceptance[c] = acc
	})
	return res, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// accept is the Metropolis test in log space. A candidate with a non-finite
// log density, or a NaN ratio, is always rejected. The uniform is drawn in
// every case so that the stream does not depend on the outcome.
func accept(r *rand.Rand, logRatio, candidate float64) bool {
	var u = r.Float64()
	if !finite(candidate) || math.IsNaN(logRatio) {
		return false
	}
	return math.Log(u) < logRatio
}
