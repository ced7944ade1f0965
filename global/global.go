// Package global implements the flow based global proposal: an independence
// Metropolis-Hastings sampler whose candidates are drawn from a normalizing
// flow and accepted against the target likelihood.
package global

import "math"

import "github.com/neurlang/flowmc/flow"
import "github.com/neurlang/flowmc/parallel"
import "github.com/neurlang/flowmc/rng"

// LogLikelihoodVec evaluates the target log density of many points.
type LogLikelihoodVec func(points [][]float64) []float64

// Vectorize evaluates l over all points in parallel.
func Vectorize(l func(x []float64) float64, threads int) LogLikelihoodVec {
	if threads <= 0 {
		threads = parallel.DefaultLimit()
	}
	return func(points [][]float64) []float64 {
		var out = make([]float64, len(points))
		parallel.ForEach(len(points), threads, func(i int) {
			out[i] = l(points[i])
		})
		return out
	}
}

// Result is the output of one Propose call, indexed [chain][step].
type Result struct {
	Chain         [][][]float64
	LogProbTarget [][]float64
	LogProbFlow   [][]float64
	Acceptance    [][]float64
}

// Sampler draws global moves from a flow.
type Sampler struct {
	Model flow.Model

	// Threads is the number of goroutines, parallel.DefaultLimit() when 0.
	Threads int
}

// New creates a global sampler for model.
func New(model flow.Model) *Sampler {
	return &Sampler{Model: model}
}

func (s *Sampler) logDensity(params flow.Params, vars flow.Variables, points [][]float64) []float64 {
	var threads = s.Threads
	if threads <= 0 {
		threads = parallel.DefaultLimit()
	}
	var out = make([]float64, len(points))
	parallel.ForEach(len(points), threads, func(i int) {
		out[i] = s.Model.LogDensity(params, vars, points[i])
	})
	return out
}

// Propose runs nSteps independence Metropolis-Hastings steps for every chain
// starting at positions. All steps use the same params and vars. A candidate
// c replaces the current x when
//
//	log u < (target(c) - target(x)) - (flow(c) - flow(x))
//
// and a candidate with a non-finite target density is always rejected.
func (s *Sampler) Propose(key rng.Key, nSteps int, params flow.Params, vars flow.Variables,
	logLik LogLikelihoodVec, positions [][]float64) (rng.Key, Result) {

	var n = len(positions)
	var res = Result{
		Chain:         make([][][]float64, n),
		LogProbTarget: make([][]float64, n),
		LogProbFlow:   make([][]float64, n),
		Acceptance:    make([][]float64, n),
	}
	for c := 0; c < n; c++ {
		res.Chain[c] = make([][]float64, nSteps)
		res.LogProbTarget[c] = make([]float64, nSteps)
		res.LogProbFlow[c] = make([]float64, nSteps)
		res.Acceptance[c] = make([]float64, nSteps)
	}

	var current = make([][]float64, n)
	copy(current, positions)
	var lpTarget = logLik(current)
	var lpFlow = s.logDensity(params, vars, current)

	for step := 0; step < nSteps; step++ {
		var keys = key.SplitN(3)
		key = keys[0]
		var cand = s.Model.Sample(keys[1], params, vars, n)
		var candTarget = logLik(cand)
		var candFlow = s.logDensity(params, vars, cand)
		var r = keys[2].Rand()
		for c := 0; c < n; c++ {
			var u = r.Float64()
			var ratio = (candTarget[c] - lpTarget[c]) - (candFlow[c] - lpFlow[c])
			if finite(candTarget[c]) && !math.IsNaN(ratio) && math.Log(u) < ratio {
				current[c] = cand[c]
				lpTarget[c] = candTarget[c]
				lpFlow[c] = candFlow[c]
				res.Acceptance[c][step] = 1
			}
			res.Chain[c][step] = current[c]
			res.LogProbTarget[c][step] = lpTarget[c]
			res.LogProbFlow[c][step] = lpFlow[c]
		}
	}
	return key, res
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
