package local

import "math/rand/v2"

import "github.com/neurlang/flowmc/rng"

// RandomWalk is the Gaussian random walk Metropolis sampler.
type RandomWalk struct {
	kernel
}

// NewRandomWalk binds a random walk sampler to l.
func NewRandomWalk(l Likelihood) *RandomWalk {
	return &RandomWalk{kernel{Likelihood: l}}
}

// RandomWalkFactory is the Factory of RandomWalk; the gradient is ignored.
func RandomWalkFactory(l Likelihood, _ Gradient) (Sampler, error) {
	return NewRandomWalk(l), nil
}

// Propose advances every chain by nSteps random walk steps.
func (s *RandomWalk) Propose(keys []rng.Key, nSteps int, positions [][]float64, params Params) (Result, error) {
	return s.run(s, keys, nSteps, positions, params)
}

func (s *RandomWalk) newChain([]float64, float64) any {
	return nil
}

func (s *RandomWalk) step(r *rand.Rand, _ any, x []float64, lp float64, p Params) ([]float64, float64, bool) {
	var cand = make([]float64, len(x))
	for i := range x {
		cand[i] = x[i] + p.StepSize*r.NormFloat64()
	}
	var lpc = s.Likelihood(cand)
	if accept(r, lpc-lp, lpc) {
		return cand, lpc, true
	}
	return x, lp, false
}
