package local

import "math/rand/v2"

import "gonum.org/v1/gonum/floats"

import "github.com/neurlang/flowmc/rng"

// HMC is the Hamiltonian Monte Carlo sampler with a unit mass matrix and a
// leapfrog integrator of Params.LeapfrogSteps steps of size Params.StepSize.
type HMC struct {
	kernel
}

// NewHMC binds an HMC sampler to l and its gradient g.
func NewHMC(l Likelihood, g Gradient) (*HMC, error) {
	if g == nil {
		return nil, ErrGradientRequired
	}
	return &HMC{kernel{Likelihood: l, Gradient: g}}, nil
}

// HMCFactory is the Factory of HMC.
func HMCFactory(l Likelihood, g Gradient) (Sampler, error) {
	return NewHMC(l, g)
}

// Propose advances every chain by nSteps Hamiltonian trajectories.
func (s *HMC) Propose(keys []rng.Key, nSteps int, positions [][]float64, params Params) (Result, error) {
	return s.run(s, keys, nSteps, positions, params)
}

func (s *HMC) newChain(x []float64, _ float64) any {
	var st = &malaChain{grad: make([]float64, len(x))}
	s.Gradient(x, st.grad)
	return st
}

func (s *HMC) step(r *rand.Rand, st any, x []float64, lp float64, p Params) ([]float64, float64, bool) {
	var ch = st.(*malaChain)
	var d = len(x)
	var eps = p.StepSize
	var steps = p.LeapfrogSteps
	if steps <= 0 {
		steps = 1
	}

	var mom = make([]float64, d)
	for i := range mom {
		mom[i] = r.NormFloat64()
	}
	var h0 = -lp + 0.5*floats.Dot(mom, mom)

	var q = append([]float64(nil), x...)
	var grad = append([]float64(nil), ch.grad...)
	floats.AddScaled(mom, 0.5*eps, grad)
	for l := 0; l < steps; l++ {
		floats.AddScaled(q, eps, mom)
		s.Gradient(q, grad)
		if l+1 < steps {
			floats.AddScaled(mom, eps, grad)
		}
	}
	floats.AddScaled(mom, 0.5*eps, grad)

	var lpc = s.Likelihood(q)
	var h1 = -lpc + 0.5*floats.Dot(mom, mom)
	if accept(r, h0-h1, lpc) {
		ch.grad = grad
		return q, lpc, true
	}
	return x, lp, false
}
