package local

import "math"
import "math/rand/v2"

import "github.com/neurlang/flowmc/rng"

// MALA is the Metropolis adjusted Langevin sampler. It proposes
// x' = x + (eps^2 / 2) grad(x) + eps xi and corrects for the asymmetric proposal.
type MALA struct {
	kernel
}

// NewMALA binds a MALA sampler to l and its gradient g.
func NewMALA(l Likelihood, g Gradient) (*MALA, error) {
	if g == nil {
		return nil, ErrGradientRequired
	}
	return &MALA{kernel{Likelihood: l, Gradient: g}}, nil
}

// MALAFactory is the Factory of MALA.
func MALAFactory(l Likelihood, g Gradient) (Sampler, error) {
	return NewMALA(l, g)
}

// Propose advances every chain by nSteps Langevin steps.
func (s *MALA) Propose(keys []rng.Key, nSteps int, positions [][]float64, params Params) (Result, error) {
	return s.run(s, keys, nSteps, positions, params)
}

type malaChain struct {
	grad []float64
}

func (s *MALA) newChain(x []float64, _ float64) any {
	var st = &malaChain{grad: make([]float64, len(x))}
	s.Gradient(x, st.grad)
	return st
}

// drift writes x + (eps^2 / 2) grad into dst.
func drift(dst, x, grad []float64, eps float64) {
	for i := range x {
		dst[i] = x[i] + 0.5*eps*eps*grad[i]
	}
}

// logQ is the log proposal density of to given the drifted mean, up to a constant.
func logQ(to, mean []float64, eps float64) (q float64) {
	for i := range to {
		d := to[i] - mean[i]
		q -= d * d
	}
	return q / (2 * eps * eps)
}

func (s *MALA) step(r *rand.Rand, st any, x []float64, lp float64, p Params) ([]float64, float64, bool) {
	var ch = st.(*malaChain)
	var eps = p.StepSize
	var d = len(x)

	var mean = make([]float64, d)
	drift(mean, x, ch.grad, eps)
	var cand = make([]float64, d)
	for i := range cand {
		cand[i] = mean[i] + eps*r.NormFloat64()
	}
	var lpc = s.Likelihood(cand)
	if !finite(lpc) {
		accept(r, math.NaN(), lpc)
		return x, lp, false
	}
	var gradc = make([]float64, d)
	s.Gradient(cand, gradc)
	var back = make([]float64, d)
	drift(back, cand, gradc, eps)

	var logRatio = lpc - lp + logQ(x, back, eps) - logQ(cand, mean, eps)
	if accept(r, logRatio, lpc) {
		ch.grad = gradc
		return cand, lpc, true
	}
	return x, lp, false
}
