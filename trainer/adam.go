package trainer

import "math"

// Adam is the Adam optimizer. Its moment estimates persist across Step
// calls, and across training rounds when the same Adam is reused.
type Adam struct {
	LearningRate float64
	Beta1        float64 // momentum
	Beta2        float64
	Epsilon      float64

	m, v []float64
	t    int
}

// NewAdam returns Adam with the given learning rate and momentum as beta1.
func NewAdam(learningRate, momentum float64) *Adam {
	return &Adam{LearningRate: learningRate, Beta1: momentum, Beta2: 0.999, Epsilon: 1e-8}
}

// Step updates params in place using grad.
func (a *Adam) Step(params, grad []float64) {
	if len(a.m) != len(params) {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
		a.t = 0
	}
	a.t++
	var c1 = 1 - math.Pow(a.Beta1, float64(a.t))
	var c2 = 1 - math.Pow(a.Beta2, float64(a.t))
	for i, g := range grad {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		mHat := a.m[i] / c1
		vHat := a.v[i] / c2
		params[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
}

// Steps is the number of updates taken so far.
func (a *Adam) Steps() int {
	return a.t
}
