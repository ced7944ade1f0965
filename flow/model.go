package flow

import "github.com/neurlang/flowmc/rng"

// Params is the flat trainable parameter vector of a flow.
type Params []float64

// Clone returns a copy of p.
func (p Params) Clone() Params {
	return append(Params(nil), p...)
}

// Model is a trainable, invertible density model in target coordinates.
type Model interface {

	// Dim is the dimensionality of the target space.
	Dim() int

	// Init creates initial parameters and variables for nDim dimensions.
	Init(key rng.Key, nDim int) (Params, Variables, error)

	// Sample draws n points in target coordinates.
	Sample(key rng.Key, params Params, vars Variables, n int) [][]float64

	// LogDensity evaluates the flow log density at x in target coordinates.
	LogDensity(params Params, vars Variables, x []float64) float64
}

// Trainable is a Model whose negative log likelihood gradient is known.
type Trainable interface {
	Model

	// NLLGrad returns the summed negative log likelihood of the standardized
	// points in batch and adds its gradient with respect to params into grad.
	NLLGrad(params Params, batch [][]float64, grad []float64) float64
}

// State is the parameter and variable pair which is used together.
type State struct {
	Params    Params
	Variables Variables
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	return State{Params: s.Params.Clone(), Variables: s.Variables.Clone()}
}
