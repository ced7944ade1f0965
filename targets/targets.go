// Package targets names the built in example densities.
package targets

import "github.com/pkg/errors"

import "github.com/neurlang/flowmc/local"
import "github.com/neurlang/flowmc/targets/dualmoon"
import "github.com/neurlang/flowmc/targets/gaussian"
import "github.com/neurlang/flowmc/targets/rosenbrock"

// Density is a log density with its gradient.
type Density interface {
	Dim() int
	LogProb(x []float64) float64
	Grad(x, grad []float64)
}

// Target binds a density to the local sampler function types.
type Target struct {
	Name       string
	NDim       int
	Likelihood local.Likelihood
	Gradient   local.Gradient
}

// Names lists the known targets.
var Names = []string{"gaussian", "rosenbrock", "dualmoon"}

// From wraps a density.
func From(name string, d Density) Target {
	return Target{Name: name, NDim: d.Dim(), Likelihood: d.LogProb, Gradient: d.Grad}
}

// ByName builds a target. The dual moon is two dimensional only.
func ByName(name string, nDim int) (Target, error) {
	if nDim < 1 {
		return Target{}, errors.Errorf("targets: %d dimensions", nDim)
	}
	switch name {
	case "gaussian":
		return From(name, gaussian.Standard(nDim)), nil
	case "rosenbrock":
		if nDim < 2 {
			return Target{}, errors.New("targets: rosenbrock needs at least 2 dimensions")
		}
		return From(name, rosenbrock.New(nDim)), nil
	case "dualmoon":
		if nDim != 2 {
			return Target{}, errors.Errorf("targets: dualmoon is 2 dimensional, got %d", nDim)
		}
		return From(name, dualmoon.New()), nil
	}
	return Target{}, errors.Errorf("targets: unknown target %q", name)
}
