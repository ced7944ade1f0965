package gaussian

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/gonum/stat/distmv"

// Gaussian is the log density of N(mean, cov).
type Gaussian struct {
	dist *distmv.Normal
}

// New creates the target. The covariance must be positive definite.
func New(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	dist, ok := distmv.NewNormal(mean, cov, nil)
	if !ok {
		return nil, errors.New("gaussian: covariance is not positive definite")
	}
	return &Gaussian{dist: dist}, nil
}

// Standard is N(0, I) in nDim dimensions.
func Standard(nDim int) *Gaussian {
	var cov = mat.NewSymDense(nDim, nil)
	for i := 0; i < nDim; i++ {
		cov.SetSym(i, i, 1)
	}
	g, err := New(make([]float64, nDim), cov)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Gaussian) Dim() int {
	return g.dist.Dim()
}

func (g *Gaussian) LogProb(x []float64) float64 {
	return g.dist.LogProb(x)
}

func (g *Gaussian) Grad(x, grad []float64) {
	g.dist.ScoreInput(grad, x)
}

// Mean returns a copy of the mean.
func (g *Gaussian) Mean() []float64 {
	return g.dist.Mean(nil)
}
