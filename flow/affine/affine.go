// Package affine implements a triangular affine normalizing flow.
//
// In standardized coordinates the flow maps a standard normal z to
// u = mu + L z with L lower triangular and a positive, exp parameterized
// diagonal. It is the full covariance Gaussian fit expressed as a flow, with
// closed form gradients for training.
package affine

import "math"

import "gonum.org/v1/gonum/blas"
import "gonum.org/v1/gonum/blas/blas64"
import "gonum.org/v1/gonum/floats"
import "github.com/pkg/errors"

import "github.com/neurlang/flowmc/flow"
import "github.com/neurlang/flowmc/rng"

var log2Pi = math.Log(2 * math.Pi)

// Flow is the triangular affine flow for NDim dimensions.
type Flow struct {
	NDim int

	// Jitter is the standard deviation of the initial off-diagonal entries.
	Jitter float64
}

// New creates a flow for nDim dimensions.
func New(nDim int) *Flow {
	return &Flow{NDim: nDim, Jitter: 0.01}
}

// NumParams is the length of the parameter vector for nDim dimensions:
// mu, the log diagonal, then the strict lower triangle row by row.
func NumParams(nDim int) int {
	return 2*nDim + nDim*(nDim-1)/2
}

func offIndex(d, i, j int) int {
	return 2*d + i*(i-1)/2 + j
}

// Dim is the dimensionality of the flow.
func (f *Flow) Dim() int {
	return f.NDim
}

// Init creates near identity parameters and unit variables.
func (f *Flow) Init(key rng.Key, nDim int) (flow.Params, flow.Variables, error) {
	if nDim != f.NDim {
		return nil, flow.Variables{}, errors.Errorf("affine: flow has %d dimensions, got %d", f.NDim, nDim)
	}
	var params = make(flow.Params, NumParams(nDim))
	var r = key.Rand()
	for i := 1; i < nDim; i++ {
		for j := 0; j < i; j++ {
			params[offIndex(nDim, i, j)] = f.Jitter * r.NormFloat64()
		}
	}
	return params, flow.NewVariables(nDim), nil
}

func (f *Flow) check(params flow.Params) {
	if len(params) != NumParams(f.NDim) {
		panic("affine: bad parameter count")
	}
}

// lower builds L from params.
func (f *Flow) lower(params flow.Params) blas64.Triangular {
	var d = f.NDim
	var data = make([]float64, d*d)
	for i := 0; i < d; i++ {
		data[i*d+i] = math.Exp(params[d+i])
		for j := 0; j < i; j++ {
			data[i*d+j] = params[offIndex(d, i, j)]
		}
	}
	return blas64.Triangular{Uplo: blas.Lower, Diag: blas.NonUnit, N: d, Data: data, Stride: d}
}

func (f *Flow) logDet(params flow.Params) float64 {
	return floats.Sum(params[f.NDim : 2*f.NDim])
}

// inverse writes z = L^-1 (u - mu) into z.
func (f *Flow) inverse(l blas64.Triangular, params flow.Params, u, z []float64) {
	for i := range z {
		z[i] = u[i] - params[i]
	}
	blas64.Trsv(blas.NoTrans, l, blas64.Vector{N: f.NDim, Data: z, Inc: 1})
}

// logProb is the standardized space log density given z.
func (f *Flow) logProb(z []float64, logDet float64) float64 {
	return -0.5*floats.Dot(z, z) - 0.5*float64(f.NDim)*log2Pi - logDet
}

// Sample draws n points from the flow in target coordinates.
func (f *Flow) Sample(key rng.Key, params flow.Params, vars flow.Variables, n int) [][]float64 {
	f.check(params)
	var l = f.lower(params)
	var r = key.Rand()
	var out = make([][]float64, n)
	for k := range out {
		var z = make([]float64, f.NDim)
		for i := range z {
			z[i] = r.NormFloat64()
		}
		blas64.Trmv(blas.NoTrans, l, blas64.Vector{N: f.NDim, Data: z, Inc: 1})
		floats.Add(z, params[:f.NDim])
		out[k] = vars.Destandardize(z, z)
	}
	return out
}

// LogDensity evaluates the flow log density at x in target coordinates.
func (f *Flow) LogDensity(params flow.Params, vars flow.Variables, x []float64) float64 {
	f.check(params)
	var l = f.lower(params)
	var z = vars.Standardize(x, nil)
	f.inverse(l, params, z, z)
	return f.logProb(z, f.logDet(params)) + vars.LogJacobian()
}

// NLLGrad returns the summed negative log likelihood of the standardized
// batch and adds its gradient into grad.
func (f *Flow) NLLGrad(params flow.Params, batch [][]float64, grad []float64) (nll float64) {
	f.check(params)
	var d = f.NDim
	var l = f.lower(params)
	var logDet = f.logDet(params)
	var z = make([]float64, d)
	var a = make([]float64, d)
	for _, u := range batch {
		f.inverse(l, params, u, z)
		nll -= f.logProb(z, logDet)

		// a = L^-T z
		copy(a, z)
		blas64.Trsv(blas.Trans, l, blas64.Vector{N: d, Data: a, Inc: 1})

		for i := 0; i < d; i++ {
			grad[i] -= a[i]
			grad[d+i] += 1 - a[i]*z[i]*l.Data[i*d+i]
			for j := 0; j < i; j++ {
				grad[offIndex(d, i, j)] -= a[i] * z[j]
			}
		}
	}
	return
}
