package flow

import "math"

import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/gonum/stat"

// MinVariance bounds the fitted per-dimension variance from below, so that a
// collapsed dimension still standardizes to finite values.
const MinVariance = 1e-12

// Variables are the normalization statistics of a flow.
type Variables struct {
	Mean []float64
	Cov  *mat.SymDense
}

// NewVariables returns zero mean, identity covariance variables.
func NewVariables(nDim int) Variables {
	var cov = mat.NewSymDense(nDim, nil)
	for i := 0; i < nDim; i++ {
		cov.SetSym(i, i, 1)
	}
	return Variables{Mean: make([]float64, nDim), Cov: cov}
}

// Dim is the dimensionality of v.
func (v Variables) Dim() int {
	return len(v.Mean)
}

// Clone returns a deep copy of v.
func (v Variables) Clone() Variables {
	var cov *mat.SymDense
	if v.Cov != nil {
		cov = mat.NewSymDense(v.Cov.SymmetricDim(), nil)
		cov.CopySym(v.Cov)
	}
	return Variables{Mean: append([]float64(nil), v.Mean...), Cov: cov}
}

// Equal reports whether v and o hold identical statistics.
func (v Variables) Equal(o Variables) bool {
	if len(v.Mean) != len(o.Mean) {
		return false
	}
	for i := range v.Mean {
		if v.Mean[i] != o.Mean[i] {
			return false
		}
	}
	if v.Cov == nil || o.Cov == nil {
		return v.Cov == o.Cov
	}
	return mat.Equal(v.Cov, o.Cov)
}

// Scale returns sqrt(diag(Cov)).
func (v Variables) Scale() []float64 {
	var s = make([]float64, len(v.Mean))
	for i := range s {
		s[i] = math.Sqrt(v.Cov.At(i, i))
	}
	return s
}

// Standardize writes (x - Mean) / Scale into dst and returns it.
// A nil dst is allocated.
func (v Variables) Standardize(x, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	for i := range x {
		dst[i] = (x[i] - v.Mean[i]) / math.Sqrt(v.Cov.At(i, i))
	}
	return dst
}

// Destandardize writes Mean + u * Scale into dst and returns it.
func (v Variables) Destandardize(u, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(u))
	}
	for i := range u {
		dst[i] = v.Mean[i] + u[i]*math.Sqrt(v.Cov.At(i, i))
	}
	return dst
}

// LogJacobian is log |du/dx| of Standardize.
func (v Variables) LogJacobian() (lj float64) {
	for i := range v.Mean {
		lj -= 0.5 * math.Log(v.Cov.At(i, i))
	}
	return
}

// StandardizeAll standardizes every point of points into a new slice.
func (v Variables) StandardizeAll(points [][]float64) [][]float64 {
	var out = make([][]float64, len(points))
	for i, p := range points {
		out[i] = v.Standardize(p, nil)
	}
	return out
}

// Fit computes the mean and the unbiased covariance of points. The diagonal
// is bounded below by MinVariance. With fewer than two points the covariance
// is the identity.
func Fit(points [][]float64) Variables {
	if len(points) == 0 {
		panic("flow: fit on empty pool")
	}
	var n, d = len(points), len(points[0])
	var data = make([]float64, 0, n*d)
	for _, p := range points {
		data = append(data, p...)
	}
	var x = mat.NewDense(n, d, data)

	var vars = NewVariables(d)
	for j := 0; j < d; j++ {
		vars.Mean[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	if n < 2 {
		return vars
	}
	stat.CovarianceMatrix(vars.Cov, x, nil)
	for j := 0; j < d; j++ {
		if !(vars.Cov.At(j, j) >= MinVariance) {
			vars.Cov.SetSym(j, j, MinVariance)
		}
	}
	return vars
}
