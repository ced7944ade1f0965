package dualmoon

import "math"

import "gonum.org/v1/gonum/floats"

// DualMoon is the two dimensional dual moon log density.
type DualMoon struct {
	Radius, Width float64
	Centers       [2]float64 // mixture centers, shared by both axes
	Sigma         [2]float64 // mixture widths of the x and y axis
}

// New returns the standard dual moon.
func New() *DualMoon {
	return &DualMoon{Radius: 2, Width: 0.1, Centers: [2]float64{-3, 3}, Sigma: [2]float64{0.8, 0.6}}
}

func (d *DualMoon) Dim() int {
	return 2
}

// mixture returns logsumexp over the centers of -0.5((v + c)/s)^2 and
// its derivative in v.
func (d *DualMoon) mixture(v, s float64) (float64, float64) {
	var terms [2]float64
	for i, c := range d.Centers {
		var z = (v + c) / s
		terms[i] = -0.5 * z * z
	}
	var lse = floats.LogSumExp(terms[:])
	var deriv float64
	for i, c := range d.Centers {
		deriv += math.Exp(terms[i]-lse) * -(v + c) / (s * s)
	}
	return lse, deriv
}

func (d *DualMoon) LogProb(x []float64) float64 {
	var r = math.Hypot(x[0], x[1])
	var ring = (r - d.Radius) / d.Width
	var mx, _ = d.mixture(x[0], d.Sigma[0])
	var my, _ = d.mixture(x[1], d.Sigma[1])
	return -0.5*ring*ring + mx + my
}

func (d *DualMoon) Grad(x, grad []float64) {
	var r = math.Hypot(x[0], x[1])
	var _, dx = d.mixture(x[0], d.Sigma[0])
	var _, dy = d.mixture(x[1], d.Sigma[1])
	grad[0], grad[1] = dx, dy
	if r == 0 {
		return
	}
	var k = -(r - d.Radius) / (d.Width * d.Width * r)
	grad[0] += k * x[0]
	grad[1] += k * x[1]
}
