package rosenbrock

// Rosenbrock is the log density -f(x)/Scale with
//
//	f(x) = sum (A - x_i)^2 + B (x_{i+1} - x_i^2)^2
type Rosenbrock struct {
	NDim  int
	A, B  float64
	Scale float64
}

// New returns the classic A=1, B=100 target with unit scale.
func New(nDim int) *Rosenbrock {
	return &Rosenbrock{NDim: nDim, A: 1, B: 100, Scale: 1}
}

func (r *Rosenbrock) Dim() int {
	return r.NDim
}

func (r *Rosenbrock) LogProb(x []float64) (f float64) {
	for i := 0; i+1 < len(x); i++ {
		var a = r.A - x[i]
		var b = x[i+1] - x[i]*x[i]
		f += a*a + r.B*b*b
	}
	return -f / r.Scale
}

func (r *Rosenbrock) Grad(x, grad []float64) {
	for i := range grad {
		grad[i] = 0
	}
	for i := 0; i+1 < len(x); i++ {
		var a = r.A - x[i]
		var b = x[i+1] - x[i]*x[i]
		grad[i] -= -2*a - 4*r.B*x[i]*b
		grad[i+1] -= 2 * r.B * b
	}
	for i := range grad {
		grad[i] /= r.Scale
	}
}
