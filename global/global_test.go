package global

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/flowmc/flow"
	"github.com/neurlang/flowmc/flow/affine"
	"github.com/neurlang/flowmc/rng"
)

func standardNormal(x []float64) float64 {
	var s float64
	for _, v := range x {
		s -= 0.5*v*v + 0.5*math.Log(2*math.Pi)
	}
	return s
}

func setup(nDim int) (*affine.Flow, flow.Params, flow.Variables) {
	f := affine.New(nDim)
	return f, make(flow.Params, affine.NumParams(nDim)), flow.NewVariables(nDim)
}

func zeros(n, d int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, d)
	}
	return out
}

func TestExactFlowAlwaysAccepts(t *testing.T) {
	f, params, vars := setup(2)
	s := New(f)
	key := rng.New(1)
	next, res := s.Propose(key, 6, params, vars, Vectorize(standardNormal, 2), zeros(4, 2))

	assert.True(t, key.Spent())
	assert.False(t, next.Spent())
	require.Len(t, res.Acceptance, 4)
	for c := range res.Acceptance {
		require.Len(t, res.Chain[c], 6)
		for i, a := range res.Acceptance[c] {
			assert.Equal(t, 1.0, a)
			assert.InDelta(t, res.LogProbTarget[c][i], res.LogProbFlow[c][i], 1e-9)
		}
	}
}

func TestNonFiniteTargetRejects(t *testing.T) {
	f, params, vars := setup(2)
	nan := func(x []float64) float64 {
		if x[0] == 0 && x[1] == 0 {
			return 0
		}
		return math.NaN()
	}
	_, res := New(f).Propose(rng.New(2), 5, params, vars, Vectorize(nan, 1), zeros(3, 2))
	for c := range res.Acceptance {
		for i, a := range res.Acceptance[c] {
			assert.Equal(t, 0.0, a)
			assert.Equal(t, []float64{0, 0}, res.Chain[c][i])
			assert.Equal(t, 0.0, res.LogProbTarget[c][i])
		}
	}
}

func TestEscapesFromImpossibleStart(t *testing.T) {
	f, params, vars := setup(1)
	l := func(x []float64) float64 {
		if x[0] > 100 {
			return math.Inf(-1)
		}
		return standardNormal(x)
	}
	start := [][]float64{{1000}}
	_, res := New(f).Propose(rng.New(3), 3, params, vars, Vectorize(l, 1), start)
	assert.Equal(t, 1.0, res.Acceptance[0][0])
	assert.Less(t, res.Chain[0][2][0], 100.0)
}

func TestProposeDeterministicAndReadOnly(t *testing.T) {
	f, _, vars := setup(2)
	params, _, err := f.Init(rng.New(4), 2)
	require.NoError(t, err)
	before := params.Clone()
	varsBefore := vars.Clone()

	l := func(x []float64) float64 { return standardNormal([]float64{x[0] - 1, x[1] + 1}) }
	_, a := New(f).Propose(rng.New(5), 10, params, vars, Vectorize(l, 3), zeros(5, 2))
	_, b := New(f).Propose(rng.New(5), 10, params, vars, Vectorize(l, 1), zeros(5, 2))

	assert.Equal(t, a, b)
	assert.Equal(t, before, params)
	assert.True(t, varsBefore.Equal(vars))

	var accepted, total float64
	for c := range a.Acceptance {
		for _, v := range a.Acceptance[c] {
			assert.True(t, v == 0 || v == 1)
			accepted += v
			total++
		}
	}
	assert.Greater(t, accepted, 0.0)
	assert.Less(t, accepted, total)
}
