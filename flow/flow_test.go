package flow

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit(t *testing.T) {
	points := [][]float64{{1, 2}, {3, 2}, {5, 8}}
	vars := Fit(points)

	assert.InDeltaSlice(t, []float64{3, 4}, vars.Mean, 1e-12)
	// unbiased: var(x) = 4, var(y) = 12, cov = 6
	assert.InDelta(t, 4, vars.Cov.At(0, 0), 1e-12)
	assert.InDelta(t, 12, vars.Cov.At(1, 1), 1e-12)
	assert.InDelta(t, 6, vars.Cov.At(0, 1), 1e-12)
}

func TestFitDegenerate(t *testing.T) {
	vars := Fit([][]float64{{1, 2}})
	assert.Equal(t, []float64{1, 2}, vars.Mean)
	assert.Equal(t, 1.0, vars.Cov.At(0, 0))

	vars = Fit([][]float64{{1, 2}, {1, 3}})
	assert.Equal(t, MinVariance, vars.Cov.At(0, 0))
	std := vars.Standardize([]float64{1, 2.5}, nil)
	assert.False(t, math.IsNaN(std[0]))
}

func TestStandardizeRoundTrip(t *testing.T) {
	vars := Fit([][]float64{{1, 2}, {3, 2}, {5, 8}})
	x := []float64{0.5, -7}
	u := vars.Standardize(x, nil)
	assert.InDelta(t, (0.5-3)/2, u[0], 1e-12)
	assert.InDeltaSlice(t, x, vars.Destandardize(u, nil), 1e-12)
	assert.InDelta(t, -math.Log(2)-0.5*math.Log(12), vars.LogJacobian(), 1e-12)
}

func TestVariablesCloneAndEqual(t *testing.T) {
	vars := Fit([][]float64{{1, 2}, {3, 2}, {5, 8}})
	c := vars.Clone()
	assert.True(t, vars.Equal(c))
	c.Mean[0] = 100
	assert.False(t, vars.Equal(c))
	assert.Equal(t, 3.0, vars.Mean[0])
}

func TestCheckpointRoundTrip(t *testing.T) {
	state := State{
		Params:    Params{0.1, -0.2, 0.3, 0.4, 0.5},
		Variables: Fit([][]float64{{1, 2}, {3, 2}, {5, 8}}),
	}
	id := uuid.New()

	var buf bytes.Buffer
	require.NoError(t, WriteCheckpoint(&buf, NewCheckpoint(id, state)))

	c, err := ReadCheckpoint(&buf)
	require.NoError(t, err)
	assert.Equal(t, id, c.RunID)
	assert.Equal(t, 2, c.NDim)

	got, err := c.State()
	require.NoError(t, err)
	assert.Equal(t, state.Params, got.Params)
	assert.True(t, state.Variables.Equal(got.Variables))
}

func TestCheckpointFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "flow.json.zst")
	state := State{Params: Params{1, 2}, Variables: NewVariables(1)}
	require.NoError(t, WriteCheckpointToFile(name, NewCheckpoint(uuid.Nil, state)))

	c, err := ReadCheckpointFromFile(name)
	require.NoError(t, err)
	got, err := c.State()
	require.NoError(t, err)
	assert.Equal(t, state.Params, got.Params)

	_, err = ReadCheckpointFromFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCheckpointShapeMismatch(t *testing.T) {
	_, err := Checkpoint{NDim: 2, Mean: []float64{1}}.State()
	assert.Error(t, err)
}
