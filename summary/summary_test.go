package summary

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// round builds a round of nLocal+nGlobal steps for nChains chains in 2-D.
func round(nChains, nLocal, nGlobal int, v float64) Round {
	var r Round
	for c := 0; c < nChains; c++ {
		var pos [][]float64
		var lp []float64
		for s := 0; s < nLocal+nGlobal; s++ {
			pos = append(pos, []float64{v + float64(c), v - float64(s)})
			lp = append(lp, -v)
		}
		r.Positions = append(r.Positions, pos)
		r.LogProb = append(r.LogProb, lp)
		r.LocalAccs = append(r.LocalAccs, make([]float64, nLocal))
		if nGlobal > 0 {
			acc := make([]float64, nGlobal)
			acc[0] = 1
			r.GlobalAccs = append(r.GlobalAccs, acc)
		}
	}
	return r
}

func TestAppendGrowsStepAxis(t *testing.T) {
	p := NewPhase(3, 2, 4, true, 0)
	assert.Equal(t, [3]int{3, 0, 2}, p.ChainsShape())
	assert.Equal(t, [2]int{0, 4}, p.LossShape())
	assert.True(t, math.IsNaN(p.LocalAcceptance()))

	p.Append(round(3, 5, 5, 1))
	p.Append(round(3, 5, 5, 2))
	p.AppendLoss([]float64{4, 3, 2, 1})

	assert.Equal(t, [3]int{3, 20, 2}, p.ChainsShape())
	assert.Equal(t, 10, p.LocalSteps())
	assert.Equal(t, 10, p.GlobalSteps())
	assert.Equal(t, [2]int{1, 4}, p.LossShape())
	assert.Equal(t, []float64{2, 2}, p.At(0, 10))
	assert.Equal(t, -2.0, p.LogProb()[2][19])
	assert.InDelta(t, 0.2, p.GlobalAcceptance(), 1e-12)
	assert.Equal(t, 0.0, p.LocalAcceptance())

	chains := p.Chains()
	chains[0][0][0] = 99
	assert.NotEqual(t, 99.0, p.At(0, 0)[0])
}

func TestAppendWithoutGlobal(t *testing.T) {
	p := NewPhase(2, 2, 1, false, 4)
	p.Append(round(2, 4, 0, 0))
	assert.Equal(t, 4, p.Steps())
	assert.Equal(t, 0, p.GlobalSteps())
	assert.True(t, math.IsNaN(p.GlobalAcceptance()))
}

func TestAppendPanicsOnShape(t *testing.T) {
	p := NewPhase(2, 2, 3, false, 0)
	assert.Panics(t, func() { p.Append(round(3, 1, 1, 0)) })
	bad := round(2, 2, 0, 0)
	bad.Positions[1] = bad.Positions[1][:1]
	assert.Panics(t, func() { p.Append(bad) })
	assert.Panics(t, func() { p.AppendLoss([]float64{1, 2, 3}) })

	q := NewPhase(1, 1, 2, true, 0)
	assert.Panics(t, func() { q.AppendLoss([]float64{1}) })
}

func TestMean(t *testing.T) {
	p := NewPhase(2, 2, 1, false, 0)
	p.Append(round(2, 1, 1, 3))
	// x: chain offsets 0 and 1, y: step offsets 0 and 1
	assert.Equal(t, []float64{3.5, 2.5}, p.Mean())
}

func TestResetAndFingerprint(t *testing.T) {
	s := New(2, 2, 3, 10, 10)
	empty := s.Training.Fingerprint()

	s.Phase(true).Append(round(2, 5, 5, 1))
	s.Phase(true).AppendLoss([]float64{1, 2, 3})
	s.Phase(false).Append(round(2, 5, 5, 1))
	full := s.Training.Fingerprint()
	assert.NotEqual(t, empty, full)
	assert.NotEqual(t, full, s.Production.Fingerprint())

	s.Reset()
	assert.Equal(t, 0, s.Training.Steps())
	assert.Equal(t, 0, s.Production.Steps())
	assert.Equal(t, [2]int{0, 3}, s.Training.LossShape())
	assert.Equal(t, empty, s.Training.Fingerprint())

	s.Training.Append(round(2, 5, 5, 1))
	s.Training.AppendLoss([]float64{1, 2, 3})
	assert.Equal(t, full, s.Training.Fingerprint())
}

func TestExportRoundTrip(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	s := New(2, 2, 2, 0, 0)
	s.Training.Append(round(2, 3, 2, 1))
	s.Training.AppendLoss([]float64{math.NaN(), 0.5})
	s.Production.Append(round(2, 3, 2, 4))

	id := uuid.New()
	require.NoError(t, store.Export(id, s))
	assert.Error(t, store.Export(id, s), "run ids are unique")

	runs, err := store.Runs()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, runs)

	lp, err := store.LogProb(id, false, 1)
	require.NoError(t, err)
	assert.Equal(t, s.Production.LogProb()[1], lp)

	losses, err := store.Losses(id)
	require.NoError(t, err)
	require.Len(t, losses, 1)
	assert.True(t, math.IsNaN(losses[0][0]))
	assert.Equal(t, 0.5, losses[0][1])
}
