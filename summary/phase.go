package summary

import "crypto/sha256"
import "encoding/binary"
import "fmt"
import "math"

import "github.com/neurlang/flowmc/parallel"

// Phase is the accumulated history of one phase, training or production.
type Phase struct {
	nChains, nDim, nEpochs int
	withLoss               bool

	chains     [][]float64 // [chain][step*nDim+dim]
	logProb    [][]float64 // [chain][step]
	localAccs  [][]float64 // [chain][local step]
	globalAccs [][]float64 // [chain][global step]
	lossVals   [][]float64 // [round][epoch]

	capacity int
}

// NewPhase creates an empty record for nChains chains in nDim dimensions.
// A record with withLoss keeps loss histories of nEpochs entries. The step
// buffers are preallocated for capacity steps.
func NewPhase(nChains, nDim, nEpochs int, withLoss bool, capacity int) *Phase {
	p := &Phase{nChains: nChains, nDim: nDim, nEpochs: nEpochs, withLoss: withLoss, capacity: capacity}
	p.Reset()
	return p
}

// Reset empties the record, keeping its schema and capacity.
func (p *Phase) Reset() {
	p.chains = make([][]float64, p.nChains)
	p.logProb = make([][]float64, p.nChains)
	p.localAccs = make([][]float64, p.nChains)
	p.globalAccs = make([][]float64, p.nChains)
	for c := 0; c < p.nChains; c++ {
		p.chains[c] = make([]float64, 0, p.capacity*p.nDim)
		p.logProb[c] = make([]float64, 0, p.capacity)
		p.localAccs[c] = make([]float64, 0, p.capacity)
		p.globalAccs[c] = make([]float64, 0, p.capacity)
	}
	p.lossVals = nil
}

// Round is the output of one sampling round. Positions and LogProb hold the
// local steps followed by the global steps.
type Round struct {
	Positions  [][][]float64 // [chain][step][dim]
	LogProb    [][]float64   // [chain][step]
	LocalAccs  [][]float64   // [chain][local step]
	GlobalAccs [][]float64   // [chain][global step], nil without global steps
}

// Append adds a round. It panics when the round does not fit the schema or
// adds no steps.
func (p *Phase) Append(r Round) {
	if len(r.Positions) != p.nChains || len(r.LogProb) != p.nChains || len(r.LocalAccs) != p.nChains {
		panic(fmt.Sprintf("summary: round has %d chains, want %d", len(r.Positions), p.nChains))
	}
	if r.GlobalAccs != nil && len(r.GlobalAccs) != p.nChains {
		panic(fmt.Sprintf("summary: global acceptance has %d chains, want %d", len(r.GlobalAccs), p.nChains))
	}
	var steps = len(r.Positions[0])
	if steps == 0 {
		panic("summary: empty round")
	}
	for c := 0; c < p.nChains; c++ {
		if len(r.Positions[c]) != steps || len(r.LogProb[c]) != steps {
			panic("summary: ragged round")
		}
		var global int
		if r.GlobalAccs != nil {
			global = len(r.GlobalAccs[c])
		}
		if len(r.LocalAccs[c])+global != steps {
			panic("summary: acceptance does not cover the round")
		}
	}
	for c := 0; c < p.nChains; c++ {
		for _, x := range r.Positions[c] {
			if len(x) != p.nDim {
				panic(fmt.Sprintf("summary: position has %d dimensions, want %d", len(x), p.nDim))
			}
			p.chains[c] = append(p.chains[c], x...)
		}
		p.logProb[c] = append(p.logProb[c], r.LogProb[c]...)
		p.localAccs[c] = append(p.localAccs[c], r.LocalAccs[c]...)
		if r.GlobalAccs != nil {
			p.globalAccs[c] = append(p.globalAccs[c], r.GlobalAccs[c]...)
		}
	}
}

// AppendLoss adds the loss history of one retraining.
func (p *Phase) AppendLoss(loss []float64) {
	if !p.withLoss {
		panic("summary: phase has no loss history")
	}
	if len(loss) != p.nEpochs {
		panic(fmt.Sprintf("summary: loss has %d epochs, want %d", len(loss), p.nEpochs))
	}
	p.lossVals = append(p.lossVals, append([]float64(nil), loss...))
}

// HasLoss reports whether the record keeps loss histories.
func (p *Phase) HasLoss() bool {
	return p.withLoss
}

// NChains is the number of chains.
func (p *Phase) NChains() int {
	return p.nChains
}

// NDim is the dimensionality of the positions.
func (p *Phase) NDim() int {
	return p.nDim
}

// Steps is the number of recorded steps per chain.
func (p *Phase) Steps() int {
	if p.nChains == 0 {
		return 0
	}
	return len(p.logProb[0])
}

// LocalSteps is the number of recorded local acceptances per chain.
func (p *Phase) LocalSteps() int {
	if p.nChains == 0 {
		return 0
	}
	return len(p.localAccs[0])
}

// GlobalSteps is the number of recorded global acceptances per chain.
func (p *Phase) GlobalSteps() int {
	if p.nChains == 0 {
		return 0
	}
	return len(p.globalAccs[0])
}

// ChainsShape is (n_chains, steps, n_dim).
func (p *Phase) ChainsShape() [3]int {
	return [3]int{p.nChains, p.Steps(), p.nDim}
}

// LossShape is (rounds, n_epochs).
func (p *Phase) LossShape() [2]int {
	return [2]int{len(p.lossVals), p.nEpochs}
}

// At returns the position of chain c at step s. The slice aliases the record.
func (p *Phase) At(c, s int) []float64 {
	return p.chains[c][s*p.nDim : (s+1)*p.nDim : (s+1)*p.nDim]
}

// Chains returns a copy of the positions as [chain][step][dim].
func (p *Phase) Chains() [][][]float64 {
	var out = make([][][]float64, p.nChains)
	for c := range out {
		var steps = len(p.logProb[c])
		out[c] = make([][]float64, steps)
		for s := 0; s < steps; s++ {
			out[c][s] = append([]float64(nil), p.At(c, s)...)
		}
	}
	return out
}

func clone2(in [][]float64) [][]float64 {
	var out = make([][]float64, len(in))
	for i := range in {
		out[i] = append([]float64(nil), in[i]...)
	}
	return out
}

// LogProb returns a copy of the log probabilities as [chain][step].
func (p *Phase) LogProb() [][]float64 {
	return clone2(p.logProb)
}

// LocalAccs returns a copy of the local acceptances as [chain][step].
func (p *Phase) LocalAccs() [][]float64 {
	return clone2(p.localAccs)
}

// GlobalAccs returns a copy of the global acceptances as [chain][step].
func (p *Phase) GlobalAccs() [][]float64 {
	return clone2(p.globalAccs)
}

// LossVals returns a copy of the loss histories as [round][epoch].
func (p *Phase) LossVals() [][]float64 {
	return clone2(p.lossVals)
}

func meanOf(rows [][]float64) float64 {
	var sum float64
	var n int
	for _, row := range rows {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// LocalAcceptance is the mean local acceptance, NaN when empty.
func (p *Phase) LocalAcceptance() float64 {
	return meanOf(p.localAccs)
}

// GlobalAcceptance is the mean global acceptance, NaN when empty.
func (p *Phase) GlobalAcceptance() float64 {
	return meanOf(p.globalAccs)
}

// Mean is the per dimension mean position over all chains and steps.
func (p *Phase) Mean() []float64 {
	var out = make([]float64, p.nDim)
	var n int
	for c := range p.chains {
		for s := 0; s < len(p.logProb[c]); s++ {
			for d, v := range p.At(c, s) {
				out[d] += v
			}
			n++
		}
	}
	for d := range out {
		out[d] /= float64(n)
	}
	return out
}

// Fingerprint is a sha256 digest of the whole record. Chains are hashed in
// parallel and folded in chain order followed by the loss histories, so two
// records have the same fingerprint exactly when they hold the same bits.
func (p *Phase) Fingerprint() [32]byte {
	var h = parallel.NewHasher(p.nChains + 1)
	parallel.ForEach(p.nChains, parallel.DefaultLimit(), func(c int) {
		h.MustPutHash(c, digest(p.chains[c], p.logProb[c], p.localAccs[c], p.globalAccs[c]))
	})
	h.MustPutHash(p.nChains, digest(p.lossVals...))
	return h.Sum()
}

func digest(rows ...[]float64) [32]byte {
	var sha = sha256.New()
	var buf [8]byte
	for _, row := range rows {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(row)))
		sha.Write(buf[:])
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			sha.Write(buf[:])
		}
	}
	var out [32]byte
	copy(out[:], sha.Sum(nil))
	return out
}
