package trainer

import "math/rand/v2"

import "github.com/neurlang/flowmc/flow"
import "github.com/neurlang/flowmc/parallel"
import "github.com/neurlang/flowmc/rng"

// gradShards is the fixed number of partial sums a batch gradient is split
// into. It does not depend on the machine, so the summation order and thus
// the trained parameters are identical everywhere.
const gradShards = 8

// Trainer fits a flow with Adam.
type Trainer struct {
	Model     flow.Trainable
	Optimizer *Adam

	// Threads is the number of goroutines, parallel.DefaultLimit() when 0.
	Threads int
}

// New creates a trainer for model.
func New(model flow.Trainable, learningRate, momentum float64) *Trainer {
	return &Trainer{Model: model, Optimizer: NewAdam(learningRate, momentum)}
}

// Train runs exactly nEpochs epochs over samples, which must already be
// standardized with state.Variables. Each epoch shuffles the samples and
// takes one Adam step per full batch of batchSize points; a trailing partial
// batch is dropped unless the pool is smaller than one batch, in which case
// the whole pool is the batch. It returns the carried key, the new state and
// the mean batch loss of every epoch. A diverging loss is reported, not
// stopped.
func (t *Trainer) Train(key rng.Key, state flow.State, samples [][]float64, nEpochs, batchSize int) (rng.Key, flow.State, []float64) {
	var out = state.Clone()
	var losses = make([]float64, nEpochs)
	if len(samples) == 0 {
		return key, out, losses
	}
	if batchSize <= 0 || batchSize > len(samples) {
		batchSize = len(samples)
	}
	var nBatches = len(samples) / batchSize
	var grad = make([]float64, len(out.Params))
	var batch = make([][]float64, batchSize)

	for epoch := 0; epoch < nEpochs; epoch++ {
		var r *rand.Rand
		key, r = key.Next()
		var perm = r.Perm(len(samples))
		var sum float64
		for b := 0; b < nBatches; b++ {
			for i := range batch {
				batch[i] = samples[perm[b*batchSize+i]]
			}
			sum += t.step(out.Params, batch, grad)
		}
		losses[epoch] = sum / float64(nBatches)
	}
	return key, out, losses
}

// step takes one Adam step on batch and returns the mean batch loss.
func (t *Trainer) step(params flow.Params, batch [][]float64, grad []float64) float64 {
	var shards = parallel.Shards(len(batch), gradShards)
	var partLoss = make([]float64, len(shards))
	var partGrad = make([][]float64, len(shards))
	var threads = t.Threads
	if threads <= 0 {
		threads = parallel.DefaultLimit()
	}
	parallel.ForEach(len(shards), threads, func(s int) {
		partGrad[s] = make([]float64, len(params))
		partLoss[s] = t.Model.NLLGrad(params, batch[shards[s][0]:shards[s][1]], partGrad[s])
	})

	var loss float64
	for i := range grad {
		grad[i] = 0
	}
	for s := range shards {
		loss += partLoss[s]
		for i, g := range partGrad[s] {
			grad[i] += g
		}
	}
	var n = float64(len(batch))
	for i := range grad {
		grad[i] /= n
	}
	t.Optimizer.Step(params, grad)
	return loss / n
}
