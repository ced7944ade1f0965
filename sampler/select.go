package sampler

import "math"
import "sort"

// quantile is the q quantile of values with linear interpolation between
// the closest ranks, the definition numpy uses by default. An infinite
// neighbour wins the interpolation, so a -Inf maximum yields -Inf and not NaN.
func quantile(values []float64, q float64) float64 {
	var sorted = append([]float64(nil), values...)
	sort.Float64s(sorted)
	var pos = q * float64(len(sorted)-1)
	var lo = int(math.Floor(pos))
	var hi = int(math.Ceil(pos))
	if sorted[lo] == sorted[hi] {
		return sorted[lo]
	}
	var frac = pos - float64(lo)
	if math.IsInf(sorted[lo], 0) || math.IsInf(sorted[hi], 0) {
		return (1-frac)*sorted[lo] + frac*sorted[hi]
	}
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// chainMaxima is the largest log probability of every chain.
func chainMaxima(logProb [][]float64) []float64 {
	var out = make([]float64, len(logProb))
	for c, lp := range logProb {
		out[c] = math.Inf(-1)
		for _, v := range lp {
			if v > out[c] {
				out[c] = v
			}
		}
	}
	return out
}

// selectChains returns the chains whose maximum strictly exceeds the q
// quantile of all maxima. With q == 0, or when no chain qualifies, every
// chain is returned.
func selectChains(maxima []float64, q float64) []int {
	var all = make([]int, len(maxima))
	for c := range all {
		all[c] = c
	}
	if q == 0 || len(maxima) == 0 {
		return all
	}
	var cut = quantile(maxima, q)
	var out []int
	for c, m := range maxima {
		if m > cut {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

// trainingPool flattens the retained chains into one slice of points. When
// there are more than maxSamples points only the most recent
// maxSamples/nChains steps of each retained chain are kept.
func trainingPool(positions [][][]float64, retained []int, maxSamples, nChains int) [][]float64 {
	var steps = len(positions[retained[0]])
	var from = 0
	if len(retained)*steps > maxSamples {
		var keep = maxSamples / nChains
		if keep < 1 {
			keep = 1
		}
		if keep < steps {
			from = steps - keep
		}
	}
	var pool = make([][]float64, 0, len(retained)*(steps-from))
	for _, c := range retained {
		pool = append(pool, positions[c][from:]...)
	}
	return pool
}
