// Package parallel contains the parallel ForEach() used to run per-chain kernels plus other concurrency primitives.
package parallel

import "runtime"

import "github.com/klauspost/cpuid/v2"

// DefaultLimit is the number of goroutines a vectorized kernel uses by default:
// the logical core count reported by cpuid, or runtime.NumCPU when unknown.
func DefaultLimit() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
