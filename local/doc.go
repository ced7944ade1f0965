// Package local implements the local samplers which advance every chain by
// small, likelihood driven Metropolis steps, and the autotune capability
// which adjusts their step size before sampling.
//
// All samplers run the chains in parallel, each chain with its own key, so
// the result does not depend on goroutine scheduling. A non-finite
// likelihood never raises: the proposal is rejected and the step records an
// acceptance of 0.
package local
