// Package main provides a demo program sampling a correlated two dimensional
// Gaussian with the flow assisted sampler. The flow learns the correlation
// from the chains and then proposes long range moves across the whole target.
package main
