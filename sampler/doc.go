// Package sampler drives flow assisted ensemble MCMC.
//
// A Sampler advances an ensemble of chains with a local sampler and, when
// global sampling is enabled, interleaves independence Metropolis-Hastings
// moves proposed by a normalizing flow. The flow is refit to the chains' own
// history during the training rounds and frozen for the production rounds:
//
//	LocalTuning -> GlobalTuning (NLoopTraining rounds) -> Production (NLoopProduction rounds) -> Done
//
// Every round is recorded in a summary.Summary.
package sampler
