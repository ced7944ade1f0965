// Package dualmoon provides a bimodal ring target: a thin ring of radius 2
// modulated by two Gaussian mixtures, one per axis. Its separated modes are
// what the flow proposals are for.
package dualmoon
