// Package rng implements linear, splittable random keys.
//
// A Key is a single-use token. Splitting a key, or turning it into a
// generator with Rand, consumes it; any later use of the same key (or of a
// copy of it) panics with ErrKeyReused. The same seed always yields the same
// tree of keys, so a run is reproducible for a fixed configuration.
package rng
