// Package rosenbrock provides the banana shaped Rosenbrock target, whose
// curved ridge is hard for local samplers.
package rosenbrock
