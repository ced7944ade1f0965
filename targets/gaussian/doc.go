// Package gaussian provides a multivariate normal target with an analytic
// gradient, the reference problem every sampler should solve.
package gaussian
