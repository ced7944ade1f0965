// Package trainer fits the parameters of a normalizing flow to a pool of
// standardized chain samples. It minimizes the mean negative log likelihood
// with minibatch Adam for a fixed number of epochs, without any convergence
// check, and reports the loss of every epoch.
package trainer
