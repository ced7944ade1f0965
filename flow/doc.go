// Package flow defines the normalizing flow capability used for global
// proposals, the flow state (trained parameters plus normalization
// variables) and checkpoint persistence.
//
// A flow works in standardized coordinates u = (x - Mean) / sqrt(diag(Cov)).
// The Variables are fitted to the chains between rounds and are never touched
// by gradient training; the Params are only changed by the trainer.
//
// The affine subpackage is a linear map, so its density is a full covariance
// Gaussian. It cannot represent multimodal or curved targets such as the
// dual moon; those need a nonlinear Model.
package flow
