// Package summary accumulates the history of a sampling run.
//
// A Summary holds two fixed-schema records, Training and Production. Each
// record grows per round by appending every chain's positions, log
// probabilities and acceptances along the step axis; the training record
// also keeps one loss history per retraining. Records only grow until Reset.
package summary
