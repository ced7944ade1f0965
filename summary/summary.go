package summary

// Summary is the training and production history of a run.
type Summary struct {
	Training   *Phase
	Production *Phase
}

// New creates an empty summary. The buffers are preallocated for the
// planned number of training and production steps per chain.
func New(nChains, nDim, nEpochs, trainingSteps, productionSteps int) *Summary {
	return &Summary{
		Training:   NewPhase(nChains, nDim, nEpochs, true, trainingSteps),
		Production: NewPhase(nChains, nDim, nEpochs, false, productionSteps),
	}
}

// Phase selects the training or the production record.
func (s *Summary) Phase(training bool) *Phase {
	if training {
		return s.Training
	}
	return s.Production
}

// Reset empties both records.
func (s *Summary) Reset() {
	s.Training.Reset()
	s.Production.Reset()
}
