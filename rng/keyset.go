package rng

// KeySet holds the keys of one sampling run.
type KeySet struct {
	Init     Key   // initial positions
	Local    []Key // one key per chain for the local sampler
	Flow     Key   // flow training and global proposals
	FlowInit Key   // flow parameter initialization
}

// Initialize derives the key set of a run with nChains chains from seed.
// Changing nChains changes every chain's stream.
func Initialize(seed uint64, nChains int) KeySet {
	root := New(seed).SplitN(3)
	init, mcmc, nf := root[0], root[1], root[2]
	flow, flowInit := nf.Split()
	return KeySet{
		Init:     init,
		Local:    mcmc.SplitN(nChains),
		Flow:     flow,
		FlowInit: flowInit,
	}
}
