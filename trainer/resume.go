package trainer

import "github.com/pkg/errors"

import "github.com/neurlang/flowmc/flow"

// Resume replaces state with the checkpoint stored at src when resume is set.
// The checkpoint must have the dimensionality of state.
func Resume(state *flow.State, resume *bool, src *string) error {
	if resume == nil || !*resume || src == nil || *src == "" {
		return nil
	}
	c, err := flow.ReadCheckpointFromFile(*src)
	if err != nil {
		return err
	}
	if c.NDim != state.Variables.Dim() {
		return errors.Errorf("trainer: checkpoint %s has %d dimensions, want %d", *src, c.NDim, state.Variables.Dim())
	}
	if len(c.Params) != len(state.Params) {
		return errors.Errorf("trainer: checkpoint %s has %d parameters, want %d", *src, len(c.Params), len(state.Params))
	}
	restored, err := c.State()
	if err != nil {
		return err
	}
	*state = restored
	return nil
}
