package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurlang/flowmc/flow"
	"github.com/neurlang/flowmc/flow/affine"
	"github.com/neurlang/flowmc/rng"
)

func newFlowCmd() *cobra.Command {
	var path string
	var n int
	var seed uint64
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Draw samples from a flow checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flow.ReadCheckpointFromFile(path)
			if err != nil {
				return err
			}
			state, err := c.State()
			if err != nil {
				return err
			}
			f := affine.New(c.NDim)
			if len(state.Params) != affine.NumParams(c.NDim) {
				return fmt.Errorf("checkpoint %s has %d parameters, want %d", path, len(state.Params), affine.NumParams(c.NDim))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s n_dim %d\n", c.RunID, c.NDim)
			for _, x := range f.Sample(rng.New(seed), state.Params, state.Variables, n) {
				fmt.Fprintln(out, x)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "checkpoint", "", "flow checkpoint file")
	cmd.Flags().IntVarP(&n, "samples", "n", 10, "number of samples")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	_ = cmd.MarkFlagRequired("checkpoint")
	return cmd
}
