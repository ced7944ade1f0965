package main

import "flag"
import "fmt"

import "github.com/google/uuid"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/flowmc/flow"
import "github.com/neurlang/flowmc/flow/affine"
import "github.com/neurlang/flowmc/local"
import "github.com/neurlang/flowmc/rng"
import "github.com/neurlang/flowmc/sampler"
import "github.com/neurlang/flowmc/targets/gaussian"

func main() {
	seed := flag.Uint64("seed", 42, "random seed")
	chains := flag.Int("chains", 20, "number of chains")
	loops := flag.Int("loops", 5, "training and production rounds")
	dstmodel := flag.String("dstmodel", "", "flow checkpoint destination .json.zst file")
	flag.Parse()

	target, err := gaussian.New([]float64{1, -1}, mat.NewSymDense(2, []float64{1, 0.9, 0.9, 1}))
	if err != nil {
		panic(err)
	}

	keys := rng.Initialize(*seed, *chains)
	var r = keys.Init.Rand()
	var initial = make([][]float64, *chains)
	for c := range initial {
		initial[c] = []float64{4 * r.NormFloat64(), 4 * r.NormFloat64()}
	}

	s, err := sampler.New(sampler.Options{
		NDim:            2,
		Keys:            keys,
		LocalFactory:    local.MALAFactory,
		Gradient:        target.Grad,
		SamplerParams:   local.Params{StepSize: 0.3},
		Likelihood:      target.LogProb,
		Flow:            affine.New(2),
		NLoopTraining:   *loops,
		NLoopProduction: *loops,
		NLocalSteps:     20,
		NGlobalSteps:    20,
		NChains:         *chains,
		NEpochs:         50,
		BatchSize:       50,
		LearningRate:    0.05,
		Momentum:        0.9,
		MaxSamples:      10000,
		Autotune:        local.NewStepSizeTuner(),
		UseGlobal:       true,
	})
	if err != nil {
		panic(err)
	}
	if err := s.Sample(initial); err != nil {
		panic(err)
	}

	training := s.SamplerState(true)
	production := s.SamplerState(false)
	losses := training.LossVals()
	for i, l := range losses {
		println("[round]", i, "final loss", fmt.Sprintf("%.4f", l[len(l)-1]))
	}
	println("[step size]", fmt.Sprintf("%.4f", s.SamplerParams().StepSize))
	println("[training acceptance] local", fmt.Sprintf("%.3f", training.LocalAcceptance()),
		"global", fmt.Sprintf("%.3f", training.GlobalAcceptance()))
	println("[production acceptance] local", fmt.Sprintf("%.3f", production.LocalAcceptance()),
		"global", fmt.Sprintf("%.3f", production.GlobalAcceptance()))
	var mean = production.Mean()
	println("[mean]", fmt.Sprintf("%.3f %.3f", mean[0], mean[1]), "want", "1 -1")

	var state = s.FlowState()
	println("[flow mean]", fmt.Sprintf("%.3f %.3f", state.Variables.Mean[0], state.Variables.Mean[1]))

	if *dstmodel != "" {
		if err := flow.WriteCheckpointToFile(*dstmodel, flow.NewCheckpoint(uuid.New(), state)); err != nil {
			panic(err)
		}
		println("[saved]", *dstmodel)
	}
}
