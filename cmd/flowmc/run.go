package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/neurlang/flowmc/config"
	"github.com/neurlang/flowmc/flow"
	"github.com/neurlang/flowmc/flow/affine"
	"github.com/neurlang/flowmc/local"
	"github.com/neurlang/flowmc/metrics"
	"github.com/neurlang/flowmc/rng"
	"github.com/neurlang/flowmc/sampler"
	"github.com/neurlang/flowmc/summary"
	"github.com/neurlang/flowmc/targets"
	"github.com/neurlang/flowmc/trainer"
)

func newRunCmd() *cobra.Command {
	var configPath, metricsAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample a built in target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd, cfg, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func run(cmd *cobra.Command, cfg *config.Config, metricsAddr string) error {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	target, err := targets.ByName(cfg.Sampler.Target, cfg.Sampler.NDim)
	if err != nil {
		return err
	}
	factory, err := cfg.Local.Factory()
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "addr", metricsAddr, "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", metricsAddr)
	}

	var tune local.Autotune
	if cfg.Local.Autotune {
		tuner := local.NewStepSizeTuner()
		tuner.Logger = logger
		tune = tuner
	}

	s := cfg.Sampler
	keys := rng.Initialize(s.Seed, s.NChains)
	initial := initialPositions(keys.Init, s.NChains, s.NDim)

	smp, err := sampler.New(sampler.Options{
		NDim:            s.NDim,
		Keys:            keys,
		LocalFactory:    factory,
		Gradient:        target.Gradient,
		SamplerParams:   cfg.Local.Params(),
		Likelihood:      target.Likelihood,
		Flow:            affine.New(s.NDim),
		NLoopTraining:   s.NLoopTraining,
		NLoopProduction: s.NLoopProduction,
		NLocalSteps:     s.NLocalSteps,
		NGlobalSteps:    s.NGlobalSteps,
		NChains:         s.NChains,
		NEpochs:         cfg.Flow.NEpochs,
		BatchSize:       cfg.Flow.BatchSize,
		LearningRate:    cfg.Flow.LearningRate,
		Momentum:        cfg.Flow.Momentum,
		MaxSamples:      s.MaxSamples,
		KeepQuantile:    s.KeepQuantile,
		Autotune:        tune,
		AutotuneMaxIter: cfg.Local.AutotuneMaxIter,
		UseGlobal:       s.UseGlobal,
		Logger:          logger,
		Metrics:         m,
	})
	if err != nil {
		return err
	}

	if cfg.Flow.Resume != "" {
		var resume = true
		state := smp.FlowState()
		if err := trainer.Resume(&state, &resume, &cfg.Flow.Resume); err != nil {
			return err
		}
		if err := smp.SetFlowState(state); err != nil {
			return err
		}
		logger.Info("resumed flow", "checkpoint", cfg.Flow.Resume)
	}

	if err := smp.Sample(initial); err != nil {
		return err
	}

	runID := uuid.New()
	if path := cfg.Output.Checkpoint; path != "" {
		if err := flow.WriteCheckpointToFile(path, flow.NewCheckpoint(runID, smp.FlowState())); err != nil {
			return err
		}
		logger.Info("wrote flow checkpoint", "path", path)
	}
	if path := cfg.Output.SQLite; path != "" {
		store, err := summary.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Export(runID, smp.Summary()); err != nil {
			return errors.Wrapf(err, "export to %s", path)
		}
		logger.Info("exported summary", "path", path)
	}

	out := cmd.OutOrStdout()
	prod := smp.SamplerState(false)
	fp := prod.Fingerprint()
	fmt.Fprintf(out, "run %s target %s\n", runID, target.Name)
	fmt.Fprintf(out, "step size %g\n", smp.SamplerParams().StepSize)
	if s.UseGlobal {
		tr := smp.SamplerState(true)
		fmt.Fprintf(out, "training   local %.3f global %.3f\n", tr.LocalAcceptance(), tr.GlobalAcceptance())
	}
	fmt.Fprintf(out, "production local %.3f global %.3f\n", prod.LocalAcceptance(), prod.GlobalAcceptance())
	fmt.Fprintf(out, "production mean %v\n", prod.Mean())
	fmt.Fprintf(out, "fingerprint %s\n", hex.EncodeToString(fp[:]))
	return nil
}

// initialPositions draws standard normal starting points from the init key.
func initialPositions(key rng.Key, nChains, nDim int) [][]float64 {
	r := key.Rand()
	out := make([][]float64, nChains)
	for c := range out {
		out[c] = make([]float64, nDim)
		for d := range out[c] {
			out[c][d] = r.NormFloat64()
		}
	}
	return out
}
