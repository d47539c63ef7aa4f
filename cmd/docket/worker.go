package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docket/internal/dispatch"
	"github.com/JaimeStill/docket/internal/infrastructure"
	"github.com/JaimeStill/docket/pkg/middleware"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process job and chunk tasks from the task queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx)
		},
	}
}

func runWorker(ctx context.Context) error {
	s, err := openSession(infrastructure.Options{Queue: true})
	if err != nil {
		return err
	}

	infra := s.infra
	lc := infra.Lifecycle

	d := dispatch.New(infra.Runner(), infra.Queue, infra.Logger)
	if err := d.Start(lc); err != nil {
		s.Close()
		return err
	}

	if s.cfg.Metrics.Enabled {
		mw := middleware.New()
		mw.Use(middleware.Logger(infra.Logger.With("system", "metrics")))

		mux := buildMetricsMux(s.cfg.Metrics.Path, infra.Metrics.Handler(), lc)
		if err := newMetricsServer(&s.cfg.Metrics, mw.Apply(mux), infra.Logger).Start(lc); err != nil {
			s.Close()
			return err
		}
	}

	if err := lc.WaitForStartup(); err != nil {
		s.Close()
		return err
	}

	infra.Logger.Info(
		"worker started",
		"version", s.cfg.Version,
		"env", s.cfg.Env(),
		"queue", s.cfg.Queue.Name,
		"registry", s.cfg.Analysis.Registry,
	)

	<-ctx.Done()

	infra.Logger.Info("worker stopping")
	return s.Close()
}
