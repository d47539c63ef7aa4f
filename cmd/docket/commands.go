package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docket/internal/config"
	"github.com/JaimeStill/docket/internal/infrastructure"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docket",
		Short:        "Contract analysis pipeline",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default ./config.toml if present)")

	root.AddCommand(
		newSubmitCmd(),
		newRunCmd(),
		newEnqueueCmd(),
		newStatusCmd(),
		newResultCmd(),
		newPlanCmd(),
		newWorkerCmd(),
	)

	return root
}

// session is a started Infrastructure plus the config that built it.
type session struct {
	cfg   *config.Config
	infra *infrastructure.Infrastructure
}

func openSession(opts infrastructure.Options) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	infra, err := infrastructure.New(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := infra.Start(); err != nil {
		return nil, err
	}
	if err := infra.Lifecycle.WaitForStartup(); err != nil {
		infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())
		return nil, fmt.Errorf("startup failed: %w", err)
	}

	return &session{cfg: cfg, infra: infra}, nil
}

func (s *session) Close() error {
	return s.infra.Lifecycle.Shutdown(s.cfg.ShutdownTimeoutDuration())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
