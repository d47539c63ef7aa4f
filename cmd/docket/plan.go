package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docket/internal/chunking"
	"github.com/JaimeStill/docket/internal/document"
	"github.com/JaimeStill/docket/internal/policy"
)

type planOutput struct {
	Metadata document.Metadata `json:"metadata"`
	Plan     *chunking.Plan    `json:"plan"`
}

func newPlanCmd() *cobra.Command {
	var (
		policyPath string
		chunkSize  int
	)

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Preview the chunk plan of a local document without creating a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			pol, err := policy.Load(policyPath)
			if err != nil {
				return err
			}
			if chunkSize > 0 {
				pol.ChunkCharSize = chunkSize
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			out, err := plan(data, filepath.Base(args[0]), pol, logger)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&policyPath, "policy", "", "policy file (default embedded policy)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "override the policy chunk size in characters")

	return cmd
}

func plan(data []byte, filename string, pol *policy.Policy, logger *slog.Logger) (*planOutput, error) {
	meta, err := document.NewExtractor(nil, logger, 0).Extract(data, filename, pol.ChunkCharSize)
	if err != nil {
		return nil, err
	}

	var text string
	if !meta.FileType.Paginated() {
		if text, err = document.FullText(data, meta.FileType); err != nil {
			return nil, err
		}
	}

	p, err := chunking.NewPlan(meta, text)
	if err != nil {
		return nil, err
	}

	return &planOutput{Metadata: meta, Plan: p}, nil
}
