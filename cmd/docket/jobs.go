package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/docket/internal/dispatch"
	"github.com/JaimeStill/docket/internal/infrastructure"
	"github.com/JaimeStill/docket/internal/jobs"
	"github.com/JaimeStill/docket/internal/pipeline"
	"github.com/JaimeStill/docket/internal/results"
)

func newSubmitCmd() *cobra.Command {
	var (
		contractID  string
		contentType string
		run         bool
		enqueue     bool
	)

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a contract document and register a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if run && enqueue {
				return errors.New("--run and --enqueue are mutually exclusive")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(args[0]))
			}

			s, err := openSession(infrastructure.Options{Queue: enqueue})
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			runner := s.infra.Runner()

			job, err := runner.Submit(ctx, pipeline.SubmitCommand{
				ContractID:  contractID,
				Filename:    filepath.Base(args[0]),
				ContentType: contentType,
				Data:        data,
			})
			if err != nil {
				return err
			}

			var runErr error
			switch {
			case run:
				runErr = runner.Run(ctx, job.ID)
			case enqueue:
				runErr = dispatch.New(runner, s.infra.Queue, s.infra.Logger).Enqueue(ctx, job.ID)
			}

			if job, err = s.infra.Registry.Find(ctx, job.ID); err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), job); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&contractID, "contract", "", "contract id the document belongs to")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type recorded on upload (default from extension)")
	cmd.Flags().BoolVar(&run, "run", false, "run the job in this process")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "schedule the job on the task queue")
	cmd.MarkFlagRequired("contract")

	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run a queued job to completion in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}

			s, err := openSession(infrastructure.Options{})
			if err != nil {
				return err
			}
			defer s.Close()

			runErr := s.infra.Runner().Run(cmd.Context(), id)
			if errors.Is(runErr, jobs.ErrNotFound) {
				return runErr
			}

			job, err := s.infra.Registry.Find(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), job); err != nil {
				return err
			}
			return runErr
		},
	}
}

func newEnqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <job-id>",
		Short: "Schedule a queued job on the task queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}

			s, err := openSession(infrastructure.Options{Queue: true})
			if err != nil {
				return err
			}
			defer s.Close()

			job, err := s.infra.Registry.Find(cmd.Context(), id)
			if err != nil {
				return err
			}
			if job.Status != jobs.StatusQueued {
				return fmt.Errorf("%w: job %s is %s", jobs.ErrInvalidTransition, id, job.Status)
			}

			d := dispatch.New(s.infra.Runner(), s.infra.Queue, s.infra.Logger)
			if err := d.Enqueue(cmd.Context(), id); err != nil {
				if dispatch.IsDuplicate(err) {
					fmt.Fprintf(cmd.OutOrStdout(), "job %s already scheduled\n", id)
					return nil
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "job %s scheduled\n", id)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var (
		status     string
		contractID string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show one job, or list jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters jobs.Filters
			if status != "" {
				st := jobs.Status(status)
				if !st.Valid() {
					return fmt.Errorf("unknown status: %q", status)
				}
				filters.Status = &st
			}
			if contractID != "" {
				filters.ContractID = &contractID
			}
			filters.Limit = limit

			var id uuid.UUID
			if len(args) == 1 {
				parsed, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid job id: %w", err)
				}
				id = parsed
			}

			s, err := openSession(infrastructure.Options{})
			if err != nil {
				return err
			}
			defer s.Close()

			if id != uuid.Nil {
				job, err := s.infra.Registry.Find(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), job)
			}

			list, err := s.infra.Registry.List(cmd.Context(), filters)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&contractID, "contract", "", "filter by contract id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum jobs listed")

	return cmd
}

func newResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <job-id>",
		Short: "Print the analysis report of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}

			s, err := openSession(infrastructure.Options{})
			if err != nil {
				return err
			}
			defer s.Close()

			job, err := s.infra.Registry.Find(cmd.Context(), id)
			if err != nil {
				return err
			}
			if job.ResultRef == nil {
				return fmt.Errorf("job %s has no result (status %s)", id, job.Status)
			}

			report, err := results.NewSink(s.infra.Storage, s.infra.Logger).Read(cmd.Context(), *job.ResultRef)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}
