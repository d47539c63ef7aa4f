// Package infrastructure assembles the process-level systems every docket
// command needs: lifecycle coordination, logging, blob storage, the job
// registry, and, when requested, the Redis task queue.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/JaimeStill/docket/internal/config"
	"github.com/JaimeStill/docket/internal/jobs"
	"github.com/JaimeStill/docket/internal/metrics"
	"github.com/JaimeStill/docket/internal/pipeline"
	"github.com/JaimeStill/docket/pkg/database"
	"github.com/JaimeStill/docket/pkg/lifecycle"
	"github.com/JaimeStill/docket/pkg/queue"
	"github.com/JaimeStill/docket/pkg/storage"
)

// Infrastructure holds the core systems shared by all commands.
// Database is nil unless the registry backend is postgres. Queue is nil
// unless the registry backend is redis or the queue was requested.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Queue     queue.System
	Metrics   *metrics.Metrics
	Registry  jobs.Registry

	analysis config.AnalysisConfig
}

// Options controls which optional systems New builds.
type Options struct {
	// Queue builds the Redis task queue regardless of registry backend.
	Queue bool
	// Output receives log records.
	Output io.Writer
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config, opts Options) (*Infrastructure, error) {
	if opts.Output == nil {
		opts.Output = io.Discard
	}

	logger := cfg.Logging.Logger(opts.Output)

	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Metrics:   metrics.New(),
		analysis:  cfg.Analysis,
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}
	infra.Storage = store

	if opts.Queue || cfg.Analysis.Registry == config.RegistryRedis {
		q, err := queue.New(&cfg.Queue, logger)
		if err != nil {
			return nil, fmt.Errorf("queue init failed: %w", err)
		}
		infra.Queue = q
	}

	switch cfg.Analysis.Registry {
	case config.RegistryPostgres:
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
		infra.Registry = jobs.NewPostgres(db.Connection(), logger)
	case config.RegistryRedis:
		infra.Registry = jobs.NewRedis(infra.Queue.Redis(), logger)
	case config.RegistryMemory:
		infra.Registry = jobs.NewMemory()
	default:
		return nil, fmt.Errorf("unknown registry backend: %q", cfg.Analysis.Registry)
	}

	return infra, nil
}

// Start registers all built systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if i.Queue != nil {
		if err := i.Queue.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("queue start failed: %w", err)
		}
	}
	return nil
}

// Runner builds a pipeline runner over the shared systems.
func (i *Infrastructure) Runner() *pipeline.Runner {
	return pipeline.New(
		pipeline.Config{
			PolicyPath:      i.analysis.PolicyPath,
			MaxDocumentSize: i.analysis.MaxDocumentSizeBytes(),
			ChunkWorkers:    i.analysis.ChunkWorkers,
			ProgressBatch:   i.analysis.ProgressBatch,
		},
		i.Registry,
		i.Storage,
		i.Metrics,
		i.Logger,
	)
}
