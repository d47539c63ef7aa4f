package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/docket/pkg/formatting"
)

// Registry backends.
const (
	RegistryPostgres = "postgres"
	RegistryMemory   = "memory"
	RegistryRedis    = "redis"
)

const (
	EnvAnalysisPolicyPath      = "DOCKET_POLICY_PATH"
	EnvAnalysisMaxDocumentSize = "DOCKET_MAX_DOCUMENT_SIZE"
	EnvAnalysisProgressBatch   = "DOCKET_PROGRESS_BATCH"
	EnvAnalysisChunkWorkers    = "DOCKET_CHUNK_WORKERS"
	EnvAnalysisRegistry        = "DOCKET_REGISTRY"
)

// AnalysisConfig tunes job processing.
type AnalysisConfig struct {
	PolicyPath      string `toml:"policy_path"`
	MaxDocumentSize string `toml:"max_document_size"`
	ProgressBatch   int    `toml:"progress_batch"`
	ChunkWorkers    int    `toml:"chunk_workers"`
	Registry        string `toml:"registry"`
}

// MaxDocumentSizeBytes returns MaxDocumentSize in bytes.
func (c *AnalysisConfig) MaxDocumentSizeBytes() int64 {
	n, err := formatting.ParseBytes(c.MaxDocumentSize)
	if err != nil {
		return 100 * 1024 * 1024
	}
	return n
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AnalysisConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AnalysisConfig) Merge(overlay *AnalysisConfig) {
	if overlay.PolicyPath != "" {
		c.PolicyPath = overlay.PolicyPath
	}
	if overlay.MaxDocumentSize != "" {
		c.MaxDocumentSize = overlay.MaxDocumentSize
	}
	if overlay.ProgressBatch != 0 {
		c.ProgressBatch = overlay.ProgressBatch
	}
	if overlay.ChunkWorkers != 0 {
		c.ChunkWorkers = overlay.ChunkWorkers
	}
	if overlay.Registry != "" {
		c.Registry = overlay.Registry
	}
}

func (c *AnalysisConfig) loadDefaults() {
	if c.MaxDocumentSize == "" {
		c.MaxDocumentSize = "100MB"
	}
	if c.ProgressBatch == 0 {
		c.ProgressBatch = 200
	}
	if c.ChunkWorkers == 0 {
		c.ChunkWorkers = 4
	}
	if c.Registry == "" {
		c.Registry = RegistryPostgres
	}
}

func (c *AnalysisConfig) loadEnv() {
	if v := os.Getenv(EnvAnalysisPolicyPath); v != "" {
		c.PolicyPath = v
	}
	if v := os.Getenv(EnvAnalysisMaxDocumentSize); v != "" {
		c.MaxDocumentSize = v
	}
	if v := os.Getenv(EnvAnalysisProgressBatch); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ProgressBatch = n
		}
	}
	if v := os.Getenv(EnvAnalysisChunkWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ChunkWorkers = n
		}
	}
	if v := os.Getenv(EnvAnalysisRegistry); v != "" {
		c.Registry = v
	}
}

func (c *AnalysisConfig) validate() error {
	if _, err := formatting.ParseBytes(c.MaxDocumentSize); err != nil {
		return fmt.Errorf("invalid max_document_size: %w", err)
	}
	if c.ProgressBatch < 1 {
		return fmt.Errorf("progress_batch must be positive: %d", c.ProgressBatch)
	}
	if c.ChunkWorkers < 1 {
		return fmt.Errorf("chunk_workers must be positive: %d", c.ChunkWorkers)
	}
	switch c.Registry {
	case RegistryPostgres, RegistryMemory, RegistryRedis:
	default:
		return fmt.Errorf("unknown registry backend: %q", c.Registry)
	}
	return nil
}
