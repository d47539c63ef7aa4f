package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvMetricsEnabled         = "DOCKET_METRICS_ENABLED"
	EnvMetricsAddr            = "DOCKET_METRICS_ADDR"
	EnvMetricsPath            = "DOCKET_METRICS_PATH"
	EnvMetricsReadTimeout     = "DOCKET_METRICS_READ_TIMEOUT"
	EnvMetricsShutdownTimeout = "DOCKET_METRICS_SHUTDOWN_TIMEOUT"
)

// MetricsConfig holds the worker's Prometheus endpoint parameters.
type MetricsConfig struct {
	Enabled         bool   `toml:"enabled"`
	Addr            string `toml:"addr"`
	Path            string `toml:"path"`
	ReadTimeout     string `toml:"read_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// ReadTimeoutDuration returns ReadTimeout as a time.Duration.
func (c *MetricsConfig) ReadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	return d
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *MetricsConfig) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *MetricsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *MetricsConfig) Merge(overlay *MetricsConfig) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.ReadTimeout != "" {
		c.ReadTimeout = overlay.ReadTimeout
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
}

func (c *MetricsConfig) loadDefaults() {
	if c.Addr == "" {
		c.Addr = "0.0.0.0:9090"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "10s"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "5s"
	}
}

func (c *MetricsConfig) loadEnv() {
	if v := os.Getenv(EnvMetricsEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvMetricsPath); v != "" {
		c.Path = v
	}
	if v := os.Getenv(EnvMetricsReadTimeout); v != "" {
		c.ReadTimeout = v
	}
	if v := os.Getenv(EnvMetricsShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
}

func (c *MetricsConfig) validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with /: %q", c.Path)
	}
	if _, err := time.ParseDuration(c.ReadTimeout); err != nil {
		return fmt.Errorf("invalid read_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}
