package queue

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds Redis connection and task queue parameters.
type Config struct {
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	Name        string `toml:"name"`
	Concurrency int    `toml:"concurrency"`
	TaskTimeout string `toml:"task_timeout"`
	DialTimeout string `toml:"dial_timeout"`
}

// Env maps config fields to environment variable names for override injection.
// Empty names are skipped.
type Env struct {
	Addr        string
	Password    string
	DB          string
	Name        string
	Concurrency string
	TaskTimeout string
	DialTimeout string
}

// TaskTimeoutDuration returns TaskTimeout as a time.Duration.
func (c *Config) TaskTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.TaskTimeout)
	return d
}

// DialTimeoutDuration returns DialTimeout as a time.Duration.
func (c *Config) DialTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&c.Addr, overlay.Addr},
		{&c.Password, overlay.Password},
		{&c.Name, overlay.Name},
		{&c.TaskTimeout, overlay.TaskTimeout},
		{&c.DialTimeout, overlay.DialTimeout},
	} {
		if f.v != "" {
			*f.dst = f.v
		}
	}

	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
}

func (c *Config) loadDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Name == "" {
		c.Name = "docket"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 8
	}
	if c.TaskTimeout == "" {
		c.TaskTimeout = "30m"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
}

func (c *Config) loadEnv(env *Env) {
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{env.Addr, &c.Addr},
		{env.Password, &c.Password},
		{env.Name, &c.Name},
		{env.TaskTimeout, &c.TaskTimeout},
		{env.DialTimeout, &c.DialTimeout},
	} {
		if f.name == "" {
			continue
		}
		if v := os.Getenv(f.name); v != "" {
			*f.dst = v
		}
	}

	for _, f := range []struct {
		name string
		dst  *int
	}{
		{env.DB, &c.DB},
		{env.Concurrency, &c.Concurrency},
	} {
		if f.name == "" {
			continue
		}
		if v := os.Getenv(f.name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*f.dst = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.DB < 0 {
		return fmt.Errorf("invalid redis db: %d", c.DB)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive: %d", c.Concurrency)
	}
	if _, err := time.ParseDuration(c.TaskTimeout); err != nil {
		return fmt.Errorf("invalid task_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.DialTimeout); err != nil {
		return fmt.Errorf("invalid dial_timeout: %w", err)
	}
	return nil
}
