package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Supported storage providers.
const (
	ProviderAzure = "azure"
	ProviderMinio = "minio"
	ProviderS3    = "s3"
	ProviderLocal = "local"
)

// Config selects a blob provider and carries its connection parameters.
// Container names the Azure container, the MinIO/S3 bucket, or the
// subdirectory under Root for the local provider.
type Config struct {
	Provider         string `toml:"provider"`
	Container        string `toml:"container"`
	ConnectionString string `toml:"connection_string"`
	Endpoint         string `toml:"endpoint"`
	Region           string `toml:"region"`
	AccessKey        string `toml:"access_key"`
	SecretKey        string `toml:"secret_key"`
	UseSSL           bool   `toml:"use_ssl"`
	Root             string `toml:"root"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider         string
	Container        string
	ConnectionString string
	Endpoint         string
	Region           string
	AccessKey        string
	SecretKey        string
	UseSSL           string
	Root             string
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
	for dst, v := range map[*string]string{
		&c.Provider:         overlay.Provider,
		&c.Container:        overlay.Container,
		&c.ConnectionString: overlay.ConnectionString,
		&c.Endpoint:         overlay.Endpoint,
		&c.Region:           overlay.Region,
		&c.AccessKey:        overlay.AccessKey,
		&c.SecretKey:        overlay.SecretKey,
		&c.Root:             overlay.Root,
	} {
		if v != "" {
			*dst = v
		}
	}
	if overlay.UseSSL {
		c.UseSSL = true
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.Container == "" {
		c.Container = "contracts"
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Root == "" {
		c.Root = "data"
	}
}

func (c *Config) loadEnv(env *Env) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{env.Provider, &c.Provider},
		{env.Container, &c.Container},
		{env.ConnectionString, &c.ConnectionString},
		{env.Endpoint, &c.Endpoint},
		{env.Region, &c.Region},
		{env.AccessKey, &c.AccessKey},
		{env.SecretKey, &c.SecretKey},
		{env.Root, &c.Root},
	}
	for _, o := range overrides {
		if o.name == "" {
			continue
		}
		if v := os.Getenv(o.name); v != "" {
			*o.dst = v
		}
	}
	if env.UseSSL != "" {
		if v := os.Getenv(env.UseSSL); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.UseSSL = b
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Container == "" {
		return fmt.Errorf("container required")
	}

	switch c.Provider {
	case ProviderAzure:
		if c.ConnectionString == "" && c.Endpoint == "" {
			return fmt.Errorf("connection_string or endpoint required for provider %s", c.Provider)
		}
	case ProviderMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint required for provider %s", c.Provider)
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return fmt.Errorf("access_key and secret_key required for provider %s", c.Provider)
		}
	case ProviderS3:
		if c.Region == "" {
			return fmt.Errorf("region required for provider %s", c.Provider)
		}
	case ProviderLocal:
		if c.Root == "" {
			return fmt.Errorf("root required for provider %s", c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}
	return nil
}
