package storage_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/docket/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"provider", cfg.Provider, storage.ProviderLocal},
		{"container", cfg.Container, "contracts"},
		{"region", cfg.Region, "us-east-1"},
		{"root", cfg.Root, "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_PROVIDER", "minio")
	t.Setenv("TEST_CONTAINER", "uploads")
	t.Setenv("TEST_ENDPOINT", "minio:9000")
	t.Setenv("TEST_ACCESS_KEY", "access")
	t.Setenv("TEST_SECRET_KEY", "secret")
	t.Setenv("TEST_USE_SSL", "true")

	env := &storage.Env{
		Provider:  "TEST_PROVIDER",
		Container: "TEST_CONTAINER",
		Endpoint:  "TEST_ENDPOINT",
		AccessKey: "TEST_ACCESS_KEY",
		SecretKey: "TEST_SECRET_KEY",
		UseSSL:    "TEST_USE_SSL",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"provider", cfg.Provider, storage.ProviderMinio},
		{"container", cfg.Container, "uploads"},
		{"endpoint", cfg.Endpoint, "minio:9000"},
		{"access key", cfg.AccessKey, "access"},
		{"secret key", cfg.SecretKey, "secret"},
		{"use ssl", cfg.UseSSL, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{"azure without connection string", storage.Config{Provider: storage.ProviderAzure}, "connection_string or endpoint required"},
		{"minio without endpoint", storage.Config{Provider: storage.ProviderMinio}, "endpoint required"},
		{"minio without credentials", storage.Config{Provider: storage.ProviderMinio, Endpoint: "m:9000"}, "access_key and secret_key required"},
		{"unknown provider", storage.Config{Provider: "ftp"}, "unknown provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{Provider: storage.ProviderLocal, Container: "contracts", Root: "/data"}
	base.Merge(&storage.Config{Provider: storage.ProviderS3, Region: "eu-west-1", UseSSL: true})

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"provider", base.Provider, storage.ProviderS3},
		{"region", base.Region, "eu-west-1"},
		{"use ssl", base.UseSSL, true},
		{"container preserved", base.Container, "contracts"},
		{"root preserved", base.Root, "/data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}
