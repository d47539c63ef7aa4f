package formatting_test

import (
	"testing"

	"github.com/JaimeStill/docket/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"bare bytes", "4096", 4096, false},
		{"bytes unit", "512B", 512, false},
		{"kilobytes", "1KB", 1 << 10, false},
		{"megabytes", "100MB", 100 << 20, false},
		{"binary spelling", "1.5 GiB", 3 << 29, false},
		{"lowercase", "10mb", 10 << 20, false},
		{"surrounding whitespace", "  50MB ", 50 << 20, false},
		{"empty", "", 0, true},
		{"unknown unit", "50XB", 0, true},
		{"no number", "MB", 0, true},
		{"negative", "-5MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name      string
		n         int64
		precision int
		want      string
	}{
		{"zero", 0, 1, "0 B"},
		{"negative", -3, 1, "0 B"},
		{"bytes", 500, 0, "500 B"},
		{"kilobyte", 1 << 10, 0, "1 KB"},
		{"fractional megabytes", 1536 << 10, 1, "1.5 MB"},
		{"negative precision", 1 << 30, -2, "1 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
				t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
			}
		})
	}
}
