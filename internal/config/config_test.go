package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig tests that defaults are populated.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	if cfg.ControlAddr != DefaultControlAddr {
		t.Errorf("ControlAddr = %q, expected %q", cfg.ControlAddr, DefaultControlAddr)
	}
	if cfg.SocksAddr != DefaultSocksAddr {
		t.Errorf("SocksAddr = %q, expected %q", cfg.SocksAddr, DefaultSocksAddr)
	}
	if cfg.RotationInterval != DefaultRotationInterval {
		t.Errorf("RotationInterval = %v, expected %v", cfg.RotationInterval, DefaultRotationInterval)
	}
	if cfg.HistoryEnabled {
		t.Error("HistoryEnabled should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

// TestConfigValidate tests validation failure modes.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mutate   func(*Config)
		expected error
	}{
		{"missing control port", func(c *Config) { c.ControlAddr = "127.0.0.1" }, ErrInvalidControlAddr},
		{"empty control host", func(c *Config) { c.ControlAddr = ":9063" }, ErrInvalidControlAddr},
		{"missing socks port", func(c *Config) { c.SocksAddr = "localhost" }, ErrInvalidSocksAddr},
		{"zero interval", func(c *Config) { c.RotationInterval = 0 }, ErrInvalidInterval},
		{"negative interval", func(c *Config) { c.RotationInterval = -time.Second }, ErrInvalidInterval},
		{"negative spacing", func(c *Config) { c.MinSpacing = -time.Second }, ErrInvalidMinSpacing},
		{"spacing exceeds interval", func(c *Config) { c.MinSpacing = 2 * c.RotationInterval }, ErrInvalidMinSpacing},
		{"negative hourly cap", func(c *Config) { c.MaxRotationsPerHour = -1 }, ErrInvalidMaxPerHour},
		{"zero hourly cap", func(c *Config) { c.MaxRotationsPerHour = 0 }, ErrInvalidMaxPerHour},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }, ErrInvalidTimeout},
		{"zero command timeout", func(c *Config) { c.CommandTimeout = 0 }, ErrInvalidTimeout},
		{"zero lookup timeout", func(c *Config) { c.LookupTimeout = 0 }, ErrInvalidTimeout},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tc.expected) {
				t.Errorf("Validate() = %v, expected %v", err, tc.expected)
			}
		})
	}
}

// TestConfigValidateEmbedded tests that addresses are not validated when the
// embedded daemon supplies them.
func TestConfigValidateEmbedded(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Embedded = true
	cfg.ControlAddr = ""
	cfg.SocksAddr = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("embedded config should not validate addresses, got %v", err)
	}
}

// TestLoadConfigFile tests loading and overlay of the YAML policy file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("full file overlays config", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `
control_addr: 127.0.0.1:9151
socks_addr: 127.0.0.1:9150
rotation:
  interval: 90s
  min_spacing: 15s
  max_per_hour: 40
lookup:
  ip_url: https://example.com/ip
  timeout: 45s
history: true
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		cf.ApplyTo(cfg)

		if cfg.ControlAddr != "127.0.0.1:9151" {
			t.Errorf("ControlAddr = %q", cfg.ControlAddr)
		}
		if cfg.RotationInterval != 90*time.Second {
			t.Errorf("RotationInterval = %v", cfg.RotationInterval)
		}
		if cfg.MinSpacing != 15*time.Second {
			t.Errorf("MinSpacing = %v", cfg.MinSpacing)
		}
		if cfg.MaxRotationsPerHour != 40 {
			t.Errorf("MaxRotationsPerHour = %d", cfg.MaxRotationsPerHour)
		}
		if cfg.IPLookupURL != "https://example.com/ip" {
			t.Errorf("IPLookupURL = %q", cfg.IPLookupURL)
		}
		if cfg.LookupTimeout != 45*time.Second {
			t.Errorf("LookupTimeout = %v", cfg.LookupTimeout)
		}
		if !cfg.HistoryEnabled {
			t.Error("HistoryEnabled should be set")
		}
		// Untouched fields keep their defaults.
		if cfg.GeoLookupURL != DefaultGeoLookupURL {
			t.Errorf("GeoLookupURL = %q, expected default", cfg.GeoLookupURL)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed yaml returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("rotation: ["), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}

// TestFindConfigFile tests explicit-path behavior.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "policy.yaml")
		if err := os.WriteFile(path, []byte("history: true\n"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile() = %q, expected %q", got, path)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "absent")); got != "" {
			t.Errorf("FindConfigFile() = %q, expected empty", got)
		}
	})
}
