package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iBuildiPawn/RustTaTor/internal/config"
)

// TestNewRunCmd tests the run command creation.
func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "run" {
			t.Errorf("expected use 'run', got %q", cmd.Use)
		}
	})

	t.Run("has flag defaults", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			want string
		}{
			{"control-host", "127.0.0.1"},
			{"control-port", "9063"},
			{"socks-port", "9052"},
			{"interval", "1m0s"},
			{"min-spacing", "10s"},
			{"max-per-hour", "120"},
			{"history", "false"},
			{"embedded", "false"},
			{"tor-timeout", "3m0s"},
		}
		for _, tt := range tests {
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.DefValue != tt.want {
				t.Errorf("%s default = %q, want %q", tt.name, flag.DefValue, tt.want)
			}
		}
	})

	t.Run("has interval shorthand", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("interval")
		if flag == nil {
			t.Fatal("expected interval flag")
		}
		if flag.Shorthand != "i" {
			t.Errorf("expected shorthand 'i', got %q", flag.Shorthand)
		}
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		t.Parallel()
		if cmd.Args == nil {
			t.Fatal("expected Args validator")
		}
		if err := cmd.Args(cmd, []string{"extra"}); err == nil {
			t.Error("expected error for positional argument")
		}
	})
}

// isolateHome points the home directory at an empty temp dir so a developer's
// real ~/.rustator cannot leak into the test.
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", t.TempDir())
}

// TestBuildConfigDefaults tests config construction with no flags set.
func TestBuildConfigDefaults(t *testing.T) {
	isolateHome(t)

	cmd := NewRunCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ControlAddr != config.DefaultControlAddr {
		t.Errorf("ControlAddr = %q, want %q", cfg.ControlAddr, config.DefaultControlAddr)
	}
	if cfg.SocksAddr != config.DefaultSocksAddr {
		t.Errorf("SocksAddr = %q, want %q", cfg.SocksAddr, config.DefaultSocksAddr)
	}
	if cfg.RotationInterval != config.DefaultRotationInterval {
		t.Errorf("RotationInterval = %v, want %v", cfg.RotationInterval, config.DefaultRotationInterval)
	}
	if cfg.HistoryEnabled {
		t.Error("expected history disabled by default")
	}
	if cfg.Embedded {
		t.Error("expected embedded disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

// TestBuildConfigFlagOverrides tests that explicit flags reach the config.
func TestBuildConfigFlagOverrides(t *testing.T) {
	isolateHome(t)

	cmd := NewRunCmd()
	args := []string{
		"--control-host", "10.0.0.5",
		"--control-port", "9151",
		"--socks-port", "9150",
		"--interval", "90s",
		"--min-spacing", "20s",
		"--max-per-hour", "30",
		"--password", "hunter2",
		"--cookie-file", "/tmp/cookie",
		"--history",
		"--history-dir", "/tmp/rustator-history",
		"--embedded",
		"--tor-timeout", "1m",
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ControlAddr != "10.0.0.5:9151" {
		t.Errorf("ControlAddr = %q", cfg.ControlAddr)
	}
	if cfg.SocksAddr != "10.0.0.5:9150" {
		t.Errorf("SocksAddr = %q", cfg.SocksAddr)
	}
	if cfg.RotationInterval != 90*time.Second {
		t.Errorf("RotationInterval = %v", cfg.RotationInterval)
	}
	if cfg.MinSpacing != 20*time.Second {
		t.Errorf("MinSpacing = %v", cfg.MinSpacing)
	}
	if cfg.MaxRotationsPerHour != 30 {
		t.Errorf("MaxRotationsPerHour = %d", cfg.MaxRotationsPerHour)
	}
	if cfg.Password != "hunter2" {
		t.Errorf("Password = %q", cfg.Password)
	}
	if cfg.CookieFile != "/tmp/cookie" {
		t.Errorf("CookieFile = %q", cfg.CookieFile)
	}
	if !cfg.HistoryEnabled {
		t.Error("expected history enabled")
	}
	if cfg.HistoryDir != "/tmp/rustator-history" {
		t.Errorf("HistoryDir = %q", cfg.HistoryDir)
	}
	if !cfg.Embedded {
		t.Error("expected embedded enabled")
	}
	if cfg.TorStartupTimeout != time.Minute {
		t.Errorf("TorStartupTimeout = %v", cfg.TorStartupTimeout)
	}
}

// TestBuildConfigPolicyFile tests the file overlay and flag precedence.
func TestBuildConfigPolicyFile(t *testing.T) {
	isolateHome(t)

	path := filepath.Join(t.TempDir(), ".rustator")
	content := `control_addr: 192.0.2.1:9063
rotation:
  interval: 2m
  max_per_hour: 40
history: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	t.Run("file values apply", func(t *testing.T) {
		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ControlAddr != "192.0.2.1:9063" {
			t.Errorf("ControlAddr = %q", cfg.ControlAddr)
		}
		if cfg.RotationInterval != 2*time.Minute {
			t.Errorf("RotationInterval = %v", cfg.RotationInterval)
		}
		if cfg.MaxRotationsPerHour != 40 {
			t.Errorf("MaxRotationsPerHour = %d", cfg.MaxRotationsPerHour)
		}
		if !cfg.HistoryEnabled {
			t.Error("expected history enabled from file")
		}
	})

	t.Run("flags win over file", func(t *testing.T) {
		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"--config", path, "--interval", "30s"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.RotationInterval != 30*time.Second {
			t.Errorf("RotationInterval = %v, want flag value", cfg.RotationInterval)
		}
		if cfg.ControlAddr != "192.0.2.1:9063" {
			t.Errorf("ControlAddr = %q, want file value", cfg.ControlAddr)
		}
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for missing policy file")
		}
	})
}

// TestBuildConfigInvalid tests that validation catches broken values.
func TestBuildConfigInvalid(t *testing.T) {
	isolateHome(t)

	cmd := NewRunCmd()
	if err := cmd.ParseFlags([]string{"--control-host="}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidControlAddr) {
		t.Errorf("Validate() = %v, want ErrInvalidControlAddr", err)
	}
}

// TestSessionConfigMapping tests the CLI to session config translation.
func TestSessionConfigMapping(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Password = "secret"
	cfg.RotationInterval = 45 * time.Second

	sc := sessionConfig(cfg)

	if sc.ControlAddr != cfg.ControlAddr {
		t.Errorf("ControlAddr = %q", sc.ControlAddr)
	}
	if sc.Password != "secret" {
		t.Errorf("Password = %q", sc.Password)
	}
	if sc.Policy.Interval != 45*time.Second {
		t.Errorf("Policy.Interval = %v", sc.Policy.Interval)
	}
	if sc.Policy.MaxPerHour != cfg.MaxRotationsPerHour {
		t.Errorf("Policy.MaxPerHour = %d", sc.Policy.MaxPerHour)
	}
	if sc.Lookup.IPLookupURL != cfg.IPLookupURL {
		t.Errorf("Lookup.IPLookupURL = %q", sc.Lookup.IPLookupURL)
	}
	if err := sc.Policy.Validate(); err != nil {
		t.Errorf("mapped policy must validate: %v", err)
	}
}

// TestHistoryPath tests history database location resolution.
func TestHistoryPath(t *testing.T) {
	t.Parallel()

	if got := historyPath("/var/lib/rustator"); got != "/var/lib/rustator/history.db" {
		t.Errorf("historyPath = %q", got)
	}
	if got := historyPath(""); got == "" || filepath.Base(got) != "history.db" {
		t.Errorf("historyPath(\"\") = %q", got)
	}
}
