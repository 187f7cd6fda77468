package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestGetVersion tests version string retrieval.
func TestGetVersion(t *testing.T) {
	t.Run("returns ldflags version when set", func(t *testing.T) {
		original := version
		defer func() { version = original }()

		version = "v1.2.3"
		if got := getVersion(); got != "v1.2.3" {
			t.Errorf("expected 'v1.2.3', got %q", got)
		}
	})

	t.Run("returns non-empty fallback", func(t *testing.T) {
		original := version
		defer func() { version = original }()

		version = ""
		if got := getVersion(); got == "" {
			t.Error("expected non-empty version")
		}
	})
}

// TestGetCommit tests commit hash retrieval.
func TestGetCommit(t *testing.T) {
	t.Run("returns ldflags commit when set", func(t *testing.T) {
		original := commit
		defer func() { commit = original }()

		commit = "abc1234"
		if got := getCommit(); got != "abc1234" {
			t.Errorf("expected 'abc1234', got %q", got)
		}
	})
}

// TestGetDate tests build date retrieval.
func TestGetDate(t *testing.T) {
	t.Run("returns ldflags date when set", func(t *testing.T) {
		original := date
		defer func() { date = original }()

		date = "2026-08-25"
		if got := getDate(); got != "2026-08-25" {
			t.Errorf("expected '2026-08-25', got %q", got)
		}
	})
}

// TestNewVersionCmd tests the version command output.
func TestNewVersionCmd(t *testing.T) {
	cmd := NewVersionCmd()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "rustator") {
		t.Errorf("expected program name, got %q", out)
	}
	if !strings.Contains(out, "commit") {
		t.Errorf("expected commit hash, got %q", out)
	}
	if !strings.Contains(out, "built") {
		t.Errorf("expected build date, got %q", out)
	}
}
