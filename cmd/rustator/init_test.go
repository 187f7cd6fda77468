package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iBuildiPawn/RustTaTor/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "init" {
			t.Errorf("expected use 'init', got %q", cmd.Use)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("output default = %q, want %q", flag.DefValue, config.DefaultConfigFile)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("force") == nil {
			t.Error("expected force flag")
		}
	})
}

// TestRunInitCmd tests policy file generation.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates policy file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".rustator")
		cmd := NewInitCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetErr(&buf)
		cmd.SetArgs([]string{"-o", path})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read generated file: %v", err)
		}
		if !strings.Contains(string(content), "rotation") {
			t.Errorf("template missing rotation section:\n%s", content)
		}
	})

	t.Run("generated file parses", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".rustator")
		cmd := NewInitCmd()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetArgs([]string{"-o", path})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := config.LoadConfigFile(path); err != nil {
			t.Errorf("generated file must parse: %v", err)
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".rustator")
		if err := os.WriteFile(path, []byte("history: true\n"), 0600); err != nil {
			t.Fatalf("failed to write existing file: %v", err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"-o", path})

		if err := cmd.Execute(); err == nil {
			t.Error("expected error for existing file")
		}
	})

	t.Run("overwrites with force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".rustator")
		if err := os.WriteFile(path, []byte("history: true\n"), 0600); err != nil {
			t.Fatalf("failed to write existing file: %v", err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetArgs([]string{"-o", path, "-f"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read generated file: %v", err)
		}
		if !strings.Contains(string(content), "rustator policy file") {
			t.Errorf("file not overwritten:\n%s", content)
		}
	})
}
