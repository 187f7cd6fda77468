package main

import (
	"bytes"
	"testing"

	"github.com/iBuildiPawn/RustTaTor/internal/report"
)

// TestNewStatusCmd tests the status command creation.
func TestNewStatusCmd(t *testing.T) {
	t.Parallel()

	cmd := NewStatusCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "status" {
			t.Errorf("expected use 'status', got %q", cmd.Use)
		}
	})

	t.Run("has format flags", func(t *testing.T) {
		t.Parallel()
		jsonFlag := cmd.Flags().Lookup("json")
		if jsonFlag == nil {
			t.Fatal("expected json flag")
		}
		if jsonFlag.Shorthand != "j" {
			t.Errorf("expected shorthand 'j', got %q", jsonFlag.Shorthand)
		}
		markdownFlag := cmd.Flags().Lookup("markdown")
		if markdownFlag == nil {
			t.Fatal("expected markdown flag")
		}
		if markdownFlag.Shorthand != "m" {
			t.Errorf("expected shorthand 'm', got %q", markdownFlag.Shorthand)
		}
	})

	t.Run("has wait flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("wait")
		if flag == nil {
			t.Fatal("expected wait flag")
		}
		if flag.DefValue != "45s" {
			t.Errorf("wait default = %q, want 45s", flag.DefValue)
		}
	})

	t.Run("has connection flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"control-host", "control-port", "socks-port", "password", "cookie-file", "config"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// TestNewReportWriter tests the format flag to writer mapping.
func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"default is simple", nil, "simple", false},
		{"json flag", []string{"--json"}, "json", false},
		{"markdown flag", []string{"--markdown"}, "markdown", false},
		{"both flags conflict", []string{"--json", "--markdown"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewStatusCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var buf bytes.Buffer
			writer, err := newReportWriter(cmd, &buf)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got string
			switch writer.(type) {
			case *report.SimpleWriter:
				got = "simple"
			case *report.JSONWriter:
				got = "json"
			case *report.MarkdownWriter:
				got = "markdown"
			default:
				got = "unknown"
			}
			if got != tt.want {
				t.Errorf("writer type = %s, want %s", got, tt.want)
			}
		})
	}
}
