package log

import (
	"bytes"
	"strings"
	"testing"
)

// TestSecureHandlerMasksKeys tests masking by attribute key.
func TestSecureHandlerMasksKeys(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"cookie key", "cookie", "deadbeef"},
		{"cookie_hex key", "cookie_hex", "00112233"},
		{"password key", "password", "hunter2"},
		{"client_nonce key", "client_nonce", "aabbcc"},
		{"server_hash key", "server_hash", "ddeeff"},
		{"keyword in key", "control_password", "hunter2"},
		{"nonce keyword", "safecookie_nonce", "aabbcc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, false)
			logger.Info("auth step", tc.key, tc.value)

			out := buf.String()
			if strings.Contains(out, tc.value) {
				t.Errorf("output leaked value %q: %s", tc.value, out)
			}
			if !strings.Contains(out, MaskValue) {
				t.Errorf("output missing mask: %s", out)
			}
		})
	}
}

// TestSecureHandlerMasksValues tests masking by value pattern.
func TestSecureHandlerMasksValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		value string
	}{
		{"authenticate command line", "AUTHENTICATE 49554E1AD0C23"},
		{"authchallenge command line", "AUTHCHALLENGE SAFECOOKIE 1234ABCD"},
		{"32-byte hex cookie", strings.Repeat("ab", 32)},
		{"hashed control password", "16:" + strings.Repeat("A", 58)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, false)
			logger.Info("sending command", "line", tc.value)

			if strings.Contains(buf.String(), tc.value) {
				t.Errorf("output leaked value %q: %s", tc.value, buf.String())
			}
		})
	}
}

// TestSecureHandlerPassesBenignAttrs tests that ordinary attributes survive.
func TestSecureHandlerPassesBenignAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, false)
	logger.Info("rotation complete", "rotations", 3, "exit", "203.0.113.7", "line", "250 OK")

	out := buf.String()
	for _, want := range []string{"rotations=3", "203.0.113.7", "250 OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, MaskValue) {
		t.Errorf("benign attributes were masked: %s", out)
	}
}

// TestSecureHandlerVerbosity tests level selection.
func TestSecureHandlerVerbosity(t *testing.T) {
	t.Parallel()

	t.Run("debug suppressed by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		NewSecureLogger(&buf, false).Debug("hidden")
		if buf.Len() != 0 {
			t.Errorf("debug output present: %s", buf.String())
		}
	})

	t.Run("debug enabled when verbose", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		NewSecureLogger(&buf, true).Debug("visible")
		if !strings.Contains(buf.String(), "visible") {
			t.Errorf("debug output missing: %s", buf.String())
		}
	})
}

// TestSecureHandlerGroups tests masking inside attribute groups.
func TestSecureHandlerGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, false).WithGroup("control")
	logger.Info("authenticating", "password", "hunter2", "method", "SAFECOOKIE")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("grouped output leaked password: %s", out)
	}
	if !strings.Contains(out, "SAFECOOKIE") {
		t.Errorf("grouped output missing method: %s", out)
	}
}
