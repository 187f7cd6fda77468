package model

import "strings"

// Circuit statuses reported by the Tor daemon in circuit-status lines and
// CIRC events. The daemon reports more statuses than these, but these are
// the ones the controller acts on.
const (
	CircuitStatusLaunched = "LAUNCHED"
	CircuitStatusBuilt    = "BUILT"
	CircuitStatusExtended = "EXTENDED"
	CircuitStatusFailed   = "FAILED"
	CircuitStatusClosed   = "CLOSED"
)

// GeneralPurpose is the circuit purpose used for ordinary client traffic.
// Rotation only cares about general-purpose circuits; directory fetches and
// internal circuits do not carry user streams.
const GeneralPurpose = "GENERAL"

// Circuit describes one circuit as reported by the daemon.
type Circuit struct {
	// ID is the daemon-assigned circuit identifier.
	ID string `json:"id"`

	// Status is one of the CircuitStatus constants (or a raw status string
	// for statuses this controller does not model).
	Status string `json:"status"`

	// Path holds the relay hops. Each entry is the relay fingerprint with
	// the leading '$' stripped; when the daemon appends a nickname after
	// '~' or '=', only the fingerprint part is kept.
	Path []string `json:"path,omitempty"`

	// Purpose is the circuit purpose flag (e.g., "GENERAL", "HS_CLIENT_REND").
	Purpose string `json:"purpose,omitempty"`
}

// IsUsable reports whether the circuit is built and carries general traffic.
// This is the condition the controller waits for after a rotation.
func (c *Circuit) IsUsable() bool {
	return c.Status == CircuitStatusBuilt && strings.Contains(c.Purpose, GeneralPurpose)
}

// RotationStats aggregates rotation counters for reporting.
type RotationStats struct {
	// Count is the number of rotations confirmed by the daemon.
	Count uint64 `json:"count"`

	// Skipped is the number of rotation requests refused by policy
	// (minimum spacing, hourly cap, or coalesced while one was in flight).
	Skipped uint64 `json:"skipped"`

	// Failed is the number of rotation attempts the daemon rejected or
	// that timed out.
	Failed uint64 `json:"failed"`
}
