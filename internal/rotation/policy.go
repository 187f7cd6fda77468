package rotation

import (
	"fmt"
	"time"
)

// Policy defaults. Interval matches the historical CLI default; spacing and
// the hourly cap keep even an aggressive operator from flooding the daemon
// with NEWNYM signals it would silently rate-limit anyway.
const (
	DefaultInterval       = 60 * time.Second
	DefaultMinSpacing     = 10 * time.Second
	DefaultMaxPerHour     = 120
	DefaultBackoffInitial = 5 * time.Second
	DefaultBackoffCeiling = 5 * time.Minute
)

// Policy holds the knobs that decide when a rotation may happen.
type Policy struct {
	// Interval is the period of the automatic rotation loop.
	Interval time.Duration

	// MinSpacing is the minimum time between two confirmed rotations.
	// Requests inside the window are refused, not queued.
	MinSpacing time.Duration

	// MaxPerHour caps confirmed rotations per hour.
	MaxPerHour int

	// BackoffInitial is the first backoff delay after a failed rotation.
	BackoffInitial time.Duration

	// BackoffCeiling bounds the exponential backoff growth.
	BackoffCeiling time.Duration
}

// NewPolicy returns a Policy with default values.
func NewPolicy() Policy {
	return Policy{
		Interval:       DefaultInterval,
		MinSpacing:     DefaultMinSpacing,
		MaxPerHour:     DefaultMaxPerHour,
		BackoffInitial: DefaultBackoffInitial,
		BackoffCeiling: DefaultBackoffCeiling,
	}
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidPolicy, p.Interval)
	}
	if p.MinSpacing < 0 {
		return fmt.Errorf("%w: min spacing must not be negative, got %v", ErrInvalidPolicy, p.MinSpacing)
	}
	if p.MaxPerHour <= 0 {
		return fmt.Errorf("%w: max per hour must be positive, got %d", ErrInvalidPolicy, p.MaxPerHour)
	}
	if p.BackoffInitial <= 0 {
		return fmt.Errorf("%w: backoff initial must be positive, got %v", ErrInvalidPolicy, p.BackoffInitial)
	}
	if p.BackoffCeiling < p.BackoffInitial {
		return fmt.Errorf("%w: backoff ceiling %v below initial %v", ErrInvalidPolicy, p.BackoffCeiling, p.BackoffInitial)
	}
	return nil
}
