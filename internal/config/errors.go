package config

import "errors"

// Configuration validation errors.
//
// Design decision: We define specific sentinel errors rather than formatting
// ad hoc strings so that CLI code and tests can match failure modes with
// errors.Is instead of string comparison.
var (
	// ErrInvalidControlAddr is returned when the control port address is not
	// in valid "host:port" form.
	ErrInvalidControlAddr = errors.New("invalid control address: expected host:port")

	// ErrInvalidSocksAddr is returned when the SOCKS proxy address is not
	// in valid "host:port" form.
	ErrInvalidSocksAddr = errors.New("invalid SOCKS address: expected host:port")

	// ErrInvalidInterval is returned when the rotation interval is zero or
	// negative. A non-positive interval would make the scheduler spin.
	ErrInvalidInterval = errors.New("rotation interval must be positive")

	// ErrInvalidMinSpacing is returned when the minimum rotation spacing is
	// negative or exceeds the rotation interval.
	ErrInvalidMinSpacing = errors.New("minimum rotation spacing must be non-negative and not exceed the interval")

	// ErrInvalidMaxPerHour is returned when the hourly rotation cap is negative.
	ErrInvalidMaxPerHour = errors.New("max rotations per hour must be non-negative")

	// ErrInvalidTimeout is returned when a timeout value is zero or negative.
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrConfigNotFound is returned when an explicitly requested policy file
	// does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
