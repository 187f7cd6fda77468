package rotation

import "errors"

var (
	// ErrRotationRefused is returned when policy rejects a rotation request:
	// the minimum spacing since the last rotation has not elapsed, or the
	// hourly cap is exhausted.
	ErrRotationRefused = errors.New("rotation refused by policy")

	// ErrRotationFailed is returned when the daemon did not confirm the
	// rotation signal. The scheduler enters backoff.
	ErrRotationFailed = errors.New("rotation signal not confirmed")

	// ErrInvalidPolicy is returned by Policy.Validate for out-of-range
	// settings.
	ErrInvalidPolicy = errors.New("invalid rotation policy")
)
