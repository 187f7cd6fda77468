package exitnode

import "errors"

var (
	// ErrLookupTimeout is returned when an exit lookup did not complete
	// within the configured timeout.
	ErrLookupTimeout = errors.New("exit lookup timed out")

	// ErrLookupRefused is returned when a lookup service could not be
	// reached or answered with a failure status.
	ErrLookupRefused = errors.New("exit lookup refused")
)
