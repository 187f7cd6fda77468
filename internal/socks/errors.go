package socks

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not in
	// "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address")

	// ErrDaemonNotRunning is returned when an operation requires the
	// embedded daemon and it has not been started.
	ErrDaemonNotRunning = errors.New("embedded daemon is not running")
)
