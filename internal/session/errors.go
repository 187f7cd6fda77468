package session

import "errors"

var (
	// ErrNotConnected is returned by operations that need a live control
	// connection before Connect has succeeded.
	ErrNotConnected = errors.New("session is not connected")

	// ErrAlreadyConnected is returned by Connect on a session that already
	// holds a connection.
	ErrAlreadyConnected = errors.New("session is already connected")

	// ErrNoUsableCircuit is returned when no BUILT general-purpose circuit
	// appeared within the wait bound.
	ErrNoUsableCircuit = errors.New("no usable circuit")
)
