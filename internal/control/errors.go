package control

import "errors"

// Control-port errors, split along the recovery boundaries callers need:
// connection errors and desync are fatal to the session, auth errors are
// fatal to the credentials, timeouts are transient.
var (
	// ErrConnectionRefused is returned when the control port does not accept
	// the TCP connection. The daemon is not running or the address is wrong.
	ErrConnectionRefused = errors.New("control port connection refused")

	// ErrConnectTimeout is returned when the TCP connect to the control port
	// times out.
	ErrConnectTimeout = errors.New("timeout connecting to control port")

	// ErrSessionClosed is returned to commands still pending when the
	// connection closes, and to any command submitted afterwards.
	ErrSessionClosed = errors.New("control session closed")

	// ErrCommandTimeout is returned when the daemon does not complete a
	// reply within the command timeout. The command stays queued so a late
	// reply is still matched in order; only the caller stops waiting.
	ErrCommandTimeout = errors.New("timeout waiting for control reply")

	// ErrProtocolDesync is returned when a synchronous reply line arrives
	// with no command pending. Reply matching can no longer be trusted, so
	// the connection is torn down; it is never resynchronized in place.
	ErrProtocolDesync = errors.New("control protocol desynchronized")

	// ErrNotAuthenticated is returned when a command other than the
	// authentication handshake is submitted before authentication completes.
	ErrNotAuthenticated = errors.New("control session not authenticated")

	// ErrAuthRejected is returned when the daemon rejects the credentials.
	// The connection is closed: the daemon drops controllers after repeated
	// failures, so retrying in place with the same cookie is pointless.
	ErrAuthRejected = errors.New("control authentication rejected")

	// ErrCookieUnreadable is returned when the authentication cookie file is
	// missing, unreadable, or not the expected length. The session remains
	// unauthenticated and open, so a caller may fix permissions and retry.
	ErrCookieUnreadable = errors.New("control auth cookie unreadable")

	// ErrNoAuthMethod is returned when none of the authentication methods
	// advertised by PROTOCOLINFO can be attempted with the configuration at
	// hand (e.g., only HASHEDPASSWORD offered and no password configured).
	ErrNoAuthMethod = errors.New("no usable control authentication method")
)
