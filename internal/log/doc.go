// Package log provides a credential-masking slog handler for rustator.
//
// The control-port conversation carries secrets in clear text: the
// authentication cookie as a hex blob, AUTHCHALLENGE nonces and HMACs, and
// optionally a control password. Logging raw command or reply lines at debug
// level would leak all of them, so every log record passes through a
// SecureHandler that redacts suspicious attribute keys and values before the
// record reaches the underlying text or JSON handler.
package log
