// Package socks provides connectivity through the daemon's SOCKS5 port.
//
// The Client wraps a SOCKS5 dialer for the exit-node lookups: every HTTP
// request the tracker makes must leave through the proxy, never directly.
// CheckConnection verifies the proxy by speaking actual SOCKS5 rather than
// poking the port, so a non-proxy listener on the same port is detected.
//
// The package also manages an optional embedded daemon via tornago for
// hosts without a system-wide installation.
package socks
