// Package main provides the entry point for the rustator CLI.
//
// rustator is a Tor session controller. It holds an authenticated
// control-port connection, rotates circuit identities on a schedule, and
// tracks the exit node observed through the SOCKS proxy.
//
// Usage:
//
//	rustator run
//	rustator status --json
//	rustator history --limit 50
//
// See --help for all available options.
package main

// main is the entry point for rustator.
func main() {
	Execute()
}
