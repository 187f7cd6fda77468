// Package report renders session status and exit history in the output
// formats the CLI offers: plain text for terminals, JSON for tooling, and
// Markdown for documentation.
package report
