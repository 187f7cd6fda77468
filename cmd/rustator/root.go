// Package main provides the entry point for the rustator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for rustator.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rustator",
		Short: "Tor session controller with scheduled identity rotation",
		Long: `rustator manages a Tor session: it authenticates on the control port,
rotates circuit identities on a schedule, and tracks which exit node the
session currently uses.

By default it connects to an external Tor daemon at 127.0.0.1:9063
(control) and 127.0.0.1:9052 (SOCKS). Use --embedded to launch a
dedicated Tor process instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
