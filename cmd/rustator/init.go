package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iBuildiPawn/RustTaTor/internal/config"
)

//go:embed templates/rustator.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new rustator policy file",
		Long: `Init creates a new .rustator policy file in the current directory.

The generated file includes:
- The daemon addresses the controller connects to
- Commented examples for rotation policy and lookup endpoints
- Documentation for all available options

Examples:
  # Create .rustator in current directory
  rustator init

  # Create the policy file at a specific path
  rustator init -o mypolicy.yaml

  # Force overwrite existing file
  rustator init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the policy file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing policy file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("policy file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/rustator.yaml")
	if err != nil {
		return fmt.Errorf("failed to read policy template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write policy file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created policy file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Control and SOCKS addresses")
	fmt.Fprintln(out, "  - Rotation interval, spacing, and hourly cap")
	fmt.Fprintln(out, "  - Exit lookup endpoints and history recording")

	return nil
}
