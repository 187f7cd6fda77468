package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iBuildiPawn/RustTaTor/internal/log"
	"github.com/iBuildiPawn/RustTaTor/internal/report"
	"github.com/iBuildiPawn/RustTaTor/internal/session"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session state of a running Tor daemon",
		Long: `Status connects to the control port, resolves the current exit node
through the SOCKS proxy, and prints one state snapshot.

This is a one-shot probe of the daemon itself; it does not talk to a
running "rustator run" process.

Examples:
  # Plain text status
  rustator status

  # Machine-readable output
  rustator status --json

  # Markdown for sharing
  rustator status --markdown`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	addConnectionFlags(cmd)
	addFormatFlags(cmd)
	cmd.Flags().DurationP("wait", "w", 45*time.Second,
		"Maximum time to wait for the exit-node resolution")

	return cmd
}

// addFormatFlags registers the output format flags shared by status and
// history.
func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
}

// newReportWriter selects the output writer from the format flags.
func newReportWriter(cmd *cobra.Command, out io.Writer) (report.Writer, error) {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	switch {
	case jsonOut && markdownOut:
		return nil, errors.New("--json and --markdown are mutually exclusive")
	case jsonOut:
		return report.NewJSONWriter(out, report.WithPrettyPrint()), nil
	case markdownOut:
		return report.NewMarkdownWriter(out), nil
	default:
		return report.NewSimpleWriter(out), nil
	}
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	wait, err := cmd.Flags().GetDuration("wait")
	if err != nil {
		return err
	}

	writer, err := newReportWriter(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)

	sess, err := session.New(sessionConfig(cfg), session.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.ControlAddr, err)
	}

	snap := waitForExit(ctx, sess, wait)
	if err := sess.Shutdown(); err != nil {
		logger.Warn("shutdown error", "error", err)
	}

	_, err = writer.WriteStatus(snap)
	return err
}

// waitForExit polls the session until the exit node is resolved, the lookup
// reports an error, or the wait budget runs out. The last snapshot seen is
// returned either way.
func waitForExit(ctx context.Context, sess *session.Session, wait time.Duration) session.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		snap := sess.Snapshot()
		if snap.Exit != nil || snap.LastError != "" {
			return snap
		}
		select {
		case <-ctx.Done():
			return sess.Snapshot()
		case <-ticker.C:
		}
	}
}
