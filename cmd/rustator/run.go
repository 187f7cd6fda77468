package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iBuildiPawn/RustTaTor/internal/config"
	"github.com/iBuildiPawn/RustTaTor/internal/exitnode"
	"github.com/iBuildiPawn/RustTaTor/internal/history"
	"github.com/iBuildiPawn/RustTaTor/internal/log"
	"github.com/iBuildiPawn/RustTaTor/internal/report"
	"github.com/iBuildiPawn/RustTaTor/internal/rotation"
	"github.com/iBuildiPawn/RustTaTor/internal/session"
	"github.com/iBuildiPawn/RustTaTor/internal/socks"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the session controller until interrupted",
		Long: `Run connects to the Tor control port, authenticates, and rotates the
circuit identity on a schedule. After each rotation the new exit node is
resolved through the SOCKS proxy and logged.

The controller runs until SIGINT or SIGTERM, then prints a final status
summary.

Examples:
  # Connect to the daemon at the default ports (9063 control, 9052 SOCKS)
  rustator run

  # Rotate every five minutes and record history
  rustator run --interval 5m --history

  # Launch a dedicated Tor process instead of an external daemon
  rustator run --embedded

  # Authenticate with a control password
  rustator run --password "correct horse"

Policy file (.rustator) example:
  rotation:
    interval: 90s
    min_spacing: 15s
  history: true`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	addConnectionFlags(cmd)

	// Rotation policy flags
	cmd.Flags().DurationP("interval", "i", config.DefaultRotationInterval,
		"Time between automatic identity rotations")
	cmd.Flags().Duration("min-spacing", config.DefaultMinSpacing,
		"Minimum time between any two rotations")
	cmd.Flags().Int("max-per-hour", config.DefaultMaxRotationsPerHour,
		"Maximum rotations per hour")

	// History flags
	cmd.Flags().Bool("history", false,
		"Record exit nodes and rotations to the history database")
	cmd.Flags().String("history-dir", "",
		"Directory for the history database (default: XDG data directory)")

	// Embedded daemon flags
	cmd.Flags().BoolP("embedded", "E", false,
		"Launch a dedicated Tor process instead of connecting to an external one")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	return cmd
}

// addConnectionFlags registers the flags shared by run and status.
func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("control-host", "127.0.0.1",
		"Host of the Tor control and SOCKS ports")
	cmd.Flags().Int("control-port", 9063,
		"Tor control port")
	cmd.Flags().Int("socks-port", 9052,
		"Tor SOCKS5 port used for exit-node lookups")
	cmd.Flags().StringP("password", "p", "",
		"Control-port password for HASHEDPASSWORD authentication")
	cmd.Flags().String("cookie-file", "",
		"Override the authentication cookie file path")
	cmd.Flags().StringP("config", "c", "",
		"Policy file path (default: .rustator in current or home directory)")
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runController(ctx, cmd, cfg, logger)
}

// runController wires the session together and blocks until ctx is done.
func runController(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Embedded {
		daemon := socks.NewDaemon(socks.WithStartupTimeout(cfg.TorStartupTimeout))
		logger.Info("starting embedded Tor daemon")
		if err := daemon.Start(ctx); err != nil {
			return fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon")
			if err := daemon.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
		cfg.ControlAddr = daemon.ControlAddr()
		cfg.SocksAddr = daemon.SocksAddr()
	}

	opts := []session.SessionOption{session.WithLogger(logger)}
	if cfg.HistoryEnabled {
		store, err := history.Open(ctx, historyPath(cfg.HistoryDir))
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close()
		logger.Info("history database opened", "path", store.Path())
		opts = append(opts, session.WithRecorder(store))
	}

	sess, err := session.New(sessionConfig(cfg), opts...)
	if err != nil {
		return err
	}
	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.ControlAddr, err)
	}

	if err := sess.WaitForCircuits(ctx); err != nil {
		// The scheduler keeps trying; a slow bootstrap only delays the
		// first usable rotation.
		logger.Warn("no usable circuit yet", "error", err)
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")

	snap := sess.Snapshot()
	if err := sess.Shutdown(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if _, err := report.NewSimpleWriter(cmd.OutOrStdout()).WriteStatus(snap); err != nil {
		return err
	}
	return nil
}

// buildConfig creates a Config from the policy file and cobra flags.
// Flags win over the file, the file wins over built-in defaults, so only
// flags the user actually set override the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	foundPath := config.FindConfigFile(configPath)
	if foundPath != "" {
		file, err := config.LoadConfigFile(foundPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy file %s: %w", foundPath, err)
		}
		file.ApplyTo(cfg)
	} else if configPath != "" {
		return nil, fmt.Errorf("policy file not found: %s", configPath)
	}

	flags := cmd.Flags()

	// Addresses come from three flags. Rebuild them when any piece was set
	// explicitly; otherwise the file value (or built-in default) stands.
	host, err := flags.GetString("control-host")
	if err != nil {
		return nil, err
	}
	if flags.Changed("control-host") || flags.Changed("control-port") {
		port, err := flags.GetInt("control-port")
		if err != nil {
			return nil, err
		}
		cfg.ControlAddr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if flags.Changed("control-host") || flags.Changed("socks-port") {
		port, err := flags.GetInt("socks-port")
		if err != nil {
			return nil, err
		}
		cfg.SocksAddr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	if cfg.Password, err = flags.GetString("password"); err != nil {
		return nil, err
	}
	if flags.Changed("cookie-file") {
		if cfg.CookieFile, err = flags.GetString("cookie-file"); err != nil {
			return nil, err
		}
	}

	// Not every caller registers the policy and daemon flags; status has no
	// rotation loop, for example.
	if flags.Lookup("interval") != nil && flags.Changed("interval") {
		if cfg.RotationInterval, err = flags.GetDuration("interval"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("min-spacing") != nil && flags.Changed("min-spacing") {
		if cfg.MinSpacing, err = flags.GetDuration("min-spacing"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("max-per-hour") != nil && flags.Changed("max-per-hour") {
		if cfg.MaxRotationsPerHour, err = flags.GetInt("max-per-hour"); err != nil {
			return nil, err
		}
	}

	if flags.Lookup("history") != nil {
		historyFlag, err := flags.GetBool("history")
		if err != nil {
			return nil, err
		}
		if historyFlag {
			cfg.HistoryEnabled = true
		}
	}
	if flags.Lookup("history-dir") != nil && flags.Changed("history-dir") {
		if cfg.HistoryDir, err = flags.GetString("history-dir"); err != nil {
			return nil, err
		}
	}

	if flags.Lookup("embedded") != nil {
		if cfg.Embedded, err = flags.GetBool("embedded"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("tor-timeout") != nil && flags.Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return nil, err
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// sessionConfig maps the CLI configuration onto the session package.
func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		ControlAddr:    cfg.ControlAddr,
		SocksAddr:      cfg.SocksAddr,
		Password:       cfg.Password,
		CookieFile:     cfg.CookieFile,
		ConnectTimeout: cfg.ConnectTimeout,
		CommandTimeout: cfg.CommandTimeout,
		Policy: rotation.Policy{
			Interval:       cfg.RotationInterval,
			MinSpacing:     cfg.MinSpacing,
			MaxPerHour:     cfg.MaxRotationsPerHour,
			BackoffInitial: cfg.BackoffInitial,
			BackoffCeiling: cfg.BackoffCeiling,
		},
		Lookup: exitnode.Config{
			IPLookupURL:  cfg.IPLookupURL,
			TorCheckURL:  cfg.TorCheckURL,
			GeoLookupURL: cfg.GeoLookupURL,
			Timeout:      cfg.LookupTimeout,
		},
	}
}

// historyPath resolves the history database location. An empty dir falls
// back to the XDG data directory.
func historyPath(dir string) string {
	if dir == "" {
		dir = config.XDGDataDir()
	}
	return filepath.Join(dir, history.DefaultFileName)
}
