package socks

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// Daemon manages an embedded anonymity daemon via tornago, for hosts without
// a system-wide installation. Bootstrap takes one to three minutes: the
// process downloads directory information and builds its first circuits
// before the SOCKS and control listeners are usable.
type Daemon struct {
	process *tornago.TorProcess

	socksAddr      string
	controlAddr    string
	startupTimeout time.Duration
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithStartupTimeout sets the maximum time to wait for bootstrap.
// Defaults to 3 minutes.
func WithStartupTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		d.startupTimeout = timeout
	}
}

// NewDaemon creates an embedded daemon manager. Call Start to launch it.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{
		startupTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the daemon and blocks until it is bootstrapped or the
// startup timeout expires. Ports are OS-assigned; read them from SocksAddr
// and ControlAddr afterwards.
func (d *Daemon) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded daemon: %w", err)
	}

	select {
	case <-ctx.Done():
		_ = process.Stop() //nolint:errcheck // Best effort cleanup on cancellation
		return ctx.Err()
	default:
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	d.controlAddr = process.ControlAddr()
	return nil
}

// Stop shuts the daemon down. Safe to call repeatedly or before Start.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	return err
}

// IsRunning reports whether the daemon is up.
func (d *Daemon) IsRunning() bool {
	return d.process != nil
}

// SocksAddr returns the daemon's SOCKS5 address, empty when not running.
func (d *Daemon) SocksAddr() string {
	return d.socksAddr
}

// ControlAddr returns the daemon's control-port address, empty when not
// running.
func (d *Daemon) ControlAddr() string {
	return d.controlAddr
}

// NewClient returns a SOCKS client bound to the running daemon.
func (d *Daemon) NewClient(timeout time.Duration) (*Client, error) {
	if !d.IsRunning() {
		return nil, ErrDaemonNotRunning
	}
	return NewClient(d.socksAddr, timeout)
}
