package config

import (
	"net"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Port defaults match the torrc shipped alongside this tool rather than the
// stock Tor defaults (9050/9051), so a dedicated daemon instance can run next
// to a system Tor without colliding.
const (
	// DefaultControlAddr is the Tor control port endpoint.
	DefaultControlAddr = "127.0.0.1:9063"

	// DefaultSocksAddr is the Tor SOCKS5 proxy endpoint used for exit-node
	// lookups. We use 127.0.0.1 instead of localhost to avoid DNS resolution
	// and IPv6 ambiguity.
	DefaultSocksAddr = "127.0.0.1:9052"

	// DefaultRotationInterval is the time between automatic identity
	// rotations.
	DefaultRotationInterval = 60 * time.Second

	// DefaultMinSpacing is the minimum time between two rotations regardless
	// of how they were triggered. Tor rate-limits NEWNYM internally (about
	// one per 10 seconds); requests under this spacing would be silently
	// deferred by the daemon and make rotation timing unpredictable.
	DefaultMinSpacing = 10 * time.Second

	// DefaultMaxRotationsPerHour caps rotation frequency over longer spans.
	// Frequent circuit churn is both hard on the network and a recognizable
	// traffic pattern.
	DefaultMaxRotationsPerHour = 120

	// DefaultConnectTimeout bounds the TCP connect to the control port.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultCommandTimeout bounds the wait for a synchronous control-port
	// reply. 10 seconds is the same order of magnitude as the daemon's own
	// circuit build timeout, so a healthy daemon always answers well inside it.
	DefaultCommandTimeout = 10 * time.Second

	// DefaultLookupTimeout bounds the exit-node lookup through the SOCKS
	// proxy. Lookups traverse a full Tor circuit, so this is deliberately
	// generous compared to the control-port timeouts.
	DefaultLookupTimeout = 30 * time.Second

	// DefaultBackoffInitial is the first wait after a failed rotation.
	DefaultBackoffInitial = 5 * time.Second

	// DefaultBackoffCeiling caps the exponential rotation backoff.
	DefaultBackoffCeiling = 5 * time.Minute

	// DefaultIPLookupURL returns the caller's public address as JSON.
	DefaultIPLookupURL = "https://api.ipify.org?format=json"

	// DefaultTorCheckURL reports whether the caller's address is a known
	// Tor exit node.
	DefaultTorCheckURL = "https://check.torproject.org/api/ip"

	// DefaultGeoLookupURL is the geolocation endpoint. The %s placeholder
	// receives the IP address.
	DefaultGeoLookupURL = "https://ipapi.co/%s/json/"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap when --embedded is used.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "rustator"
)

// Config holds all configuration options for rustator.
// It is populated from CLI flags plus an optional policy file and passed
// through the application via dependency injection rather than global state.
type Config struct {
	// ControlAddr is the Tor control port address in "host:port" format.
	ControlAddr string

	// SocksAddr is the Tor SOCKS5 proxy address in "host:port" format.
	// Exit-node lookups are routed through this proxy so the lookup itself
	// traverses the circuit being measured.
	SocksAddr string

	// Password is the control-port password, used when the daemon offers
	// HASHEDPASSWORD authentication and cookie methods are unavailable.
	// Empty means password authentication is not attempted.
	Password string

	// CookieFile overrides the cookie file path advertised by PROTOCOLINFO.
	// Empty means trust the daemon's advertised path.
	CookieFile string

	// RotationInterval is the time between automatic identity rotations.
	RotationInterval time.Duration

	// MinSpacing is the minimum time between any two rotations.
	// Requests arriving sooner are refused, not queued.
	MinSpacing time.Duration

	// MaxRotationsPerHour caps the rotation rate. Must be positive.
	MaxRotationsPerHour int

	// ConnectTimeout bounds the TCP connect to the control port.
	ConnectTimeout time.Duration

	// CommandTimeout bounds each synchronous control-port reply.
	CommandTimeout time.Duration

	// LookupTimeout bounds each exit-node lookup request.
	LookupTimeout time.Duration

	// BackoffInitial is the first wait after a failed rotation; it doubles
	// on each consecutive failure up to BackoffCeiling.
	BackoffInitial time.Duration

	// BackoffCeiling caps the rotation failure backoff.
	BackoffCeiling time.Duration

	// IPLookupURL returns the caller's public address. The response must be
	// JSON with at least an "ip" field.
	IPLookupURL string

	// TorCheckURL verifies the current address is a Tor exit. Empty disables
	// the verification step.
	TorCheckURL string

	// GeoLookupURL is a format string with one %s verb for the IP address.
	// Empty disables geolocation enrichment; records then carry the address
	// only.
	GeoLookupURL string

	// HistoryEnabled persists exit-node records and rotation events to the
	// SQLite history database. Off by default: the controller keeps only the
	// current record in memory unless history is explicitly requested.
	HistoryEnabled bool

	// HistoryDir is the directory for the history database.
	// Defaults to the XDG data directory when history is enabled.
	HistoryDir string

	// Embedded starts an embedded Tor daemon instead of connecting to an
	// external one. ControlAddr and SocksAddr are then taken from the
	// launched process.
	Embedded bool

	// TorStartupTimeout bounds embedded daemon bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables slog.LevelDebug output. When false, only info and
	// above are logged.
	Verbose bool
}

// NewConfig creates a Config with default values.
// Defaults are chosen so that `rustator run` against the bundled torrc works
// with no flags at all.
func NewConfig() *Config {
	return &Config{
		ControlAddr:         DefaultControlAddr,
		SocksAddr:           DefaultSocksAddr,
		RotationInterval:    DefaultRotationInterval,
		MinSpacing:          DefaultMinSpacing,
		MaxRotationsPerHour: DefaultMaxRotationsPerHour,
		ConnectTimeout:      DefaultConnectTimeout,
		CommandTimeout:      DefaultCommandTimeout,
		LookupTimeout:       DefaultLookupTimeout,
		BackoffInitial:      DefaultBackoffInitial,
		BackoffCeiling:      DefaultBackoffCeiling,
		IPLookupURL:         DefaultIPLookupURL,
		TorCheckURL:         DefaultTorCheckURL,
		GeoLookupURL:        DefaultGeoLookupURL,
		TorStartupTimeout:   DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for rustator.
// On Linux: ~/.local/share/rustator
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for rustator.
// On Linux: ~/.config/rustator
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks that the configuration is internally consistent.
// It returns the first problem found; fixing one error often makes later
// ones irrelevant. Called once after CLI parsing, before connecting.
func (c *Config) Validate() error {
	// Addresses are not validated when the embedded daemon is requested:
	// the launched process supplies them.
	if !c.Embedded {
		if !isValidHostPort(c.ControlAddr) {
			return ErrInvalidControlAddr
		}
		if !isValidHostPort(c.SocksAddr) {
			return ErrInvalidSocksAddr
		}
	}

	if c.RotationInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.MinSpacing < 0 || c.MinSpacing > c.RotationInterval {
		return ErrInvalidMinSpacing
	}
	if c.MaxRotationsPerHour <= 0 {
		return ErrInvalidMaxPerHour
	}
	if c.ConnectTimeout <= 0 || c.CommandTimeout <= 0 || c.LookupTimeout <= 0 {
		return ErrInvalidTimeout
	}

	return nil
}

// isValidHostPort checks the "host:port" form. net.SplitHostPort accepts an
// empty host ("[::]:80" style wildcards), which is not a dialable address, so
// we additionally require a non-empty host.
func isValidHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}
	return host != "" && port != ""
}
