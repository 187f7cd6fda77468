package exitnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
)

// Lookup endpoint defaults. The address endpoint and the exit checker are
// load-bearing; geolocation is decoration and may fail freely.
const (
	DefaultIPLookupURL  = "https://api.ipify.org?format=json"
	DefaultTorCheckURL  = "https://check.torproject.org/api/ip"
	DefaultGeoLookupURL = "https://ipapi.co/%s/json/"

	DefaultLookupTimeout = 30 * time.Second
)

// maxLookupBody bounds response reads. The services answer with a few
// hundred bytes of JSON; anything bigger is not the service we expect.
const maxLookupBody = 64 << 10

// Config holds the tracker's lookup endpoints.
type Config struct {
	// IPLookupURL returns the caller's network-visible address as
	// {"ip": "..."}.
	IPLookupURL string

	// TorCheckURL reports whether the caller's address is a known exit as
	// {"IsTor": bool, "IP": "..."}.
	TorCheckURL string

	// GeoLookupURL is a printf pattern with one %s verb for the address.
	GeoLookupURL string

	// Timeout bounds one complete Resolve.
	Timeout time.Duration
}

// NewConfig returns a Config with default endpoints.
func NewConfig() Config {
	return Config{
		IPLookupURL:  DefaultIPLookupURL,
		TorCheckURL:  DefaultTorCheckURL,
		GeoLookupURL: DefaultGeoLookupURL,
		Timeout:      DefaultLookupTimeout,
	}
}

// geoLocation is the subset of the geolocation response the tracker keeps.
type geoLocation struct {
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code"`
	City        string `json:"city"`
}

// Tracker resolves the session's current exit node. All requests go through
// the HTTP client it was built with, which must route via the SOCKS proxy.
// Safe for concurrent use, though the session calls it from one goroutine.
type Tracker struct {
	client *http.Client
	cfg    Config
	logger *slog.Logger

	// breaker shields the geolocation provider. Repeated failures open it
	// and Resolve degrades to address-only records until it half-opens.
	breaker *gobreaker.CircuitBreaker[geoLocation]

	mu      sync.Mutex
	last    *model.ExitNodeRecord
	lastErr error
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger. Defaults to slog.Default().
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker builds a Tracker over the given HTTP client.
func NewTracker(client *http.Client, cfg Config, opts ...TrackerOption) *Tracker {
	defaults := NewConfig()
	if cfg.IPLookupURL == "" {
		cfg.IPLookupURL = defaults.IPLookupURL
	}
	if cfg.TorCheckURL == "" {
		cfg.TorCheckURL = defaults.TorCheckURL
	}
	if cfg.GeoLookupURL == "" {
		cfg.GeoLookupURL = defaults.GeoLookupURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	t := &Tracker{
		client: client,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	t.breaker = gobreaker.NewCircuitBreaker[geoLocation](gobreaker.Settings{
		Name:    "geolocation",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.logger.Warn("geolocation breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return t
}

// Resolve determines the current exit node and returns the new record,
// tagged with the rotation sequence number it belongs to. On failure the
// previous record is returned unchanged alongside the error, so a caller
// showing status never loses the last known exit.
func (t *Tracker) Resolve(ctx context.Context, rotationSeq uint64) (*model.ExitNodeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	address, err := t.fetchAddress(ctx)
	if err != nil {
		return t.keepStale(err)
	}

	record := &model.ExitNodeRecord{
		Address:     address,
		RotationSeq: rotationSeq,
		ResolvedAt:  time.Now(),
	}

	isExit, err := t.fetchExitVerdict(ctx)
	if err != nil {
		return t.keepStale(err)
	}
	record.IsTorExit = isExit

	// Geolocation is optional: any failure, including an open breaker,
	// leaves the geographic fields empty.
	loc, err := t.breaker.Execute(func() (geoLocation, error) {
		return t.fetchGeo(ctx, address)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			t.logger.Debug("geolocation skipped, breaker open")
		} else {
			t.logger.Debug("geolocation failed", "error", err)
		}
	} else {
		record.CountryName = loc.CountryName
		record.CountryCode = loc.CountryCode
		record.City = loc.City
	}

	t.mu.Lock()
	t.last = record
	t.lastErr = nil
	t.mu.Unlock()

	return record, nil
}

// Last returns the most recent successfully resolved record, nil if none.
func (t *Tracker) Last() *model.ExitNodeRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// LastError returns the error of the most recent failed Resolve, nil after
// a success.
func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// keepStale records the failure and hands back the previous record.
func (t *Tracker) keepStale(err error) (*model.ExitNodeRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastErr = err
	return t.last, err
}

// fetchAddress asks the IP service for the network-visible address.
func (t *Tracker) fetchAddress(ctx context.Context) (string, error) {
	var payload struct {
		IP string `json:"ip"`
	}
	if err := t.getJSON(ctx, t.cfg.IPLookupURL, &payload); err != nil {
		return "", err
	}
	if payload.IP == "" {
		return "", fmt.Errorf("%w: address service returned no address", ErrLookupRefused)
	}
	return payload.IP, nil
}

// fetchExitVerdict asks the project's checker whether the visible address is
// a known exit.
func (t *Tracker) fetchExitVerdict(ctx context.Context) (bool, error) {
	var payload struct {
		IsTor bool   `json:"IsTor"`
		IP    string `json:"IP"`
	}
	if err := t.getJSON(ctx, t.cfg.TorCheckURL, &payload); err != nil {
		return false, err
	}
	return payload.IsTor, nil
}

// fetchGeo geolocates an address. Every field is optional by contract; a
// response that decodes at all is accepted.
func (t *Tracker) fetchGeo(ctx context.Context, address string) (geoLocation, error) {
	var loc geoLocation
	url := fmt.Sprintf(t.cfg.GeoLookupURL, address)
	if err := t.getJSON(ctx, url, &loc); err != nil {
		return geoLocation{}, err
	}
	return loc, nil
}

// getJSON performs one GET and decodes the JSON body into out.
func (t *Tracker) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookupRefused, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s", ErrLookupTimeout, url)
		}
		return fmt.Errorf("%w: %v", ErrLookupRefused, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close is best effort

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s answered %d", ErrLookupRefused, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s", ErrLookupTimeout, url)
		}
		return fmt.Errorf("%w: %v", ErrLookupRefused, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s returned malformed JSON: %v", ErrLookupRefused, url, err)
	}
	return nil
}
