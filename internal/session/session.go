package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iBuildiPawn/RustTaTor/internal/control"
	"github.com/iBuildiPawn/RustTaTor/internal/exitnode"
	"github.com/iBuildiPawn/RustTaTor/internal/model"
	"github.com/iBuildiPawn/RustTaTor/internal/rotation"
	"github.com/iBuildiPawn/RustTaTor/internal/socks"
)

// circuitWaitBound caps WaitForCircuits. Bootstrap usually finishes well
// inside it; past this the daemon has a problem waiting will not fix.
const circuitWaitBound = 30 * time.Second

// circuitPollInterval is the circuit-status polling period during
// WaitForCircuits.
const circuitPollInterval = 2 * time.Second

// Recorder persists exit records and rotation events. The history store
// implements it; a nil recorder disables persistence.
type Recorder interface {
	RecordExit(ctx context.Context, record *model.ExitNodeRecord) error
	RecordRotation(ctx context.Context, seq uint64, confirmed bool) error
}

// Config carries everything a Session needs to connect and operate.
type Config struct {
	// ControlAddr is the control port, "host:port".
	ControlAddr string

	// SocksAddr is the SOCKS5 port, "host:port".
	SocksAddr string

	// Password is the control password, empty when cookie or null
	// authentication is expected.
	Password string

	// CookieFile overrides the cookie path advertised by the daemon.
	CookieFile string

	// ConnectTimeout bounds the control-port TCP connect.
	ConnectTimeout time.Duration

	// CommandTimeout bounds each synchronous control command.
	CommandTimeout time.Duration

	// Policy drives the rotation scheduler.
	Policy rotation.Policy

	// Lookup configures the exit-node tracker endpoints.
	Lookup exitnode.Config
}

// Session is the controller for one daemon: control connection, rotation
// scheduler, exit tracking, and the aggregate state. Connect must complete
// before the other methods are used; after Shutdown the session is spent.
type Session struct {
	cfg      Config
	logger   *slog.Logger
	recorder Recorder

	// lookupClient overrides the proxy-routed HTTP client when set.
	lookupClient *http.Client

	socksClient *socks.Client
	conn        *control.Conn
	scheduler   *rotation.Scheduler
	tracker     *exitnode.Tracker

	state *stateStore

	// resolveCh triggers exit resolution, carrying the rotation sequence
	// the resolution belongs to. Capacity one with drop-and-replace: only
	// the newest rotation's exit matters.
	resolveCh chan uint64

	// latestSeq is the newest rotation sequence a resolution was triggered
	// for. A lookup that finishes after a newer rotation confirmed belongs
	// to a torn-down circuit and must not be published.
	latestSeq atomic.Uint64

	group  *errgroup.Group
	cancel context.CancelFunc
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRecorder enables history persistence.
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithLookupClient overrides the HTTP client used for exit lookups.
// The default routes through the SOCKS proxy; overriding it is for tests
// and diagnostics only, since direct lookups observe the wrong address.
func WithLookupClient(client *http.Client) SessionOption {
	return func(s *Session) {
		s.lookupClient = client
	}
}

// New builds a Session. No network traffic happens until Connect.
func New(cfg Config, opts ...SessionOption) (*Session, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		state:     newStateStore(),
		resolveCh: make(chan uint64, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	socksClient, err := socks.NewClient(cfg.SocksAddr, cfg.Lookup.Timeout)
	if err != nil {
		return nil, fmt.Errorf("socks client for %s: %w", cfg.SocksAddr, err)
	}
	s.socksClient = socksClient

	lookupClient := s.lookupClient
	if lookupClient == nil {
		lookupClient = socksClient.NewHTTPClient()
	}
	s.tracker = exitnode.NewTracker(lookupClient, cfg.Lookup,
		exitnode.WithTrackerLogger(s.logger))

	return s, nil
}

// Connect dials the control port, authenticates, subscribes to events, and
// starts the background loops. The context bounds connection setup only;
// the loops run until Shutdown.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn != nil {
		return ErrAlreadyConnected
	}

	if status := s.socksClient.CheckConnection(ctx); status != socks.ProxyStatusOK {
		// Not fatal: the control port may be up while the SOCKS listener
		// is still binding. Lookups will report their own failures.
		s.logger.Warn("SOCKS proxy check failed",
			"address", s.cfg.SocksAddr, "status", status.String())
	}

	conn, err := control.Dial(ctx, s.cfg.ControlAddr,
		control.WithLogger(s.logger),
		control.WithConnectTimeout(s.cfg.ConnectTimeout),
		control.WithCommandTimeout(s.cfg.CommandTimeout),
	)
	if err != nil {
		return err
	}

	if err := conn.Authenticate(ctx, control.AuthConfig{
		Password:   s.cfg.Password,
		CookieFile: s.cfg.CookieFile,
	}); err != nil {
		_ = conn.Close() //nolint:errcheck // Connection is unusable either way
		return err
	}

	if err := conn.SetEvents(ctx, "CIRC", "STREAM", "BW"); err != nil {
		_ = conn.Close() //nolint:errcheck // Connection is unusable either way
		return err
	}

	scheduler, err := rotation.NewScheduler(conn, s.cfg.Policy,
		rotation.WithSchedulerLogger(s.logger),
		rotation.WithOnRotated(s.onRotated),
		rotation.WithOnFailed(s.onRotationFailed),
	)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // Connection is unusable either way
		return err
	}

	s.conn = conn
	s.scheduler = scheduler
	s.state.update(func(st *Snapshot) {
		st.Connected = true
		st.StartedAt = time.Now()
	})

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	s.group = group

	group.Go(func() error { return s.consumeEvents(groupCtx) })
	group.Go(func() error { return scheduler.Run(groupCtx) })
	group.Go(func() error { return s.resolveLoop(groupCtx) })

	// Resolve the starting exit before any rotation happens.
	s.triggerResolve(0)

	s.logger.Info("session connected", "control", s.cfg.ControlAddr, "socks", s.cfg.SocksAddr)
	return nil
}

// RotateNow requests an immediate rotation. Policy refusals surface as
// rotation.ErrRotationRefused; a request during an in-flight rotation is
// coalesced and returns nil.
func (s *Session) RotateNow(ctx context.Context) error {
	if s.scheduler == nil {
		return ErrNotConnected
	}
	return s.scheduler.RequestNow(ctx)
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	snap := s.state.snapshot()
	if s.scheduler != nil {
		// Skip/failure counters live in the scheduler; fold them in so a
		// snapshot is complete without the scheduler updating state on
		// every refusal.
		snap.Rotations = s.scheduler.Stats()
		snap.LastRotationAt = s.scheduler.LastRotation()
	}
	return snap
}

// Circuits returns the daemon's current circuit list.
func (s *Session) Circuits(ctx context.Context) ([]model.Circuit, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.conn.CircuitStatus(ctx)
}

// WaitForCircuits polls circuit-status until at least one BUILT
// general-purpose circuit exists, bounded to 30 seconds.
func (s *Session) WaitForCircuits(ctx context.Context) error {
	if s.conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, circuitWaitBound)
	defer cancel()

	ticker := time.NewTicker(circuitPollInterval)
	defer ticker.Stop()

	for {
		circuits, err := s.conn.CircuitStatus(ctx)
		if err != nil {
			return err
		}
		for _, c := range circuits {
			if c.IsUsable() {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNoUsableCircuit, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Shutdown stops the background loops and closes the control connection.
// Idempotent; safe on a never-connected session.
func (s *Session) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close() //nolint:errcheck // Close is idempotent and error-free
	}

	var err error
	if s.group != nil {
		err = s.group.Wait()
		if errors.Is(err, context.Canceled) || errors.Is(err, control.ErrSessionClosed) {
			err = nil
		}
	}

	s.state.update(func(st *Snapshot) {
		st.Connected = false
	})
	s.logger.Info("session shut down")
	return err
}

// onRotated runs after each confirmed rotation: the old exit record is no
// longer true, so it is cleared and a fresh resolution is scheduled.
func (s *Session) onRotated(seq uint64) {
	s.state.update(func(st *Snapshot) {
		st.Exit = nil
		st.Rotations.Count = seq
		st.LastRotationAt = time.Now()
		st.LastError = ""
	})
	s.triggerResolve(seq)
}

// onRotationFailed records why a rotation failed or was refused. The next
// confirmed rotation clears it, so a recovered failure still leaves its
// trace until then.
func (s *Session) onRotationFailed(err error) {
	s.state.update(func(st *Snapshot) {
		st.LastError = err.Error()
	})
}

// triggerResolve schedules an exit resolution, replacing any queued one.
func (s *Session) triggerResolve(seq uint64) {
	s.latestSeq.Store(seq)
	select {
	case <-s.resolveCh:
	default:
	}
	select {
	case s.resolveCh <- seq:
	default:
	}
}

// resolveLoop serializes exit resolutions and persists results.
func (s *Session) resolveLoop(ctx context.Context) error {
	for {
		var seq uint64
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seq = <-s.resolveCh:
		}

		if s.recorder != nil && seq > 0 {
			if err := s.recorder.RecordRotation(ctx, seq, true); err != nil {
				s.logger.Warn("failed to record rotation", "error", err)
			}
		}

		record, err := s.tracker.Resolve(ctx, seq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("exit resolution failed", "rotation", seq, "error", err)
			s.state.update(func(st *Snapshot) {
				st.LastError = err.Error()
			})
			continue
		}

		if latest := s.latestSeq.Load(); seq != latest {
			// A newer rotation confirmed while this lookup was in flight,
			// so the record describes the previous circuit's exit.
			s.logger.Debug("discarding outdated exit resolution",
				"rotation", seq, "latest", latest)
			continue
		}

		s.state.update(func(st *Snapshot) {
			st.Exit = record
			st.LastError = ""
		})
		s.logger.Info("exit node resolved",
			"address", record.Address,
			"location", record.Location(),
			"is_exit", record.IsTorExit,
			"rotation", seq)

		if s.recorder != nil {
			if err := s.recorder.RecordExit(ctx, record); err != nil {
				s.logger.Warn("failed to record exit", "error", err)
			}
		}
	}
}

// consumeEvents folds asynchronous daemon events into the state. It exits
// when the subscriber channel closes, which happens exactly once, when the
// connection shuts down.
func (s *Session) consumeEvents(ctx context.Context) error {
	events, cancel := s.conn.Subscribe()
	defer cancel()

	// Circuit status by ID, to keep BuiltCircuits accurate as circuits
	// move through their lifecycle.
	circuits := make(map[string]string)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.state.update(func(st *Snapshot) {
					st.Connected = false
				})
				return control.ErrSessionClosed
			}
			s.applyEvent(ev, circuits)
		}
	}
}

// applyEvent updates state for one event.
func (s *Session) applyEvent(ev control.Event, circuits map[string]string) {
	switch ev.Type {
	case control.EventCircuit:
		switch ev.Circuit.Status {
		case model.CircuitStatusClosed, model.CircuitStatusFailed:
			delete(circuits, ev.Circuit.ID)
		default:
			circuits[ev.Circuit.ID] = ev.Circuit.Status
		}
		built := 0
		for _, status := range circuits {
			if status == model.CircuitStatusBuilt {
				built++
			}
		}
		s.state.update(func(st *Snapshot) {
			st.BuiltCircuits = built
		})
		s.logger.Debug("circuit event",
			"circuit", ev.Circuit.ID, "status", ev.Circuit.Status)

	case control.EventBandwidth:
		s.state.update(func(st *Snapshot) {
			st.Bandwidth.BytesRead += ev.Bandwidth.BytesRead
			st.Bandwidth.BytesWritten += ev.Bandwidth.BytesWritten
		})

	case control.EventStream:
		s.logger.Debug("stream event",
			"stream", ev.Stream.ID,
			"status", ev.Stream.Status,
			"circuit", ev.Stream.CircuitID)

	default:
		s.logger.Debug("unhandled event", "raw", ev.Raw)
	}
}
