package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
)

// State is the scheduler's position in the rotation lifecycle.
type State int

// Scheduler states. Idle waits for the next trigger, RotationRequested
// covers the short window between accepting a request and putting the signal
// on the wire, AwaitingConfirmation waits for the daemon's reply, and Backoff
// delays the next attempt after a failure.
const (
	StateIdle State = iota
	StateRotationRequested
	StateAwaitingConfirmation
	StateBackoff
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRotationRequested:
		return "rotation_requested"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Signaler issues control-port signals. *control.Conn satisfies it.
type Signaler interface {
	Signal(ctx context.Context, name string) error
}

// Scheduler drives circuit rotations against one Signaler.
// All methods are safe for concurrent use.
type Scheduler struct {
	signaler Signaler
	policy   Policy
	logger   *slog.Logger
	limiter  *rate.Limiter

	// onRotated runs after each confirmed rotation with the new rotation
	// sequence number. Called outside the scheduler lock.
	onRotated func(seq uint64)

	// onFailed runs after each failed or refused rotation with the error.
	// Called outside the scheduler lock.
	onFailed func(err error)

	mu           sync.Mutex
	state        State
	lastRotation time.Time
	backoff      time.Duration // delay for the next failure, doubled after each
	nextDelay    time.Duration // delay currently imposed while in Backoff
	backoffUntil time.Time     // when the current Backoff expires
	stats        model.RotationStats
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger. Defaults to slog.Default().
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithOnRotated registers a callback invoked after each confirmed rotation.
func WithOnRotated(fn func(seq uint64)) SchedulerOption {
	return func(s *Scheduler) {
		s.onRotated = fn
	}
}

// WithOnFailed registers a callback invoked whenever a rotation fails or is
// refused by policy, with the error that stopped it.
func WithOnFailed(fn func(err error)) SchedulerOption {
	return func(s *Scheduler) {
		s.onFailed = fn
	}
}

// NewScheduler builds a Scheduler for the given signaler and policy.
func NewScheduler(signaler Signaler, policy Policy, opts ...SchedulerOption) (*Scheduler, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		signaler: signaler,
		policy:   policy,
		backoff:  policy.BackoffInitial,
		// Tokens refill at the hourly rate but the full budget may be spent
		// in a burst; MinSpacing is what paces individual rotations.
		limiter: rate.NewLimiter(rate.Every(time.Hour/time.Duration(policy.MaxPerHour)), policy.MaxPerHour),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// State returns the current scheduler state. Backoff expires on its own:
// once the delay has passed the scheduler is Idle again, whether or not
// another rotation has been attempted since.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateBackoff && !time.Now().Before(s.backoffUntil) {
		s.state = StateIdle
	}
	return s.state
}

// Stats returns a copy of the rotation counters.
func (s *Scheduler) Stats() model.RotationStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// LastRotation returns the time of the last confirmed rotation, zero if none.
func (s *Scheduler) LastRotation() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRotation
}

// RequestNow asks for an immediate rotation. Policy refusals return
// ErrRotationRefused; a request while a rotation is already in flight is
// coalesced into it and returns nil.
func (s *Scheduler) RequestNow(ctx context.Context) error {
	return s.rotate(ctx)
}

// Run drives the periodic rotation loop until ctx is canceled. Interval
// firings that policy refuses are counted as skips, not errors; a failed
// rotation stretches the next firing to the current backoff delay.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(s.policy.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Cancellation drops the armed timer without firing.
			return ctx.Err()
		case <-timer.C:
		}

		next := s.policy.Interval
		if err := s.rotate(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if delay, inBackoff := s.backoffDelay(); inBackoff {
				next = delay
			}
			s.logger.Warn("scheduled rotation failed",
				"error", err,
				"next_attempt_in", next)
		}
		timer.Reset(next)
	}
}

// backoffDelay reports the delay to the next attempt while in Backoff.
func (s *Scheduler) backoffDelay() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateBackoff {
		return 0, false
	}
	return s.nextDelay, true
}

// rotate runs one full rotation attempt.
func (s *Scheduler) rotate(ctx context.Context) error {
	proceed, err := s.begin()
	if err != nil {
		s.notifyFailed(err)
		return err
	}
	if !proceed {
		return nil
	}

	// Flushing the DNS cache alongside the identity switch keeps cached
	// resolutions from pinning traffic to the old exit. Best effort: an old
	// daemon without the signal must not abort the rotation.
	if err := s.signaler.Signal(ctx, "CLEARDNSCACHE"); err != nil {
		s.logger.Debug("CLEARDNSCACHE not accepted", "error", err)
	}

	s.setState(StateAwaitingConfirmation)

	if err := s.signaler.Signal(ctx, "NEWNYM"); err != nil {
		s.fail()
		failErr := fmt.Errorf("%w: %v", ErrRotationFailed, err)
		s.notifyFailed(failErr)
		return failErr
	}

	seq := s.confirm()
	s.logger.Info("circuit rotation confirmed", "rotation", seq)
	if s.onRotated != nil {
		s.onRotated(seq)
	}
	return nil
}

// begin applies policy and claims the in-flight slot. proceed is false when
// the request was coalesced into a rotation already in flight.
func (s *Scheduler) begin() (proceed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRotationRequested, StateAwaitingConfirmation:
		// Coalesced: the in-flight rotation satisfies this request too.
		s.logger.Debug("rotation request coalesced into in-flight rotation")
		return false, nil
	}

	if !s.lastRotation.IsZero() {
		if since := time.Since(s.lastRotation); since < s.policy.MinSpacing {
			s.stats.Skipped++
			return false, fmt.Errorf("%w: %v since last rotation, minimum spacing %v",
				ErrRotationRefused, since.Round(time.Millisecond), s.policy.MinSpacing)
		}
	}

	if !s.limiter.Allow() {
		s.stats.Skipped++
		return false, fmt.Errorf("%w: hourly cap of %d reached", ErrRotationRefused, s.policy.MaxPerHour)
	}

	s.state = StateRotationRequested
	return true, nil
}

// setState moves the scheduler while a rotation is in flight.
func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// confirm records a successful rotation and resets backoff.
func (s *Scheduler) confirm() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Count++
	s.lastRotation = time.Now()
	s.backoff = s.policy.BackoffInitial
	s.nextDelay = 0
	s.state = StateIdle
	return s.stats.Count
}

// fail records a failed rotation and doubles the backoff up to the ceiling.
func (s *Scheduler) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Failed++
	s.state = StateBackoff
	s.nextDelay = s.backoff
	s.backoffUntil = time.Now().Add(s.nextDelay)
	s.backoff *= 2
	if s.backoff > s.policy.BackoffCeiling {
		s.backoff = s.policy.BackoffCeiling
	}
}

// notifyFailed reports a failed or refused rotation to the registered
// callback.
func (s *Scheduler) notifyFailed(err error) {
	if s.onFailed != nil {
		s.onFailed(err)
	}
}
