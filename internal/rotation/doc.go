// Package rotation schedules circuit rotations against the control port.
//
// A Scheduler runs one rotation at a time through a small state machine
// (Idle, RotationRequested, AwaitingConfirmation, Backoff). Policy decides
// when a rotation may happen: a fixed interval drives periodic rotations,
// a minimum spacing refuses requests that arrive too soon after the last
// confirmed rotation, and an hourly rate limit caps the total. Requests
// that arrive while a rotation is already in flight are coalesced into it
// rather than queued.
//
// A failed or unconfirmed rotation moves the scheduler into Backoff with an
// exponentially growing delay, so a wedged daemon is never hammered.
package rotation
