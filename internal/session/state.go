package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
)

// BandwidthTotals accumulates the daemon's per-second bandwidth events.
type BandwidthTotals struct {
	BytesRead    uint64
	BytesWritten uint64
}

// Snapshot is one consistent view of the session. Snapshots are immutable
// once published; the Exit pointer, when set, refers to a record that is
// never modified afterwards.
type Snapshot struct {
	// Connected reports whether the control connection is live.
	Connected bool

	// StartedAt is when the session connected, zero before Connect.
	StartedAt time.Time

	// Exit is the last resolved exit node, nil while unresolved (including
	// the window right after a rotation).
	Exit *model.ExitNodeRecord

	// Rotations holds the rotation counters. Count is monotonic for the
	// lifetime of the session.
	Rotations model.RotationStats

	// LastRotationAt is the time of the last confirmed rotation.
	LastRotationAt time.Time

	// LastError describes the most recent lookup or rotation failure,
	// empty after a success.
	LastError string

	// BuiltCircuits is the number of circuits currently in BUILT state,
	// tracked from circuit events.
	BuiltCircuits int

	// Bandwidth accumulates bytes moved through the daemon.
	Bandwidth BandwidthTotals
}

// stateStore publishes snapshots with swap-on-write. Readers load the
// current pointer without locking; the mutex serializes writers so an
// update never loses a concurrent one.
type stateStore struct {
	mu  sync.Mutex
	ptr atomic.Pointer[Snapshot]
}

func newStateStore() *stateStore {
	s := &stateStore{}
	s.ptr.Store(&Snapshot{})
	return s
}

// snapshot returns a copy of the current state.
func (s *stateStore) snapshot() Snapshot {
	return *s.ptr.Load()
}

// update applies fn to a copy of the current snapshot and publishes it.
func (s *stateStore) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.ptr.Load()
	fn(&next)
	s.ptr.Store(&next)
}
