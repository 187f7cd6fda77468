// Package session ties the control connection, the rotation scheduler, and
// the exit-node tracker into one controller with an observable state.
//
// A Session owns one control connection and the goroutines around it: the
// event consumer that folds asynchronous circuit and bandwidth events into
// state, the periodic rotation loop, and the exit resolver that runs after
// each confirmed rotation. State is published as an immutable snapshot
// swapped in whole, so readers never observe a half-updated view.
//
// Reconnecting is the caller's policy: when the connection dies the session
// shuts down, the counters survive in the last snapshot, and a new Session
// starts transport and authentication from scratch.
package session
