// Package model defines the shared data types for the rustator session
// controller: exit-node records, circuit descriptions, and rotation counters.
//
// Types in this package are plain data with no behavior beyond formatting
// helpers. They are shared between the control, session, history, and report
// packages, which keeps those packages free of dependencies on each other.
package model
