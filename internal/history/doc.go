// Package history persists exit records and rotation events to SQLite.
//
// The store is optional: the session runs fine without one, and everything
// here is only wired in when history tracking is explicitly enabled. One
// writer, WAL journal, schema created on open.
package history
