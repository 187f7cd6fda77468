package report

import (
	"fmt"
	"io"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
	"github.com/iBuildiPawn/RustTaTor/internal/session"
)

// Writer renders session output in one format. Implementations write a
// status snapshot or an exit history to their configured destination.
type Writer interface {
	// WriteStatus renders one state snapshot.
	// Returns the number of bytes written and any error encountered.
	WriteStatus(snap session.Snapshot) (int, error)

	// WriteHistory renders stored exit records, newest first.
	WriteHistory(records []model.ExitNodeRecord) (int, error)
}

// baseWriter provides the shared output destination.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// yesNo renders a boolean for human-readable output.
func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// exitText renders an exit record for one-line display.
func exitText(record *model.ExitNodeRecord) string {
	if record == nil {
		return "(unresolved)"
	}
	return record.Address + " (" + record.Location() + ")"
}
