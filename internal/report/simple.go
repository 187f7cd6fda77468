package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
	"github.com/iBuildiPawn/RustTaTor/internal/session"
)

// timeLayout is the display format for timestamps.
const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter renders plain text for terminals.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{baseWriter: newBaseWriter(output)}
}

// WriteStatus renders the snapshot as an aligned key/value block.
func (w *SimpleWriter) WriteStatus(snap session.Snapshot) (int, error) {
	var b strings.Builder

	b.WriteString("Session Status\n")
	fmt.Fprintf(&b, "  Connected:      %s\n", yesNo(snap.Connected))
	if !snap.StartedAt.IsZero() {
		fmt.Fprintf(&b, "  Started:        %s\n", snap.StartedAt.Format(timeLayout))
	}
	fmt.Fprintf(&b, "  Exit Node:      %s\n", exitText(snap.Exit))
	if snap.Exit != nil {
		fmt.Fprintf(&b, "  Verified Exit:  %s\n", yesNo(snap.Exit.IsTorExit))
	}
	fmt.Fprintf(&b, "  Rotations:      %d (skipped %d, failed %d)\n",
		snap.Rotations.Count, snap.Rotations.Skipped, snap.Rotations.Failed)
	if !snap.LastRotationAt.IsZero() {
		fmt.Fprintf(&b, "  Last Rotation:  %s\n", snap.LastRotationAt.Format(timeLayout))
	}
	fmt.Fprintf(&b, "  Built Circuits: %d\n", snap.BuiltCircuits)
	fmt.Fprintf(&b, "  Bandwidth:      %s read, %s written\n",
		formatBytes(snap.Bandwidth.BytesRead), formatBytes(snap.Bandwidth.BytesWritten))
	if snap.LastError != "" {
		fmt.Fprintf(&b, "  Last Error:     %s\n", snap.LastError)
	}

	return io.WriteString(w.output, b.String())
}

// WriteHistory renders exit records as one line each, newest first.
func (w *SimpleWriter) WriteHistory(records []model.ExitNodeRecord) (int, error) {
	var b strings.Builder

	if len(records) == 0 {
		b.WriteString("No exit history recorded.\n")
		return io.WriteString(w.output, b.String())
	}

	fmt.Fprintf(&b, "Exit History (%d records)\n", len(records))
	for _, r := range records {
		verified := ""
		if r.IsTorExit {
			verified = " [verified]"
		}
		fmt.Fprintf(&b, "  %s  rotation %-4d %s (%s)%s\n",
			r.ResolvedAt.Format(timeLayout), r.RotationSeq, r.Address, r.Location(), verified)
	}

	return io.WriteString(w.output, b.String())
}
