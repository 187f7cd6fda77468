package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
	"github.com/iBuildiPawn/RustTaTor/internal/session"
)

// MarkdownWriter renders GitHub-flavored Markdown for documentation and
// sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given
// writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteStatus renders the snapshot as a property table.
func (w *MarkdownWriter) WriteStatus(snap session.Snapshot) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Session Status")
	md.PlainText("")

	rows := [][]string{
		{"Connected", yesNo(snap.Connected)},
		{"Exit Node", "`" + exitText(snap.Exit) + "`"},
		{"Rotations", strconv.FormatUint(snap.Rotations.Count, 10)},
		{"Skipped", strconv.FormatUint(snap.Rotations.Skipped, 10)},
		{"Failed", strconv.FormatUint(snap.Rotations.Failed, 10)},
		{"Built Circuits", strconv.Itoa(snap.BuiltCircuits)},
		{"Bandwidth Read", formatBytes(snap.Bandwidth.BytesRead)},
		{"Bandwidth Written", formatBytes(snap.Bandwidth.BytesWritten)},
	}
	if snap.Exit != nil {
		rows = append(rows, []string{"Verified Exit", yesNo(snap.Exit.IsTorExit)})
	}
	if !snap.LastRotationAt.IsZero() {
		rows = append(rows, []string{"Last Rotation", snap.LastRotationAt.Format(timeLayout)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if snap.LastError != "" {
		md.Warningf("Last error: %s", snap.LastError)
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// WriteHistory renders exit records as a table, newest first.
func (w *MarkdownWriter) WriteHistory(records []model.ExitNodeRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Exit History")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No exit history recorded.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.ResolvedAt.Format(timeLayout),
			strconv.FormatUint(r.RotationSeq, 10),
			"`" + r.Address + "`",
			r.Location(),
			yesNo(r.IsTorExit),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Resolved", "Rotation", "Address", "Location", "Verified"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}
