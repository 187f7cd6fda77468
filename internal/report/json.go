package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
	"github.com/iBuildiPawn/RustTaTor/internal/session"
)

// JSONWriter renders machine-readable output for tool integration.
type JSONWriter struct {
	baseWriter

	indent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// statusPayload is the JSON shape of a snapshot. Kept separate from the
// session type so the wire format stays stable under internal refactors.
type statusPayload struct {
	Connected      bool         `json:"connected"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
	Exit           *exitPayload `json:"exit,omitempty"`
	RotationCount  uint64       `json:"rotation_count"`
	Skipped        uint64       `json:"rotations_skipped"`
	Failed         uint64       `json:"rotations_failed"`
	LastRotationAt *time.Time   `json:"last_rotation_at,omitempty"`
	BuiltCircuits  int          `json:"built_circuits"`
	BytesRead      uint64       `json:"bytes_read"`
	BytesWritten   uint64       `json:"bytes_written"`
	LastError      string       `json:"last_error,omitempty"`
}

type exitPayload struct {
	Address     string    `json:"address"`
	CountryName string    `json:"country_name,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	City        string    `json:"city,omitempty"`
	IsTorExit   bool      `json:"is_tor_exit"`
	RotationSeq uint64    `json:"rotation_seq"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

func newExitPayload(r *model.ExitNodeRecord) *exitPayload {
	if r == nil {
		return nil
	}
	return &exitPayload{
		Address:     r.Address,
		CountryName: r.CountryName,
		CountryCode: r.CountryCode,
		City:        r.City,
		IsTorExit:   r.IsTorExit,
		RotationSeq: r.RotationSeq,
		ResolvedAt:  r.ResolvedAt,
	}
}

// WriteStatus renders the snapshot as one JSON object.
func (w *JSONWriter) WriteStatus(snap session.Snapshot) (int, error) {
	payload := statusPayload{
		Connected:     snap.Connected,
		Exit:          newExitPayload(snap.Exit),
		RotationCount: snap.Rotations.Count,
		Skipped:       snap.Rotations.Skipped,
		Failed:        snap.Rotations.Failed,
		BuiltCircuits: snap.BuiltCircuits,
		BytesRead:     snap.Bandwidth.BytesRead,
		BytesWritten:  snap.Bandwidth.BytesWritten,
		LastError:     snap.LastError,
	}
	if !snap.StartedAt.IsZero() {
		payload.StartedAt = &snap.StartedAt
	}
	if !snap.LastRotationAt.IsZero() {
		payload.LastRotationAt = &snap.LastRotationAt
	}
	return w.marshal(payload)
}

// WriteHistory renders exit records as a JSON array.
func (w *JSONWriter) WriteHistory(records []model.ExitNodeRecord) (int, error) {
	payload := make([]exitPayload, 0, len(records))
	for i := range records {
		payload = append(payload, *newExitPayload(&records[i]))
	}
	return w.marshal(payload)
}

func (w *JSONWriter) marshal(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
