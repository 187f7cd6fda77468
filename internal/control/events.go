package control

import (
	"strconv"
	"strings"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
)

// EventType tags an asynchronous event.
type EventType int

// Event variants. Unknown covers both event keywords this controller does
// not model and lines the parser could not classify at all; in either case
// the raw line is preserved so no information is lost.
const (
	EventUnknown EventType = iota
	EventCircuit
	EventStream
	EventBandwidth
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventCircuit:
		return "circuit"
	case EventStream:
		return "stream"
	case EventBandwidth:
		return "bandwidth"
	default:
		return "unknown"
	}
}

// StreamStatus is a parsed STREAM event: one application stream changing
// state on a circuit.
type StreamStatus struct {
	// ID is the daemon-assigned stream identifier.
	ID string

	// Status is the stream status keyword (NEW, SUCCEEDED, CLOSED, ...).
	Status string

	// CircuitID is the circuit carrying the stream, "0" if unattached.
	CircuitID string

	// Target is the destination in "host:port" form.
	Target string
}

// BandwidthUpdate is a parsed BW event: bytes moved in the last second.
type BandwidthUpdate struct {
	BytesRead    uint64
	BytesWritten uint64
}

// Event is one asynchronous notification from the daemon. Exactly one of
// the typed fields is non-nil, selected by Type; Raw always holds the
// original payload.
type Event struct {
	Type EventType
	Raw  string

	Circuit   *model.Circuit
	Stream    *StreamStatus
	Bandwidth *BandwidthUpdate
}

// ParseEvent parses the payload of a 650 line (the text after the status
// code and separator) into a typed event. Payloads that do not match a known
// keyword, or that match but are truncated, come back as Unknown.
func ParseEvent(raw string) Event {
	keyword, rest, _ := strings.Cut(raw, " ")

	switch keyword {
	case "CIRC":
		if circuit, ok := parseCircuitLine(rest); ok {
			return Event{Type: EventCircuit, Raw: raw, Circuit: circuit}
		}
	case "STREAM":
		if stream, ok := parseStreamLine(rest); ok {
			return Event{Type: EventStream, Raw: raw, Stream: stream}
		}
	case "BW":
		if bw, ok := parseBandwidthLine(rest); ok {
			return Event{Type: EventBandwidth, Raw: raw, Bandwidth: bw}
		}
	}

	return Event{Type: EventUnknown, Raw: raw}
}

// parseCircuitLine parses "<id> <status> [path] [key=value]..." as used by
// both CIRC events and GETINFO circuit-status values.
func parseCircuitLine(line string) (*model.Circuit, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, false
	}

	circuit := &model.Circuit{
		ID:     fields[0],
		Status: fields[1],
	}

	for _, field := range fields[2:] {
		switch {
		case strings.HasPrefix(field, "$"):
			circuit.Path = parseCircuitPath(field)
		case strings.HasPrefix(field, "PURPOSE="):
			circuit.Purpose = strings.TrimPrefix(field, "PURPOSE=")
		}
	}

	return circuit, true
}

// parseCircuitPath splits a "$FP1~nick1,$FP2=nick2" path into bare
// fingerprints. The daemon uses '~' before an unverified nickname and '='
// before a verified one; either way only the fingerprint identifies the
// relay.
func parseCircuitPath(field string) []string {
	hops := strings.Split(field, ",")
	path := make([]string, 0, len(hops))
	for _, hop := range hops {
		hop = strings.TrimPrefix(hop, "$")
		if i := strings.IndexAny(hop, "~="); i >= 0 {
			hop = hop[:i]
		}
		if hop != "" {
			path = append(path, hop)
		}
	}
	return path
}

// parseStreamLine parses "<id> <status> <circuitID> <target> ...".
func parseStreamLine(line string) (*StreamStatus, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, false
	}
	return &StreamStatus{
		ID:        fields[0],
		Status:    fields[1],
		CircuitID: fields[2],
		Target:    fields[3],
	}, true
}

// parseBandwidthLine parses "<bytesRead> <bytesWritten>".
func parseBandwidthLine(line string) (*BandwidthUpdate, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, false
	}

	read, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil, false
	}
	written, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, false
	}

	return &BandwidthUpdate{BytesRead: read, BytesWritten: written}, true
}
