package control

import (
	"reflect"
	"testing"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "circuit built with path and purpose",
			raw:  "CIRC 4 BUILT $A1B2~alpha,$C3D4=beta PURPOSE=GENERAL",
			want: Event{
				Type: EventCircuit,
				Raw:  "CIRC 4 BUILT $A1B2~alpha,$C3D4=beta PURPOSE=GENERAL",
				Circuit: &model.Circuit{
					ID:      "4",
					Status:  "BUILT",
					Path:    []string{"A1B2", "C3D4"},
					Purpose: "GENERAL",
				},
			},
		},
		{
			name: "circuit launched without path",
			raw:  "CIRC 12 LAUNCHED",
			want: Event{
				Type:    EventCircuit,
				Raw:     "CIRC 12 LAUNCHED",
				Circuit: &model.Circuit{ID: "12", Status: "LAUNCHED"},
			},
		},
		{
			name: "stream succeeded",
			raw:  "STREAM 18 SUCCEEDED 4 api.ipify.org:443",
			want: Event{
				Type: EventStream,
				Raw:  "STREAM 18 SUCCEEDED 4 api.ipify.org:443",
				Stream: &StreamStatus{
					ID:        "18",
					Status:    "SUCCEEDED",
					CircuitID: "4",
					Target:    "api.ipify.org:443",
				},
			},
		},
		{
			name: "bandwidth update",
			raw:  "BW 1024 2048",
			want: Event{
				Type:      EventBandwidth,
				Raw:       "BW 1024 2048",
				Bandwidth: &BandwidthUpdate{BytesRead: 1024, BytesWritten: 2048},
			},
		},
		{
			name: "unmodeled keyword",
			raw:  "ADDRMAP example.com 93.184.216.34 NEVER",
			want: Event{Type: EventUnknown, Raw: "ADDRMAP example.com 93.184.216.34 NEVER"},
		},
		{
			name: "truncated circuit line",
			raw:  "CIRC 4",
			want: Event{Type: EventUnknown, Raw: "CIRC 4"},
		},
		{
			name: "non-numeric bandwidth",
			raw:  "BW lots more",
			want: Event{Type: EventUnknown, Raw: "BW lots more"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseEvent(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseEvent(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseCircuitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field string
		want  []string
	}{
		{
			name:  "unverified nicknames",
			field: "$AAAA~alpha,$BBBB~beta",
			want:  []string{"AAAA", "BBBB"},
		},
		{
			name:  "verified nickname separator",
			field: "$AAAA=alpha",
			want:  []string{"AAAA"},
		},
		{
			name:  "bare fingerprints",
			field: "$AAAA,$BBBB,$CCCC",
			want:  []string{"AAAA", "BBBB", "CCCC"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseCircuitPath(tt.field)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCircuitPath(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestEventTypeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  EventType
		want string
	}{
		{EventCircuit, "circuit"},
		{EventStream, "stream"},
		{EventBandwidth, "bandwidth"},
		{EventUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("EventType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
