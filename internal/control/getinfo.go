package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/iBuildiPawn/RustTaTor/internal/model"
)

// GetInfo issues "GETINFO <key>" and returns the value lines.
// Depending on value size the daemon answers with either "250-key=value"
// continuations or a "250+key=" data block; both shapes come back as a flat
// slice with the "key=" prefix stripped from the first line.
func (c *Conn) GetInfo(ctx context.Context, key string) ([]string, error) {
	reply, err := c.SendCommand(ctx, "GETINFO "+key)
	if err != nil {
		return nil, err
	}
	if !reply.IsOK() {
		return nil, fmt.Errorf("GETINFO %s failed: %s", key, reply.String())
	}

	var values []string
	prefix := key + "="
	for _, v := range reply.Values() {
		if v == "OK" {
			continue
		}
		v = strings.TrimPrefix(v, prefix)
		if v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}

// CircuitStatus returns the daemon's current circuit list.
func (c *Conn) CircuitStatus(ctx context.Context) ([]model.Circuit, error) {
	values, err := c.GetInfo(ctx, "circuit-status")
	if err != nil {
		return nil, err
	}

	circuits := make([]model.Circuit, 0, len(values))
	for _, line := range values {
		if circuit, ok := parseCircuitLine(line); ok {
			circuits = append(circuits, *circuit)
		}
	}
	return circuits, nil
}

// RelayNickname resolves a relay fingerprint to its nickname via the
// network-status entry. Returns a truncated fingerprint when the daemon has
// no entry, so circuit paths always render something identifiable.
func (c *Conn) RelayNickname(ctx context.Context, fingerprint string) string {
	values, err := c.GetInfo(ctx, "ns/id/"+fingerprint)
	if err != nil {
		return shortFingerprint(fingerprint)
	}

	// The router status entry's "r" line is "r <nickname> <identity> ...".
	for _, line := range values {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "r" {
			return fields[1]
		}
	}
	return shortFingerprint(fingerprint)
}

// shortFingerprint abbreviates a 40-character fingerprint for display.
func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 8 {
		return fingerprint[:8]
	}
	return fingerprint
}

// SetEvents subscribes the connection to the given asynchronous event
// keywords (e.g., "CIRC", "STREAM", "BW"), replacing any previous
// subscription. An empty list unsubscribes from everything.
func (c *Conn) SetEvents(ctx context.Context, keywords ...string) error {
	cmd := "SETEVENTS"
	if len(keywords) > 0 {
		cmd += " " + strings.Join(keywords, " ")
	}

	reply, err := c.SendCommand(ctx, cmd)
	if err != nil {
		return err
	}
	if !reply.IsOK() {
		return fmt.Errorf("SETEVENTS failed: %s", reply.String())
	}
	return nil
}

// Signal sends "SIGNAL <name>" (e.g., NEWNYM, CLEARDNSCACHE).
// A non-250 reply is returned as an error carrying the daemon's text.
func (c *Conn) Signal(ctx context.Context, name string) error {
	reply, err := c.SendCommand(ctx, "SIGNAL "+name)
	if err != nil {
		return err
	}
	if !reply.IsOK() {
		return fmt.Errorf("SIGNAL %s refused: %s", name, reply.String())
	}
	return nil
}
