package control

import "strings"

// Reply status codes the controller distinguishes. The daemon defines many
// more; everything else is handled generically by its first digit.
const (
	// StatusOK is the success status for most commands.
	StatusOK = 250

	// StatusAuthRequired is returned to commands sent before authentication.
	StatusAuthRequired = 514

	// StatusAuthRejected is returned when AUTHENTICATE credentials are bad.
	StatusAuthRejected = 515

	// asyncStatusFloor is the lowest status code used for asynchronous
	// events. All 6xx lines are events, never command replies.
	asyncStatusFloor = 600
)

// Line separators in the reply grammar.
const (
	// sepFinal terminates a reply: "250 OK".
	sepFinal = ' '

	// sepContinue marks an intermediate line: "250-SOCKSPORT=9052".
	sepContinue = '-'

	// sepData starts a multi-line data block: "250+circuit-status=".
	// The block ends with a line containing a single '.'.
	sepData = '+'
)

// lineKind tags a parsed raw line. Exactly one destination exists per line:
// sync lines go to the oldest pending command, event lines to subscribers,
// and malformed lines surface as Unknown events so nothing is dropped.
type lineKind int

const (
	lineSync lineKind = iota
	lineEvent
	lineMalformed
)

// parsedLine is one raw line split against the reply grammar.
type parsedLine struct {
	kind   lineKind
	status int
	sep    byte
	text   string
	raw    string
}

// parseLine splits a raw line (CRLF already trimmed) against the grammar
// <3-digit status><'-'|' '|'+'><text>. Lines that do not match are tagged
// malformed; the caller surfaces them as Unknown events.
func parseLine(raw string) parsedLine {
	if len(raw) < 4 {
		return parsedLine{kind: lineMalformed, raw: raw}
	}

	status := 0
	for i := range 3 {
		c := raw[i]
		if c < '0' || c > '9' {
			return parsedLine{kind: lineMalformed, raw: raw}
		}
		status = status*10 + int(c-'0')
	}

	sep := raw[3]
	if sep != sepFinal && sep != sepContinue && sep != sepData {
		return parsedLine{kind: lineMalformed, raw: raw}
	}

	kind := lineSync
	if status >= asyncStatusFloor {
		kind = lineEvent
	}

	return parsedLine{
		kind:   kind,
		status: status,
		sep:    sep,
		text:   raw[4:],
		raw:    raw,
	}
}

// ReplyLine is one line of a synchronous reply.
type ReplyLine struct {
	// Status is the 3-digit code of this line.
	Status int

	// Text is the line's payload after the separator.
	Text string

	// Data holds the body of a multi-line data block when this line was
	// introduced with '+'. Nil for ordinary lines.
	Data []string
}

// Reply is a complete synchronous reply: zero or more continuation lines
// followed by exactly one final line.
type Reply struct {
	// Status is the code of the final line, which determines success.
	Status int

	// Lines holds every line of the reply in arrival order, final line last.
	Lines []ReplyLine
}

// IsOK reports whether the reply's final status is 250.
func (r *Reply) IsOK() bool {
	return r.Status == StatusOK
}

// Text returns the payload of the final line.
func (r *Reply) Text() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[len(r.Lines)-1].Text
}

// Values flattens the reply into individual payload lines: each reply line's
// text, with data-block bodies expanded in place. GETINFO answers arrive as
// either "250-key=value" continuations or "250+key=" data blocks depending on
// value size; Values lets callers parse both shapes the same way.
func (r *Reply) Values() []string {
	var values []string
	for _, line := range r.Lines {
		if line.Text != "" {
			values = append(values, line.Text)
		}
		values = append(values, line.Data...)
	}
	return values
}

// String renders the reply for logs and error messages, separated by " / ".
func (r *Reply) String() string {
	parts := make([]string, 0, len(r.Lines))
	for _, line := range r.Lines {
		parts = append(parts, line.Text)
	}
	return strings.Join(parts, " / ")
}
