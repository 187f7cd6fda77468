package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// AuthState is the authentication state of a control session.
type AuthState int32

// Authentication states. A session moves strictly forward:
// Unauthenticated -> Authenticating -> Authenticated, and any state can
// transition to Closed. There is no way back from Closed.
const (
	StateUnauthenticated AuthState = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

// String returns a human-readable state name.
func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// preAuthCommands are the only commands accepted locally before the session
// is authenticated. The daemon would reject anything else with a 514 anyway;
// gating locally keeps the failure mode deterministic and off the wire.
var preAuthCommands = map[string]bool{
	"PROTOCOLINFO":  true,
	"AUTHENTICATE":  true,
	"AUTHCHALLENGE": true,
	"QUIT":          true,
}

// subscriberBuffer is the per-subscriber event channel capacity. The read
// loop blocks when a subscriber's buffer is full rather than dropping events,
// so subscribers must drain their channels promptly.
const subscriberBuffer = 32

// commandResult carries a completed reply (or failure) to the waiting sender.
type commandResult struct {
	reply *Reply
	err   error
}

// pendingCommand is a command awaiting exactly one synchronous reply.
// It lives in the write queue, then in the pending FIFO, until its final
// reply line arrives or the session closes.
type pendingCommand struct {
	line  string
	lines []ReplyLine

	once sync.Once
	ch   chan commandResult // buffered; delivery never blocks the read loop
}

func newPendingCommand(line string) *pendingCommand {
	return &pendingCommand{line: line, ch: make(chan commandResult, 1)}
}

// deliver completes the command with a reply. Only the first of deliver/fail
// takes effect; a late reply after teardown is silently dropped.
func (p *pendingCommand) deliver(reply *Reply) {
	p.once.Do(func() { p.ch <- commandResult{reply: reply} })
}

// fail completes the command with an error.
func (p *pendingCommand) fail(err error) {
	p.once.Do(func() { p.ch <- commandResult{err: err} })
}

// Conn is an authenticated-or-authenticating control-port connection.
// It owns exactly one TCP socket. All methods are safe for concurrent use.
type Conn struct {
	conn   net.Conn
	logger *slog.Logger

	connectTimeout time.Duration
	commandTimeout time.Duration

	// writeCh is the command queue consumed by the writer goroutine.
	// Serializing writes through one goroutine guarantees that concurrent
	// senders never interleave command bytes on the socket.
	writeCh chan *pendingCommand

	// done is closed on teardown and unblocks every waiter.
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	pending     []*pendingCommand // FIFO, oldest first
	subscribers map[int]chan Event
	nextSubID   int
	closeReason error

	authState atomic.Int32
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithConnectTimeout bounds the TCP connect. Defaults to 10 seconds.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.connectTimeout = d
	}
}

// WithCommandTimeout bounds the wait for each synchronous reply.
// Defaults to 10 seconds.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.commandTimeout = d
	}
}

// Dial connects to the control port at addr ("host:port").
// The returned Conn is live but unauthenticated; call Authenticate before
// issuing any other command.
func Dial(ctx context.Context, addr string, opts ...Option) (*Conn, error) {
	c := &Conn{
		connectTimeout: 10 * time.Second,
		commandTimeout: 10 * time.Second,
		writeCh:        make(chan *pendingCommand, 16),
		done:           make(chan struct{}),
		subscribers:    make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, addr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionRefused, addr, err)
	}
	c.conn = conn

	go c.readLoop()
	go c.writeLoop()

	return c, nil
}

// newConn wraps an existing connection. Used by tests to drive the protocol
// over net.Pipe without a real daemon.
func newConn(conn net.Conn, opts ...Option) *Conn {
	c := &Conn{
		conn:           conn,
		connectTimeout: 10 * time.Second,
		commandTimeout: 10 * time.Second,
		writeCh:        make(chan *pendingCommand, 16),
		done:           make(chan struct{}),
		subscribers:    make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	go c.readLoop()
	go c.writeLoop()

	return c
}

// State returns the current authentication state.
func (c *Conn) State() AuthState {
	return AuthState(c.authState.Load())
}

// setState advances the authentication state. Closed is terminal.
func (c *Conn) setState(s AuthState) {
	if c.State() == StateClosed {
		return
	}
	c.authState.Store(int32(s))
}

// SendCommand submits one command line and waits for its complete reply.
// Replies with error statuses (4xx/5xx) are returned as a *Reply, not an
// error: transport success and command success are separate questions, and
// callers like the authenticator need to inspect rejected replies.
//
// On timeout the command stays in the pending FIFO so that its late reply is
// still consumed in order; only the caller stops waiting.
func (c *Conn) SendCommand(ctx context.Context, line string) (*Reply, error) {
	if err := c.gate(line); err != nil {
		return nil, err
	}

	p := newPendingCommand(line)

	select {
	case c.writeCh <- p:
	case <-c.done:
		return nil, c.reasonErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	timer := time.NewTimer(c.commandTimeout)
	defer timer.Stop()

	select {
	case res := <-p.ch:
		return res.reply, res.err
	case <-c.done:
		return nil, c.reasonErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		c.logger.Warn("control command timed out", "command", commandVerb(line))
		return nil, fmt.Errorf("%w: %s", ErrCommandTimeout, commandVerb(line))
	}
}

// gate rejects commands that are not valid in the current state.
func (c *Conn) gate(line string) error {
	switch c.State() {
	case StateClosed:
		return c.reasonErr()
	case StateAuthenticated:
		return nil
	default:
		if preAuthCommands[commandVerb(line)] {
			return nil
		}
		return fmt.Errorf("%w: refusing %q", ErrNotAuthenticated, commandVerb(line))
	}
}

// commandVerb extracts the command keyword for gating and logging.
// Only the verb is ever logged; arguments may carry credentials.
func commandVerb(line string) string {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		line = line[:i]
	}
	return strings.ToUpper(line)
}

// Subscribe registers for asynchronous events. The returned channel is
// closed when the connection shuts down. The cancel function removes the
// subscription; it is safe to call after close.
func (c *Conn) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscribers == nil {
		// Already shut down; hand back a closed channel so the consumer's
		// range loop terminates immediately.
		close(ch)
		return ch, func() {}
	}

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.subscribers != nil {
			delete(c.subscribers, id)
		}
	}
	return ch, cancel
}

// Close shuts the connection down. Pending commands fail with
// ErrSessionClosed and subscriber channels are closed. Idempotent.
func (c *Conn) Close() error {
	c.teardown(ErrSessionClosed)
	return nil
}

// reasonErr returns the error the connection was closed with, defaulting to
// ErrSessionClosed when teardown has not recorded a more specific cause.
func (c *Conn) reasonErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeReason != nil {
		return c.closeReason
	}
	return ErrSessionClosed
}

// teardown closes the socket and fails everything in flight. It runs at most
// once; later calls with a different reason are ignored.
func (c *Conn) teardown(reason error) {
	c.closeOnce.Do(func() {
		c.authState.Store(int32(StateClosed))

		c.mu.Lock()
		c.closeReason = reason
		pending := c.pending
		c.pending = nil
		c.mu.Unlock()

		close(c.done)
		_ = c.conn.Close() //nolint:errcheck // Socket teardown is best effort

		for _, p := range pending {
			p.fail(reason)
		}
	})
}

// writeLoop is the single writer. It moves each command into the pending
// FIFO immediately before writing it, so FIFO order always equals the order
// commands hit the wire.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			c.drainWriteQueue()
			return
		case p := <-c.writeCh:
			c.mu.Lock()
			if c.closeReason != nil {
				reason := c.closeReason
				c.mu.Unlock()
				p.fail(reason)
				continue
			}
			c.pending = append(c.pending, p)
			c.mu.Unlock()

			if _, err := c.conn.Write([]byte(p.line + "\r\n")); err != nil {
				c.teardown(fmt.Errorf("%w: write failed: %v", ErrSessionClosed, err))
				return
			}
			c.logger.Debug("control command sent", "command", commandVerb(p.line))
		}
	}
}

// drainWriteQueue fails commands that were queued but never written.
func (c *Conn) drainWriteQueue() {
	for {
		select {
		case p := <-c.writeCh:
			p.fail(c.reasonErr())
		default:
			return
		}
	}
}

// readLoop is the single reader and the demultiplexer. Every line it parses
// has exactly one destination: event lines fan out to subscribers, sync lines
// append to the oldest pending command, and malformed lines surface as
// Unknown events.
func (c *Conn) readLoop() {
	// The read loop is the only sender on subscriber channels, so it alone
	// may close them, after its final dispatch.
	defer func() {
		c.mu.Lock()
		subs := c.subscribers
		c.subscribers = nil
		c.mu.Unlock()
		for _, ch := range subs {
			close(ch)
		}
	}()

	reader := bufio.NewReader(c.conn)
	for {
		raw, err := reader.ReadString('\n')
		if err != nil {
			c.teardown(fmt.Errorf("%w: read failed: %v", ErrSessionClosed, err))
			return
		}
		raw = strings.TrimRight(raw, "\r\n")

		pl := parseLine(raw)
		switch pl.kind {
		case lineMalformed:
			// Surfaced, never dropped: a subscriber decides what a line the
			// parser cannot classify means.
			c.logger.Debug("malformed control line", "line", raw)
			c.dispatch(Event{Type: EventUnknown, Raw: raw})

		case lineEvent:
			c.dispatch(ParseEvent(pl.text))

		case lineSync:
			line := ReplyLine{Status: pl.status, Text: pl.text}
			if pl.sep == sepData {
				data, err := readDataBlock(reader)
				if err != nil {
					c.teardown(fmt.Errorf("%w: data block read failed: %v", ErrSessionClosed, err))
					return
				}
				line.Data = data
			}
			if ok := c.appendSyncLine(line, pl.sep == sepFinal); !ok {
				c.teardown(fmt.Errorf("%w: unexpected reply line %q", ErrProtocolDesync, raw))
				return
			}
		}
	}
}

// readDataBlock consumes a '+' data block up to its '.' terminator.
// Dot-stuffed lines ("..foo") are unescaped per the protocol.
func readDataBlock(reader *bufio.Reader) ([]string, error) {
	var data []string
	for {
		raw, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		raw = strings.TrimRight(raw, "\r\n")
		if raw == "." {
			return data, nil
		}
		raw = strings.TrimPrefix(raw, ".")
		data = append(data, raw)
	}
}

// appendSyncLine routes a sync line to the oldest pending command, completing
// it when the line is final. Returns false when no command is pending, which
// is a protocol desync.
func (c *Conn) appendSyncLine(line ReplyLine, final bool) bool {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return false
	}
	p := c.pending[0]
	p.lines = append(p.lines, line)
	if final {
		c.pending = c.pending[1:]
	}
	c.mu.Unlock()

	if final {
		p.deliver(&Reply{Status: line.Status, Lines: p.lines})
	}
	return true
}

// dispatch fans an event out to all current subscribers in registration
// order. Sends block until the subscriber drains or the connection closes;
// events are never dropped for an active subscriber.
func (c *Conn) dispatch(ev Event) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	chans := make([]chan Event, 0, len(ids))
	for _, id := range ids {
		chans = append(chans, c.subscribers[id])
	}
	c.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- ev:
		case <-c.done:
			return
		}
	}
}
