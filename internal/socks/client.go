package socks

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 reachability check. Short on purpose:
// the check talks to a local port, not through the network.
const checkProxyTimeout = 2 * time.Second

// ProxyStatus is the result of a proxy reachability check.
type ProxyStatus int

// Proxy check outcomes.
const (
	// ProxyStatusOK means the proxy answered a SOCKS5 handshake.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusCannotConnect means nothing is listening on the address.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout means the check did not complete in time.
	ProxyStatusTimeout

	// ProxyStatusWrongType means something answered, but it does not speak
	// SOCKS5. Typically the control port or an unrelated service.
	ProxyStatusWrongType
)

// String returns a human-readable status description.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "ok"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	case ProxyStatusWrongType:
		return "not a SOCKS5 proxy"
	default:
		return "unknown"
	}
}

// Client routes connections through the daemon's SOCKS5 port. Every exit
// lookup must go through it; a direct request would reveal the real address
// and defeat the point of measuring the exit.
type Client struct {
	proxyAddress string
	dialer       proxy.Dialer
	timeout      time.Duration
}

// NewClient creates a client for the SOCKS5 proxy at proxyAddress
// ("host:port"). The address format is validated here; reachability is not.
// Call CheckConnection to verify the proxy is actually up.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// No auth: the daemon's SOCKS port does not use it.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

// isValidProxyAddress reports whether address is "host:port" with a port in
// range.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// SOCKS5 wire constants for the reachability check.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
	socks5CmdConnect   = 0x01
	socks5AddrDomain   = 0x03

	// checkTargetHost is a reserved name that can never resolve. The check
	// only needs the proxy to process the CONNECT request; the connection
	// itself is expected to fail.
	checkTargetHost = "proxy-check.invalid"
)

// CheckConnection verifies the proxy by running a real SOCKS5 handshake:
// version negotiation with no-auth, then a CONNECT to an unresolvable name.
// Any well-formed reply to the CONNECT, success or failure, proves the
// listener is a working SOCKS5 proxy.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close() //nolint:errcheck // Check connection, best effort close

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: offer no-auth only.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if authResp[0] != socks5Version || authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	// CONNECT to a name that cannot resolve. A listener that merely echoes
	// the greeting will not produce a well-formed reply here.
	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrDomain, byte(len(checkTargetHost))}
	req = append(req, checkTargetHost...)
	req = append(req, 0x00, 0x50) // port 80
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if reply[0] != socks5Version {
		return ProxyStatusWrongType
	}

	// Any reply code counts: the proxy processed the request, which is all
	// the check needs to know.
	return ProxyStatusOK
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}

// NewHTTPClient returns an HTTP client that routes every request through the
// proxy. Compression stays off so response sizes leak as little as possible
// across the circuit; the connection pool is small because each idle
// connection pins circuit resources. TLS verification stays on: lookups go
// to clearnet HTTPS services with real certificates.
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return c.DialContext(ctx, network, addr)
		},
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// DialContext opens a TCP connection through the proxy with cancellation
// support. proxy.Dialer has no context variant, so the dial runs in a
// goroutine; on cancellation the attempt may briefly continue in the
// background, and its connection is closed when it completes.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		go func() {
			if result := <-resultCh; result.conn != nil {
				_ = result.conn.Close() //nolint:errcheck // Abandoned dial cleanup
			}
		}()
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}
