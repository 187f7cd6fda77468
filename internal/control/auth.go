package control

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// SAFECOOKIE HMAC keys, fixed by the control protocol specification.
const (
	safeCookieServerKey = "Tor safe cookie authentication server-to-controller hash"
	safeCookieClientKey = "Tor safe cookie authentication controller-to-server hash"
)

// cookieLen is the exact size of a control auth cookie. A file of any other
// length is not a cookie, however it got there.
const cookieLen = 32

// safeCookieNonceLen is the client nonce size for AUTHCHALLENGE.
const safeCookieNonceLen = 32

// Authentication method keywords as advertised by PROTOCOLINFO.
const (
	authMethodNull           = "NULL"
	authMethodCookie         = "COOKIE"
	authMethodSafeCookie     = "SAFECOOKIE"
	authMethodHashedPassword = "HASHEDPASSWORD"
)

// AuthConfig carries the credentials available for the handshake.
type AuthConfig struct {
	// Password is the control password for HASHEDPASSWORD authentication.
	// Empty means password authentication is not attempted.
	Password string

	// CookieFile overrides the cookie path advertised by PROTOCOLINFO.
	CookieFile string
}

// protocolInfo is the parsed PROTOCOLINFO reply.
type protocolInfo struct {
	methods    map[string]bool
	cookieFile string
}

// Authenticate performs the control-port handshake. It must complete before
// any other command; the connection enforces this itself.
//
// Method selection follows PROTOCOLINFO: SAFECOOKIE is preferred because it
// never puts cookie bytes on the wire, then COOKIE, then HASHEDPASSWORD when
// a password is configured, then NULL. Exactly one AUTHENTICATE is sent: a
// rejected attempt closes the connection (the daemon drops controllers after
// failed attempts, so retrying another method in place is not an option),
// while a cookie file that cannot be read fails with ErrCookieUnreadable
// and leaves the session unauthenticated but open.
func (c *Conn) Authenticate(ctx context.Context, cfg AuthConfig) error {
	switch c.State() {
	case StateAuthenticated:
		return nil
	case StateClosed:
		return c.reasonErr()
	}

	reply, err := c.SendCommand(ctx, "PROTOCOLINFO 1")
	if err != nil {
		return fmt.Errorf("PROTOCOLINFO failed: %w", err)
	}
	if !reply.IsOK() {
		c.teardown(fmt.Errorf("%w: PROTOCOLINFO: %s", ErrAuthRejected, reply.String()))
		return c.reasonErr()
	}

	info := parseProtocolInfo(reply.Values())
	if cfg.CookieFile != "" {
		info.cookieFile = cfg.CookieFile
	}

	c.setState(StateAuthenticating)
	c.logger.Debug("authenticating to control port", "cookie_file", info.cookieFile)

	err = c.authenticateByBestMethod(ctx, cfg, info)
	if err != nil && c.State() != StateClosed {
		// Recoverable failure (unreadable cookie, no usable method): the
		// handshake never started, so the session drops back to square one.
		c.setState(StateUnauthenticated)
	}
	return err
}

// authenticateByBestMethod picks the strongest advertised method we can
// actually attempt and runs it.
func (c *Conn) authenticateByBestMethod(ctx context.Context, cfg AuthConfig, info protocolInfo) error {
	var cookieErr error

	if info.cookieFile != "" && (info.methods[authMethodSafeCookie] || info.methods[authMethodCookie]) {
		cookie, err := readCookie(info.cookieFile)
		if err != nil {
			// Fall through to password/null; remember why the cookie path
			// was unusable in case nothing else is available either.
			cookieErr = err
		} else {
			defer zeroBytes(cookie)
			if info.methods[authMethodSafeCookie] {
				return c.authenticateSafeCookie(ctx, cookie)
			}
			return c.sendAuthenticate(ctx, authMethodCookie, strings.ToUpper(hex.EncodeToString(cookie)))
		}
	}

	if cfg.Password != "" && info.methods[authMethodHashedPassword] {
		return c.sendAuthenticate(ctx, authMethodHashedPassword, quoteString(cfg.Password))
	}

	if info.methods[authMethodNull] || len(info.methods) == 0 {
		return c.sendAuthenticate(ctx, authMethodNull, "")
	}

	if cookieErr != nil {
		return cookieErr
	}
	return fmt.Errorf("%w: daemon offers %s", ErrNoAuthMethod, methodList(info.methods))
}

// authenticateSafeCookie runs the AUTHCHALLENGE handshake. The cookie never
// crosses the wire: both sides prove possession through HMACs over the cookie
// and a pair of nonces.
func (c *Conn) authenticateSafeCookie(ctx context.Context, cookie []byte) error {
	clientNonce := make([]byte, safeCookieNonceLen)
	if _, err := rand.Read(clientNonce); err != nil {
		return fmt.Errorf("failed to generate client nonce: %w", err)
	}

	challenge := "AUTHCHALLENGE SAFECOOKIE " + strings.ToUpper(hex.EncodeToString(clientNonce))
	reply, err := c.SendCommand(ctx, challenge)
	if err != nil {
		return fmt.Errorf("AUTHCHALLENGE failed: %w", err)
	}
	if !reply.IsOK() {
		c.teardown(fmt.Errorf("%w: AUTHCHALLENGE: %s", ErrAuthRejected, reply.String()))
		return c.reasonErr()
	}

	serverHash, serverNonce, err := parseAuthChallenge(reply.Text())
	if err != nil {
		c.teardown(fmt.Errorf("%w: %v", ErrAuthRejected, err))
		return c.reasonErr()
	}

	// input = cookie | client nonce | server nonce, for both directions.
	input := make([]byte, 0, len(cookie)+len(clientNonce)+len(serverNonce))
	input = append(input, cookie...)
	input = append(input, clientNonce...)
	input = append(input, serverNonce...)

	// Verify the server knows the cookie before proving that we do. A
	// mismatch means we are not talking to the daemon that wrote the cookie
	// file.
	if !hmac.Equal(serverHash, computeHMAC(safeCookieServerKey, input)) {
		c.teardown(fmt.Errorf("%w: server hash verification failed", ErrAuthRejected))
		return c.reasonErr()
	}

	clientHash := computeHMAC(safeCookieClientKey, input)
	return c.sendAuthenticate(ctx, authMethodSafeCookie, strings.ToUpper(hex.EncodeToString(clientHash)))
}

// sendAuthenticate issues the single decisive AUTHENTICATE command.
// 250 transitions the session to Authenticated; anything else closes it.
func (c *Conn) sendAuthenticate(ctx context.Context, method, arg string) error {
	cmd := "AUTHENTICATE"
	if arg != "" {
		cmd += " " + arg
	}

	reply, err := c.SendCommand(ctx, cmd)
	if err != nil {
		return fmt.Errorf("AUTHENTICATE failed: %w", err)
	}
	if !reply.IsOK() {
		c.teardown(fmt.Errorf("%w: %s: %s", ErrAuthRejected, method, reply.String()))
		return c.reasonErr()
	}

	c.setState(StateAuthenticated)
	c.logger.Info("control port authenticated", "method", method)
	return nil
}

// readCookie reads and validates the auth cookie file.
func readCookie(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from PROTOCOLINFO or explicit config
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCookieUnreadable, path, err)
	}
	if len(data) != cookieLen {
		zeroBytes(data)
		return nil, fmt.Errorf("%w: %s: got %d bytes, expected %d", ErrCookieUnreadable, path, len(data), cookieLen)
	}
	return data, nil
}

// zeroBytes overwrites secret material after use.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// computeHMAC is HMAC-SHA256 with a string key.
func computeHMAC(key string, input []byte) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(input)
	return mac.Sum(nil)
}

// parseProtocolInfo extracts the AUTH line from a PROTOCOLINFO reply:
//
//	250-AUTH METHODS=COOKIE,SAFECOOKIE COOKIEFILE="/run/tor/control.authcookie"
func parseProtocolInfo(values []string) protocolInfo {
	info := protocolInfo{methods: make(map[string]bool)}

	for _, line := range values {
		if !strings.HasPrefix(line, "AUTH ") {
			continue
		}

		if _, after, ok := strings.Cut(line, "METHODS="); ok {
			methodsPart, _, _ := strings.Cut(after, " ")
			for _, m := range strings.Split(methodsPart, ",") {
				if m = strings.TrimSpace(m); m != "" {
					info.methods[m] = true
				}
			}
		}

		if _, after, ok := strings.Cut(line, `COOKIEFILE="`); ok {
			if path, _, ok := strings.Cut(after, `"`); ok {
				info.cookieFile = path
			}
		}
	}

	return info
}

// parseAuthChallenge extracts and decodes the two hex fields from
// "AUTHCHALLENGE SERVERHASH=<hex> SERVERNONCE=<hex>".
func parseAuthChallenge(text string) (serverHash, serverNonce []byte, err error) {
	var hashHex, nonceHex string
	for _, field := range strings.Fields(text) {
		switch {
		case strings.HasPrefix(field, "SERVERHASH="):
			hashHex = strings.TrimPrefix(field, "SERVERHASH=")
		case strings.HasPrefix(field, "SERVERNONCE="):
			nonceHex = strings.TrimPrefix(field, "SERVERNONCE=")
		}
	}
	if hashHex == "" || nonceHex == "" {
		return nil, nil, fmt.Errorf("AUTHCHALLENGE reply missing SERVERHASH or SERVERNONCE: %q", text)
	}

	serverHash, err = hex.DecodeString(hashHex)
	if err != nil {
		return nil, nil, fmt.Errorf("bad SERVERHASH encoding: %w", err)
	}
	serverNonce, err = hex.DecodeString(nonceHex)
	if err != nil {
		return nil, nil, fmt.Errorf("bad SERVERNONCE encoding: %w", err)
	}
	return serverHash, serverNonce, nil
}

// quoteString renders a QuotedString per the control protocol grammar:
// backslash and double quote escaped, the whole wrapped in double quotes.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

// methodList renders the advertised methods for error messages.
func methodList(methods map[string]bool) string {
	names := make([]string, 0, len(methods))
	for m := range methods {
		names = append(names, m)
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ",")
}
