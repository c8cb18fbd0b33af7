package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/br-g/fastf1-livetiming/errors"
)

// Dialer opens the persistent connection for a negotiated token.
type Dialer interface {
	Dial(ctx context.Context, neg *Negotiation) (*websocket.Conn, error)
}

// WebsocketDialer dials the feed's websocket connect endpoint.
type WebsocketDialer struct {
	BaseURL          string
	Hub              string
	Auth             Auth
	HandshakeTimeout time.Duration
}

// connectURL derives the websocket URL from the HTTP base URL and the
// negotiated token.
func connectURL(baseURL, hub, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.WrapInvalid(err, "Dialer", "connectURL", "parse base URL")
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
		// already a websocket URL
	default:
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: unsupported scheme %q", errors.ErrInvalidConfig, u.Scheme),
			"Dialer", "connectURL", "derive websocket URL")
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/connect"

	query := url.Values{}
	query.Set("transport", "webSockets")
	query.Set("clientProtocol", clientProtocol)
	query.Set("connectionToken", token)
	query.Set("connectionData", connectionData(hub))
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// Dial opens the websocket connection, forwarding the negotiate cookies
// and the run's credential. Handshake rejections with an auth status map
// to ErrUnauthorized; everything else is a transient ErrConnectFailed.
func (d *WebsocketDialer) Dial(ctx context.Context, neg *Negotiation) (*websocket.Conn, error) {
	target, err := connectURL(d.BaseURL, d.Hub, neg.ConnectionToken)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("User-Agent", userAgent)
	header.Set("Accept-Encoding", "gzip, identity")
	d.Auth.decorate(header)
	for _, cookie := range neg.Cookies {
		header.Add("Cookie", cookie.String())
	}

	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	dialer := &websocket.Dialer{HandshakeTimeout: timeout}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil &&
			(resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: status %d", errors.ErrUnauthorized, resp.StatusCode),
				"Dialer", "Dial", "authenticate")
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectFailed, err),
			"Dialer", "Dial", "open websocket")
	}

	return conn, nil
}
