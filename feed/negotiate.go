package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/br-g/fastf1-livetiming/errors"
)

// clientProtocol is the SignalR protocol version the feed speaks.
const clientProtocol = "1.5"

// userAgent is what the feed expects; other agents get throttled.
const userAgent = "BestHTTP"

// Negotiation holds the transport parameters returned by the negotiation
// endpoint. The token is owned by exactly one connection attempt and is
// never reused after a disconnect.
type Negotiation struct {
	ConnectionToken  string
	ProtocolVersion  string
	KeepAliveTimeout time.Duration
	Cookies          []*http.Cookie
}

// Negotiator performs the one-shot handshake that precedes every
// connection attempt.
type Negotiator interface {
	Negotiate(ctx context.Context) (*Negotiation, error)
}

// negotiateResponse is the endpoint's JSON shape. Timeout fields arrive as
// fractional seconds.
type negotiateResponse struct {
	ConnectionToken  string  `json:"ConnectionToken"`
	ProtocolVersion  string  `json:"ProtocolVersion"`
	KeepAliveTimeout float64 `json:"KeepAliveTimeout"`
}

// HTTPNegotiator negotiates against the feed's HTTP endpoint. It is
// stateless and safe to call repeatedly; each call produces an independent
// token.
type HTTPNegotiator struct {
	baseURL string
	hub     string
	auth    Auth
	client  *http.Client
	logger  *slog.Logger
}

// NewNegotiator creates a negotiator for the given feed base URL and hub
func NewNegotiator(baseURL, hub string, auth Auth, client *http.Client, logger *slog.Logger) *HTTPNegotiator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPNegotiator{
		baseURL: baseURL,
		hub:     hub,
		auth:    auth,
		client:  client,
		logger:  logger,
	}
}

// connectionData encodes the hub list the same way for negotiate and
// connect requests.
func connectionData(hub string) string {
	data, _ := json.Marshal([]map[string]string{{"name": hub}})
	return string(data)
}

// Negotiate requests a connection token, mapping authentication rejections
// to ErrUnauthorized (fatal) and network-level failures to ErrUnreachable
// (transient) so the supervisor can decide whether retrying is useful.
func (n *HTTPNegotiator) Negotiate(ctx context.Context) (*Negotiation, error) {
	query := url.Values{}
	query.Set("connectionData", connectionData(n.hub))
	query.Set("clientProtocol", clientProtocol)
	endpoint := fmt.Sprintf("%s/negotiate?%s", n.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Negotiator", "Negotiate", "build request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "gzip, identity")
	n.auth.decorate(req.Header)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrUnreachable, err),
			"Negotiator", "Negotiate", "request token")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: status %d", errors.ErrUnauthorized, resp.StatusCode),
			"Negotiator", "Negotiate", "authenticate")
	case resp.StatusCode != http.StatusOK:
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: status %d", errors.ErrUnreachable, resp.StatusCode),
			"Negotiator", "Negotiate", "request token")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrUnreachable, err),
			"Negotiator", "Negotiate", "read response")
	}

	var parsed negotiateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrUnreachable, err),
			"Negotiator", "Negotiate", "parse response")
	}
	if parsed.ConnectionToken == "" {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: response missing connection token", errors.ErrUnreachable),
			"Negotiator", "Negotiate", "parse response")
	}

	neg := &Negotiation{
		ConnectionToken:  parsed.ConnectionToken,
		ProtocolVersion:  parsed.ProtocolVersion,
		KeepAliveTimeout: time.Duration(parsed.KeepAliveTimeout * float64(time.Second)),
		Cookies:          resp.Cookies(),
	}

	n.logger.Debug("negotiation complete",
		"protocol_version", neg.ProtocolVersion,
		"keepalive_timeout", neg.KeepAliveTimeout)

	return neg, nil
}
