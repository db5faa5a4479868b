// Package broker is the typed HTTP client for the broker's trading API:
// token generation, margin info, order placement/cancellation, quotes, and
// chart data. Responses are parsed and validated at this boundary; business
// logic above never sees raw JSON.
//
// Authenticated requests that come back 401 trigger exactly one forced token
// refresh and one retry before the failure surfaces.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// TokenSource supplies access tokens. Implemented by the auth coordinator;
// the client never caches tokens beyond a single request.
type TokenSource interface {
	ValidToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// Config configures the broker client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // default 7s
}

// Client is the low-level broker HTTP client. Resilience (retry, breaker,
// cache) is layered on top by the callers via resilience.Client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     TokenSource
	log        *slog.Logger

	// OnRequest observes every HTTP round trip (optional).
	OnRequest func(route string, took time.Duration, err error)
}

var routes = map[string]string{
	"auth.token":   "/api/v1/auth/token",
	"auth.session": "/api/v1/auth/session",

	"order.place":  "/api/v1/orders",
	"order.cancel": "/api/v1/orders/cancel",

	"margin.info": "/api/v1/margin/info",
	"quote.ltp":   "/api/v1/quote/ltp",

	"chart.intraday":   "/api/v1/charts/intraday",
	"chart.historical": "/api/v1/charts/historical",
}

// New creates a broker client. tokens may be nil for a client used only for
// unauthenticated token generation (the auth coordinator does this).
func New(cfg Config, tokens TokenSource, log *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		log:        log,
	}
}

func (c *Client) url(route string) (string, error) {
	p, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	return c.baseURL + p, nil
}

// do performs one unauthenticated JSON request and decodes the envelope.
func (c *Client) do(ctx context.Context, method, route string, payload any) (*envelope, error) {
	return c.doToken(ctx, method, route, payload, "")
}

// doAuthed performs an authenticated request. On a 401 it forces a single
// token refresh and retries once.
func (c *Client) doAuthed(ctx context.Context, method, route string, payload any) (*envelope, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("broker: no token source configured for authenticated route %s", route)
	}

	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("broker: acquire token: %w", err)
	}

	env, err := c.doToken(ctx, method, route, payload, token)
	if apiErr, ok := err.(*APIError); ok && apiErr.Unauthorized() {
		c.log.Warn("401 from broker, forcing token refresh", slog.String("route", route))
		token, rerr := c.tokens.ForceRefresh(ctx)
		if rerr != nil {
			return nil, fmt.Errorf("broker: forced refresh after 401: %w", rerr)
		}
		return c.doToken(ctx, method, route, payload, token)
	}
	return env, err
}

func (c *Client) doToken(ctx context.Context, method, route string, payload any, token string) (*envelope, error) {
	u, err := c.url(route)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("broker: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.OnRequest != nil {
		c.OnRequest(route, time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("broker: %s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("broker: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("broker: parse response (%s): %w", route, err)
	}

	if resp.StatusCode != http.StatusOK || !env.Status {
		return &env, &APIError{
			HTTPStatus: resp.StatusCode,
			Code:       env.ErrorCode,
			Message:    env.Message,
		}
	}
	return &env, nil
}

// decodeData unmarshals the envelope payload into out.
func decodeData(env *envelope, route string, out any) error {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("broker: decode %s data: %w", route, err)
	}
	return nil
}
