package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/ids"
	"studentportal.org/internal/obs"
	"studentportal.org/internal/portal"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// Client is a JSON-over-HTTP client for one upstream service. It holds no
// credential: the bearer token is resolved from the request context on every call.
type Client struct {
	service string
	base    *url.URL
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default transport client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// Dial validates baseURL and builds a client named after service.
func Dial(service, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("%s service url: %w", service, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%s service url %q: must be an absolute http(s) url", service, baseURL)
	}
	c := &Client{service: service, base: u, http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c == nil || c.http == nil {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}

// Service is the name used in errors, logs and metrics.
func (c *Client) Service() string { return c.service }

// Ping reports whether the service answers HTTP at all. Any status below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s service unreachable: %w", c.service, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &portal.UpstreamError{Service: c.service, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rid := ids.RequestIDFromContext(ctx)
	if rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	obs.ObserveUpstream(c.service, status, elapsed)
	obs.Info("upstream_call", map[string]any{
		"service":     c.service,
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": elapsed.Milliseconds(),
		"request_id":  rid,
	})
	if err != nil {
		return fmt.Errorf("%s service: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s service: decode %s %s: %w", c.service, method, path, err)
	}
	return nil
}

// errorBody covers both FastAPI shapes: a string detail and a list of field errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func (c *Client) statusError(resp *http.Response) error {
	uerr := &portal.UpstreamError{Service: c.service, StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return uerr
	}
	uerr.Detail = parseDetail(data)
	return uerr
}

func parseDetail(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var fields []fieldDetail
	if err := json.Unmarshal(body.Detail, &fields); err == nil {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			if f.Msg == "" {
				continue
			}
			if len(f.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", f.Loc[len(f.Loc)-1], f.Msg))
				continue
			}
			msgs = append(msgs, f.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// IsTransport reports whether err never reached the service.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var uerr *portal.UpstreamError
	return !errors.As(err, &uerr)
}
