package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/buildinfo"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/httputil"
	"github.com/yczddgj/chartgalaxy/pkg/observability"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// Client talks to one backend instance.
type Client struct {
	base     *url.URL
	http     *http.Client
	headers  map[string]string
	attempts int
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithRetries retries idempotent reads (layout, option lists, material
// history) up to n attempts on network errors and 5xx responses. Status
// queries are never retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.attempts = max(n, 1) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source for cache-busting parameters.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if err := errors.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse backend url")
	}
	c := &Client{
		base:     u,
		http:     &http.Client{Timeout: DefaultTimeout},
		headers:  map[string]string{"User-Agent": buildinfo.UserAgent()},
		attempts: 1,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		ref = &url.URL{Path: strings.TrimLeft(path, "/")}
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodGet, path, nil, v)
}

func (c *Client) postJSON(ctx context.Context, path string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode request")
	}
	return c.do(ctx, http.MethodPost, path, data, v)
}

// retried runs fn with the client's retry budget.
func (c *Client) retried(ctx context.Context, fn func() error) error {
	if c.attempts <= 1 {
		return fn()
	}
	return httputil.Retry(ctx, c.attempts, 500*time.Millisecond, fn)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, v any) error {
	target := c.resolve(path)
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
	}
	for k, val := range c.headers {
		req.Header.Set(k, val)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hooks := observability.HTTP()
	host, reqPath := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, method, host, reqPath)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, reqPath, err)
		c.logger.Debug("backend request failed", "method", method, "path", reqPath, "err", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "%s %s", method, reqPath)}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, method, host, reqPath, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp, method, reqPath); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if raw, ok := v.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeNetwork, err, "read %s", reqPath)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "decode %s response", reqPath)
	}
	return nil
}

// apiError is the body the backend sends with non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}

func checkStatus(resp *http.Response, method, path string) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	msg := fmt.Sprintf("%s %s: status %d", method, path, code)
	var body apiError
	if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(data) > 0 {
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			msg = fmt.Sprintf("%s: %s", msg, body.Error)
		}
	}
	switch {
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "%s", msg)
	case code == http.StatusBadRequest:
		return errors.New(errors.ErrCodeInvalidInput, "%s", msg)
	case code >= 500:
		return &httputil.RetryableError{Err: errors.New(errors.ErrCodeNetwork, "%s", msg)}
	default:
		return errors.New(errors.ErrCodeNetwork, "%s", msg)
	}
}
