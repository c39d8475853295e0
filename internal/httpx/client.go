// Package httpx is the outbound HTTP plumbing shared by the upstream clients:
// a politeness rate limiter, a fixed User-Agent, bounded bodies and status
// classification.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultBodyByteLimit = 8 * 1024 * 1024
	DefaultUserAgent     = "nycpedia/1.0 (+https://horse.fit/nycpedia)"
)

// ErrNotFound is returned when the upstream answers 404.
var ErrNotFound = errors.New("upstream resource not found")

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ObserveFunc receives one call per finished request.
type ObserveFunc func(upstream, outcome string, elapsed time.Duration)

// Options controls client behavior. Zero values fall back to defaults.
type Options struct {
	Name              string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BodyByteLimit     int64
	HTTPClient        Doer
	Observe           ObserveFunc
}

// Client issues GET requests against one upstream.
type Client struct {
	name      string
	doer      Doer
	limiter   *rate.Limiter
	userAgent string
	bodyLimit int64
	observe   ObserveFunc
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	doer := opts.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RequestsPerSecond)
		}
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "upstream"
	}

	return &Client{
		name:      name,
		doer:      doer,
		limiter:   limiter,
		userAgent: userAgent,
		bodyLimit: bodyLimit,
		observe:   opts.Observe,
	}
}

// GetJSON fetches rawURL and decodes the JSON body into dest.
func (c *Client) GetJSON(ctx context.Context, rawURL string, dest any) error {
	body, err := c.Get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Get fetches rawURL and returns the (bounded) body of a 2xx answer.
func (c *Client) Get(ctx context.Context, rawURL, accept string) (body []byte, err error) {
	if c == nil || c.doer == nil {
		return nil, fmt.Errorf("http client is not initialized")
	}

	started := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(c.name, Outcome(err), time.Since(started))
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, c.bodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Outcome classifies err into a short label for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
