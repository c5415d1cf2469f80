package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrStatus marks a response that came back with a non-retryable HTTP status.
var ErrStatus = errors.New("unexpected http status")

// ErrUnhealthy marks a failed /health probe.
var ErrUnhealthy = errors.New("source api unhealthy")

// retryLogger routes retryablehttp's internal chatter to zerolog at debug.
type retryLogger struct {
	log zerolog.Logger
}

func (l retryLogger) Printf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

// ClientConfig bounds the shared HTTP client pool.
type ClientConfig struct {
	BaseURL           string
	Concurrency       int
	RequestTimeout    time.Duration
	RetryTotal        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64 // 0 disables rate limiting
}

// Client wraps a process-shared HTTP client with bounded in-flight requests
// and retry+backoff on 429/5xx and network errors. GET-only; the source API
// needs no auth or cookies.
type Client struct {
	base    string
	http    *retryablehttp.Client
	sem     chan struct{}
	limiter *rate.Limiter
}

func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryTotal
	rc.RetryWaitMin = cfg.RetryBackoff
	rc.RetryWaitMax = 30 * time.Second
	rc.Logger = retryLogger{log: log.With().Str("component", "http").Logger()}
	rc.HTTPClient = &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency,
			MaxIdleConnsPerHost: cfg.Concurrency,
			MaxConnsPerHost:     cfg.Concurrency,
		},
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Concurrency)
	}

	return &Client{
		base:    cfg.BaseURL,
		http:    rc,
		sem:     make(chan struct{}, cfg.Concurrency),
		limiter: limiter,
	}
}

// GetJSON fetches base+path?query and decodes the JSON body into out.
// Transient failures (429, 5xx, network errors) are retried with exponential
// backoff inside the client; anything that survives the retries is returned,
// with non-2xx statuses wrapped in ErrStatus.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("get %s: %w: %d", path, ErrStatus, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Health probes /health. The extract activity treats a failure here as
// non-retryable: a dead source API will not come back within one attempt.
func (c *Client) Health(ctx context.Context) error {
	if err := c.GetJSON(ctx, "/health", nil, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}
