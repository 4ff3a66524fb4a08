// Package endpoint talks to a SPARQL 1.1 protocol endpoint.
//
// Queries go to an ordered list of endpoint URLs: a connection failure or
// a 5xx answer moves on to the next URL, any other answer is final.
// Updates go to a single update URL. An optional token bucket paces every
// request, queries and updates alike.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds one HTTP exchange.
const DefaultTimeout = 30 * time.Second

const (
	contentTypeQuery  = "application/sparql-query"
	contentTypeUpdate = "application/sparql-update"
	acceptResults     = "application/sparql-results+json"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// ErrNoEndpoint is returned by New when no query URL is configured.
var ErrNoEndpoint = errors.New("no SPARQL endpoint configured")

// StatusError is a non-2xx answer from the endpoint.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.URL, e.Status, e.Body)
}

// retryable reports whether the next URL should be tried after err.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Client sends queries and updates over HTTP. It is safe for concurrent use.
type Client struct {
	urls      []string
	updateURL string
	http      *http.Client
	logger    *slog.Logger
	limiter   *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-exchange timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUpdateURL sets the URL updates are posted to. It defaults to the
// first query URL.
func WithUpdateURL(url string) Option {
	return func(c *Client) { c.updateURL = url }
}

// WithRateLimit paces requests to rps per second with the given burst.
// A non-positive rps leaves requests unpaced; burst is at least 1.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client over urls, tried in order.
func New(urls []string, opts ...Option) (*Client, error) {
	var clean []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoEndpoint
	}
	c := &Client{
		urls:   clean,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.updateURL == "" {
		c.updateURL = clean[0]
	}
	return c, nil
}

// URLs returns the query URLs in the order they are tried.
func (c *Client) URLs() []string {
	return append([]string(nil), c.urls...)
}

// Query posts a query and returns the response body of the first endpoint
// that answers. When every endpoint fails the errors are joined.
func (c *Client) Query(ctx context.Context, query string) ([]byte, error) {
	var errs []error
	for _, url := range c.urls {
		start := time.Now()
		body, err := c.post(ctx, url, contentTypeQuery, query)
		observe("query", start, err)
		if err == nil {
			return body, nil
		}
		errs = append(errs, err)
		if !retryable(err) {
			break
		}
		c.logger.Warn("sparql endpoint failed", "endpoint", url, "err", err)
	}
	return nil, fmt.Errorf("sparql query: %w", errors.Join(errs...))
}

// Update posts a SPARQL Update request.
func (c *Client) Update(ctx context.Context, update string) error {
	start := time.Now()
	_, err := c.post(ctx, c.updateURL, contentTypeUpdate, update)
	observe("update", start, err)
	if err != nil {
		return fmt.Errorf("sparql update: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url, contentType, body string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: waiting for rate limit: %w", url, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", acceptResults)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", url, err)
	}
	return data, nil
}
