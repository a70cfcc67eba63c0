// Package remote fetches the listing snapshot from the HTTP listings feed. It
// provides a [Client] that decodes the feed into [ListingDTO] records, an
// exponential-backoff [Retry] helper, and [NetworkError] classifying failures
// as transient or permanent.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single feed request.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of the feed is read.
const maxBodyBytes = 64 << 20

// ErrFeedTooLarge is wrapped by the [*NetworkError] returned when the feed
// body exceeds the size cap.
var ErrFeedTooLarge = errors.New("feed exceeds 64 MiB")

// HTTPDoer is the subset of [http.Client] used by [Client]. Defining it as an
// interface allows injecting a custom transport in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads the full listing feed from a single URL. Create one with
// [NewClient].
type Client struct {
	url     string
	hc      HTTPDoer
	policy  Policy
	timeout time.Duration
	maxBody int64
	logger  *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc HTTPDoer) Option {
	return func(c *Client) { c.hc = hc }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithTimeout bounds each request attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a Client for the feed at url.
func NewClient(url string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		url:     url,
		hc:      &http.Client{},
		policy:  DefaultPolicy(),
		timeout: DefaultTimeout,
		maxBody: maxBodyBytes,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll fetches and decodes the complete listing feed, retrying transient
// failures. Every error it returns wraps a [*NetworkError].
func (c *Client) FetchAll(ctx context.Context) ([]ListingDTO, error) {
	var listings []ListingDTO
	attempt := 0
	err := Retry(ctx, c.policy, func() error {
		attempt++
		var fetchErr error
		listings, fetchErr = c.fetch(ctx)
		if fetchErr != nil {
			c.logger.Debug("listing feed fetch failed",
				"attempt", attempt, "transient", IsTransient(fetchErr), "error", fetchErr)
		}
		return fetchErr
	})
	if err != nil {
		var ne *NetworkError
		if !errors.As(err, &ne) {
			// Cancelled between attempts.
			return nil, &NetworkError{Op: "fetching listings", transient: true, Err: err}
		}
		return nil, fmt.Errorf("fetching listings from %s: %w", c.url, err)
	}
	return listings, nil
}

func (c *Client) fetch(ctx context.Context) ([]ListingDTO, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &NetworkError{Op: "creating request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		// Transport errors and timeouts.
		return nil, &NetworkError{Op: "executing request", transient: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{
			Op:         "reading feed",
			StatusCode: resp.StatusCode,
			transient:  transientStatus(resp.StatusCode),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	// One byte past the cap tells a full feed from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &NetworkError{Op: "reading feed", transient: true, Err: err}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &NetworkError{Op: "reading feed", Err: ErrFeedTooLarge}
	}

	var listings []ListingDTO
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, &NetworkError{Op: "decoding feed", Err: err}
	}
	for i, l := range listings {
		if l.ID == "" {
			return nil, &NetworkError{Op: "decoding feed", Err: fmt.Errorf("record %d has no id", i)}
		}
	}
	if listings == nil {
		listings = []ListingDTO{}
	}
	return listings, nil
}
