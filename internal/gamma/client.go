// Package gamma provides the Polymarket Gamma API client: the events
// catalog at https://gamma-api.polymarket.com, paginated by offset/limit
// and flattened into market rows.
package gamma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/polymarket-data/internal/api"
)

// DefaultBaseURL is the production Gamma endpoint.
const DefaultBaseURL = "https://gamma-api.polymarket.com"

// DefaultPageLimit is the events page size.
const DefaultPageLimit = 100

// Client provides access to the Gamma events API. Unlike the CLOB catalog
// client, page fetches here retry transient failures, since Gamma sits
// behind a CDN that sheds load with 5xx bursts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	pageLimit    int
	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a new Gamma API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:       slog.Default(),
		pageLimit:    DefaultPageLimit,
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithPageLimit sets the events page size.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithRetries sets the per-page retry configuration.
func WithRetries(max int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// GetEventsOptions configures a GetEvents request.
type GetEventsOptions struct {
	Limit         int
	Offset        int
	IncludeClosed bool
	Order         string // sort field, default volume24hr
	Ascending     bool
}

// GetEvents fetches a single page of events.
func (c *Client) GetEvents(ctx context.Context, opts GetEventsOptions) ([]Event, error) {
	query := url.Values{}
	order := opts.Order
	if order == "" {
		order = "volume24hr"
	}
	query.Set("order", order)
	query.Set("ascending", strconv.FormatBool(opts.Ascending))
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	query.Set("offset", strconv.Itoa(opts.Offset))
	if !opts.IncludeClosed {
		query.Set("closed", "false")
	}

	body, err := c.doWithRetry(ctx, "/events", query)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	return events, nil
}

// FetchAllEvents paginates through every events page. On a mid-pagination
// failure it returns the events accumulated so far together with the
// error; callers decide whether a partial catalog is usable.
func (c *Client) FetchAllEvents(ctx context.Context, includeClosed bool) ([]Event, error) {
	var all []Event
	offset := 0
	pages := 0

	for {
		events, err := c.GetEvents(ctx, GetEventsOptions{
			Limit:         c.pageLimit,
			Offset:        offset,
			IncludeClosed: includeClosed,
		})
		if err != nil {
			return all, fmt.Errorf("gamma events page offset=%d: %w", offset, err)
		}

		if len(events) == 0 {
			break
		}
		pages++
		all = append(all, events...)

		if len(events) < c.pageLimit {
			break
		}
		offset += c.pageLimit
	}

	c.logger.Info("fetched gamma events", "pages", pages, "events", len(all))
	return all, nil
}

// doRequest performs one GET against the Gamma API.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &api.APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs a request with exponential backoff retry on
// transient failures.
func (c *Client) doWithRetry(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, path, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var apiErr *api.APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
