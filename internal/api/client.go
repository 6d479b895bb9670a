package api

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is the production CLOB REST endpoint.
const DefaultBaseURL = "https://clob.polymarket.com"

// DefaultPaginationTimeout bounds a full catalog walk when the caller's
// context has no deadline.
const DefaultPaginationTimeout = 10 * time.Minute

// Client provides access to the Polymarket CLOB REST API.
//
// The client performs no internal retries: catalog pagination treats every
// failure as terminal (see FetchAllMarkets), and callers wanting retry wrap
// the client themselves.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. apiKey may be empty; market-data
// endpoints do not require one.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
