package mempool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public mempool.space instance
	DefaultBaseURL = "https://mempool.space"

	// DefaultTimeout bounds every explorer request
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 512
)

// Client represents a Mempool.space API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit allows n requests per interval with a burst of n.
// Non-positive values keep the default limit.
func WithRateLimit(n int, interval time.Duration) Option {
	return func(c *Client) {
		if n <= 0 || interval <= 0 {
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval/time.Duration(n)), n)
	}
}

// NewClient creates a new Mempool.space API client. baseURL is the site root,
// without the /api suffix.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(6*time.Second), 10), // 10 requests per minute
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the site root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AddressURL returns the stats endpoint for an address
func (c *Client) AddressURL(address string) string {
	return fmt.Sprintf("%s/api/address/%s", c.baseURL, url.PathEscape(address))
}

// GetAddressStats gets funded and spent statistics for an address
func (c *Client) GetAddressStats(ctx context.Context, address string) (*AddressStats, error) {
	body, err := c.get(ctx, c.AddressURL(address))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch address stats: %w", err)
	}
	defer body.Close()

	var stats AddressStats
	if err := json.NewDecoder(body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode address stats: %w", err)
	}

	return &stats, nil
}

// GetTipHeight gets the current block height
func (c *Client) GetTipHeight(ctx context.Context) (int64, error) {
	body, err := c.get(ctx, c.baseURL+"/api/blocks/tip/height")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch tip height: %w", err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block height: %w", err)
	}

	return height, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return resp.Body, nil
}
