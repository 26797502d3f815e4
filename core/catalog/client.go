package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fanfansh/topupbot/core/logger"
	"log/slog"
)

const (
	// DefaultFetchTimeout bounds one catalog fetch end to end.
	DefaultFetchTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
)

// FetchError reports a failed catalog fetch, keeping the HTTP status
// when the backend answered at all.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("catalog fetch: backend returned %d", e.Status)
	}
	return fmt.Sprintf("catalog fetch: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches the product list from the store backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a catalog client for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultFetchTimeout},
	}
}

// NewClientWith uses the supplied HTTP client, for retrying transports.
func NewClientWith(baseURL string, hc *http.Client) *Client {
	c := NewClient(baseURL)
	if hc != nil {
		c.http = hc
	}
	return c
}

// Products fetches the full catalog. The backend is the source of
// truth on every call; nothing is cached between requests.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	start := time.Now()
	url := c.baseURL + "/products"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.SVCCatalog.Warn("catalog.fetch",
			slog.String("event", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return nil, &FetchError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		logger.SVCCatalog.Warn("catalog.fetch",
			slog.String("event", "fail"),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	var products []Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, &FetchError{Err: fmt.Errorf("decode products: %w", err)}
	}

	logger.SVCCatalog.Debug("catalog.fetch",
		slog.String("event", "complete"),
		slog.Int("products", len(products)),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return products, nil
}
