package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoMarkup indicates that a page could not be fetched or returned an unusable status.
var ErrNoMarkup = errors.New("no markup available")

const (
	defaultFetchTimeout = 10 * time.Second
	maxBodyBytes        = 2 << 20
	userAgent           = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

// Page is the raw result of fetching a shared URL.
type Page struct {
	Body       string
	StatusCode int
}

// Fetcher retrieves page markup for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// HTTPFetcher fetches pages over HTTP with a bounded timeout.
type HTTPFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPFetcher constructs a fetcher with the provided per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{
		Client:  &http.Client{},
		Timeout: timeout,
	}
}

// Fetch performs a GET request. Statuses outside 200..399 are reported as ErrNoMarkup.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return Page{StatusCode: resp.StatusCode}, fmt.Errorf("fetch %s: status %d: %w", url, resp.StatusCode, ErrNoMarkup)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read body: %w", err)
	}

	return Page{Body: string(body), StatusCode: resp.StatusCode}, nil
}
