package repositories

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxMediaBytes = 10 << 20

// HTTPPageFetcher retrieves source pages and the images they embed.
type HTTPPageFetcher struct {
	client    *http.Client
	userAgent string
}

func NewPageFetcher(userAgent string) *HTTPPageFetcher {
	return &HTTPPageFetcher{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: userAgent,
	}
}

// Fetch returns the response for url. The caller closes the body.
func (pf *HTTPPageFetcher) Fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	if pf.userAgent != "" {
		req.Header.Set("User-Agent", pf.userAgent)
	}
	resp, err := pf.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", url, err)
	}
	return resp, nil
}

// Download reads url fully and returns the body with its content type.
func (pf *HTTPPageFetcher) Download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := pf.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download %s, status code: %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
