// Package fetch retrieves status pages and feeds over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodySize caps response bodies; status pages are small and a
// misconfigured URL should not buffer gigabytes.
const maxBodySize = 5 << 20

// Response is the fetched payload handed to the parser dispatcher.
type Response struct {
	Body        string
	ContentType string
	StatusCode  int
	FinalURL    string
}

// Fetcher retrieves raw page and feed content.
type Fetcher struct {
	client *http.Client
}

func New(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch retrieves one URL. Non-2xx responses are errors; status pages that
// answer 403 or 503 tell us nothing reliable about the service behind them.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "statuswatch/1.0 (status monitor)")
	req.Header.Set("Accept", "application/json, application/rss+xml, application/atom+xml, text/html;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: HTTP %d %s", url, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	return &Response{
		Body:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}
