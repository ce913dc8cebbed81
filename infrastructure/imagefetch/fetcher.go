// Package imagefetch downloads images over HTTP within a bounded timeout.
package imagefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single image download.
const DefaultTimeout = 10 * time.Second

// maxImageBytes caps the downloaded body so a hostile URL cannot exhaust memory.
const maxImageBytes = 20 << 20

// Fetcher implements the domain.ImageFetcher interface over plain HTTP GET.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher whose downloads time out after the given
// duration. A non-positive timeout falls back to DefaultTimeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the image at url and returns its bytes.
// Any network error, timeout, or non-200 response fails the fetch; the
// caller decides the workflow-level error code.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image at %s exceeds %d bytes", url, maxImageBytes)
	}
	return data, nil
}
