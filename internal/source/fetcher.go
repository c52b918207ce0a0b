package source

import (
	"context"
	"filtersync/pkg/serrors"
	"fmt"
	"io"
	"net/http"
)

// DefaultUserAgent is sent with every source request.
const DefaultUserAgent = "filtersync/1.0"

// maxBodyBytes caps the size of a single source.
const maxBodyBytes = 256 << 20

// HTTPFetcher fetches sources over HTTP(S).
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPFetcher returns a fetcher using httpClient. The client's Timeout
// bounds every fetch.
func NewHTTPFetcher(httpClient *http.Client, userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &HTTPFetcher{httpClient: httpClient, userAgent: userAgent}
}

// Fetch downloads the source at url. Any non-200 answer is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not fetch %s", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", serrors.With(serrors.ErrUnavailable, "could not fetch %s: %s", url, resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not read %s", url)
	}

	return string(b), nil
}

// Ensure HTTPFetcher conforms to the Fetcher interface at compile time.
var _ Fetcher = (*HTTPFetcher)(nil)
