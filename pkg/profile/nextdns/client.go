// Package nextdns provides a profile.Client implementation backed by the
// NextDNS API.
package nextdns

import (
	"bytes"
	"context"
	"encoding/json"
	"filtersync/pkg/profile"
	"filtersync/pkg/serrors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// BaseURL is the NextDNS API root.
const BaseURL = "https://api.nextdns.io"

// Client talks to the NextDNS REST API of a single profile and fulfills the
// profile.Client interface. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs HTTP requests to NextDNS
	baseURL    string       // baseURL is the profile endpoint
	apiKey     string       // apiKey is sent in the X-Api-Key header
}

// envelope is the common wrapper of NextDNS responses. Error entries differ
// in shape between endpoints and are reported verbatim.
type envelope[T any] struct {
	Data   T                 `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

func formatErrors(errs []json.RawMessage) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, string(e))
	}

	return strings.Join(parts, "; ")
}

// do performs a single API call and unwraps the response envelope.
func do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("could not marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return zero, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, serrors.FromStatus(resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return zero, nil
	}

	// successful
	var env envelope[T]
	if err := json.Unmarshal(b, &env); err != nil {
		return zero, serrors.Wrap(serrors.ErrInternal, err, "could not decode response")
	}
	if len(env.Errors) > 0 {
		return zero, serrors.With(serrors.ErrRejected, "%s", formatErrors(env.Errors))
	}

	return env.Data, nil
}

// Denylist returns the denylist of the profile.
func (c *Client) Denylist(ctx context.Context) ([]profile.Deny, error) {
	return do[[]profile.Deny](ctx, c, http.MethodGet, "/denylist", nil)
}

// CreateDeny adds a domain to the denylist.
func (c *Client) CreateDeny(ctx context.Context, entry profile.Deny) error {
	_, err := do[json.RawMessage](ctx, c, http.MethodPost, "/denylist", entry)

	return err
}

// DeleteDeny removes a domain from the denylist.
func (c *Client) DeleteDeny(ctx context.Context, id string) error {
	_, err := do[json.RawMessage](ctx, c, http.MethodDelete, "/denylist/"+url.PathEscape(id), nil)

	return err
}

// Rewrites returns the rewrites of the profile.
func (c *Client) Rewrites(ctx context.Context) ([]profile.Rewrite, error) {
	return do[[]profile.Rewrite](ctx, c, http.MethodGet, "/rewrites", nil)
}

// CreateRewrite adds a rewrite to the profile.
func (c *Client) CreateRewrite(ctx context.Context, req profile.CreateRewriteRequest) (profile.Rewrite, error) {
	return do[profile.Rewrite](ctx, c, http.MethodPost, "/rewrites", req)
}

// DeleteRewrite removes the rewrite with the given ID.
func (c *Client) DeleteRewrite(ctx context.Context, id string) error {
	_, err := do[json.RawMessage](ctx, c, http.MethodDelete, "/rewrites/"+url.PathEscape(id), nil)

	return err
}

// Ensure Client conforms to the profile.Client interface at compile time.
var _ profile.Client = (*Client)(nil)

// New constructs a Client for the given profile that uses the provided
// http.Client and API key.
func New(httpClient *http.Client, profileID, apiKey string) *Client {
	return NewWithBaseURL(httpClient, BaseURL, profileID, apiKey)
}

// NewWithBaseURL is like New but talks to an alternative API root.
func NewWithBaseURL(httpClient *http.Client, baseURL, profileID, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/") + "/profiles/" + url.PathEscape(profileID),
		apiKey:     apiKey,
	}
}
