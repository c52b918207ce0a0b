// Package cloudflare provides a gateway.Client implementation backed by the
// Cloudflare Zero Trust Gateway API.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"filtersync/pkg/gateway"
	"filtersync/pkg/serrors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// BaseURL is the Cloudflare API root. The account gateway path is appended to it.
const BaseURL = "https://api.cloudflare.com/client/v4"

// Client talks to the Cloudflare gateway REST API of a single account and
// fulfills the gateway.Client interface. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs HTTP requests to Cloudflare
	baseURL    string       // baseURL is the account gateway endpoint
	token      string       // token is the API token sent as bearer credentials
}

// apiError is a single entry of the errors array of the response envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is the common wrapper of every Cloudflare API response.
type envelope[T any] struct {
	Result  T          `json:"result"`
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
}

func formatErrors(errs []apiError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%d: %s", e.Code, e.Message))
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
	req.Header.Set("Authorization", "Bearer "+c.token)
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
	if !env.Success {
		if len(env.Errors) == 0 {
			return zero, serrors.KindOnly(serrors.ErrRejected)
		}

		return zero, serrors.With(serrors.ErrRejected, "%s", formatErrors(env.Errors))
	}

	return env.Result, nil
}

// Lists returns all gateway lists of the account.
func (c *Client) Lists(ctx context.Context) ([]gateway.List, error) {
	// https://developers.cloudflare.com/api/resources/zero_trust/subresources/gateway/subresources/lists/methods/list/
	return do[[]gateway.List](ctx, c, http.MethodGet, "/lists", nil)
}

// CreateList creates a new gateway list.
func (c *Client) CreateList(ctx context.Context, req gateway.CreateListRequest) (gateway.List, error) {
	return do[gateway.List](ctx, c, http.MethodPost, "/lists", req)
}

// DeleteList deletes the gateway list with the given ID.
func (c *Client) DeleteList(ctx context.Context, id string) error {
	_, err := do[json.RawMessage](ctx, c, http.MethodDelete, "/lists/"+url.PathEscape(id), nil)

	return err
}

// Rules returns all gateway rules of the account.
func (c *Client) Rules(ctx context.Context) ([]gateway.Rule, error) {
	// https://developers.cloudflare.com/api/resources/zero_trust/subresources/gateway/subresources/rules/methods/list/
	return do[[]gateway.Rule](ctx, c, http.MethodGet, "/rules", nil)
}

// CreateRule creates a new gateway rule.
func (c *Client) CreateRule(ctx context.Context, req gateway.CreateRuleRequest) (gateway.Rule, error) {
	return do[gateway.Rule](ctx, c, http.MethodPost, "/rules", req)
}

// DeleteRule deletes the gateway rule with the given ID.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	_, err := do[json.RawMessage](ctx, c, http.MethodDelete, "/rules/"+url.PathEscape(id), nil)

	return err
}

// Ensure Client conforms to the gateway.Client interface at compile time.
var _ gateway.Client = (*Client)(nil)

// New constructs a Client for the given account that uses the provided
// http.Client and API token.
func New(httpClient *http.Client, accountID, token string) *Client {
	return NewWithBaseURL(httpClient, BaseURL, accountID, token)
}

// NewWithBaseURL is like New but talks to an alternative API root.
func NewWithBaseURL(httpClient *http.Client, baseURL, accountID, token string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/") + "/accounts/" + url.PathEscape(accountID) + "/gateway",
		token:      token,
	}
}
