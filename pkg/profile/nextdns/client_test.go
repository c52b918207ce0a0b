package nextdns_test

import (
	"context"
	"encoding/json"
	"filtersync/pkg/profile"
	"filtersync/pkg/profile/nextdns"
	"filtersync/pkg/serrors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// rtFunc allows using a function as an http.RoundTripper.
type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(fn rtFunc) *nextdns.Client {
	return nextdns.New(&http.Client{Transport: fn}, "abc123", "test-key")
}

func respond(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestClient_Denylist_success(t *testing.T) {
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "api.nextdns.io", r.URL.Host)
		require.Equal(t, "/profiles/abc123/denylist", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		return respond(http.StatusOK, `{"data":[{"id":"a.com","active":true},{"id":"b.com","active":false}]}`), nil
	})

	entries, err := c.Denylist(context.Background())
	require.NoError(t, err)
	require.Equal(t, []profile.Deny{{ID: "a.com", Active: true}, {ID: "b.com"}}, entries)
}

func TestClient_CreateDeny_sendsEntry(t *testing.T) {
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/profiles/abc123/denylist", r.URL.Path)

		var got profile.Deny
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, profile.Deny{ID: "a.com", Active: true}, got)

		return respond(http.StatusOK, `{"data":{"id":"a.com","active":true}}`), nil
	})

	require.NoError(t, c.CreateDeny(context.Background(), profile.Deny{ID: "a.com", Active: true}))
}

func TestClient_Rewrites_and_create(t *testing.T) {
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "/profiles/abc123/rewrites", r.URL.Path)
		if r.Method == http.MethodGet {
			return respond(http.StatusOK, `{"data":[{"id":"rw1","name":"a.com","content":"1.1.1.1"}]}`), nil
		}

		var got profile.CreateRewriteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, profile.CreateRewriteRequest{Name: "b.com", Content: "2.2.2.2"}, got)

		return respond(http.StatusOK, `{"data":{"id":"rw2","name":"b.com","content":"2.2.2.2"}}`), nil
	})

	rewrites, err := c.Rewrites(context.Background())
	require.NoError(t, err)
	require.Equal(t, []profile.Rewrite{{ID: "rw1", Name: "a.com", Content: "1.1.1.1"}}, rewrites)

	created, err := c.CreateRewrite(context.Background(), profile.CreateRewriteRequest{Name: "b.com", Content: "2.2.2.2"})
	require.NoError(t, err)
	require.Equal(t, "rw2", created.ID)
}

func TestClient_Delete_emptyBody(t *testing.T) {
	var paths []string
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)

		return respond(http.StatusNoContent, ""), nil
	})

	require.NoError(t, c.DeleteDeny(context.Background(), "a.com"))
	require.NoError(t, c.DeleteRewrite(context.Background(), "rw1"))
	require.Equal(t, []string{"/profiles/abc123/denylist/a.com", "/profiles/abc123/rewrites/rw1"}, paths)
}

func TestClient_errors(t *testing.T) {
	cases := []struct {
		name string
		code int
		body string
		want error
	}{
		{name: "unauthorized", code: http.StatusUnauthorized, want: serrors.ErrUnauthorized},
		{name: "forbidden", code: http.StatusForbidden, want: serrors.ErrForbidden},
		{name: "too many requests", code: http.StatusTooManyRequests, want: serrors.ErrRateLimited},
		{name: "gateway timeout", code: http.StatusGatewayTimeout, want: serrors.ErrRateLimited},
		{name: "cloudflare timeout", code: 524, want: serrors.ErrRateLimited},
		{name: "errors in body", code: http.StatusOK, body: `{"errors":[{"code":"duplicate"}]}`, want: serrors.ErrRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(func(*http.Request) (*http.Response, error) {
				return respond(tc.code, tc.body), nil
			})

			err := c.CreateDeny(context.Background(), profile.Deny{ID: "a.com", Active: true})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClient_rejectedCarriesDetails(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, `{"errors":[{"code":"invalid","source":{"parameter":"name"}}]}`), nil
	})

	_, err := c.CreateRewrite(context.Background(), profile.CreateRewriteRequest{Name: "x"})
	require.ErrorIs(t, err, serrors.ErrRejected)
	require.Contains(t, err.Error(), `"code":"invalid"`)
}

func TestClient_badGatewayIsNotThrottle(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusBadGateway, "bad gateway"), nil
	})

	_, err := c.Denylist(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, serrors.ErrRateLimited)
	require.Equal(t, http.StatusBadGateway, serrors.StatusCode(err))
}
