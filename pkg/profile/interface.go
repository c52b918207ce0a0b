// Package profile defines the data types and client abstraction of a
// denylist/rewrite based DNS filtering profile. Profile entries carry no
// ownership tag and are reconciled by diffing against the desired state.
package profile

import "context"

// Deny is a denylist entry. ID is the denied domain.
type Deny struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// Rewrite answers queries for Name with Content.
type Rewrite struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CreateRewriteRequest is the payload of Client.CreateRewrite.
type CreateRewriteRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Client is the abstraction over profile providers.
//
// Every method fails with serrors.ErrUnauthorized or serrors.ErrForbidden when
// the key is rejected, serrors.ErrRateLimited when throttled,
// serrors.ErrRejected when the provider reports errors in a successful
// response and a *serrors.StatusError for any other non-2xx answer.
//
//go:generate mockgen -package mockprofile -source=interface.go -destination=mock/mockprofile.go *
type Client interface {
	// Denylist returns all denylist entries.
	Denylist(ctx context.Context) ([]Deny, error)
	// CreateDeny adds an entry to the denylist.
	CreateDeny(ctx context.Context, entry Deny) error
	// DeleteDeny removes the denylist entry with the given ID.
	DeleteDeny(ctx context.Context, id string) error
	// Rewrites returns all rewrite entries.
	Rewrites(ctx context.Context) ([]Rewrite, error)
	// CreateRewrite adds a rewrite entry and returns it with its ID.
	CreateRewrite(ctx context.Context, req CreateRewriteRequest) (Rewrite, error)
	// DeleteRewrite removes the rewrite entry with the given ID.
	DeleteRewrite(ctx context.Context, id string) error
}
