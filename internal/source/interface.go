// Package source loads the desired filtering state from remotely hosted
// hosts-style list files: it fetches every configured source, normalizes the
// lines and merges the sources in priority order.
package source

import "context"

// Fetcher retrieves the raw text of a list source.
//
//go:generate mockgen -package mocksource -source=interface.go -destination=mock/mocksource.go *
type Fetcher interface {
	// Fetch returns the body of the source at url.
	Fetch(ctx context.Context, url string) (string, error)
}
