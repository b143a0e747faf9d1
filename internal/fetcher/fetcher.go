// Package fetcher downloads source pages and feeds over HTTP and decodes XML feeds.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote documents for source adapters.
type Fetcher interface {
	// Download fetches url and returns the response body. The caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
