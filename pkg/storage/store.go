// Package storage puts build artifacts into an object store and derives
// their public URLs.
package storage

import (
	"context"
	"strings"
)

// Store is an object store with a public read endpoint.
type Store interface {
	// Put writes body under key. An empty contentEncoding is omitted.
	Put(ctx context.Context, key string, body []byte, contentType, contentEncoding string) error

	// PublicURL returns the public URL for key. It never fails.
	PublicURL(key string) string
}

// JoinURL joins a public base URL and an object key.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
