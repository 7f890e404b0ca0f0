package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/holon-run/buildbridge/pkg/artifact"
)

// DirStore keeps objects as files under a local root directory. It backs the
// "local" storage backend, whose files are served over HTTP by the server.
type DirStore struct {
	root      string
	publicURL string
}

// NewDirStore creates a store rooted at root, advertising publicURL.
func NewDirStore(root, publicURL string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &DirStore{root: root, publicURL: publicURL}, nil
}

// Root returns the directory objects are written under.
func (s *DirStore) Root() string {
	return s.root
}

// Put writes body to <root>/<key>. Content headers are not persisted; Handler
// derives them from the key again when serving.
func (s *DirStore) Put(ctx context.Context, key string, body []byte, contentType, contentEncoding string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Handler serves the stored objects. Pre-compressed files (".br", ".gz") are
// served with their Content-Encoding and the type of the uncompressed file,
// as the object store would.
func (s *DirStore) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType, encoding := artifact.ContentTypeFor(r.URL.Path); encoding != "" {
			w.Header().Set("Content-Type", contentType)
			w.Header().Set("Content-Encoding", encoding)
		}
		files.ServeHTTP(w, r)
	})
}

// PublicURL returns <public base>/<key>.
func (s *DirStore) PublicURL(key string) string {
	return JoinURL(s.publicURL, key)
}

func (s *DirStore) pathFor(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}
