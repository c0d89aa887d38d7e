// Package media removes stored images referenced by items and profiles.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store deletes stored media by its reference handle.
type Store interface {
	Delete(ctx context.Context, handle string) error
}

// DiskStore keeps media files under a root directory. Handles are either a
// path relative to the root ("items/abc.jpg") or a URL whose path is that
// relative path. Files live at most one directory deep.
type DiskStore struct {
	root string
}

// NewDiskStore creates a DiskStore rooted at root.
func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

// Delete removes the file behind handle. A missing file is not an error.
func (s *DiskStore) Delete(_ context.Context, handle string) error {
	key, err := Key(handle)
	if err != nil {
		return err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete media %s: %w", key, err)
	}
	return nil
}

// maxKeyDepth is the deepest layout uploads are written with: "dir/file".
const maxKeyDepth = 2

// Key normalizes a handle into a clean relative key ("dir/file"). Handles
// that climb out of the root or nest deeper than the upload layout are
// rejected rather than shortened, so a handle never resolves to a different
// file.
func Key(handle string) (string, error) {
	if handle == "" {
		return "", fmt.Errorf("empty media handle")
	}
	p := handle
	if u, err := url.Parse(handle); err == nil && u.Scheme != "" {
		p = u.Path
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid media handle %q", handle)
		}
	}
	key := strings.Trim(path.Clean("/"+p), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("invalid media handle %q", handle)
	}
	if strings.Count(key, "/") >= maxKeyDepth {
		return "", fmt.Errorf("media handle %q nests deeper than %d segments", handle, maxKeyDepth)
	}
	return key, nil
}
