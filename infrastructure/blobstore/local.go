// Package blobstore provides domain.BlobStore implementations for saved
// images: a local-disk store and an S3-compatible object store.
//
// Blob names follow the pattern <item_id>_<random-hex>.jpg so that a key is
// collision-free even when the same item is re-ingested after deletion.
package blobstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local implements domain.BlobStore on top of the local filesystem.
// All blobs live directly under the configured root directory; the returned
// paths are absolute so they stay resolvable however the payload is read back.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", abs, err)
	}
	return &Local{root: abs}, nil
}

// Save writes the image bytes under a fresh name derived from itemID and
// returns the blob's absolute path.
func (l *Local) Save(_ context.Context, itemID string, data []byte) (string, error) {
	full := filepath.Join(l.root, blobName(itemID))
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return full, nil
}

// Delete removes the blob at path. If the blob does not exist, Delete
// returns nil (idempotent).
func (l *Local) Delete(_ context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// DeleteAll removes every file under the root and returns the number removed.
func (l *Local) DeleteAll(_ context.Context) (int, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage directory: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(l.root, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Exists reports whether a blob is present at path.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// blobName builds a fresh, collision-free file name for an item's image.
// Path separators in the business key are flattened so the name cannot
// escape the store root.
func blobName(itemID string) string {
	safe := strings.NewReplacer("/", "-", "\\", "-").Replace(itemID)
	u := uuid.New()
	return fmt.Sprintf("%s_%s.jpg", safe, hex.EncodeToString(u[:]))
}
