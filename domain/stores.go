package domain

import "context"

// VectorStore defines the interface for the external vector index engine.
// All implementations must be safe for concurrent use.
type VectorStore interface {
	// EnsureCollection provisions the collection if it is absent.
	// It is idempotent and safe to call concurrently.
	EnsureCollection(ctx context.Context) error
	// Upsert writes the item's fingerprint and metadata payload under its PointID.
	Upsert(ctx context.Context, item Item) error
	// FindByItemID returns up to limit items whose payload carries the given
	// business key. An empty result is not an error.
	FindByItemID(ctx context.Context, itemID string, limit int) ([]Item, error)
	// Search returns the topK nearest items to the query fingerprint,
	// best match first. A missing collection yields an empty result.
	Search(ctx context.Context, query Embedding, topK int) ([]Match, error)
	// DeleteByIDs removes the records with the given point identities in one batch.
	DeleteByIDs(ctx context.Context, pointIDs []string) error
	// Reset drops and recreates the collection empty.
	Reset(ctx context.Context) error
}

// BlobStore defines the interface for durable image byte storage.
type BlobStore interface {
	// Save persists the image bytes under a fresh, collision-free key derived
	// from itemID and returns the blob's locator.
	Save(ctx context.Context, itemID string, data []byte) (string, error)
	// Delete removes the blob at path. A missing blob is not an error.
	Delete(ctx context.Context, path string) error
	// DeleteAll removes every blob and returns the number removed.
	DeleteAll(ctx context.Context) (int, error)
	// Exists reports whether a blob is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// ImageEmbedder converts an image into its fixed-length fingerprint.
// Implementations hold no mutable state and are safe for concurrent use.
type ImageEmbedder interface {
	Embed(ctx context.Context, image []byte) (Embedding, error)
	// Dimension returns the dimensionality of produced fingerprints.
	Dimension() int
}

// ImageFetcher retrieves image bytes from a URL within a bounded timeout.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
