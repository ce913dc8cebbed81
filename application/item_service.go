package application

import (
	"context"
	"log"

	"image-search/domain"

	"github.com/google/uuid"
)

// defaultTopK bounds a search when the caller does not specify top_k.
const defaultTopK = 5

// IngestInput carries the parameters of an ingest workflow. Exactly one of
// ImageBytes or ImageURL must be provided.
type IngestInput struct {
	ItemID     string
	ItemName   string
	ItemCode   string
	ImageBytes []byte
	ImageURL   string
}

// IngestResult is the outcome of a successful ingest.
type IngestResult struct {
	PointID   string
	BlobPath  string
	SourceURL string
}

// SearchInput carries the parameters of a search workflow. Exactly one of
// ImageBytes or ImageURL must be provided. A zero TopK means defaultTopK.
type SearchInput struct {
	ImageBytes []byte
	ImageURL   string
	TopK       int
}

// DeleteResult is the outcome of a successful single-item deletion.
type DeleteResult struct {
	PointsDeleted int
	BlobsDeleted  []string
}

// ItemService coordinates the ingest, search, delete, and reset workflows
// across the embedder, the vector store, and the blob store.
//
// Mutating workflows for the same item key are serialized through a keyed
// lock registry; Reset excludes all of them at once. Search takes no lock
// and may observe a point that a concurrent delete is removing.
type ItemService struct {
	embedder domain.ImageEmbedder
	store    domain.VectorStore
	blobs    domain.BlobStore
	fetcher  domain.ImageFetcher
	registry *ItemRegistry
	locks    *keyLocks
}

// NewItemService creates an ItemService with the given collaborators.
func NewItemService(embedder domain.ImageEmbedder, store domain.VectorStore, blobs domain.BlobStore, fetcher domain.ImageFetcher) *ItemService {
	return &ItemService{
		embedder: embedder,
		store:    store,
		blobs:    blobs,
		fetcher:  fetcher,
		registry: NewItemRegistry(store),
		locks:    newKeyLocks(),
	}
}

// EnsureReady provisions the collection. Called once at startup; every
// workflow re-ensures on its own, so a failure here is not fatal.
func (s *ItemService) EnsureReady(ctx context.Context) error {
	return s.store.EnsureCollection(ctx)
}

// Ingest registers a new item: it resolves the image, computes its
// fingerprint, saves the blob, and writes the vector record. The item key's
// exclusivity scope is held from the duplicate check through the commit, so
// concurrent ingests of the same unseen key produce exactly one winner.
//
// If the vector write fails after the blob was saved, the blob is removed
// again (single-level compensation); no other rollback is attempted.
func (s *ItemService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if in.ItemID == "" {
		return nil, domain.NewError(domain.CodeInvalidInput, "item_id is required")
	}
	if len(in.ImageBytes) == 0 && in.ImageURL == "" {
		return nil, domain.NewError(domain.CodeInvalidInput, "provide file or image_url")
	}

	s.locks.lockKey(in.ItemID)
	defer s.locks.unlockKey(in.ItemID)

	if err := s.store.EnsureCollection(ctx); err != nil {
		return nil, domain.WrapError(domain.CodeIndexFailed, "failed to provision collection", err)
	}

	exists, err := s.registry.Exists(ctx, in.ItemID)
	if err != nil {
		return nil, domain.WrapError(domain.CodeIndexFailed, "duplicate check failed", err)
	}
	if exists {
		return nil, domain.NewError(domain.CodeConflict, "item_id already exists")
	}

	jpegData, err := s.resolveImage(ctx, in.ImageBytes, in.ImageURL)
	if err != nil {
		return nil, err
	}

	fingerprint, err := s.embedder.Embed(ctx, jpegData)
	if err != nil {
		return nil, domain.WrapError(domain.CodeIndexFailed, "failed to compute fingerprint", err)
	}

	blobPath, err := s.blobs.Save(ctx, in.ItemID, jpegData)
	if err != nil {
		return nil, domain.WrapError(domain.CodeStorageFailed, "failed to save image", err)
	}

	sourceURL := in.ImageURL
	if sourceURL == "" {
		// Uploaded bytes have no origin; record the blob path instead.
		sourceURL = blobPath
	}

	item := domain.Item{
		PointID:     uuid.New().String(),
		ItemID:      in.ItemID,
		ItemName:    in.ItemName,
		ItemCode:    in.ItemCode,
		BlobPath:    blobPath,
		SourceURL:   sourceURL,
		Fingerprint: fingerprint,
	}

	if err := s.registry.Create(ctx, item); err != nil {
		// Compensating action: the blob must not outlive a failed commit.
		if delErr := s.blobs.Delete(ctx, blobPath); delErr != nil {
			log.Printf("failed to remove blob %s after index failure: %v\n", blobPath, delErr)
		}
		if domain.CodeOf(err) == domain.CodeConflict {
			return nil, err
		}
		return nil, domain.WrapError(domain.CodeIndexFailed, "failed to index item", err)
	}

	return &IngestResult{
		PointID:   item.PointID,
		BlobPath:  blobPath,
		SourceURL: in.ImageURL,
	}, nil
}

// Search returns the items most similar to the query image, best match
// first. Searching an empty or not-yet-provisioned system returns an empty
// result rather than an error.
func (s *ItemService) Search(ctx context.Context, in SearchInput) ([]domain.Match, error) {
	topK := in.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	if topK < 0 {
		return nil, domain.NewError(domain.CodeInvalidInput, "top_k must be positive")
	}
	if len(in.ImageBytes) == 0 && in.ImageURL == "" {
		return nil, domain.NewError(domain.CodeInvalidInput, "provide file or image_url")
	}

	jpegData, err := s.resolveImage(ctx, in.ImageBytes, in.ImageURL)
	if err != nil {
		return nil, err
	}

	fingerprint, err := s.embedder.Embed(ctx, jpegData)
	if err != nil {
		return nil, domain.WrapError(domain.CodeIndexFailed, "failed to compute fingerprint", err)
	}

	if err := s.store.EnsureCollection(ctx); err != nil {
		return nil, domain.WrapError(domain.CodeIndexFailed, "failed to provision collection", err)
	}

	matches, err := s.store.Search(ctx, fingerprint, topK)
	if err != nil {
		return nil, domain.WrapError(domain.CodeIndexFailed, "search failed", err)
	}
	return matches, nil
}

// Delete removes the item(s) registered under itemID: vector records first,
// blobs second, so a crash mid-operation leaves at worst an orphaned blob
// rather than a dangling vector record. Blob deletion is idempotent per path.
func (s *ItemService) Delete(ctx context.Context, itemID string) (*DeleteResult, error) {
	if itemID == "" {
		return nil, domain.NewError(domain.CodeInvalidInput, "item_id is required")
	}

	s.locks.lockKey(itemID)
	defer s.locks.unlockKey(itemID)

	items, err := s.registry.FindByKey(ctx, itemID)
	if err != nil {
		return nil, domain.WrapError(domain.CodeIndexFailed, "failed to look up item", err)
	}
	if len(items) == 0 {
		return nil, domain.NewError(domain.CodeNotFound, "item_id not found")
	}

	pointIDs := make([]string, 0, len(items))
	for _, item := range items {
		pointIDs = append(pointIDs, item.PointID)
	}
	if err := s.store.DeleteByIDs(ctx, pointIDs); err != nil {
		return nil, domain.WrapError(domain.CodeIndexFailed, "failed to delete vector records", err)
	}

	removed := make([]string, 0, len(items))
	for _, item := range items {
		if item.BlobPath == "" {
			continue
		}
		present, err := s.blobs.Exists(ctx, item.BlobPath)
		if err != nil {
			return nil, domain.WrapError(domain.CodeStorageFailed, "failed to check blob", err)
		}
		if !present {
			continue
		}
		if err := s.blobs.Delete(ctx, item.BlobPath); err != nil {
			return nil, domain.WrapError(domain.CodeStorageFailed, "failed to delete blob", err)
		}
		removed = append(removed, item.BlobPath)
	}

	return &DeleteResult{
		PointsDeleted: len(pointIDs),
		BlobsDeleted:  removed,
	}, nil
}

// Reset drops and recreates the collection empty and removes every blob.
// It excludes all in-flight mutating workflows for its whole duration, so a
// point is either fully written then wiped, or never written at all.
func (s *ItemService) Reset(ctx context.Context) (int, error) {
	s.locks.lockAll()
	defer s.locks.unlockAll()

	if err := s.store.Reset(ctx); err != nil {
		return 0, domain.WrapError(domain.CodeIndexFailed, "failed to reset collection", err)
	}
	removed, err := s.blobs.DeleteAll(ctx)
	if err != nil {
		return 0, domain.WrapError(domain.CodeStorageFailed, "failed to delete blobs", err)
	}
	return removed, nil
}

// resolveImage turns the request's image source into normalized JPEG bytes.
func (s *ItemService) resolveImage(ctx context.Context, data []byte, url string) ([]byte, error) {
	if len(data) == 0 {
		fetched, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, domain.WrapError(domain.CodeFetchFailed, "could not fetch image", err)
		}
		data = fetched
	}
	return domain.NormalizeJPEG(data)
}
