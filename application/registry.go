package application

import (
	"context"
	"fmt"

	"image-search/domain"
)

// Scroll page sizes against the vector store. An existence probe needs a
// single record; deletion collects every record carrying the key.
const (
	existsLimit  = 1
	findAllLimit = 100
)

// ItemRegistry maps business keys (item_id) to vector-index records and
// enforces the one-active-item-per-key rule. The registry itself is not a
// separate store: the vector index's payloads are the registry of record.
//
// Callers mutating a key must hold that key's exclusivity scope for the
// whole check-through-commit window; the registry's check-then-write is
// only atomic under that lock.
type ItemRegistry struct {
	store domain.VectorStore
}

// NewItemRegistry creates an ItemRegistry over the given vector store.
func NewItemRegistry(store domain.VectorStore) *ItemRegistry {
	return &ItemRegistry{store: store}
}

// Exists reports whether an active item with the given key exists.
func (r *ItemRegistry) Exists(ctx context.Context, itemID string) (bool, error) {
	items, err := r.store.FindByItemID(ctx, itemID, existsLimit)
	if err != nil {
		return false, fmt.Errorf("failed to look up item %s: %w", itemID, err)
	}
	return len(items) > 0, nil
}

// FindByKey returns every active item carrying the given key. More than one
// match indicates a pre-existing inconsistency and is tolerated so that
// deletion can repair it.
func (r *ItemRegistry) FindByKey(ctx context.Context, itemID string) ([]domain.Item, error) {
	items, err := r.store.FindByItemID(ctx, itemID, findAllLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to look up item %s: %w", itemID, err)
	}
	return items, nil
}

// Create commits a new item. It fails with CodeConflict if an active item
// with the same key exists at the moment of commit.
func (r *ItemRegistry) Create(ctx context.Context, item domain.Item) error {
	exists, err := r.Exists(ctx, item.ItemID)
	if err != nil {
		return err
	}
	if exists {
		return domain.NewError(domain.CodeConflict, "item_id already exists")
	}
	if err := r.store.Upsert(ctx, item); err != nil {
		return fmt.Errorf("failed to write item %s: %w", item.ItemID, err)
	}
	return nil
}
