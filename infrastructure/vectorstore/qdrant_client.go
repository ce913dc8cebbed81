package vectorstore

import (
	"context"
	"fmt"
	"log"
	"os"

	"image-search/domain"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// Payload field keys of an item record.
const (
	payloadItemID    = "item_id"
	payloadItemName  = "item_name"
	payloadItemCode  = "item_code"
	payloadImagePath = "image_path"
	payloadSourceURL = "source_url"
)

// QdrantClient implements the domain.VectorStore interface using Qdrant.
// The collection is fixed to cosine distance at the configured dimension.
type QdrantClient struct {
	points         qdrant.PointsClient
	collections    qdrant.CollectionsClient
	collectionName string
	dimension      uint64
}

// NewQdrantClient creates a new QdrantClient for fingerprints of the given
// dimensionality. It reads the Qdrant address and collection name from
// environment variables.
func NewQdrantClient(dimension int) (*QdrantClient, error) {
	qdrantAddr := os.Getenv("QDRANT_ADDR")
	if qdrantAddr == "" {
		qdrantAddr = "localhost:6334"
		log.Printf("QDRANT_ADDR environment variable not set, using default: %s\n", qdrantAddr)
	}
	collectionName := os.Getenv("QDRANT_COLLECTION_NAME")
	if collectionName == "" {
		collectionName = "items"
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid fingerprint dimension: %d", dimension)
	}

	conn, err := grpc.NewClient(qdrantAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("could not connect to Qdrant: %w", err)
	}

	return &QdrantClient{
		points:         qdrant.NewPointsClient(conn),
		collections:    qdrant.NewCollectionsClient(conn),
		collectionName: collectionName,
		dimension:      uint64(dimension),
	}, nil
}

// EnsureCollection checks if the collection exists and creates it if it
// doesn't. Concurrent callers may race; a create that loses the race is
// treated as success.
func (c *QdrantClient) EnsureCollection(ctx context.Context) error {
	_, err := c.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: c.collectionName,
	})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to inspect collection %s: %w", c.collectionName, err)
	}

	log.Printf("Collection %s does not exist, creating...\n", c.collectionName)
	return c.createCollection(ctx)
}

// createCollection creates the collection with the fixed vector parameters.
func (c *QdrantClient) createCollection(ctx context.Context) error {
	_, err := c.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: c.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     c.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("failed to create collection %s: %w", c.collectionName, err)
	}
	return nil
}

// Upsert writes the item's fingerprint and metadata payload to Qdrant.
func (c *QdrantClient) Upsert(ctx context.Context, item domain.Item) error {
	if len(item.Fingerprint) == 0 {
		return fmt.Errorf("item %s has no fingerprint", item.ItemID)
	}

	point := &qdrant.PointStruct{
		Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: item.PointID}},
		Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: item.Fingerprint}}},
		Payload: itemPayload(item),
	}

	// Wait so the write is acknowledged before the caller learns the point id.
	_, err := c.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collectionName,
		Points:         []*qdrant.PointStruct{point},
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point to Qdrant: %w", err)
	}
	return nil
}

// FindByItemID scrolls the collection for records whose payload carries the
// given business key. A missing collection yields an empty result.
func (c *QdrantClient) FindByItemID(ctx context.Context, itemID string, limit int) ([]domain.Item, error) {
	resp, err := c.points.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: c.collectionName,
		Filter:         itemIDFilter(itemID),
		Limit:          proto.Uint32(uint32(limit)),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scroll points in Qdrant: %w", err)
	}

	items := make([]domain.Item, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		items = append(items, itemFromPayload(pointIDString(point.GetId()), point.GetPayload()))
	}
	return items, nil
}

// Search returns the topK nearest items to the query fingerprint, best
// match first. A missing collection yields an empty result so searching an
// empty system never errors.
func (c *QdrantClient) Search(ctx context.Context, query domain.Embedding, topK int) ([]domain.Match, error) {
	resp, err := c.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: c.collectionName,
		Vector:         query,
		Limit:          uint64(topK),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search points in Qdrant: %w", err)
	}

	matches := make([]domain.Match, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		matches = append(matches, domain.Match{
			Score: hit.GetScore(),
			Item:  itemFromPayload(pointIDString(hit.GetId()), hit.GetPayload()),
		})
	}
	return matches, nil
}

// DeleteByIDs removes the records with the given point identities in one
// batch call.
func (c *QdrantClient) DeleteByIDs(ctx context.Context, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, 0, len(pointIDs))
	for _, id := range pointIDs {
		ids = append(ids, &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}})
	}

	_, err := c.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: ids},
			},
		},
		Wait: proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points from Qdrant: %w", err)
	}
	return nil
}

// Reset drops the collection and recreates it empty.
func (c *QdrantClient) Reset(ctx context.Context) error {
	_, err := c.collections.Delete(ctx, &qdrant.DeleteCollection{
		CollectionName: c.collectionName,
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to drop collection %s: %w", c.collectionName, err)
	}
	return c.createCollection(ctx)
}

// itemIDFilter builds the payload filter matching a single business key.
func itemIDFilter(itemID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadItemID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: itemID},
						},
					},
				},
			},
		},
	}
}

// itemPayload converts an item's metadata into a Qdrant payload map.
// Optional fields are stored only when present.
func itemPayload(item domain.Item) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		payloadItemID:    stringValue(item.ItemID),
		payloadImagePath: stringValue(item.BlobPath),
	}
	if item.ItemName != "" {
		payload[payloadItemName] = stringValue(item.ItemName)
	}
	if item.ItemCode != "" {
		payload[payloadItemCode] = stringValue(item.ItemCode)
	}
	if item.SourceURL != "" {
		payload[payloadSourceURL] = stringValue(item.SourceURL)
	}
	return payload
}

// itemFromPayload safely extracts an item's fields from a Qdrant payload.
func itemFromPayload(pointID string, payload map[string]*qdrant.Value) domain.Item {
	return domain.Item{
		PointID:   pointID,
		ItemID:    payload[payloadItemID].GetStringValue(),
		ItemName:  payload[payloadItemName].GetStringValue(),
		ItemCode:  payload[payloadItemCode].GetStringValue(),
		BlobPath:  payload[payloadImagePath].GetStringValue(),
		SourceURL: payload[payloadSourceURL].GetStringValue(),
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

// pointIDString extracts the UUID form of a point identity.
func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuidVal, ok := id.GetPointIdOptions().(*qdrant.PointId_Uuid); ok {
		return uuidVal.Uuid
	}
	return ""
}
