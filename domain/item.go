package domain

// Embedding represents a fixed-length numerical fingerprint of an image.
type Embedding []float32

// Item represents one registered entity with its image and fingerprint metadata.
// ItemID is the caller-supplied business key, unique among active items.
// PointID identifies the vector-index record backing the item; it is generated
// at ingest time and never reused.
type Item struct {
	PointID     string    `json:"point_id"`
	ItemID      string    `json:"item_id"`
	ItemName    string    `json:"item_name,omitempty"`
	ItemCode    string    `json:"item_code,omitempty"`
	BlobPath    string    `json:"image_path"`
	SourceURL   string    `json:"source_url,omitempty"`
	Fingerprint Embedding `json:"-"`
}

// Match is a single search result: the matched item plus its similarity
// score under the collection's distance metric (higher is more similar).
type Match struct {
	Score float32 `json:"score"`
	Item
}
