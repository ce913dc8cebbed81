package application

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"image-search/domain"
)

// fakeEmbedder derives a deterministic pseudo-random unit vector from the
// image bytes: identical bytes embed identically (cosine 1), different
// bytes are effectively orthogonal.
type fakeEmbedder struct {
	dim int
}

func (e *fakeEmbedder) Embed(_ context.Context, img []byte) (domain.Embedding, error) {
	h := fnv.New64a()
	h.Write(img)
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make(domain.Embedding, e.dim)
	var norm float64
	for i := range vec {
		vec[i] = float32(r.NormFloat64())
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (e *fakeEmbedder) Dimension() int { return e.dim }

// fakeVectorStore is an in-memory brute-force stand-in for the vector index.
type fakeVectorStore struct {
	mu         sync.Mutex
	ensured    bool
	failUpsert error
	points     map[string]domain.Item
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: make(map[string]domain.Item)}
}

func (s *fakeVectorStore) EnsureCollection(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured = true
	return nil
}

func (s *fakeVectorStore) Upsert(_ context.Context, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert != nil {
		return s.failUpsert
	}
	if !s.ensured {
		return fmt.Errorf("collection does not exist")
	}
	s.points[item.PointID] = item
	return nil
}

func (s *fakeVectorStore) FindByItemID(_ context.Context, itemID string, limit int) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Item
	for _, item := range s.points {
		if item.ItemID == itemID {
			items = append(items, item)
			if len(items) == limit {
				break
			}
		}
	}
	return items, nil
}

func (s *fakeVectorStore) Search(_ context.Context, query domain.Embedding, topK int) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := make([]domain.Match, 0, len(s.points))
	for _, item := range s.points {
		matches = append(matches, domain.Match{
			Score: cosine(query, item.Fingerprint),
			Item:  item,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *fakeVectorStore) DeleteByIDs(_ context.Context, pointIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range pointIDs {
		delete(s.points, id)
	}
	return nil
}

func (s *fakeVectorStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = make(map[string]domain.Item)
	s.ensured = true
	return nil
}

func (s *fakeVectorStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

func cosine(a, b domain.Embedding) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// fakeBlobStore is an in-memory stand-in for image storage.
type fakeBlobStore struct {
	mu       sync.Mutex
	seq      int
	failSave error
	files    map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{files: make(map[string][]byte)}
}

func (s *fakeBlobStore) Save(_ context.Context, itemID string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return "", s.failSave
	}
	s.seq++
	path := fmt.Sprintf("mem/%s_%d.jpg", itemID, s.seq)
	s.files[path] = data
	return path, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *fakeBlobStore) DeleteAll(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.files)
	s.files = make(map[string][]byte)
	return removed, nil
}

func (s *fakeBlobStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok, nil
}

func (s *fakeBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// fakeFetcher serves canned URL downloads.
type fakeFetcher struct {
	images map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f.images[url]
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", url)
	}
	return data, nil
}

// newTestService builds an ItemService over in-memory fakes.
func newTestService(t *testing.T) (*ItemService, *fakeVectorStore, *fakeBlobStore, *fakeFetcher) {
	t.Helper()
	store := newFakeVectorStore()
	blobs := newFakeBlobStore()
	fetcher := &fakeFetcher{images: make(map[string][]byte)}
	svc := NewItemService(&fakeEmbedder{dim: 16}, store, blobs, fetcher)
	return svc, store, blobs, fetcher
}

// makeJPEG encodes a small solid-color JPEG for use as test input.
func makeJPEG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
