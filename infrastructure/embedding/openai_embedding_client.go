package embedding

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"

	"image-search/domain"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults matching an EfficientNet-B0 feature extractor served behind an
// OpenAI-compatible embeddings endpoint.
const (
	defaultModel     = "efficientnet-b0"
	defaultDimension = 1280
)

// OpenAIEmbeddingClient implements the domain.ImageEmbedder interface
// against an OpenAI-compatible /embeddings endpoint. Image bytes are sent
// as a base64 data URI, the convention used by self-hosted CLIP-style
// encoders (Infinity, LocalAI, and similar) behind this API.
//
// The client holds no mutable state and is safe for concurrent use.
type OpenAIEmbeddingClient struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
}

// NewOpenAIEmbeddingClient creates a new OpenAIEmbeddingClient.
// It reads the API key, base URL, model name, and dimension from the
// EMBEDDING_API_KEY, EMBEDDING_BASE_URL, EMBEDDING_MODEL, and EMBEDDING_DIM
// environment variables. Self-hosted endpoints may run keyless, so the key
// is only required when no base URL override is configured.
func NewOpenAIEmbeddingClient() (*OpenAIEmbeddingClient, error) {
	apiKey := os.Getenv("EMBEDDING_API_KEY")
	baseURL := os.Getenv("EMBEDDING_BASE_URL")
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("EMBEDDING_API_KEY or EMBEDDING_BASE_URL environment variable must be set")
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultModel
	}

	dim := defaultDimension
	if v := os.Getenv("EMBEDDING_DIM"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid EMBEDDING_DIM value: %q", v)
		}
		dim = parsed
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIEmbeddingClient{
		client: openai.NewClientWithConfig(config),
		model:  openai.EmbeddingModel(model),
		dim:    dim,
	}, nil
}

// Embed computes the fingerprint for the given image bytes.
// The result is validated against the configured dimensionality so a
// misconfigured encoder cannot poison the collection.
func (c *OpenAIEmbeddingClient) Embed(ctx context.Context, image []byte) (domain.Embedding, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image data")
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	req := openai.EmbeddingRequest{
		Input: []string{dataURI},
		Model: c.model,
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response contains no data")
	}

	fingerprint := domain.Embedding(resp.Data[0].Embedding)
	if len(fingerprint) != c.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(fingerprint), c.dim)
	}
	return fingerprint, nil
}

// Dimension returns the dimensionality of produced fingerprints.
func (c *OpenAIEmbeddingClient) Dimension() int {
	return c.dim
}
