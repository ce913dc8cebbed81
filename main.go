package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"image-search/application"
	"image-search/domain"
	"image-search/infrastructure/blobstore"
	"image-search/infrastructure/embedding"
	"image-search/infrastructure/httpapi"
	"image-search/infrastructure/imagefetch"
	"image-search/infrastructure/vectorstore"

	"github.com/joho/godotenv"
)

// main is the entry point of the reverse image search server.
// It wires the embedder, vector store, blob store, and fetcher into the
// item service, provisions the collection, and starts the HTTP API.
func main() {
	_ = godotenv.Load(".env.local")

	embedder, err := embedding.NewOpenAIEmbeddingClient()
	if err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		os.Exit(1)
	}

	store, err := vectorstore.NewQdrantClient(embedder.Dimension())
	if err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		os.Exit(1)
	}

	blobs, err := newBlobStore()
	if err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		os.Exit(1)
	}

	fetcher := imagefetch.NewFetcher(fetchTimeout())

	service := application.NewItemService(embedder, store, blobs, fetcher)

	// Provision eagerly so the first request doesn't pay for it; every
	// workflow re-ensures on its own, so failure here is not fatal.
	if err := service.EnsureReady(context.Background()); err != nil {
		log.Printf("warning: collection not provisioned at startup: %v\n", err)
	}

	router := httpapi.NewRouter(service, os.Getenv("IMAGE_SEARCH_API_KEY"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := router.Run(":" + port); err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		os.Exit(1)
	}
}

// newBlobStore builds the configured blob store backend: local disk by
// default, S3 when BLOB_BACKEND=s3.
func newBlobStore() (domain.BlobStore, error) {
	switch backend := os.Getenv("BLOB_BACKEND"); backend {
	case "", "local":
		dir := os.Getenv("IMAGE_STORAGE_DIR")
		if dir == "" {
			dir = "data/images"
		}
		return blobstore.NewLocal(dir)
	case "s3":
		bucket := os.Getenv("S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET environment variable is not set")
		}
		client := blobstore.Connect(blobstore.S3Config{
			EndpointURL: os.Getenv("S3_ENDPOINT"),
			Region:      os.Getenv("S3_REGION"),
			AccessKey:   os.Getenv("S3_ACCESS_KEY"),
			SecretKey:   os.Getenv("S3_SECRET_KEY"),
		})
		return blobstore.NewS3(client, bucket, os.Getenv("S3_PREFIX")), nil
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND value: %q", backend)
	}
}

// fetchTimeout reads the image download timeout (seconds) from the
// environment, falling back to the package default.
func fetchTimeout() time.Duration {
	raw := os.Getenv("IMAGE_FETCH_TIMEOUT")
	if raw == "" {
		return imagefetch.DefaultTimeout
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		log.Printf("invalid IMAGE_FETCH_TIMEOUT value %q, using default\n", raw)
		return imagefetch.DefaultTimeout
	}
	return time.Duration(seconds) * time.Second
}
