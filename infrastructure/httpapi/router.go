// Package httpapi exposes the item workflows over HTTP.
//
// The surface mirrors the service contract: POST /ingest, POST /search,
// DELETE /items/:item_id, DELETE /items, and GET /health as a liveness
// probe. Every route except /health is gated by an opaque API key.
package httpapi

import (
	"context"
	"net/http"

	"image-search/application"
	"image-search/domain"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the caller's credential.
const APIKeyHeader = "Image-Search-Api-Key"

// ItemAPI is the application surface consumed by the HTTP handlers.
// The application.ItemService type satisfies this interface.
type ItemAPI interface {
	Ingest(ctx context.Context, in application.IngestInput) (*application.IngestResult, error)
	Search(ctx context.Context, in application.SearchInput) ([]domain.Match, error)
	Delete(ctx context.Context, itemID string) (*application.DeleteResult, error)
	Reset(ctx context.Context) (int, error)
}

// NewRouter builds the gin engine with all routes registered.
// When apiKey is empty the credential gate is disabled, which keeps local
// development friction-free; production deployments must configure a key.
func NewRouter(svc ItemAPI, apiKey string) *gin.Engine {
	router := gin.Default()

	router.GET("/health", health)

	authed := router.Group("/", requireAPIKey(apiKey))
	authed.POST("/ingest", ingest(svc))
	authed.POST("/search", search(svc))
	authed.DELETE("/items/:item_id", deleteItem(svc))
	authed.DELETE("/items", deleteAll(svc))

	return router
}

// requireAPIKey rejects requests whose credential header does not match the
// configured key. Pass/fail only; the key format is opaque.
func requireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader(APIKeyHeader) != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid API key"})
			return
		}
		c.Next()
	}
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusOf maps a workflow error code to its HTTP status.
func statusOf(err error) int {
	switch domain.CodeOf(err) {
	case domain.CodeInvalidInput, domain.CodeInvalidImage, domain.CodeFetchFailed:
		return http.StatusBadRequest
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a workflow error as its HTTP failure response.
func writeError(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"detail": err.Error()})
}
