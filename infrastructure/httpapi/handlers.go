package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"image-search/application"
	"image-search/domain"

	"github.com/gin-gonic/gin"
)

// readUpload returns the bytes of the optional "file" multipart field, or
// nil when the field is absent.
func readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, domain.WrapError(domain.CodeInvalidInput, "invalid file upload", err)
	}
	f, err := header.Open()
	if err != nil {
		return nil, domain.WrapError(domain.CodeInvalidInput, "failed to open file upload", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.WrapError(domain.CodeInvalidInput, "failed to read file upload", err)
	}
	return data, nil
}

func ingest(svc ItemAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileData, err := readUpload(c)
		if err != nil {
			writeError(c, err)
			return
		}

		result, err := svc.Ingest(c.Request.Context(), application.IngestInput{
			ItemID:     c.PostForm("item_id"),
			ItemName:   c.PostForm("item_name"),
			ItemCode:   c.PostForm("item_code"),
			ImageURL:   c.PostForm("image_url"),
			ImageBytes: fileData,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "indexed",
			"point_id":   result.PointID,
			"image_path": result.BlobPath,
			"source_url": result.SourceURL,
		})
	}
}

func search(svc ItemAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileData, err := readUpload(c)
		if err != nil {
			writeError(c, err)
			return
		}

		topK := 0
		if raw := c.PostForm("top_k"); raw != "" {
			topK, err = strconv.Atoi(raw)
			if err != nil {
				writeError(c, domain.NewError(domain.CodeInvalidInput, "top_k must be an integer"))
				return
			}
		}

		matches, err := svc.Search(c.Request.Context(), application.SearchInput{
			ImageURL:   c.PostForm("image_url"),
			ImageBytes: fileData,
			TopK:       topK,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		results := make([]gin.H, 0, len(matches))
		for _, m := range matches {
			results = append(results, gin.H{
				"score":      m.Score,
				"item_id":    m.ItemID,
				"item_name":  m.ItemName,
				"item_code":  m.ItemCode,
				"image_path": m.BlobPath,
				"source_url": m.SourceURL,
			})
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func deleteItem(svc ItemAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID := c.Param("item_id")

		result, err := svc.Delete(c.Request.Context(), itemID)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":         "deleted",
			"item_id":        itemID,
			"points_deleted": result.PointsDeleted,
			"files_deleted":  result.BlobsDeleted,
		})
	}
}

func deleteAll(svc ItemAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		removed, err := svc.Reset(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":        "all_deleted",
			"files_deleted": removed,
		})
	}
}
