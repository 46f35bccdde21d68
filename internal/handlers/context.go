package handlers

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/macrame/admin/pkg/errors"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

func param(c *gin.Context, key string) string {
	return strings.TrimSpace(c.Param(key))
}

// optionalString returns nil for blank values.
func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// uploadedFiles returns the files posted under "files" (or a single "file").
func uploadedFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, appErrors.NewBadRequest("multipart form expected")
	}
	headers := append([]*multipart.FileHeader{}, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	if len(headers) == 0 {
		return nil, appErrors.NewBadRequest("no files given")
	}
	return headers, nil
}
