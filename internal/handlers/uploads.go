package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"github.com/macrame/admin/pkg/response"
)

type uploadResult[T any] struct {
	Files  []T      `json:"files"`
	Errors []string `json:"errors,omitempty"`
}

// writeUploadResult reports stored files. A partially failed batch answers 207 with
// one message per failed file.
func writeUploadResult[T any](c *gin.Context, files []T, err error) {
	if files == nil {
		files = []T{}
	}
	result := uploadResult[T]{Files: files}
	status := http.StatusCreated
	if err != nil {
		status = http.StatusMultiStatus
		for _, e := range multierr.Errors(err) {
			result.Errors = append(result.Errors, e.Error())
		}
	}
	c.JSON(status, response.Response{Success: err == nil, Data: result})
}
