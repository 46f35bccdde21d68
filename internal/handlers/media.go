package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/models"
	appErrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/response"
)

// MediaHandler exposes the file library.
type MediaHandler struct {
	files *media.FileService
}

func NewMediaHandler(files *media.FileService) (*MediaHandler, error) {
	if files == nil {
		return nil, appErrors.New("HANDLER_CONFIG", "file service is required", http.StatusInternalServerError)
	}
	return &MediaHandler{files: files}, nil
}

type fileDTO struct {
	models.File
	URL string `json:"url"`
}

type fileIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

func mapFiles(files *media.FileService, list []models.File) []fileDTO {
	out := make([]fileDTO, 0, len(list))
	for i := range list {
		out = append(out, fileDTO{File: list[i], URL: files.URL(&list[i])})
	}
	return out
}

// GET /api/media/items?search=&group=&page=&per_page=
func (h *MediaHandler) List(c *gin.Context) {
	page, perPage := pagination(c)
	files, total, err := h.files.List(requestContext(c), media.ListOptions{
		Page:    page,
		PerPage: perPage,
		Search:  c.Query("search"),
		Group:   c.Query("group"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, mapFiles(h.files, files), response.NewMeta(page, perPage, total))
}

// GET /api/media/:file
func (h *MediaHandler) Get(c *gin.Context) {
	file, err := h.files.Get(requestContext(c), param(c, "file"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, fileDTO{File: *file, URL: h.files.URL(file)})
}

// POST /api/media/upload (multipart: files[], group)
func (h *MediaHandler) Upload(c *gin.Context) {
	headers, err := uploadedFiles(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := requestContext(c)
	group := c.PostForm("group")
	var (
		stored []models.File
		errs   error
	)
	for _, header := range headers {
		file, err := h.files.CreateFromHeader(ctx, header, group)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		stored = append(stored, *file)
	}
	if errs != nil && len(stored) == 0 {
		response.Error(c, errs)
		return
	}
	writeUploadResult(c, mapFiles(h.files, stored), errs)
}

// POST /api/media/delete {"ids": [...]}
func (h *MediaHandler) Delete(c *gin.Context) {
	var req fileIDsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	var (
		deleted []string
		errs    error
	)
	for _, id := range req.IDs {
		if err := h.files.Delete(ctx, id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		deleted = append(deleted, id)
	}
	if errs != nil {
		response.Error(c, errs)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}
