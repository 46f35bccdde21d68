package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/services"
	appErrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/response"
)

// MediaCollectionHandler exposes named file collections, addressed by id or key.
type MediaCollectionHandler struct {
	svc   *services.MediaCollectionService
	files *media.FileService
}

func NewMediaCollectionHandler(svc *services.MediaCollectionService, files *media.FileService) (*MediaCollectionHandler, error) {
	if svc == nil || files == nil {
		return nil, appErrors.New("HANDLER_CONFIG", "media collection and file services are required", http.StatusInternalServerError)
	}
	return &MediaCollectionHandler{svc: svc, files: files}, nil
}

type mediaCollectionRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Key   string `json:"key" validate:"omitempty,slug,max=128"`
}

func (h *MediaCollectionHandler) List(c *gin.Context) {
	page, perPage := pagination(c)
	collections, total, err := h.svc.List(requestContext(c), services.MediaCollectionListOptions{
		Page:    page,
		PerPage: perPage,
		Search:  c.Query("search"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, collections, response.NewMeta(page, perPage, total))
}

// Show returns the collection with one page of its files.
func (h *MediaCollectionHandler) Show(c *gin.Context) {
	page, perPage := pagination(c)
	collection, files, total, err := h.svc.Files(requestContext(c), param(c, "collection"), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, gin.H{
		"collection": collection,
		"files":      mapFiles(h.files, files),
	}, response.NewMeta(page, perPage, total))
}

func (h *MediaCollectionHandler) Create(c *gin.Context) {
	var req mediaCollectionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	collection, err := h.svc.Create(requestContext(c), services.MediaCollectionInput{Title: req.Title, Key: req.Key})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, collection)
}

func (h *MediaCollectionHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), param(c, "collection")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *MediaCollectionHandler) AddFiles(c *gin.Context) {
	var req fileIDsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.AddFiles(requestContext(c), param(c, "collection"), req.IDs); err != nil {
		response.Error(c, err)
		return
	}
	h.Show(c)
}

func (h *MediaCollectionHandler) RemoveFiles(c *gin.Context) {
	var req fileIDsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.RemoveFiles(requestContext(c), param(c, "collection"), req.IDs); err != nil {
		response.Error(c, err)
		return
	}
	h.Show(c)
}

func (h *MediaCollectionHandler) Upload(c *gin.Context) {
	headers, err := uploadedFiles(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	files, err := h.svc.Upload(requestContext(c), param(c, "collection"), headers)
	if err != nil && len(files) == 0 {
		response.Error(c, err)
		return
	}
	writeUploadResult(c, mapFiles(h.files, files), err)
}
