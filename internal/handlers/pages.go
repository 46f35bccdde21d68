package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/services"
	"github.com/macrame/admin/internal/tree"
	appErrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/response"
)

// PageHandler exposes the page tree.
type PageHandler struct {
	svc *services.PageService
}

func NewPageHandler(svc *services.PageService) (*PageHandler, error) {
	if svc == nil {
		return nil, appErrors.New("HANDLER_CONFIG", "page service is required", http.StatusInternalServerError)
	}
	return &PageHandler{svc: svc}, nil
}

type pageRequest struct {
	ParentID        *string         `json:"parent_id"`
	Name            string          `json:"name" validate:"max=255"`
	Slug            string          `json:"slug" validate:"max=255"`
	Template        *string         `json:"template" validate:"omitempty,max=128"`
	Content         json.RawMessage `json:"content"`
	Attributes      json.RawMessage `json:"attributes"`
	IsLive          *bool           `json:"is_live"`
	PublishAt       *time.Time      `json:"publish_at"`
	MetaTitle       *string         `json:"meta_title" validate:"omitempty,max=255"`
	MetaDescription *string         `json:"meta_description" validate:"omitempty,max=1024"`
	CreatorID       *string         `json:"creator_id"`
}

func (r pageRequest) input() services.PageInput {
	return services.PageInput{
		ParentID:        r.ParentID,
		Name:            r.Name,
		Slug:            r.Slug,
		Template:        r.Template,
		Content:         r.Content,
		Attributes:      r.Attributes,
		IsLive:          r.IsLive,
		PublishAt:       r.PublishAt,
		MetaTitle:       r.MetaTitle,
		MetaDescription: r.MetaDescription,
		CreatorID:       r.CreatorID,
	}
}

type pageMetaRequest struct {
	MetaTitle       string `json:"meta_title" validate:"max=255"`
	MetaDescription string `json:"meta_description" validate:"max=1024"`
}

type orderRequest struct {
	ParentID *string          `json:"parent_id"`
	Order    []tree.OrderItem `json:"order" validate:"required"`
}

type moveRequest struct {
	ParentID *string `json:"parent_id"`
}

// GET /api/pages
func (h *PageHandler) List(c *gin.Context) {
	page, perPage := pagination(c)
	pages, total, err := h.svc.List(requestContext(c), services.PageListOptions{
		Page:     page,
		PerPage:  perPage,
		Search:   c.Query("search"),
		LiveOnly: parseBoolQuery(c, "live"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, pages, response.NewMeta(page, perPage, total))
}

// GET /api/pages/tree
func (h *PageHandler) Tree(c *gin.Context) {
	branches, err := h.svc.Tree(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, branches)
}

// GET /api/pages/:id
func (h *PageHandler) Get(c *gin.Context) {
	page, err := h.svc.Get(requestContext(c), param(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, page)
}

// POST /api/pages
func (h *PageHandler) Create(c *gin.Context) {
	var req pageRequest
	if !bindAndValidate(c, &req) {
		return
	}
	page, err := h.svc.Create(requestContext(c), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, page)
}

// PUT /api/pages/:id
func (h *PageHandler) Update(c *gin.Context) {
	var req pageRequest
	if !bindAndValidate(c, &req) {
		return
	}
	page, err := h.svc.Update(requestContext(c), param(c, "id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, page)
}

// POST /api/pages/:id/meta
func (h *PageHandler) UpdateMeta(c *gin.Context) {
	var req pageMetaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	page, err := h.svc.UpdateMeta(requestContext(c), param(c, "id"), services.PageMetaInput{
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, page)
}

// POST /api/pages/order
func (h *PageHandler) Order(c *gin.Context) {
	var req orderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Order(requestContext(c), req.ParentID, req.Order); err != nil {
		response.Error(c, err)
		return
	}
	h.Tree(c)
}

// POST /api/pages/:id/move
func (h *PageHandler) Move(c *gin.Context) {
	var req moveRequest
	if !bindAndValidate(c, &req) {
		return
	}
	page, err := h.svc.Move(requestContext(c), param(c, "id"), req.ParentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, page)
}

// POST /api/pages/:id/duplicate
func (h *PageHandler) Duplicate(c *gin.Context) {
	page, err := h.svc.Duplicate(requestContext(c), param(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, page)
}

// DELETE /api/pages/:id
func (h *PageHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), param(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/pages/:id/files?collection=
func (h *PageHandler) Files(c *gin.Context) {
	files, err := h.svc.Files(requestContext(c), param(c, "id"), optionalString(c.Query("collection")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, files)
}

// POST /api/pages/:id/upload (multipart: files[], collection)
func (h *PageHandler) Upload(c *gin.Context) {
	headers, err := uploadedFiles(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	files, err := h.svc.Upload(requestContext(c), param(c, "id"), headers, optionalString(c.PostForm("collection")))
	if err != nil && len(files) == 0 {
		response.Error(c, err)
		return
	}
	writeUploadResult(c, files, err)
}
