package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/services"
	appErrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/response"
)

// NavHandler exposes the admin navigation tree.
type NavHandler struct {
	svc *services.NavService
}

func NewNavHandler(svc *services.NavService) (*NavHandler, error) {
	if svc == nil {
		return nil, appErrors.New("HANDLER_CONFIG", "nav service is required", http.StatusInternalServerError)
	}
	return &NavHandler{svc: svc}, nil
}

type navRequest struct {
	ParentID *string `json:"parent_id"`
	Title    string  `json:"title" validate:"max=255"`
	Route    string  `json:"route" validate:"max=2048"`
	Type     string  `json:"type" validate:"omitempty,oneof=internal external page"`
}

func (r navRequest) input() services.NavInput {
	return services.NavInput{
		ParentID: r.ParentID,
		Title:    r.Title,
		Route:    r.Route,
		Type:     models.NavType(r.Type),
	}
}

func (h *NavHandler) Tree(c *gin.Context) {
	branches, err := h.svc.Tree(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, branches)
}

func (h *NavHandler) Create(c *gin.Context) {
	var req navRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.Create(requestContext(c), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, item)
}

func (h *NavHandler) Update(c *gin.Context) {
	var req navRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.Update(requestContext(c), param(c, "id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

func (h *NavHandler) Order(c *gin.Context) {
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

func (h *NavHandler) Move(c *gin.Context) {
	var req moveRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.Move(requestContext(c), param(c, "id"), req.ParentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

func (h *NavHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), param(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
