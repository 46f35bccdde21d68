package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/services"
	appErrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/response"
)

// MenuHandler exposes menus and their item trees. Menus are addressed by id or key.
type MenuHandler struct {
	svc *services.MenuService
}

func NewMenuHandler(svc *services.MenuService) (*MenuHandler, error) {
	if svc == nil {
		return nil, appErrors.New("HANDLER_CONFIG", "menu service is required", http.StatusInternalServerError)
	}
	return &MenuHandler{svc: svc}, nil
}

type menuRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Key   string `json:"key" validate:"omitempty,slug,max=128"`
}

type menuLinkRequest struct {
	Type   string `json:"type" validate:"omitempty,oneof=url page route"`
	Value  string `json:"value" validate:"max=2048"`
	PageID string `json:"page_id"`
}

type menuItemRequest struct {
	ParentID *string          `json:"parent_id"`
	Title    string           `json:"title" validate:"max=255"`
	Link     *menuLinkRequest `json:"link"`
	NewTab   *bool            `json:"new_tab"`
}

func (r menuItemRequest) input() services.MenuItemInput {
	input := services.MenuItemInput{ParentID: r.ParentID, Title: r.Title, NewTab: r.NewTab}
	if r.Link != nil {
		input.Link = &models.MenuLink{
			Type:   models.MenuLinkType(r.Link.Type),
			Value:  r.Link.Value,
			PageID: r.Link.PageID,
		}
	}
	return input
}

func (h *MenuHandler) List(c *gin.Context) {
	menus, err := h.svc.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, menus)
}

func (h *MenuHandler) Create(c *gin.Context) {
	var req menuRequest
	if !bindAndValidate(c, &req) {
		return
	}
	menu, err := h.svc.Create(requestContext(c), services.MenuInput{Title: req.Title, Key: req.Key})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, menu)
}

func (h *MenuHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), param(c, "menu")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *MenuHandler) ItemTree(c *gin.Context) {
	branches, err := h.svc.ItemTree(requestContext(c), param(c, "menu"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, branches)
}

func (h *MenuHandler) CreateItem(c *gin.Context) {
	var req menuItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.CreateItem(requestContext(c), param(c, "menu"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, item)
}

func (h *MenuHandler) UpdateItem(c *gin.Context) {
	var req menuItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.UpdateItem(requestContext(c), param(c, "menu"), param(c, "item"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

func (h *MenuHandler) DeleteItem(c *gin.Context) {
	if err := h.svc.DeleteItem(requestContext(c), param(c, "menu"), param(c, "item")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *MenuHandler) OrderItems(c *gin.Context) {
	var req orderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.OrderItems(requestContext(c), param(c, "menu"), req.ParentID, req.Order); err != nil {
		response.Error(c, err)
		return
	}
	h.ItemTree(c)
}

func (h *MenuHandler) MoveItem(c *gin.Context) {
	var req moveRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.MoveItem(requestContext(c), param(c, "menu"), param(c, "item"), req.ParentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}
