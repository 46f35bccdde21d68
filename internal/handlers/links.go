package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/services"
	appErrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/response"
)

// LinkHandler lists link targets for the menu and nav editors.
type LinkHandler struct {
	pages *services.PageService
}

func NewLinkHandler(pages *services.PageService) (*LinkHandler, error) {
	if pages == nil {
		return nil, appErrors.New("HANDLER_CONFIG", "page service is required", http.StatusInternalServerError)
	}
	return &LinkHandler{pages: pages}, nil
}

type linkOption struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	PageID string `json:"page_id"`
	Type   string `json:"type"`
}

// GET /api/links
func (h *LinkHandler) List(c *gin.Context) {
	routes, err := h.pages.Routes(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	options := make([]linkOption, 0, len(routes))
	for _, route := range routes {
		options = append(options, linkOption{
			Label:  route.Name,
			Value:  route.Path,
			PageID: route.PageID,
			Type:   "page",
		})
	}
	response.Success(c, http.StatusOK, options)
}
