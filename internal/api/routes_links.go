package api

import (
	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/handlers"
)

func registerLinkRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewLinkHandler(svc.Pages)
	if err != nil {
		return err
	}
	api.GET("/links", handler.List)
	return nil
}
