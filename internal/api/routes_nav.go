package api

import (
	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/handlers"
)

func registerNavRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewNavHandler(svc.Nav)
	if err != nil {
		return err
	}

	nav := api.Group("/nav")
	{
		nav.GET("/tree", handler.Tree)
		nav.POST("", handler.Create)
		nav.POST("/order", handler.Order)
		nav.PUT("/:id", handler.Update)
		nav.DELETE("/:id", handler.Delete)
		nav.POST("/:id/move", handler.Move)
	}
	return nil
}
