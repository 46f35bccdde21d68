package api

import (
	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/handlers"
)

func registerPageRoutes(api *gin.RouterGroup, svc *Services, uploadLimit gin.HandlerFunc) error {
	handler, err := handlers.NewPageHandler(svc.Pages)
	if err != nil {
		return err
	}

	pages := api.Group("/pages")
	{
		pages.GET("", handler.List)
		pages.POST("", handler.Create)
		pages.GET("/tree", handler.Tree)
		pages.POST("/order", handler.Order)
		pages.GET("/:id", handler.Get)
		pages.PUT("/:id", handler.Update)
		pages.DELETE("/:id", handler.Delete)
		pages.POST("/:id/meta", handler.UpdateMeta)
		pages.POST("/:id/move", handler.Move)
		pages.POST("/:id/duplicate", handler.Duplicate)
		pages.GET("/:id/files", handler.Files)
		pages.POST("/:id/upload", uploadLimit, handler.Upload)
	}
	return nil
}
