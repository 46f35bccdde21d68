package api

import (
	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/handlers"
)

func registerMediaRoutes(api *gin.RouterGroup, svc *Services, uploadLimit gin.HandlerFunc) error {
	handler, err := handlers.NewMediaHandler(svc.Files)
	if err != nil {
		return err
	}

	files := api.Group("/media")
	{
		files.GET("/items", handler.List)
		files.POST("/upload", uploadLimit, handler.Upload)
		files.POST("/delete", handler.Delete)
		files.GET("/:file", handler.Get)
	}
	return nil
}

func registerMediaCollectionRoutes(api *gin.RouterGroup, svc *Services, uploadLimit gin.HandlerFunc) error {
	handler, err := handlers.NewMediaCollectionHandler(svc.Collections, svc.Files)
	if err != nil {
		return err
	}

	collections := api.Group("/media-collections")
	{
		collections.GET("", handler.List)
		collections.POST("", handler.Create)
		collections.GET("/:collection", handler.Show)
		collections.DELETE("/:collection", handler.Delete)
		collections.POST("/:collection/add", handler.AddFiles)
		collections.POST("/:collection/remove", handler.RemoveFiles)
		collections.POST("/:collection/upload", uploadLimit, handler.Upload)
	}
	return nil
}
