package api

import (
	"github.com/gin-gonic/gin"

	"github.com/macrame/admin/internal/handlers"
)

func registerMenuRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewMenuHandler(svc.Menus)
	if err != nil {
		return err
	}

	menus := api.Group("/menus")
	{
		menus.GET("", handler.List)
		menus.POST("", handler.Create)
		menus.DELETE("/:menu", handler.Delete)
	}

	items := menus.Group("/:menu/items")
	{
		items.GET("/tree", handler.ItemTree)
		items.POST("", handler.CreateItem)
		items.POST("/order", handler.OrderItems)
		items.PUT("/:item", handler.UpdateItem)
		items.DELETE("/:item", handler.DeleteItem)
		items.POST("/:item/move", handler.MoveItem)
	}
	return nil
}
