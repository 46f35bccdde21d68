package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/macrame/admin/pkg/response"
)

// Health reports readiness. The database must answer a ping within two seconds.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok", "database": "ok", "checked_at": time.Now().UTC()}
		if db != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, response.Response{Success: false, Data: status})
				return
			}
		}
		response.Success(c, http.StatusOK, status)
	}
}
