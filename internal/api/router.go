package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/app"
	"github.com/macrame/admin/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers the admin routes.
func NewRouter(db *gorm.DB, cfg *app.Config, svc *Services) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svc == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	r := gin.New()
	if cfg.Uploads.MaxSizeMB > 0 {
		r.MaxMultipartMemory = int64(cfg.Uploads.MaxSizeMB) << 20
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cfg.Server.HSTS))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	registerHealthRoutes(r, db, cfg)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	if cfg.Storage.Driver == "local" && strings.HasPrefix(cfg.Storage.Local.BaseURL, "/") {
		r.Static(cfg.Storage.Local.BaseURL, cfg.Storage.Local.Root)
	}

	// Uploads share one limiter so counters survive across instances when the cache
	// store is redis.
	uploadLimit := middleware.RateLimit(
		middleware.NewCacheRateStore(svc.Cache),
		cfg.Uploads.RateLimit.Requests,
		cfg.Uploads.RateLimit.Window,
	)

	api := r.Group("/api")

	if err := registerLinkRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerPageRoutes(api, svc, uploadLimit); err != nil {
		return nil, err
	}
	if err := registerNavRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerMenuRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerMediaRoutes(api, svc, uploadLimit); err != nil {
		return nil, err
	}
	if err := registerMediaCollectionRoutes(api, svc, uploadLimit); err != nil {
		return nil, err
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
