package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/api"
	"github.com/macrame/admin/internal/app"
	"github.com/macrame/admin/internal/app/maintenance"
	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/database"
	"github.com/macrame/admin/internal/storage"
	"github.com/macrame/admin/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Cache    cache.Store
	Disk     storage.Disk
	Services *api.Services
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, cache, storage, services and the HTTP
// router, then starts the maintenance jobs.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to the database cache", zap.Error(err))
		} else {
			stack.Cache = cache.NewRedisStore(stack.Redis, cfg.Cache.Redis.Prefix)
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	stack.Disk, err = storage.New(ctx, cfg.Storage.DiskConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise storage: %w", err)
	}
	log.Info("storage ready", zap.String("disk", stack.Disk.Name()))

	stack.Services, err = api.NewServices(stack.DB, cfg, stack.Cache, stack.Disk)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	if cfg.Maintenance.Enabled {
		// expired rows only pile up in the database cache
		stack.Cleaner = maintenance.NewCleaner(stack.DB, stack.Services.Pages,
			maintenance.WithPurger(dbStore),
			maintenance.WithSchedules(
				cfg.Maintenance.PublishSchedule,
				cfg.Maintenance.PruneSchedule,
				cfg.Maintenance.IntegritySchedule,
				cfg.Maintenance.CachePurgeSchedule,
			),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(stack.DB, cfg, stack.Services)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		select {
		case <-s.Cleaner.Stop().Done():
		case <-waitCtx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
		cancel()
		s.Cleaner = nil
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.Connection()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}
