package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/api"
	"github.com/macrame/admin/internal/app"
	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/database"
	"github.com/macrame/admin/internal/storage"
	"github.com/macrame/admin/pkg/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "macrame",
		Short:         "Macrame admin operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(opts.logLevel, "console")
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration directory or file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(
		newMigrateCmd(opts),
		newPagesCmd(opts),
		newTreeCmd(opts),
		newMaintenanceCmd(opts),
	)
	return root
}

// environment is what a command needs to talk to the admin's data.
type environment struct {
	cfg      *app.Config
	db       *gorm.DB
	redis    *redis.Client
	dbCache  *cache.DatabaseStore
	services *api.Services
}

func (o *rootOptions) loadConfig() (*app.Config, error) {
	path := strings.TrimSpace(o.configPath)
	if path == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config path %q: %w", path, err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}
	return app.LoadConfig(path)
}

// open connects to the database without migrating it.
func (o *rootOptions) open() (*app.Config, *gorm.DB, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database.Connection())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}

// environment opens the database and wires the services against the same cache the
// server uses, so route invalidations reach running servers.
func (o *rootOptions) environment(ctx context.Context) (*environment, error) {
	cfg, db, err := o.open()
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, db: db, dbCache: cache.NewDatabaseStore(db)}

	var store cache.Store = env.dbCache
	if cfg.Cache.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig())
		if err != nil {
			env.close()
			return nil, err
		}
		env.redis = client
		store = cache.NewRedisStore(client, cfg.Cache.Redis.Prefix)
	}

	disk, err := storage.New(ctx, cfg.Storage.DiskConfig())
	if err != nil {
		env.close()
		return nil, fmt.Errorf("initialise storage: %w", err)
	}
	env.services, err = api.NewServices(db, cfg, store, disk)
	if err != nil {
		env.close()
		return nil, err
	}
	return env, nil
}

func (e *environment) close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	_ = database.Close(e.db)
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and seed the default menus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := opts.open()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.AutoMigrateAndSeed(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database migrated")
			return nil
		},
	}
}
