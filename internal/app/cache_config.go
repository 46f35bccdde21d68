package app

import (
	"strings"

	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/database"
	"github.com/macrame/admin/internal/storage"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
		Timeout:  c.Redis.Timeout,
	}
}

// DiskConfig converts the storage section for storage.New.
func (c StorageConfig) DiskConfig() storage.Config {
	return storage.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Local: storage.LocalConfig{
			Root:    c.Local.Root,
			BaseURL: c.Local.BaseURL,
		},
		S3: storage.S3Config{
			Bucket:          c.S3.Bucket,
			Region:          c.S3.Region,
			Endpoint:        c.S3.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			UsePathStyle:    c.S3.UsePathStyle,
			Prefix:          c.S3.Prefix,
			BaseURL:         c.S3.BaseURL,
		},
	}
}

// Connection converts the database section for database.Open. Host based settings
// are taken from the block matching the driver.
func (c DatabaseConfig) Connection() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	cfg := database.Config{Driver: driver, Path: c.Path, DSN: c.DSN}

	var auth DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		auth = c.Postgres
	case "mysql":
		auth = c.MySQL
	default:
		return cfg
	}
	cfg.Host = auth.Host
	cfg.Port = auth.Port
	cfg.Name = auth.Database
	cfg.User = auth.Username
	cfg.Password = auth.Password
	cfg.Options = auth.Options
	return cfg
}
