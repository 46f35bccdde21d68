// Package storage keeps the bytes of uploaded files. Records in the files table only
// point at a key on a disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrObjectNotFound is returned by disks that can tell a key is unknown.
var ErrObjectNotFound = errors.New("storage: object not found")

// Disk stores file contents under slash separated keys.
type Disk interface {
	Name() string
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Config selects and configures a disk driver.
type Config struct {
	Driver string
	Local  LocalConfig
	S3     S3Config
}

// New builds the disk selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Disk, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local":
		return NewLocalDisk(cfg.Local)
	case "s3":
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Disk(client, cfg.S3)
	case "memory":
		return NewMemoryDisk("memory", cfg.Local.BaseURL), nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}

// CleanKey normalises a key and rejects attempts to leave the disk root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("storage: empty key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("storage: key %q escapes the disk root", key)
		}
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return "/" + key
	}
	return base + "/" + key
}
