package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalConfig points the local disk at a directory served under BaseURL.
type LocalConfig struct {
	Root    string
	BaseURL string
}

// LocalDisk writes files below a root directory.
type LocalDisk struct {
	root    string
	baseURL string
}

// NewLocalDisk creates the root directory when missing.
func NewLocalDisk(cfg LocalConfig) (*LocalDisk, error) {
	root := cfg.Root
	if root == "" {
		root = "./data/uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &LocalDisk{root: root, baseURL: baseURL}, nil
}

func (d *LocalDisk) Name() string { return "local" }

// Root returns the directory files are written to.
func (d *LocalDisk) Root() string { return d.root }

func (d *LocalDisk) path(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(cleaned)), nil
}

// Put writes body to a temporary file first and renames it into place.
func (d *LocalDisk) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) error {
	target, err := d.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Delete removes the file and its directory when it becomes empty.
func (d *LocalDisk) Delete(_ context.Context, key string) error {
	target, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	if dir := filepath.Dir(target); dir != filepath.Clean(d.root) {
		_ = os.Remove(dir) // fails while other files remain
	}
	return nil
}

func (d *LocalDisk) URL(key string) string {
	cleaned, err := CleanKey(key)
	if err != nil {
		return ""
	}
	return joinURL(d.baseURL, cleaned)
}
