package storage

import (
	"context"
	"io"
	"sync"
)

// MemoryDisk keeps objects in process memory. It backs the "memory" driver and tests.
type MemoryDisk struct {
	name    string
	baseURL string

	mu      sync.Mutex
	objects map[string][]byte
	// FailDelete makes Delete return the error, to exercise cleanup paths.
	FailDelete error
}

func NewMemoryDisk(name, baseURL string) *MemoryDisk {
	if name == "" {
		name = "memory"
	}
	return &MemoryDisk{name: name, baseURL: baseURL, objects: make(map[string][]byte)}
}

func (d *MemoryDisk) Name() string { return d.name }

func (d *MemoryDisk) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[cleaned] = data
	return nil
}

func (d *MemoryDisk) Delete(_ context.Context, key string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailDelete != nil {
		return d.FailDelete
	}
	if _, ok := d.objects[cleaned]; !ok {
		return ErrObjectNotFound
	}
	delete(d.objects, cleaned)
	return nil
}

func (d *MemoryDisk) URL(key string) string {
	cleaned, err := CleanKey(key)
	if err != nil {
		return ""
	}
	return joinURL(d.baseURL, cleaned)
}

// Object returns the stored bytes for key.
func (d *MemoryDisk) Object(key string) ([]byte, bool) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.objects[cleaned]
	return data, ok
}

// Len returns the number of stored objects.
func (d *MemoryDisk) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}
