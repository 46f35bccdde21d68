package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	key, err := CleanKey("/abc//photo.png")
	require.NoError(t, err)
	require.Equal(t, "abc/photo.png", key)

	key, err = CleanKey(`abc\photo.png`)
	require.NoError(t, err)
	require.Equal(t, "abc/photo.png", key)

	_, err = CleanKey("../etc/passwd")
	require.Error(t, err)

	_, err = CleanKey("  ")
	require.Error(t, err)
}

func TestLocalDiskPutDelete(t *testing.T) {
	root := t.TempDir()
	disk, err := NewLocalDisk(LocalConfig{Root: root, BaseURL: "https://cdn.example.com/uploads/"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, disk.Put(ctx, "f1/report.pdf", strings.NewReader("pdf"), 3, "application/pdf"))

	data, err := os.ReadFile(filepath.Join(root, "f1", "report.pdf"))
	require.NoError(t, err)
	require.Equal(t, "pdf", string(data))
	require.Equal(t, "https://cdn.example.com/uploads/f1/report.pdf", disk.URL("f1/report.pdf"))

	require.NoError(t, disk.Delete(ctx, "f1/report.pdf"))
	_, err = os.Stat(filepath.Join(root, "f1"))
	require.True(t, os.IsNotExist(err))

	require.ErrorIs(t, disk.Delete(ctx, "f1/report.pdf"), ErrObjectNotFound)
	require.Error(t, disk.Put(ctx, "../escape.txt", strings.NewReader("x"), 1, ""))
}

func TestMemoryDisk(t *testing.T) {
	disk := NewMemoryDisk("", "/files")
	ctx := context.Background()

	require.NoError(t, disk.Put(ctx, "a/b.txt", strings.NewReader("hello"), 5, "text/plain"))
	data, ok := disk.Object("a/b.txt")
	require.True(t, ok)
	require.Equal(t, "hello", string(data))
	require.Equal(t, "/files/a/b.txt", disk.URL("a/b.txt"))
	require.Equal(t, "memory", disk.Name())

	require.NoError(t, disk.Delete(ctx, "a/b.txt"))
	require.Equal(t, 0, disk.Len())
	require.ErrorIs(t, disk.Delete(ctx, "a/b.txt"), ErrObjectNotFound)
}

func TestNewSelectsDriver(t *testing.T) {
	disk, err := New(context.Background(), Config{Driver: "local", Local: LocalConfig{Root: t.TempDir()}})
	require.NoError(t, err)
	require.Equal(t, "local", disk.Name())

	disk, err = New(context.Background(), Config{Driver: "memory"})
	require.NoError(t, err)
	require.Equal(t, "memory", disk.Name())

	_, err = New(context.Background(), Config{Driver: "ftp"})
	require.Error(t, err)
}
