package services

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/database/testutil"
	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/storage"
)

type serviceEnv struct {
	db    *gorm.DB
	disk  *storage.MemoryDisk
	files *media.FileService
}

func newServiceEnv(t *testing.T) serviceEnv {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	disk := storage.NewMemoryDisk("memory", "/media")
	files, err := media.NewFileService(db, disk, nil)
	require.NoError(t, err)
	return serviceEnv{db: db, disk: disk, files: files}
}

// multipartFiles builds file headers the way gin hands them to handlers.
func multipartFiles(t *testing.T, contents map[string]string, order ...string) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(contents[name]))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["files"]
}
