package media

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/database/testutil"
	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/storage"
)

type fixture struct {
	db       *gorm.DB
	disk     *storage.MemoryDisk
	files    *FileService
	attacher *Attacher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	disk := storage.NewMemoryDisk("memory", "/media")
	attacher := NewAttacher(db)
	files, err := NewFileService(db, disk, attacher)
	require.NoError(t, err)
	return fixture{db: db, disk: disk, files: files, attacher: attacher}
}

func (f fixture) upload(t *testing.T, name, body string) *models.File {
	t.Helper()
	file, err := f.files.Create(context.Background(), Upload{
		Filename: name,
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
	})
	require.NoError(t, err)
	return file
}

func (f fixture) page(t *testing.T, name string) *models.Page {
	t.Helper()
	p := &models.Page{Name: name, Slug: strings.ToLower(name)}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func collection(name string) *string { return &name }
