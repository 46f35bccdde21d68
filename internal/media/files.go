package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/storage"
	apperrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/logger"
)

// Upload describes the bytes and metadata of a new file.
type Upload struct {
	Filename string
	Mimetype string
	Size     int64
	Group    string
	Body     io.Reader
}

// ListOptions filters the media library.
type ListOptions struct {
	Page    int
	PerPage int
	Search  string
	Group   string
}

// FileService owns file rows and the bytes stored for them on the disk.
type FileService struct {
	db       *gorm.DB
	disk     storage.Disk
	attacher *Attacher
}

func NewFileService(db *gorm.DB, disk storage.Disk, attacher *Attacher) (*FileService, error) {
	if db == nil {
		return nil, errors.New("file service: db is required")
	}
	if disk == nil {
		return nil, errors.New("file service: disk is required")
	}
	if attacher == nil {
		attacher = NewAttacher(db)
	}
	return &FileService{db: db, disk: disk, attacher: attacher}, nil
}

// Attacher exposes the attachment helper bound to the same database.
func (s *FileService) Attacher() *Attacher {
	return s.attacher
}

// Create stores upload on the disk under "<file id>/<filename>" and records it. The
// row is only committed once the bytes are stored.
func (s *FileService) Create(ctx context.Context, upload Upload) (*models.File, error) {
	name := sanitizeFilename(upload.Filename)
	if name == "" {
		return nil, apperrors.NewBadRequest("filename is required")
	}
	if upload.Body == nil {
		return nil, apperrors.NewBadRequest("file content is required")
	}

	mimetype := strings.TrimSpace(upload.Mimetype)
	if mimetype == "" || mimetype == "application/octet-stream" {
		if guessed := mime.TypeByExtension(filepath.Ext(name)); guessed != "" {
			mimetype = guessed
		}
	}
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}

	file := &models.File{
		Disk:     s.disk.Name(),
		Filename: name,
		Mimetype: mimetype,
		Size:     upload.Size,
		Group:    strings.TrimSpace(upload.Group),
	}

	stored := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("create file: %w", err)
		}
		file.Filepath = file.ID

		if err := s.disk.Put(ctx, file.StorageKey(), upload.Body, upload.Size, mimetype); err != nil {
			return fmt.Errorf("store file: %w", err)
		}
		stored = true
		return tx.Model(file).Update("filepath", file.Filepath).Error
	})
	if err != nil {
		if stored {
			// the row was rolled back, so nothing references the bytes any more
			if delErr := s.disk.Delete(ctx, file.StorageKey()); delErr != nil {
				logger.WithModule("media").Warn("failed to release bytes of rolled back file",
					zap.String("key", file.StorageKey()),
					zap.Error(delErr),
				)
			}
		}
		return nil, fmt.Errorf("file service: create: %w", err)
	}

	logger.WithModule("media").Info("file stored",
		zap.String("file_id", file.ID),
		zap.String("disk", file.Disk),
		zap.Int64("size", file.Size),
	)
	return file, nil
}

// CreateFromHeader stores a multipart upload.
func (s *FileService) CreateFromHeader(ctx context.Context, header *multipart.FileHeader, group string) (*models.File, error) {
	if header == nil {
		return nil, apperrors.NewBadRequest("file is required")
	}
	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("file service: open upload: %w", err)
	}
	defer src.Close()

	return s.Create(ctx, Upload{
		Filename: header.Filename,
		Mimetype: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Group:    group,
		Body:     src,
	})
}

// Get loads a file with its attachment rows.
func (s *FileService) Get(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&file, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("file %s not found", id))
		}
		return nil, fmt.Errorf("file service: get: %w", err)
	}
	return &file, nil
}

// List returns a page of files, newest first, and the total number of matches.
func (s *FileService) List(ctx context.Context, opts ListOptions) ([]models.File, int64, error) {
	page, perPage := normalizePage(opts.Page, opts.PerPage)

	q := s.db.WithContext(ctx).Model(&models.File{})
	if search := strings.TrimSpace(opts.Search); search != "" {
		q = q.Where("LOWER(filename) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if group := strings.TrimSpace(opts.Group); group != "" {
		q = q.Where("file_group = ?", group)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("file service: count: %w", err)
	}

	var files []models.File
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&files).Error
	if err != nil {
		return nil, 0, fmt.Errorf("file service: list: %w", err)
	}
	return files, total, nil
}

// Delete removes the file's attachment rows and the file row in one transaction, then
// releases the stored bytes. A failure to release bytes is logged only.
func (s *FileService) Delete(ctx context.Context, id string) error {
	var file models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&file, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound(fmt.Sprintf("file %s not found", id))
			}
			return err
		}
		if err := tx.Where("file_id = ? AND file_type = ?", file.ID, file.FileKind()).
			Delete(&models.FileAttachment{}).Error; err != nil {
			return fmt.Errorf("delete attachments: %w", err)
		}
		return tx.Delete(&file).Error
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("file service: delete: %w", err)
	}

	log := logger.WithModule("media")
	if err := s.disk.Delete(ctx, file.StorageKey()); err != nil {
		log.Warn("failed to release stored file",
			zap.String("file_id", file.ID),
			zap.String("key", file.StorageKey()),
			zap.Error(err),
		)
	} else {
		log.Info("file deleted", zap.String("file_id", file.ID))
	}
	return nil
}

// URL returns the public address of the file's bytes.
func (s *FileService) URL(file *models.File) string {
	if file == nil {
		return ""
	}
	return s.disk.URL(file.StorageKey())
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = 25
	case perPage > 200:
		perPage = 200
	}
	return page, perPage
}
