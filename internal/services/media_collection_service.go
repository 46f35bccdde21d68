package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/models"
	apperrors "github.com/macrame/admin/pkg/errors"
)

// MediaCollectionService manages named groups of files.
type MediaCollectionService struct {
	db    *gorm.DB
	files *media.FileService
}

// MediaCollectionInput describes a new collection.
type MediaCollectionInput struct {
	Title string
	Key   string
}

// MediaCollectionSummary is a collection with its file count.
type MediaCollectionSummary struct {
	models.MediaCollection
	FileCount int64 `json:"file_count"`
}

// MediaCollectionListOptions filters the collection list.
type MediaCollectionListOptions struct {
	Page    int
	PerPage int
	Search  string
}

func NewMediaCollectionService(db *gorm.DB, files *media.FileService) (*MediaCollectionService, error) {
	if db == nil {
		return nil, errors.New("media collection service: db is required")
	}
	if files == nil {
		return nil, errors.New("media collection service: file service is required")
	}
	return &MediaCollectionService{db: db, files: files}, nil
}

// List returns a page of collections with their file counts.
func (s *MediaCollectionService) List(ctx context.Context, opts MediaCollectionListOptions) ([]MediaCollectionSummary, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := normalizePage(opts.Page, opts.PerPage)

	q := s.db.WithContext(ctx).Model(&models.MediaCollection{})
	if search := strings.ToLower(strings.TrimSpace(opts.Search)); search != "" {
		like := "%" + search + "%"
		q = q.Where(clause.Or(
			clause.Expr{SQL: "LOWER(title) LIKE ?", Vars: []any{like}},
			clause.Like{Column: clause.Column{Name: "key"}, Value: like},
		))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("media collection service: count: %w", err)
	}

	var collections []models.MediaCollection
	if err := q.Order("title ASC").Limit(perPage).Offset((page - 1) * perPage).Find(&collections).Error; err != nil {
		return nil, 0, fmt.Errorf("media collection service: list: %w", err)
	}

	ids := make([]string, len(collections))
	for i, c := range collections {
		ids[i] = c.ID
	}
	counts, err := s.files.Attacher().CountAttached(ctx, models.AttachableMediaCollection, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]MediaCollectionSummary, 0, len(collections))
	for _, c := range collections {
		out = append(out, MediaCollectionSummary{MediaCollection: c, FileCount: counts[c.ID]})
	}
	return out, total, nil
}

// Get resolves a collection by id or key.
func (s *MediaCollectionService) Get(ctx context.Context, ref string) (*models.MediaCollection, error) {
	ctx = ensureContext(ctx)
	ref = strings.TrimSpace(ref)

	var collection models.MediaCollection
	if err := byIDOrKey(s.db.WithContext(ctx), ref).First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("media collection %s not found", ref))
		}
		return nil, fmt.Errorf("media collection service: load: %w", err)
	}
	return &collection, nil
}

// Files returns one page of the collection's files and their total.
func (s *MediaCollectionService) Files(ctx context.Context, ref string, page, perPage int) (*models.MediaCollection, []models.File, int64, error) {
	ctx = ensureContext(ctx)
	collection, err := s.Get(ctx, ref)
	if err != nil {
		return nil, nil, 0, err
	}

	attacher := s.files.Attacher()
	total, err := attacher.CountAttachedFiles(ctx, collection, nil)
	if err != nil {
		return nil, nil, 0, err
	}
	page, perPage = normalizePage(page, perPage)
	files, err := attacher.AttachedFilesPage(ctx, collection, nil, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, 0, err
	}
	return collection, files, total, nil
}

// Create adds a collection. The key defaults to the slugified title and must be unique.
func (s *MediaCollectionService) Create(ctx context.Context, input MediaCollectionInput) (*models.MediaCollection, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("collection title is required")
	}
	key := slugify(input.Key)
	if key == "" {
		key = slugify(title)
	}

	collection := &models.MediaCollection{Title: title, Key: key}
	if err := s.db.WithContext(ctx).Create(collection).Error; err != nil {
		return nil, persistenceError("media collection service: create", err, fmt.Sprintf("collection key %q already exists", key))
	}
	return collection, nil
}

// Delete removes the collection. Its files stay in the library.
func (s *MediaCollectionService) Delete(ctx context.Context, ref string) error {
	ctx = ensureContext(ctx)
	collection, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_type = ? AND model_id = ?", models.AttachableMediaCollection, collection.ID).
			Delete(&models.FileAttachment{}).Error; err != nil {
			return fmt.Errorf("media collection service: detach files: %w", err)
		}
		if err := tx.Delete(collection).Error; err != nil {
			return fmt.Errorf("media collection service: delete: %w", err)
		}
		return nil
	})
}

// AddFiles attaches the files that are not yet part of the collection.
func (s *MediaCollectionService) AddFiles(ctx context.Context, ref string, fileIDs []string) error {
	ctx = ensureContext(ctx)
	collection, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}

	ids := normaliseIDs(fileIDs)
	if len(ids) == 0 {
		return apperrors.NewBadRequest("no files given")
	}

	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, s.files.Attacher().AttachOnce(ctx, id, []models.Attachable{collection}, nil, nil))
	}
	return errs
}

// RemoveFiles detaches the files from the collection. Files that are not attached
// are skipped.
func (s *MediaCollectionService) RemoveFiles(ctx context.Context, ref string, fileIDs []string) error {
	ctx = ensureContext(ctx)
	collection, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}

	attacher := s.files.Attacher()
	var errs error
	for _, id := range normaliseIDs(fileIDs) {
		attached, err := attacher.IsAttachedTo(ctx, id, collection, nil)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if attached {
			errs = multierr.Append(errs, attacher.Detach(ctx, id, collection, nil))
		}
	}
	return errs
}

// Upload stores the uploads and adds them to the collection.
func (s *MediaCollectionService) Upload(ctx context.Context, ref string, headers []*multipart.FileHeader) ([]models.File, error) {
	ctx = ensureContext(ctx)
	collection, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, apperrors.NewBadRequest("no files given")
	}

	var (
		stored []models.File
		errs   error
	)
	for _, header := range headers {
		file, err := s.files.CreateFromHeader(ctx, header, collection.Key)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.files.Attacher().Attach(ctx, file.ID, []models.Attachable{collection}, nil, nil); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		stored = append(stored, *file)
	}
	return stored, errs
}
