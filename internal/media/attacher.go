// Package media manages uploaded files and their polymorphic attachments to pages,
// menu items, navigation items and media collections.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/models"
	apperrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/logger"
	"github.com/macrame/admin/pkg/metrics"
)

// Attacher reads and writes file attachment rows.
type Attacher struct {
	db *gorm.DB
}

func NewAttacher(db *gorm.DB) *Attacher {
	return &Attacher{db: db}
}

// Attach links the file to every target under collection. Targets are processed one
// by one; failures are collected and returned together while successful rows stay.
// attrs is stored as the attachment's attribute bag.
func (a *Attacher) Attach(ctx context.Context, fileID string, targets []models.Attachable, collection *string, attrs map[string]any) error {
	file, err := a.file(ctx, fileID)
	if err != nil {
		return err
	}

	var encoded datatypes.JSON
	if len(attrs) > 0 {
		raw, err := json.Marshal(attrs)
		if err != nil {
			return apperrors.NewBadRequest("attachment attributes must be JSON encodable")
		}
		encoded = datatypes.JSON(raw)
	}

	var errs error
	for _, target := range targets {
		err := a.attachOne(ctx, file, target, collection, encoded)
		metrics.AttachmentOps.WithLabelValues("attach", metrics.Result(err)).Inc()
		if err != nil {
			logger.WithModule("media").Debug("attach failed",
				zap.String("file_id", file.ID),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (a *Attacher) attachOne(ctx context.Context, file *models.File, target models.Attachable, collection *string, attrs datatypes.JSON) error {
	if target == nil {
		return apperrors.ErrMissingTargetIdentity
	}
	ref := target.AttachableRef()
	if err := a.requireTarget(ctx, ref); err != nil {
		return err
	}

	row := &models.FileAttachment{
		FileID:     file.ID,
		FileType:   file.FileKind(),
		ModelID:    ref.ID,
		ModelType:  ref.Type,
		Collection: collection,
		Attributes: attrs,
	}
	if err := a.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("attach %s: %w", ref, err)
	}
	return nil
}

// AttachOnce attaches the file to the targets it is not yet attached to under
// collection.
func (a *Attacher) AttachOnce(ctx context.Context, fileID string, targets []models.Attachable, collection *string, attrs map[string]any) error {
	pending := make([]models.Attachable, 0, len(targets))
	var errs error
	for _, target := range targets {
		if target == nil {
			pending = append(pending, target)
			continue
		}
		attached, err := a.IsAttachedTo(ctx, fileID, target, collection)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !attached {
			pending = append(pending, target)
		}
	}
	if len(pending) == 0 {
		return errs
	}
	return multierr.Append(errs, a.Attach(ctx, fileID, pending, collection, attrs))
}

// Detach deletes the rows linking the file to target. A nil collection matches every
// collection. Nothing to delete is not an error.
func (a *Attacher) Detach(ctx context.Context, fileID string, target models.Attachable, collection *string) (err error) {
	defer func() {
		metrics.AttachmentOps.WithLabelValues("detach", metrics.Result(err)).Inc()
	}()

	if target == nil {
		return apperrors.ErrMissingTargetIdentity
	}
	ref := target.AttachableRef()
	if ref.ID == "" {
		return apperrors.ErrMissingTargetIdentity
	}

	q := a.matching(ctx, fileID, ref, collection)
	if err := q.Delete(&models.FileAttachment{}).Error; err != nil {
		return fmt.Errorf("detach %s: %w", ref, err)
	}
	return nil
}

// IsAttachedTo reports whether a row links the file to target under collection. A nil
// collection matches any collection.
func (a *Attacher) IsAttachedTo(ctx context.Context, fileID string, target models.Attachable, collection *string) (bool, error) {
	if target == nil {
		return false, nil
	}
	ref := target.AttachableRef()
	if ref.ID == "" {
		return false, nil
	}

	var count int64
	if err := a.matching(ctx, fileID, ref, collection).Model(&models.FileAttachment{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check attachment %s: %w", ref, err)
	}
	return count > 0, nil
}

// DetachAll removes every attachment pointing at target, e.g. before the target row
// itself is deleted.
func (a *Attacher) DetachAll(ctx context.Context, target models.Attachable) (int64, error) {
	if target == nil {
		return 0, apperrors.ErrMissingTargetIdentity
	}
	ref := target.AttachableRef()
	res := a.db.WithContext(ctx).
		Where("model_type = ? AND model_id = ?", ref.Type, ref.ID).
		Delete(&models.FileAttachment{})
	if res.Error != nil {
		return 0, fmt.Errorf("detach all from %s: %w", ref, res.Error)
	}
	return res.RowsAffected, nil
}

// Attachments lists the rows owned by the file.
func (a *Attacher) Attachments(ctx context.Context, fileID string) ([]models.FileAttachment, error) {
	var rows []models.FileAttachment
	err := a.db.WithContext(ctx).
		Where("file_id = ? AND file_type = ?", fileID, models.FileTypeMedia).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return rows, nil
}

// AttachedFiles returns the files linked to target, oldest attachment first.
func (a *Attacher) AttachedFiles(ctx context.Context, target models.Attachable, collection *string) ([]models.File, error) {
	return a.attachedFiles(a.filesOf(ctx, target.AttachableRef(), collection))
}

func (a *Attacher) attachedFiles(q *gorm.DB) ([]models.File, error) {
	var rows []models.File
	if err := q.Select("files.*").Order("file_attachments.created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list attached files: %w", err)
	}

	// a file attached under several collections is listed once
	seen := make(map[string]struct{}, len(rows))
	files := rows[:0]
	for _, f := range rows {
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		files = append(files, f)
	}
	return files, nil
}

// CountAttachedFiles counts the distinct files linked to target.
func (a *Attacher) CountAttachedFiles(ctx context.Context, target models.Attachable, collection *string) (int64, error) {
	var total int64
	q := a.filesOf(ctx, target.AttachableRef(), collection).Distinct("files.id")
	if err := q.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count attached files: %w", err)
	}
	return total, nil
}

// AttachedFilesPage returns one page of the files linked to target.
func (a *Attacher) AttachedFilesPage(ctx context.Context, target models.Attachable, collection *string, limit, offset int) ([]models.File, error) {
	q := a.filesOf(ctx, target.AttachableRef(), collection)
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	return a.attachedFiles(q)
}

// filesOf selects the distinct files attached to ref.
func (a *Attacher) filesOf(ctx context.Context, ref models.AttachableRef, collection *string) *gorm.DB {
	q := a.db.WithContext(ctx).
		Model(&models.File{}).
		Joins("JOIN file_attachments ON file_attachments.file_id = files.id AND file_attachments.file_type = ?", models.FileTypeMedia).
		Where("file_attachments.model_type = ? AND file_attachments.model_id = ?", ref.Type, ref.ID)
	if collection != nil {
		q = q.Where("file_attachments.collection = ?", *collection)
	}
	return q
}

// CountAttached counts attachment rows per target id for one attachable type.
func (a *Attacher) CountAttached(ctx context.Context, kind models.AttachableType, ids []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		ModelID string
		Total   int64
	}
	err := a.db.WithContext(ctx).
		Model(&models.FileAttachment{}).
		Select("model_id, COUNT(*) AS total").
		Where("model_type = ? AND model_id IN ?", kind, ids).
		Group("model_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count attachments: %w", err)
	}
	for _, row := range rows {
		counts[row.ModelID] = row.Total
	}
	return counts, nil
}

func (a *Attacher) matching(ctx context.Context, fileID string, ref models.AttachableRef, collection *string) *gorm.DB {
	q := a.db.WithContext(ctx).Where(
		"file_id = ? AND file_type = ? AND model_type = ? AND model_id = ?",
		fileID, models.FileTypeMedia, ref.Type, ref.ID,
	)
	if collection != nil {
		q = q.Where("collection = ?", *collection)
	}
	return q
}

func (a *Attacher) file(ctx context.Context, fileID string) (*models.File, error) {
	var file models.File
	if err := a.db.WithContext(ctx).First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("file %s not found", fileID))
		}
		return nil, fmt.Errorf("load file: %w", err)
	}
	return &file, nil
}

// requireTarget checks ref names a persisted record of a known type.
func (a *Attacher) requireTarget(ctx context.Context, ref models.AttachableRef) error {
	if ref.ID == "" {
		return apperrors.ErrMissingTargetIdentity.WithMessage(
			fmt.Sprintf("%s has no identifier", ref.Type))
	}
	model := ref.Type.Model()
	if model == nil {
		return apperrors.NewBadRequest(fmt.Sprintf("files cannot be attached to %q", ref.Type))
	}

	var count int64
	if err := a.db.WithContext(ctx).Model(model).Where("id = ?", ref.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("check target %s: %w", ref, err)
	}
	if count == 0 {
		return apperrors.NewNotFound(fmt.Sprintf("%s not found", ref))
	}
	return nil
}
