package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/tree"
	apperrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/logger"
	"github.com/macrame/admin/pkg/metrics"
)

const routesCacheKey = "pages:routes"

// PageService manages the page tree and the public route table derived from it.
type PageService struct {
	db        *gorm.DB
	pages     *tree.Store[models.Page, *models.Page]
	files     *media.FileService
	cache     cache.Store
	routesTTL time.Duration
	now       func() time.Time
}

// PageInput describes page create/update payloads. Nil pointers leave fields untouched
// on update.
type PageInput struct {
	ParentID        *string
	Name            string
	Slug            string
	Template        *string
	Content         json.RawMessage
	Attributes      json.RawMessage
	IsLive          *bool
	PublishAt       *time.Time
	MetaTitle       *string
	MetaDescription *string
	CreatorID       *string
}

// PageMetaInput updates the SEO fields of a page.
type PageMetaInput struct {
	MetaTitle       string
	MetaDescription string
}

// PageDTO is a page with its full slug.
type PageDTO struct {
	models.Page
	FullSlug string `json:"full_slug"`
}

// PageListOptions filters the paginated page list.
type PageListOptions struct {
	Page     int
	PerPage  int
	Search   string
	LiveOnly bool
}

// Route maps a public path to a live page.
type Route struct {
	Path     string `json:"path"`
	PageID   string `json:"page_id"`
	Name     string `json:"name"`
	Template string `json:"template"`
}

// PageServiceOption customises a PageService.
type PageServiceOption func(*PageService)

// WithRouteCache stores the route table in store for ttl. A zero ttl keeps it until
// the next page mutation.
func WithRouteCache(store cache.Store, ttl time.Duration) PageServiceOption {
	return func(s *PageService) {
		s.cache = store
		s.routesTTL = ttl
	}
}

// WithPageClock overrides the clock used for scheduled publishing.
func WithPageClock(now func() time.Time) PageServiceOption {
	return func(s *PageService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewPageService(db *gorm.DB, files *media.FileService, opts ...PageServiceOption) (*PageService, error) {
	if db == nil {
		return nil, errors.New("page service: db is required")
	}
	svc := &PageService{
		db:    db,
		pages: tree.NewStore[models.Page](db, "pages"),
		files: files,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Store exposes the underlying tree store.
func (s *PageService) Store() *tree.Store[models.Page, *models.Page] {
	return s.pages
}

// List returns a page of pages ordered by name, with their full slugs.
func (s *PageService) List(ctx context.Context, opts PageListOptions) ([]PageDTO, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := normalizePage(opts.Page, opts.PerPage)

	q := s.db.WithContext(ctx).Model(&models.Page{})
	if search := strings.ToLower(strings.TrimSpace(opts.Search)); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(slug) LIKE ?", like, like)
	}
	if opts.LiveOnly {
		q = q.Where("is_live = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("page service: count pages: %w", err)
	}

	var pages []models.Page
	if err := q.Order("name ASC").Order("id ASC").Limit(perPage).Offset((page - 1) * perPage).Find(&pages).Error; err != nil {
		return nil, 0, fmt.Errorf("page service: list pages: %w", err)
	}

	forest, err := s.pages.Forest(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("page service: load tree: %w", err)
	}

	out := make([]PageDTO, 0, len(pages))
	for _, p := range pages {
		dto := PageDTO{Page: p}
		// broken chains still list, without a full slug
		if slug, err := forest.FullSlug(p.ID); err == nil {
			dto.FullSlug = slug
		}
		out = append(out, dto)
	}
	return out, total, nil
}

// Tree returns the nested page tree.
func (s *PageService) Tree(ctx context.Context) ([]*tree.Branch[models.Page], error) {
	return s.pages.Tree(ensureContext(ctx))
}

// Get loads one page with its full slug.
func (s *PageService) Get(ctx context.Context, id string) (*PageDTO, error) {
	ctx = ensureContext(ctx)
	page, err := s.pages.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	slug, err := s.pages.FullSlug(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PageDTO{Page: *page, FullSlug: slug}, nil
}

// Create appends a page below its parent. The slug defaults to the slugified name and
// must be unique among its siblings.
func (s *PageService) Create(ctx context.Context, input PageInput) (*PageDTO, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("page name is required")
	}
	slug := slugify(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}

	page := &models.Page{
		ParentID:  trimmedPtr(input.ParentID),
		Name:      name,
		Slug:      slug,
		PublishAt: input.PublishAt,
		CreatorID: trimmedPtr(input.CreatorID),
	}
	if input.Template != nil {
		page.Template = strings.TrimSpace(*input.Template)
	}
	if input.IsLive != nil {
		page.IsLive = *input.IsLive
	}
	if input.MetaTitle != nil {
		page.MetaTitle = strings.TrimSpace(*input.MetaTitle)
	}
	if input.MetaDescription != nil {
		page.MetaDescription = strings.TrimSpace(*input.MetaDescription)
	}

	var err error
	if page.Content, err = jsonColumn("content", input.Content); err != nil {
		return nil, err
	}
	if page.Attributes, err = jsonColumn("attributes", input.Attributes); err != nil {
		return nil, err
	}

	if err := s.ensureSlugFree(ctx, page.ParentID, slug, ""); err != nil {
		return nil, err
	}
	if err := s.pages.Insert(ctx, page); err != nil {
		return nil, persistenceError("page service: create page", err, "page already exists")
	}

	s.InvalidateRoutes(ctx)
	return s.Get(ctx, page.ID)
}

// Update changes page fields. The parent is changed through Move.
func (s *PageService) Update(ctx context.Context, id string, input PageInput) (*PageDTO, error) {
	ctx = ensureContext(ctx)
	page, err := s.pages.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" && name != page.Name {
		updates["name"] = name
	}
	if slug := slugify(input.Slug); slug != "" && slug != page.Slug {
		if err := s.ensureSlugFree(ctx, page.ParentID, slug, page.ID); err != nil {
			return nil, err
		}
		updates["slug"] = slug
	}
	if input.Template != nil {
		updates["template"] = strings.TrimSpace(*input.Template)
	}
	if input.IsLive != nil {
		updates["is_live"] = *input.IsLive
	}
	if input.PublishAt != nil {
		updates["publish_at"] = input.PublishAt
	}
	if input.MetaTitle != nil {
		updates["meta_title"] = strings.TrimSpace(*input.MetaTitle)
	}
	if input.MetaDescription != nil {
		updates["meta_description"] = strings.TrimSpace(*input.MetaDescription)
	}
	if len(input.Content) > 0 {
		content, err := jsonColumn("content", input.Content)
		if err != nil {
			return nil, err
		}
		updates["content"] = content
	}
	if len(input.Attributes) > 0 {
		attributes, err := jsonColumn("attributes", input.Attributes)
		if err != nil {
			return nil, err
		}
		updates["attributes"] = attributes
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(page).Updates(updates).Error; err != nil {
			return nil, persistenceError("page service: update page", err, "page already exists")
		}
		s.InvalidateRoutes(ctx)
	}
	return s.Get(ctx, id)
}

// UpdateMeta replaces the SEO fields.
func (s *PageService) UpdateMeta(ctx context.Context, id string, input PageMetaInput) (*PageDTO, error) {
	title := strings.TrimSpace(input.MetaTitle)
	description := strings.TrimSpace(input.MetaDescription)
	return s.Update(ctx, id, PageInput{MetaTitle: &title, MetaDescription: &description})
}

// Order applies a nested reorder below parentID in one transaction.
func (s *PageService) Order(ctx context.Context, parentID *string, items []tree.OrderItem) error {
	ctx = ensureContext(ctx)
	parentID = trimmedPtr(parentID)
	if err := s.ensureOrderSlugsFree(ctx, parentID, items); err != nil {
		return err
	}
	if err := s.pages.UpdateOrder(ctx, parentID, items); err != nil {
		return err
	}
	s.InvalidateRoutes(ctx)
	return nil
}

// Move re-parents a page and appends it after its new siblings.
func (s *PageService) Move(ctx context.Context, id string, parentID *string) (*PageDTO, error) {
	ctx = ensureContext(ctx)
	parentID = trimmedPtr(parentID)

	page, err := s.pages.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, parentID, page.Slug, page.ID); err != nil {
		return nil, err
	}
	if _, err := s.pages.Move(ctx, id, parentID); err != nil {
		return nil, err
	}
	s.InvalidateRoutes(ctx)
	return s.Get(ctx, id)
}

// Delete removes a page and its file attachments. Child pages move up to the deleted
// page's parent.
func (s *PageService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	page, err := s.pages.Find(ctx, id)
	if err != nil {
		return err
	}
	if s.files != nil {
		if _, err := s.files.Attacher().DetachAll(ctx, page); err != nil {
			return fmt.Errorf("page service: detach files: %w", err)
		}
	}
	children, err := s.pages.Children(ctx, &page.ID)
	if err != nil {
		return err
	}
	if err := s.pages.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.resolveAdoptedSlugs(ctx, page.ParentID, children); err != nil {
		return err
	}

	logger.WithModule("pages").Info("page deleted", zap.String("page_id", id))
	s.InvalidateRoutes(ctx)
	return nil
}

// Duplicate copies a page next to the original. The copy starts offline with a
// unique "-copy" slug.
func (s *PageService) Duplicate(ctx context.Context, id string) (*PageDTO, error) {
	ctx = ensureContext(ctx)
	source, err := s.pages.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	slug, err := s.freeSlug(ctx, source.ParentID, slugify(source.Slug+"-copy"))
	if err != nil {
		return nil, err
	}

	copyPage := &models.Page{
		ParentID:        source.ParentID,
		Name:            source.Name + " (copy)",
		Slug:            slug,
		Template:        source.Template,
		Content:         source.Content,
		Attributes:      source.Attributes,
		MetaTitle:       source.MetaTitle,
		MetaDescription: source.MetaDescription,
		CreatorID:       source.CreatorID,
	}
	if err := s.pages.Insert(ctx, copyPage); err != nil {
		return nil, persistenceError("page service: duplicate page", err, "page already exists")
	}
	return s.Get(ctx, copyPage.ID)
}

// Files lists the files attached to a page.
func (s *PageService) Files(ctx context.Context, id string, collection *string) ([]models.File, error) {
	ctx = ensureContext(ctx)
	page, err := s.pages.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.files == nil {
		return []models.File{}, nil
	}
	return s.files.Attacher().AttachedFiles(ctx, page, trimmedPtr(collection))
}

// Upload stores the uploads and attaches them to the page under collection. Files
// stored before a failure are kept; all failures are reported together.
func (s *PageService) Upload(ctx context.Context, id string, headers []*multipart.FileHeader, collection *string) ([]models.File, error) {
	ctx = ensureContext(ctx)
	if s.files == nil {
		return nil, errors.New("page service: file storage is not configured")
	}
	page, err := s.pages.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		stored []models.File
		errs   error
	)
	for _, header := range headers {
		file, err := s.files.CreateFromHeader(ctx, header, "pages")
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.files.Attacher().Attach(ctx, file.ID, []models.Attachable{page}, trimmedPtr(collection), nil); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		stored = append(stored, *file)
	}
	return stored, errs
}

// Routes returns the path of every routable page. A page is routable when it and all
// of its ancestors are live.
func (s *PageService) Routes(ctx context.Context) ([]Route, error) {
	ctx = ensureContext(ctx)
	log := logger.WithModule("pages")

	if s.cache != nil {
		var cached []Route
		ok, err := cache.GetJSON(ctx, s.cache, routesCacheKey, &cached)
		if err != nil {
			log.Warn("route cache read failed", zap.Error(err))
		}
		if ok {
			metrics.RouteCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.RouteCache.WithLabelValues("miss").Inc()
	}

	routes, err := s.buildRoutes(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, routesCacheKey, routes, s.routesTTL); err != nil {
			log.Warn("route cache write failed", zap.Error(err))
		}
	}
	return routes, nil
}

func (s *PageService) buildRoutes(ctx context.Context) ([]Route, error) {
	forest, err := s.pages.Forest(ctx)
	if err != nil {
		return nil, fmt.Errorf("page service: load tree: %w", err)
	}

	routes := make([]Route, 0, forest.Len())
	seen := make(map[string]struct{}, forest.Len())
	var walkErr error
	forest.Walk(func(page models.Page, _ int) bool {
		if !page.IsLive {
			return false
		}
		path, err := forest.FullSlug(page.ID)
		if err != nil {
			walkErr = multierr.Append(walkErr, err)
			return false
		}
		if _, dup := seen[path]; dup {
			return true
		}
		seen[path] = struct{}{}
		routes = append(routes, Route{Path: path, PageID: page.ID, Name: page.Name, Template: page.Template})
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return routes, nil
}

// ResolvePath finds the live page routed at path.
func (s *PageService) ResolvePath(ctx context.Context, path string) (*Route, error) {
	routes, err := s.Routes(ctx)
	if err != nil {
		return nil, err
	}
	path = tree.JoinPath(strings.Split(path, "/"))
	for i := range routes {
		if routes[i].Path == path {
			return &routes[i], nil
		}
	}
	return nil, apperrors.NewNotFound(fmt.Sprintf("no page routed at %s", path))
}

// PublishDue switches scheduled pages live once their publish time has passed.
func (s *PageService) PublishDue(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	res := s.db.WithContext(ctx).
		Model(&models.Page{}).
		Where("is_live = ? AND publish_at IS NOT NULL AND publish_at <= ?", false, s.now()).
		Updates(map[string]any{"is_live": true, "publish_at": nil})
	if res.Error != nil {
		return 0, fmt.Errorf("page service: publish scheduled pages: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.PagesPublished.Add(float64(res.RowsAffected))
		s.InvalidateRoutes(ctx)
	}
	return res.RowsAffected, nil
}

// InvalidateRoutes drops the cached route table.
func (s *PageService) InvalidateRoutes(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ensureContext(ctx), routesCacheKey); err != nil {
		logger.WithModule("pages").Warn("route cache invalidation failed", zap.Error(err))
	}
}

// ensureOrderSlugsFree rejects a reorder that would leave a re-parented page next to a
// sibling with the same slug.
func (s *PageService) ensureOrderSlugsFree(ctx context.Context, parentID *string, items []tree.OrderItem) error {
	placements, err := tree.Flatten(parentID, items)
	if err != nil {
		return err
	}
	pages, err := s.pages.All(ctx)
	if err != nil {
		return fmt.Errorf("page service: load pages: %w", err)
	}

	parents := make(map[string]*string, len(pages))
	slugs := make(map[string]string, len(pages))
	for _, page := range pages {
		parents[page.ID] = page.ParentID
		slugs[page.ID] = page.Slug
	}
	moved := make(map[string]struct{})
	for _, p := range placements {
		current, ok := parents[p.ID]
		if !ok {
			// unknown ids are reported by UpdateOrder
			continue
		}
		if parentRef(current) != parentRef(p.ParentID) {
			moved[p.ID] = struct{}{}
		}
		parents[p.ID] = p.ParentID
	}
	if len(moved) == 0 {
		return nil
	}

	owners := make(map[string][]string, len(pages))
	for id, parent := range parents {
		key := parentRef(parent) + "/" + slugs[id]
		owners[key] = append(owners[key], id)
	}
	for id := range moved {
		if len(owners[parentRef(parents[id])+"/"+slugs[id]]) > 1 {
			return apperrors.ErrConflict.WithMessage(fmt.Sprintf("slug %q is already used by a sibling page", slugs[id]))
		}
	}
	return nil
}

// resolveAdoptedSlugs renames children moved up by a delete whose slug clashes with
// one of their new siblings.
func (s *PageService) resolveAdoptedSlugs(ctx context.Context, parentID *string, children []models.Page) error {
	for _, child := range children {
		taken, err := s.slugTaken(ctx, parentID, child.Slug, child.ID)
		if err != nil {
			return err
		}
		if !taken {
			continue
		}
		slug, err := s.freeSlug(ctx, parentID, child.Slug)
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Model(&models.Page{}).Where("id = ?", child.ID).Update("slug", slug).Error; err != nil {
			return fmt.Errorf("page service: rename adopted page: %w", err)
		}
		logger.WithModule("pages").Info("adopted page renamed",
			zap.String("page_id", child.ID), zap.String("from", child.Slug), zap.String("to", slug))
	}
	return nil
}

func parentRef(parentID *string) string {
	if parentID == nil {
		return ""
	}
	return *parentID
}

func (s *PageService) ensureSlugFree(ctx context.Context, parentID *string, slug, exceptID string) error {
	taken, err := s.slugTaken(ctx, parentID, slug, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.ErrConflict.WithMessage(fmt.Sprintf("slug %q is already used by a sibling page", slug))
	}
	return nil
}

func (s *PageService) slugTaken(ctx context.Context, parentID *string, slug, exceptID string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Page{}).Where("slug = ?", slug)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("page service: check slug: %w", err)
	}
	return count > 0, nil
}

func (s *PageService) freeSlug(ctx context.Context, parentID *string, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		taken, err := s.slugTaken(ctx, parentID, candidate, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
