package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/tree"
	apperrors "github.com/macrame/admin/pkg/errors"
)

// NavService manages the admin navigation tree.
type NavService struct {
	db       *gorm.DB
	items    *tree.Store[models.NavItem, *models.NavItem]
	attacher *media.Attacher
}

// NavInput describes nav item create/update payloads.
type NavInput struct {
	ParentID *string
	Title    string
	Route    string
	Type     models.NavType
}

func NewNavService(db *gorm.DB, attacher *media.Attacher) (*NavService, error) {
	if db == nil {
		return nil, errors.New("nav service: db is required")
	}
	if attacher == nil {
		attacher = media.NewAttacher(db)
	}
	return &NavService{
		db:       db,
		items:    tree.NewStore[models.NavItem](db, "nav_items"),
		attacher: attacher,
	}, nil
}

// Store exposes the underlying tree store.
func (s *NavService) Store() *tree.Store[models.NavItem, *models.NavItem] {
	return s.items
}

func (s *NavService) Tree(ctx context.Context) ([]*tree.Branch[models.NavItem], error) {
	return s.items.Tree(ensureContext(ctx))
}

func (s *NavService) Get(ctx context.Context, id string) (*models.NavItem, error) {
	return s.items.Find(ensureContext(ctx), id)
}

// Create appends a nav item below its parent.
func (s *NavService) Create(ctx context.Context, input NavInput) (*models.NavItem, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("nav item title is required")
	}
	navType, route, err := s.normaliseTarget(ctx, input.Type, input.Route)
	if err != nil {
		return nil, err
	}

	item := &models.NavItem{
		ParentID: trimmedPtr(input.ParentID),
		Title:    title,
		Route:    route,
		Type:     navType,
	}
	if err := s.items.Insert(ctx, item); err != nil {
		return nil, persistenceError("nav service: create item", err, "nav item already exists")
	}
	return item, nil
}

// Update changes title and target. The parent is changed through Move or Order.
func (s *NavService) Update(ctx context.Context, id string, input NavInput) (*models.NavItem, error) {
	ctx = ensureContext(ctx)
	item, err := s.items.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if title := strings.TrimSpace(input.Title); title != "" && title != item.Title {
		updates["title"] = title
	}
	if input.Type != "" || strings.TrimSpace(input.Route) != "" {
		navType := input.Type
		if navType == "" {
			navType = item.Type
		}
		routeValue := input.Route
		if strings.TrimSpace(routeValue) == "" {
			routeValue = item.Route
		}
		navType, route, err := s.normaliseTarget(ctx, navType, routeValue)
		if err != nil {
			return nil, err
		}
		updates["type"] = navType
		updates["route"] = route
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
			return nil, persistenceError("nav service: update item", err, "nav item already exists")
		}
	}
	return s.items.Find(ctx, id)
}

func (s *NavService) Order(ctx context.Context, parentID *string, items []tree.OrderItem) error {
	return s.items.UpdateOrder(ensureContext(ctx), trimmedPtr(parentID), items)
}

func (s *NavService) Move(ctx context.Context, id string, parentID *string) (*models.NavItem, error) {
	return s.items.Move(ensureContext(ctx), id, trimmedPtr(parentID))
}

// Delete removes the item and its attachments; children move up one level.
func (s *NavService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	item, err := s.items.Find(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.attacher.DetachAll(ctx, item); err != nil {
		return fmt.Errorf("nav service: detach files: %w", err)
	}
	return s.items.Delete(ctx, id)
}

// normaliseTarget validates the route for the nav type. Page entries store the page id.
func (s *NavService) normaliseTarget(ctx context.Context, navType models.NavType, route string) (models.NavType, string, error) {
	if navType == "" {
		navType = models.NavTypeInternal
	}
	if !navType.Valid() {
		return "", "", apperrors.NewBadRequest(fmt.Sprintf("unknown nav type %q", navType))
	}

	route = strings.TrimSpace(route)
	switch navType {
	case models.NavTypeExternal:
		if !strings.HasPrefix(route, "http://") && !strings.HasPrefix(route, "https://") {
			return "", "", apperrors.NewBadRequest("external nav items need an absolute http(s) url")
		}
	case models.NavTypePage:
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Page{}).Where("id = ?", route).Count(&count).Error; err != nil {
			return "", "", fmt.Errorf("nav service: check page: %w", err)
		}
		if count == 0 {
			return "", "", apperrors.NewNotFound(fmt.Sprintf("page %s not found", route))
		}
	default:
		if route == "" {
			return "", "", apperrors.NewBadRequest("nav route is required")
		}
		if !strings.HasPrefix(route, "/") {
			route = "/" + route
		}
	}
	return navType, route, nil
}
