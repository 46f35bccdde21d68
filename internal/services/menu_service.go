package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/tree"
	apperrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/logger"
)

// MenuService manages menus and the item tree of each menu.
type MenuService struct {
	db       *gorm.DB
	items    *tree.Store[models.MenuItem, *models.MenuItem]
	attacher *media.Attacher
}

// MenuInput describes a new menu.
type MenuInput struct {
	Title string
	Key   string
}

// MenuSummary is a menu with the number of items it holds.
type MenuSummary struct {
	models.Menu
	ItemCount int64 `json:"item_count"`
}

// MenuItemInput describes menu item create/update payloads.
type MenuItemInput struct {
	ParentID *string
	Title    string
	Link     *models.MenuLink
	NewTab   *bool
}

func NewMenuService(db *gorm.DB, attacher *media.Attacher) (*MenuService, error) {
	if db == nil {
		return nil, errors.New("menu service: db is required")
	}
	if attacher == nil {
		attacher = media.NewAttacher(db)
	}
	return &MenuService{
		db:       db,
		items:    tree.NewStore[models.MenuItem](db, "menu_items"),
		attacher: attacher,
	}, nil
}

// List returns every menu ordered by title.
func (s *MenuService) List(ctx context.Context) ([]MenuSummary, error) {
	ctx = ensureContext(ctx)

	var menus []models.Menu
	if err := s.db.WithContext(ctx).Order("title ASC").Find(&menus).Error; err != nil {
		return nil, fmt.Errorf("menu service: list menus: %w", err)
	}

	var counts []struct {
		MenuID string
		Total  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.MenuItem{}).
		Select("menu_id, COUNT(*) AS total").
		Group("menu_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("menu service: count items: %w", err)
	}
	byMenu := make(map[string]int64, len(counts))
	for _, c := range counts {
		byMenu[c.MenuID] = c.Total
	}

	out := make([]MenuSummary, 0, len(menus))
	for _, menu := range menus {
		out = append(out, MenuSummary{Menu: menu, ItemCount: byMenu[menu.ID]})
	}
	return out, nil
}

// Get resolves a menu by id or key.
func (s *MenuService) Get(ctx context.Context, ref string) (*models.Menu, error) {
	ctx = ensureContext(ctx)
	ref = strings.TrimSpace(ref)

	var menu models.Menu
	err := byIDOrKey(s.db.WithContext(ctx), ref).First(&menu).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("menu %s not found", ref))
		}
		return nil, fmt.Errorf("menu service: load menu: %w", err)
	}
	return &menu, nil
}

// Create adds a menu. The key defaults to the slugified title and must be unique.
func (s *MenuService) Create(ctx context.Context, input MenuInput) (*models.Menu, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("menu title is required")
	}
	key := slugify(input.Key)
	if key == "" {
		key = slugify(title)
	}

	menu := &models.Menu{Title: title, Key: key}
	if err := s.db.WithContext(ctx).Create(menu).Error; err != nil {
		return nil, persistenceError("menu service: create menu", err, fmt.Sprintf("menu key %q already exists", key))
	}
	return menu, nil
}

// Delete removes a menu together with its items and their attachments.
func (s *MenuService) Delete(ctx context.Context, ref string) error {
	ctx = ensureContext(ctx)
	menu, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		itemIDs := tx.Model(&models.MenuItem{}).Select("id").Where("menu_id = ?", menu.ID)
		if err := tx.Where("model_type = ? AND model_id IN (?)", models.AttachableMenuItem, itemIDs).
			Delete(&models.FileAttachment{}).Error; err != nil {
			return fmt.Errorf("detach item files: %w", err)
		}
		if err := tx.Where("menu_id = ?", menu.ID).Delete(&models.MenuItem{}).Error; err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		return tx.Delete(menu).Error
	})
	if err != nil {
		return fmt.Errorf("menu service: delete menu: %w", err)
	}

	logger.WithModule("menus").Info("menu deleted", zap.String("menu_key", menu.Key))
	return nil
}

// Items returns the item store scoped to one menu.
func (s *MenuService) Items(menuID string) *tree.Store[models.MenuItem, *models.MenuItem] {
	return s.items.WithScope(func(db *gorm.DB) *gorm.DB {
		return db.Where("menu_id = ?", menuID)
	})
}

// ItemTree returns the nested items of a menu.
func (s *MenuService) ItemTree(ctx context.Context, ref string) ([]*tree.Branch[models.MenuItem], error) {
	ctx = ensureContext(ctx)
	menu, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.Items(menu.ID).Tree(ctx)
}

// CreateItem appends an item below its parent within the menu.
func (s *MenuService) CreateItem(ctx context.Context, ref string, input MenuItemInput) (*models.MenuItem, error) {
	ctx = ensureContext(ctx)
	menu, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("menu item title is required")
	}
	if input.Link == nil {
		return nil, apperrors.NewBadRequest("menu item link is required")
	}
	link, err := s.normaliseLink(ctx, *input.Link)
	if err != nil {
		return nil, err
	}

	item := &models.MenuItem{
		MenuID:   menu.ID,
		ParentID: trimmedPtr(input.ParentID),
		Title:    title,
		Link:     datatypes.NewJSONType(link),
	}
	if input.NewTab != nil {
		item.NewTab = *input.NewTab
	}
	if err := s.Items(menu.ID).Insert(ctx, item); err != nil {
		return nil, persistenceError("menu service: create item", err, "menu item already exists")
	}
	return item, nil
}

// UpdateItem changes title, link and target of an item.
func (s *MenuService) UpdateItem(ctx context.Context, ref, id string, input MenuItemInput) (*models.MenuItem, error) {
	ctx = ensureContext(ctx)
	menu, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	items := s.Items(menu.ID)
	item, err := items.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if title := strings.TrimSpace(input.Title); title != "" && title != item.Title {
		updates["title"] = title
	}
	if input.Link != nil {
		link, err := s.normaliseLink(ctx, *input.Link)
		if err != nil {
			return nil, err
		}
		updates["link"] = datatypes.NewJSONType(link)
	}
	if input.NewTab != nil {
		updates["new_tab"] = *input.NewTab
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
			return nil, persistenceError("menu service: update item", err, "menu item already exists")
		}
	}
	return items.Find(ctx, id)
}

// DeleteItem removes an item and its attachments; children move up one level.
func (s *MenuService) DeleteItem(ctx context.Context, ref, id string) error {
	ctx = ensureContext(ctx)
	menu, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	items := s.Items(menu.ID)
	item, err := items.Find(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.attacher.DetachAll(ctx, item); err != nil {
		return fmt.Errorf("menu service: detach files: %w", err)
	}
	return items.Delete(ctx, id)
}

// OrderItems applies a nested reorder within one menu.
func (s *MenuService) OrderItems(ctx context.Context, ref string, parentID *string, order []tree.OrderItem) error {
	ctx = ensureContext(ctx)
	menu, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	return s.Items(menu.ID).UpdateOrder(ctx, trimmedPtr(parentID), order)
}

// MoveItem re-parents an item within its menu.
func (s *MenuService) MoveItem(ctx context.Context, ref, id string, parentID *string) (*models.MenuItem, error) {
	ctx = ensureContext(ctx)
	menu, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.Items(menu.ID).Move(ctx, id, trimmedPtr(parentID))
}

func (s *MenuService) normaliseLink(ctx context.Context, link models.MenuLink) (models.MenuLink, error) {
	link.Value = strings.TrimSpace(link.Value)
	link.PageID = strings.TrimSpace(link.PageID)
	if link.Type == "" {
		link.Type = models.MenuLinkURL
	}

	switch link.Type {
	case models.MenuLinkURL, models.MenuLinkRoute:
		if link.Value == "" {
			return link, apperrors.NewBadRequest(fmt.Sprintf("%s links need a value", link.Type))
		}
		link.PageID = ""
	case models.MenuLinkPage:
		if link.PageID == "" {
			return link, apperrors.NewBadRequest("page links need a page_id")
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Page{}).Where("id = ?", link.PageID).Count(&count).Error; err != nil {
			return link, fmt.Errorf("menu service: check page: %w", err)
		}
		if count == 0 {
			return link, apperrors.NewNotFound(fmt.Sprintf("page %s not found", link.PageID))
		}
	default:
		return link, apperrors.NewBadRequest(fmt.Sprintf("unknown link type %q", link.Type))
	}
	return link, nil
}
