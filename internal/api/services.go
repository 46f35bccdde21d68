package api

import (
	"errors"

	"gorm.io/gorm"

	"github.com/macrame/admin/internal/app"
	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/services"
	"github.com/macrame/admin/internal/storage"
)

// Services bundles the domain services served over HTTP.
type Services struct {
	Files       *media.FileService
	Pages       *services.PageService
	Nav         *services.NavService
	Menus       *services.MenuService
	Collections *services.MediaCollectionService
	Cache       cache.Store
}

// NewServices wires the domain services against one database, cache and disk. A nil
// cache disables route caching.
func NewServices(db *gorm.DB, cfg *app.Config, store cache.Store, disk storage.Disk) (*Services, error) {
	if db == nil {
		return nil, errors.New("database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}

	attacher := media.NewAttacher(db)
	files, err := media.NewFileService(db, disk, attacher)
	if err != nil {
		return nil, err
	}

	var pageOpts []services.PageServiceOption
	if store != nil {
		pageOpts = append(pageOpts, services.WithRouteCache(store, cfg.Cache.RoutesTTL))
	}
	pages, err := services.NewPageService(db, files, pageOpts...)
	if err != nil {
		return nil, err
	}
	nav, err := services.NewNavService(db, attacher)
	if err != nil {
		return nil, err
	}
	menus, err := services.NewMenuService(db, attacher)
	if err != nil {
		return nil, err
	}
	collections, err := services.NewMediaCollectionService(db, files)
	if err != nil {
		return nil, err
	}

	return &Services{
		Files:       files,
		Pages:       pages,
		Nav:         nav,
		Menus:       menus,
		Collections: collections,
		Cache:       store,
	}, nil
}
