package database

import (
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/models"
)

// DefaultMenus are created on first start so the menu editor has something to show.
var DefaultMenus = []models.Menu{
	{Title: "Main", Key: "main"},
	{Title: "Footer", Key: "footer"},
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Page{},
		&models.NavItem{},
		&models.Menu{},
		&models.MenuItem{},
		&models.File{},
		&models.FileAttachment{},
		&models.MediaCollection{},
		&models.CacheEntry{},
	)
}

// SeedData inserts the default menus when they are missing.
func SeedData(db *gorm.DB) error {
	for _, menu := range DefaultMenus {
		if err := db.Where(models.Menu{Key: menu.Key}).Attrs(menu).FirstOrCreate(&models.Menu{}).Error; err != nil {
			return err
		}
	}
	return nil
}
