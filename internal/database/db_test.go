package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrateAndSeed(db))
	// seeding twice must not duplicate menus
	require.NoError(t, SeedData(db))

	var menuCount int64
	require.NoError(t, db.Model(&models.Menu{}).Count(&menuCount).Error)
	require.Equal(t, int64(len(DefaultMenus)), menuCount)
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	tables := []interface{}{
		&models.Page{},
		&models.NavItem{},
		&models.Menu{},
		&models.MenuItem{},
		&models.File{},
		&models.FileAttachment{},
		&models.MediaCollection{},
		&models.CacheEntry{},
	}
	for _, table := range tables {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
	require.True(t, migrator.HasColumn(&models.Page{}, "order_column"))
	require.True(t, migrator.HasColumn(&models.File{}, "file_group"))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
