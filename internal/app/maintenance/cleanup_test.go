package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/database/testutil"
	"github.com/macrame/admin/internal/media"
	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/services"
	"github.com/macrame/admin/internal/storage"
)

func newPageService(t *testing.T, db *gorm.DB, now time.Time) *services.PageService {
	t.Helper()
	files, err := media.NewFileService(db, storage.NewMemoryDisk("memory", ""), nil)
	require.NoError(t, err)
	svc, err := services.NewPageService(db, files, services.WithPageClock(func() time.Time { return now }))
	require.NoError(t, err)
	return svc
}

func TestPruneOrphanAttachments(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	ctx := context.Background()

	file := models.File{Disk: "memory", Filename: "a.png"}
	require.NoError(t, db.Create(&file).Error)
	page := models.Page{Name: "Home", Slug: "home"}
	require.NoError(t, db.Create(&page).Error)

	attacher := media.NewAttacher(db)
	require.NoError(t, attacher.Attach(ctx, file.ID, []models.Attachable{&page}, nil, nil))

	// rows left behind by a bulk delete that skipped the attacher
	orphans := []models.FileAttachment{
		{FileID: file.ID, FileType: models.FileTypeMedia, ModelType: models.AttachablePage, ModelID: "gone-page"},
		{FileID: file.ID, FileType: models.FileTypeMedia, ModelType: models.AttachableNavItem, ModelID: "gone-nav"},
	}
	require.NoError(t, db.Create(&orphans).Error)

	pruned, err := PruneOrphanAttachments(ctx, db)
	require.NoError(t, err)
	require.EqualValues(t, 2, pruned)

	attached, err := attacher.IsAttachedTo(ctx, file.ID, &page, nil)
	require.NoError(t, err)
	require.True(t, attached)

	_, err = PruneOrphanAttachments(ctx, nil)
	require.Error(t, err)
}

func TestCheckTreesReportsBrokenHierarchies(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	ctx := context.Background()

	root := models.Page{Name: "Root", Slug: "root"}
	require.NoError(t, db.Create(&root).Error)
	child := models.Page{Name: "Child", Slug: "child", ParentID: &root.ID}
	require.NoError(t, db.Create(&child).Error)
	stray := models.Page{Name: "Stray", Slug: "stray", ParentID: testutil.StrPtr("missing-parent")}
	require.NoError(t, db.Create(&stray).Error)

	var main models.Menu
	require.NoError(t, db.Where(&models.Menu{Key: "main"}).First(&main).Error)
	item := models.MenuItem{MenuID: main.ID, Title: "Home"}
	require.NoError(t, db.Create(&item).Error)

	trees, err := CheckTrees(ctx, db)
	require.NoError(t, err)

	byName := make(map[string]TreeHealth, len(trees))
	for _, h := range trees {
		byName[h.Tree] = h
	}
	require.Contains(t, byName, "pages")
	require.Contains(t, byName, "nav_items")
	require.Contains(t, byName, "menu:main")
	require.Contains(t, byName, "menu:footer")

	require.Equal(t, 3, byName["pages"].Nodes)
	require.Len(t, byName["pages"].Problems, 1)
	require.Contains(t, byName["pages"].Problems[0], stray.ID)
	require.Equal(t, 1, byName["menu:main"].Nodes)
	require.Empty(t, byName["menu:main"].Problems)
	require.Zero(t, byName["menu:footer"].Nodes)
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context) (int64, error) {
	return 0, errors.New("cache offline")
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	pages := newPageService(t, db, now)
	due := now.Add(-time.Minute)
	_, err := pages.Create(ctx, services.PageInput{Name: "Launch", PublishAt: &due})
	require.NoError(t, err)

	store := cache.NewDatabaseStore(db)
	require.NoError(t, store.Set(ctx, "stale", []byte("x"), time.Nanosecond))
	time.Sleep(2 * time.Millisecond)

	cleaner := NewCleaner(db, pages, WithPurger(store), WithNow(func() time.Time { return now }))
	report, err := cleaner.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, now, report.RanAt)
	require.EqualValues(t, 1, report.Published)
	require.EqualValues(t, 1, report.CachePurged)
	require.NotEmpty(t, report.Trees)

	routes, err := pages.Routes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)

	failing := NewCleaner(db, nil, WithPurger(failingPurger{}))
	_, err = failing.RunOnce(ctx)
	require.ErrorContains(t, err, "cache offline")
}

func TestCleanerStartSchedulesJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	c := cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)))
	cleaner := NewCleaner(db, nil, WithCron(c), WithSchedules("*/30 * * * * *", "@daily", "", "@every 1h"))
	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })

	require.Len(t, c.Entries(), 3)

	bad := NewCleaner(db, nil, WithCron(cron.New()), WithSchedules("not a spec", "", "", ""))
	require.Error(t, bad.Start())
	require.Error(t, NewCleaner(nil, nil).Start())
}
