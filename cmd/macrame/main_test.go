package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/services"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupDatabase(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MACRAME_DATABASE_DRIVER", "sqlite")
	t.Setenv("MACRAME_DATABASE_PATH", filepath.Join(dir, "cli.sqlite"))
	t.Setenv("MACRAME_STORAGE_DRIVER", "memory")

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "database migrated")
}

func seedPages(t *testing.T) (home, about *services.PageDTO) {
	t.Helper()
	opts := &rootOptions{}
	env, err := opts.environment(context.Background())
	require.NoError(t, err)
	defer env.close()

	ctx := context.Background()
	live := true
	home, err = env.services.Pages.Create(ctx, services.PageInput{Name: "Home", IsLive: &live})
	require.NoError(t, err)
	about, err = env.services.Pages.Create(ctx, services.PageInput{Name: "About", IsLive: &live})
	require.NoError(t, err)
	_, err = env.services.Pages.Create(ctx, services.PageInput{Name: "Team", ParentID: &about.ID, IsLive: &live})
	require.NoError(t, err)
	return home, about
}

func TestPagesCommands(t *testing.T) {
	setupDatabase(t)
	home, about := seedPages(t)

	out, err := execute(t, "pages", "tree")
	require.NoError(t, err)
	require.Contains(t, out, "Home  /home  [live]")
	require.Contains(t, out, "  Team  /about/team  [live]")
	require.NotContains(t, out, "//")

	out, err = execute(t, "pages", "routes")
	require.NoError(t, err)
	require.Contains(t, out, "/about/team")
	require.NotContains(t, out, "//")

	orderFile := filepath.Join(t.TempDir(), "order.json")
	order := []map[string]any{{"id": about.ID}, {"id": home.ID}}
	data, err := json.Marshal(order)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(orderFile, data, 0o600))

	out, err = execute(t, "pages", "order", "--file", orderFile)
	require.NoError(t, err)
	require.Contains(t, out, "ordered 2 pages")

	out, err = execute(t, "pages", "tree")
	require.NoError(t, err)
	require.Less(t, strings.Index(out, "About"), strings.Index(out, "Home"))

	_, err = execute(t, "pages", "order")
	require.Error(t, err)
}

func TestTreeCheckAndMaintenance(t *testing.T) {
	setupDatabase(t)
	seedPages(t)

	out, err := execute(t, "tree", "check")
	require.NoError(t, err)
	require.Contains(t, out, "ok      pages (3 nodes)")
	require.Contains(t, out, "menu:main")

	out, err = execute(t, "maintenance", "run")
	require.NoError(t, err)
	var report struct {
		Published int64 `json:"published"`
		Trees     []struct {
			Tree string `json:"tree"`
		} `json:"trees"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Zero(t, report.Published)
	require.Len(t, report.Trees, 4)

	// a parent pointing nowhere breaks the page tree
	opts := &rootOptions{}
	_, db, err := opts.open()
	require.NoError(t, err)
	missing := "00000000-0000-0000-0000-000000000000"
	require.NoError(t, db.Create(&models.Page{Name: "Lost", Slug: "lost", ParentID: &missing}).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	out, err = execute(t, "tree", "check")
	require.ErrorIs(t, err, errBrokenTrees)
	require.Contains(t, out, "broken  pages (4 nodes)")
}
