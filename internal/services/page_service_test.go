package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/tree"
	apperrors "github.com/macrame/admin/pkg/errors"
)

func boolPtr(v bool) *bool { return &v }

func newPageService(t *testing.T, opts ...PageServiceOption) (*PageService, serviceEnv) {
	t.Helper()
	env := newServiceEnv(t)
	svc, err := NewPageService(env.db, env.files, opts...)
	require.NoError(t, err)
	return svc, env
}

func createPage(t *testing.T, svc *PageService, name string, parent *string, live bool) *PageDTO {
	t.Helper()
	page, err := svc.Create(context.Background(), PageInput{Name: name, ParentID: parent, IsLive: boolPtr(live)})
	require.NoError(t, err)
	return page
}

func TestPageServiceCreateAndFullSlug(t *testing.T) {
	svc, _ := newPageService(t)
	ctx := context.Background()

	home := createPage(t, svc, "Home", nil, true)
	about := createPage(t, svc, "About", &home.ID, true)

	require.Equal(t, "home", home.Slug)
	require.Equal(t, "/home", home.FullSlug)
	require.Equal(t, "/home/about", about.FullSlug)

	custom, err := svc.Create(ctx, PageInput{
		Name:     "Team",
		Slug:     "Our Team",
		ParentID: &home.ID,
		Content:  json.RawMessage(`{"blocks":[{"type":"text"}]}`),
	})
	require.NoError(t, err)
	require.Equal(t, "our-team", custom.Slug)
	require.Equal(t, 1, custom.OrderColumn)
	require.JSONEq(t, `{"blocks":[{"type":"text"}]}`, string(custom.Content))

	_, err = svc.Create(ctx, PageInput{Name: "About", ParentID: &home.ID})
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = svc.Create(ctx, PageInput{Name: "  "})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = svc.Create(ctx, PageInput{Name: "Lost", ParentID: strPtr("missing")})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPageServiceUpdate(t *testing.T) {
	svc, _ := newPageService(t)
	ctx := context.Background()

	home := createPage(t, svc, "Home", nil, false)
	child := createPage(t, svc, "News", &home.ID, false)

	updated, err := svc.Update(ctx, home.ID, PageInput{Slug: "Start Page", IsLive: boolPtr(true)})
	require.NoError(t, err)
	require.Equal(t, "start-page", updated.Slug)
	require.True(t, updated.IsLive)

	got, err := svc.Get(ctx, child.ID)
	require.NoError(t, err)
	require.Equal(t, "/start-page/news", got.FullSlug)

	meta, err := svc.UpdateMeta(ctx, child.ID, PageMetaInput{MetaTitle: " News ", MetaDescription: "Latest"})
	require.NoError(t, err)
	require.Equal(t, "News", meta.MetaTitle)
	require.Equal(t, "Latest", meta.MetaDescription)

	_, err = svc.Update(ctx, "missing", PageInput{Name: "x"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPageServiceOrderAndMove(t *testing.T) {
	svc, _ := newPageService(t)
	ctx := context.Background()

	one := createPage(t, svc, "One", nil, true)
	two := createPage(t, svc, "Two", nil, true)
	three := createPage(t, svc, "Three", nil, true)

	require.NoError(t, svc.Order(ctx, nil, []tree.OrderItem{{ID: three.ID}, {ID: one.ID}, {ID: two.ID}}))
	require.NoError(t, svc.Order(ctx, nil, []tree.OrderItem{{ID: one.ID}, {ID: two.ID}, {ID: three.ID}}))

	roots, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 3)
	require.Equal(t, one.ID, roots[0].Node.ID)
	require.Equal(t, two.ID, roots[1].Node.ID)
	require.Equal(t, three.ID, roots[2].Node.ID)

	moved, err := svc.Move(ctx, three.ID, &one.ID)
	require.NoError(t, err)
	require.Equal(t, "/one/three", moved.FullSlug)

	_, err = svc.Move(ctx, one.ID, &three.ID)
	require.ErrorIs(t, err, apperrors.ErrCycle)

	err = svc.Order(ctx, nil, []tree.OrderItem{{ID: two.ID}, {ID: "missing"}})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPageServiceOrderRejectsSlugClash(t *testing.T) {
	svc, _ := newPageService(t)
	ctx := context.Background()

	a := createPage(t, svc, "A", nil, true)
	about := createPage(t, svc, "About", &a.ID, true)
	dup := createPage(t, svc, "About", nil, true)

	err := svc.Order(ctx, &a.ID, []tree.OrderItem{{ID: about.ID}, {ID: dup.ID}})
	require.ErrorIs(t, err, apperrors.ErrConflict)

	err = svc.Order(ctx, nil, []tree.OrderItem{{ID: a.ID, Children: []tree.OrderItem{{ID: dup.ID}}}})
	require.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := svc.Get(ctx, dup.ID)
	require.NoError(t, err)
	require.Equal(t, "/about", got.FullSlug)

	// swapping the two pages frees the slug on both sides
	require.NoError(t, svc.Order(ctx, nil, []tree.OrderItem{
		{ID: a.ID, Children: []tree.OrderItem{{ID: dup.ID}}},
		{ID: about.ID},
	}))

	got, err = svc.Get(ctx, dup.ID)
	require.NoError(t, err)
	require.Equal(t, "/a/about", got.FullSlug)

	routes, err := svc.Routes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 3)
}

func TestPageServiceDeleteRenamesClashingChildren(t *testing.T) {
	svc, _ := newPageService(t)
	ctx := context.Background()

	home := createPage(t, svc, "Home", nil, true)
	nested := createPage(t, svc, "News", &home.ID, true)
	top := createPage(t, svc, "News", nil, true)

	require.NoError(t, svc.Delete(ctx, home.ID))

	got, err := svc.Get(ctx, nested.ID)
	require.NoError(t, err)
	require.Nil(t, got.ParentID)
	require.Equal(t, "news-2", got.Slug)
	require.Equal(t, "/news-2", got.FullSlug)

	kept, err := svc.Get(ctx, top.ID)
	require.NoError(t, err)
	require.Equal(t, "/news", kept.FullSlug)

	routes, err := svc.Routes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
}

func TestPageServiceRoutesRequireLiveAncestors(t *testing.T) {
	svc, _ := newPageService(t)
	ctx := context.Background()

	home := createPage(t, svc, "Home", nil, true)
	createPage(t, svc, "About", &home.ID, true)
	drafts := createPage(t, svc, "Drafts", nil, false)
	createPage(t, svc, "Hidden", &drafts.ID, true)

	routes, err := svc.Routes(ctx)
	require.NoError(t, err)

	paths := make([]string, len(routes))
	for i, r := range routes {
		paths[i] = r.Path
	}
	require.Equal(t, []string{"/home", "/home/about"}, paths)

	route, err := svc.ResolvePath(ctx, "home/about/")
	require.NoError(t, err)
	require.Equal(t, "About", route.Name)

	_, err = svc.ResolvePath(ctx, "/drafts/hidden")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPageServiceRouteCacheInvalidation(t *testing.T) {
	env := newServiceEnv(t)
	store := cache.NewDatabaseStore(env.db)
	svc, err := NewPageService(env.db, env.files, WithRouteCache(store, time.Hour))
	require.NoError(t, err)
	ctx := context.Background()

	home := createPage(t, svc, "Home", nil, true)

	routes, err := svc.Routes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)

	_, cached, err := store.Get(ctx, routesCacheKey)
	require.NoError(t, err)
	require.True(t, cached)

	createPage(t, svc, "Contact", &home.ID, true)

	_, cached, err = store.Get(ctx, routesCacheKey)
	require.NoError(t, err)
	require.False(t, cached)

	routes, err = svc.Routes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
}

func TestPageServiceDuplicate(t *testing.T) {
	svc, _ := newPageService(t)
	ctx := context.Background()

	home := createPage(t, svc, "Home", nil, true)

	first, err := svc.Duplicate(ctx, home.ID)
	require.NoError(t, err)
	require.Equal(t, "Home (copy)", first.Name)
	require.Equal(t, "home-copy", first.Slug)
	require.False(t, first.IsLive)
	require.Equal(t, 1, first.OrderColumn)

	second, err := svc.Duplicate(ctx, home.ID)
	require.NoError(t, err)
	require.Equal(t, "home-copy-2", second.Slug)
}

func TestPageServiceDeleteReparentsAndDetaches(t *testing.T) {
	svc, env := newPageService(t)
	ctx := context.Background()

	home := createPage(t, svc, "Home", nil, true)
	section := createPage(t, svc, "Section", &home.ID, true)
	leaf := createPage(t, svc, "Leaf", &section.ID, true)

	files, err := svc.Upload(ctx, section.ID, multipartFiles(t, map[string]string{"hero.png": "png"}, "hero.png"), strPtr("hero"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	attached, err := svc.Files(ctx, section.ID, nil)
	require.NoError(t, err)
	require.Len(t, attached, 1)

	require.NoError(t, svc.Delete(ctx, section.ID))

	got, err := svc.Get(ctx, leaf.ID)
	require.NoError(t, err)
	require.Equal(t, "/home/leaf", got.FullSlug)

	var rows int64
	require.NoError(t, env.db.Model(&models.FileAttachment{}).Count(&rows).Error)
	require.Zero(t, rows)

	// the file itself stays in the library
	_, err = env.files.Get(ctx, files[0].ID)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, section.ID), apperrors.ErrNotFound)
}

func TestPageServicePublishDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newPageService(t, WithPageClock(func() time.Time { return now }))
	ctx := context.Background()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	due, err := svc.Create(ctx, PageInput{Name: "Launch", PublishAt: &past})
	require.NoError(t, err)
	later, err := svc.Create(ctx, PageInput{Name: "Later", PublishAt: &future})
	require.NoError(t, err)

	published, err := svc.PublishDue(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, published)

	got, err := svc.Get(ctx, due.ID)
	require.NoError(t, err)
	require.True(t, got.IsLive)
	require.Nil(t, got.PublishAt)

	got, err = svc.Get(ctx, later.ID)
	require.NoError(t, err)
	require.False(t, got.IsLive)
}

func TestPageServiceList(t *testing.T) {
	svc, _ := newPageService(t)
	ctx := context.Background()

	home := createPage(t, svc, "Home", nil, true)
	createPage(t, svc, "About", &home.ID, false)
	createPage(t, svc, "Contact", nil, true)

	pages, total, err := svc.List(ctx, PageListOptions{Search: "abo"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "/home/about", pages[0].FullSlug)

	pages, total, err = svc.List(ctx, PageListOptions{LiveOnly: true, PerPage: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, pages, 1)
	require.Equal(t, "Contact", pages[0].Name)
}

func strPtr(s string) *string { return &s }
