package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/database/testutil"
	"github.com/macrame/admin/internal/models"
	apperrors "github.com/macrame/admin/pkg/errors"
)

func newPageStore(t *testing.T) (*Store[models.Page, *models.Page], *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	return NewStore[models.Page](db, "pages"), db
}

func insertPage(t *testing.T, store *Store[models.Page, *models.Page], name, slug string, parent *string) *models.Page {
	t.Helper()
	p := &models.Page{Name: name, Slug: slug, ParentID: parent}
	require.NoError(t, store.Insert(context.Background(), p))
	return p
}

func childIDs(t *testing.T, store *Store[models.Page, *models.Page], parent *string) []string {
	t.Helper()
	children, err := store.Children(context.Background(), parent)
	require.NoError(t, err)
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID
		require.Equal(t, i, c.OrderColumn)
	}
	return ids
}

func TestStoreInsertAppendsToSiblings(t *testing.T) {
	store, _ := newPageStore(t)

	first := insertPage(t, store, "Home", "home", nil)
	second := insertPage(t, store, "Blog", "blog", nil)
	child := insertPage(t, store, "About", "about", &first.ID)

	require.Equal(t, 0, first.OrderColumn)
	require.Equal(t, 1, second.OrderColumn)
	require.Equal(t, 0, child.OrderColumn)

	err := store.Insert(context.Background(), &models.Page{Name: "Lost", ParentID: testutil.StrPtr("missing")})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreRoots(t *testing.T) {
	store, _ := newPageStore(t)
	ctx := context.Background()

	roots, err := store.Roots(ctx)
	require.NoError(t, err)
	require.NotNil(t, roots)
	require.Empty(t, roots)

	home := insertPage(t, store, "Home", "home", nil)
	insertPage(t, store, "About", "about", &home.ID)
	blog := insertPage(t, store, "Blog", "blog", nil)

	roots, err = store.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	require.Equal(t, home.ID, roots[0].ID)
	require.Equal(t, blog.ID, roots[1].ID)
}

func TestStoreFullSlug(t *testing.T) {
	store, _ := newPageStore(t)
	ctx := context.Background()

	home := insertPage(t, store, "Home", "home", nil)
	about := insertPage(t, store, "About", "about", &home.ID)

	slug, err := store.FullSlug(ctx, about.ID)
	require.NoError(t, err)
	require.Equal(t, "/home/about", slug)

	a := insertPage(t, store, "A", "a", nil)
	b := insertPage(t, store, "B", "b", &a.ID)
	c := insertPage(t, store, "C", "c", &b.ID)

	slug, err = store.FullSlug(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "/a/b/c", slug)

	root, err := store.Root(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, root.ID)

	parent, err := store.Parent(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, parent.ID)

	parent, err = store.Parent(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, parent)

	_, err = store.FullSlug(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreFullSlugDanglingParent(t *testing.T) {
	store, db := newPageStore(t)

	orphan := &models.Page{Name: "Orphan", Slug: "orphan", ParentID: testutil.StrPtr("00000000-0000-0000-0000-000000000000")}
	require.NoError(t, db.Create(orphan).Error)

	_, err := store.FullSlug(context.Background(), orphan.ID)
	require.ErrorIs(t, err, apperrors.ErrBrokenHierarchy)

	_, err = store.Parent(context.Background(), orphan.ID)
	require.ErrorIs(t, err, apperrors.ErrBrokenHierarchy)
}

func TestStoreUpdateOrder(t *testing.T) {
	store, _ := newPageStore(t)
	ctx := context.Background()

	one := insertPage(t, store, "One", "one", nil)
	two := insertPage(t, store, "Two", "two", nil)
	three := insertPage(t, store, "Three", "three", nil)

	require.NoError(t, store.UpdateOrder(ctx, nil, []OrderItem{{ID: three.ID}, {ID: one.ID}, {ID: two.ID}}))
	require.Equal(t, []string{three.ID, one.ID, two.ID}, childIDs(t, store, nil))

	require.NoError(t, store.UpdateOrder(ctx, nil, []OrderItem{{ID: one.ID}, {ID: two.ID}, {ID: three.ID}}))
	require.Equal(t, []string{one.ID, two.ID, three.ID}, childIDs(t, store, nil))
}

func TestStoreUpdateOrderNested(t *testing.T) {
	store, _ := newPageStore(t)
	ctx := context.Background()

	a := insertPage(t, store, "A", "a", nil)
	b := insertPage(t, store, "B", "b", nil)
	c := insertPage(t, store, "C", "c", nil)

	err := store.UpdateOrder(ctx, nil, []OrderItem{
		{ID: b.ID, Children: []OrderItem{{ID: c.ID}, {ID: a.ID}}},
	})
	require.NoError(t, err)

	require.Equal(t, []string{b.ID}, childIDs(t, store, nil))
	require.Equal(t, []string{c.ID, a.ID}, childIDs(t, store, &b.ID))

	slug, err := store.FullSlug(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "/b/a", slug)
}

func TestStoreUpdateOrderUnlistedSiblingsFollow(t *testing.T) {
	store, _ := newPageStore(t)

	one := insertPage(t, store, "One", "one", nil)
	two := insertPage(t, store, "Two", "two", nil)
	three := insertPage(t, store, "Three", "three", nil)

	require.NoError(t, store.UpdateOrder(context.Background(), nil, []OrderItem{{ID: three.ID}}))
	require.Equal(t, []string{three.ID, one.ID, two.ID}, childIDs(t, store, nil))
}

func TestStoreUpdateOrderIsAtomic(t *testing.T) {
	store, _ := newPageStore(t)
	ctx := context.Background()

	one := insertPage(t, store, "One", "one", nil)
	two := insertPage(t, store, "Two", "two", nil)

	err := store.UpdateOrder(ctx, nil, []OrderItem{{ID: two.ID}, {ID: "missing"}, {ID: one.ID}})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Equal(t, []string{one.ID, two.ID}, childIDs(t, store, nil))

	err = store.UpdateOrder(ctx, nil, []OrderItem{{ID: two.ID}, {ID: two.ID}})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrder)
	require.Equal(t, []string{one.ID, two.ID}, childIDs(t, store, nil))
}

func TestStoreUpdateOrderRejectsCycles(t *testing.T) {
	store, _ := newPageStore(t)
	ctx := context.Background()

	a := insertPage(t, store, "A", "a", nil)
	b := insertPage(t, store, "B", "b", &a.ID)

	// placing a below b while b stays below a
	err := store.UpdateOrder(ctx, &b.ID, []OrderItem{{ID: a.ID}})
	require.ErrorIs(t, err, apperrors.ErrCycle)

	parent, err := store.Parent(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, parent.ID)
}

func TestStoreMove(t *testing.T) {
	store, _ := newPageStore(t)
	ctx := context.Background()

	a := insertPage(t, store, "A", "a", nil)
	b := insertPage(t, store, "B", "b", nil)
	c := insertPage(t, store, "C", "c", nil)
	child := insertPage(t, store, "Child", "child", &c.ID)

	moved, err := store.Move(ctx, a.ID, &c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, *moved.ParentID)
	require.Equal(t, 1, moved.OrderColumn)

	require.Equal(t, []string{b.ID, c.ID}, childIDs(t, store, nil))
	require.Equal(t, []string{child.ID, a.ID}, childIDs(t, store, &c.ID))

	_, err = store.Move(ctx, c.ID, &a.ID)
	require.ErrorIs(t, err, apperrors.ErrCycle)

	_, err = store.Move(ctx, c.ID, &c.ID)
	require.ErrorIs(t, err, apperrors.ErrCycle)

	moved, err = store.Move(ctx, a.ID, nil)
	require.NoError(t, err)
	require.Nil(t, moved.ParentID)
	require.Equal(t, []string{b.ID, c.ID, a.ID}, childIDs(t, store, nil))
}

func TestStoreDeleteReparentsChildren(t *testing.T) {
	store, _ := newPageStore(t)
	ctx := context.Background()

	root := insertPage(t, store, "Root", "root", nil)
	keep := insertPage(t, store, "Keep", "keep", &root.ID)
	gone := insertPage(t, store, "Gone", "gone", &root.ID)
	x := insertPage(t, store, "X", "x", &gone.ID)
	y := insertPage(t, store, "Y", "y", &gone.ID)
	last := insertPage(t, store, "Last", "last", &root.ID)

	require.NoError(t, store.Delete(ctx, gone.ID))

	require.Equal(t, []string{keep.ID, last.ID, x.ID, y.ID}, childIDs(t, store, &root.ID))

	_, err := store.Find(ctx, gone.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	slug, err := store.FullSlug(ctx, y.ID)
	require.NoError(t, err)
	require.Equal(t, "/root/y", slug)

	require.ErrorIs(t, store.Delete(ctx, gone.ID), apperrors.ErrNotFound)
}

func TestStoreScopeSeparatesMenus(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	mainMenu := &models.Menu{Title: "Main", Key: "main"}
	footer := &models.Menu{Title: "Footer", Key: "footer"}
	require.NoError(t, db.Create(mainMenu).Error)
	require.NoError(t, db.Create(footer).Error)

	items := NewStore[models.MenuItem](db, "menu_items")
	inMenu := func(id string) Scope {
		return func(q *gorm.DB) *gorm.DB { return q.Where("menu_id = ?", id) }
	}
	mainItems := items.WithScope(inMenu(mainMenu.ID))
	footerItems := items.WithScope(inMenu(footer.ID))

	home := &models.MenuItem{MenuID: mainMenu.ID, Title: "Home"}
	require.NoError(t, mainItems.Insert(ctx, home))
	legal := &models.MenuItem{MenuID: footer.ID, Title: "Legal Notice"}
	require.NoError(t, footerItems.Insert(ctx, legal))

	require.Equal(t, 0, home.OrderColumn)
	require.Equal(t, 0, legal.OrderColumn)

	slug, err := footerItems.FullSlug(ctx, legal.ID)
	require.NoError(t, err)
	require.Equal(t, "/legal-notice", slug)

	_, err = mainItems.Find(ctx, legal.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = mainItems.UpdateOrder(ctx, nil, []OrderItem{{ID: legal.ID}})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	all, err := items.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
