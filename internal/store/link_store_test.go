package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortlink-analytics/internal/apperr"
	"shortlink-analytics/internal/model"
	"shortlink-analytics/internal/testutil"
)

func strPtr(s string) *string { return &s }

func newLink(ownerID uint, slug string) *model.ShortLink {
	return &model.ShortLink{
		UserID:    ownerID,
		Slug:      slug,
		TargetURL: "https://example.com/" + slug,
		IsActive:  true,
	}
}

func TestLinkStore_ResolveBySlug(t *testing.T) {
	ctx := context.Background()
	links := NewLinkStore(testutil.NewDB(t))

	plain := newLink(1, "abc123")
	require.NoError(t, links.Create(ctx, plain))

	aliased := newLink(1, "xyz789")
	aliased.CustomAlias = strPtr("launch")
	require.NoError(t, links.Create(ctx, aliased))

	t.Run("exact slug", func(t *testing.T) {
		got, err := links.ResolveBySlug(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, plain.ID, got.ID)
	})

	t.Run("falls back to custom alias", func(t *testing.T) {
		got, err := links.ResolveBySlug(ctx, "launch")
		require.NoError(t, err)
		assert.Equal(t, aliased.ID, got.ID)
	})

	t.Run("case sensitive", func(t *testing.T) {
		_, err := links.ResolveBySlug(ctx, "ABC123")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("unknown slug", func(t *testing.T) {
		_, err := links.ResolveBySlug(ctx, "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestLinkStore_CreateSharesNamespaceWithAliases(t *testing.T) {
	ctx := context.Background()
	links := NewLinkStore(testutil.NewDB(t))

	first := newLink(1, "abc123")
	first.CustomAlias = strPtr("promo")
	require.NoError(t, links.Create(ctx, first))

	t.Run("slug equal to existing alias", func(t *testing.T) {
		err := links.Create(ctx, newLink(2, "promo"))
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("alias equal to existing slug", func(t *testing.T) {
		l := newLink(2, "def456")
		l.CustomAlias = strPtr("abc123")
		assert.ErrorIs(t, links.Create(ctx, l), apperr.ErrConflict)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		assert.ErrorIs(t, links.Create(ctx, newLink(2, "abc123")), apperr.ErrConflict)
	})

	taken, err := links.SlugTaken(ctx, "promo")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = links.SlugTaken(ctx, "free")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestLinkStore_IncrementClickCountIsAtomic(t *testing.T) {
	ctx := context.Background()
	links := NewLinkStore(testutil.NewDB(t))

	link := newLink(1, "viral")
	require.NoError(t, links.Create(ctx, link))

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- links.IncrementClickCount(ctx, link.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := links.FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.ClickCount)
}

func TestLinkStore_IncrementUnknownLink(t *testing.T) {
	links := NewLinkStore(testutil.NewDB(t))
	err := links.IncrementClickCount(context.Background(), 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLinkStore_UpdateKeepsClickCount(t *testing.T) {
	ctx := context.Background()
	links := NewLinkStore(testutil.NewDB(t))

	link := newLink(1, "keep")
	require.NoError(t, links.Create(ctx, link))
	require.NoError(t, links.IncrementClickCount(ctx, link.ID))

	expires := time.Now().UTC().Add(time.Hour)
	link.TargetURL = "https://example.org/new"
	link.IsActive = false
	link.ExpiresAt = &expires
	link.ClickCount = 0
	require.NoError(t, links.Update(ctx, link))

	got, err := links.FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/new", got.TargetURL)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, int64(1), got.ClickCount)
}

func TestLinkStore_DeleteCascadesAndRetiresSlug(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	links := NewLinkStore(db)
	clicks := NewClickStore(db)

	link := newLink(1, "gone")
	link.CustomAlias = strPtr("gone-alias")
	require.NoError(t, links.Create(ctx, link))
	_, err := clicks.Append(ctx, &model.ClickLog{ShortLinkID: link.ID, IPAddress: "203.0.113.1"})
	require.NoError(t, err)

	require.NoError(t, links.Delete(ctx, link.ID))

	_, err = links.FindByID(ctx, link.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	count, err := clicks.Count(ctx, ClickFilter{LinkID: link.ID})
	require.NoError(t, err)
	assert.Zero(t, count)

	// 删除后的短码和别名都不能被再次使用
	assert.ErrorIs(t, links.Create(ctx, newLink(2, "gone")), apperr.ErrConflict)
	assert.ErrorIs(t, links.Create(ctx, newLink(2, "gone-alias")), apperr.ErrConflict)

	assert.ErrorIs(t, links.Delete(ctx, link.ID), apperr.ErrNotFound)
}

func TestLinkStore_OwnerQueries(t *testing.T) {
	ctx := context.Background()
	links := NewLinkStore(testutil.NewDB(t))
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	active := newLink(1, "active")
	expired := newLink(1, "expired")
	expired.ExpiresAt = &past
	later := newLink(1, "later")
	later.ExpiresAt = &future
	inactive := newLink(1, "inactive")
	other := newLink(2, "other")

	for _, l := range []*model.ShortLink{active, expired, later, inactive, other} {
		require.NoError(t, links.Create(ctx, l))
	}
	inactive.IsActive = false
	require.NoError(t, links.Update(ctx, inactive))

	all, total, err := links.ListByOwner(ctx, LinkFilter{OwnerID: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, int64(4), total)

	page, total, err := links.ListByOwner(ctx, LinkFilter{OwnerID: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, int64(4), total)

	live, err := links.ListActiveByOwner(ctx, 1, now)
	require.NoError(t, err)
	var slugs []string
	for _, l := range live {
		slugs = append(slugs, l.Slug)
	}
	assert.ElementsMatch(t, []string{"active", "later"}, slugs)

	count, err := links.CountByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestLinkStore_ListByOwnerFilters(t *testing.T) {
	ctx := context.Background()
	links := NewLinkStore(testutil.NewDB(t))

	seed := []struct {
		slug, title, category string
		owner                 uint
	}{
		{"spring", "Spring Sale", "promo", 1},
		{"summer", "Summer sale", "promo", 1},
		{"blog", "Engineering Blog", "content", 1},
		{"notes", "Release notes", "", 1},
		{"theirs", "Spring Sale", "promo", 2},
	}
	for _, l := range seed {
		link := newLink(l.owner, l.slug)
		link.Title = l.title
		link.Category = l.category
		require.NoError(t, links.Create(ctx, link))
	}

	slugsOf := func(ls []model.ShortLink) []string {
		out := make([]string, 0, len(ls))
		for _, l := range ls {
			out = append(out, l.Slug)
		}
		return out
	}

	got, total, err := links.ListByOwner(ctx, LinkFilter{OwnerID: 1, Search: "SALE"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.ElementsMatch(t, []string{"spring", "summer"}, slugsOf(got))

	got, total, err = links.ListByOwner(ctx, LinkFilter{OwnerID: 1, Category: "content"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{"blog"}, slugsOf(got))

	got, total, err = links.ListByOwner(ctx, LinkFilter{OwnerID: 1, Search: "spring", Category: "promo"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{"spring"}, slugsOf(got))

	// 分页不影响总数
	got, total, err = links.ListByOwner(ctx, LinkFilter{OwnerID: 1, Category: "promo", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, got, 1)

	got, total, err = links.ListByOwner(ctx, LinkFilter{OwnerID: 1, Search: "missing"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, got)
}
