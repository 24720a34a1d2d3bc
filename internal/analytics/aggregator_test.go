package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortlink-analytics/internal/apperr"
	"shortlink-analytics/internal/cache"
	"shortlink-analytics/internal/model"
	"shortlink-analytics/internal/store"
	"shortlink-analytics/internal/testutil"
)

// 2025-10-16 是周四
var fixedNow = time.Date(2025, 10, 16, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	links  *store.GormLinkStore
	clicks *store.GormClickStore
	cache  *cache.AnalyticsCache
	agg    *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	memory := cache.NewMemoryStore(0)
	t.Cleanup(func() { memory.Close() })

	f := &fixture{
		ctx:    context.Background(),
		links:  store.NewLinkStore(db),
		clicks: store.NewClickStore(db),
		cache:  cache.NewAnalyticsCache(memory, nil, nil),
	}
	f.agg = NewAggregator(f.links, f.clicks, f.cache, Options{})
	f.agg.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) link(t *testing.T, ownerID uint, slug string) *model.ShortLink {
	t.Helper()
	link := &model.ShortLink{UserID: ownerID, Slug: slug, TargetURL: "https://example.com/" + slug, IsActive: true}
	require.NoError(t, f.links.Create(f.ctx, link))
	return link
}

func (f *fixture) click(t *testing.T, linkID uint, ip string, at time.Time, mutate func(c *model.ClickLog)) {
	t.Helper()
	c := &model.ClickLog{ShortLinkID: linkID, IPAddress: ip, ClickedAt: at}
	if mutate != nil {
		mutate(c)
	}
	_, err := f.clicks.Append(f.ctx, c)
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func TestAggregator_LinkAnalytics(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 1, "stats")

	f.click(t, link.ID, "203.0.113.42", fixedNow.Add(-time.Hour), func(c *model.ClickLog) {
		c.Country = strPtr("US")
		c.DeviceType = strPtr("mobile")
		c.BrowserName = strPtr("Safari")
		c.OS = strPtr("iOS")
		c.Referrer = strPtr("https://news.ycombinator.com/item?id=1")
	})
	f.click(t, link.ID, "198.51.100.7", fixedNow.AddDate(0, 0, -3), func(c *model.ClickLog) {
		c.Country = strPtr("DE")
		c.DeviceType = strPtr("desktop")
		c.BrowserName = strPtr("Firefox")
		c.OS = strPtr("Linux")
	})
	f.click(t, link.ID, "203.0.113.42", fixedNow.AddDate(0, 0, -20), nil)
	f.click(t, link.ID, "192.0.2.1", fixedNow.AddDate(0, 0, -40), nil)

	week, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 7)
	require.NoError(t, err)

	assert.Equal(t, link.ID, week.LinkID)
	assert.Equal(t, 7, week.WindowDays)
	assert.Equal(t, int64(4), week.TotalClicks)
	assert.Equal(t, int64(3), week.UniqueIPs)
	assert.Equal(t, int64(1), week.TodayClicks)
	assert.Equal(t, int64(2), week.WeekClicks)
	assert.Equal(t, int64(3), week.MonthClicks)

	assert.Equal(t, []DateCount{
		{Date: "2025-10-13", Clicks: 1},
		{Date: "2025-10-16", Clicks: 1},
	}, week.ClicksByDate)
	assert.Equal(t, []store.FacetCount{{Value: "DE", Clicks: 1}, {Value: "US", Clicks: 1}}, week.ClicksByCountry)
	assert.Equal(t, []store.FacetCount{{Value: "desktop", Clicks: 1}, {Value: "mobile", Clicks: 1}}, week.ClicksByDevice)
	assert.Equal(t, []ReferrerCount{{
		Referrer:     "news.ycombinator.com",
		FullReferrer: "https://news.ycombinator.com/item?id=1",
		Clicks:       1,
	}}, week.TopReferrers)

	require.Len(t, week.RecentClicks, 4)
	first := week.RecentClicks[0]
	assert.Equal(t, "203.0.113.xxx", first.IPAddress)
	assert.Equal(t, "https://news.ycombinator.com/item?id=1", first.Referrer)
	assert.Equal(t, "1 hour ago", first.ClickedAt)
	assert.Equal(t, "iOS", first.OS)

	second := week.RecentClicks[1]
	assert.Equal(t, Direct, second.Referrer)
	assert.Equal(t, "DE", second.Country)

	last := week.RecentClicks[3]
	assert.Equal(t, Unknown, last.Country)
	assert.Equal(t, Unknown, last.DeviceType)
	assert.Equal(t, Unknown, last.BrowserName)

	month, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 30)
	require.NoError(t, err)
	assert.Len(t, month.ClicksByDate, 3)
	assert.Equal(t, "2025-09-26", month.ClicksByDate[0].Date)
}

func TestAggregator_FacetsCoverAllClicks(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 1, "old-click")

	f.click(t, link.ID, "203.0.113.9", fixedNow.AddDate(0, 0, -20), func(c *model.ClickLog) {
		c.Country = strPtr("FR")
		c.DeviceType = strPtr("desktop")
		c.Referrer = strPtr("https://example.org/post")
	})

	got, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.TotalClicks)
	assert.Empty(t, got.ClicksByDate)
	assert.Equal(t, []store.FacetCount{{Value: "FR", Clicks: 1}}, got.ClicksByCountry)
	assert.Equal(t, []store.FacetCount{{Value: "desktop", Clicks: 1}}, got.ClicksByDevice)
	assert.Equal(t, []ReferrerCount{{
		Referrer:     "example.org",
		FullReferrer: "https://example.org/post",
		Clicks:       1,
	}}, got.TopReferrers)

	month, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 30)
	require.NoError(t, err)
	assert.Len(t, month.ClicksByDate, 1)
	assert.Equal(t, got.ClicksByCountry, month.ClicksByCountry)
	assert.Equal(t, got.TopReferrers, month.TopReferrers)
}

func TestAggregator_EmptyLinkHasEmptyCollections(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 1, "empty")

	got, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 30)
	require.NoError(t, err)
	assert.Zero(t, got.TotalClicks)
	assert.NotNil(t, got.ClicksByDate)
	assert.NotNil(t, got.ClicksByCountry)
	assert.NotNil(t, got.TopReferrers)
	assert.NotNil(t, got.RecentClicks)
}

func TestAggregator_LinkAnalyticsRejectsUnknownWindow(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 1, "window")

	_, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 14)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.True(t, ValidWindow(7))
	assert.False(t, ValidWindow(0))
}

func TestAggregator_LinkAnalyticsIsCachedUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 1, "cached")
	f.click(t, link.ID, "203.0.113.1", fixedNow, nil)

	first, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.TotalClicks)

	f.click(t, link.ID, "203.0.113.2", fixedNow, nil)

	stale, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 7)
	require.NoError(t, err)
	assert.Equal(t, first, stale)

	f.cache.InvalidateLink(f.ctx, link.ID)

	fresh, err := f.agg.ComputeLinkAnalytics(f.ctx, link, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.TotalClicks)
}

func TestAggregator_UserStatsAndDashboard(t *testing.T) {
	f := newFixture(t)
	mine := f.link(t, 1, "mine")
	f.link(t, 1, "mine2")
	other := f.link(t, 2, "other")

	f.click(t, mine.ID, "203.0.113.1", fixedNow.Add(-time.Hour), nil)
	// 周二，在本周内
	f.click(t, mine.ID, "203.0.113.1", fixedNow.AddDate(0, 0, -2), nil)
	// 上周六，在本月内
	f.click(t, mine.ID, "203.0.113.1", fixedNow.AddDate(0, 0, -5), nil)
	// 上个月
	f.click(t, mine.ID, "203.0.113.1", fixedNow.AddDate(0, 0, -20), nil)
	f.click(t, other.ID, "203.0.113.1", fixedNow, nil)

	stats, err := f.agg.ComputeUserStats(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, UserStats{TotalClicks: 4, TodayClicks: 1, WeekClicks: 2, MonthClicks: 3}, stats)

	dashboard, err := f.agg.Dashboard(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dashboard.TotalLinks)
	assert.Equal(t, stats, dashboard.UserStats)

	empty, err := f.agg.Dashboard(f.ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, Dashboard{}, empty)
}

func TestStartOfWeek(t *testing.T) {
	assert.Equal(t, time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC), startOfWeek(fixedNow))
	sunday := time.Date(2025, 10, 19, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC), startOfWeek(sunday))
	monday := time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, startOfWeek(monday))
}
