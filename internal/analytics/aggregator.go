// Package analytics 从点击日志计算链接和用户维度的统计
package analytics

import (
	"context"
	"slices"
	"time"

	"shortlink-analytics/internal/apperr"
	"shortlink-analytics/internal/cache"
	"shortlink-analytics/internal/model"
	"shortlink-analytics/internal/store"
)

const (
	facetLimit  = 10
	recentLimit = 20
)

// Options 缓存有效期
type Options struct {
	LinkTTL time.Duration
	UserTTL time.Duration
}

// DefaultOptions 链接分析缓存 10 分钟，用户统计缓存 5 分钟
func DefaultOptions() Options {
	return Options{
		LinkTTL: 10 * time.Minute,
		UserTTL: 5 * time.Minute,
	}
}

// Aggregator 统计计算器，结果经由 AnalyticsCache 缓存
type Aggregator struct {
	links  store.LinkStore
	clicks store.ClickStore
	cache  *cache.AnalyticsCache
	opts   Options
	now    func() time.Time
}

// NewAggregator 创建统计计算器
func NewAggregator(links store.LinkStore, clicks store.ClickStore, c *cache.AnalyticsCache, opts Options) *Aggregator {
	if c == nil {
		c = cache.NewAnalyticsCache(nil, nil, nil)
	}
	defaults := DefaultOptions()
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = defaults.LinkTTL
	}
	if opts.UserTTL <= 0 {
		opts.UserTTL = defaults.UserTTL
	}
	return &Aggregator{
		links:  links,
		clicks: clicks,
		cache:  c,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ValidWindow 判断窗口天数是否受支持
func ValidWindow(days int) bool {
	return slices.Contains(cache.LinkWindows, days)
}

// ComputeLinkAnalytics 返回链接在 windowDays 窗口内的分析快照
func (a *Aggregator) ComputeLinkAnalytics(ctx context.Context, link *model.ShortLink, windowDays int) (LinkAnalytics, error) {
	if !ValidWindow(windowDays) {
		return LinkAnalytics{}, apperr.Validation("days 只支持 7 或 30")
	}
	return cache.GetOrCompute(ctx, a.cache, cache.LinkKey(link.ID, windowDays), a.opts.LinkTTL,
		func(ctx context.Context) (LinkAnalytics, error) {
			return a.computeLink(ctx, link.ID, windowDays)
		})
}

// ComputeUserStats 返回用户所有链接的汇总点击
func (a *Aggregator) ComputeUserStats(ctx context.Context, userID uint) (UserStats, error) {
	return cache.GetOrCompute(ctx, a.cache, cache.UserKey(userID), a.opts.UserTTL,
		func(ctx context.Context) (UserStats, error) {
			return a.computeUser(ctx, userID)
		})
}

// Dashboard 用户统计加上链接总数，链接总数不缓存
func (a *Aggregator) Dashboard(ctx context.Context, userID uint) (Dashboard, error) {
	stats, err := a.ComputeUserStats(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	total, err := a.links.CountByOwner(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{TotalLinks: total, UserStats: stats}, nil
}

func (a *Aggregator) computeLink(ctx context.Context, linkID uint, windowDays int) (LinkAnalytics, error) {
	now := a.now()
	today := startOfDay(now)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, -1, 0)
	windowFrom := now.AddDate(0, 0, -windowDays)

	result := LinkAnalytics{
		LinkID:      linkID,
		WindowDays:  windowDays,
		GeneratedAt: now,
	}

	var err error
	if result.TotalClicks, err = a.clicks.Count(ctx, store.ClickFilter{LinkID: linkID}); err != nil {
		return result, err
	}
	if result.UniqueIPs, err = a.clicks.CountDistinctIPs(ctx, linkID); err != nil {
		return result, err
	}
	if result.TodayClicks, err = a.clicks.Count(ctx, store.ClickFilter{LinkID: linkID, From: &today}); err != nil {
		return result, err
	}
	if result.WeekClicks, err = a.clicks.Count(ctx, store.ClickFilter{LinkID: linkID, From: &weekAgo}); err != nil {
		return result, err
	}
	if result.MonthClicks, err = a.clicks.Count(ctx, store.ClickFilter{LinkID: linkID, From: &monthAgo}); err != nil {
		return result, err
	}

	byDate, err := a.clicks.AggregateBy(ctx, linkID, store.DimensionDate, 0, &windowFrom)
	if err != nil {
		return result, err
	}
	result.ClicksByDate = make([]DateCount, 0, len(byDate))
	for _, f := range byDate {
		result.ClicksByDate = append(result.ClicksByDate, DateCount{Date: f.Value, Clicks: f.Clicks})
	}
	slices.SortFunc(result.ClicksByDate, func(x, y DateCount) int {
		if x.Date < y.Date {
			return -1
		}
		if x.Date > y.Date {
			return 1
		}
		return 0
	})

	facets := []struct {
		dim  store.Dimension
		dest *[]store.FacetCount
	}{
		{store.DimensionCountry, &result.ClicksByCountry},
		{store.DimensionDevice, &result.ClicksByDevice},
		{store.DimensionBrowser, &result.ClicksByBrowser},
		{store.DimensionOS, &result.ClicksByOS},
	}
	for _, f := range facets {
		counts, err := a.clicks.AggregateBy(ctx, linkID, f.dim, facetLimit, nil)
		if err != nil {
			return result, err
		}
		if counts == nil {
			counts = []store.FacetCount{}
		}
		*f.dest = counts
	}

	referrers, err := a.clicks.AggregateBy(ctx, linkID, store.DimensionReferrer, facetLimit, nil)
	if err != nil {
		return result, err
	}
	result.TopReferrers = make([]ReferrerCount, 0, len(referrers))
	for _, r := range referrers {
		result.TopReferrers = append(result.TopReferrers, ReferrerCount{
			Referrer:     FormatReferrer(r.Value),
			FullReferrer: r.Value,
			Clicks:       r.Clicks,
		})
	}

	recent, err := a.clicks.Recent(ctx, linkID, recentLimit)
	if err != nil {
		return result, err
	}
	result.RecentClicks = make([]RecentClick, 0, len(recent))
	for _, c := range recent {
		result.RecentClicks = append(result.RecentClicks, RecentClick{
			ID:          c.ID,
			IPAddress:   MaskIP(c.IPAddress),
			Country:     valueOr(c.Country, Unknown),
			City:        valueOr(c.City, ""),
			DeviceType:  valueOr(c.DeviceType, Unknown),
			BrowserName: valueOr(c.BrowserName, Unknown),
			OS:          valueOr(c.OS, Unknown),
			Referrer:    valueOr(c.Referrer, Direct),
			ClickedAt:   relativeTime(c.ClickedAt, now),
		})
	}

	return result, nil
}

func (a *Aggregator) computeUser(ctx context.Context, userID uint) (UserStats, error) {
	now := a.now()
	today := startOfDay(now)
	week := startOfWeek(now)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var (
		stats UserStats
		err   error
	)
	if stats.TotalClicks, err = a.clicks.Count(ctx, store.ClickFilter{OwnerID: userID}); err != nil {
		return stats, err
	}
	if stats.TodayClicks, err = a.clicks.Count(ctx, store.ClickFilter{OwnerID: userID, From: &today}); err != nil {
		return stats, err
	}
	if stats.WeekClicks, err = a.clicks.Count(ctx, store.ClickFilter{OwnerID: userID, From: &week}); err != nil {
		return stats, err
	}
	if stats.MonthClicks, err = a.clicks.Count(ctx, store.ClickFilter{OwnerID: userID, From: &month}); err != nil {
		return stats, err
	}
	return stats, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek 周一为一周的第一天
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
