package analytics

import (
	"time"

	"shortlink-analytics/internal/store"
)

// LinkAnalytics 单个链接在某个时间窗口内的分析快照
type LinkAnalytics struct {
	LinkID          uint               `json:"link_id"`
	WindowDays      int                `json:"window_days"`
	TotalClicks     int64              `json:"total_clicks"`
	UniqueIPs       int64              `json:"unique_ips"`
	TodayClicks     int64              `json:"today_clicks"`
	WeekClicks      int64              `json:"week_clicks"`
	MonthClicks     int64              `json:"month_clicks"`
	ClicksByDate    []DateCount        `json:"clicks_by_date"`
	ClicksByCountry []store.FacetCount `json:"clicks_by_country"`
	ClicksByDevice  []store.FacetCount `json:"clicks_by_device"`
	ClicksByBrowser []store.FacetCount `json:"clicks_by_browser"`
	ClicksByOS      []store.FacetCount `json:"clicks_by_os"`
	TopReferrers    []ReferrerCount    `json:"top_referrers"`
	RecentClicks    []RecentClick      `json:"recent_clicks"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// DateCount 某一天（UTC）的点击数
type DateCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// ReferrerCount 来源统计，Referrer 为展示用的主机名
type ReferrerCount struct {
	Referrer     string `json:"referrer"`
	FullReferrer string `json:"full_referrer"`
	Clicks       int64  `json:"clicks"`
}

// RecentClick 最近点击，IP 已脱敏
type RecentClick struct {
	ID          uint   `json:"id"`
	IPAddress   string `json:"ip_address"`
	Country     string `json:"country"`
	City        string `json:"city,omitempty"`
	DeviceType  string `json:"device_type"`
	BrowserName string `json:"browser_name"`
	OS          string `json:"os"`
	Referrer    string `json:"referrer"`
	ClickedAt   string `json:"clicked_at"`
}

// UserStats 用户所有链接的汇总点击
type UserStats struct {
	TotalClicks int64 `json:"total_clicks"`
	TodayClicks int64 `json:"today_clicks"`
	WeekClicks  int64 `json:"week_clicks"`
	MonthClicks int64 `json:"month_clicks"`
}

// Dashboard 仪表盘数据
type Dashboard struct {
	TotalLinks int64 `json:"total_links"`
	UserStats
}
