// Package store 短链接和点击日志的持久化
package store

import (
	"context"
	"iter"
	"time"

	"shortlink-analytics/internal/model"
)

// LinkStore 短链接的权威存储。短码和自定义别名共享同一个唯一性命名空间。
type LinkStore interface {
	// ResolveBySlug 先精确匹配 slug，未命中再匹配 custom_alias（区分大小写）
	ResolveBySlug(ctx context.Context, slug string) (*model.ShortLink, error)

	// FindByID 按主键查询
	FindByID(ctx context.Context, id uint) (*model.ShortLink, error)

	// IncrementClickCount 原子地将 click_count 加一
	IncrementClickCount(ctx context.Context, id uint) error

	// SlugTaken 判断候选值是否已作为 slug、custom_alias 或已退役的短码存在
	SlugTaken(ctx context.Context, candidate string) (bool, error)

	// Create 创建短链接，命名空间冲突时返回 apperr.ErrConflict
	Create(ctx context.Context, link *model.ShortLink) error

	// Update 更新可编辑字段，不会覆盖 click_count
	Update(ctx context.Context, link *model.ShortLink) error

	// Delete 删除短链接及其全部点击日志，短码进入退役表
	Delete(ctx context.Context, id uint) error

	// ListByOwner 按创建时间倒序列出用户符合条件的链接，同时返回不分页的匹配总数
	ListByOwner(ctx context.Context, filter LinkFilter) ([]model.ShortLink, int64, error)

	// ListActiveByOwner 列出用户当前启用且未过期的链接
	ListActiveByOwner(ctx context.Context, ownerID uint, now time.Time) ([]model.ShortLink, error)

	// CountByOwner 用户的链接总数
	CountByOwner(ctx context.Context, ownerID uint) (int64, error)
}

// ClickStore 点击日志，只追加
type ClickStore interface {
	// Append 写入一条点击日志，返回其 ID
	Append(ctx context.Context, click *model.ClickLog) (uint, error)

	// Query 惰性遍历符合条件的点击日志
	Query(ctx context.Context, filter ClickFilter) iter.Seq2[model.ClickLog, error]

	// AggregateBy 按维度分组计数，按数量降序、维度值升序排列。limit <= 0 表示不限制。
	AggregateBy(ctx context.Context, linkID uint, dim Dimension, limit int, from *time.Time) ([]FacetCount, error)

	// Count 标量计数
	Count(ctx context.Context, filter ClickFilter) (int64, error)

	// CountDistinctIPs 独立 IP 数
	CountDistinctIPs(ctx context.Context, linkID uint) (int64, error)

	// Recent 最新的 limit 条点击
	Recent(ctx context.Context, linkID uint, limit int) ([]model.ClickLog, error)
}

// LinkFilter 链接列表条件。Search 对标题做不区分大小写的子串匹配，Category 精确匹配。
type LinkFilter struct {
	OwnerID  uint
	Search   string
	Category string
	Limit    int
	Offset   int
}

// ClickFilter 点击日志查询条件。LinkID 和 OwnerID 至少设置一个。
type ClickFilter struct {
	LinkID      uint
	OwnerID     uint
	From        *time.Time // 包含
	To          *time.Time // 不包含
	NewestFirst bool
	Limit       int
}

// Dimension 聚合维度
type Dimension string

const (
	DimensionDate     Dimension = "date"
	DimensionCountry  Dimension = "country"
	DimensionDevice   Dimension = "device_type"
	DimensionBrowser  Dimension = "browser_name"
	DimensionOS       Dimension = "os"
	DimensionReferrer Dimension = "referrer"
)

// FacetCount 单个维度值的点击数
type FacetCount struct {
	Value  string `gorm:"column:facet" json:"value"`
	Clicks int64  `gorm:"column:clicks" json:"clicks"`
}
