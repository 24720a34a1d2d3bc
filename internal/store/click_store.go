package store

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"gorm.io/gorm"

	"shortlink-analytics/internal/apperr"
	"shortlink-analytics/internal/model"
)

// 维度到列名的映射，只有这些列会被拼进 SQL
var dimensionColumns = map[Dimension]string{
	DimensionCountry:  "country",
	DimensionDevice:   "device_type",
	DimensionBrowser:  "browser_name",
	DimensionOS:       "os",
	DimensionReferrer: "referrer",
}

const dateLayout = "2006-01-02"

// GormClickStore 基于 gorm 的 ClickStore 实现
type GormClickStore struct {
	db *gorm.DB
}

// NewClickStore 创建 ClickStore
func NewClickStore(db *gorm.DB) *GormClickStore {
	return &GormClickStore{db: db}
}

func (s *GormClickStore) Append(ctx context.Context, click *model.ClickLog) (uint, error) {
	if click.ShortLinkID == 0 {
		return 0, apperr.Validation("点击日志缺少 short_link_id")
	}
	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(click).Error; err != nil {
		return 0, translate(err, "写入点击日志")
	}
	return click.ID, nil
}

// scoped 根据过滤条件构造查询
func (s *GormClickStore) scoped(ctx context.Context, f ClickFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&model.ClickLog{})
	if f.LinkID != 0 {
		q = q.Where("short_link_id = ?", f.LinkID)
	}
	if f.OwnerID != 0 {
		owned := s.db.Model(&model.ShortLink{}).Select("id").Where("user_id = ?", f.OwnerID)
		q = q.Where("short_link_id IN (?)", owned)
	}
	if f.From != nil {
		q = q.Where("clicked_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("clicked_at < ?", f.To.UTC())
	}
	return q
}

func (s *GormClickStore) Query(ctx context.Context, f ClickFilter) iter.Seq2[model.ClickLog, error] {
	return func(yield func(model.ClickLog, error) bool) {
		if f.LinkID == 0 && f.OwnerID == 0 {
			yield(model.ClickLog{}, apperr.Validation("查询点击日志需要 link 或 owner"))
			return
		}

		q := s.scoped(ctx, f)
		if f.NewestFirst {
			q = q.Order("clicked_at DESC").Order("id DESC")
		} else {
			q = q.Order("clicked_at ASC").Order("id ASC")
		}
		if f.Limit > 0 {
			q = q.Limit(f.Limit)
		}

		rows, err := q.Rows()
		if err != nil {
			yield(model.ClickLog{}, translate(err, "查询点击日志"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var click model.ClickLog
			if err := s.db.ScanRows(rows, &click); err != nil {
				yield(model.ClickLog{}, translate(err, "读取点击日志"))
				return
			}
			if !yield(click, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.ClickLog{}, translate(err, "遍历点击日志"))
		}
	}
}

func (s *GormClickStore) AggregateBy(ctx context.Context, linkID uint, dim Dimension, limit int, from *time.Time) ([]FacetCount, error) {
	if dim == DimensionDate {
		return s.aggregateByDate(ctx, linkID, limit, from)
	}

	column, ok := dimensionColumns[dim]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("不支持的聚合维度: %s", dim))
	}

	q := s.scoped(ctx, ClickFilter{LinkID: linkID, From: from}).
		Select(column+" AS facet, COUNT(*) AS clicks").
		Where(column + " IS NOT NULL").
		Where(column + " <> ''").
		Group(column).
		Order("clicks DESC").
		Order(column + " ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var facets []FacetCount
	if err := q.Scan(&facets).Error; err != nil {
		return nil, translate(err, "聚合点击日志")
	}
	return facets, nil
}

// aggregateByDate 在 Go 中按 UTC 日期分桶，避免不同数据库日期函数的差异
func (s *GormClickStore) aggregateByDate(ctx context.Context, linkID uint, limit int, from *time.Time) ([]FacetCount, error) {
	buckets := make(map[string]int64)
	for click, err := range s.Query(ctx, ClickFilter{LinkID: linkID, From: from}) {
		if err != nil {
			return nil, err
		}
		buckets[click.ClickedAt.UTC().Format(dateLayout)]++
	}

	facets := make([]FacetCount, 0, len(buckets))
	for date, clicks := range buckets {
		facets = append(facets, FacetCount{Value: date, Clicks: clicks})
	}
	SortFacets(facets)
	if limit > 0 && len(facets) > limit {
		facets = facets[:limit]
	}
	return facets, nil
}

// SortFacets 按数量降序、值升序排序
func SortFacets(facets []FacetCount) {
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].Clicks != facets[j].Clicks {
			return facets[i].Clicks > facets[j].Clicks
		}
		return facets[i].Value < facets[j].Value
	})
}

func (s *GormClickStore) Count(ctx context.Context, f ClickFilter) (int64, error) {
	if f.LinkID == 0 && f.OwnerID == 0 {
		return 0, apperr.Validation("统计点击需要 link 或 owner")
	}
	var count int64
	if err := s.scoped(ctx, f).Count(&count).Error; err != nil {
		return 0, translate(err, "统计点击")
	}
	return count, nil
}

func (s *GormClickStore) CountDistinctIPs(ctx context.Context, linkID uint) (int64, error) {
	var count int64
	err := s.scoped(ctx, ClickFilter{LinkID: linkID}).
		Where("ip_address <> ''").
		Distinct("ip_address").
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "统计独立 IP")
	}
	return count, nil
}

func (s *GormClickStore) Recent(ctx context.Context, linkID uint, limit int) ([]model.ClickLog, error) {
	var clicks []model.ClickLog
	err := s.scoped(ctx, ClickFilter{LinkID: linkID}).
		Order("clicked_at DESC").Order("id DESC").
		Limit(limit).
		Find(&clicks).Error
	if err != nil {
		return nil, translate(err, "查询最近点击")
	}
	return clicks, nil
}

var _ ClickStore = (*GormClickStore)(nil)
