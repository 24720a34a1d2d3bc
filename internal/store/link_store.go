package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"shortlink-analytics/internal/apperr"
	"shortlink-analytics/internal/model"
)

// GormLinkStore 基于 gorm 的 LinkStore 实现
type GormLinkStore struct {
	db *gorm.DB
}

// NewLinkStore 创建 LinkStore
func NewLinkStore(db *gorm.DB) *GormLinkStore {
	return &GormLinkStore{db: db}
}

// ResolveBySlug 先查 slug，再查 custom_alias。
// 数据库排序规则可能不区分大小写，所以在内存中再做一次精确比较。
func (s *GormLinkStore) ResolveBySlug(ctx context.Context, slug string) (*model.ShortLink, error) {
	var link model.ShortLink
	err := s.db.WithContext(ctx).Where("slug = ?", slug).Take(&link).Error
	if err == nil && link.Slug == slug {
		return &link, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, translate(err, "按短码查询")
	}

	link = model.ShortLink{}
	err = s.db.WithContext(ctx).Where("custom_alias = ?", slug).Take(&link).Error
	if err == nil && link.CustomAlias != nil && *link.CustomAlias == slug {
		return &link, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, translate(err, "按别名查询")
	}
	return nil, apperr.NotFound("短链接不存在")
}

func (s *GormLinkStore) FindByID(ctx context.Context, id uint) (*model.ShortLink, error) {
	var link model.ShortLink
	if err := s.db.WithContext(ctx).Take(&link, id).Error; err != nil {
		return nil, translate(err, "按 ID 查询链接")
	}
	return &link, nil
}

// IncrementClickCount 使用 click_count = click_count + 1，不做先读后写
func (s *GormLinkStore) IncrementClickCount(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Model(&model.ShortLink{}).
		Where("id = ?", id).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
	if result.Error != nil {
		return translate(result.Error, "增加点击数")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("短链接不存在")
	}
	return nil
}

func (s *GormLinkStore) SlugTaken(ctx context.Context, candidate string) (bool, error) {
	taken, err := slugTaken(s.db.WithContext(ctx), candidate)
	if err != nil {
		return false, translate(err, "检查短码")
	}
	return taken, nil
}

func slugTaken(tx *gorm.DB, candidate string) (bool, error) {
	var count int64
	if err := tx.Model(&model.ShortLink{}).
		Where("slug = ? OR custom_alias = ?", candidate, candidate).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := tx.Model(&model.RetiredSlug{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create 在事务中检查命名空间后插入。并发插入同一短码时由唯一索引兜底。
func (s *GormLinkStore) Create(ctx context.Context, link *model.ShortLink) error {
	candidates := []string{link.Slug}
	if link.CustomAlias != nil && *link.CustomAlias != link.Slug {
		candidates = append(candidates, *link.CustomAlias)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range candidates {
			taken, err := slugTaken(tx, c)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict("短码或别名已被占用: " + c)
			}
		}
		return tx.Omit("ClickLogs").Create(link).Error
	})
	return translate(err, "创建链接")
}

// Update 只更新可编辑字段
func (s *GormLinkStore) Update(ctx context.Context, link *model.ShortLink) error {
	result := s.db.WithContext(ctx).
		Model(link).
		Select("TargetURL", "Title", "Description", "Category", "IsActive", "ScheduledAt", "ExpiresAt", "UpdatedAt").
		Updates(link)
	if result.Error != nil {
		return translate(result.Error, "更新链接")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("短链接不存在")
	}
	return nil
}

// Delete 显式删除点击日志，不依赖 SQLite 的外键开关
func (s *GormLinkStore) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link model.ShortLink
		if err := tx.Take(&link, id).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		retired := []model.RetiredSlug{{Slug: link.Slug, RetiredAt: now}}
		if link.CustomAlias != nil && *link.CustomAlias != link.Slug {
			retired = append(retired, model.RetiredSlug{Slug: *link.CustomAlias, RetiredAt: now})
		}
		if err := tx.Create(&retired).Error; err != nil {
			return err
		}
		if err := tx.Where("short_link_id = ?", id).Delete(&model.ClickLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ShortLink{}, id).Error
	})
	return translate(err, "删除链接")
}

func (s *GormLinkStore) ListByOwner(ctx context.Context, f LinkFilter) ([]model.ShortLink, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.ShortLink{}).Scopes(linkFilterScope(f)).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "统计链接")
	}

	var links []model.ShortLink
	q := s.db.WithContext(ctx).Scopes(linkFilterScope(f)).Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&links).Error; err != nil {
		return nil, 0, translate(err, "列出链接")
	}
	return links, total, nil
}

func linkFilterScope(f LinkFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", f.OwnerID)
		if search := strings.TrimSpace(f.Search); search != "" {
			db = db.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
		if f.Category != "" {
			db = db.Where("category = ?", f.Category)
		}
		return db
	}
}

func (s *GormLinkStore) ListActiveByOwner(ctx context.Context, ownerID uint, now time.Time) ([]model.ShortLink, error) {
	var links []model.ShortLink
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", ownerID, true).
		Where("expires_at IS NULL OR expires_at > ?", now.UTC()).
		Order("created_at DESC").Order("id DESC").
		Find(&links).Error
	if err != nil {
		return nil, translate(err, "列出有效链接")
	}
	return links, nil
}

func (s *GormLinkStore) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.ShortLink{}).Where("user_id = ?", ownerID).Count(&count).Error; err != nil {
		return 0, translate(err, "统计链接")
	}
	return count, nil
}

var _ LinkStore = (*GormLinkStore)(nil)
