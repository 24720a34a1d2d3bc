package model

import (
	"time"
)

// ShortLink 短链接模型
type ShortLink struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Slug        string     `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	CustomAlias *string    `gorm:"size:100;uniqueIndex" json:"custom_alias,omitempty"`
	TargetURL   string     `gorm:"size:2048;not null" json:"target_url"`
	Title       string     `gorm:"size:255" json:"title,omitempty"`
	Description string     `gorm:"size:1000" json:"description,omitempty"`
	Category    string     `gorm:"size:50" json:"category,omitempty"`
	ClickCount  int64      `gorm:"not null;default:0" json:"click_count"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// 删除短链接时级联删除点击日志
	ClickLogs []ClickLog `gorm:"foreignKey:ShortLinkID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (ShortLink) TableName() string {
	return "short_links"
}

// IsExpiredAt 判断链接在 now 时刻是否已过期
func (l *ShortLink) IsExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// IsScheduledAt 判断链接是否设置了尚未到达的生效时间。
// 重定向路径不检查此状态。
func (l *ShortLink) IsScheduledAt(now time.Time) bool {
	return l.ScheduledAt != nil && l.ScheduledAt.After(now)
}
