package model

import "time"

// RetiredSlug 已删除链接占用过的短码和别名，保证短码不会被再次分配
type RetiredSlug struct {
	Slug      string    `gorm:"primarykey;size:100" json:"slug"`
	RetiredAt time.Time `gorm:"not null" json:"retired_at"`
}

func (RetiredSlug) TableName() string {
	return "retired_slugs"
}
