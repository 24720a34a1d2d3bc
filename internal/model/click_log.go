package model

import (
	"time"
)

// ClickLog 点击日志，只追加不更新
type ClickLog struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	ShortLinkID uint      `gorm:"not null;index" json:"short_link_id"`
	IPAddress   string    `gorm:"size:45" json:"ip_address"`
	UserAgent   string    `gorm:"type:text" json:"user_agent"`
	Referrer    *string   `gorm:"size:2048" json:"referrer,omitempty"`
	Country     *string   `gorm:"size:100;index" json:"country,omitempty"`
	City        *string   `gorm:"size:100" json:"city,omitempty"`
	DeviceType  *string   `gorm:"size:20" json:"device_type,omitempty"`
	BrowserName *string   `gorm:"size:50" json:"browser_name,omitempty"`
	OS          *string   `gorm:"column:os;size:50" json:"os,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	ClickedAt   time.Time `gorm:"not null;index" json:"clicked_at"`
}

func (ClickLog) TableName() string {
	return "click_logs"
}
