// Package linkstate 判断短链接在某一时刻是否可以重定向
package linkstate

import (
	"time"

	"shortlink-analytics/internal/model"
)

// State 链接的重定向资格
type State int

const (
	Eligible State = iota
	Expired
	Inactive
)

func (s State) String() string {
	switch s {
	case Eligible:
		return "eligible"
	case Expired:
		return "expired"
	case Inactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Evaluate 按优先级判断：停用 > 过期 > 可用。
// scheduled_at 不参与判断。
func Evaluate(link *model.ShortLink, now time.Time) State {
	if !link.IsActive {
		return Inactive
	}
	if link.IsExpiredAt(now) {
		return Expired
	}
	return Eligible
}
