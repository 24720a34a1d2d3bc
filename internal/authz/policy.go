// Package authz 分析读取和链接管理的权限判断
package authz

import (
	"shortlink-analytics/internal/model"
)

// Principal 已认证的调用者，由认证中间件从 JWT 中解析
type Principal struct {
	UserID   uint
	Username string
	Role     string
}

// IsAdmin 是否为管理员
func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// Policy 权限策略
type Policy interface {
	CanView(p Principal, link *model.ShortLink) bool
	CanManage(p Principal, link *model.ShortLink) bool
}

// OwnerPolicy 所有者或管理员可以查看和管理
type OwnerPolicy struct{}

func (OwnerPolicy) CanView(p Principal, link *model.ShortLink) bool {
	return p.IsAdmin() || (p.UserID != 0 && link.UserID == p.UserID)
}

func (OwnerPolicy) CanManage(p Principal, link *model.ShortLink) bool {
	return p.IsAdmin() || (p.UserID != 0 && link.UserID == p.UserID)
}
