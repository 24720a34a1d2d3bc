package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shortlink-analytics/internal/redirect"
)

// RedirectHandler 公开的短链接跳转入口
type RedirectHandler struct {
	service *redirect.Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedirectHandler 创建跳转处理器，timeout 限制单次跳转的总耗时
func NewRedirectHandler(service *redirect.Service, timeout time.Duration, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{service: service, timeout: timeout, logger: logger}
}

// Redirect godoc
// @Summary 短链接跳转
// @Tags Redirect
// @Param   slug  path  string  true  "短码或自定义别名"
// @Success 302
// @Failure 404 {object} gin.H "短链接不存在"
// @Failure 410 {object} gin.H "短链接已过期或已停用"
// @Failure 503 {object} gin.H "服务暂时不可用"
// @Router /{slug} [get]
func (h *RedirectHandler) Redirect(c *gin.Context) {
	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	target, err := h.service.Redirect(ctx, c.Param("slug"), redirect.Visit{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, target)
}
