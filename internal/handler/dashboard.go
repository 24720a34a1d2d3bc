package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shortlink-analytics/internal/analytics"
	"shortlink-analytics/internal/apperr"
	"shortlink-analytics/internal/middleware"
)

// DashboardHandler 用户维度的汇总统计
type DashboardHandler struct {
	stats  *analytics.Aggregator
	logger *zap.Logger
}

func NewDashboardHandler(stats *analytics.Aggregator, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{stats: stats, logger: logger}
}

// GetDashboard godoc
// @Summary 当前用户的仪表盘
// @Tags Dashboard
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {object} analytics.Dashboard
// @Router /api/dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	h.render(c, principal.UserID)
}

// GetUserDashboard 管理员查看任意用户的仪表盘
func (h *DashboardHandler) GetUserDashboard(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, h.logger, apperr.NotFound("用户不存在"))
		return
	}
	h.render(c, uint(id))
}

func (h *DashboardHandler) render(c *gin.Context, userID uint) {
	dashboard, err := h.stats.Dashboard(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
