package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shortlink-analytics/internal/analytics"
	"shortlink-analytics/internal/apperr"
	"shortlink-analytics/internal/authz"
	"shortlink-analytics/internal/cache"
	"shortlink-analytics/internal/linkstate"
	"shortlink-analytics/internal/middleware"
	"shortlink-analytics/internal/model"
	"shortlink-analytics/internal/redirect"
	"shortlink-analytics/internal/shortcode"
	"shortlink-analytics/internal/store"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	defaultWindowDays = 30
	createAttempts    = 3
)

// reservedAliases 与固定路由同名的别名会被路由遮蔽
var reservedAliases = map[string]bool{
	"api":     true,
	"auth":    true,
	"health":  true,
	"metrics": true,
}

// LinkHandler 链接管理和分析查询
type LinkHandler struct {
	links     store.LinkStore
	generator *shortcode.Generator
	stats     *analytics.Aggregator
	cache     *cache.AnalyticsCache
	policy    authz.Policy
	baseURL   string
	logger    *zap.Logger
}

// NewLinkHandler 创建链接处理器
func NewLinkHandler(
	links store.LinkStore,
	generator *shortcode.Generator,
	stats *analytics.Aggregator,
	c *cache.AnalyticsCache,
	policy authz.Policy,
	baseURL string,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		links:     links,
		generator: generator,
		stats:     stats,
		cache:     c,
		policy:    policy,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// CreateLinkRequest 创建短链接请求
type CreateLinkRequest struct {
	TargetURL   string     `json:"target_url" binding:"required,url,max=2048" example:"https://github.com/gin-gonic/gin"`
	CustomAlias string     `json:"custom_alias" binding:"omitempty,max=100" example:"gin"`
	Title       string     `json:"title" binding:"max=255"`
	Description string     `json:"description" binding:"max=1000"`
	Category    string     `json:"category" binding:"max=50"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// UpdateLinkRequest 更新请求，未出现的字段保持不变
type UpdateLinkRequest struct {
	TargetURL   *string    `json:"target_url" binding:"omitempty,url,max=2048"`
	Title       *string    `json:"title" binding:"omitempty,max=255"`
	Description *string    `json:"description" binding:"omitempty,max=1000"`
	Category    *string    `json:"category" binding:"omitempty,max=50"`
	IsActive    *bool      `json:"is_active"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	// ClearExpiry 为 true 时移除过期时间
	ClearExpiry bool `json:"clear_expiry"`
}

// LinkResponse 链接及其短地址
type LinkResponse struct {
	*model.ShortLink
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

// LinkDetailResponse 链接详情和分析数据
type LinkDetailResponse struct {
	Link      LinkResponse            `json:"link"`
	Analytics analytics.LinkAnalytics `json:"analytics"`
}

// ListLinksResponse 分页的链接列表
type ListLinksResponse struct {
	Links    []LinkResponse `json:"links"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func (h *LinkHandler) toResponse(link *model.ShortLink, now time.Time) LinkResponse {
	return LinkResponse{
		ShortLink: link,
		ShortURL:  h.baseURL + "/" + link.Slug,
		Status:    linkstate.Evaluate(link, now).String(),
	}
}

// CreateLink godoc
// @Summary 创建短链接
// @Tags ShortLink
// @Security ApiKeyAuth
// @Accept  json
// @Produce  json
// @Param   link  body   CreateLinkRequest  true  "链接信息"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} gin.H "请求无效"
// @Failure 409 {object} gin.H "别名已被占用"
// @Router /api/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}
	if err := validateTarget(req.TargetURL); err != nil {
		respondError(c, h.logger, err)
		return
	}

	link := &model.ShortLink{
		UserID:      principal.UserID,
		TargetURL:   req.TargetURL,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		IsActive:    true,
		ScheduledAt: utcPtr(req.ScheduledAt),
		ExpiresAt:   utcPtr(req.ExpiresAt),
	}
	if req.CustomAlias != "" {
		if !redirect.ValidSlug(req.CustomAlias) {
			respondError(c, h.logger, apperr.Validation("自定义别名只能包含字母、数字、下划线和连字符"))
			return
		}
		if reservedAliases[strings.ToLower(req.CustomAlias)] {
			respondError(c, h.logger, apperr.Validation("自定义别名是保留字"))
			return
		}
		alias := req.CustomAlias
		link.CustomAlias = &alias
	}

	ctx := c.Request.Context()
	var err error
	// 预生成的短码可能在取出后被别名抢占，冲突时换一个重试
	for attempt := 0; attempt < createAttempts; attempt++ {
		link.Slug, err = h.generator.Next(ctx)
		if err != nil {
			break
		}
		err = h.links.Create(ctx, link)
		if err == nil || !errors.Is(err, apperr.ErrConflict) || link.CustomAlias != nil {
			break
		}
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("短链接已创建", zap.Uint("link_id", link.ID), zap.String("slug", link.Slug), zap.Uint("user_id", link.UserID))
	c.JSON(http.StatusCreated, h.toResponse(link, time.Now()))
}

// ListLinks godoc
// @Summary 当前用户的链接列表
// @Tags ShortLink
// @Security ApiKeyAuth
// @Produce  json
// @Param   page       query  int   false  "页码"
// @Param   page_size  query  int   false  "每页数量"
// @Param   search     query  string  false  "按标题搜索"
// @Param   category   query  string  false  "按分类筛选"
// @Param   active     query  bool  false  "只返回可跳转的链接"
// @Success 200 {object} ListLinksResponse
// @Router /api/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	ctx := c.Request.Context()
	now := time.Now()

	if active, _ := strconv.ParseBool(c.Query("active")); active {
		links, err := h.links.ListActiveByOwner(ctx, principal.UserID, now)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, ListLinksResponse{
			Links:    h.toResponses(links, now),
			Total:    int64(len(links)),
			Page:     1,
			PageSize: len(links),
		})
		return
	}

	page := queryInt(c, "page", 1, 1, 1<<20)
	pageSize := queryInt(c, "page_size", defaultPageSize, 1, maxPageSize)

	links, total, err := h.links.ListByOwner(ctx, store.LinkFilter{
		OwnerID:  principal.UserID,
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ListLinksResponse{
		Links:    h.toResponses(links, now),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetLink godoc
// @Summary 链接详情和分析数据
// @Tags ShortLink
// @Security ApiKeyAuth
// @Produce  json
// @Param   id    path   int  true   "链接 ID"
// @Param   days  query  int  false  "统计窗口，7 或 30"
// @Success 200 {object} LinkDetailResponse
// @Failure 403 {object} gin.H "无权查看"
// @Failure 404 {object} gin.H "链接不存在"
// @Router /api/links/{id} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	link, ok := h.loadLink(c, h.policy.CanView)
	if !ok {
		return
	}

	days := queryInt(c, "days", defaultWindowDays, 0, 366)
	if !analytics.ValidWindow(days) {
		respondError(c, h.logger, apperr.Validation("days 只支持 7 或 30"))
		return
	}

	stats, err := h.stats.ComputeLinkAnalytics(c.Request.Context(), link, days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, LinkDetailResponse{Link: h.toResponse(link, time.Now()), Analytics: stats})
}

// UpdateLink godoc
// @Summary 更新短链接
// @Tags ShortLink
// @Security ApiKeyAuth
// @Accept  json
// @Produce  json
// @Param   id    path  int                true  "链接 ID"
// @Param   link  body  UpdateLinkRequest  true  "要修改的字段"
// @Success 200 {object} LinkResponse
// @Router /api/links/{id} [put]
func (h *LinkHandler) UpdateLink(c *gin.Context) {
	link, ok := h.loadLink(c, h.policy.CanManage)
	if !ok {
		return
	}

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}
	if req.TargetURL != nil {
		if err := validateTarget(*req.TargetURL); err != nil {
			respondError(c, h.logger, err)
			return
		}
		link.TargetURL = *req.TargetURL
	}
	if req.Title != nil {
		link.Title = *req.Title
	}
	if req.Description != nil {
		link.Description = *req.Description
	}
	if req.Category != nil {
		link.Category = *req.Category
	}
	if req.IsActive != nil {
		link.IsActive = *req.IsActive
	}
	if req.ScheduledAt != nil {
		link.ScheduledAt = utcPtr(req.ScheduledAt)
	}
	if req.ExpiresAt != nil {
		link.ExpiresAt = utcPtr(req.ExpiresAt)
	}
	if req.ClearExpiry {
		link.ExpiresAt = nil
	}

	ctx := c.Request.Context()
	if err := h.links.Update(ctx, link); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.cache.InvalidateLink(ctx, link.ID)

	c.JSON(http.StatusOK, h.toResponse(link, time.Now()))
}

// DeleteLink godoc
// @Summary 删除短链接及其点击记录
// @Tags ShortLink
// @Security ApiKeyAuth
// @Param   id  path  int  true  "链接 ID"
// @Success 200 {object} gin.H
// @Router /api/links/{id} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	link, ok := h.loadLink(c, h.policy.CanManage)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.links.Delete(ctx, link.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.cache.InvalidateLink(ctx, link.ID)
	h.cache.InvalidateUser(ctx, link.UserID)

	h.logger.Info("短链接已删除", zap.Uint("link_id", link.ID), zap.String("slug", link.Slug))
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// loadLink 读取路径中的链接并检查权限，失败时已写入响应
func (h *LinkHandler) loadLink(c *gin.Context, allowed func(authz.Principal, *model.ShortLink) bool) (*model.ShortLink, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, h.logger, apperr.NotFound("链接不存在"))
		return nil, false
	}

	link, err := h.links.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}

	principal, _ := middleware.PrincipalFrom(c)
	if !allowed(principal, link) {
		respondError(c, h.logger, apperr.Forbidden("无权访问该链接"))
		return nil, false
	}
	return link, true
}

func (h *LinkHandler) toResponses(links []model.ShortLink, now time.Time) []LinkResponse {
	out := make([]LinkResponse, len(links))
	for i := range links {
		out[i] = h.toResponse(&links[i], now)
	}
	return out
}

func validateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperr.Validation("目标地址必须是 http 或 https 的绝对 URL")
	}
	return nil
}

func queryInt(c *gin.Context, key string, fallback, lo, hi int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return min(max(n, lo), hi)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
