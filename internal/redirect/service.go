// Package redirect 短链接跳转的核心流程：解析、判断、记录、计数、失效缓存。
package redirect

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"

	"shortlink-analytics/internal/apperr"
	"shortlink-analytics/internal/cache"
	"shortlink-analytics/internal/geo"
	"shortlink-analytics/internal/linkstate"
	"shortlink-analytics/internal/metrics"
	"shortlink-analytics/internal/model"
	"shortlink-analytics/internal/store"
	"shortlink-analytics/internal/useragent"
)

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)

// ValidSlug 判断是否是合法的短码格式
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Visit 一次访问的请求信息
type Visit struct {
	IP        string
	UserAgent string
	Referrer  string
}

// Service 跳转服务
type Service struct {
	links   store.LinkStore
	clicks  store.ClickStore
	cache   *cache.AnalyticsCache
	geo     geo.Lookup
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option 可选配置
type Option func(*Service)

// WithGeo 设置地理位置查询，默认全部未知
func WithGeo(lookup geo.Lookup) Option {
	return func(s *Service) { s.geo = lookup }
}

// WithMetrics 设置监控指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock 设置时间来源
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 创建跳转服务
func NewService(links store.LinkStore, clicks store.ClickStore, c *cache.AnalyticsCache, opts ...Option) *Service {
	s := &Service{
		links:  links,
		clicks: clicks,
		cache:  c,
		geo:    geo.Unknown{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("redirect")
	return s
}

// Redirect 返回目标地址。
// 短码不存在返回 apperr.ErrNotFound，链接停用或过期返回 apperr.ErrGone，
// 存储故障原样返回（apperr.ErrTransient）。只有可用的链接才会记录点击。
func (s *Service) Redirect(ctx context.Context, slug string, visit Visit) (string, error) {
	start := time.Now()
	target, err := s.redirect(ctx, slug, visit)
	s.metrics.ObserveRedirect(outcome(err), time.Since(start))
	return target, err
}

func (s *Service) redirect(ctx context.Context, slug string, visit Visit) (string, error) {
	if !ValidSlug(slug) {
		return "", apperr.NotFound("短链接不存在")
	}

	link, err := s.links.ResolveBySlug(ctx, slug)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	if state := linkstate.Evaluate(link, now); state != linkstate.Eligible {
		return "", apperr.Gone("短链接已" + stateText(state))
	}

	click := s.buildClick(ctx, link, visit, now)
	if _, err := s.clicks.Append(ctx, click); err != nil {
		s.logger.Error("记录点击失败", zap.Uint("link_id", link.ID), zap.Error(err))
		return "", err
	}

	if err := s.links.IncrementClickCount(ctx, link.ID); err != nil {
		s.logger.Error("更新点击数失败", zap.Uint("link_id", link.ID), zap.Error(err))
		return "", err
	}

	// 跳转路径只清除链接的缓存，用户统计等待过期
	if s.cache != nil {
		s.cache.InvalidateLinkAsync(link.ID)
	}

	return link.TargetURL, nil
}

func (s *Service) buildClick(ctx context.Context, link *model.ShortLink, visit Visit, now time.Time) *model.ClickLog {
	ua := useragent.Classify(visit.UserAgent)
	click := &model.ClickLog{
		ShortLinkID: link.ID,
		IPAddress:   visit.IP,
		UserAgent:   visit.UserAgent,
		Referrer:    optional(visit.Referrer),
		DeviceType:  optional(ua.DeviceType),
		BrowserName: optional(ua.BrowserName),
		OS:          optional(ua.OS),
		ClickedAt:   now,
	}

	loc, err := s.geo.Lookup(ctx, visit.IP)
	if err != nil {
		s.logger.Debug("地理位置查询失败", zap.String("ip", visit.IP), zap.Error(err))
		return click
	}
	click.Country = optional(loc.Country)
	click.City = optional(loc.City)
	click.Latitude = loc.Latitude
	click.Longitude = loc.Longitude
	return click
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stateText(state linkstate.State) string {
	if state == linkstate.Inactive {
		return "停用"
	}
	return "过期"
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeRedirected
	case errors.Is(err, apperr.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, apperr.ErrGone):
		return metrics.OutcomeGone
	default:
		return metrics.OutcomeError
	}
}
