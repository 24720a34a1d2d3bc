// Package metrics Prometheus 指标。所有方法都允许 nil 接收者，未启用指标时直接忽略。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 重定向结果
const (
	OutcomeRedirected = "redirected"
	OutcomeNotFound   = "not_found"
	OutcomeGone       = "gone"
	OutcomeError      = "error"
)

// 缓存结果
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics 服务指标集合
type Metrics struct {
	redirects        *prometheus.CounterVec
	redirectDuration prometheus.Histogram
	cacheRequests    *prometheus.CounterVec
	invalidations    prometheus.Counter
}

// New 在给定的 Registerer 上注册指标
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "redirects_total",
			Help:      "Redirect attempts by outcome.",
		}, []string{"outcome"}),
		redirectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shortlink",
			Name:      "redirect_duration_seconds",
			Help:      "Latency of the redirect path.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "analytics_cache_requests_total",
			Help:      "Analytics cache lookups by result.",
		}, []string{"result"}),
		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "analytics_cache_invalidations_total",
			Help:      "Analytics cache keys invalidated.",
		}),
	}
}

// ObserveRedirect 记录一次重定向
func (m *Metrics) ObserveRedirect(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(outcome).Inc()
	m.redirectDuration.Observe(elapsed.Seconds())
}

// CacheResult 记录一次缓存查询
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// Invalidated 记录被失效的键数量
func (m *Metrics) Invalidated(n int) {
	if m == nil {
		return
	}
	m.invalidations.Add(float64(n))
}
