package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shortlink-analytics/internal/metrics"
)

// LinkWindows 链接分析固定的时间窗口（天）
var LinkWindows = []int{7, 30}

// LinkKey 链接分析缓存键
func LinkKey(linkID uint, days int) string {
	return fmt.Sprintf("analytics:link:%d:days:%d", linkID, days)
}

// UserKey 用户统计缓存键
func UserKey(userID uint) string {
	return fmt.Sprintf("stats:user:%d", userID)
}

// AnalyticsCache 在 Store 之上提供单飞计算和失效。
// 缓存故障只记录日志，调用方退化为直接计算。
type AnalyticsCache struct {
	store             Store
	group             singleflight.Group
	logger            *zap.Logger
	metrics           *metrics.Metrics
	invalidateTimeout time.Duration
	computeTimeout    time.Duration
	pending           sync.WaitGroup

	// 每次失效递增，计算期间代数变化则结果不写回
	mu          sync.Mutex
	generations map[string]uint64
}

// NewAnalyticsCache 创建分析缓存。store 为 nil 时每次都直接计算。
func NewAnalyticsCache(store Store, logger *zap.Logger, m *metrics.Metrics) *AnalyticsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsCache{
		store:             store,
		logger:            logger.Named("analytics_cache"),
		metrics:           m,
		invalidateTimeout: 2 * time.Second,
		computeTimeout:    10 * time.Second,
		generations:       make(map[string]uint64),
	}
}

// GetOrCompute 命中时解码缓存值；未命中时同一个键的并发调用只执行一次 compute，
// 结果序列化后写回缓存并由所有等待者各自解码。
func GetOrCompute[T any](ctx context.Context, c *AnalyticsCache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var result T

	if c.store != nil {
		data, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &result); err == nil {
				c.metrics.CacheResult(metrics.CacheHit)
				return result, nil
			}
			c.logger.Warn("缓存值无法解码，重新计算", zap.String("key", key))
			c.metrics.CacheResult(metrics.CacheError)
		case errors.Is(err, ErrMiss):
			c.metrics.CacheResult(metrics.CacheMiss)
		default:
			c.logger.Warn("读取缓存失败，直接计算", zap.String("key", key), zap.Error(err))
			c.metrics.CacheResult(metrics.CacheError)
		}
	}

	data, err, _ := c.group.Do(key, func() (any, error) {
		// 共享计算不随首个调用方取消
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()

		gen := c.generation(key)
		value, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("序列化分析结果失败: %w", err)
		}
		if c.store != nil {
			c.storeIfCurrent(computeCtx, key, gen, encoded, ttl)
		}
		return encoded, nil
	})
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		return result, fmt.Errorf("解码分析结果失败: %w", err)
	}
	return result, nil
}

func (c *AnalyticsCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// storeIfCurrent 写回计算结果。计算期间键被失效过则放弃写入；
// 写入后再核对一次，失效恰好发生在写入前后时删掉刚写的旧快照。
func (c *AnalyticsCache) storeIfCurrent(ctx context.Context, key string, gen uint64, encoded []byte, ttl time.Duration) {
	if c.generation(key) != gen {
		c.logger.Debug("计算期间缓存已失效，跳过写回", zap.String("key", key))
		return
	}
	if err := c.store.Set(ctx, key, encoded, ttl); err != nil {
		c.logger.Warn("写入缓存失败", zap.String("key", key), zap.Error(err))
		return
	}
	if c.generation(key) != gen {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("撤回过期快照失败", zap.String("key", key), zap.Error(err))
		}
	}
}

// Invalidate 删除指定键，同时让正在进行的同键计算不再被后来者复用，
// 其结果也不会写回缓存。错误只记录日志，不返回给调用方。
func (c *AnalyticsCache) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	for _, key := range keys {
		c.generations[key]++
	}
	c.mu.Unlock()
	for _, key := range keys {
		c.group.Forget(key)
	}
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Warn("缓存失效失败", zap.Strings("keys", keys), zap.Error(err))
		return
	}
	c.metrics.Invalidated(len(keys))
}

// InvalidateLink 清除链接所有固定窗口的缓存
func (c *AnalyticsCache) InvalidateLink(ctx context.Context, linkID uint) {
	c.Invalidate(ctx, linkKeys(linkID)...)
}

// InvalidateUser 清除用户统计缓存
func (c *AnalyticsCache) InvalidateUser(ctx context.Context, userID uint) {
	c.Invalidate(ctx, UserKey(userID))
}

// InvalidateLinkAsync 在后台清除链接缓存，调用方不等待
func (c *AnalyticsCache) InvalidateLinkAsync(linkID uint) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.invalidateTimeout)
		defer cancel()
		c.InvalidateLink(ctx, linkID)
	}()
}

// Wait 等待所有后台失效完成，用于优雅退出
func (c *AnalyticsCache) Wait() {
	c.pending.Wait()
}

func linkKeys(linkID uint) []string {
	keys := make([]string, len(LinkWindows))
	for i, days := range LinkWindows {
		keys[i] = LinkKey(linkID, days)
	}
	return keys
}
