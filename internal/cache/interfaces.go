// Package cache 分析结果缓存：底层键值存储和带单飞语义的 AnalyticsCache
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss 键不存在或已过期
var ErrMiss = errors.New("cache: miss")

// Store 支持 TTL 的键值存储
type Store interface {
	// Get 返回键对应的值，不存在时返回 ErrMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入并设置过期时间
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除键，键不存在不是错误
	Delete(ctx context.Context, keys ...string) error

	// Close 释放资源
	Close() error
}
