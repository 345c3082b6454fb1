package readmodel

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"allocation/logging"
)

// CacheConfig 查询缓存配置
type CacheConfig struct {
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// CacheStats 缓存命中统计
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// HitRate 命中率
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CachedReader 以带过期的 LRU 缓存包装 IReader；
// 分配变化时由事件处理器调用 Invalidate 使订单条目失效。
type CachedReader struct {
	next   IReader
	lru    *expirable.LRU[string, []Allocation]
	hits   atomic.Uint64
	misses atomic.Uint64
	logger logging.Logger
}

// NewCachedReader 创建缓存查询端
func NewCachedReader(next IReader, cfg CacheConfig) *CachedReader {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1024
	}
	return &CachedReader{
		next:   next,
		lru:    expirable.NewLRU[string, []Allocation](cfg.MaxSize, nil, cfg.TTL),
		logger: logging.ComponentLogger("readmodel.cache"),
	}
}

func (c *CachedReader) Allocations(ctx context.Context, orderID string) ([]Allocation, error) {
	if cached, ok := c.lru.Get(orderID); ok {
		c.hits.Add(1)
		return append([]Allocation{}, cached...), nil
	}
	c.misses.Add(1)

	rows, err := c.next.Allocations(ctx, orderID)
	if err != nil {
		return nil, err
	}
	c.lru.Add(orderID, append([]Allocation{}, rows...))
	return rows, nil
}

// Invalidate 移除订单的缓存条目
func (c *CachedReader) Invalidate(ctx context.Context, orderID string) {
	if c.lru.Remove(orderID) {
		c.logger.Debug(ctx, "allocations cache invalidated", logging.String("orderid", orderID))
	}
}

// Stats 返回命中统计
func (c *CachedReader) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.lru.Len()}
}
