package carrier

import (
	"context"
	"sync"
	"time"
)

// Lookup 一次查询结果的值对象，进缓存后不再变化
type Lookup struct {
	TrackingNumber string
	StatusText     string
	ObservedAt     time.Time
}

// Cache 单次编排运行内的查询缓存
// 同一托运单号可能同时出现在台账多行与 Shopline 订单上，
// 一轮运行内对黑貓最多查一次；缓存随运行创建、随运行丢弃，
// 不跨任务共享
type Cache struct {
	src     Source
	mu      sync.Mutex
	lookups map[string]Lookup
}

// NewCache 包装一个 Source，加上按单号的记忆
func NewCache(src Source) *Cache {
	return &Cache{
		src:     src,
		lookups: make(map[string]Lookup),
	}
}

// Status 查询状态，同单号命中缓存则不再发请求
func (c *Cache) Status(ctx context.Context, trackingNumber string) string {
	c.mu.Lock()
	if lookup, ok := c.lookups[trackingNumber]; ok {
		c.mu.Unlock()
		return lookup.StatusText
	}
	c.mu.Unlock()

	statusText := c.src.Status(ctx, trackingNumber)

	c.mu.Lock()
	c.lookups[trackingNumber] = Lookup{
		TrackingNumber: trackingNumber,
		StatusText:     statusText,
		ObservedAt:     time.Now(),
	}
	c.mu.Unlock()

	return statusText
}

// CollectedDate 集貨日期查询不缓存，只有日期栏位为空的行才会走到这里
func (c *Cache) CollectedDate(ctx context.Context, trackingNumber, knownStatus string) string {
	return c.src.CollectedDate(ctx, trackingNumber, knownStatus)
}

// QueryURL 透传
func (c *Cache) QueryURL(trackingNumber string) string {
	return c.src.QueryURL(trackingNumber)
}

// Size 已缓存的单号数
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lookups)
}
