package exchange

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/pkg/cache"
)

// flightTimeout 合并后的单次请求的超时，与任何单个调用方的 ctx 无关
const flightTimeout = 10 * time.Second

// Cached 记录每次成功查询的行情，菜单据此显示“最近价格”而无需再次请求交易所。
// 同时到达的查询（监控循环、菜单、HTTP）合并为一次请求。
type Cached struct {
	src    PriceSource
	symbol string
	cache  *cache.TickCache
	group  singleflight.Group

	timeout time.Duration
}

// NewCached 包装价格来源
func NewCached(src PriceSource, symbol string, c *cache.TickCache) *Cached {
	return &Cached{src: src, symbol: symbol, cache: c, timeout: flightTimeout}
}

// LatestTick 查询并缓存。
// 请求本身不继承调用方的取消：某个调用方放弃等待时，合并进来的其他调用方照常拿到结果。
func (c *Cached) LatestTick(ctx context.Context) (domain.Tick, error) {
	ch := c.group.DoChan(c.symbol, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		tick, err := c.src.LatestTick(fctx)
		if err != nil {
			return tick, err
		}
		if tick.Symbol == "" {
			tick.Symbol = c.symbol
		}
		c.cache.Set(tick)
		return tick, nil
	})
	select {
	case <-ctx.Done():
		return domain.Tick{}, ctx.Err()
	case res := <-ch:
		return res.Val.(domain.Tick), res.Err
	}
}

// LastKnown 最近一次成功查询的行情（可能已过期被清除）
func (c *Cached) LastKnown() (domain.Tick, bool) {
	return c.cache.Get(c.symbol)
}
