// Package exchange 价格来源：BitMEX REST 轮询、BitMEX 实时行情流，以及记录最近行情的缓存装饰器。
package exchange

import (
	"context"
	"errors"

	"github.com/betbot/levelalarm/internal/domain"
)

var (
	// ErrNoQuote 交易所没有返回可用的最新成交价
	ErrNoQuote = errors.New("no quote available")
	// ErrStaleQuote 行情流太久没有更新
	ErrStaleQuote = errors.New("quote is stale")
)

// PriceSource 同步查询一个品种的最新行情
type PriceSource interface {
	LatestTick(ctx context.Context) (domain.Tick, error)
}

// PriceSourceFunc 便于测试和适配
type PriceSourceFunc func(ctx context.Context) (domain.Tick, error)

func (f PriceSourceFunc) LatestTick(ctx context.Context) (domain.Tick, error) { return f(ctx) }
