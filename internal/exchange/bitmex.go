package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/pkg/ratelimit"
	sdkhttp "github.com/betbot/levelalarm/pkg/sdk/http"
)

var bitmexLog = logrus.WithField("module", "exchange.bitmex")

const instrumentEndpoint = "/api/v1/instrument"

// instrument BitMEX /instrument 返回的字段子集
type instrument struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	LastPrice *float64  `json:"lastPrice"`
}

// Bitmex 通过 REST 查询 XBTUSD 等合约的最新成交价
type Bitmex struct {
	symbol  string
	client  *sdkhttp.Client
	limiter ratelimit.RateLimiter
}

// NewBitmex 创建 REST 价格来源；limiter 可以为 nil
func NewBitmex(baseURL, symbol string, opts sdkhttp.Options, limiter ratelimit.RateLimiter) *Bitmex {
	return &Bitmex{
		symbol:  symbol,
		client:  sdkhttp.NewClient(baseURL, opts),
		limiter: limiter,
	}
}

// Symbol 品种
func (b *Bitmex) Symbol() string { return b.symbol }

// Remaining 限流窗口内剩余的请求数；未设置限流时返回 -1
func (b *Bitmex) Remaining() int {
	if b.limiter == nil {
		return -1
	}
	return b.limiter.GetRemaining()
}

// LatestTick 查询最新成交价
func (b *Bitmex) LatestTick(ctx context.Context) (domain.Tick, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return domain.Tick{}, err
		}
		bitmexLog.Debugf("查询 %s，本窗口剩余请求数 %d", b.symbol, b.Remaining())
	}

	var resp []instrument
	err := b.client.Get(ctx, instrumentEndpoint, &sdkhttp.RequestOptions{
		Params: map[string]any{
			"symbol":  b.symbol,
			"columns": "lastPrice,timestamp",
		},
	}, &resp)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("bitmex instrument %s: %w", b.symbol, err)
	}

	for _, ins := range resp {
		if ins.Symbol != b.symbol {
			continue
		}
		if ins.LastPrice == nil || !domain.ValidPrice(*ins.LastPrice) {
			return domain.Tick{}, fmt.Errorf("bitmex instrument %s: %w", b.symbol, ErrNoQuote)
		}
		tick := domain.Tick{Symbol: ins.Symbol, ObservedAt: ins.Timestamp, Price: *ins.LastPrice}
		bitmexLog.Debugf("tick %s", tick)
		return tick, nil
	}
	return domain.Tick{}, fmt.Errorf("bitmex instrument %s: %w", b.symbol, ErrNoQuote)
}
