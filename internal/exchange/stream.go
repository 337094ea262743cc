package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/betbot/levelalarm/internal/domain"
)

var streamLog = logrus.WithField("module", "exchange.stream")

// StreamConfig 行情流配置
type StreamConfig struct {
	URL            string
	Symbol         string
	ProxyURL       string
	ReconnectDelay time.Duration
	ReadTimeout    time.Duration
	// StaleAfter 超过该时长没有新行情则 LatestTick 返回 ErrStaleQuote；0 表示不检查
	StaleAfter time.Duration
}

// streamMessage BitMEX realtime 表消息
type streamMessage struct {
	Table  string       `json:"table"`
	Action string       `json:"action"`
	Data   []instrument `json:"data"`
	Error  string       `json:"error"`
}

// Stream 订阅 BitMEX realtime instrument 表，LatestTick 返回最近一次收到的成交价
type Stream struct {
	cfg    StreamConfig
	dialer *websocket.Dialer

	mu       sync.RWMutex
	last     domain.Tick
	received time.Time
	have     bool
}

// NewStream 创建行情流（调用 Run 后才开始连接）
func NewStream(cfg StreamConfig) *Stream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: 10 * time.Second,
	}
	if cfg.ProxyURL != "" {
		if u, err := url.Parse(cfg.ProxyURL); err == nil {
			dialer.Proxy = http.ProxyURL(u)
		}
	}
	return &Stream{cfg: cfg, dialer: dialer}
}

// subscribeURL wss://.../realtime?subscribe=instrument:XBTUSD
func (s *Stream) subscribeURL() string {
	sep := "?"
	if strings.Contains(s.cfg.URL, "?") {
		sep = "&"
	}
	return s.cfg.URL + sep + "subscribe=" + url.QueryEscape("instrument:"+s.cfg.Symbol)
}

// Run 连接并持续读取，断线后按 ReconnectDelay 重连，直到 ctx 结束
func (s *Stream) Run(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		streamLog.Warnf("行情流断开: %v，%v 后重连", err, s.cfg.ReconnectDelay)

		timer := time.NewTimer(s.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.subscribeURL(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()
	streamLog.Infof("行情流已连接: %s", s.cfg.Symbol)

	// ctx 结束时关闭连接以打断阻塞的 ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.handle(raw); err != nil {
			return err
		}
	}
}

func (s *Stream) handle(raw []byte) error {
	if string(raw) == "pong" {
		return nil
	}
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		streamLog.Debugf("忽略无法解析的消息: %s", string(raw))
		return nil
	}
	if msg.Error != "" {
		return fmt.Errorf("bitmex stream error: %s", msg.Error)
	}
	if msg.Table != "instrument" {
		return nil
	}
	for _, ins := range msg.Data {
		// update 消息只包含变化的字段，没有 lastPrice 的跳过
		if ins.Symbol != s.cfg.Symbol || ins.LastPrice == nil || !domain.ValidPrice(*ins.LastPrice) {
			continue
		}
		at := ins.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		s.mu.Lock()
		s.last = domain.Tick{Symbol: ins.Symbol, ObservedAt: at, Price: *ins.LastPrice}
		s.received = time.Now()
		s.have = true
		s.mu.Unlock()
	}
	return nil
}

// LatestTick 返回最近收到的行情
func (s *Stream) LatestTick(ctx context.Context) (domain.Tick, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tick{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.have {
		return domain.Tick{}, ErrNoQuote
	}
	if s.cfg.StaleAfter > 0 && time.Since(s.received) > s.cfg.StaleAfter {
		return domain.Tick{}, fmt.Errorf("%w: last update %v ago", ErrStaleQuote, time.Since(s.received).Round(time.Second))
	}
	return s.last, nil
}
