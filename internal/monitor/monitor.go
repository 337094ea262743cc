// Package monitor 定时采样价格并驱动穿越检测。
//
// Run 使用单个 time.Ticker 按固定频率采样；上一次采样尚未结束时 ticker 会丢弃多余的触发，
// 所以采样不会重叠。
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/levelalarm/internal/crossing"
	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/internal/exchange"
	"github.com/betbot/levelalarm/internal/metrics"
)

var log = logrus.WithField("module", "monitor")

var (
	// ErrAlreadyRunning 同一个 Monitor 不能同时运行两次
	ErrAlreadyRunning = errors.New("monitor already running")
	// ErrTooManyFailures 连续取价失败次数超过上限
	ErrTooManyFailures = errors.New("too many consecutive price failures")
)

// DefaultInterval 默认采样周期
const DefaultInterval = 2 * time.Second

// LevelSource 提供价格水平快照
type LevelSource interface {
	Snapshot() []float64
}

// Report 一次成功采样的结果
type Report struct {
	Seq    int
	Tick   domain.Tick
	State  State
	Result crossing.Result
}

// Sink 消费采样结果（渲染、发声）。在监控 goroutine 中同步调用。
type Sink interface {
	OnReport(ctx context.Context, r Report)
}

// SinkFunc 函数适配
type SinkFunc func(ctx context.Context, r Report)

func (f SinkFunc) OnReport(ctx context.Context, r Report) { f(ctx, r) }

// Options 监控参数
type Options struct {
	Interval time.Duration
	// FailFast 取价失败立即结束 Run 并返回错误
	FailFast bool
	// MaxConsecutiveFailures 非 FailFast 时连续失败上限（<=0 表示 5）
	MaxConsecutiveFailures int
}

// Status 对外暴露的只读状态
type Status struct {
	Running   bool        `json:"running"`
	State     State       `json:"state"`
	LastTick  domain.Tick `json:"last_tick"`
	Ticks     int         `json:"ticks"`
	Failures  int         `json:"consecutive_failures"`
	LastError string      `json:"last_error,omitempty"`
	StartedAt time.Time   `json:"started_at"`
}

// Monitor 监控循环
type Monitor struct {
	source exchange.PriceSource
	levels LevelSource
	sink   Sink
	opts   Options

	running atomic.Bool
	status  atomic.Pointer[Status]
}

// New 创建监控循环
func New(source exchange.PriceSource, levels LevelSource, sink Sink, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 5
	}
	m := &Monitor{source: source, levels: levels, sink: sink, opts: opts}
	m.status.Store(&Status{})
	return m
}

// Interval 采样周期
func (m *Monitor) Interval() time.Duration { return m.opts.Interval }

// Status 当前状态快照
func (m *Monitor) Status() Status {
	return *m.status.Load()
}

func (m *Monitor) publish(fn func(s *Status)) {
	next := *m.status.Load()
	fn(&next)
	m.status.Store(&next)
}

// Step 执行一次采样：取价 → 推进状态 → 检测。失败时状态保持不变。
func (m *Monitor) Step(ctx context.Context, st State) (State, Report, error) {
	tick, err := m.source.LatestTick(ctx)
	if err != nil {
		return st, Report{}, err
	}
	next := Advance(st, tick.Price)
	res := crossing.Detect(next.Previous, next.Current, m.levels.Snapshot())
	return next, Report{Tick: tick, State: next, Result: res}, nil
}

// Run 重置状态并开始监控，直到 ctx 结束或 stop 关闭/收到信号（返回 nil）。
// FailFast 下首次取价失败即返回错误；否则连续失败达到上限时返回 ErrTooManyFailures。
func (m *Monitor) Run(ctx context.Context, stop <-chan struct{}) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if stop != nil {
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	m.status.Store(&Status{Running: true, StartedAt: time.Now()})
	defer m.publish(func(s *Status) { s.Running = false })

	log.Infof("开始监控，周期 %v", m.opts.Interval)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	var (
		st       State
		seq      int
		failures int
	)
	for {
		next, report, err := m.Step(ctx, st)
		switch {
		case ctx.Err() != nil:
			log.Info("监控已停止")
			return nil
		case err != nil:
			failures++
			metrics.PriceErrors.Add(1)
			m.publish(func(s *Status) {
				s.Failures = failures
				s.LastError = err.Error()
			})
			if m.opts.FailFast {
				return fmt.Errorf("fetch price: %w", err)
			}
			log.Warnf("取价失败 (%d/%d): %v", failures, m.opts.MaxConsecutiveFailures, err)
			if failures >= m.opts.MaxConsecutiveFailures {
				return fmt.Errorf("%w: %v", ErrTooManyFailures, err)
			}
		default:
			failures = 0
			seq++
			metrics.Ticks.Add(1)
			metrics.Alarms.Add(int64(len(report.Result.Alarms)))
			st = next
			report.Seq = seq
			m.publish(func(s *Status) {
				s.State = st
				s.LastTick = report.Tick
				s.Ticks = seq
				s.Failures = 0
				s.LastError = ""
			})
			if len(report.Result.Alarms) > 0 {
				log.Infof("价格 %s → %s 触发 %d 个水平", domain.FormatPrice(st.Previous), domain.FormatPrice(st.Current), len(report.Result.Alarms))
			}
			if m.sink != nil {
				m.sink.OnReport(ctx, report)
			}
		}

		select {
		case <-ctx.Done():
			log.Info("监控已停止")
			return nil
		case <-ticker.C:
		}
	}
}
