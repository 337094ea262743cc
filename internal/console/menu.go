// Package console 交互式菜单：维护价格水平、查询价格、启动 / 停止监控。
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/internal/exchange"
	"github.com/betbot/levelalarm/internal/levels"
	"github.com/betbot/levelalarm/pkg/sigchan"
)

var log = logrus.WithField("module", "console")

// ErrTooManyAttempts 连续无效输入次数达到上限
var ErrTooManyAttempts = errors.New("too many invalid attempts")

// DefaultMaxAttempts 每个提示最多重试次数
const DefaultMaxAttempts = 5

// 菜单选项
const (
	OptionExit = iota
	OptionAdd
	OptionRemove
	OptionClear
	OptionPrice
	OptionMonitor
	OptionSave
	optionCount
)

// Runner 监控循环（*monitor.Monitor）
type Runner interface {
	Run(ctx context.Context, stop <-chan struct{}) error
}

// LastKnown 可选：提供最近一次行情（*exchange.Cached）
type LastKnown interface {
	LastKnown() (domain.Tick, bool)
}

// Options 菜单参数
type Options struct {
	In           io.Reader
	Out          io.Writer
	Symbol       string
	MaxAttempts  int
	PriceTimeout time.Duration
}

// Menu 交互式菜单
type Menu struct {
	store   *levels.Store
	source  exchange.PriceSource
	runner  Runner
	out     io.Writer
	styles  Styles
	lines   <-chan string
	stop    *sigchan.Chan
	symbol  string
	retries int
	timeout time.Duration
}

// New 创建菜单；输入由后台 goroutine 按行读取
func New(store *levels.Store, source exchange.PriceSource, runner Runner, opts Options) *Menu {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.PriceTimeout <= 0 {
		opts.PriceTimeout = 10 * time.Second
	}
	return &Menu{
		store:   store,
		source:  source,
		runner:  runner,
		out:     opts.Out,
		styles:  NewStyles(opts.Out),
		lines:   readLines(opts.In),
		stop:    sigchan.New(1),
		symbol:  opts.Symbol,
		retries: opts.MaxAttempts,
		timeout: opts.PriceTimeout,
	}
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// Run 菜单主循环。选择 0 或输入结束时保存未保存的修改并返回。
func (m *Menu) Run(ctx context.Context) error {
	for {
		m.printLevels()
		m.printOptions()

		choice, err := m.promptChoice(ctx)
		switch {
		case errors.Is(err, ErrTooManyAttempts):
			m.errorf("无效输入次数过多，返回菜单")
			continue
		case errors.Is(err, io.EOF):
			return m.exit()
		case err != nil:
			return err
		}

		switch choice {
		case OptionExit:
			return m.exit()
		case OptionAdd:
			err = m.add(ctx)
		case OptionRemove:
			err = m.remove(ctx)
		case OptionClear:
			m.store.Clear()
			fmt.Fprintln(m.out, "已删除全部价格水平")
		case OptionPrice:
			m.showPrice(ctx)
		case OptionMonitor:
			err = m.monitor(ctx)
		case OptionSave:
			if err := m.store.Save(); err != nil {
				m.errorf("保存失败: %v", err)
			} else {
				fmt.Fprintln(m.out, "已保存")
			}
		}

		switch {
		case errors.Is(err, ErrTooManyAttempts):
			m.errorf("无效输入次数过多，返回菜单")
		case errors.Is(err, io.EOF):
			return m.exit()
		case err != nil:
			return err
		}
	}
}

// exit 有未保存的修改时先保存
func (m *Menu) exit() error {
	if m.store.Dirty() {
		if err := m.store.Save(); err != nil {
			return err
		}
	}
	fmt.Fprintln(m.out, "再见")
	return nil
}

func (m *Menu) errorf(format string, args ...any) {
	fmt.Fprintln(m.out, m.styles.Error.Render(fmt.Sprintf(format, args...)))
}

func (m *Menu) printLevels() {
	sorted := m.store.Sorted()
	if len(sorted) == 0 {
		fmt.Fprintln(m.out, m.styles.Muted.Render("（暂无价格水平）"))
		return
	}
	for _, v := range sorted {
		fmt.Fprintln(m.out, m.styles.Neutral.Render("价格水平: "+domain.FormatPrice(v)))
	}
}

func (m *Menu) priceLabel() string {
	lk, ok := m.source.(LastKnown)
	if !ok {
		return "显示当前价格"
	}
	tick, ok := lk.LastKnown()
	if !ok {
		return "显示当前价格"
	}
	return fmt.Sprintf("显示当前价格 ($%s)", humanize.Commaf(tick.Price))
}

func (m *Menu) printOptions() {
	fmt.Fprintln(m.out, m.styles.Title.Render(m.symbol+" 价格警报"))
	fmt.Fprintln(m.out, "1. 添加价格水平")
	fmt.Fprintln(m.out, "2. 删除价格水平")
	fmt.Fprintln(m.out, "3. 删除全部价格水平")
	fmt.Fprintln(m.out, "4. "+m.priceLabel())
	fmt.Fprintln(m.out, "5. 开始监控")
	fmt.Fprintln(m.out, "6. 保存价格水平")
	fmt.Fprintln(m.out, "0. 退出")
}

func (m *Menu) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(m.out, label)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-m.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

func (m *Menu) promptChoice(ctx context.Context) (int, error) {
	for attempt := 0; attempt < m.retries; attempt++ {
		s, err := m.prompt(ctx, fmt.Sprintf("请选择 [0-%d]: ", optionCount-1))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err == nil && n >= 0 && n < optionCount {
			return n, nil
		}
		m.errorf("无效选项 %q", s)
	}
	return 0, ErrTooManyAttempts
}

// promptPrice 读取价格并交给 apply；apply 返回 levels.ErrNotFound 时重新输入
func (m *Menu) promptPrice(ctx context.Context, label string, apply func(float64) error) error {
	for attempt := 0; attempt < m.retries; attempt++ {
		s, err := m.prompt(ctx, label)
		if err != nil {
			return err
		}
		v, err := domain.ParsePrice(s)
		if err != nil {
			m.errorf("请输入非负数字: %q", s)
			continue
		}
		err = apply(v)
		if errors.Is(err, levels.ErrNotFound) {
			m.errorf("价格水平 %s 不存在", domain.FormatPrice(v))
			continue
		}
		return err
	}
	return ErrTooManyAttempts
}

func (m *Menu) add(ctx context.Context) error {
	return m.promptPrice(ctx, "输入要添加的价格: ", func(v float64) error {
		err := m.store.Add(v)
		if errors.Is(err, levels.ErrDuplicate) {
			fmt.Fprintf(m.out, "价格水平 %s 已存在\n", domain.FormatPrice(v))
			return nil
		}
		if err == nil {
			log.Infof("添加价格水平 %s", domain.FormatPrice(v))
		}
		return err
	})
}

func (m *Menu) remove(ctx context.Context) error {
	if m.store.Len() == 0 {
		fmt.Fprintln(m.out, "没有可删除的价格水平")
		return nil
	}
	return m.promptPrice(ctx, "输入要删除的价格: ", func(v float64) error {
		if err := m.store.Remove(v); err != nil {
			return err
		}
		log.Infof("删除价格水平 %s", domain.FormatPrice(v))
		return nil
	})
}

func (m *Menu) showPrice(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	tick, err := m.source.LatestTick(ctx)
	if err != nil {
		m.errorf("查询价格失败: %v", err)
		return
	}
	fmt.Fprintf(m.out, "%s 当前价格: $%s (%s)\n", m.symbol, humanize.Commaf(tick.Price), tick.ObservedAt.Local().Format("15:04:05"))
}

// monitor 启动监控，按回车停止。返回 io.EOF 表示输入已结束。
func (m *Menu) monitor(ctx context.Context) error {
	m.stop.Drain()
	fmt.Fprintln(m.out, m.styles.Muted.Render("开始监控，按回车停止"))

	done := make(chan error, 1)
	go func() { done <- m.runner.Run(ctx, m.stop.C()) }()

	var inputErr error
	select {
	case err := <-done:
		if err != nil {
			m.errorf("监控结束: %v", err)
		}
		return ctx.Err()
	case _, ok := <-m.lines:
		if !ok {
			inputErr = io.EOF
		}
	case <-ctx.Done():
	}

	m.stop.Emit()
	if err := <-done; err != nil {
		m.errorf("监控结束: %v", err)
	}
	fmt.Fprintln(m.out, "已停止监控")
	if inputErr != nil {
		return inputErr
	}
	return ctx.Err()
}
