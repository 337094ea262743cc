package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/betbot/levelalarm/internal/alarm"
	"github.com/betbot/levelalarm/internal/monitor"
)

// Sink 把采样结果发送给 TUI，并按扫描顺序播放提示音
type Sink struct {
	send   func(tea.Msg)
	player *alarm.Player
}

// NewSink send 一般是 (*tea.Program).Send
func NewSink(send func(tea.Msg), player *alarm.Player) *Sink {
	if player == nil {
		player = alarm.NewPlayer(nil, alarm.DefaultUp, alarm.DefaultDown)
	}
	return &Sink{send: send, player: player}
}

// OnReport 先把整份报告交给界面，再按警报顺序逐个发声。
// 控制台渲染器则是每打印一行警报就发一次声，两者有意不同。
func (s *Sink) OnReport(ctx context.Context, r monitor.Report) {
	s.send(reportMsg(r))
	for _, a := range r.Result.Alarms {
		s.player.Play(ctx, a.Direction)
	}
}

// Runner 监控循环
type Runner interface {
	Run(ctx context.Context, stop <-chan struct{}) error
}

// Run 全屏运行直到用户按 q 或 ctx 结束。newRunner 以 Sink 构造监控循环。
func Run(ctx context.Context, symbol string, player *alarm.Player, newRunner func(monitor.Sink) Runner) error {
	p := tea.NewProgram(NewModel(symbol), tea.WithAltScreen(), tea.WithContext(ctx))
	runner := newRunner(NewSink(p.Send, player))

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		err := runner.Run(ctx, stop)
		p.Send(doneMsg{err: err})
		done <- err
	}()

	_, err := p.Run()
	close(stop)
	monErr := <-done
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return monErr
}
