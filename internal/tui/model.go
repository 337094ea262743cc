// Package tui 监控过程的全屏视图（bubbletea）。
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/levelalarm/internal/console"
	"github.com/betbot/levelalarm/internal/crossing"
	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/internal/monitor"
)

const maxHistory = 10

// reportMsg 一次采样结果
type reportMsg monitor.Report

// doneMsg 监控循环结束
type doneMsg struct{ err error }

// alarmEntry 警报历史
type alarmEntry struct {
	at    time.Time
	alarm crossing.Alarm
}

// Model TUI 状态
type Model struct {
	symbol   string
	styles   console.Styles
	frame    lipgloss.Style
	report   *monitor.Report
	history  []alarmEntry
	err      error
	stopped  bool
	quitting bool
}

// NewModel 创建视图
func NewModel(symbol string) Model {
	return Model{
		symbol: symbol,
		styles: console.StylesFor(lipgloss.DefaultRenderer()),
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case reportMsg:
		r := monitor.Report(msg)
		m.report = &r
		at := r.Tick.ObservedAt
		for _, a := range r.Result.Alarms {
			m.history = append(m.history, alarmEntry{at: at, alarm: a})
		}
		if n := len(m.history); n > maxHistory {
			m.history = m.history[n-maxHistory:]
		}

	case doneMsg:
		m.stopped = true
		m.err = msg.err
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(m.styles.Title.Render(m.symbol + " 价格警报"))
	s.WriteString("\n\n")

	if m.report == nil {
		s.WriteString(m.styles.Muted.Render("等待行情..."))
	} else {
		r := m.report
		s.WriteString(m.styles.Header.Render(fmt.Sprintf("价格检查 %s  #%d", r.Tick.ObservedAt.Local().Format("15:04:05"), r.Seq)))
		s.WriteString("\n")
		var rows []string
		for _, it := range r.Result.Items {
			rows = append(rows, m.styles.ForIntent(it.Intent).Render(console.FormatItem(it)))
			if it.Alarm {
				rows = append(rows, m.styles.Alarm.Render(console.AlarmMarker))
			}
		}
		s.WriteString(m.frame.Render(strings.Join(rows, "\n")))
	}
	s.WriteString("\n\n")

	if len(m.history) > 0 {
		s.WriteString(m.styles.Header.Render("最近警报"))
		s.WriteString("\n")
		for i := len(m.history) - 1; i >= 0; i-- {
			h := m.history[i]
			style := m.styles.Down
			if h.alarm.Direction == crossing.DirectionUp {
				style = m.styles.Up
			}
			line := fmt.Sprintf("%s %s %s", h.at.Local().Format("15:04:05"), h.alarm.Direction, domain.FormatPrice(h.alarm.Level))
			s.WriteString(style.Render(line))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	if m.stopped {
		if m.err != nil {
			s.WriteString(m.styles.Error.Render(fmt.Sprintf("监控结束: %v", m.err)))
		} else {
			s.WriteString(m.styles.Muted.Render("监控已停止"))
		}
		s.WriteString("\n")
	}
	s.WriteString("按 q 退出")
	return s.String()
}
