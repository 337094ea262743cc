package console

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/levelalarm/internal/crossing"
)

// Styles 蓝 / 绿 / 红 三种底色（黑字），控制台和 TUI 共用
type Styles struct {
	Neutral lipgloss.Style
	Up      lipgloss.Style
	Down    lipgloss.Style
	Alarm   lipgloss.Style
	Header  lipgloss.Style
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles 按输出终端的能力构建样式；非终端输出时不带颜色转义
func NewStyles(w io.Writer) Styles {
	return StylesFor(lipgloss.NewRenderer(w))
}

// StylesFor 使用指定 renderer 构建样式
func StylesFor(r *lipgloss.Renderer) Styles {
	black := r.NewStyle().Foreground(lipgloss.Color("0"))
	return Styles{
		Neutral: black.Background(lipgloss.Color("4")),
		Up:      black.Background(lipgloss.Color("2")),
		Down:    black.Background(lipgloss.Color("1")),
		Alarm:   black.Background(lipgloss.Color("2")).Bold(true),
		Header:  r.NewStyle().Bold(true),
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// ForIntent 渲染项对应的样式
func (s Styles) ForIntent(i crossing.Intent) lipgloss.Style {
	switch i {
	case crossing.Up:
		return s.Up
	case crossing.Down:
		return s.Down
	default:
		return s.Neutral
	}
}
