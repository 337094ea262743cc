package console

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/betbot/levelalarm/internal/alarm"
	"github.com/betbot/levelalarm/internal/crossing"
	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/internal/monitor"
)

// AlarmMarker 每个触发水平之后输出的提示行
const AlarmMarker = "警报"

const separator = "------------------------------"

// Label 渲染项的文字标签
func Label(m crossing.Mark) string {
	switch m {
	case crossing.PreviousMark:
		return "前一价格"
	case crossing.CurrentMark:
		return "当前价格"
	default:
		return "价格水平"
	}
}

// FormatItem 单行文字（不含颜色）
func FormatItem(it crossing.Item) string {
	return fmt.Sprintf("%s: %s", Label(it.Mark), domain.FormatPrice(it.Value))
}

// Renderer 把每次采样按价格降序逐行打印，并在触发的水平后输出警报行、发声。
// 实现 monitor.Sink。
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	player *alarm.Player
	now    func() time.Time
}

// NewRenderer player 为 nil 时不发声
func NewRenderer(out io.Writer, player *alarm.Player) *Renderer {
	if player == nil {
		player = alarm.NewPlayer(nil, alarm.DefaultUp, alarm.DefaultDown)
	}
	return &Renderer{out: out, styles: NewStyles(out), player: player, now: time.Now}
}

// OnReport 渲染一次采样。提示音与警报行按扫描顺序交替：打印、发声、再打印下一行。
func (r *Renderer) OnReport(ctx context.Context, rep monitor.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := rep.Tick.ObservedAt
	if at.IsZero() {
		at = r.now()
	}
	fmt.Fprintln(r.out, r.styles.Header.Render("价格检查 "+at.Local().Format("2006-01-02 15:04:05")))
	for _, it := range rep.Result.Items {
		fmt.Fprintln(r.out, r.styles.ForIntent(it.Intent).Render(FormatItem(it)))
		if it.Alarm {
			fmt.Fprintln(r.out, r.styles.Alarm.Render(AlarmMarker))
			r.player.Play(ctx, rep.Result.Direction)
		}
	}
	fmt.Fprintln(r.out, separator)
}

// PlainLines 不带颜色的渲染结果，测试和日志使用
func PlainLines(res crossing.Result) []string {
	var lines []string
	for _, it := range res.Items {
		lines = append(lines, FormatItem(it))
		if it.Alarm {
			lines = append(lines, AlarmMarker)
		}
	}
	return lines
}
