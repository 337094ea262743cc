// Package alarm 播放穿越提示音。
package alarm

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/levelalarm/internal/crossing"
)

var log = logrus.WithField("module", "alarm")

// Tone 一个提示音
type Tone struct {
	Frequency int // Hz
	Duration  time.Duration
}

// 默认音调：上穿 800Hz，下穿 400Hz，各 700ms
var (
	DefaultUp   = Tone{Frequency: 800, Duration: 700 * time.Millisecond}
	DefaultDown = Tone{Frequency: 400, Duration: 700 * time.Millisecond}
)

// Beeper 发声设备。Beep 在提示音结束后返回。
type Beeper interface {
	Beep(ctx context.Context, t Tone) error
}

// Bell 向终端写 BEL 字符，然后等待 Duration，保证连续警报之间有间隔
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBell 创建 BEL 发声器
func NewBell(w io.Writer) *Bell { return &Bell{w: w} }

func (b *Bell) Beep(ctx context.Context, t Tone) error {
	b.mu.Lock()
	_, err := io.WriteString(b.w, "\a")
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return sleep(ctx, t.Duration)
}

// Mute 静音
type Mute struct{}

func (Mute) Beep(context.Context, Tone) error { return nil }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Player 按方向选择音调
type Player struct {
	beeper Beeper
	up     Tone
	down   Tone
}

// NewPlayer 创建播放器；beeper 为 nil 时静音
func NewPlayer(beeper Beeper, up, down Tone) *Player {
	if beeper == nil {
		beeper = Mute{}
	}
	return &Player{beeper: beeper, up: up, down: down}
}

// ToneFor 方向对应的音调
func (p *Player) ToneFor(d crossing.Direction) Tone {
	if d == crossing.DirectionUp {
		return p.up
	}
	return p.down
}

// Play 同步播放；发声失败只记录日志
func (p *Player) Play(ctx context.Context, d crossing.Direction) {
	if err := p.beeper.Beep(ctx, p.ToneFor(d)); err != nil && ctx.Err() == nil {
		log.Debugf("发声失败: %v", err)
	}
}
