package console

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/levelalarm/internal/alarm"
	"github.com/betbot/levelalarm/internal/crossing"
	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/internal/exchange"
	"github.com/betbot/levelalarm/internal/levels"
	"github.com/betbot/levelalarm/internal/monitor"
	"github.com/betbot/levelalarm/pkg/cache"
	"github.com/betbot/levelalarm/pkg/persistence"
)

// syncBuffer 监控 goroutine 和测试 goroutine 同时访问输出
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fixedPrice(p float64) exchange.PriceSource {
	return exchange.PriceSourceFunc(func(ctx context.Context) (domain.Tick, error) {
		return domain.Tick{Symbol: "XBTUSD", Price: p, ObservedAt: time.Now()}, nil
	})
}

type recorder struct {
	mu    sync.Mutex
	tones []alarm.Tone
}

func (r *recorder) Beep(_ context.Context, t alarm.Tone) error {
	r.mu.Lock()
	r.tones = append(r.tones, t)
	r.mu.Unlock()
	return nil
}

func TestPlainLines_CrossUp(t *testing.T) {
	res := crossing.Detect(102, 108, []float64{100, 105, 110})
	assert.Equal(t, []string{
		"价格水平: 110",
		"当前价格: 108",
		"价格水平: 105",
		AlarmMarker,
		"前一价格: 102",
		"价格水平: 100",
	}, PlainLines(res))
}

func TestRenderer_AlarmLinesAndTones(t *testing.T) {
	var out bytes.Buffer
	rec := &recorder{}
	r := NewRenderer(&out, alarm.NewPlayer(rec, alarm.DefaultUp, alarm.DefaultDown))

	res := crossing.Detect(100, 95, []float64{100, 97, 90})
	r.OnReport(context.Background(), monitor.Report{
		Tick:   domain.Tick{Price: 95, ObservedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)},
		Result: res,
	})

	text := out.String()
	assert.Contains(t, text, "价格检查 2026-01-02 03:04:05")
	assert.Equal(t, 2, strings.Count(text, AlarmMarker))
	// 警报行紧跟在触发的水平之后
	assert.Less(t, strings.Index(text, "价格水平: 100"), strings.Index(text, AlarmMarker))
	require.Len(t, rec.tones, 2)
	assert.Equal(t, 400, rec.tones[0].Frequency)
}

func TestMenu_AddRemoveExitSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	store := levels.NewStore(persistence.NewTextFile(path))

	in := strings.Join([]string{
		"1", "35000",
		"1", "abc", "9688.69",
		"1", "35000", // 重复
		"2", "1", "35000", // 第一次输入不存在，重新输入
		"9", // 无效选项
		"0",
	}, "\n") + "\n"
	var out bytes.Buffer
	m := New(store, fixedPrice(1), nil, Options{In: strings.NewReader(in), Out: &out, Symbol: "XBTUSD"})

	require.NoError(t, m.Run(context.Background()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9688.69\n", string(b))
	text := out.String()
	assert.Contains(t, text, "已存在")
	assert.Contains(t, text, "不存在")
	assert.Contains(t, text, "再见")
}

func TestMenu_BoundedRetries(t *testing.T) {
	store := levels.NewStore(nil)
	in := "1\nx\nx\n0\n"
	var out bytes.Buffer
	m := New(store, fixedPrice(1), nil, Options{In: strings.NewReader(in), Out: &out, MaxAttempts: 2})

	require.NoError(t, m.Run(context.Background()))
	assert.Contains(t, out.String(), "无效输入次数过多")
	assert.Equal(t, 0, store.Len())
}

func TestMenu_EOFExits(t *testing.T) {
	store := levels.NewStore(nil)
	var out bytes.Buffer
	m := New(store, fixedPrice(1), nil, Options{In: strings.NewReader("3\n"), Out: &out})
	assert.NoError(t, m.Run(context.Background()))
}

func TestMenu_ShowPriceUsesLastKnown(t *testing.T) {
	store := levels.NewStore(nil)
	src := exchange.NewCached(fixedPrice(9700.5), "XBTUSD", cache.NewTickCache(time.Minute))
	var out bytes.Buffer
	m := New(store, src, nil, Options{In: strings.NewReader("4\n0\n"), Out: &out, Symbol: "XBTUSD"})

	require.NoError(t, m.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "XBTUSD 当前价格: $9,700.5")
	// 第二次显示菜单时标签带上最近价格
	assert.Contains(t, text, "显示当前价格 ($9,700.5)")
}

func TestMenu_MonitorStopsOnEnter(t *testing.T) {
	store := levels.NewStore(nil)
	require.NoError(t, store.Add(9700))

	out := &syncBuffer{}
	rec := &recorder{}
	renderer := NewRenderer(out, alarm.NewPlayer(rec, alarm.DefaultUp, alarm.DefaultDown))
	mon := monitor.New(fixedPrice(9700), store, renderer, monitor.Options{Interval: 5 * time.Millisecond})

	pr, pw := io.Pipe()
	m := New(store, fixedPrice(9700), mon, Options{In: pr, Out: out})

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	_, err := io.WriteString(pw, "5\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), AlarmMarker) }, time.Second, time.Millisecond)

	_, err = io.WriteString(pw, "\n0\n")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("menu did not exit")
	}
	assert.Contains(t, out.String(), "已停止监控")
	assert.False(t, mon.Status().Running)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.tones)
	assert.Equal(t, 400, rec.tones[0].Frequency)
}
