package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/levelalarm/internal/alarm"
	"github.com/betbot/levelalarm/internal/api"
	"github.com/betbot/levelalarm/internal/console"
	"github.com/betbot/levelalarm/internal/exchange"
	"github.com/betbot/levelalarm/internal/levels"
	"github.com/betbot/levelalarm/internal/monitor"
	"github.com/betbot/levelalarm/internal/tui"
	"github.com/betbot/levelalarm/pkg/cache"
	"github.com/betbot/levelalarm/pkg/config"
	"github.com/betbot/levelalarm/pkg/logger"
	"github.com/betbot/levelalarm/pkg/persistence"
	"github.com/betbot/levelalarm/pkg/ratelimit"
	sdkhttp "github.com/betbot/levelalarm/pkg/sdk/http"
	"github.com/betbot/levelalarm/pkg/shutdown"
	"github.com/betbot/levelalarm/pkg/syncgroup"
)

const shutdownTimeout = 5 * time.Second

type mode int

const (
	modeMenu mode = iota
	modeMonitor
	modeTUI
)

func main() {
	// .env 可选，不存在时直接使用环境变量
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", getenv("LEVELALARM_CONFIG", "config.yaml"), "配置文件路径（yaml/json，可选）")
		useTUI     = flag.Bool("tui", false, "直接以全屏视图开始监控")
		monitorNow = flag.Bool("monitor", false, "跳过菜单，直接在终端开始监控")
		httpListen = flag.String("http", "", "HTTP 控制接口监听地址，覆盖配置 http.listen")
	)
	flag.Parse()

	config.SetConfigPath(*configPath)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *httpListen != "" {
		cfg.HTTP.Listen = *httpListen
	}

	m := modeMenu
	switch {
	case *useTUI:
		m = modeTUI
	case *monitorNow:
		m = modeMonitor
	}

	// 菜单和 TUI 占用终端时日志只写文件
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Quiet:      m != modeMonitor,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := run(cfg, m); err != nil {
		logger.Errorf("退出: %v", err)
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		logger.Close()
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(cfg *config.Config, m mode) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shut := shutdown.NewManager()
	group := syncgroup.NewSyncGroup()
	defer func() {
		stop()
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if werr := group.WaitContext(waitCtx); werr != nil {
			logger.Warnf("后台任务: %v", werr)
		}
		if serr := shut.Shutdown(waitCtx); serr != nil && err == nil {
			err = serr
		}
	}()

	store, err := openLevels(cfg, shut)
	if err != nil {
		return err
	}

	src := newPriceSource(ctx, cfg, group)
	cached := exchange.NewCached(src, cfg.Symbol, cache.NewTickCache(10*time.Minute))
	player := newPlayer(cfg, shut)

	// 监控循环的输出目标在启动前确定（终端渲染或 TUI）
	var sink monitor.Sink = console.NewRenderer(os.Stdout, player)
	mon := monitor.New(cached, store, monitor.SinkFunc(func(ctx context.Context, r monitor.Report) {
		sink.OnReport(ctx, r)
	}), monitor.Options{
		Interval:               cfg.Monitor.Interval,
		FailFast:               cfg.Monitor.FailFast,
		MaxConsecutiveFailures: cfg.Monitor.MaxConsecutiveFailures,
	})

	if cfg.HTTP.Listen != "" {
		router := api.New(store, mon, cached).Router()
		group.Go("http", func() error {
			return api.Serve(ctx, cfg.HTTP.Listen, router, shutdownTimeout)
		})
	}

	switch m {
	case modeTUI:
		err = tui.Run(ctx, cfg.Symbol, player, func(s monitor.Sink) tui.Runner {
			sink = s
			return mon
		})
	case modeMonitor:
		err = mon.Run(ctx, nil)
	default:
		menu := console.New(store, cached, mon, console.Options{
			In:          os.Stdin,
			Out:         os.Stdout,
			Symbol:      cfg.Symbol,
			MaxAttempts: cfg.Menu.MaxAttempts,
		})
		err = menu.Run(ctx)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// openLevels 打开存储后端并加载。文件损坏时记录错误并以空集合启动，
// 在用户修改或保存之前不会覆盖原文件。
func openLevels(cfg *config.Config, shut *shutdown.Manager) (*levels.Store, error) {
	backend, err := persistence.Open(persistence.Options{
		Kind:          persistence.Kind(cfg.Levels.Backend),
		Path:          cfg.Levels.Path,
		EncryptionKey: cfg.Levels.EncryptionKey,
	})
	if err != nil {
		return nil, err
	}
	store := levels.NewStore(backend)
	shut.OnShutdown("levels backend", func(context.Context) error { return store.Close() })
	shut.OnShutdown("save levels", func(context.Context) error {
		if !store.Dirty() {
			return nil
		}
		return store.Save()
	})

	if err := store.Load(); err != nil {
		if !persistence.IsCorrupt(err) {
			return nil, err
		}
		logger.Errorf("价格水平数据损坏，以空集合启动: %v", err)
		fmt.Fprintf(os.Stderr, "警告: %v\n", err)
	}
	logger.Infof("价格水平 %d 个（%s: %s）", store.Len(), cfg.Levels.Backend, cfg.Levels.Path)
	return store, nil
}

func newPriceSource(ctx context.Context, cfg *config.Config, group *syncgroup.SyncGroup) exchange.PriceSource {
	if cfg.Source == "stream" {
		st := exchange.NewStream(exchange.StreamConfig{
			URL:        cfg.Exchange.WSURL,
			Symbol:     cfg.Symbol,
			StaleAfter: 10 * cfg.Monitor.Interval,
		})
		group.Go("stream", func() error { return st.Run(ctx) })
		logger.Infof("行情来源: websocket %s", cfg.Exchange.WSURL)
		return st
	}

	opts := sdkhttp.DefaultOptions()
	if cfg.Exchange.Timeout > 0 {
		opts.Timeout = cfg.Exchange.Timeout
	}
	var limiter ratelimit.RateLimiter
	if cfg.Exchange.RateLimitPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.Exchange.RateLimitPerMinute)
	}
	logger.Infof("行情来源: REST %s", cfg.Exchange.BaseURL)
	return exchange.NewBitmex(cfg.Exchange.BaseURL, cfg.Symbol, opts, limiter)
}

func newPlayer(cfg *config.Config, shut *shutdown.Manager) *alarm.Player {
	var beeper alarm.Beeper = alarm.Mute{}
	if !cfg.Alarm.Mute {
		beeper = alarm.Detect(os.Stdout)
	}
	if c, ok := beeper.(io.Closer); ok {
		shut.OnShutdown("speaker", func(context.Context) error { return c.Close() })
	}
	return alarm.NewPlayer(beeper,
		alarm.Tone{Frequency: cfg.Alarm.UpFrequency, Duration: cfg.Alarm.Duration},
		alarm.Tone{Frequency: cfg.Alarm.DownFrequency, Duration: cfg.Alarm.Duration},
	)
}
