package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExchangeConfig 交易所配置
type ExchangeConfig struct {
	BaseURL            string        // REST 地址，例如 https://www.bitmex.com
	WSURL              string        // 实时行情 websocket 地址
	Timeout            time.Duration // 单次请求超时
	RateLimitPerMinute int           // 每分钟最多请求数（BitMEX 公共接口 30/分钟）
}

// MonitorConfig 监控循环配置
type MonitorConfig struct {
	Interval               time.Duration // 采样周期，默认 2 秒，运行中不可调整
	FailFast               bool          // 取价失败立即停止监控（与原始行为一致）
	MaxConsecutiveFailures int           // 非 FailFast 时，连续失败多少次后停止
}

// LevelsConfig 价格水平存储配置
type LevelsConfig struct {
	Backend       string // text / badger / sqlite
	Path          string
	EncryptionKey string // 仅 badger
}

// MenuConfig 菜单配置
type MenuConfig struct {
	MaxAttempts int // 输入无效时最多重试次数
}

// AlarmConfig 警报声音配置
type AlarmConfig struct {
	Mute          bool
	UpFrequency   int // Hz
	DownFrequency int // Hz
	Duration      time.Duration
}

// HTTPConfig HTTP 控制接口配置
type HTTPConfig struct {
	Listen string // 为空则不启动
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Config 应用配置
type Config struct {
	Symbol   string
	Source   string // poll（REST 轮询）或 stream（websocket）
	Exchange ExchangeConfig
	Monitor  MonitorConfig
	Levels   LevelsConfig
	Menu     MenuConfig
	Alarm    AlarmConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

// 默认值
const (
	DefaultSymbol      = "XBTUSD"
	DefaultBaseURL     = "https://www.bitmex.com"
	DefaultWSURL       = "wss://ws.bitmex.com/realtime"
	DefaultInterval    = 2 * time.Second
	DefaultLevelsPath  = "levels.txt"
	DefaultMaxAttempts = 5
)

var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Source   string `yaml:"source" json:"source"`
	Exchange struct {
		BaseURL            string `yaml:"base_url" json:"base_url"`
		WSURL              string `yaml:"ws_url" json:"ws_url"`
		Timeout            string `yaml:"timeout" json:"timeout"`
		RateLimitPerMinute int    `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	} `yaml:"exchange" json:"exchange"`
	Monitor struct {
		Interval               string `yaml:"interval" json:"interval"`
		FailFast               *bool  `yaml:"fail_fast" json:"fail_fast"`
		MaxConsecutiveFailures int    `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
	} `yaml:"monitor" json:"monitor"`
	Levels struct {
		Backend       string `yaml:"backend" json:"backend"`
		Path          string `yaml:"path" json:"path"`
		EncryptionKey string `yaml:"encryption_key" json:"encryption_key"`
	} `yaml:"levels" json:"levels"`
	Menu struct {
		MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	} `yaml:"menu" json:"menu"`
	Alarm struct {
		Mute          *bool  `yaml:"mute" json:"mute"`
		UpFrequency   int    `yaml:"up_frequency" json:"up_frequency"`
		DownFrequency int    `yaml:"down_frequency" json:"down_frequency"`
		Duration      string `yaml:"duration" json:"duration"`
	} `yaml:"alarm" json:"alarm"`
	HTTP struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"http" json:"http"`
	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
		Compress   *bool  `yaml:"compress" json:"compress"`
	} `yaml:"log" json:"log"`
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置。
// 优先级：环境变量 > 配置文件 > 默认值；filePath 为空或文件不存在时只用环境变量和默认值。
func LoadFromFile(filePath string) (*Config, error) {
	configFile := &ConfigFile{}
	if filePath != "" {
		cf, err := loadConfigFile(filePath)
		switch {
		case err == nil:
			configFile = cf
		case os.IsNotExist(err):
			// 配置文件是可选的
		default:
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	timeout, err := durationFromSources(configFile.Exchange.Timeout, "LEVELALARM_EXCHANGE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	interval, err := durationFromSources(configFile.Monitor.Interval, "LEVELALARM_INTERVAL", DefaultInterval)
	if err != nil {
		return nil, err
	}
	beepDuration, err := durationFromSources(configFile.Alarm.Duration, "LEVELALARM_ALARM_DURATION", 700*time.Millisecond)
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getValueFromSources(configFile.Levels.Backend, "LEVELALARM_LEVELS_BACKEND", "text"))

	config := &Config{
		Symbol: getValueFromSources(configFile.Symbol, "LEVELALARM_SYMBOL", DefaultSymbol),
		Source: strings.ToLower(getValueFromSources(configFile.Source, "LEVELALARM_SOURCE", "poll")),
		Exchange: ExchangeConfig{
			BaseURL:            getValueFromSources(configFile.Exchange.BaseURL, "LEVELALARM_BASE_URL", DefaultBaseURL),
			WSURL:              getValueFromSources(configFile.Exchange.WSURL, "LEVELALARM_WS_URL", DefaultWSURL),
			Timeout:            timeout,
			RateLimitPerMinute: getIntFromSources(configFile.Exchange.RateLimitPerMinute, "LEVELALARM_RATE_LIMIT", 30),
		},
		Monitor: MonitorConfig{
			Interval:               interval,
			FailFast:               getBoolFromSources(configFile.Monitor.FailFast, "LEVELALARM_FAIL_FAST", false),
			MaxConsecutiveFailures: getIntFromSources(configFile.Monitor.MaxConsecutiveFailures, "LEVELALARM_MAX_FAILURES", 5),
		},
		Levels: LevelsConfig{
			Backend:       backend,
			Path:          getValueFromSources(configFile.Levels.Path, "LEVELALARM_LEVELS_PATH", defaultLevelsPath(backend)),
			EncryptionKey: getValueFromSources(configFile.Levels.EncryptionKey, "LEVELALARM_LEVELS_KEY", ""),
		},
		Menu: MenuConfig{
			MaxAttempts: getIntFromSources(configFile.Menu.MaxAttempts, "LEVELALARM_MENU_MAX_ATTEMPTS", DefaultMaxAttempts),
		},
		Alarm: AlarmConfig{
			Mute:          getBoolFromSources(configFile.Alarm.Mute, "LEVELALARM_MUTE", false),
			UpFrequency:   getIntFromSources(configFile.Alarm.UpFrequency, "LEVELALARM_UP_FREQUENCY", 800),
			DownFrequency: getIntFromSources(configFile.Alarm.DownFrequency, "LEVELALARM_DOWN_FREQUENCY", 400),
			Duration:      beepDuration,
		},
		HTTP: HTTPConfig{
			Listen: getValueFromSources(configFile.HTTP.Listen, "LEVELALARM_HTTP_LISTEN", ""),
		},
		Log: LogConfig{
			Level:      getValueFromSources(configFile.Log.Level, "LOG_LEVEL", "info"),
			File:       getValueFromSources(configFile.Log.File, "LOG_FILE", "logs/levelalarm.log"),
			MaxSize:    getIntFromSources(configFile.Log.MaxSize, "LOG_MAX_SIZE", 20),
			MaxBackups: getIntFromSources(configFile.Log.MaxBackups, "LOG_MAX_BACKUPS", 3),
			MaxAge:     getIntFromSources(configFile.Log.MaxAge, "LOG_MAX_AGE", 7),
			Compress:   getBoolFromSources(configFile.Log.Compress, "LOG_COMPRESS", true),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	configFilePath = filePath
	return config, nil
}

// defaultLevelsPath 各后端的默认路径
func defaultLevelsPath(backend string) string {
	switch backend {
	case "badger":
		return "data/levels.badger"
	case "sqlite":
		return "data/levels.db"
	default:
		return DefaultLevelsPath
	}
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("symbol 不能为空")
	}
	switch c.Source {
	case "poll", "stream":
	default:
		return fmt.Errorf("source 必须是 poll 或 stream，当前: %q", c.Source)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval 必须大于 0")
	}
	if !c.Monitor.FailFast && c.Monitor.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("monitor.max_consecutive_failures 必须大于 0")
	}
	switch c.Levels.Backend {
	case "text", "badger", "sqlite":
	default:
		return fmt.Errorf("levels.backend 必须是 text / badger / sqlite，当前: %q", c.Levels.Backend)
	}
	if strings.TrimSpace(c.Levels.Path) == "" {
		return fmt.Errorf("levels.path 不能为空")
	}
	if c.Menu.MaxAttempts <= 0 {
		return fmt.Errorf("menu.max_attempts 必须大于 0")
	}
	if c.Exchange.RateLimitPerMinute <= 0 {
		return fmt.Errorf("exchange.rate_limit_per_minute 必须大于 0")
	}
	if c.Alarm.UpFrequency <= 0 || c.Alarm.DownFrequency <= 0 {
		return fmt.Errorf("alarm 频率必须大于 0")
	}
	return nil
}

// getValueFromSources 字符串：环境变量 > 配置文件 > 默认值
func getValueFromSources(configValue, envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if configValue != "" {
		return configValue
	}
	return defaultValue
}

// getIntFromSources 整数：环境变量 > 配置文件（非 0）> 默认值
func getIntFromSources(configValue int, envKey string, defaultValue int) int {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// getBoolFromSources 布尔：环境变量 > 配置文件（显式设置）> 默认值
func getBoolFromSources(configValue *bool, envKey string, defaultValue bool) bool {
	if v := os.Getenv(envKey); v != "" {
		return v == "true" || v == "1"
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

// durationFromSources 时长："2s"、"700ms" 之类
func durationFromSources(configValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	raw := getValueFromSources(configValue, envKey, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析时长 %s=%q 失败: %w", envKey, raw, err)
	}
	return d, nil
}
