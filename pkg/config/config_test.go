package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSymbol, cfg.Symbol)
	assert.Equal(t, "poll", cfg.Source)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)
	assert.False(t, cfg.Monitor.FailFast)
	assert.Equal(t, 5, cfg.Monitor.MaxConsecutiveFailures)
	assert.Equal(t, "text", cfg.Levels.Backend)
	assert.Equal(t, DefaultLevelsPath, cfg.Levels.Path)
	assert.Equal(t, 800, cfg.Alarm.UpFrequency)
	assert.Equal(t, 400, cfg.Alarm.DownFrequency)
	assert.Equal(t, 700*time.Millisecond, cfg.Alarm.Duration)
	assert.True(t, cfg.Log.Compress)
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol: ETHUSD
source: stream
monitor:
  interval: 5s
  fail_fast: true
levels:
  backend: sqlite
  path: data/levels.db
alarm:
  mute: true
http:
  listen: ":9090"
log:
  compress: false
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSD", cfg.Symbol)
	assert.Equal(t, "stream", cfg.Source)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval)
	assert.True(t, cfg.Monitor.FailFast)
	assert.Equal(t, "sqlite", cfg.Levels.Backend)
	assert.Equal(t, "data/levels.db", cfg.Levels.Path)
	assert.True(t, cfg.Alarm.Mute)
	assert.Equal(t, ":9090", cfg.HTTP.Listen)
	assert.False(t, cfg.Log.Compress)
	assert.Equal(t, path, GetConfigPath())
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"symbol":"ETHUSD","menu":{"max_attempts":2}}`), 0o644))

	t.Setenv("LEVELALARM_SYMBOL", "SOLUSD")
	t.Setenv("LEVELALARM_MENU_MAX_ATTEMPTS", "9")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SOLUSD", cfg.Symbol)
	assert.Equal(t, 9, cfg.Menu.MaxAttempts)
}

func TestLoadFromFile_DefaultPathFollowsBackend(t *testing.T) {
	t.Setenv("LEVELALARM_LEVELS_BACKEND", "badger")
	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "data/levels.badger", cfg.Levels.Path)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"bad-backend.yaml":  "levels:\n  backend: redis\n",
		"bad-source.yaml":   "source: carrier-pigeon\n",
		"bad-interval.yaml": "monitor:\n  interval: soon\n",
		"bad.toml":          "symbol = 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadFromFile(path)
			assert.Error(t, err)
		})
	}
}
