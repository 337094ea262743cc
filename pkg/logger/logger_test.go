package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	require.NoError(t, Init(Config{Level: "debug", OutputFile: path, Quiet: true}))
	t.Cleanup(func() { _ = Close() })

	assert.Equal(t, path, GetCurrentLogFile())
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())

	Infof("hello %s", "levels")
	WithField("module", "test").Warn("field entry")
	require.NoError(t, Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "hello levels"))
	assert.True(t, strings.Contains(string(b), "field entry"))
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "chatty", Quiet: true}))
	assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
}
