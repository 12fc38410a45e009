package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shop.log")

	logger, err := NewLogger(Options{Service: "shop", Env: "test", Level: "debug", File: path})
	require.NoError(t, err)

	logger.Info("ledger_opened")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"ledger_opened"`)
	require.Contains(t, string(data), `"service":"shop"`)
}

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("")
	require.NoError(t, err)
	require.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = parseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, zapcore.WarnLevel, lvl)

	_, err = parseLevel("loud")
	require.Error(t, err)
}
