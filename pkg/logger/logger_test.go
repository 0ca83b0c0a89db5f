package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fleetwatch/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceID(t *testing.T) {
	assert.Equal(t, "0", TraceID(context.Background()))

	ctx := WithTraceID(context.Background(), "req-42")
	assert.Equal(t, "req-42", TraceID(ctx))
	assert.Equal(t, "0", TraceID(WithTraceID(context.Background(), "")))
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fleetwatch.log")

	l, err := New(config.LoggerConfig{Level: "debug", Output: "file", File: config.LoggerFileConfig{Path: path}})
	require.NoError(t, err)

	l.Sugar().Infof("hello %s", "fleet")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello fleet")
	assert.Contains(t, string(data), "INFO")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := New(config.LoggerConfig{Level: "chatty", Output: "file", File: config.LoggerFileConfig{Path: path}})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("shown")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}
